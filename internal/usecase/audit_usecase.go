package usecase

import (
	"context"
	"time"

	"pos/internal/domain/model"
	repo "pos/internal/repository"
)

type ListAuditLogsInput struct {
	ActorUserID  *string
	Action       *string
	ResourceType *string
	ResourceID   *string
	From         *time.Time
	To           *time.Time
	Page         int
	Limit        int
}

type AuditLogListOutput struct {
	Items []model.AuditLog `json:"items"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

// 監査ログの閲覧（書き込みは各usecaseが行う）
type AuditUsecase struct {
	auditRepo repo.AuditLogRepository
}

func NewAuditUsecase(auditRepo repo.AuditLogRepository) *AuditUsecase {
	return &AuditUsecase{auditRepo: auditRepo}
}

var knownResourceTypes = map[model.AuditResourceType]bool{
	model.AuditResourceProduct: true,
	model.AuditResourceSale:    true,
	model.AuditResourceUser:    true,
}

func (u *AuditUsecase) ListAuditLogs(ctx context.Context, in ListAuditLogsInput) (AuditLogListOutput, error) {
	if in.Page == 0 {
		in.Page = 1
	}
	if in.Limit == 0 {
		in.Limit = 50
	}
	if in.Page < 1 {
		return AuditLogListOutput{}, validationError("invalid page")
	}
	if in.Limit < 1 || in.Limit > 200 {
		return AuditLogListOutput{}, validationError("invalid limit")
	}
	if in.From != nil && in.To != nil && !in.From.Before(*in.To) {
		return AuditLogListOutput{}, validationError("from must be before to")
	}

	f := repo.AuditLogFilter{
		ActorUserID: in.ActorUserID,
		ResourceID:  in.ResourceID,
		From:        in.From,
		To:          in.To,
		Page:        in.Page,
		Limit:       in.Limit,
	}
	if in.Action != nil {
		a := model.AuditAction(*in.Action)
		f.Action = &a
	}
	if in.ResourceType != nil {
		rt := model.AuditResourceType(*in.ResourceType)
		if !knownResourceTypes[rt] {
			return AuditLogListOutput{}, validationError("invalid resource_type")
		}
		f.ResourceType = &rt
	}

	items, total, err := u.auditRepo.List(ctx, f)
	if err != nil {
		return AuditLogListOutput{}, dbError(err)
	}
	return AuditLogListOutput{Items: items, Total: total, Page: in.Page, Limit: in.Limit}, nil
}
