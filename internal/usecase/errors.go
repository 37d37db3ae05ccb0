package usecase

import (
	"errors"
	"fmt"
)

// エラーの種類。handlerでHTTPステータスに変換する
type ErrorKind string

const (
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInsufficientStock ErrorKind = "INSUFFICIENT_STOCK"
	KindConflict          ErrorKind = "CONFLICT"
	KindUnauthorized      ErrorKind = "UNAUTHORIZED"
	KindForbidden         ErrorKind = "FORBIDDEN"
	KindInternal          ErrorKind = "INTERNAL"
)

type AppError struct {
	Kind    ErrorKind
	Message string
	// ログ用。クライアントには返さない
	Err error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func NewAppError(kind ErrorKind, message string) error {
	return &AppError{Kind: kind, Message: message}
}

func AsAppError(err error) (*AppError, bool) {
	var ae *AppError
	ok := errors.As(err, &ae)
	return ae, ok
}

func validationError(format string, args ...any) error {
	return &AppError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(message string) error {
	return &AppError{Kind: KindNotFound, Message: message}
}

func conflictError(message string) error {
	return &AppError{Kind: KindConflict, Message: message}
}

// インフラ由来の失敗。原因は隠す
func dbError(err error) error {
	return &AppError{Kind: KindInternal, Message: "db error", Err: err}
}

var ErrInsufficientStock = errors.New("insufficient stock")

// 在庫不足。どの商品がいくつ足りないか
type InsufficientStockError struct {
	ProductID   string
	ProductName string
	Requested   int64
	Available   int64
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.ProductName, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// errの種類を返す。AppError以外はInternal
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ise *InsufficientStockError
	if errors.As(err, &ise) {
		return KindInsufficientStock
	}
	if ae, ok := AsAppError(err); ok {
		return ae.Kind
	}
	return KindInternal
}
