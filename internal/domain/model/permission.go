package model

import "sort"

type Permission string

const (
	PermProductsView   Permission = "products:view"
	PermProductsCreate Permission = "products:create"
	PermProductsUpdate Permission = "products:update"
	PermProductsDelete Permission = "products:delete"

	PermSalesView    Permission = "sales:view"
	PermSalesCreate  Permission = "sales:create"
	PermSalesViewAll Permission = "sales:view_all"
	PermSalesCancel  Permission = "sales:cancel"

	PermCategoriesView   Permission = "categories:view"
	PermCategoriesCreate Permission = "categories:create"
	PermCategoriesUpdate Permission = "categories:update"
	PermCategoriesDelete Permission = "categories:delete"

	PermReportsViewOwn Permission = "reports:view_own"
	PermReportsViewAll Permission = "reports:view_all"

	PermUsersView   Permission = "users:view"
	PermUsersCreate Permission = "users:create"
	PermUsersUpdate Permission = "users:update"

	PermAuditView Permission = "audit:view"
)

// ロールごとの権限表。起動後は変更しない
type PermissionMatrix map[Role]map[Permission]bool

var RolePermissions = PermissionMatrix{
	RoleAdmin: {
		PermProductsView: true, PermProductsCreate: true, PermProductsUpdate: true, PermProductsDelete: true,
		PermSalesView: true, PermSalesCreate: true, PermSalesViewAll: true, PermSalesCancel: true,
		PermCategoriesView: true, PermCategoriesCreate: true, PermCategoriesUpdate: true, PermCategoriesDelete: true,
		PermReportsViewOwn: true, PermReportsViewAll: true,
		PermUsersView: true, PermUsersCreate: true, PermUsersUpdate: true,
		PermAuditView: true,
	},
	RoleSeller: {
		PermProductsView:   true,
		PermSalesView:      true,
		PermSalesCreate:    true,
		PermCategoriesView: true,
		PermReportsViewOwn: true,
	},
}

// 表にないものはすべてfalse
func (m PermissionMatrix) Allows(role Role, p Permission) bool {
	return m[role][p]
}

// ロールの権限一覧（ソート済み）
func (m PermissionMatrix) For(role Role) []Permission {
	out := make([]Permission, 0, len(m[role]))
	for p, ok := range m[role] {
		if ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
