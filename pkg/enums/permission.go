package enums

// Permission names a capability granted to a role.
type Permission string

const (
	PermissionPOSAccess     Permission = "pos_access"
	PermissionDiscountApply Permission = "discount_apply"
	PermissionSaleView      Permission = "sale_view"
)

// rolePermissions lists the checkout-related grants of the MIS role table.
var rolePermissions = map[MemberRole][]Permission{
	MemberRoleAdmin:   {PermissionPOSAccess, PermissionDiscountApply, PermissionSaleView},
	MemberRoleManager: {PermissionSaleView},
	MemberRoleCashier: {PermissionPOSAccess, PermissionSaleView},
}

// String implements fmt.Stringer.
func (p Permission) String() string {
	return string(p)
}

// Grants reports whether any of the roles carries the permission.
func Grants(roles []MemberRole, permission Permission) bool {
	for _, role := range roles {
		for _, granted := range rolePermissions[role] {
			if granted == permission {
				return true
			}
		}
	}
	return false
}
