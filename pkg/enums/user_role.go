package enums

// UserRole is the role claim in access tokens minted by the auth service.
type UserRole string

const (
	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"
)

var userRoles = values[UserRole]{UserRoleCustomer, UserRoleAdmin}

func (r UserRole) IsValid() bool { return userRoles.has(r) }
