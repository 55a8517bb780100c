package usercontext

// Locals keys and gateway headers shared by middleware and controllers.
const (
	LocalsKey = "USER_CONTEXT"

	HeaderUserID        = "X-User-Id"
	HeaderUserRole      = "X-User-Role"
	HeaderGatewaySecret = "X-Gateway-Secret"

	RoleAdmin = "admin"
)
