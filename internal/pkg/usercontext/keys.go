package usercontext

// Shared Locals keys used across controllers and middlewares
const (
	KeyIdentity      = "identity"
	KeyUserContext   = "USER_CONTEXT"
	KeyFromProtected = "from_protected"
)
