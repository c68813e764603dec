// Package ctxkeys defines typed context keys to avoid SA1029 lint warnings
// and prevent key collisions across packages. Handlers read these through
// gin's accessors (c.GetString etc.), which resolve plain-string keys only,
// so the constants are converted at the call site.
package ctxkeys

// Key is a typed context key to prevent collisions.
type Key string

// Auth context keys, populated by the session auth middleware.
const (
	KeyUserID       Key = "user_id"
	KeyEmail        Key = "email"
	KeyJWTToken     Key = "jwt_token"
	KeyJWTExpiresAt Key = "jwt_expires_at"
)
