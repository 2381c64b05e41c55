package auth

import "context"

type ctxKey int

const (
	ctxKeyEmail ctxKey = iota
	ctxKeyRole
)

func WithIdentity(ctx context.Context, email, role string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyEmail, email)
	return context.WithValue(ctx, ctxKeyRole, role)
}

func EmailFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyEmail).(string); ok {
		return s
	}
	return ""
}

// RoleFromContext returns the session-carried role. It is a cache of the
// sign-in time derivation; endpoints that mutate other users' state verify
// the role against the database instead.
func RoleFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyRole).(string); ok {
		return s
	}
	return ""
}
