package auth

import (
	"context"

	appErrors "github.com/BenjaminAGH/NocturneScope/pkg/errors"
)

type contextKey string

const (
	userContextKey    contextKey = "user_context"
	sessionContextKey contextKey = "console_session"
)

// UserContext carries the authenticated user's identity through a request.
type UserContext struct {
	UserID   string
	Email    string
	Username string
	Role     string
}

// SetUserInContext adds the user context to a request context
func SetUserInContext(ctx context.Context, user *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext extracts the user context from a request context
func GetUserFromContext(ctx context.Context) (*UserContext, error) {
	user, ok := ctx.Value(userContextKey).(*UserContext)
	if !ok || user == nil {
		return nil, appErrors.NewUnauthorizedError("no authenticated user in context")
	}
	return user, nil
}

// SetSessionInContext adds the console session to a request context
func SetSessionInContext(ctx context.Context, session *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, session)
}

// GetSessionFromContext extracts the console session from a request context
func GetSessionFromContext(ctx context.Context) (*Session, error) {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok || session == nil {
		return nil, appErrors.NewUnauthorizedError("no console session in context")
	}
	return session, nil
}
