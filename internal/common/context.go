package common

import (
	"context"
)

// Context keys for storing values in context
type contextKey string

const (
	ContextKeySessionID contextKey = "session_id"
)

// WithSessionID adds an extraction session ID to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, ContextKeySessionID, sessionID)
}

// SessionIDFromContext extracts the extraction session ID from context
func SessionIDFromContext(ctx context.Context) string {
	if sessionID, ok := ctx.Value(ContextKeySessionID).(string); ok {
		return sessionID
	}
	return ""
}
