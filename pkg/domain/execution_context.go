package domain

import (
	"context"

	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type ExecutionContextKey struct{}

// ExecutionContext carries per-invocation identity and a logger through the
// call chain. It replaces ambient per-request storage: everything a component
// needs for logging or attribution travels explicitly on the context.
type ExecutionContext struct {
	TraceID string
	OrgID   string
	UserID  string
	Logger  zerolog.Logger
}

func NewContextWithExecutionContext(ctx context.Context, orgID, userID string) context.Context {
	traceID := xid.New().String()

	executionContext := &ExecutionContext{
		TraceID: traceID,
		OrgID:   orgID,
		UserID:  userID,
		Logger: log.With().
			Str("trace_id", traceID).
			Str("org_id", orgID).
			Str("user_id", userID).
			Logger(),
	}

	return context.WithValue(ctx, ExecutionContextKey{}, executionContext)
}

func GetExecutionContext(ctx context.Context) (*ExecutionContext, bool) {
	executionContext, ok := ctx.Value(ExecutionContextKey{}).(*ExecutionContext)

	return executionContext, ok
}

// LoggerFromContext returns the execution-scoped logger, or the package-level
// logger when the context carries no execution context.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if executionContext, ok := GetExecutionContext(ctx); ok {
		return executionContext.Logger
	}

	return log.Logger
}
