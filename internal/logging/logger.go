// Package logging is the structured-logging facade used by bucketvault.
// Components depend on Logger; the only implementation wraps log/slog.
package logging

import "context"

// Logger is a context-aware, structured logger. Args are alternating
// key/value pairs:
//
//	log.Info(ctx, "bucket added", "user_id", userID, "bucket_id", id)
//
// Secrets (access keys, secret keys, tokens, passwords) must never be passed.
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a child logger that adds args to every record.
	With(args ...any) Logger
}
