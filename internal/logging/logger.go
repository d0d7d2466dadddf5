// Package logging decouples the rest of the project from a concrete logging
// backend. Components take a Logger; wiring picks the implementation.
package logging

import "context"

// Logger writes structured, leveled records. The variadic args form
// alternating key-value pairs, as in slog:
//
//	log.Info(ctx, "grant revoked", "grant_id", id, "by", userID)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// With returns a derived logger that stamps every record with the
	// given key-value pairs.
	With(args ...any) Logger
}
