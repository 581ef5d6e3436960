package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"
)

/*
log implements context-based structured logging on top of slog. All logging in
lakelet goes through these functions. The "AddTags" mechanism stores key-value
pairs on the context, which are then attached to every descendent logging call.
The HTTP layer uses this to tag all logging for a request with its request ID.

The "f" variants take a format string and arguments, and the "w" variants take
an even-length list of key-value pairs.
*/

////////////////////////////////////////////////////////////////////////////////

type contextKey int

const (
	logTagKey contextKey = iota
)

var level = new(slog.LevelVar)

// SetLevel sets the minimum level of the default handler.
func SetLevel(l slog.Level) {
	level.Set(l)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// AddTags adds key-value pairs to the log context.
func AddTags(ctx context.Context, kvs ...any) context.Context {
	if len(kvs)%2 != 0 {
		panic("log: AddTags requires an even number of arguments")
	}
	tags := []any{}
	if existing, ok := ctx.Value(logTagKey).([]any); ok {
		tags = append(tags, existing...)
	}
	return context.WithValue(ctx, logTagKey, append(tags, kvs...))
}

func fromContext(ctx context.Context) []any {
	tags, _ := ctx.Value(logTagKey).([]any)
	return tags
}

func emit(ctx context.Context, level slog.Level, msg string, attrs ...any) {
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	tags := fromContext(ctx)
	for i := 0; i < len(tags); i += 2 {
		key, ok := tags[i].(string)
		if !ok {
			panic("log: invalid log tag key")
		}
		r.Add(key, tags[i+1])
	}
	r.Add(attrs...)
	handler := slog.Default().Handler()
	if handler.Enabled(ctx, level) {
		if err := handler.Handle(ctx, r); err != nil {
			slog.ErrorContext(ctx, "error handling log record", "error", err)
		}
	}
}

func levelf(ctx context.Context, level slog.Level, format string, args ...any) {
	emit(ctx, level, fmt.Sprintf(format, args...))
}

func levelw(ctx context.Context, level slog.Level, msg string, keyvals ...any) {
	emit(ctx, level, msg, keyvals...)
}

// Debugf logs a formatted message at debug level.
func Debugf(ctx context.Context, format string, args ...any) {
	levelf(ctx, slog.LevelDebug, format, args...)
}

// Infof logs a formatted message at info level.
func Infof(ctx context.Context, format string, args ...any) {
	levelf(ctx, slog.LevelInfo, format, args...)
}

// Warnf logs a formatted message at warn level.
func Warnf(ctx context.Context, format string, args ...any) {
	levelf(ctx, slog.LevelWarn, format, args...)
}

// Errorf logs a formatted message at error level.
func Errorf(ctx context.Context, format string, args ...any) {
	levelf(ctx, slog.LevelError, format, args...)
}

// Debugw logs a message with key-value pairs at debug level.
func Debugw(ctx context.Context, msg string, keyvals ...any) {
	levelw(ctx, slog.LevelDebug, msg, keyvals...)
}

// Infow logs a message with key-value pairs at info level.
func Infow(ctx context.Context, msg string, keyvals ...any) {
	levelw(ctx, slog.LevelInfo, msg, keyvals...)
}

// Warnw logs a message with key-value pairs at warn level.
func Warnw(ctx context.Context, msg string, keyvals ...any) {
	levelw(ctx, slog.LevelWarn, msg, keyvals...)
}

// Errorw logs a message with key-value pairs at error level.
func Errorw(ctx context.Context, msg string, keyvals ...any) {
	levelw(ctx, slog.LevelError, msg, keyvals...)
}
