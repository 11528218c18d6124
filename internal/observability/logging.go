package observability

import (
	"context"
	"io"
	"log/slog"
)

type contextKey int

const (
	caseNumberKey contextKey = iota
	commandKey
)

// WithCaseNumber tags the context so every log record emitted while
// processing a case carries its number.
func WithCaseNumber(ctx context.Context, caseNumber string) context.Context {
	return context.WithValue(ctx, caseNumberKey, caseNumber)
}

// CaseNumberFromContext returns the case number attached to ctx, if any.
func CaseNumberFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(caseNumberKey).(string)
	return value, ok && value != ""
}

// WithCommand tags the context with the CLI command driving the work.
func WithCommand(ctx context.Context, command string) context.Context {
	return context.WithValue(ctx, commandKey, command)
}

// CommandFromContext returns the command attached to ctx, if any.
func CommandFromContext(ctx context.Context) (string, bool) {
	value, ok := ctx.Value(commandKey).(string)
	return value, ok && value != ""
}

type contextAwareHandler struct {
	next slog.Handler
}

// WrapSlogHandler adds case and command context fields to structured logs.
func WrapSlogHandler(next slog.Handler) slog.Handler {
	if next == nil {
		next = slog.NewTextHandler(io.Discard, nil)
	}
	return &contextAwareHandler{next: next}
}

func (h *contextAwareHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *contextAwareHandler) Handle(ctx context.Context, record slog.Record) error {
	if caseNumber, ok := CaseNumberFromContext(ctx); ok {
		record.AddAttrs(slog.String("case", caseNumber))
	}
	if command, ok := CommandFromContext(ctx); ok {
		record.AddAttrs(slog.String("command", command))
	}
	return h.next.Handle(ctx, record)
}

func (h *contextAwareHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextAwareHandler{next: h.next.WithAttrs(attrs)}
}

func (h *contextAwareHandler) WithGroup(name string) slog.Handler {
	return &contextAwareHandler{next: h.next.WithGroup(name)}
}
