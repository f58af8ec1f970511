package logging

import (
	"context"

	"github.com/sirupsen/logrus"
)

type entryKey struct{}

func WithEntry(ctx context.Context, entry logrus.FieldLogger) context.Context {
	return context.WithValue(ctx, entryKey{}, entry)
}

// FromContext returns the request logger stored in ctx, or fallback.
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if entry, ok := ctx.Value(entryKey{}).(logrus.FieldLogger); ok {
		return entry
	}

	return fallback
}
