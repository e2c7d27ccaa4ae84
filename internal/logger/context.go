package logger

import (
	"context"
	"log/slog"
)

type contextKey string

const RunIDKey contextKey = "run_id"
const ScenarioKey contextKey = "scenario"

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

func GetRunID(ctx context.Context) string {
	if id, ok := ctx.Value(RunIDKey).(string); ok {
		return id
	}
	return ""
}

func WithScenario(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, ScenarioKey, name)
}

func GetScenario(ctx context.Context) string {
	if name, ok := ctx.Value(ScenarioKey).(string); ok {
		return name
	}
	return ""
}

// FromContext returns the default logger tagged with the run and scenario carried by ctx.
func FromContext(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if id := GetRunID(ctx); id != "" {
		l = l.With("run_id", id)
	}
	if name := GetScenario(ctx); name != "" {
		l = l.With("scenario", name)
	}
	return l
}
