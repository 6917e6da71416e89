package logging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type runIDKey struct{}

type Logger struct {
	*zap.Logger
}

// New builds a production logger writing JSON to stderr at the given level.
func New(level string) (*Logger, error) {
	config := zap.NewProductionConfig()

	var zapLevel zapcore.Level
	if err := zapLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	config.Level = zap.NewAtomicLevelAt(zapLevel)
	config.DisableStacktrace = zapLevel > zapcore.DebugLevel

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{logger}, nil
}

func NewNop() *Logger {
	return &Logger{zap.NewNop()}
}

// NewRunID returns a fresh identifier for one CLI invocation.
func NewRunID() string {
	return uuid.New().String()
}

func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// FromContext returns the logger annotated with the run ID carried by ctx,
// if any.
func (l *Logger) FromContext(ctx context.Context) *zap.Logger {
	if id, ok := RunID(ctx); ok {
		return l.With(zap.String("run_id", id))
	}
	return l.Logger
}
