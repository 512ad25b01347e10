package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mvi "github.com/pumped-fn/pumped-mvi"
)

// LoggingExtension logs every operation and container lifecycle event
type LoggingExtension struct {
	mvi.BaseExtension
	logger *slog.Logger
}

// NewLoggingExtension creates a new logging extension. A nil logger uses
// slog.Default.
func NewLoggingExtension(logger *slog.Logger) *LoggingExtension {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingExtension{
		BaseExtension: mvi.NewBaseExtension("logging"),
		logger:        logger,
	}
}

func (e *LoggingExtension) Wrap(ctx context.Context, next func() (any, error), op *mvi.Operation) (any, error) {
	start := time.Now()
	result, err := next()
	duration := time.Since(start)

	attrs := []any{
		"op", string(op.Kind),
		"duration", duration,
	}
	if op.Container.Name != "" {
		attrs = append(attrs, "container", op.Container.Name)
	}
	if op.Intention != nil {
		attrs = append(attrs, "intention", fmt.Sprintf("%T", op.Intention))
	}
	if op.Outcome != nil {
		attrs = append(attrs, "outcome", fmt.Sprintf("%T", op.Outcome))
	}

	if err != nil {
		e.logger.ErrorContext(ctx, "operation failed", append(attrs, "error", err)...)
	} else {
		e.logger.DebugContext(ctx, "operation completed", attrs...)
	}

	return result, err
}

func (e *LoggingExtension) OnFeatureError(container mvi.ContainerInfo, err *mvi.FeatureError) {
	e.logger.Error("feature failed",
		"container", container.Name,
		"feature", err.Feature,
		"error", err.Cause,
		"panicked", err.Panic != nil,
	)
}

func (e *LoggingExtension) OnReduceError(container mvi.ContainerInfo, err *mvi.ReduceError) {
	e.logger.Error("reduce failed",
		"container", container.Name,
		"outcome", fmt.Sprintf("%T", err.Outcome),
		"error", err.Cause,
	)
}

func (e *LoggingExtension) OnCleanupError(err *mvi.CleanupError) {
	e.logger.Warn("cleanup failed", "owner", err.Owner, "error", err.Err)
}

func (e *LoggingExtension) OnStateChange(container mvi.ContainerInfo, prev, next any) {
	e.logger.Debug("state changed",
		"container", container.Name,
		"prev", prev,
		"next", next,
	)
}

func (e *LoggingExtension) OnEffect(container mvi.ContainerInfo, effect any) {
	e.logger.Debug("effect", "container", container.Name, "effect", fmt.Sprintf("%T", effect))
}

func (e *LoggingExtension) OnContainerOpen(container mvi.ContainerInfo) {
	e.logger.Info("container opened",
		"container", container.Name,
		"kind", container.Kind.String(),
		"features", len(container.Features),
	)
}

func (e *LoggingExtension) OnContainerClose(container mvi.ContainerInfo, err error) {
	if err != nil {
		e.logger.Error("container closed", "container", container.Name, "error", err)
		return
	}
	e.logger.Info("container closed", "container", container.Name)
}
