package extensions

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	mvi "github.com/pumped-fn/pumped-mvi"
)

// FailureDebugExtension logs the container/feature tree of a store when a
// feature or a reduction fails.
//
// Usage:
//
//	// Human-readable formatted output (with line breaks)
//	handler := extensions.NewHumanHandler(os.Stdout, slog.LevelError)
//	ext := extensions.NewFailureDebugExtension(handler)
//
//	// Structured JSON logging (compact, machine-readable)
//	handler := slog.NewJSONHandler(os.Stdout, nil)
//	ext := extensions.NewFailureDebugExtension(handler)
//
//	// Silent (for testing)
//	ext := extensions.NewFailureDebugExtension(extensions.NewSilentHandler())
//
// The extension logs at ERROR level for both feature and reduce failures.
type FailureDebugExtension struct {
	mvi.BaseExtension

	mu             sync.Mutex
	store          *mvi.RootStore
	failedFeatures map[mvi.AnyFeature]error
	logger         *slog.Logger
}

// NewFailureDebugExtension creates a new failure debug extension.
// logHandler: slog.Handler for logging (use HumanHandler for formatted output, or any other slog.Handler)
func NewFailureDebugExtension(logHandler slog.Handler) *FailureDebugExtension {
	return &FailureDebugExtension{
		BaseExtension:  mvi.NewBaseExtension("failure-debug"),
		failedFeatures: make(map[mvi.AnyFeature]error),
		logger:         slog.New(logHandler),
	}
}

func (e *FailureDebugExtension) Init(store *mvi.RootStore) error {
	e.mu.Lock()
	e.store = store
	e.mu.Unlock()
	return nil
}

// OnFeatureError logs the container tree with the failed feature marked
func (e *FailureDebugExtension) OnFeatureError(container mvi.ContainerInfo, err *mvi.FeatureError) {
	var failed mvi.AnyFeature
	for _, f := range container.Features {
		if f.Name() == err.Feature {
			failed = f
			break
		}
	}

	e.mu.Lock()
	if failed != nil {
		e.failedFeatures[failed] = err.Cause
	}
	tree := e.formatTree(container, failed)
	e.mu.Unlock()

	attrs := []any{
		"container", container.Name,
		"feature", err.Feature,
		"error", err.Cause.Error(),
		"container_tree", tree,
	}
	if err.Panic != nil {
		attrs = append(attrs, "stack_trace", string(err.StackTrace))
	}
	e.logger.Error("Feature Failure", attrs...)
}

// OnReduceError logs the failing outcome together with the container tree
func (e *FailureDebugExtension) OnReduceError(container mvi.ContainerInfo, err *mvi.ReduceError) {
	e.mu.Lock()
	tree := e.formatTree(container, nil)
	e.mu.Unlock()

	attrs := []any{
		"container", container.Name,
		"outcome", fmt.Sprintf("%T", err.Outcome),
		"error", err.Cause.Error(),
		"container_tree", tree,
	}
	if len(err.StackTrace) > 0 {
		attrs = append(attrs, "stack_trace", string(err.StackTrace))
	}
	e.logger.Error("Reduce Failure", attrs...)
}

func (e *FailureDebugExtension) OnContainerClose(container mvi.ContainerInfo, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, f := range container.Features {
		delete(e.failedFeatures, f)
	}
}

// formatTree renders every container of the store with its features. The
// caller holds e.mu.
func (e *FailureDebugExtension) formatTree(current mvi.ContainerInfo, failed mvi.AnyFeature) string {
	var sb strings.Builder
	sb.WriteString("\n")

	containers := []mvi.ContainerInfo{current}
	if e.store != nil {
		containers = e.store.Containers()
		found := false
		for _, c := range containers {
			if c.ID == current.ID {
				found = true
				break
			}
		}
		if !found {
			containers = append(containers, current)
		}
	}

	for _, c := range containers {
		marker := ""
		if c.ID == current.ID {
			marker = " <- failing"
		}
		sb.WriteString(fmt.Sprintf("  %s [%s]%s\n", c.Name, c.Kind, marker))

		if len(c.Features) == 0 {
			sb.WriteString("    (no features)\n")
			continue
		}

		for i, f := range c.Features {
			name := fmt.Sprintf("%s (%s)", f.Name(), f.Mode())

			if f == failed {
				name = name + " ❌ FAILED"
			} else if err, ok := e.failedFeatures[f]; ok {
				name = fmt.Sprintf("%s ❌ (error: %v)", name, err)
			} else if f.Scope().Closed() {
				name = name + " (closed)"
			} else {
				name = name + " ✓"
			}

			if i == len(c.Features)-1 {
				sb.WriteString(fmt.Sprintf("    └─> %s\n", name))
			} else {
				sb.WriteString(fmt.Sprintf("    ├─> %s\n", name))
			}
		}
	}

	return sb.String()
}

// SilentHandler is a slog.Handler that discards all log output
// Useful for testing when you don't want log output
type SilentHandler struct{}

// NewSilentHandler creates a new silent log handler
func NewSilentHandler() *SilentHandler {
	return &SilentHandler{}
}

func (h *SilentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return false
}

func (h *SilentHandler) Handle(ctx context.Context, record slog.Record) error {
	return nil
}

func (h *SilentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *SilentHandler) WithGroup(name string) slog.Handler {
	return h
}

// HumanHandler is a slog.Handler that formats logs for human readability,
// rendering failure reports as framed blocks
type HumanHandler struct {
	mu     sync.Mutex
	writer io.Writer
	level  slog.Level
}

// NewHumanHandler creates a new human-readable log handler
func NewHumanHandler(writer io.Writer, level slog.Level) *HumanHandler {
	return &HumanHandler{
		writer: writer,
		level:  level,
	}
}

func (h *HumanHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *HumanHandler) Handle(ctx context.Context, record slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch record.Message {
	case "Feature Failure", "Reduce Failure":
		return h.handleFailure(record)
	}

	if _, err := fmt.Fprintf(h.writer, "[%s] %s\n", record.Level, record.Message); err != nil {
		return err
	}
	var writeErr error
	record.Attrs(func(a slog.Attr) bool {
		if _, err := fmt.Fprintf(h.writer, "  %s: %v\n", a.Key, a.Value); err != nil {
			writeErr = err
			return false
		}
		return true
	})
	return writeErr
}

func (h *HumanHandler) handleFailure(record slog.Record) error {
	fields := map[string]string{}
	record.Attrs(func(a slog.Attr) bool {
		fields[a.Key] = a.Value.String()
		return true
	})

	rule := strings.Repeat("=", 70)
	var sb strings.Builder
	sb.WriteString("\n" + rule + "\n")
	sb.WriteString("[FailureDebug] " + record.Message + "\n")
	sb.WriteString(rule + "\n")
	sb.WriteString(fmt.Sprintf("\nContainer: %s\n", fields["container"]))
	if feature, ok := fields["feature"]; ok {
		sb.WriteString(fmt.Sprintf("Feature: %s\n", feature))
	}
	if outcome, ok := fields["outcome"]; ok {
		sb.WriteString(fmt.Sprintf("Outcome: %s\n", outcome))
	}
	sb.WriteString(fmt.Sprintf("Error: %s\n", fields["error"]))
	sb.WriteString(fmt.Sprintf("\nContainers:%s", fields["container_tree"]))
	if stack, ok := fields["stack_trace"]; ok {
		sb.WriteString(fmt.Sprintf("\nStack Trace:\n%s\n", stack))
	}
	sb.WriteString(rule + "\n\n")

	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *HumanHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return h
}

func (h *HumanHandler) WithGroup(name string) slog.Handler {
	return h
}
