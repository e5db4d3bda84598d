package faults

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the pipeline error taxonomy. Every error surfaced by
// the compositing core wraps exactly one of these.
var (
	ErrValidation     = errors.New("validation error")
	ErrNotReady       = errors.New("media not ready")
	ErrInitialization = errors.New("engine initialization error")
	ErrNetwork        = errors.New("network error")
	ErrTimeout        = errors.New("timeout")
	ErrMemory         = errors.New("memory limit exceeded")
	ErrRenderSurface  = errors.New("render surface error")
	ErrProcessing     = errors.New("processing error")
)

// Kind names one taxonomy bucket for reporting and metrics labels.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotReady       Kind = "not_ready"
	KindInitialization Kind = "initialization"
	KindNetwork        Kind = "network"
	KindTimeout        Kind = "timeout"
	KindMemory         Kind = "memory"
	KindRenderSurface  Kind = "render_surface"
	KindProcessing     Kind = "processing"
	KindUnknown        Kind = "unknown"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrProcessing
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps an error to its taxonomy kind.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotReady):
		return KindNotReady
	case errors.Is(err, ErrInitialization):
		return KindInitialization
	case errors.Is(err, ErrNetwork):
		return KindNetwork
	case errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, ErrMemory):
		return KindMemory
	case errors.Is(err, ErrRenderSurface):
		return KindRenderSurface
	case errors.Is(err, ErrProcessing):
		return KindProcessing
	default:
		return KindUnknown
	}
}

// Retryable reports whether the orchestrator may attempt the failed step
// again. Validation, memory, and surface failures are terminal for the
// current input; the caller must change the input instead.
func Retryable(err error) bool {
	return MaxAttempts(Classify(err)) > 1
}

// MaxAttempts returns the total number of attempts (first try included) the
// orchestrator grants a step failing with the given kind.
func MaxAttempts(kind Kind) int {
	switch kind {
	case KindInitialization, KindTimeout:
		return 2
	case KindNetwork, KindProcessing, KindUnknown:
		return 3
	default:
		return 1
	}
}

// ClassifyEngineFailure inspects an engine-reported error and re-tags it with
// the taxonomy marker its message implies. Engines surface raw tool output,
// so substring inspection is the only signal available for out-of-memory and
// stall conditions.
func ClassifyEngineFailure(component, operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrMemory) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrProcessing) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Wrap(ErrTimeout, component, operation, "deadline exceeded", err)
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "memory") || strings.Contains(msg, "alloc") || strings.Contains(msg, "oom"):
		return Wrap(ErrMemory, component, operation, "engine out of memory", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return Wrap(ErrTimeout, component, operation, "engine stalled", err)
	default:
		return Wrap(ErrProcessing, component, operation, "engine failure", err)
	}
}

// Message returns the human-readable text the UI should show for err,
// stripped of the marker prefix when possible.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "pipeline failure"
	}
	return strings.Join(parts, ": ")
}
