package faults_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"gifsmith/internal/faults"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := faults.Wrap(faults.ErrNetwork, "probe", "fetch", "unreachable", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, faults.ErrNetwork) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"probe", "fetch", "unreachable"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		marker error
		want   faults.Kind
	}{
		{faults.ErrValidation, faults.KindValidation},
		{faults.ErrNotReady, faults.KindNotReady},
		{faults.ErrInitialization, faults.KindInitialization},
		{faults.ErrNetwork, faults.KindNetwork},
		{faults.ErrTimeout, faults.KindTimeout},
		{faults.ErrMemory, faults.KindMemory},
		{faults.ErrRenderSurface, faults.KindRenderSurface},
		{faults.ErrProcessing, faults.KindProcessing},
	}
	for _, tc := range cases {
		err := faults.Wrap(tc.marker, "engine", "composite", "failed", nil)
		if got := faults.Classify(err); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.marker, got, tc.want)
		}
	}
	if got := faults.Classify(context.DeadlineExceeded); got != faults.KindTimeout {
		t.Fatalf("deadline exceeded classified as %s, want timeout", got)
	}
}

func TestRetryTable(t *testing.T) {
	terminal := []faults.Kind{faults.KindValidation, faults.KindMemory, faults.KindRenderSurface, faults.KindNotReady}
	for _, kind := range terminal {
		if faults.MaxAttempts(kind) != 1 {
			t.Fatalf("expected %s to be terminal", kind)
		}
	}
	if got := faults.MaxAttempts(faults.KindNetwork); got != 3 {
		t.Fatalf("network attempts = %d, want 3", got)
	}
	if got := faults.MaxAttempts(faults.KindInitialization); got != 2 {
		t.Fatalf("initialization attempts = %d, want 2", got)
	}
	if got := faults.MaxAttempts(faults.KindTimeout); got != 2 {
		t.Fatalf("timeout attempts = %d, want 2", got)
	}
	if faults.Retryable(faults.Wrap(faults.ErrValidation, "overlay", "check", "empty", nil)) {
		t.Fatal("validation errors must not be retryable")
	}
	if !faults.Retryable(faults.Wrap(faults.ErrProcessing, "engine", "composite", "crash", nil)) {
		t.Fatal("processing errors must be retryable")
	}
}

func TestClassifyEngineFailure(t *testing.T) {
	cases := []struct {
		message string
		want    faults.Kind
	}{
		{"Cannot allocate memory", faults.KindMemory},
		{"out of memory while scaling", faults.KindMemory},
		{"operation timed out after 60s", faults.KindTimeout},
		{"filter graph parse failure", faults.KindProcessing},
	}
	for _, tc := range cases {
		err := faults.ClassifyEngineFailure("engine", "composite", errors.New(tc.message))
		if got := faults.Classify(err); got != tc.want {
			t.Fatalf("ClassifyEngineFailure(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
	if err := faults.ClassifyEngineFailure("engine", "composite", nil); err != nil {
		t.Fatalf("nil error should stay nil, got %v", err)
	}

	// Already-tagged errors keep their tag.
	tagged := faults.Wrap(faults.ErrMemory, "engine", "start", "projected over budget", nil)
	if got := faults.Classify(faults.ClassifyEngineFailure("engine", "composite", tagged)); got != faults.KindMemory {
		t.Fatalf("expected memory tag to survive, got %s", got)
	}
}
