package joberr

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(KindGeneration, "inference fault")
	if got := err.Error(); got != "generation_error: inference fault" {
		t.Errorf("Error() = %q", got)
	}
}

func TestWrapPreservesSpecificKind(t *testing.T) {
	inner := New(KindPathTraversal, "user id contains path traversal sequence")

	// A more specific kind assigned closer to the failure must survive an
	// outer Wrap with a broader stage kind.
	outer := Wrap(KindPathValidation, fmt.Errorf("derive path: %w", inner))
	if outer.Kind != KindPathTraversal {
		t.Errorf("kind = %q, want %q", outer.Kind, KindPathTraversal)
	}
}

func TestWrapUntypedError(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(KindUpload, cause)

	if err.Kind != KindUpload {
		t.Errorf("kind = %q", err.Kind)
	}
	if !errors.Is(err, cause) {
		t.Error("wrapped error lost its cause")
	}
}

func TestWith(t *testing.T) {
	err := New(KindInitialization, "insufficient device memory").
		With("reason", ReasonInsufficientCapacity).
		With("available_mb", 2048)

	if err.Details["reason"] != ReasonInsufficientCapacity {
		t.Errorf("reason = %v", err.Details["reason"])
	}
	if err.Details["available_mb"] != 2048 {
		t.Errorf("available_mb = %v", err.Details["available_mb"])
	}
}

func TestKindOf(t *testing.T) {
	if got := KindOf(New(KindTimeout, "deadline exceeded")); got != KindTimeout {
		t.Errorf("KindOf = %q", got)
	}
	if got := KindOf(fmt.Errorf("outer: %w", New(KindUpload, "rejected"))); got != KindUpload {
		t.Errorf("KindOf through wrap = %q", got)
	}
	if got := KindOf(errors.New("plain")); got != "" {
		t.Errorf("KindOf(plain) = %q, want empty", got)
	}
}
