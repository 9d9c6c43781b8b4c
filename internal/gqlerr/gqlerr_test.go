package gqlerr_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/gqlerr"
)

func TestError_WithPath(t *testing.T) {
	e := gqlerr.UnknownField("User", "secret")
	if e.Code() != "UNKNOWN_FIELD" {
		t.Fatalf("expected UNKNOWN_FIELD, got %s", e.Code())
	}

	withPath := e.WithPath("user", 0, "secret")
	if len(withPath.Path) != 3 || withPath.Path[2] != "secret" {
		t.Fatalf("unexpected path: %v", withPath.Path)
	}
	if len(e.Path) != 0 {
		t.Fatal("WithPath must not mutate the receiver")
	}
}

func TestError_ErrorString(t *testing.T) {
	e := gqlerr.UnknownType("Widget")
	if e.Error() == "" {
		t.Fatal("expected non-empty error string")
	}
}
