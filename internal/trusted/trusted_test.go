package trusted_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/trusted"
)

func TestLookupFunc_Adapts(t *testing.T) {
	var l trusted.Lookup = trusted.LookupFunc(func(hash string) (string, bool) {
		if hash == "abc" {
			return "{ user { id } }", true
		}
		return "", false
	})

	doc, ok := l.Lookup("abc")
	if !ok || doc != "{ user { id } }" {
		t.Fatalf("got (%q, %v), want (%q, true)", doc, ok, "{ user { id } }")
	}

	if _, ok := l.Lookup("missing"); ok {
		t.Fatal("expected miss for unknown hash")
	}
}

func TestNone_AlwaysMisses(t *testing.T) {
	if _, ok := trusted.None.Lookup("anything"); ok {
		t.Fatal("expected trusted.None to always miss")
	}
}
