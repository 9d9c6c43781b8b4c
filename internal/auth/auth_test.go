package auth_test

import (
	"context"
	"testing"

	"github.com/n9te9/federation-core/internal/auth"
)

func TestToken_SatisfiesDNF(t *testing.T) {
	tok := auth.Token{Scopes: []string{"read:users", "write:users"}}

	cases := []struct {
		name string
		dnf  [][]string
		want bool
	}{
		{"empty DNF always satisfied", nil, true},
		{"single conjunction satisfied", [][]string{{"read:users"}}, true},
		{"conjunction missing a scope", [][]string{{"read:users", "admin"}}, false},
		{"second disjunct satisfied", [][]string{{"admin"}, {"write:users"}}, true},
		{"no disjunct satisfied", [][]string{{"admin"}, {"superadmin"}}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := tok.SatisfiesDNF(c.dnf); got != c.want {
				t.Errorf("SatisfiesDNF(%v) = %v, want %v", c.dnf, got, c.want)
			}
		})
	}
}

func TestNoopHook_DeniesNothing(t *testing.T) {
	var h auth.Hook = auth.NoopHook{}
	if err := h.AuthorizeField(context.Background(), "User", "secret", nil); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if err := h.AuthorizeNode(context.Background(), "User"); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}
