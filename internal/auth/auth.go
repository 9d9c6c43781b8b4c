// Package auth defines the runtime's authentication/authorization seams
// (§6's authorization hook, §4.5's Authenticated/RequiresScopes/Authorized
// modifier handling). It is a pure interface boundary: the spec's Non-goals
// exclude concrete identity-provider integration, and no JWT/OIDC library
// appears anywhere in the retrieved example pack, so this package stops at
// the contract rather than fabricating a dependency (see DESIGN.md).
package auth

import "context"

// Token is the caller's resolved identity for one request. A Token with
// Anonymous set fails every @authenticated check and, holding no Scopes,
// every @requiresScopes check with a non-empty DNF. The zero value is not
// anonymous: Anonymous is false until a caller sets it.
type Token struct {
	Subject   string
	Scopes    []string
	Anonymous bool
}

// SatisfiesDNF reports whether the token's scopes cover at least one
// conjunction of a @requiresScopes DNF set (§4.5): outer slice is OR'd,
// inner slice is AND'd.
func (t Token) SatisfiesDNF(dnf [][]string) bool {
	if len(dnf) == 0 {
		return true
	}
	have := make(map[string]bool, len(t.Scopes))
	for _, s := range t.Scopes {
		have[s] = true
	}
	for _, conjunction := range dnf {
		ok := true
		for _, need := range conjunction {
			if !have[need] {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// Provider authenticates an inbound request, e.g. by verifying a bearer
// token against a JWKS. Config.Authentication.Providers (§6) enumerates
// these; the core only calls through the interface.
type Provider interface {
	Authenticate(ctx context.Context, header string) (Token, error)
}

// Hook is the authorization callback pair from §6: called between binding
// and execution, once modifiers have narrowed down which fields/nodes are
// still live.
type Hook interface {
	// AuthorizeField implements authorize_edge_pre_execution: a denial is
	// surfaced as a field-scoped GraphqlError (§4.5's AuthorizedField).
	AuthorizeField(ctx context.Context, parentType, fieldName string, args map[string]any) error
	// AuthorizeNode implements authorize_node_pre_execution (§4.5's
	// AuthorizedNode): a denial impacts every field rooted at that node.
	AuthorizeNode(ctx context.Context, typeName string) error
}

// NoopHook denies nothing; used when a deployment registers no
// authorization runtime but the bound operation still carries @authorized
// directives (they become no-ops rather than hard failures).
type NoopHook struct{}

func (NoopHook) AuthorizeField(context.Context, string, string, map[string]any) error { return nil }
func (NoopHook) AuthorizeNode(context.Context, string) error                          { return nil }
