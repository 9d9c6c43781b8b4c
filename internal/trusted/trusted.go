// Package trusted defines the persisted/trusted-document lookup seam (§6's
// "Persisted state. None required by the core; callers may supply a
// trusted-document cache keyed by document hash"). No storage backend is
// implemented here, matching the same externally-sourced-document seam
// gateway/schema_fetcher.go uses for SDL.
package trusted

// Lookup resolves a trusted document hash to its GraphQL source text; ok is
// false when the hash names no trusted document. The gateway's request path
// does not call it: ServeHTTP always parses the query text in the request.
type Lookup interface {
	Lookup(hash string) (document string, ok bool)
}

// LookupFunc adapts a plain function to Lookup.
type LookupFunc func(hash string) (string, bool)

func (f LookupFunc) Lookup(hash string) (string, bool) { return f(hash) }

// None is the zero-value lookup: every hash misses. Used when a deployment
// registers no trusted-document store.
var None Lookup = LookupFunc(func(string) (string, bool) { return "", false })
