// Package supergraph holds the in-memory, immutable-after-load representation
// of the composed federated schema: per-subgraph entity/field projections,
// join metadata (@key, @requires, @provides, @override, @external, @lookup,
// @is) and the authorization/cost directives carried on fields.
//
// It is the Go-native realization of §3.1 of the specification: a
// composed-schema arena plus per-subgraph side tables, never a pointer graph
// of owning back-references.
package supergraph

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/n9te9/graphql-parser/ast"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

// EntityKey is the parsed form of a single @key directive.
type EntityKey struct {
	FieldSet          string
	Resolvable        bool
	IsInterfaceObject bool
}

// Override records an @override(from: "subgraph") directive.
type Override struct {
	From string
}

// Field is the per-subgraph projection of a single field definition,
// carrying every federation/authorization directive the solver and executor
// need to reason about.
type Field struct {
	Name     string
	Type     ast.Type
	Args     []*ast.InputValueDefinition
	Requires []string
	Provides []string

	isShareable     bool
	isExternal      bool
	isInaccessible  bool
	isAuthenticated bool
	requiresScopes  [][]string // DNF: outer = OR, inner = AND
	cost            float64
	hasCost         bool
	override        *Override

	// @lookup / @is: this field, when present on Query, is an alternative
	// entry point to an entity that maps its argument to the entity's key.
	isLookup bool
	isField  string // the `@is(field: "...")` selection mapping
}

func (f *Field) IsShareable() bool        { return f.isShareable }
func (f *Field) IsExternal() bool         { return f.isExternal }
func (f *Field) IsInaccessible() bool     { return f.isInaccessible }
func (f *Field) IsAuthenticated() bool    { return f.isAuthenticated }
func (f *Field) RequiresScopes() [][]string { return f.requiresScopes }
func (f *Field) Cost() (float64, bool)    { return f.cost, f.hasCost }
func (f *Field) GetOverride() *Override   { return f.override }
func (f *Field) IsLookup() bool           { return f.isLookup }
func (f *Field) IsField() string          { return f.isField }

// Entity is an object type carrying at least one @key directive.
type Entity struct {
	Keys           []EntityKey
	isExtension    bool
	isInaccessible bool
	Fields         map[string]*Field
}

func (e *Entity) IsExtension() bool    { return e.isExtension }
func (e *Entity) IsInaccessible() bool { return e.isInaccessible }

// IsResolvable reports whether the entity has at least one resolvable key.
func (e *Entity) IsResolvable() bool {
	for _, k := range e.Keys {
		if k.Resolvable {
			return true
		}
	}
	return false
}

// SubGraph is one federated backend service: its name, endpoint, parsed
// schema and extracted entity/lookup side tables.
type SubGraph struct {
	Name     string
	Host     string
	Schema   *ast.Document
	entities map[string]*Entity
	lookups  map[string]*Field // entity type name -> Query-root @lookup field
}

// NewSubGraph parses src as a GraphQL SDL document and extracts its entity
// and lookup side tables. Grounded on subgraph_v2.go's NewSubGraphV2,
// generalized with @external/@override/@inaccessible/@authenticated/
// @requiresScopes/@cost/@lookup/@is parsing.
func NewSubGraph(name string, src []byte, host string) (*SubGraph, error) {
	l := lexer.New(string(src))
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		return nil, fmt.Errorf("parse subgraph %q schema: %v", name, p.Errors())
	}

	sg := &SubGraph{
		Name:     name,
		Host:     host,
		Schema:   doc,
		entities: make(map[string]*Entity),
		lookups:  make(map[string]*Field),
	}

	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if isEntity(d.Directives) {
				sg.entities[d.Name.String()] = buildEntity(d.Directives, d.Fields, false)
			}
			if d.Name.String() == "Query" {
				sg.collectLookups(d.Fields)
			}
		case *ast.ObjectTypeExtension:
			if isEntity(d.Directives) {
				sg.entities[d.Name.String()] = buildEntity(d.Directives, d.Fields, true)
			}
		}
	}

	return sg, nil
}

func buildEntity(directives []*ast.Directive, fields []*ast.FieldDefinition, extension bool) *Entity {
	e := &Entity{
		Keys:           parseEntityKeys(directives),
		isExtension:    extension,
		isInaccessible: hasDirective(directives, "inaccessible"),
		Fields:         make(map[string]*Field),
	}
	for _, field := range fields {
		e.Fields[field.Name.String()] = parseField(field)
	}
	return e
}

func (sg *SubGraph) collectLookups(fields []*ast.FieldDefinition) {
	for _, f := range fields {
		parsed := parseField(f)
		if parsed.isLookup {
			sg.lookups[returnTypeName(f.Type)] = parsed
		}
	}
}

func (sg *SubGraph) GetEntities() map[string]*Entity { return sg.entities }

func (sg *SubGraph) GetEntity(name string) (*Entity, bool) {
	e, ok := sg.entities[name]
	return e, ok
}

// GetLookup returns the @lookup root field that resolves typeName, if any.
func (sg *SubGraph) GetLookup(typeName string) (*Field, bool) {
	f, ok := sg.lookups[typeName]
	return f, ok
}

func isEntity(directives []*ast.Directive) bool { return hasDirective(directives, "key") }

func hasDirective(directives []*ast.Directive, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

func directive(directives []*ast.Directive, name string) (*ast.Directive, bool) {
	for _, d := range directives {
		if d.Name == name {
			return d, true
		}
	}
	return nil, false
}

func stringArg(d *ast.Directive, name string) (string, bool) {
	for _, arg := range d.Arguments {
		if arg.Name.String() == name {
			return strings.Trim(arg.Value.String(), "\""), true
		}
	}
	return "", false
}

func parseEntityKeys(directives []*ast.Directive) []EntityKey {
	var keys []EntityKey
	for _, d := range directives {
		if d.Name != "key" {
			continue
		}
		key := EntityKey{Resolvable: true}
		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "fields":
				key.FieldSet = strings.Trim(arg.Value.String(), "\"")
			case "resolvable":
				if arg.Value.String() == "false" {
					key.Resolvable = false
				}
			}
		}
		keys = append(keys, key)
	}
	return keys
}

// parseField builds a Field from a field definition, extracting every
// federation and authorization directive it carries.
func parseField(field *ast.FieldDefinition) *Field {
	f := &Field{
		Name:      field.Name.String(),
		Type:      field.Type,
		Args:      field.Arguments,
		Requires:  []string{},
		Provides:  []string{},
	}

	for _, d := range field.Directives {
		switch d.Name {
		case "requires":
			if v, ok := stringArg(d, "fields"); ok {
				f.Requires = strings.Fields(v)
			} else if len(d.Arguments) > 0 {
				f.Requires = strings.Fields(strings.Trim(d.Arguments[0].Value.String(), "\""))
			}
		case "provides":
			if v, ok := stringArg(d, "fields"); ok {
				f.Provides = strings.Fields(v)
			} else if len(d.Arguments) > 0 {
				f.Provides = strings.Fields(strings.Trim(d.Arguments[0].Value.String(), "\""))
			}
		case "shareable":
			f.isShareable = true
		case "external":
			f.isExternal = true
		case "inaccessible":
			f.isInaccessible = true
		case "authenticated":
			f.isAuthenticated = true
		case "override":
			if from, ok := stringArg(d, "from"); ok {
				f.override = &Override{From: from}
			}
		case "requiresScopes":
			f.requiresScopes = parseScopes(d)
		case "cost":
			if v, ok := floatArg(d, "weight"); ok {
				f.cost, f.hasCost = v, true
			}
		case "lookup":
			f.isLookup = true
		case "is":
			if v, ok := stringArg(d, "field"); ok {
				f.isField = v
			}
		}
	}

	// @is lives on the lookup field's argument, not the field itself:
	// `productBatch(input: Lookup! @is(field: "{ id }")): Product! @lookup`.
	for _, arg := range field.Arguments {
		if ad, ok := directive(arg.Directives, "is"); ok {
			if v, ok := stringArg(ad, "field"); ok {
				f.isField = v
			}
		}
	}

	return f
}

// parseScopes parses @requiresScopes(scopes: [["a","b"],["c"]]) into a DNF:
// outer list is OR'd, each inner list is AND'd.
func parseScopes(d *ast.Directive) [][]string {
	for _, arg := range d.Arguments {
		if arg.Name.String() != "scopes" {
			continue
		}
		// ast's Value.String() renders the list literal; fall back to a
		// best-effort bracket/quote strip since the parser doesn't expose a
		// structured list-of-list accessor for directive arguments.
		raw := arg.Value.String()
		return parseScopeLiteral(raw)
	}
	return nil
}

func parseScopeLiteral(raw string) [][]string {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	if raw == "" {
		return nil
	}
	var groups [][]string
	depth := 0
	start := 0
	for i, r := range raw {
		switch r {
		case '[':
			depth++
			if depth == 1 {
				start = i + 1
			}
		case ']':
			depth--
			if depth == 0 {
				groups = append(groups, splitQuoted(raw[start:i]))
			}
		}
	}
	return groups
}

func splitQuoted(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.Trim(part, "\"")
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func floatArg(d *ast.Directive, name string) (float64, bool) {
	for _, arg := range d.Arguments {
		if arg.Name.String() == name {
			v, err := strconv.ParseFloat(arg.Value.String(), 64)
			if err != nil {
				return 0, false
			}
			return v, true
		}
	}
	return 0, false
}

func returnTypeName(t ast.Type) string {
	switch v := t.(type) {
	case *ast.NamedType:
		return v.Name.String()
	case *ast.ListType:
		return returnTypeName(v.Type)
	case *ast.NonNullType:
		return returnTypeName(v.Type)
	}
	return ""
}
