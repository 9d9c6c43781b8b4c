// Package bind implements operation binding & input coercion (§4.1): parse,
// validate and type-check a client operation against the supergraph,
// collapse fragments, assign stable query positions and capture the
// query-modifier rules (@skip/@include/@authenticated/@requiresScopes)
// that the executor later evaluates.
//
// Grounded on federation/planner/planner_v2.go's fragment-expansion walk
// (collectFragmentDefinitions/expandFragmentsInSelections), generalized from
// "flatten fragments into ast.Selection" into "produce an immutable bound
// field tree with merged duplicates, positions and modifier rules".
package bind

import (
	"fmt"

	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/ast"
)

// ModifierKind discriminates the query-modifier rule variants of §3.2.
type ModifierKind int

const (
	ModifierSkip ModifierKind = iota
	ModifierInclude
	ModifierAuthenticated
	ModifierRequiresScopes
	ModifierAuthorizedField
)

// Modifier is a tagged-variant query modifier rule attached to a bound field.
type Modifier struct {
	Kind ModifierKind
	// SkipIncludeVar/SkipIncludeConst hold the coerced Boolean condition for
	// ModifierSkip/ModifierInclude: a variable name (resolved at execution
	// time) or a literal constant.
	SkipIncludeVar   string
	SkipIncludeConst bool
	HasConst         bool
	Scopes           [][]string // DNF, for ModifierRequiresScopes
}

// Field is a single bound response position (§3.2's "Bound field").
type Field struct {
	ResponseKey  string
	FieldName    string
	ParentType   string
	Args         []*ast.Argument
	SelectionSet []*Field
	Modifiers    []Modifier
	Position     int
	Source       *ast.Field

	// DeferLabel is non-empty when this field sits inside a fragment marked
	// @defer (§6's incremental delivery): the executor/shaper group fields
	// sharing a label into one incremental patch instead of the initial
	// payload. Empty means the field is never deferred.
	DeferLabel string
}

// Operation is the immutable output of Bind: a parsed+validated, fragment-
// free selection tree ready for query-graph construction.
type Operation struct {
	Type         ast.OperationKind
	RootType     string
	SelectionSet []*Field
	Variables    map[string]any
	Doc          *ast.Document
}

const maxQueryPositions = 1 << 16

// Bind validates doc against schema, coerces variables, inlines fragments
// and produces a bound operation. variables are the raw, already-JSON-
// decoded values from the request; this function does not re-parse them.
func Bind(doc *ast.Document, schema *supergraph.Schema, variables map[string]any) (*Operation, error) {
	op := findOperation(doc)
	if op == nil {
		return nil, gqlerr.OperationParsingError("no operation found in document")
	}
	if len(op.SelectionSet) == 0 {
		return nil, gqlerr.OperationValidationError("operation has an empty selection set")
	}

	rootType := rootTypeName(op)
	if !typeExists(schema, rootType) {
		return nil, gqlerr.UnknownType(rootType)
	}

	fragments := collectFragments(doc)
	coerced, err := coerceVariables(schema, op, variables)
	if err != nil {
		return nil, err
	}

	varTypes := make(map[string]ast.Type, len(op.VariableDefinitions))
	for _, decl := range op.VariableDefinitions {
		varTypes[decl.Variable.Name.String()] = decl.Type
	}

	b := &binder{schema: schema, fragments: fragments, position: 0, varTypes: varTypes}
	fields, err := b.bindSelectionSet(op.SelectionSet, rootType, nil)
	if err != nil {
		return nil, err
	}

	return &Operation{
		Type:         op.Operation,
		RootType:     rootType,
		SelectionSet: fields,
		Variables:    coerced,
		Doc:          doc,
	}, nil
}

type binder struct {
	schema    *supergraph.Schema
	fragments map[string]*ast.FragmentDefinition
	position  int
	// varTypes is the operation's declared variable types, keyed by name
	// (without the leading $); consulted when a @skip/@include condition
	// references a variable so the reference can be checked against the
	// declaration instead of assumed valid (§4.1 step 2).
	varTypes map[string]ast.Type
}

// bindSelectionSet inlines fragments/inline fragments whose type condition
// intersects parentType, merges duplicate response keys (§4.1 steps 3-5),
// and assigns query positions (step 6).
func (b *binder) bindSelectionSet(selections []ast.Selection, parentType string, inherited []Modifier) ([]*Field, error) {
	byKey := make(map[string]*Field)
	var order []string

	var walk func(sels []ast.Selection, typeCond string, mods []Modifier, deferLabel string) error
	walk = func(sels []ast.Selection, typeCond string, mods []Modifier, deferLabel string) error {
		for _, sel := range sels {
			switch s := sel.(type) {
			case *ast.Field:
				name := s.Name.String()
				if name == "__schema" || name == "__type" {
					continue // served by a dedicated introspection resolver, never bound here
				}
				responseKey := name
				if s.Alias != nil && s.Alias.String() != "" {
					responseKey = s.Alias.String()
				}

				if name != "__typename" && isInaccessibleField(b.schema, typeCond, name) {
					return gqlerr.UnknownField(typeCond, name)
				}

				fieldMods, err := b.fieldModifiers(s, typeCond)
				if err != nil {
					return err
				}
				allMods := append(append([]Modifier{}, mods...), fieldMods...)

				existing, ok := byKey[responseKey]
				if !ok {
					b.position++
					if b.position >= maxQueryPositions {
						return gqlerr.TooManyFields()
					}

					childType := ""
					if name != "__typename" {
						childType, _ = fieldTypeName(b.schema, typeCond, name)
					}

					var children []*Field
					if len(s.SelectionSet) > 0 {
						children, err = b.bindSelectionSet(s.SelectionSet, childType, nil)
						if err != nil {
							return err
						}
					}

					byKey[responseKey] = &Field{
						ResponseKey:  responseKey,
						FieldName:    name,
						ParentType:   typeCond,
						Args:         s.Arguments,
						SelectionSet: children,
						Modifiers:    allMods,
						Position:     b.position,
						Source:       s,
						DeferLabel:   deferLabel,
					}
					order = append(order, responseKey)
				} else if len(s.SelectionSet) > 0 {
					childType := ""
					if name != "__typename" {
						childType, _ = fieldTypeName(b.schema, existing.ParentType, existing.FieldName)
					}
					merged, err := b.bindSelectionSet(s.SelectionSet, childType, nil)
					if err != nil {
						return err
					}
					existing.SelectionSet = mergeFields(existing.SelectionSet, merged)
				}

			case *ast.InlineFragment:
				cond := parentType
				if s.TypeCondition != nil {
					cond = s.TypeCondition.String()
				}
				if !b.typeConditionApplies(cond, parentType) {
					continue // unreachable branch dropped, not an error (§4.1 step 3)
				}
				label := deferLabel
				if l, ok := deferDirective(s.Directives); ok {
					label = l
				}
				if err := walk(s.SelectionSet, cond, mods, label); err != nil {
					return err
				}

			case *ast.FragmentSpread:
				frag, ok := b.fragments[s.Name.String()]
				if !ok {
					return gqlerr.UnknownFragment(s.Name.String())
				}
				cond := frag.TypeCondition.Name.String()
				if !b.typeConditionApplies(cond, parentType) {
					continue
				}
				label := deferLabel
				if l, ok := deferDirective(s.Directives); ok {
					label = l
				}
				if err := walk(frag.SelectionSet, cond, mods, label); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(selections, parentType, inherited, ""); err != nil {
		return nil, err
	}

	out := make([]*Field, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out, nil
}

// typeConditionApplies implements §4.1 step 4: a fragment's type condition
// can only ever match if it shares at least one concrete object type with
// parentType, computed by merge-intersecting their sorted possible-type
// arrays (Schema.PossibleTypes) rather than merely checking cond exists.
func (b *binder) typeConditionApplies(cond, parentType string) bool {
	if cond == "" || cond == parentType {
		return true
	}
	if !typeExists(b.schema, cond) {
		return false
	}
	return intersectsSorted(b.schema.PossibleTypes(cond), b.schema.PossibleTypes(parentType))
}

// intersectsSorted reports whether two ascending-sorted string slices share
// an element, merge-walking both in lockstep.
func intersectsSorted(a, b []string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}

func mergeFields(existing, incoming []*Field) []*Field {
	byKey := make(map[string]*Field, len(existing))
	out := append([]*Field{}, existing...)
	for _, f := range existing {
		byKey[f.ResponseKey] = f
	}
	for _, f := range incoming {
		if prev, ok := byKey[f.ResponseKey]; ok {
			prev.SelectionSet = mergeFields(prev.SelectionSet, f.SelectionSet)
			continue
		}
		out = append(out, f)
		byKey[f.ResponseKey] = f
	}
	return out
}

// deferDirective reports whether directives carries an unconditional
// @defer, returning its label argument (or a synthesized one when @defer
// carries no label, so fields still group into one patch).
func deferDirective(directives []*ast.Directive) (label string, ok bool) {
	for _, d := range directives {
		if d.Name != "defer" {
			continue
		}
		label = "defer"
		for _, arg := range d.Arguments {
			switch arg.Name.String() {
			case "label":
				if sv, ok := arg.Value.(*ast.StringValue); ok {
					label = sv.Value
				}
			case "if":
				if bv, ok := arg.Value.(*ast.BooleanValue); ok && !bv.Value {
					return "", false
				}
			}
		}
		return label, true
	}
	return "", false
}

// isInaccessibleField reports whether fieldName is marked @inaccessible on
// parentType in the subgraph GetFieldOwnerSubGraph picks for it (its first
// owner); other subgraphs defining the field are not consulted, and a
// parentType that is not an entity there reports false (§3.1's
// inaccessible flag): an
// inaccessible field is treated as absent from the public API rather than
// surfaced with a distinct error code, so a query referencing it fails the
// same way a genuinely unknown field would.
func isInaccessibleField(schema *supergraph.Schema, parentType, fieldName string) bool {
	if schema == nil || parentType == "" {
		return false
	}
	owner := schema.GetFieldOwnerSubGraph(parentType, fieldName)
	if owner == nil {
		return false
	}
	entity, ok := owner.GetEntity(parentType)
	if !ok {
		return false
	}
	fd, ok := entity.Fields[fieldName]
	return ok && fd.IsInaccessible()
}

func (b *binder) fieldModifiers(f *ast.Field, parentType string) ([]Modifier, error) {
	var mods []Modifier
	for _, d := range f.Directives {
		switch d.Name {
		case "skip":
			m, err := b.boolModifier(ModifierSkip, d)
			if err != nil {
				return nil, err
			}
			mods = append(mods, m)
		case "include":
			m, err := b.boolModifier(ModifierInclude, d)
			if err != nil {
				return nil, err
			}
			mods = append(mods, m)
		case "authenticated":
			mods = append(mods, Modifier{Kind: ModifierAuthenticated})
		case "requiresScopes":
			mods = append(mods, Modifier{Kind: ModifierRequiresScopes})
		case "authorized":
			mods = append(mods, Modifier{Kind: ModifierAuthorizedField})
		}
	}

	// Schema-declared @authenticated/@requiresScopes on the field definition
	// itself (not just the operation) also contribute to the modifier list.
	if parentType != "" {
		if owner := b.schema.GetFieldOwnerSubGraph(parentType, f.Name.String()); owner != nil {
			if entity, ok := owner.GetEntity(parentType); ok {
				if fd, ok := entity.Fields[f.Name.String()]; ok {
					if fd.IsAuthenticated() {
						mods = append(mods, Modifier{Kind: ModifierAuthenticated})
					}
					if scopes := fd.RequiresScopes(); len(scopes) > 0 {
						mods = append(mods, Modifier{Kind: ModifierRequiresScopes, Scopes: scopes})
					}
				}
			}
		}
	}

	return mods, nil
}

// boolModifier binds one @skip/@include condition. A variable-backed
// condition is checked against its declaration (must exist, must be
// Boolean) rather than trusted blindly, so a bad reference surfaces as a
// binding error instead of silently evaluating false at execution time.
func (b *binder) boolModifier(kind ModifierKind, d *ast.Directive) (Modifier, error) {
	for _, arg := range d.Arguments {
		if arg.Name.String() != "if" {
			continue
		}
		switch v := arg.Value.(type) {
		case *ast.BooleanValue:
			return Modifier{Kind: kind, HasConst: true, SkipIncludeConst: v.Value}, nil
		case *ast.Variable:
			ty, declared := b.varTypes[v.Name]
			if !declared {
				return Modifier{}, gqlerr.UnknownVariable(v.Name)
			}
			if supergraph.NamedTypeName(ty) != "Boolean" {
				return Modifier{}, gqlerr.IncorrectVariableType(v.Name, "Boolean")
			}
			return Modifier{Kind: kind, SkipIncludeVar: v.Name}, nil
		default:
			return Modifier{}, gqlerr.MissingDirectiveArgument(directiveName(d), "if")
		}
	}
	return Modifier{}, gqlerr.MissingDirectiveArgument(directiveName(d), "if")
}

func directiveName(d *ast.Directive) string {
	if d.Name == "skip" {
		return "skip"
	}
	return "include"
}

func findOperation(doc *ast.Document) *ast.OperationDefinition {
	for _, def := range doc.Definitions {
		if op, ok := def.(*ast.OperationDefinition); ok {
			return op
		}
	}
	return nil
}

func collectFragments(doc *ast.Document) map[string]*ast.FragmentDefinition {
	frags := make(map[string]*ast.FragmentDefinition)
	for _, def := range doc.Definitions {
		if f, ok := def.(*ast.FragmentDefinition); ok {
			frags[f.Name.String()] = f
		}
	}
	return frags
}

func rootTypeName(op *ast.OperationDefinition) string {
	switch op.Operation {
	case ast.Mutation:
		return "Mutation"
	case ast.Subscription:
		return "Subscription"
	default:
		return "Query"
	}
}

func typeExists(schema *supergraph.Schema, name string) bool {
	for _, def := range schema.Doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		case *ast.InterfaceTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		case *ast.UnionTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		case *ast.EnumTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		case *ast.ScalarTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		}
	}
	return name == "String" || name == "Int" || name == "Float" || name == "Boolean" || name == "ID"
}

func fieldTypeName(schema *supergraph.Schema, parentType, fieldName string) (string, error) {
	for _, def := range schema.Doc.Definitions {
		if td, ok := def.(*ast.ObjectTypeDefinition); ok && td.Name.String() == parentType {
			for _, f := range td.Fields {
				if f.Name.String() == fieldName {
					return namedType(f.Type), nil
				}
			}
		}
	}
	return "", fmt.Errorf("field %s not found on type %s", fieldName, parentType)
}

func namedType(t ast.Type) string {
	switch v := t.(type) {
	case *ast.NamedType:
		return v.Name.String()
	case *ast.ListType:
		return namedType(v.Type)
	case *ast.NonNullType:
		return namedType(v.Type)
	}
	return ""
}

