package supergraph

import (
	"fmt"
	"sort"

	"github.com/n9te9/graphql-parser/ast"
)

// Schema is the composed supergraph: the merged schema document plus the
// per-(type.field) ownership table recording which subgraphs can resolve it.
// Grounded on federation/graph/super_graph_v2.go's SuperGraphV2, generalized
// to route around @override and @external consistently and to expose the
// directive-derived facts the solver/executor need (inaccessible, lookup,
// cost, authorization).
type Schema struct {
	SubGraphs []*SubGraph
	Doc       *ast.Document
	Ownership map[string][]*SubGraph
}

// New composes a Schema from a list of subgraphs: merges their SDL
// definitions type-by-type, then builds the field ownership table.
func New(subGraphs []*SubGraph) (*Schema, error) {
	if len(subGraphs) == 0 {
		return nil, fmt.Errorf("supergraph: no subgraphs to compose")
	}

	s := &Schema{
		SubGraphs: subGraphs,
		Doc:       &ast.Document{Definitions: make([]ast.Definition, 0)},
		Ownership: make(map[string][]*SubGraph),
	}

	for _, sg := range subGraphs {
		s.mergeSchema(sg.Schema)
	}

	s.buildOwnership()

	return s, nil
}

func (s *Schema) mergeSchema(doc *ast.Document) {
	for _, def := range doc.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			s.mergeObjectType(d)
		case *ast.ObjectTypeExtension:
			s.mergeObjectTypeExtension(d)
		case *ast.InterfaceTypeDefinition:
			s.mergeInterfaceType(d)
		case *ast.InputObjectTypeDefinition:
			s.mergeInputObjectType(d)
		case *ast.EnumTypeDefinition:
			s.mergeEnumType(d)
		case *ast.ScalarTypeDefinition:
			s.mergeScalarType(d)
		case *ast.UnionTypeDefinition:
			s.mergeUnionType(d)
		case *ast.DirectiveDefinition:
			s.mergeDirectiveDef(d)
		}
	}
}

func (s *Schema) findObjectType(name string) *ast.ObjectTypeDefinition {
	for _, def := range s.Doc.Definitions {
		if od, ok := def.(*ast.ObjectTypeDefinition); ok && od.Name.String() == name {
			return od
		}
	}
	return nil
}

func (s *Schema) mergeObjectType(newDef *ast.ObjectTypeDefinition) {
	if existing := s.findObjectType(newDef.Name.String()); existing != nil {
		existing.Fields = mergeFieldDefs(existing.Fields, copyFieldDefs(newDef.Fields))
		existing.Directives = append(existing.Directives, copyDirectiveDefs(newDef.Directives)...)
		return
	}
	s.Doc.Definitions = append(s.Doc.Definitions, &ast.ObjectTypeDefinition{
		Name:       newDef.Name,
		Interfaces: newDef.Interfaces,
		Fields:     copyFieldDefs(newDef.Fields),
		Directives: copyDirectiveDefs(newDef.Directives),
	})
}

func (s *Schema) mergeObjectTypeExtension(newExt *ast.ObjectTypeExtension) {
	existing := s.findObjectType(newExt.Name.String())
	if existing == nil {
		// Extension with no base definition yet composed in this pass: treat
		// it as the base so later fields still merge correctly.
		s.Doc.Definitions = append(s.Doc.Definitions, &ast.ObjectTypeDefinition{
			Name:       newExt.Name,
			Fields:     copyFieldDefs(newExt.Fields),
			Directives: copyDirectiveDefs(newExt.Directives),
		})
		return
	}
	existing.Fields = mergeFieldDefs(existing.Fields, copyFieldDefs(newExt.Fields))
	existing.Directives = append(existing.Directives, copyDirectiveDefs(newExt.Directives)...)
}

func copyFieldDefs(fields []*ast.FieldDefinition) []*ast.FieldDefinition {
	if fields == nil {
		return nil
	}
	out := make([]*ast.FieldDefinition, len(fields))
	for i, f := range fields {
		out[i] = &ast.FieldDefinition{
			Name:       f.Name,
			Arguments:  f.Arguments,
			Type:       f.Type,
			Directives: copyDirectiveDefs(f.Directives),
		}
	}
	return out
}

func copyDirectiveDefs(directives []*ast.Directive) []*ast.Directive {
	if directives == nil {
		return nil
	}
	out := make([]*ast.Directive, len(directives))
	for i, d := range directives {
		out[i] = &ast.Directive{Name: d.Name, Arguments: d.Arguments}
	}
	return out
}

// mergeFieldDefs merges two field lists, keeping the first (owning)
// definition of a response key encountered. @override/@external resolution
// happens separately in buildOwnership; the merged schema only needs one
// syntactic definition per field name.
func mergeFieldDefs(existing, incoming []*ast.FieldDefinition) []*ast.FieldDefinition {
	seen := make(map[string]bool, len(existing))
	out := append([]*ast.FieldDefinition{}, existing...)
	for _, f := range existing {
		seen[f.Name.String()] = true
	}
	for _, f := range incoming {
		if !seen[f.Name.String()] {
			out = append(out, f)
			seen[f.Name.String()] = true
		}
	}
	return out
}

func (s *Schema) mergeInterfaceType(newDef *ast.InterfaceTypeDefinition) {
	for _, def := range s.Doc.Definitions {
		if id, ok := def.(*ast.InterfaceTypeDefinition); ok && id.Name.String() == newDef.Name.String() {
			id.Fields = append(id.Fields, newDef.Fields...)
			id.Directives = append(id.Directives, newDef.Directives...)
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

func (s *Schema) mergeInputObjectType(newDef *ast.InputObjectTypeDefinition) {
	for _, def := range s.Doc.Definitions {
		if id, ok := def.(*ast.InputObjectTypeDefinition); ok && id.Name.String() == newDef.Name.String() {
			id.Fields = append(id.Fields, newDef.Fields...)
			id.Directives = append(id.Directives, newDef.Directives...)
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

func (s *Schema) mergeEnumType(newDef *ast.EnumTypeDefinition) {
	for _, def := range s.Doc.Definitions {
		if ed, ok := def.(*ast.EnumTypeDefinition); ok && ed.Name.String() == newDef.Name.String() {
			ed.Values = append(ed.Values, newDef.Values...)
			ed.Directives = append(ed.Directives, newDef.Directives...)
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

func (s *Schema) mergeScalarType(newDef *ast.ScalarTypeDefinition) {
	for _, def := range s.Doc.Definitions {
		if sd, ok := def.(*ast.ScalarTypeDefinition); ok && sd.Name.String() == newDef.Name.String() {
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

func (s *Schema) mergeUnionType(newDef *ast.UnionTypeDefinition) {
	for _, def := range s.Doc.Definitions {
		if ud, ok := def.(*ast.UnionTypeDefinition); ok && ud.Name.String() == newDef.Name.String() {
			ud.Types = append(ud.Types, newDef.Types...)
			ud.Directives = append(ud.Directives, newDef.Directives...)
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

func (s *Schema) mergeDirectiveDef(newDef *ast.DirectiveDefinition) {
	for _, def := range s.Doc.Definitions {
		if dd, ok := def.(*ast.DirectiveDefinition); ok && dd.Name.String() == newDef.Name.String() {
			return
		}
	}
	s.Doc.Definitions = append(s.Doc.Definitions, newDef)
}

// buildOwnership computes, for every Type.field in the merged schema, the
// ordered list of subgraphs that can resolve it: @override relocates
// ownership away from its origin subgraph, @external removes a subgraph from
// contention entirely.
func (s *Schema) buildOwnership() {
	for _, def := range s.Doc.Definitions {
		objDef, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}
		typeName := objDef.Name.String()

		for _, field := range objDef.Fields {
			fieldName := field.Name.String()
			key := typeName + "." + fieldName

			var overrideFrom string
			var overrideSubGraph *SubGraph
			for _, sg := range s.SubGraphs {
				if entity, exists := sg.GetEntity(typeName); exists {
					if ef, ok := entity.Fields[fieldName]; ok {
						if o := ef.GetOverride(); o != nil {
							overrideFrom, overrideSubGraph = o.From, sg
							break
						}
					}
				}
			}

			for _, sg := range s.SubGraphs {
				if overrideFrom != "" && sg.Name == overrideFrom {
					continue
				}
				if s.canResolveField(sg, typeName, fieldName) {
					s.Ownership[key] = append(s.Ownership[key], sg)
				}
			}

			if overrideSubGraph != nil {
				found := false
				for _, owner := range s.Ownership[key] {
					if owner.Name == overrideSubGraph.Name {
						found = true
						break
					}
				}
				if !found {
					s.Ownership[key] = append(s.Ownership[key], overrideSubGraph)
				}
			}
		}
	}
}

func (s *Schema) canResolveField(sg *SubGraph, typeName, fieldName string) bool {
	for _, def := range sg.Schema.Definitions {
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() != typeName {
				continue
			}
			for _, f := range d.Fields {
				if f.Name.String() == fieldName {
					return !hasDirective(f.Directives, "external")
				}
			}
			return false
		case *ast.ObjectTypeExtension:
			if d.Name.String() != typeName {
				continue
			}
			for _, f := range d.Fields {
				if f.Name.String() == fieldName {
					return !hasDirective(f.Directives, "external")
				}
			}
			return false
		}
	}
	return false
}

// GetSubGraphsForField returns every subgraph that can resolve typeName.fieldName.
func (s *Schema) GetSubGraphsForField(typeName, fieldName string) []*SubGraph {
	return s.Ownership[typeName+"."+fieldName]
}

// GetFieldOwnerSubGraph returns the first (preferred) resolver of a field.
func (s *Schema) GetFieldOwnerSubGraph(typeName, fieldName string) *SubGraph {
	owners := s.Ownership[typeName+"."+fieldName]
	if len(owners) > 0 {
		return owners[0]
	}
	return nil
}

// GetEntityOwnerSubGraph returns the subgraph that defines (not extends) an
// entity with a resolvable key, preferring a non-extension definition.
func (s *Schema) GetEntityOwnerSubGraph(typeName string) *SubGraph {
	for _, sg := range s.SubGraphs {
		if e, ok := sg.GetEntity(typeName); ok && !e.IsExtension() && e.IsResolvable() {
			return sg
		}
	}
	for _, sg := range s.SubGraphs {
		if e, ok := sg.GetEntity(typeName); ok && e.IsResolvable() {
			return sg
		}
	}
	return nil
}

// IsEntityType reports whether typeName carries a resolvable @key in any
// subgraph; a type whose keys are all resolvable: false reports false.
func (s *Schema) IsEntityType(typeName string) bool {
	return s.GetEntityOwnerSubGraph(typeName) != nil
}

// FieldTypeRef returns the merged-schema declared type of parentType.fieldName,
// wrapping (NonNull/List) included, for internal/shape's null-propagation
// walk (§4.6/§8's "null propagation" invariant).
func (s *Schema) FieldTypeRef(parentType, fieldName string) (ast.Type, bool) {
	for _, def := range s.Doc.Definitions {
		var fields []*ast.FieldDefinition
		switch d := def.(type) {
		case *ast.ObjectTypeDefinition:
			if d.Name.String() != parentType {
				continue
			}
			fields = d.Fields
		case *ast.InterfaceTypeDefinition:
			if d.Name.String() != parentType {
				continue
			}
			fields = d.Fields
		default:
			continue
		}
		for _, f := range fields {
			if f.Name.String() == fieldName {
				return f.Type, true
			}
		}
	}
	return nil, false
}

// PossibleTypes returns, sorted ascending, every concrete object type that
// satisfies name: name itself if it's already an object type, a union's
// member types, or every object type that declares name among its
// implemented interfaces. Used by operation binding to compute fragment
// type-condition applicability by intersection (§4.1 step 4) instead of a
// bare existence check.
func (s *Schema) PossibleTypes(name string) []string {
	for _, def := range s.Doc.Definitions {
		if od, ok := def.(*ast.ObjectTypeDefinition); ok && od.Name.String() == name {
			return []string{name}
		}
	}

	for _, def := range s.Doc.Definitions {
		if ud, ok := def.(*ast.UnionTypeDefinition); ok && ud.Name.String() == name {
			out := make([]string, 0, len(ud.Types))
			for _, t := range ud.Types {
				out = append(out, t.Name.String())
			}
			sort.Strings(out)
			return out
		}
	}

	var out []string
	for _, def := range s.Doc.Definitions {
		od, ok := def.(*ast.ObjectTypeDefinition)
		if !ok {
			continue
		}
		for _, iface := range od.Interfaces {
			if iface.Name.String() == name {
				out = append(out, od.Name.String())
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsAbstractType reports whether name is an interface or union in the merged
// schema, i.e. whether resolving its concrete shape needs a runtime
// __typename read (§4.6's object-identifier policy).
func (s *Schema) IsAbstractType(name string) bool {
	for _, def := range s.Doc.Definitions {
		switch d := def.(type) {
		case *ast.InterfaceTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		case *ast.UnionTypeDefinition:
			if d.Name.String() == name {
				return true
			}
		}
	}
	return false
}

// IsNonNullType reports whether t is wrapped in a GraphQL NonNull.
func IsNonNullType(t ast.Type) bool {
	_, ok := t.(*ast.NonNullType)
	return ok
}

// NamedTypeName strips List/NonNull wrapping down to the bare type name.
func NamedTypeName(t ast.Type) string {
	switch v := t.(type) {
	case *ast.NamedType:
		return v.Name.String()
	case *ast.ListType:
		return NamedTypeName(v.Type)
	case *ast.NonNullType:
		return NamedTypeName(v.Type)
	}
	return ""
}

// GetLookup returns the first subgraph that declares a @lookup root field
// for typeName, and that field, per §4.4's lookup-vs-_entities choice.
func (s *Schema) GetLookup(typeName string) (*SubGraph, *Field, bool) {
	for _, sg := range s.SubGraphs {
		if f, ok := sg.GetLookup(typeName); ok {
			return sg, f, true
		}
	}
	return nil, nil, false
}
