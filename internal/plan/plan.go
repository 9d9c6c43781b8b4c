// Package plan materializes a bound operation into an ordered set of
// subgraph-bound partitions (§4.4): each partition carries the selection
// text to send to one subgraph, the entity-join representation it needs
// (if any) and the dependency edges the executor schedules on.
//
// Grounded on federation/planner/planner_v2.go's boundary-field walk
// (findAndBuildEntitySteps/injectKeyFieldsIntoParentStep/getKeyFields),
// adapted from mutating raw ast.Selection slices to operating on the
// immutable internal/bind.Field tree produced by operation binding.
package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/querygraph"
	"github.com/n9te9/federation-core/internal/solver"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/ast"
)

// StepType discriminates a root operation partition from an entity-join one.
type StepType int

const (
	StepTypeQuery StepType = iota
	StepTypeEntity
)

// Partition is one subgraph-bound unit of work (§3.3's "Plan partition").
type Partition struct {
	ID            string
	SubGraph      *supergraph.SubGraph
	StepType      StepType
	ParentType    string
	SelectionSet  []*bind.Field
	Path          []string
	DependsOn     []string
	InsertionPath []string

	// RepresentationKeys are the field names (including __typename) the
	// executor must read from the parent partition's response at Path to
	// build each _entities representation. Set only on StepTypeEntity
	// partitions.
	RepresentationKeys []string
}

// Plan is the full ordered set of partitions for one bound operation.
type Plan struct {
	Partitions     []*Partition
	RootPartitions []string
	OperationType  ast.OperationKind
}

type materializer struct {
	schema *supergraph.Schema
	plan   *Plan
	byKey  map[string]*Partition
	nextID int

	// graph is the bipartite query graph (§4.2) built once per Materialize
	// call, populated per-operation by solve() and then solved by
	// solver.Solve (§4.3); pickOwner reads its answer from owned and falls
	// back to its own Dijkstra tie-break only for positions solve() never
	// saw (defensive; every bound field is walked by solve()).
	graph *querygraph.Graph

	// tree is solve()'s solver.Tree, kept for diagnostics/future reuse
	// (e.g. surfacing which fields were @requires-promoted).
	tree *solver.Tree

	// owned maps a response path (dot-joined ResponseKeys from the
	// operation root) to the subgraph the solved tree picked to serve it -
	// the plan's ownership decisions are read from here, not recomputed
	// ad hoc, so the materialized plan is genuinely the solved tree (§4.4).
	owned map[string]*supergraph.SubGraph
}

// pickOwner resolves the owning subgraph for typeName.fieldName at response
// path. With a single candidate it's a direct lookup. With several - the
// @shareable / entity-field case the Steiner-tree solver exists to handle -
// it first asks owned, solve()'s precomputed answer for this exact
// position; only a path solve() never populated (defensive) falls back to
// preferred-affinity plus an ad hoc Dijkstra tie-break.
func (m *materializer) pickOwner(typeName, fieldName string, preferred *supergraph.SubGraph, path string) *supergraph.SubGraph {
	owners := m.schema.GetSubGraphsForField(typeName, fieldName)
	if len(owners) == 0 {
		return nil
	}
	if len(owners) == 1 {
		return owners[0]
	}
	if sg, ok := m.owned[path]; ok {
		return sg
	}
	if preferred != nil {
		for _, o := range owners {
			if o.Name == preferred.Name {
				return o
			}
		}
	}

	var entry []string
	if preferred != nil {
		entry = []string{querygraph.ResolverKey(preferred.Name)}
	} else {
		for _, o := range owners {
			entry = append(entry, querygraph.ResolverKey(o.Name))
		}
	}
	sp := m.graph.Dijkstra(entry)

	best, bestCost := owners[0], querygraph.Unreachable
	for _, o := range owners {
		if c := sp.Dist[querygraph.ProvidableFieldKey(o.Name, typeName, fieldName)]; c < bestCost {
			best, bestCost = o, c
		}
	}
	return best
}

// Materialize builds a Plan for op against schema. Root fields are grouped
// by their owning subgraph (§4.4 step 1), except in a mutation, where each
// root field gets its own partition in document order; each group recurses through its
// own unfiltered selection tree looking for boundary fields - fields whose
// owner, or whose return entity type's owner, differs from the current
// partition's subgraph - and spins off dependent entity-join partitions for
// them (§4.4 steps 2-4).
func Materialize(op *bind.Operation, schema *supergraph.Schema) (*Plan, error) {
	m := &materializer{
		schema: schema,
		plan:   &Plan{OperationType: op.Type},
		byKey:  make(map[string]*Partition),
		graph:  querygraph.Build(schema.SubGraphs),
	}

	if err := m.solve(op); err != nil {
		return nil, err
	}

	bySubGraph := make(map[string][]*bind.Field)
	owners := make(map[string]*supergraph.SubGraph)
	var order []string
	for i, f := range op.SelectionSet {
		owner := m.pickOwner(op.RootType, f.FieldName, nil, f.ResponseKey)
		if owner == nil && f.FieldName != "__typename" {
			return nil, gqlerr.UnknownField(op.RootType, f.FieldName)
		}
		name := ""
		if owner != nil {
			name = owner.Name
		}
		if op.Type == ast.Mutation {
			// One partition per mutation root field; the zero-padded index
			// keeps document order through the sort below.
			name = fmt.Sprintf("%06d|%s", i, name)
		}
		if owner != nil {
			owners[name] = owner
		}
		if _, ok := bySubGraph[name]; !ok {
			order = append(order, name)
		}
		bySubGraph[name] = append(bySubGraph[name], f)
	}
	sort.Strings(order)

	for _, name := range order {
		fields := bySubGraph[name]
		sg := owners[name]

		filtered := m.filterBySubGraph(fields, op.RootType, sg, true)
		if len(filtered) == 0 {
			continue
		}

		root := &Partition{
			ID:         m.newID(),
			SubGraph:   sg,
			StepType:   StepTypeQuery,
			ParentType: op.RootType,
			SelectionSet: filtered,
		}
		m.plan.Partitions = append(m.plan.Partitions, root)
		m.plan.RootPartitions = append(m.plan.RootPartitions, root.ID)

		for _, f := range fields {
			if err := m.findBoundaryFields(f, op.RootType, sg, root, []string{f.ResponseKey}); err != nil {
				return nil, err
			}
		}
	}

	if len(m.plan.Partitions) == 0 {
		return nil, gqlerr.CouldNotPlanAnyField("<root>")
	}

	return m.plan, nil
}

func (m *materializer) newID() string {
	m.nextID++
	return fmt.Sprintf("p%d", m.nextID)
}

// filterBySubGraph keeps only the fields resolvable by sg, recursing into
// children; when a field's children are entirely filtered away but the
// field itself isn't a scalar leaf, __typename is injected so the
// downstream boundary step still has a discriminator to key off of.
// Grounded on planner_v2.go's buildStepSelections.
func (m *materializer) filterBySubGraph(fields []*bind.Field, parentType string, sg *supergraph.SubGraph, isRoot bool) []*bind.Field {
	var out []*bind.Field
	for _, f := range fields {
		if f.FieldName == "__typename" {
			out = append(out, f)
			continue
		}
		if !isRoot {
			entity, ok := sg.GetEntity(parentType)
			if !ok {
				continue
			}
			if fd, ok := entity.Fields[f.FieldName]; !ok || fd.IsExternal() {
				continue
			}
		} else if owner := m.pickOwner(parentType, f.FieldName, sg, f.ResponseKey); owner == nil || owner.Name != sg.Name {
			continue
		}

		childType, _ := childTypeName(m.schema, parentType, f.FieldName)
		var children []*bind.Field
		if len(f.SelectionSet) > 0 {
			children = m.filterBySubGraph(f.SelectionSet, childType, sg, false)
			if len(children) == 0 && !hasTypename(children) {
				children = append(children, typenameField())
			}
		}

		out = append(out, &bind.Field{
			ResponseKey:  f.ResponseKey,
			FieldName:    f.FieldName,
			ParentType:   parentType,
			Args:         f.Args,
			SelectionSet: children,
			Modifiers:    f.Modifiers,
			Position:     f.Position,
			Source:       f.Source,
		})
	}
	return out
}

func hasTypename(fields []*bind.Field) bool {
	for _, f := range fields {
		if f.FieldName == "__typename" {
			return true
		}
	}
	return false
}

func typenameField() *bind.Field {
	return &bind.Field{ResponseKey: "__typename", FieldName: "__typename"}
}

// findBoundaryFields walks the ORIGINAL (unfiltered) tree beneath f looking
// for fields owned by a different subgraph than parent's, or whose return
// type is an entity owned elsewhere, and materializes an entity-join
// Partition for each (§4.4 steps 2-4). Grounded on
// findAndBuildEntitySteps/ensureAndInjectKeyFields.
func (m *materializer) findBoundaryFields(f *bind.Field, parentType string, current *supergraph.SubGraph, parent *Partition, path []string) error {
	for _, child := range f.SelectionSet {
		if child.FieldName == "__typename" {
			continue
		}
		childParentType, err := childTypeName(m.schema, parentType, f.FieldName)
		if err != nil {
			childParentType = parentType
		}

		childPath := child.ResponseKey
		if joined := strings.Join(path, "."); joined != "" {
			childPath = joined + "." + child.ResponseKey
		}
		owner := m.pickOwner(childParentType, child.FieldName, current, childPath)
		fieldMismatch := owner != nil && owner.Name != current.Name

		childReturnType, _ := childTypeName(m.schema, childParentType, child.FieldName)
		entityOwner := m.schema.GetEntityOwnerSubGraph(childReturnType)
		entityMismatch := entityOwner != nil && entityOwner.Name != current.Name && len(child.SelectionSet) > 0

		if !fieldMismatch && !entityMismatch {
			if err := m.findBoundaryFields(child, childParentType, current, parent, append(path, child.ResponseKey)); err != nil {
				return err
			}
			continue
		}

		// Two distinct boundary shapes (§4.4 step 2): an extension case,
		// where the field itself belongs to another subgraph and we must
		// join childParentType (the entity holding it, living at `path`)
		// over there; and a reference case, where the field resolves fine
		// here but its return type is itself an entity owned elsewhere
		// (living at `path`+child), so nested sub-selections continue on
		// that subgraph instead.
		target := owner
		entityType := childParentType
		entityPath := path
		if !fieldMismatch {
			target = entityOwner
			entityType = childReturnType
			entityPath = append(append([]string{}, path...), child.ResponseKey)
		}

		// The representations _entities needs are extracted from parent's
		// own response at entityPath; make sure parent actually selects the
		// entity's key fields so that data is there to extract.
		keySource := current
		if _, ok := current.GetEntity(entityType); !ok {
			keySource = target
		}
		keys := getKeyFields(entityType, keySource)
		parent.SelectionSet = injectKeyFields(parent.SelectionSet, entityPath, keys)

		stepKey := fmt.Sprintf("%s|%s|%s|%v", target.Name, entityType, parent.ID, entityPath)
		step, exists := m.byKey[stepKey]
		if !exists {
			step = &Partition{
				ID:                 m.newID(),
				SubGraph:           target,
				StepType:           StepTypeEntity,
				ParentType:         entityType,
				SelectionSet:       nil,
				Path:               append([]string{}, entityPath...),
				DependsOn:          []string{parent.ID},
				InsertionPath:      append([]string{}, entityPath...),
				RepresentationKeys: keys,
			}
			m.byKey[stepKey] = step
			m.plan.Partitions = append(m.plan.Partitions, step)
		}

		// nextPath locates child relative to step's own SelectionSet, which
		// starts a fresh tree rooted at this boundary rather than continuing
		// parent's path: in the extension case step.SelectionSet's top level
		// is [child] itself; in the reference case it's child's children,
		// flattened to the top.
		childSelections := []*bind.Field{child}
		nextPath := []string{child.ResponseKey}
		if !fieldMismatch {
			// Reference case: only child's own nested selections belong to
			// the new subgraph, not child itself (current already resolves
			// the field; we're re-homing what's beneath it).
			childSelections = child.SelectionSet
			nextPath = nil
		}
		filtered := m.filterBySubGraph(childSelections, entityType, target, false)
		step.SelectionSet = mergeFields(step.SelectionSet, filtered)

		// childParentType, not childReturnType: findBoundaryFields's parentType
		// argument is always the owner type of the field being recursed into
		// (child, here), so the next frame re-derives the same childReturnType
		// from (childParentType, child.FieldName) that this frame just did.
		if err := m.findBoundaryFields(child, childParentType, target, step, nextPath); err != nil {
			return err
		}
	}
	return nil
}

// injectKeyFields walks fields along path (matching on ResponseKey) and, at
// the terminal node, ensures every name in keys is present as a selected
// child - adding a bare scalar selection for any that's missing. Grounded
// on planner_v2.go's ensureAndInjectKeyFields, simplified since bind.Bind
// already guarantees the path exists (it was walked to reach the boundary
// field in the first place).
func injectKeyFields(fields []*bind.Field, path []string, keys []string) []*bind.Field {
	if len(path) == 0 {
		return ensureKeys(fields, keys)
	}
	head, rest := path[0], path[1:]
	out := append([]*bind.Field{}, fields...)
	for i, f := range out {
		if f.ResponseKey != head {
			continue
		}
		nf := *f
		nf.SelectionSet = injectKeyFields(f.SelectionSet, rest, keys)
		out[i] = &nf
		return out
	}
	return fields
}

func ensureKeys(fields []*bind.Field, keys []string) []*bind.Field {
	have := make(map[string]bool, len(fields))
	for _, f := range fields {
		have[f.FieldName] = true
	}
	out := append([]*bind.Field{}, fields...)
	for _, k := range keys {
		if !have[k] {
			out = append(out, &bind.Field{ResponseKey: k, FieldName: k})
			have[k] = true
		}
	}
	return out
}

func mergeFields(existing, incoming []*bind.Field) []*bind.Field {
	byKey := make(map[string]*bind.Field, len(existing))
	out := append([]*bind.Field{}, existing...)
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

// getKeyFields returns the field names (including __typename) an entity
// join representation must carry, from the entity's first @key directive.
func getKeyFields(typeName string, sg *supergraph.SubGraph) []string {
	entity, ok := sg.GetEntity(typeName)
	if !ok || len(entity.Keys) == 0 {
		return []string{"__typename"}
	}
	fields := splitFieldSet(entity.Keys[0].FieldSet)
	return append([]string{"__typename"}, fields...)
}

func splitFieldSet(fieldSet string) []string {
	var out []string
	cur := ""
	for _, r := range fieldSet {
		if r == ' ' || r == '\t' || r == '\n' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}

func childTypeName(schema *supergraph.Schema, parentType, fieldName string) (string, error) {
	for _, def := range schema.Doc.Definitions {
		if td, ok := def.(*ast.ObjectTypeDefinition); ok && td.Name.String() == parentType {
			for _, f := range td.Fields {
				if f.Name.String() == fieldName {
					return namedType(f.Type), nil
				}
			}
		}
	}
	return "", fmt.Errorf("field %s not found on %s", fieldName, parentType)
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
