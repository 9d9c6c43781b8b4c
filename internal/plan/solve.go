// Per-operation query graph population and Steiner-tree solving (§4.2/§4.3):
// querygraph.Build only lays down the subgraph-wide resolver/providable-
// field skeleton; this file adds the QueryField nodes and Field/Requires
// edges for one bound operation (the per-operation step querygraph.Build's
// doc comment assigns to this file, where the skeleton graph already lives)
// and runs solver.Solve
// against it, so Materialize's boundary decisions come from the solved tree
// instead of a per-field ad hoc Dijkstra call. Grounded on solver.go's own
// Tree/MaxFixPointIterations contract and solver_test.go's calling
// convention (a single synthetic root, QueryFieldKey terminals reachable
// through ProvidableField Field-edges).
package plan

import (
	"sort"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/querygraph"
	"github.com/n9te9/federation-core/internal/solver"
	"github.com/n9te9/federation-core/internal/supergraph"
)

// solverRoot is the synthetic entry point solver.Solve grows its tree from:
// every subgraph's resolver is one CreateChildResolver hop away from it, the
// same way a gateway itself has no home subgraph and must always pay to
// enter one.
const solverRoot = "root"

// solve populates m.graph with one QueryField node per response position in
// op (including nested ones) and a zero-weight Field edge from every
// candidate owner's ProvidableField node, then runs solver.Solve and
// records, per response path, the subgraph the solved tree actually used to
// reach that position (§4.4's "from the solved tree, emit plan partitions").
func (m *materializer) solve(op *bind.Operation) error {
	m.graph.Nodes[solverRoot] = &querygraph.Node{
		ID:       solverRoot,
		Kind:     querygraph.KindResolver,
		Edges:    map[string]int{},
		Provides: map[string]int{},
	}
	for _, sg := range m.schema.SubGraphs {
		m.graph.AddEdge(solverRoot, querygraph.ResolverKey(sg.Name), 1)
	}

	providerByPath := make(map[string][]string)
	requiresResolved := make(map[string]bool)
	var terminals []string

	var walk func(fields []*bind.Field, parentType, path string) error
	walk = func(fields []*bind.Field, parentType, path string) error {
		for _, f := range fields {
			if f.FieldName == "__typename" {
				continue
			}
			fieldPath := f.ResponseKey
			if path != "" {
				fieldPath = path + "." + f.ResponseKey
			}

			owners := m.schema.GetSubGraphsForField(parentType, f.FieldName)
			if len(owners) == 0 {
				continue
			}

			qfKey := querygraph.QueryFieldKey(fieldPath)
			m.graph.AddQueryField(fieldPath, true, len(f.SelectionSet) == 0)

			for _, o := range owners {
				providerID := querygraph.ProvidableFieldKey(o.Name, parentType, f.FieldName)
				if _, ok := m.graph.Nodes[providerID]; !ok {
					// Root/non-entity field: querygraph.Build only lays
					// providable fields down for entity types, so this
					// position's provider is created lazily, entered
					// directly from its own subgraph's resolver at no
					// extra cost (the field is the entry point itself, not
					// a cross-subgraph hop).
					node := m.graph.AddProvidableField(o, parentType, f.FieldName)
					m.graph.AddEdge(querygraph.ResolverKey(o.Name), node.ID, 0)
				}
				m.graph.AddEdge(providerID, qfKey, 0)
				providerByPath[fieldPath] = append(providerByPath[fieldPath], providerID)

				if node := m.graph.Nodes[providerID]; len(node.Requires) > 0 && !requiresResolved[providerID] {
					resolved := make([]string, 0, len(node.Requires))
					for _, req := range node.Requires {
						reqPath := req
						if path != "" {
							reqPath = path + "." + req
						}
						resolved = append(resolved, querygraph.QueryFieldKey(reqPath))
					}
					node.Requires = resolved
					requiresResolved[providerID] = true
				}
			}

			terminals = append(terminals, qfKey)

			if len(f.SelectionSet) > 0 {
				childType, err := childTypeName(m.schema, parentType, f.FieldName)
				if err != nil {
					continue
				}
				if err := walk(f.SelectionSet, childType, fieldPath); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(op.SelectionSet, op.RootType, ""); err != nil {
		return err
	}
	if len(terminals) == 0 {
		return nil
	}
	sort.Strings(terminals)

	tree, err := solver.Solve(m.graph, solverRoot, terminals)
	if err != nil {
		return err
	}
	m.tree = tree

	m.owned = make(map[string]*supergraph.SubGraph, len(providerByPath))
	for path, providers := range providerByPath {
		sort.Strings(providers)
		var picked *querygraph.Node
		for _, providerID := range providers {
			if !tree.Has(providerID) {
				continue
			}
			node := m.graph.Nodes[providerID]
			if picked == nil {
				picked = node
			}
		}
		if picked != nil {
			m.owned[path] = picked.SubGraph
		}
	}

	return nil
}
