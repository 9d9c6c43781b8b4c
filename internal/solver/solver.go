// Package solver converts a query graph into a Steiner-tree problem and
// solves it with shortest-path expansion, iteratively promoting @requires
// targets to terminals until nothing changes (§4.3); edge weights stay as
// built and are not re-estimated. Grounded on
// federation/planner/planner_v2_optimized.go's cost-aware boundary-field
// selection (canResolveViaProvides, injectProvidedFields) and
// federation/graph/weighted_graph.go's Dijkstra, generalized from a
// single-shot shortest-path pass into the fix-point iteration the
// specification requires.
package solver

import (
	"sort"

	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/querygraph"
)

// MaxFixPointIterations bounds the @requires promotion sweep (§4.3 step 4).
const MaxFixPointIterations = 100

// Tree is the solved Steiner tree: the set of included node ids plus enough
// bookkeeping for the materializer to reconstruct partitions.
type Tree struct {
	Included map[string]bool
	// Promoted is the set of @requires targets that were pulled in as
	// terminals during the fix-point (§4.3 step 5).
	Promoted map[string]bool
}

func (t *Tree) Has(id string) bool { return t.Included[id] }

// Solve grows a Steiner tree from root across g covering every terminal id,
// pulling in @requires targets as extra terminals, and returns the included
// node set.
func Solve(g *querygraph.Graph, root string, terminals []string) (*Tree, error) {
	tree := &Tree{Included: map[string]bool{root: true}, Promoted: map[string]bool{}}

	remaining := make(map[string]bool, len(terminals))
	for _, t := range terminals {
		remaining[t] = true
	}

	// requireEdges: node -> (dispensable requirement target ids it needs
	// once it's chosen). Precomputed once and consulted each sweep (§4.3.3/4).
	requireEdges := make(map[string][]string)
	for id, n := range g.Nodes {
		if len(n.Requires) > 0 {
			var targets []string
			for _, req := range n.Requires {
				// Requires references a field name on the parent entity;
				// internal/plan's solve rewrites it to a QueryField id
				// before calling Solve, so n.Requires already holds query
				// field ids there. Raw names (unit tests that build g by
				// hand) are treated as already-final ids.
				targets = append(targets, req)
			}
			requireEdges[id] = targets
		}
	}

	growOnce := func() bool {
		if len(remaining) == 0 {
			return false
		}
		entryPoints := make([]string, 0, len(tree.Included))
		for id := range tree.Included {
			entryPoints = append(entryPoints, id)
		}
		sort.Strings(entryPoints)

		sp := g.Dijkstra(entryPoints)

		// Pick the nearest remaining terminal; tie-break on smaller id.
		bestID, bestCost := "", querygraph.Unreachable
		ids := make([]string, 0, len(remaining))
		for id := range remaining {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if c := sp.Dist[id]; c < bestCost {
				bestID, bestCost = id, c
			}
		}
		if bestID == "" || bestCost == querygraph.Unreachable {
			return false
		}

		path := sp.ReconstructPath(bestID)
		for _, id := range path {
			tree.Included[id] = true
		}
		delete(remaining, bestID)
		return true
	}

	progressed := true
	for progressed && (len(remaining) > 0 || anyFixPointWork(tree, requireEdges)) {
		progressed = false
		for len(remaining) > 0 {
			if !growOnce() {
				break
			}
			progressed = true
		}

		if err := applyRequireFixPoint(g, tree, requireEdges, remaining); err != nil {
			return nil, err
		}
		if len(tree.Promoted) > 0 {
			progressed = true
		}
	}

	if len(remaining) > 0 {
		return nil, gqlerr.CouldNotPlanAnyField(firstOf(remaining))
	}

	return tree, nil
}

func anyFixPointWork(tree *Tree, requireEdges map[string][]string) bool {
	for id := range tree.Included {
		for _, target := range requireEdges[id] {
			if !tree.Included[target] && !tree.Promoted[target] {
				return true
			}
		}
	}
	return false
}

// applyRequireFixPoint implements §4.3 steps 3-6: for every node already in
// the tree with outstanding @requires targets not yet covered, promote the
// target to a terminal (so the next growOnce sweep reaches it); no edge's
// cost is changed. Bounded at MaxFixPointIterations;
// failure to converge is a RequirementCycleDetected error.
func applyRequireFixPoint(g *querygraph.Graph, tree *Tree, requireEdges map[string][]string, remaining map[string]bool) error {
	for iter := 0; iter < MaxFixPointIterations; iter++ {
		changed := false

		ids := make([]string, 0, len(tree.Included))
		for id := range tree.Included {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			for _, target := range requireEdges[id] {
				if tree.Included[target] || tree.Promoted[target] {
					continue
				}
				if _, ok := g.Nodes[target]; !ok {
					// Not a graph node (e.g. a scalar sub-selection already
					// covered by its parent's own inclusion); treat as
					// satisfied.
					tree.Promoted[target] = true
					continue
				}
				tree.Promoted[target] = true
				remaining[target] = true
				changed = true
			}
		}

		if !changed {
			return nil
		}
	}
	return gqlerr.RequirementCycleDetected()
}

func firstOf(m map[string]bool) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if len(keys) == 0 {
		return ""
	}
	return keys[0]
}
