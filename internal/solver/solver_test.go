package solver_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/querygraph"
	"github.com/n9te9/federation-core/internal/solver"
)

func TestSolve_CoversAllTerminals(t *testing.T) {
	g := querygraph.New()
	root := "root"
	g.AddProvidableField(nil, "Query", "")
	g.Nodes[root] = &querygraph.Node{ID: root, Kind: querygraph.KindResolver, Edges: map[string]int{}, Provides: map[string]int{}}

	g.AddQueryField("me.id", true, true)
	g.AddQueryField("me.name", true, true)

	idKey := querygraph.QueryFieldKey("me.id")
	nameKey := querygraph.QueryFieldKey("me.name")
	g.AddEdge(root, idKey, 1)
	g.AddEdge(idKey, nameKey, 0)

	tree, err := solver.Solve(g, root, []string{idKey, nameKey})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !tree.Has(root) || !tree.Has(idKey) || !tree.Has(nameKey) {
		t.Errorf("expected tree to include root, id and name; got %+v", tree.Included)
	}
}

func TestSolve_PromotesRequiresTarget(t *testing.T) {
	g := querygraph.New()
	root := "root"
	g.Nodes[root] = &querygraph.Node{ID: root, Kind: querygraph.KindResolver, Edges: map[string]int{}, Provides: map[string]int{}}

	g.AddQueryField("product.price", true, true)
	g.AddQueryField("product.weight", false, true) // dispensable until required

	priceKey := querygraph.QueryFieldKey("product.price")
	weightKey := querygraph.QueryFieldKey("product.weight")

	g.AddEdge(root, priceKey, 1)
	g.AddEdge(root, weightKey, 1)
	g.Nodes[priceKey].Requires = []string{weightKey}

	tree, err := solver.Solve(g, root, []string{priceKey})
	if err != nil {
		t.Fatalf("Solve failed: %v", err)
	}
	if !tree.Promoted[weightKey] {
		t.Error("expected weight to be promoted via @requires")
	}
	if !tree.Has(weightKey) {
		t.Error("expected weight to end up in the solved tree")
	}
}

func TestSolve_UnreachableTerminalFails(t *testing.T) {
	g := querygraph.New()
	root := "root"
	g.Nodes[root] = &querygraph.Node{ID: root, Kind: querygraph.KindResolver, Edges: map[string]int{}, Provides: map[string]int{}}
	g.AddQueryField("orphan.field", true, true)

	_, err := solver.Solve(g, root, []string{querygraph.QueryFieldKey("orphan.field")})
	if err == nil {
		t.Fatal("expected an error for an unreachable terminal")
	}
}
