package querygraph_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/querygraph"
	"github.com/n9te9/federation-core/internal/supergraph"
)

func newSubGraph(t *testing.T, name, sdl, host string) *supergraph.SubGraph {
	t.Helper()
	sg, err := supergraph.NewSubGraph(name, []byte(sdl), host)
	if err != nil {
		t.Fatalf("NewSubGraph(%s): %v", name, err)
	}
	return sg
}

func TestProvidableFieldKey(t *testing.T) {
	if got, want := querygraph.ProvidableFieldKey("sgA", "Product", "name"), "sgA:Product.name"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
	if got, want := querygraph.ProvidableFieldKey("sgA", "Product", ""), "sgA:Product"; got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestBuild_SameSubgraphEdgesAreFree(t *testing.T) {
	sg := newSubGraph(t, "products", `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
		type Query { product(id: ID!): Product }
	`, "http://products.example.com")

	g := querygraph.Build([]*supergraph.SubGraph{sg})

	typeKey := querygraph.ProvidableFieldKey("products", "Product", "")
	fieldKey := querygraph.ProvidableFieldKey("products", "Product", "name")

	typeNode, ok := g.Nodes[typeKey]
	if !ok {
		t.Fatalf("expected type node %q", typeKey)
	}
	if w, ok := typeNode.Edges[fieldKey]; !ok || w != 0 {
		t.Errorf("expected same-subgraph edge weight 0, got %d (ok=%v)", w, ok)
	}
}

func TestBuild_CrossSubgraphEntityEdgeCostsOne(t *testing.T) {
	products := newSubGraph(t, "products", `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
	`, "http://products.example.com")
	reviews := newSubGraph(t, "reviews", `
		extend type Product @key(fields: "id") {
			id: ID! @external
			reviews: [Review!]!
		}
		type Review { id: ID! body: String! }
	`, "http://reviews.example.com")

	g := querygraph.Build([]*supergraph.SubGraph{products, reviews})

	a := querygraph.ProvidableFieldKey("products", "Product", "")
	b := querygraph.ProvidableFieldKey("reviews", "Product", "")

	if w, ok := g.Nodes[a].Edges[b]; !ok || w != 1 {
		t.Errorf("expected cross-subgraph edge weight 1, got %d (ok=%v)", w, ok)
	}
	if w, ok := g.Nodes[b].Edges[a]; !ok || w != 1 {
		t.Errorf("expected reverse cross-subgraph edge weight 1, got %d (ok=%v)", w, ok)
	}
}

func TestDijkstra_FindsShortestPath(t *testing.T) {
	g := querygraph.New()
	g.AddQueryField("a", true, true)
	g.AddQueryField("b", true, true)
	g.AddQueryField("c", true, true)

	aKey, bKey, cKey := querygraph.QueryFieldKey("a"), querygraph.QueryFieldKey("b"), querygraph.QueryFieldKey("c")
	g.AddEdge(aKey, bKey, 1)
	g.AddEdge(bKey, cKey, 1)
	g.AddEdge(aKey, cKey, 5)

	sp := g.Dijkstra([]string{aKey})
	if sp.Dist[cKey] != 2 {
		t.Errorf("expected shortest distance 2 via b, got %d", sp.Dist[cKey])
	}

	path := sp.ReconstructPath(cKey)
	want := []string{aKey, bKey, cKey}
	if len(path) != len(want) {
		t.Fatalf("got path %v, want %v", path, want)
	}
	for i := range want {
		if path[i] != want[i] {
			t.Errorf("path[%d] = %q, want %q", i, path[i], want[i])
		}
	}
}
