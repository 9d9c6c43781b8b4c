package exec_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/exec"
	"github.com/n9te9/federation-core/internal/plan"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

func bindQuery(t *testing.T, schema *supergraph.Schema, query string) *bind.Operation {
	t.Helper()
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	op, err := bind.Bind(doc, schema, nil)
	if err != nil {
		t.Fatalf("bind: %v", err)
	}
	return op
}

// extension-case fixture: reviewCount is a field extension owned by reviews.
func TestExecute_ExtensionCaseEntityJoin(t *testing.T) {
	products := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": map[string]any{
				"product": map[string]any{
					"__typename": "Product",
					"id":         "1",
					"name":       "Widget",
				},
			},
		})
	}))
	defer products.Close()

	reviewsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": map[string]any{
				"_entities": []any{
					map[string]any{"reviewCount": 4},
				},
			},
		})
	}))
	defer reviewsServer.Close()

	productsSG, err := supergraph.NewSubGraph("products", []byte(`
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
		type Query { product(id: ID!): Product }
	`), products.URL)
	if err != nil {
		t.Fatalf("products subgraph: %v", err)
	}
	reviewsSG, err := supergraph.NewSubGraph("reviews", []byte(`
		extend type Product @key(fields: "id") {
			id: ID! @external
			reviewCount: Int!
		}
	`), reviewsServer.URL)
	if err != nil {
		t.Fatalf("reviews subgraph: %v", err)
	}
	schema, err := supergraph.New([]*supergraph.SubGraph{productsSG, reviewsSG})
	if err != nil {
		t.Fatalf("supergraph.New: %v", err)
	}

	op := bindQuery(t, schema, `query { product(id: "1") { name reviewCount } }`)
	p, err := plan.Materialize(op, schema)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	e := exec.New(http.DefaultClient)
	data, errs := e.Execute(context.Background(), p, op.Variables)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	product, ok := data["product"].(map[string]any)
	if !ok {
		t.Fatalf("expected product object, got %#v", data["product"])
	}
	if product["name"] != "Widget" {
		t.Errorf("expected name Widget, got %v", product["name"])
	}
	if product["reviewCount"] != float64(4) && product["reviewCount"] != 4 {
		t.Errorf("expected reviewCount 4, got %v", product["reviewCount"])
	}
}

// reference-case fixture: Review.product resolves locally in reviews, but
// Product itself is an entity owned by products, so nested selections under
// it must continue there.
func TestExecute_ReferenceCaseEntityJoin(t *testing.T) {
	reviewsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": map[string]any{
				"topReview": map[string]any{
					"__typename": "Review",
					"id":         "r1",
					"product": map[string]any{
						"__typename": "Product",
						"id":         "1",
					},
				},
			},
		})
	}))
	defer reviewsServer.Close()

	productsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": map[string]any{
				"_entities": []any{
					map[string]any{"name": "Widget"},
				},
			},
		})
	}))
	defer productsServer.Close()

	reviewsSG, err := supergraph.NewSubGraph("reviews", []byte(`
		type Review @key(fields: "id") {
			id: ID!
			product: Product!
		}
		type Product @key(fields: "id") {
			id: ID! @external
		}
		type Query { topReview: Review }
	`), reviewsServer.URL)
	if err != nil {
		t.Fatalf("reviews subgraph: %v", err)
	}
	productsSG, err := supergraph.NewSubGraph("products", []byte(`
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
	`), productsServer.URL)
	if err != nil {
		t.Fatalf("products subgraph: %v", err)
	}
	schema, err := supergraph.New([]*supergraph.SubGraph{reviewsSG, productsSG})
	if err != nil {
		t.Fatalf("supergraph.New: %v", err)
	}

	op := bindQuery(t, schema, `query { topReview { id product { name } } }`)
	p, err := plan.Materialize(op, schema)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(p.Partitions) != 2 {
		t.Fatalf("expected root + entity partition, got %d", len(p.Partitions))
	}

	e := exec.New(http.DefaultClient)
	data, errs := e.Execute(context.Background(), p, op.Variables)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}

	review, ok := data["topReview"].(map[string]any)
	if !ok {
		t.Fatalf("expected topReview object, got %#v", data["topReview"])
	}
	product, ok := review["product"].(map[string]any)
	if !ok {
		t.Fatalf("expected nested product object, got %#v", review["product"])
	}
	if product["name"] != "Widget" {
		t.Errorf("expected nested product.name Widget, got %v", product["name"])
	}
}

func TestExecute_SubgraphFailureNullifiesPartitionAndRecordsError(t *testing.T) {
	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer failing.Close()

	productsSG, err := supergraph.NewSubGraph("products", []byte(`
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
		type Query { product(id: ID!): Product }
	`), failing.URL)
	if err != nil {
		t.Fatalf("products subgraph: %v", err)
	}
	schema, err := supergraph.New([]*supergraph.SubGraph{productsSG})
	if err != nil {
		t.Fatalf("supergraph.New: %v", err)
	}

	op := bindQuery(t, schema, `query { product(id: "1") { name } }`)
	p, err := plan.Materialize(op, schema)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	e := exec.New(http.DefaultClient)
	data, errs := e.Execute(context.Background(), p, op.Variables)
	if len(errs) == 0 {
		t.Fatalf("expected a recorded subgraph error")
	}
	if data["product"] != nil {
		t.Errorf("expected nullified product field, got %#v", data["product"])
	}
}
