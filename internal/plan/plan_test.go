package plan_test

import (
	"strings"
	"testing"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/plan"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

func buildSchema(t *testing.T) *supergraph.Schema {
	t.Helper()
	products, err := supergraph.NewSubGraph("products", []byte(`
		type Product @key(fields: "id") {
			id: ID!
			name: String!
		}
		type Query { product(id: ID!): Product }
	`), "http://products")
	if err != nil {
		t.Fatalf("products subgraph: %v", err)
	}
	reviews, err := supergraph.NewSubGraph("reviews", []byte(`
		extend type Product @key(fields: "id") {
			id: ID! @external
			reviewCount: Int!
		}
	`), "http://reviews")
	if err != nil {
		t.Fatalf("reviews subgraph: %v", err)
	}
	schema, err := supergraph.New([]*supergraph.SubGraph{products, reviews})
	if err != nil {
		t.Fatalf("supergraph.New: %v", err)
	}
	return schema
}

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

func TestMaterialize_SingleSubgraphRootQuery(t *testing.T) {
	schema := buildSchema(t)
	op := bindQuery(t, schema, `query { product(id: "1") { name } }`)

	p, err := plan.Materialize(op, schema)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(p.Partitions) != 1 {
		t.Fatalf("expected 1 partition, got %d", len(p.Partitions))
	}
	if p.Partitions[0].SubGraph.Name != "products" {
		t.Errorf("expected products subgraph, got %s", p.Partitions[0].SubGraph.Name)
	}
}

func TestMaterialize_CrossSubgraphFieldSpawnsEntityPartition(t *testing.T) {
	schema := buildSchema(t)
	op := bindQuery(t, schema, `query { product(id: "1") { name reviewCount } }`)

	p, err := plan.Materialize(op, schema)
	if err != nil {
		t.Fatalf("Materialize: %v", err)
	}
	if len(p.Partitions) != 2 {
		t.Fatalf("expected a root partition plus an entity partition, got %d", len(p.Partitions))
	}

	var root, entity *plan.Partition
	for _, part := range p.Partitions {
		if part.StepType == plan.StepTypeQuery {
			root = part
		} else {
			entity = part
		}
	}
	if root == nil || entity == nil {
		t.Fatalf("expected one query partition and one entity partition")
	}
	if entity.SubGraph.Name != "reviews" {
		t.Errorf("expected entity partition on reviews, got %s", entity.SubGraph.Name)
	}
	if len(entity.DependsOn) != 1 || entity.DependsOn[0] != root.ID {
		t.Errorf("expected entity partition to depend on root, got %v", entity.DependsOn)
	}

	text, _, err := plan.BuildQueryText(root, "query", op.Variables)
	if err != nil {
		t.Fatalf("BuildQueryText: %v", err)
	}
	if !strings.Contains(text, "product") || !strings.Contains(text, "id") {
		t.Errorf("expected root query to select key field id for the entity join, got: %s", text)
	}

	entityText, vars, err := plan.BuildEntityQueryText(entity, []map[string]any{{"__typename": "Product", "id": "1"}})
	if err != nil {
		t.Fatalf("BuildEntityQueryText: %v", err)
	}
	if !strings.Contains(entityText, "_entities") || !strings.Contains(entityText, "reviewCount") {
		t.Errorf("expected entity query to select reviewCount via _entities, got: %s", entityText)
	}
	if _, ok := vars["representations"]; !ok {
		t.Errorf("expected representations variable, got %v", vars)
	}
}
