package supergraph_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/supergraph"
)

func TestNewSubGraph(t *testing.T) {
	schema := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
			price: Float! @cost(weight: 2.5)
		}

		type Query {
			product(id: ID!): Product
		}
	`

	sg, err := supergraph.NewSubGraph("product", []byte(schema), "http://product.example.com")
	if err != nil {
		t.Fatalf("NewSubGraph failed: %v", err)
	}

	if sg.Name != "product" {
		t.Errorf("expected name 'product', got %q", sg.Name)
	}

	entities := sg.GetEntities()
	if len(entities) != 1 {
		t.Fatalf("expected 1 entity, got %d", len(entities))
	}

	product, ok := entities["Product"]
	if !ok {
		t.Fatal("Product entity not found")
	}

	if len(product.Keys) != 1 || product.Keys[0].FieldSet != "id" {
		t.Errorf("unexpected keys: %+v", product.Keys)
	}
	if !product.Keys[0].Resolvable {
		t.Error("expected key to be resolvable")
	}
	if product.IsExtension() {
		t.Error("expected Product to not be an extension")
	}

	price := product.Fields["price"]
	if cost, ok := price.Cost(); !ok || cost != 2.5 {
		t.Errorf("expected price cost 2.5, got %v (ok=%v)", cost, ok)
	}
}

func TestNewSubGraph_ExtensionExternalOverride(t *testing.T) {
	schema := `
		extend type Product @key(fields: "id") {
			id: ID! @external
			shippingCost: Float! @requires(fields: "weight") @override(from: "legacy")
		}
	`

	sg, err := supergraph.NewSubGraph("shipping", []byte(schema), "http://shipping.example.com")
	if err != nil {
		t.Fatalf("NewSubGraph failed: %v", err)
	}

	product, ok := sg.GetEntity("Product")
	if !ok {
		t.Fatal("Product entity not found")
	}
	if !product.IsExtension() {
		t.Error("expected Product to be an extension")
	}

	idField := product.Fields["id"]
	if !idField.IsExternal() {
		t.Error("expected id to be external")
	}

	shipping := product.Fields["shippingCost"]
	if len(shipping.Requires) != 1 || shipping.Requires[0] != "weight" {
		t.Errorf("expected requires=[weight], got %v", shipping.Requires)
	}
	if ov := shipping.GetOverride(); ov == nil || ov.From != "legacy" {
		t.Errorf("expected override from legacy, got %+v", ov)
	}
}

func TestNewSubGraph_LookupAndIs(t *testing.T) {
	schema := `
		input ProductLookup @oneOf {
			id: ID
		}

		type Product @key(fields: "id") {
			id: ID!
		}

		type Query {
			productBatch(input: ProductLookup! @is(field: "{ id }")): Product! @lookup
		}
	`

	sg, err := supergraph.NewSubGraph("product", []byte(schema), "http://product.example.com")
	if err != nil {
		t.Fatalf("NewSubGraph failed: %v", err)
	}

	f, ok := sg.GetLookup("Product")
	if !ok {
		t.Fatal("expected a @lookup field for Product")
	}
	if !f.IsLookup() {
		t.Error("expected field to report IsLookup() true")
	}
}
