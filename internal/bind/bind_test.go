package bind_test

import (
	"testing"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/lexer"
	"github.com/n9te9/graphql-parser/parser"
)

func mustSchema(t *testing.T, sdls map[string]string) *supergraph.Schema {
	t.Helper()
	var subs []*supergraph.SubGraph
	for name, sdl := range sdls {
		sg, err := supergraph.NewSubGraph(name, []byte(sdl), "http://"+name)
		if err != nil {
			t.Fatalf("NewSubGraph(%s): %v", name, err)
		}
		subs = append(subs, sg)
	}
	schema, err := supergraph.New(subs)
	if err != nil {
		t.Fatalf("supergraph.New: %v", err)
	}
	return schema
}

func mustParse(t *testing.T, query string) *parser.Parser {
	t.Helper()
	l := lexer.New(query)
	return parser.New(l)
}

func TestBind_MergesDuplicateFieldsAndAssignsPositions(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"products": `
			type Product @key(fields: "id") {
				id: ID!
				name: String!
				price: Float!
			}
			type Query { product(id: ID!): Product }
		`,
	})

	p := mustParse(t, `query { product(id: "1") { name } product(id: "1") { price } }`)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	op, err := bind.Bind(doc, schema, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if len(op.SelectionSet) != 1 {
		t.Fatalf("expected duplicate root fields to merge into one, got %d", len(op.SelectionSet))
	}
	product := op.SelectionSet[0]
	if len(product.SelectionSet) != 2 {
		t.Fatalf("expected name+price to merge under one product selection, got %d", len(product.SelectionSet))
	}
}

func TestBind_CapturesSkipModifier(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"products": `
			type Product @key(fields: "id") { id: ID! name: String! }
			type Query { product(id: ID!): Product }
		`,
	})

	p := mustParse(t, `query($s: Boolean!) { product(id: "1") { name @skip(if: $s) } }`)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	op, err := bind.Bind(doc, schema, map[string]any{"s": true})
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	name := op.SelectionSet[0].SelectionSet[0]
	if len(name.Modifiers) != 1 || name.Modifiers[0].Kind != bind.ModifierSkip || name.Modifiers[0].SkipIncludeVar != "s" {
		t.Errorf("expected a skip($s) modifier, got %+v", name.Modifiers)
	}
}

func TestBind_InlinesFragmentSpread(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"products": `
			type Product @key(fields: "id") { id: ID! name: String! price: Float! }
			type Query { product(id: ID!): Product }
		`,
	})

	p := mustParse(t, `
		query { product(id: "1") { ...Fields } }
		fragment Fields on Product { name price }
	`)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	op, err := bind.Bind(doc, schema, nil)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	product := op.SelectionSet[0]
	if len(product.SelectionSet) != 2 {
		t.Fatalf("expected fragment to inline to 2 fields, got %d", len(product.SelectionSet))
	}
}

func TestBind_UnknownFragmentErrors(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"products": `
			type Product @key(fields: "id") { id: ID! name: String! }
			type Query { product(id: ID!): Product }
		`,
	})

	p := mustParse(t, `query { product(id: "1") { ...Missing } }`)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}

	if _, err := bind.Bind(doc, schema, nil); err == nil {
		t.Fatal("expected UnknownFragment error")
	}
}
