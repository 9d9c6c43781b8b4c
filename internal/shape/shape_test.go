package shape_test

import (
	"encoding/json"
	"testing"

	"github.com/n9te9/federation-core/internal/auth"
	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/shape"
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

func mustBind(t *testing.T, schema *supergraph.Schema, query string, variables map[string]any) *bind.Operation {
	t.Helper()
	l := lexer.New(query)
	p := parser.New(l)
	doc := p.ParseDocument()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	op, err := bind.Bind(doc, schema, variables)
	if err != nil {
		t.Fatalf("Bind: %v", err)
	}
	return op
}

func TestProject_PreservesQueryPositionOrder(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"users": `
			type User @key(fields: "id") { id: ID! name: String! age: Int! }
			type Query { user: User }
		`,
	})
	op := mustBind(t, schema, `query { user { age name id } }`, nil)

	data := map[string]any{
		"user": map[string]any{"id": "1", "name": "Ada", "age": 36},
	}
	obj, errs := shape.Project(nil, op, schema, data, nil)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	user, _ := obj.Get("user")
	userObj := user.(*shape.Object)
	if got := userObj.Keys; len(got) != 3 || got[0] != "age" || got[1] != "name" || got[2] != "id" {
		t.Fatalf("expected query-position order [age name id], got %v", got)
	}

	out, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `{"user":{"age":36,"name":"Ada","id":"1"}}`
	if string(out) != want {
		t.Fatalf("want %s, got %s", want, out)
	}
}

func TestProject_SkipElidesField(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"users": `
			type User @key(fields: "id") { id: ID! name: String! }
			type Query { user: User }
		`,
	})
	op := mustBind(t, schema, `query($s: Boolean!) { user { id name @skip(if: $s) } }`, map[string]any{"s": true})

	data := map[string]any{"user": map[string]any{"id": "1", "name": "Ada"}}
	obj, errs := shape.Project(nil, op, schema, data, &shape.RequestContext{Variables: map[string]any{"s": true}})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	user, _ := obj.Get("user")
	userObj := user.(*shape.Object)
	if len(userObj.Keys) != 1 || userObj.Keys[0] != "id" {
		t.Fatalf("expected only id to survive @skip, got %v", userObj.Keys)
	}
}

func TestProject_NonNullViolationBubbles(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"users": `
			type User @key(fields: "id") { id: ID! name: String! }
			type Query { user: User! }
		`,
	})
	op := mustBind(t, schema, `query { user { id name } }`, nil)

	data := map[string]any{"user": map[string]any{"id": "1", "name": nil}}
	obj, errs := shape.Project(nil, op, schema, data, nil)
	if len(errs) != 1 {
		t.Fatalf("expected 1 error, got %d: %v", len(errs), errs)
	}
	if obj != nil {
		t.Fatalf("expected null bubble to the root since user is non-null, got %v", obj)
	}
}

func TestProject_AuthenticatedModifierDenies(t *testing.T) {
	schema := mustSchema(t, map[string]string{
		"users": `
			type User @key(fields: "id") { id: ID! secret: String! }
			type Query { user: User }
		`,
	})
	op := mustBind(t, schema, `query { user { id secret @authenticated } }`, nil)

	data := map[string]any{"user": map[string]any{"id": "1", "secret": "shh"}}
	obj, errs := shape.Project(nil, op, schema, data, &shape.RequestContext{Token: auth.Token{Anonymous: true}})
	if len(errs) != 1 {
		t.Fatalf("expected 1 auth error, got %d", len(errs))
	}
	user, _ := obj.Get("user")
	userObj := user.(*shape.Object)
	if len(userObj.Keys) != 1 || userObj.Keys[0] != "id" {
		t.Fatalf("expected secret elided, got %v", userObj.Keys)
	}
}
