package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeTestSchema(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "product.graphql")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write test schema: %v", err)
	}
	return path
}

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	schema := `
		type Product @key(fields: "id") {
			id: ID!
			name: String!
			internalCode: String! @inaccessible
		}

		type Query {
			product(id: ID!): Product
		}
	`
	settings := GatewayOption{
		ServiceName: "test-gateway",
		Port:        8080,
		Services: []GatewayService{
			{
				Name:        "product",
				Host:        "http://product.example.com",
				SchemaFiles: []string{writeTestSchema(t, schema)},
			},
		},
	}

	gw, err := NewGateway(settings)
	if err != nil {
		t.Fatalf("NewGateway failed: %v", err)
	}
	return gw
}

func postGraphQL(gw *Gateway, query string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(graphQLRequest{Query: query})
	httpReq := httptest.NewRequest(http.MethodPost, "/graphql", bytes.NewReader(body))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httpReq)
	return w
}

func TestGateway_InaccessibleFieldRejected(t *testing.T) {
	gw := newTestGateway(t)

	w := postGraphQL(gw, `{ product(id: "1") { id internalCode } }`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status OK (GraphQL errors ride in the body), got %d", w.Code)
	}

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	errs, ok := resp["errors"].([]any)
	if !ok || len(errs) == 0 {
		t.Fatal("expected errors for an @inaccessible field, got none")
	}
	errMap := errs[0].(map[string]any)
	ext := errMap["extensions"].(map[string]any)
	if code := ext["code"].(string); code != "UNKNOWN_FIELD" {
		t.Errorf("expected UNKNOWN_FIELD, got %s", code)
	}
}

func TestGateway_ServeRegistrationReloadsSupergraph(t *testing.T) {
	gw := newTestGateway(t)

	reqBody, _ := json.Marshal(registrationRequest{
		RegistrationGraphs: []registrationGraph{
			{
				Name: "reviews",
				Host: "http://reviews.example.com",
				SDL: `
					type Review { id: ID! body: String! }
					type Query { review(id: ID!): Review }
				`,
			},
		},
	})
	httpReq := httptest.NewRequest(http.MethodPost, "/schema/registration", bytes.NewReader(reqBody))
	w := httptest.NewRecorder()
	gw.ServeHTTP(w, httpReq)

	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", w.Code, w.Body.String())
	}

	// The registered subgraph's host isn't actually reachable, so execution
	// itself may still fail; what this proves is that binding/planning now
	// recognize "review" at all, which they wouldn't if Reload hadn't run.
	w2 := postGraphQL(gw, `{ review(id: "1") { body } }`)
	var resp map[string]any
	if err := json.NewDecoder(w2.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errs, ok := resp["errors"].([]any); ok {
		for _, e := range errs {
			if errMap, ok := e.(map[string]any); ok {
				if ext, ok := errMap["extensions"].(map[string]any); ok && ext["code"] == "UNKNOWN_FIELD" {
					t.Errorf("expected newly registered field to bind, got %v", errMap)
				}
			}
		}
	}
}

func TestGateway_AccessibleFieldSucceeds(t *testing.T) {
	gw := newTestGateway(t)

	w := postGraphQL(gw, `{ product(id: "1") { id name } }`)

	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if errs, ok := resp["errors"].([]any); ok {
		for _, e := range errs {
			if errMap, ok := e.(map[string]any); ok {
				if ext, ok := errMap["extensions"].(map[string]any); ok && ext["code"] == "UNKNOWN_FIELD" {
					t.Errorf("did not expect an accessibility error for a plain field query: %v", errMap)
				}
			}
		}
	}
}
