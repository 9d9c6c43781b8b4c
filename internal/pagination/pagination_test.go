package pagination

import "testing"

func intPtr(i int) *int { return &i }

func TestPaginateLastOne(t *testing.T) {
	total := []any{"#0", "#1", "#2"}
	page, err := Paginate(total, Args{Last: intPtr(1)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Edges) != 1 {
		t.Fatalf("want 1 edge, got %d", len(page.Edges))
	}
	if page.Edges[0].Node != "#2" {
		t.Fatalf("want #2, got %v", page.Edges[0].Node)
	}
	if page.HasNextPage {
		t.Fatalf("want hasNextPage=false")
	}
	if !page.HasPreviousPage {
		t.Fatalf("want hasPreviousPage=true")
	}
	if page.StartCursor != page.EndCursor {
		t.Fatalf("single-edge page should have equal start/end cursors")
	}
}

func TestPaginateFirstN(t *testing.T) {
	total := []any{"a", "b", "c", "d"}
	page, err := Paginate(total, Args{First: intPtr(2)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Edges) != 2 {
		t.Fatalf("want 2 edges, got %d", len(page.Edges))
	}
	if !page.HasNextPage {
		t.Fatalf("want hasNextPage=true")
	}
	if page.HasPreviousPage {
		t.Fatalf("want hasPreviousPage=false")
	}
}

func TestPaginateAfterCursor(t *testing.T) {
	total := []any{"a", "b", "c", "d"}
	first := Paginate2(t, total, Args{First: intPtr(1)})
	page, err := Paginate(total, Args{First: intPtr(2), After: &first.EndCursor})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Edges) != 2 {
		t.Fatalf("want 2 edges, got %d", len(page.Edges))
	}
	if page.Edges[0].Node != "b" {
		t.Fatalf("want b, got %v", page.Edges[0].Node)
	}
	if !page.HasPreviousPage {
		t.Fatalf("want hasPreviousPage=true, cursor is past the first page")
	}
}

func Paginate2(t *testing.T, total []any, args Args) *Page {
	t.Helper()
	page, err := Paginate(total, args)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return page
}

func TestInvalidCursor(t *testing.T) {
	total := []any{"a", "b"}
	bad := "not-base64-!!!"
	if _, err := Paginate(total, Args{After: &bad}); err == nil {
		t.Fatalf("want error for malformed cursor")
	}
}
