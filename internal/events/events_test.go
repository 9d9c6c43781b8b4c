package events

import (
	"testing"
	"time"
)

func TestQueueRecordAndDrain(t *testing.T) {
	fixed := time.Unix(0, 0)
	q := New(func() time.Time { return fixed })

	q.RecordOperation(Operation{Name: "Me", Status: "ok"})
	q.RecordSubgraph(Subgraph{SubgraphName: "accounts", Method: "POST"})
	q.RecordHTTP(HTTP{Method: "POST", URL: "/graphql", StatusCode: 200})
	if err := q.RecordExtension(Extension{ExtensionName: "trace", EventName: "span", Data: map[string]any{"ms": 12}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	events := q.Drain()
	if len(events) != 4 {
		t.Fatalf("want 4 events, got %d", len(events))
	}
	for _, ev := range events {
		if ev.RequestID != q.RequestID() {
			t.Fatalf("event missing request id")
		}
	}
	if events[3].Extension.DataCBOR == nil {
		t.Fatalf("want CBOR-encoded extension payload")
	}
	if drained := q.Drain(); len(drained) != 0 {
		t.Fatalf("want queue empty after drain, got %d", len(drained))
	}
}
