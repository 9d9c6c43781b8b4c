// Package events implements the append-only per-request event queue from
// §6: Operation/Subgraph/Http/Extension events, collected during binding,
// planning and execution and drained by an external collaborator (a
// logging/metrics sink, not part of this core).
//
// Grounded on gateway/engine.go's request lifecycle (the same points where
// this repo's executor and gateway already observe timing/status today),
// generalized into a typed event log. Request ids use google/uuid, already
// a teacher dependency; CBOR-encoded extension payloads use
// github.com/fxamacker/cbor/v2, a new dependency named in DESIGN.md since
// the pack carries no other CBOR library.
package events

import (
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
)

// Kind discriminates the event variants named in §6's External interfaces.
type Kind int

const (
	KindOperation Kind = iota
	KindSubgraph
	KindHTTP
	KindExtension
)

// Operation records one bound-and-executed operation's lifecycle.
type Operation struct {
	Name              string
	Document          string
	PrepareDurationNs int64
	DurationNs        int64
	CachedPlan        bool
	Status            string
}

// SubgraphExecution is one HTTP round trip a Subgraph event aggregates.
type SubgraphExecution struct {
	DurationNs int64
	StatusCode int
}

// Subgraph records one partition's dispatch to a subgraph.
type Subgraph struct {
	SubgraphName    string
	Method          string
	URL             string
	Executions      []SubgraphExecution
	CacheStatus     string
	TotalDurationNs int64
	HasErrors       bool
}

// HTTP records the inbound transport-level request/response.
type HTTP struct {
	Method     string
	URL        string
	StatusCode int
}

// Extension records a runtime-hook-emitted event with an arbitrary payload,
// serialized to CBOR for size and schema tolerance across hook versions.
type Extension struct {
	ExtensionName string
	EventName     string
	Data          any
	DataCBOR      []byte
}

// Event is one entry in a request's event log.
type Event struct {
	Kind      Kind
	RequestID uuid.UUID
	At        time.Time
	Operation *Operation
	Subgraph  *Subgraph
	HTTP      *HTTP
	Extension *Extension
}

// Queue is an append-only, concurrency-safe event log for one request.
// "At-least-once on success, best-effort on cancellation" (§6) is the
// caller's responsibility: Drain always returns whatever was recorded up to
// the call, even after the request context is canceled.
type Queue struct {
	requestID uuid.UUID
	now       func() time.Time

	mu     sync.Mutex
	events []Event
}

// New starts a queue for one request, generating a fresh request id.
func New(now func() time.Time) *Queue {
	if now == nil {
		now = time.Now
	}
	return &Queue{requestID: uuid.New(), now: now}
}

func (q *Queue) RequestID() uuid.UUID { return q.requestID }

func (q *Queue) RecordOperation(ev Operation) {
	q.append(Event{Kind: KindOperation, Operation: &ev})
}

func (q *Queue) RecordSubgraph(ev Subgraph) {
	q.append(Event{Kind: KindSubgraph, Subgraph: &ev})
}

func (q *Queue) RecordHTTP(ev HTTP) {
	q.append(Event{Kind: KindHTTP, HTTP: &ev})
}

// RecordExtension CBOR-encodes ev.Data into ev.DataCBOR (when Data is set
// and DataCBOR isn't already populated) before appending.
func (q *Queue) RecordExtension(ev Extension) error {
	if ev.Data != nil && ev.DataCBOR == nil {
		enc, err := cbor.Marshal(ev.Data)
		if err != nil {
			return err
		}
		ev.DataCBOR = enc
	}
	q.append(Event{Kind: KindExtension, Extension: &ev})
	return nil
}

func (q *Queue) append(ev Event) {
	ev.RequestID = q.requestID
	ev.At = q.now()
	q.mu.Lock()
	q.events = append(q.events, ev)
	q.mu.Unlock()
}

// Drain returns (and clears) every event recorded so far.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	return out
}
