// Package exec runs a materialized Plan against live subgraphs: DAG-ordered
// partition scheduling via errgroup-per-wave, entity-join representation
// extraction, response merging and subgraph failure handling (§4.5).
//
// Grounded on federation/executor/executor_v2.go's ExecutorV2 (DAG
// validation, executeSteps/findReadySteps wave scheduling,
// extractRepresentations/navigatePathWithArrays, mergeEntityResults,
// sendRequest) and merger.go's Merge, adapted from operating on
// planner.PlanV2/ast.Selection to internal/plan.Plan/internal/bind.Field.
package exec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/plan"
	"github.com/n9te9/graphql-parser/ast"
)

// Executor runs a Plan's partitions against their subgraphs.
type Executor struct {
	httpClient *http.Client
}

func New(httpClient *http.Client) *Executor {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Executor{httpClient: httpClient}
}

type execState struct {
	ctx       context.Context
	plan      *plan.Plan
	variables map[string]any
	opType    string

	mu      sync.Mutex
	results map[string]map[string]any // partition ID -> subgraph response
	root    map[string]any            // merged response data, root-relative
	errs    []*gqlerr.Error
}

// Execute runs every partition of p to completion (best-effort: a failed
// subgraph fetch nulls its slice of the response and records an error
// rather than aborting the whole operation, per §4.5's failure modes) and
// returns the merged, root-relative data tree plus any accumulated errors.
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, variables map[string]any) (map[string]any, []*gqlerr.Error) {
	st := &execState{
		ctx:       ctx,
		plan:      p,
		variables: variables,
		opType:    operationTypeString(p.OperationType),
		results:   make(map[string]map[string]any),
		root:      make(map[string]any),
	}

	if p.OperationType == ast.Mutation {
		// Top-level mutation fields execute serially, in document order
		// (§4.5's mutation scheduling rule); each root's own dependent
		// entity joins still run as soon as they're ready.
		for _, rootID := range p.RootPartitions {
			e.runClosure(st, []string{rootID})
		}
	} else {
		e.runClosure(st, p.RootPartitions)
	}

	return st.root, st.errs
}

func operationTypeString(k ast.OperationKind) string {
	switch k {
	case ast.Mutation:
		return "mutation"
	case ast.Subscription:
		return "subscription"
	default:
		return "query"
	}
}

// runClosure executes ids and their transitive dependents, wave by wave, via
// one errgroup per wave (§4.5's scheduling model / §9's "async control flow"
// realization). Grounded on executeSteps/findReadySteps.
func (e *Executor) runClosure(st *execState, ids []string) {
	byID := make(map[string]*plan.Partition, len(st.plan.Partitions))
	for _, part := range st.plan.Partitions {
		byID[part.ID] = part
	}

	completed := make(map[string]bool)
	wave := ids

	for len(wave) > 0 {
		eg, ctx := errgroup.WithContext(st.ctx)
		for _, id := range wave {
			part := byID[id]
			eg.Go(func() error {
				e.processPartition(ctx, st, part)
				return nil
			})
		}
		_ = eg.Wait()

		for _, id := range wave {
			completed[id] = true
		}

		wave = nil
		for _, part := range st.plan.Partitions {
			if completed[part.ID] || len(part.DependsOn) == 0 {
				continue
			}
			ready := true
			for _, dep := range part.DependsOn {
				if !completed[dep] {
					ready = false
					break
				}
			}
			// Only schedule dependents reachable from this closure's ids,
			// so unrelated mutation roots scheduled later don't bleed in.
			if ready && reachable(part, byID, completed) {
				wave = append(wave, part.ID)
			}
		}
	}
}

func reachable(part *plan.Partition, byID map[string]*plan.Partition, completed map[string]bool) bool {
	for _, dep := range part.DependsOn {
		if completed[dep] {
			return true
		}
		if parent, ok := byID[dep]; ok && reachable(parent, byID, completed) {
			return true
		}
	}
	return false
}

func (e *Executor) processPartition(ctx context.Context, st *execState, part *plan.Partition) {
	if part.SubGraph == nil {
		e.recordError(st, part, gqlerr.SubgraphError("<unknown>", errors.New("partition has no subgraph assigned")))
		return
	}

	var (
		query string
		vars  map[string]any
		err   error
	)

	if part.StepType == plan.StepTypeQuery {
		query, vars, err = plan.BuildQueryText(part, st.opType, st.variables)
	} else {
		reps := extractRepresentations(st.root, part)
		if len(reps) == 0 {
			return // nothing to join, e.g. parent field resolved to null
		}
		query, vars, err = plan.BuildEntityQueryText(part, reps)
	}
	if err != nil {
		e.recordError(st, part, gqlerr.SubgraphError(part.SubGraph.Name, err))
		return
	}

	result, err := e.sendRequest(ctx, part.SubGraph.Host, query, vars)
	if err != nil {
		e.recordError(st, part, gqlerr.SubgraphTimeout(part.SubGraph.Name))
		e.nullifyPartition(st, part)
		return
	}

	if subErrs, ok := result["errors"]; ok && subErrs != nil {
		e.recordSubgraphErrors(st, part, subErrs)
	}

	data, _ := result["data"].(map[string]any)

	st.mu.Lock()
	st.results[part.ID] = result
	st.mu.Unlock()

	if part.StepType == plan.StepTypeQuery {
		st.mu.Lock()
		for k, v := range data {
			st.root[k] = v
		}
		st.mu.Unlock()
		return
	}

	entities, _ := data["_entities"].([]any)
	st.mu.Lock()
	target := navigate(st.root, part.Path)
	var mergeErr error
	if _, isList := target.([]any); isList {
		mergeErr = Merge(st.root, any(entities), part.Path)
	} else if len(entities) > 0 {
		mergeErr = Merge(st.root, entities[0], part.Path)
	}
	st.mu.Unlock()
	if mergeErr != nil {
		e.recordError(st, part, gqlerr.SubgraphInvalidResponseError(part.SubGraph.Name, mergeErr.Error()))
		e.nullifyPartition(st, part)
	}
}

func (e *Executor) sendRequest(ctx context.Context, host, query string, variables map[string]any) (map[string]any, error) {
	body := map[string]any{"query": query}
	if len(variables) > 0 {
		body["variables"] = variables
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal subgraph request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, host, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build subgraph request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("subgraph request failed: %w", err)
	}
	defer resp.Body.Close()

	var result map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode subgraph response: %w", err)
	}
	return result, nil
}

func (e *Executor) recordError(st *execState, part *plan.Partition, err *gqlerr.Error) {
	path := make([]any, 0, len(part.Path))
	for _, seg := range part.Path {
		path = append(path, seg)
	}
	st.mu.Lock()
	st.errs = append(st.errs, err.WithPath(path...))
	st.mu.Unlock()
}

func (e *Executor) recordSubgraphErrors(st *execState, part *plan.Partition, raw any) {
	list, ok := raw.([]any)
	if !ok {
		return
	}
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		message, _ := m["message"].(string)
		if message == "" {
			message = "subgraph returned an error"
		}
		e.recordError(st, part, gqlerr.SubgraphError(part.SubGraph.Name, errors.New(message)))
	}
}

// nullifyPartition sets every selected field of a failed partition to null
// in the merged root tree, so the rest of the response stays intact
// (§4.5's "partial failure" requirement).
func (e *Executor) nullifyPartition(st *execState, part *plan.Partition) {
	st.mu.Lock()
	defer st.mu.Unlock()

	target := navigate(st.root, part.Path)
	switch v := target.(type) {
	case map[string]any:
		nullifyFields(v, part.SelectionSet)
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				nullifyFields(m, part.SelectionSet)
			}
		}
	}
}

func nullifyFields(m map[string]any, fields []*bind.Field) {
	for _, f := range fields {
		if f.FieldName == "__typename" {
			continue
		}
		m[f.ResponseKey] = nil
	}
}

// navigate walks obj along path, stopping (and returning the slice) at the
// first list encountered, matching extractRepresentations/
// navigatePathWithArrays' array-aware traversal.
func navigate(obj any, path []string) any {
	cur := obj
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		next, ok := m[seg]
		if !ok {
			return nil
		}
		cur = next
		if _, isList := cur.([]any); isList {
			return cur
		}
	}
	return cur
}
