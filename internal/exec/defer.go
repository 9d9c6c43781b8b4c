// @defer incremental delivery (§6's "Response output"): once the executor's
// initial wave has merged, fields whose bind.Field.DeferLabel is set are
// held back from the initial payload and shipped as separate
// incremental:[{path,data}] patches. Grounded on executor_v2.go's wave
// scheduler (errgroup per readiness wave); a deferred label is just a wave
// that the caller chooses to flush separately instead of folding into root.
package exec

import (
	"context"
	"math/bits"

	"golang.org/x/sync/errgroup"

	"github.com/n9te9/federation-core/internal/bind"
)

// Patch is one incremental delivery payload: the deferred subtree's data,
// addressed by its response path from the operation root.
type Patch struct {
	Label string
	Path  []any
	Data  map[string]any
}

// pending is a per-label bitset of outstanding (path, field) obligations,
// using math/bits for popcount the way a production incremental-delivery
// tracker would size its "still waiting" counters without per-field
// bookkeeping.
type pending struct {
	bits uint64
}

func (p *pending) mark(i int)    { p.bits |= 1 << uint(i) }
func (p *pending) clear(i int)   { p.bits &^= 1 << uint(i) }
func (p *pending) remaining() int { return bits.OnesCount64(p.bits) }

// SplitDeferred partitions fields into the fields that belong in the
// initial payload and the deferred groups (by label) that ship afterward.
// Only the top level of fields is examined: a labelled field nested beneath
// an unlabelled one is not collected into any group.
func SplitDeferred(fields []*bind.Field) (immediate []*bind.Field, deferred map[string][]*bind.Field) {
	deferred = make(map[string][]*bind.Field)
	for _, f := range fields {
		if f.DeferLabel == "" {
			immediate = append(immediate, f)
			continue
		}
		deferred[f.DeferLabel] = append(deferred[f.DeferLabel], f)
	}
	return immediate, deferred
}

// RunDeferred shapes every deferred group concurrently (one goroutine per
// label, mirroring the root wave scheduler) and reports each as a Patch via
// emit as soon as it's ready. shapeGroup projects one label's fields against
// the merged root data into that label's patch payload.
func RunDeferred(
	ctx context.Context,
	deferred map[string][]*bind.Field,
	path []any,
	shapeGroup func(label string, fields []*bind.Field) (map[string]any, error),
	emit func(Patch),
) error {
	if len(deferred) == 0 {
		return nil
	}
	track := &pending{}
	labels := make([]string, 0, len(deferred))
	for label := range deferred {
		labels = append(labels, label)
	}
	for i := range labels {
		track.mark(i)
	}

	eg, _ := errgroup.WithContext(ctx)
	for i, label := range labels {
		i, label := i, label
		fields := deferred[label]
		eg.Go(func() error {
			data, err := shapeGroup(label, fields)
			if err != nil {
				return err
			}
			emit(Patch{Label: label, Path: path, Data: data})
			track.clear(i)
			return nil
		})
	}
	return eg.Wait()
}
