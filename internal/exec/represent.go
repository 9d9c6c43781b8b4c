package exec

import "github.com/n9te9/federation-core/internal/plan"

// extractRepresentations walks root along part.Path, collecting one
// _entities representation per object found (descending into any arrays
// along the way), keyed by part.RepresentationKeys. Grounded on
// federation/executor/executor_v2.go's extractRepresentations/
// navigatePathWithArrays/buildRepresentation, adapted to read the key field
// names off the Partition (computed once at plan time) instead of looking
// them up against the schema during execution.
func extractRepresentations(root map[string]any, part *plan.Partition) []map[string]any {
	return navigatePath(root, part.Path, part.RepresentationKeys)
}

func navigatePath(current map[string]any, path []string, keys []string) []map[string]any {
	if len(path) == 0 {
		if rep := buildRepresentation(current, keys); rep != nil {
			return []map[string]any{rep}
		}
		return nil
	}

	segment, rest := path[0], path[1:]
	next, ok := current[segment]
	if !ok || next == nil {
		return nil
	}

	if arr, isArray := next.([]any); isArray {
		var out []map[string]any
		for _, elem := range arr {
			if elemMap, ok := elem.(map[string]any); ok {
				out = append(out, navigatePath(elemMap, rest, keys)...)
			}
		}
		return out
	}

	if nextMap, ok := next.(map[string]any); ok {
		return navigatePath(nextMap, rest, keys)
	}

	return nil
}

// buildRepresentation reads keys (which always includes __typename) off
// entity, returning nil if any key field is missing.
func buildRepresentation(entity map[string]any, keys []string) map[string]any {
	rep := make(map[string]any, len(keys))
	for _, k := range keys {
		v, ok := entity[k]
		if !ok {
			return nil
		}
		rep[k] = v
	}
	return rep
}
