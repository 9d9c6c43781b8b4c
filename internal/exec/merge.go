package exec

import "fmt"

// Merge merges source into target at path, recursing through nested objects
// and parallel lists. Ported verbatim in spirit from
// federation/executor/merger.go's Merge, the executor's response-stitching
// primitive for entity-join results (§4.5's merge step).
func Merge(target map[string]any, source any, path []string) error {
	if len(path) == 0 {
		sourceMap, ok := source.(map[string]any)
		if !ok {
			return fmt.Errorf("exec: source must be a map when path is empty")
		}
		for k, v := range sourceMap {
			target[k] = v
		}
		return nil
	}

	key := path[0]
	rest := path[1:]

	value, exists := target[key]
	if !exists {
		if len(rest) > 0 {
			target[key] = make(map[string]any)
			value = target[key]
		} else {
			target[key] = source
			return nil
		}
	}

	if list, ok := value.([]any); ok {
		sourceList, ok := source.([]any)
		if !ok {
			return fmt.Errorf("exec: source must be a list at path %v, got %T", path, source)
		}
		if len(list) != len(sourceList) {
			return fmt.Errorf("exec: list length mismatch at path %v: target=%d source=%d", path, len(list), len(sourceList))
		}
		for i := range list {
			targetElem, ok := list[i].(map[string]any)
			if !ok {
				return fmt.Errorf("exec: target list element %d is not a map", i)
			}
			if len(rest) == 0 {
				sourceElem, ok := sourceList[i].(map[string]any)
				if !ok {
					return fmt.Errorf("exec: source list element %d is not a map", i)
				}
				for k, v := range sourceElem {
					targetElem[k] = v
				}
				continue
			}
			if err := Merge(targetElem, sourceList[i], rest); err != nil {
				return err
			}
		}
		return nil
	}

	if obj, ok := value.(map[string]any); ok {
		if len(rest) == 0 {
			sourceMap, ok := source.(map[string]any)
			if !ok {
				return fmt.Errorf("exec: source must be a map merging into an object at path %v", path)
			}
			for k, v := range sourceMap {
				obj[k] = v
			}
			return nil
		}
		return Merge(obj, source, rest)
	}

	return fmt.Errorf("exec: unsupported type %T at path %v", value, path)
}
