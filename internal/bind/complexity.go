package bind

import (
	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/supergraph"
)

// ComplexityMode controls how Measure's result is enforced (§4.8).
type ComplexityMode int

const (
	ComplexityOff ComplexityMode = iota
	ComplexityMeasure
	ComplexityEnforce
)

// Measure sums each bound field's @cost weight (default 1 when undeclared),
// multiplied by listFanout for every ancestor field that has a sub-selection,
// the way connection/list pagination amplifies downstream work. List and
// single-object fields are not told apart: any ancestor with a selection set
// multiplies. Grounded on the @cost directive
// collected onto supergraph.Field by parseField.
func Measure(op *Operation, schema *supergraph.Schema) float64 {
	var total float64
	var walk func(fields []*Field, parentType string, multiplier float64)
	walk = func(fields []*Field, parentType string, multiplier float64) {
		for _, f := range fields {
			weight := 1.0
			if owner := schema.GetFieldOwnerSubGraph(parentType, f.FieldName); owner != nil {
				if entity, ok := owner.GetEntity(parentType); ok {
					if fd, ok := entity.Fields[f.FieldName]; ok {
						if c, has := fd.Cost(); has {
							weight = c
						}
					}
				}
			}
			total += weight * multiplier

			childMultiplier := multiplier
			if isListField(f) {
				childMultiplier *= listFanout(f)
			}
			childType, _ := fieldTypeName(schema, parentType, f.FieldName)
			walk(f.SelectionSet, childType, childMultiplier)
		}
	}
	walk(op.SelectionSet, op.RootType, 1)
	return total
}

// listFanout estimates the amplification factor of a list field from its
// first/last pagination argument, defaulting to a conservative constant when
// absent so unbounded lists still contribute meaningfully to the budget.
func listFanout(f *Field) float64 {
	const defaultFanout = 10.0
	for _, arg := range f.Args {
		if arg.Name.String() != "first" && arg.Name.String() != "last" {
			continue
		}
		// Argument values arrive as literals or variable refs; only literals
		// are cheap to read here without a variable-binding pass.
		if n, ok := intLiteral(arg.Value.String()); ok {
			return float64(n)
		}
	}
	return defaultFanout
}

func intLiteral(s string) (int, bool) {
	n := 0
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// isListField treats every field with a sub-selection as a list; the field's
// declared type is not consulted.
func isListField(f *Field) bool {
	return len(f.SelectionSet) > 0 && f.FieldName != "__typename"
}

// Enforce measures op against budget and returns an error when the mode is
// ComplexityEnforce and the budget is exceeded; ComplexityMeasure only
// records the value via the returned float, never failing the operation.
func Enforce(op *Operation, schema *supergraph.Schema, mode ComplexityMode, budget float64) (float64, error) {
	if mode == ComplexityOff {
		return 0, nil
	}
	cost := Measure(op, schema)
	if mode == ComplexityEnforce && cost > budget {
		return cost, gqlerr.OperationValidationError("operation exceeds complexity budget")
	}
	return cost, nil
}
