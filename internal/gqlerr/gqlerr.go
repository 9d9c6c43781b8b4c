// Package gqlerr centralizes the error taxonomy shared by binding, planning
// and execution: a single concrete type carrying a path, a stable code and
// optional extensions, following the shape of executor_v2.go's GraphQLError.
package gqlerr

import "fmt"

// Error is a GraphQL-spec-shaped error: a message, an optional response
// path, a stable machine-readable code and free-form extensions.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Locations  []Location     `json:"locations,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
	code       string
}

// Location is a source position within the operation document.
type Location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

func (e *Error) Error() string {
	if len(e.Path) > 0 {
		return fmt.Sprintf("%s (code=%s path=%v)", e.Message, e.code, e.Path)
	}
	return fmt.Sprintf("%s (code=%s)", e.Message, e.code)
}

// Code returns the taxonomy code, e.g. OPERATION_PARSING_ERROR.
func (e *Error) Code() string { return e.code }

// WithPath returns a copy of e with path appended.
func (e *Error) WithPath(path ...any) *Error {
	cp := *e
	cp.Path = append(append([]any{}, e.Path...), path...)
	return &cp
}

func new_(code, format string, args ...any) *Error {
	e := &Error{Message: fmt.Sprintf(format, args...), code: code}
	e.Extensions = map[string]any{"code": code}
	return e
}

// Binding / validation errors (§4.1, §7).
func UnknownField(typeName, field string) *Error {
	return new_("UNKNOWN_FIELD", "Cannot query field %q on type %q", field, typeName)
}
func UnknownType(name string) *Error { return new_("UNKNOWN_TYPE", "Unknown type %q", name) }
func UnknownFragment(name string) *Error {
	return new_("UNKNOWN_FRAGMENT", "Unknown fragment %q", name)
}
func DisjointTypeCondition(cond, parent string) *Error {
	return new_("DISJOINT_TYPE_CONDITION", "Fragment on %q can never be used on %q", cond, parent)
}
func UnionHaveNoFields(name string) *Error {
	return new_("UNION_HAVE_NO_FIELDS", "Union %q has no fields; use inline fragments", name)
}
func InvalidTypeConditionTargetType(name string) *Error {
	return new_("INVALID_TYPE_CONDITION_TARGET_TYPE", "Type condition %q is not composite", name)
}
func MissingDirectiveArgument(directive, arg string) *Error {
	return new_("MISSING_DIRECTIVE_ARGUMENT", "Directive @%s requires argument %q", directive, arg)
}
func TooManyFields() *Error {
	return new_("TOO_MANY_FIELDS", "operation exceeds the maximum number of distinct field positions")
}
func VariableDefaultValueReliesOnAnotherVariable(name string) *Error {
	return new_("VARIABLE_DEFAULT_VALUE_RELIES_ON_ANOTHER_VARIABLE", "default value of $%s cannot reference another variable", name)
}

// Input coercion errors.
func UnexpectedNull(typeName string) *Error {
	return new_("UNEXPECTED_NULL", "unexpected null for non-null type %q", typeName)
}
func MissingList(typeName string) *Error {
	return new_("MISSING_LIST", "expected a list value for type %q", typeName)
}
func MissingObject(typeName string) *Error {
	return new_("MISSING_OBJECT", "expected an object value for type %q", typeName)
}
func IncorrectScalarType(typeName string, value any) *Error {
	return new_("INCORRECT_SCALAR_TYPE", "value %v is not a valid %q", value, typeName)
}
func IncorrectScalarValue(typeName string, value any) *Error {
	return new_("INCORRECT_SCALAR_VALUE", "value %v is out of range for %q", value, typeName)
}
func UnknownInputField(typeName, field string) *Error {
	return new_("UNKNOWN_INPUT_FIELD", "unknown field %q on input type %q", field, typeName)
}
func UnknownEnumValue(typeName, value string) *Error {
	return new_("UNKNOWN_ENUM_VALUE", "value %q is not a member of enum %q", value, typeName)
}
func UnknownVariable(name string) *Error {
	return new_("UNKNOWN_VARIABLE", "variable $%s is not declared", name)
}
func IncorrectVariableType(name, want string) *Error {
	return new_("INCORRECT_VARIABLE_TYPE", "variable $%s must be of type %q", name, want)
}
func OneOfViolation(typeName string) *Error {
	return new_("ONEOF_VIOLATION", "oneOf input %q must have exactly one non-null member", typeName)
}

// Planning errors (§7).
func CouldNotPlanAnyField(path string) *Error {
	return new_("COULD_NOT_PLAN_ANY_FIELD", "no subgraph can resolve %q", path)
}
func RequirementCycleDetected() *Error {
	return new_("REQUIREMENT_CYCLE_DETECTED", "solver cost fix-point did not converge: @requires cycle")
}
func NoMatchingKey(typeName string) *Error {
	return new_("NO_MATCHING_KEY", "no subgraph key matches the representation for %q", typeName)
}

// Authorization errors.
func Unauthenticated() *Error {
	return new_("UNAUTHENTICATED", "authentication is required for this field")
}
func Unauthorized(message string) *Error {
	if message == "" {
		message = "not authorized"
	}
	return new_("UNAUTHORIZED", "%s", message)
}

// Subgraph / execution errors.
func SubgraphError(subgraph string, err error) *Error {
	return new_("SUBGRAPH_ERROR", "subgraph %q request failed: %v", subgraph, err)
}
func SubgraphInvalidResponseError(subgraph, reason string) *Error {
	return new_("SUBGRAPH_INVALID_RESPONSE_ERROR", "subgraph %q returned an invalid response: %s", subgraph, reason)
}
func SubgraphTimeout(subgraph string) *Error {
	return new_("SUBGRAPH_TIMEOUT", "subgraph %q did not respond in time", subgraph)
}
func Timeout() *Error {
	return new_("TIMEOUT", "request exceeded its deadline")
}

// Parse/operation-level errors.
func OperationParsingError(detail string) *Error {
	return new_("OPERATION_PARSING_ERROR", "%s", detail)
}
func OperationValidationError(detail string) *Error {
	return new_("OPERATION_VALIDATION_ERROR", "%s", detail)
}
