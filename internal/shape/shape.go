// Package shape implements response shaping (§4.6): type-aware projection
// of the executor's merged value tree into the client-visible shape, with
// null propagation, typename discrimination and field-error attachment.
//
// Grounded on federation/executor/executor_v2.go's pruneResponse/pruneObject
// (projecting a raw subgraph payload down to exactly the fields the
// operation asked for), generalized to also evaluate query modifiers
// (§4.5/§4.6) and to produce order-preserving output instead of a plain
// map[string]any, since a Go map's JSON encoding sorts keys and would
// violate §5's "fields are emitted in query-position order" guarantee.
package shape

import (
	"context"
	"encoding/json"

	"github.com/n9te9/federation-core/internal/auth"
	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/federation-core/internal/gqlerr"
	"github.com/n9te9/federation-core/internal/supergraph"
	"github.com/n9te9/graphql-parser/ast"
)

// Object is an insertion-ordered response object: §3.4's ConcreteObjectShape
// projected into a concrete value. A plain map loses the field ordering
// the specification requires, so the shaper always returns this instead.
type Object struct {
	Keys   []string
	Values map[string]any
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{Values: make(map[string]any)}
}

// Set appends key (if new) and assigns its value, preserving first-seen order.
func (o *Object) Set(key string, value any) {
	if _, exists := o.Values[key]; !exists {
		o.Keys = append(o.Keys, key)
	}
	o.Values[key] = value
}

// Get returns the value at key, if present.
func (o *Object) Get(key string) (any, bool) {
	v, ok := o.Values[key]
	return v, ok
}

// MarshalJSON emits the object's fields in Keys order rather than the
// alphabetical order encoding/json and goccy/go-json apply to map[string]any.
func (o *Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("null"), nil
	}
	buf := make([]byte, 0, 64)
	buf = append(buf, '{')
	for i, k := range o.Keys {
		if i > 0 {
			buf = append(buf, ',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf = append(buf, kb...)
		buf = append(buf, ':')
		vb, err := json.Marshal(o.Values[k])
		if err != nil {
			return nil, err
		}
		buf = append(buf, vb...)
	}
	buf = append(buf, '}')
	return buf, nil
}

// RequestContext carries the per-request authentication/authorization state
// the shaper consults when evaluating @authenticated/@requiresScopes/
// @authorized modifier rules (§4.5).
type RequestContext struct {
	Token      auth.Token
	Authorizer auth.Hook
	Variables  map[string]any
}

func (rc *RequestContext) authorizer() auth.Hook {
	if rc.Authorizer == nil {
		return auth.NoopHook{}
	}
	return rc.Authorizer
}

type projector struct {
	schema *supergraph.Schema
	rc     *RequestContext
	ctx    context.Context
	errs   []*gqlerr.Error
}

// Project walks op's bound selection set against data (the executor's
// merged, root-relative response tree), evaluating query modifiers,
// propagating nulls per the GraphQL wrapping rules and attaching field
// errors at their origin path (§4.6, §7's propagation policy). It returns
// the shaped root object - nil if the root itself must null out - plus
// every field/modifier error collected along the way.
func Project(ctx context.Context, op *bind.Operation, schema *supergraph.Schema, data map[string]any, rc *RequestContext) (*Object, []*gqlerr.Error) {
	if rc == nil {
		rc = &RequestContext{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p := &projector{schema: schema, rc: rc, ctx: ctx}
	obj, bubble := p.projectObject(op.SelectionSet, op.RootType, data, nil)
	if bubble {
		return nil, p.errs
	}
	return obj, p.errs
}

// ProjectFields shapes one deferred group's fields (§6's incremental
// delivery) against the same merged data tree Project uses, independent of
// the rest of the operation's selection set. Callers (internal/exec's
// RunDeferred) invoke this once per @defer label once that label's
// dependent partitions have resolved.
func ProjectFields(ctx context.Context, fields []*bind.Field, parentType string, schema *supergraph.Schema, data map[string]any, rc *RequestContext) (*Object, []*gqlerr.Error) {
	if rc == nil {
		rc = &RequestContext{}
	}
	if ctx == nil {
		ctx = context.Background()
	}
	p := &projector{schema: schema, rc: rc, ctx: ctx}
	obj := NewObject()
	for _, f := range fields {
		value, bubble, skip := p.projectField(f, parentType, data, nil)
		if skip || bubble {
			continue
		}
		obj.Set(f.ResponseKey, value)
	}
	return obj, p.errs
}

func (p *projector) addError(e *gqlerr.Error, path []any) {
	p.errs = append(p.errs, e.WithPath(path...))
}

// projectObject projects one object-typed selection set against data,
// returning (nil, true) if a NonNull field inside it came back null and the
// whole object must bubble the null one level further up. A field denied by
// a modifier is elided instead (projectField reports skip), even when NonNull.
func (p *projector) projectObject(fields []*bind.Field, parentType string, data map[string]any, path []any) (*Object, bool) {
	if data == nil {
		return nil, false
	}
	obj := NewObject()
	for _, f := range fields {
		if f.DeferLabel != "" {
			continue // shipped separately as an incremental patch, see internal/exec
		}
		value, bubble, skip := p.projectField(f, parentType, data, path)
		if skip {
			continue
		}
		if bubble {
			return nil, true
		}
		obj.Set(f.ResponseKey, value)
	}
	return obj, false
}

// projectField evaluates f's modifiers then projects its value. skip means
// the field is entirely elided (no response key emitted at all, per
// @skip/@include and the "modifier failure does not fail the operation"
// rule); bubble means the field's own non-null requirement was violated and
// the enclosing object must null out instead.
func (p *projector) projectField(f *bind.Field, parentType string, data map[string]any, path []any) (value any, bubble, skip bool) {
	fieldPath := append(append([]any{}, path...), f.ResponseKey)

	for _, m := range f.Modifiers {
		switch m.Kind {
		case bind.ModifierSkip:
			if p.evalBool(m) {
				return nil, false, true
			}
		case bind.ModifierInclude:
			if !p.evalBool(m) {
				return nil, false, true
			}
		case bind.ModifierAuthenticated:
			if p.rc.Token.Anonymous {
				p.addError(gqlerr.Unauthenticated(), fieldPath)
				return nil, false, true
			}
		case bind.ModifierRequiresScopes:
			if !p.rc.Token.SatisfiesDNF(m.Scopes) {
				p.addError(gqlerr.Unauthorized("missing required scope"), fieldPath)
				return nil, false, true
			}
		case bind.ModifierAuthorizedField:
			if err := p.rc.authorizer().AuthorizeField(p.ctx, parentType, f.FieldName, argValues(f.Args, p.rc.Variables)); err != nil {
				p.addError(gqlerr.Unauthorized(err.Error()), fieldPath)
				return nil, false, true
			}
		}
	}

	if f.FieldName == "__typename" {
		if tn, ok := data["__typename"].(string); ok {
			return tn, false, false
		}
		return parentType, false, false
	}

	raw, present := data[f.ResponseKey]
	if !present {
		raw, present = data[f.FieldName]
	}

	nonNull := p.fieldIsNonNull(parentType, f.FieldName)

	if !present || raw == nil {
		if nonNull {
			p.addError(gqlerr.UnexpectedNull(f.FieldName), fieldPath)
			return nil, true, false
		}
		return nil, false, false
	}

	if len(f.SelectionSet) == 0 {
		return raw, false, false
	}

	childType := p.fieldNamedType(parentType, f.FieldName)

	switch v := raw.(type) {
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				out = append(out, item)
				continue
			}
			itemPath := append(append([]any{}, fieldPath...), i)
			concrete := p.resolveConcreteType(childType, m)
			child, childBubble := p.projectObject(f.SelectionSet, concrete, m, itemPath)
			if childBubble {
				if nonNull {
					return nil, true, false
				}
				out = append(out, nil)
				continue
			}
			out = append(out, child)
		}
		return out, false, false
	case map[string]any:
		concrete := p.resolveConcreteType(childType, v)
		child, childBubble := p.projectObject(f.SelectionSet, concrete, v, fieldPath)
		if childBubble {
			if nonNull {
				return nil, true, false
			}
			return nil, false, false
		}
		return child, false, false
	default:
		return raw, false, false
	}
}

func (p *projector) evalBool(m bind.Modifier) bool {
	if m.HasConst {
		return m.SkipIncludeConst
	}
	if v, ok := p.rc.Variables[m.SkipIncludeVar]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func (p *projector) fieldIsNonNull(parentType, fieldName string) bool {
	if p.schema == nil {
		return false
	}
	t, ok := p.schema.FieldTypeRef(parentType, fieldName)
	if !ok {
		return false
	}
	return supergraph.IsNonNullType(t)
}

func (p *projector) fieldNamedType(parentType, fieldName string) string {
	if p.schema == nil {
		return ""
	}
	t, ok := p.schema.FieldTypeRef(parentType, fieldName)
	if !ok {
		return ""
	}
	return supergraph.NamedTypeName(t)
}

// resolveConcreteType implements the object-identifier policy (§4.6): for an
// interface/union field it reads __typename off the payload; for a concrete
// object type it's already Known and needs no discrimination.
func (p *projector) resolveConcreteType(declaredType string, data map[string]any) string {
	if p.schema == nil || declaredType == "" {
		if tn, ok := data["__typename"].(string); ok {
			return tn
		}
		return declaredType
	}
	if !p.schema.IsAbstractType(declaredType) {
		return declaredType
	}
	if tn, ok := data["__typename"].(string); ok && tn != "" {
		return tn
	}
	return declaredType
}

// argValues resolves a field's AST arguments against variables into a plain
// map for the authorization hook's "arguments view" (§6). Grounded on
// query_builder_v2.go's writeValue, adapted to produce Go values instead of
// GraphQL literal text.
func argValues(args []*ast.Argument, variables map[string]any) map[string]any {
	if len(args) == 0 {
		return nil
	}
	out := make(map[string]any, len(args))
	for _, arg := range args {
		out[arg.Name.String()] = resolveValue(arg.Value, variables)
	}
	return out
}

func resolveValue(val ast.Value, variables map[string]any) any {
	switch v := val.(type) {
	case *ast.StringValue:
		return v.Value
	case *ast.IntValue:
		return v.Value
	case *ast.FloatValue:
		return v.Value
	case *ast.BooleanValue:
		return v.Value
	case *ast.EnumValue:
		return v.Value
	case *ast.Variable:
		return variables[v.Name]
	case *ast.ListValue:
		out := make([]any, len(v.Values))
		for i, item := range v.Values {
			out[i] = resolveValue(item, variables)
		}
		return out
	case *ast.ObjectValue:
		out := make(map[string]any, len(v.Fields))
		for _, field := range v.Fields {
			out[field.Name.String()] = resolveValue(field.Value, variables)
		}
		return out
	default:
		return nil
	}
}
