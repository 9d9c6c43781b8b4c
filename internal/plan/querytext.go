package plan

import (
	"fmt"
	"sort"
	"strings"

	"github.com/n9te9/federation-core/internal/bind"
	"github.com/n9te9/graphql-parser/ast"
)

// BuildQueryText renders a StepTypeQuery partition's subgraph query/mutation
// document plus the variable map to send alongside it. A StepTypeEntity
// partition returns an error; its _entities(representations:) join is
// rendered by BuildEntityQueryText. Grounded on
// federation/executor/query_builder_v2.go's Build/buildRootQuery/
// buildEntityQuery/writeSelection/writeValue.
func BuildQueryText(p *Partition, operationType string, variables map[string]any) (string, map[string]any, error) {
	if p.StepType == StepTypeQuery {
		return buildRootQuery(p, operationType, variables)
	}
	return "", nil, fmt.Errorf("plan: entity partitions are rendered via BuildEntityQueryText with representations")
}

// BuildEntityQueryText renders an _entities query given the representations
// extracted from the parent partition's response (§4.4's entity-join frame).
func BuildEntityQueryText(p *Partition, representations []map[string]any) (string, map[string]any, error) {
	if len(representations) == 0 {
		return "", nil, fmt.Errorf("plan: representations cannot be empty for an entity partition")
	}

	var sb strings.Builder
	sb.WriteString("query ($representations: [_Any!]!) {\n")
	sb.WriteString("\t_entities(representations: $representations) {\n")
	sb.WriteString("\t\t... on ")
	sb.WriteString(p.ParentType)
	sb.WriteString(" {\n")
	for _, f := range p.SelectionSet {
		writeField(&sb, f, "\t\t\t", p.ParentType)
	}
	sb.WriteString("\t\t}\n\t}\n}")

	return sb.String(), map[string]any{"representations": representations}, nil
}

func buildRootQuery(p *Partition, operationType string, variables map[string]any) (string, map[string]any, error) {
	var sb strings.Builder

	varNames := collectVariables(p.SelectionSet)
	if operationType == "" {
		operationType = "query"
	}

	sb.WriteString(operationType)
	if len(varNames) > 0 {
		sb.WriteString(" (")
		for i, name := range varNames {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(name)
			sb.WriteString(": ")
			sb.WriteString(inferVariableType(name, variables))
		}
		sb.WriteString(")")
	}
	sb.WriteString(" {\n")

	for _, f := range p.SelectionSet {
		writeField(&sb, f, "\t", p.ParentType)
	}
	sb.WriteString("}")

	return sb.String(), variables, nil
}

func collectVariables(fields []*bind.Field) []string {
	seen := make(map[string]bool)
	var walk func([]*bind.Field)
	walk = func(fs []*bind.Field) {
		for _, f := range fs {
			for _, arg := range f.Args {
				collectVariablesFromValue(arg.Value, seen)
			}
			for _, mod := range f.Modifiers {
				if (mod.Kind == bind.ModifierSkip || mod.Kind == bind.ModifierInclude) && !mod.HasConst {
					seen[mod.SkipIncludeVar] = true
				}
			}
			walk(f.SelectionSet)
		}
	}
	walk(fields)

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func collectVariablesFromValue(val ast.Value, seen map[string]bool) {
	switch v := val.(type) {
	case *ast.Variable:
		seen[v.Name] = true
	case *ast.ListValue:
		for _, item := range v.Values {
			collectVariablesFromValue(item, seen)
		}
	case *ast.ObjectValue:
		for _, field := range v.Fields {
			collectVariablesFromValue(field.Value, seen)
		}
	}
}

// inferVariableType falls back to the runtime value's Go type when no
// schema-derived type is threaded through (the subgraph's own parser
// rejects a mismatched declaration, which is an acceptable tradeoff for a
// gateway that has already coerced the value against the supergraph).
func inferVariableType(name string, variables map[string]any) string {
	switch v := variables[name].(type) {
	case string:
		return "String"
	case bool:
		return "Boolean"
	case float64, float32:
		return "Float"
	case int, int32, int64:
		return "Int"
	case nil:
		return "String"
	default:
		_ = v
		return "String"
	}
}

func writeField(sb *strings.Builder, f *bind.Field, indent, parentType string) {
	sb.WriteString(indent)
	if f.ResponseKey != f.FieldName {
		sb.WriteString(f.ResponseKey)
		sb.WriteString(": ")
	}
	sb.WriteString(f.FieldName)

	if len(f.Args) > 0 {
		sb.WriteString("(")
		for i, arg := range f.Args {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(arg.Name.String())
			sb.WriteString(": ")
			writeValue(sb, arg.Value)
		}
		sb.WriteString(")")
	}

	writeDirectives(sb, f.Modifiers)

	if len(f.SelectionSet) > 0 {
		sb.WriteString(" {\n")
		for _, child := range f.SelectionSet {
			writeField(sb, child, indent+"\t", f.FieldName)
		}
		sb.WriteString(indent)
		sb.WriteString("}")
	}
	sb.WriteString("\n")
}

// writeDirectives re-emits @skip/@include so the subgraph, not just the
// gateway, can short-circuit resolution of a conditionally-requested field.
func writeDirectives(sb *strings.Builder, mods []bind.Modifier) {
	for _, m := range mods {
		switch m.Kind {
		case bind.ModifierSkip:
			writeSkipInclude(sb, "skip", m)
		case bind.ModifierInclude:
			writeSkipInclude(sb, "include", m)
		}
	}
}

func writeSkipInclude(sb *strings.Builder, name string, m bind.Modifier) {
	sb.WriteString(" @")
	sb.WriteString(name)
	sb.WriteString("(if: ")
	if m.HasConst {
		sb.WriteString(fmt.Sprintf("%t", m.SkipIncludeConst))
	} else {
		sb.WriteString("$")
		sb.WriteString(m.SkipIncludeVar)
	}
	sb.WriteString(")")
}

func writeValue(sb *strings.Builder, val ast.Value) {
	switch v := val.(type) {
	case *ast.StringValue:
		sb.WriteString("\"")
		sb.WriteString(v.Value)
		sb.WriteString("\"")
	case *ast.IntValue:
		sb.WriteString(fmt.Sprintf("%d", v.Value))
	case *ast.FloatValue:
		sb.WriteString(fmt.Sprintf("%f", v.Value))
	case *ast.BooleanValue:
		sb.WriteString(fmt.Sprintf("%t", v.Value))
	case *ast.Variable:
		sb.WriteString("$")
		sb.WriteString(v.Name)
	case *ast.ListValue:
		sb.WriteString("[")
		for i, item := range v.Values {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeValue(sb, item)
		}
		sb.WriteString("]")
	case *ast.ObjectValue:
		sb.WriteString("{")
		for i, field := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(field.Name.String())
			sb.WriteString(": ")
			writeValue(sb, field.Value)
		}
		sb.WriteString("}")
	case *ast.EnumValue:
		sb.WriteString(v.Value)
	default:
		sb.WriteString("null")
	}
}
