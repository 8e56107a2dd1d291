package tools

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ParameterSchema is the JSON Schema of a tool's arguments.
type ParameterSchema struct {
	Type        string                      `json:"type"`
	Description string                      `json:"description,omitempty"`
	Default     any                         `json:"default,omitempty"`
	Properties  map[string]*ParameterSchema `json:"properties,omitempty"`
	Required    []string                    `json:"required,omitempty"`

	// order keeps properties in struct field order for declarations.
	order []string
}

// schemaFor derives an object schema from an argument struct type.
//
// Field names come from the json tag. A field is optional when its json tag
// has omitempty or its type is a pointer. The description and default tags
// fill the matching keywords.
func schemaFor(t reflect.Type) (*ParameterSchema, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("tool arguments must be a struct, got %s", t.Kind())
	}

	schema := &ParameterSchema{
		Type:       "object",
		Properties: make(map[string]*ParameterSchema),
	}
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		name, opts, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		ft := field.Type
		optional := strings.Contains(opts, "omitempty")
		if ft.Kind() == reflect.Ptr {
			optional = true
			ft = ft.Elem()
		}

		prop := &ParameterSchema{
			Type:        mapGoTypeToJSONType(ft),
			Description: field.Tag.Get("description"),
		}
		if def, ok := field.Tag.Lookup("default"); ok {
			v, err := parseDefault(def, ft)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", field.Name, err)
			}
			prop.Default = v
			optional = true
		}

		schema.Properties[name] = prop
		schema.order = append(schema.order, name)
		if !optional {
			schema.Required = append(schema.Required, name)
		}
	}
	return schema, nil
}

func parseDefault(raw string, t reflect.Type) (any, error) {
	switch mapGoTypeToJSONType(t) {
	case "integer":
		return strconv.Atoi(raw)
	case "number":
		return strconv.ParseFloat(raw, 64)
	case "boolean":
		return strconv.ParseBool(raw)
	default:
		return raw, nil
	}
}

// mapGoTypeToJSONType maps Go types to JSON schema types.
func mapGoTypeToJSONType(goType reflect.Type) string {
	switch goType.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "integer"
	case reflect.Float32, reflect.Float64:
		return "number"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

// compileSchema compiles schema for argument validation.
func compileSchema(name string, schema *ParameterSchema) (*jsonschema.Schema, json.RawMessage, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	url := "shopper://tools/" + name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, nil, fmt.Errorf("compile schema: %w", err)
	}
	return compiled, raw, nil
}
