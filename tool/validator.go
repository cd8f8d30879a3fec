package tool

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf8"
)

// Validate checks input against the schema. Empty input is treated as an
// empty object so tools without parameters accept a bare call.
func (s ToolSchema) Validate(input json.RawMessage) error {
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}

	var doc map[string]any
	if err := json.Unmarshal(input, &doc); err != nil {
		return fmt.Errorf("input must be a JSON object: %w", err)
	}
	return checkObject("", s.Properties, s.Required, doc)
}

func checkObject(path string, props map[string]PropertyDef, required []string, doc map[string]any) error {
	for _, name := range required {
		if _, ok := doc[name]; !ok {
			return fmt.Errorf("%s: required", join(path, name))
		}
	}
	for name, value := range doc {
		def, ok := props[name]
		if !ok {
			continue
		}
		if err := def.check(join(path, name), value); err != nil {
			return err
		}
	}
	return nil
}

func (d PropertyDef) check(path string, value any) error {
	if value == nil {
		return nil
	}

	switch d.Type {
	case "string":
		str, ok := value.(string)
		if !ok {
			return mismatch(path, d.Type, value)
		}
		n := utf8.RuneCountInString(str)
		if d.MinLength != nil && n < *d.MinLength {
			return fmt.Errorf("%s: shorter than %d characters", path, *d.MinLength)
		}
		if d.MaxLength != nil && n > *d.MaxLength {
			return fmt.Errorf("%s: longer than %d characters", path, *d.MaxLength)
		}
		if len(d.Enum) > 0 && !slices.Contains(d.Enum, str) {
			return fmt.Errorf("%s: %q is not one of %v", path, str, d.Enum)
		}

	case "number", "integer":
		num, ok := value.(float64)
		if !ok {
			return mismatch(path, d.Type, value)
		}
		if d.Type == "integer" && num != math.Trunc(num) {
			return fmt.Errorf("%s: %v is not an integer", path, num)
		}
		if d.Minimum != nil && num < *d.Minimum {
			return fmt.Errorf("%s: %v is below %v", path, num, *d.Minimum)
		}
		if d.Maximum != nil && num > *d.Maximum {
			return fmt.Errorf("%s: %v is above %v", path, num, *d.Maximum)
		}

	case "boolean":
		if _, ok := value.(bool); !ok {
			return mismatch(path, d.Type, value)
		}

	case "array":
		items, ok := value.([]any)
		if !ok {
			return mismatch(path, d.Type, value)
		}
		if d.Items == nil {
			return nil
		}
		for i, item := range items {
			if err := d.Items.check(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}

	case "object":
		obj, ok := value.(map[string]any)
		if !ok {
			return mismatch(path, d.Type, value)
		}
		return checkObject(path, d.Properties, nil, obj)
	}

	return nil
}

func mismatch(path, want string, got any) error {
	return fmt.Errorf("%s: expected %s, got %s", path, want, jsonKind(got))
}

func jsonKind(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return "null"
	}
}

func join(path, name string) string {
	if path == "" {
		return name
	}
	return path + "." + name
}
