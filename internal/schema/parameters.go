package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// Parameters is a tool's parameter schema: a JSON Schema object whose
// property declaration order is preserved.
type Parameters struct {
	schema *jsonschema.Schema
	order  []string
}

// EmptyParameters returns an object schema without properties.
func EmptyParameters() *Parameters {
	return &Parameters{schema: &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}}}
}

// ParseParameters parses a JSON Schema document. The top-level type must be
// "object" (or absent). Property order follows the document.
func ParseParameters(raw []byte) (*Parameters, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return EmptyParameters(), nil
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidTool, err)
	}
	order, err := propertyOrder(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidTool, err)
	}
	return newParameters(&s, order)
}

// ParametersFromValue accepts a decoded JSON value (map), a JSON string, or
// raw bytes. Maps carry no key order, so required properties come first in
// their listed order followed by the rest alphabetically.
func ParametersFromValue(v any) (*Parameters, error) {
	switch val := v.(type) {
	case nil:
		return EmptyParameters(), nil
	case *Parameters:
		return val, nil
	case json.RawMessage:
		return ParseParameters(val)
	case []byte:
		return ParseParameters(val)
	case string:
		return ParseParameters([]byte(val))
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidTool, err)
	}
	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: parameters: %v", ErrInvalidTool, err)
	}
	return newParameters(&s, nil)
}

func newParameters(s *jsonschema.Schema, order []string) (*Parameters, error) {
	if s.Type != "" && s.Type != "object" {
		return nil, fmt.Errorf("%w: parameters must be an object schema, got %q", ErrInvalidTool, s.Type)
	}
	s.Type = "object"
	if s.Properties == nil {
		s.Properties = map[string]*jsonschema.Schema{}
	}

	seen := make(map[string]bool, len(s.Properties))
	names := make([]string, 0, len(s.Properties))
	for _, name := range order {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; ok && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	var rest []string
	for name := range s.Properties {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	names = append(names, rest...)

	return &Parameters{schema: s, order: names}, nil
}

// Names returns the property names in declared order.
func (p *Parameters) Names() []string { return slices.Clone(p.order) }

func (p *Parameters) Required() []string { return slices.Clone(p.schema.Required) }

// Property returns the sub-schema of one property.
func (p *Parameters) Property(name string) (*jsonschema.Schema, bool) {
	s, ok := p.schema.Properties[name]
	return s, ok
}

// Schema exposes the underlying schema. Callers must not modify it.
func (p *Parameters) Schema() *jsonschema.Schema { return p.schema }

// MarshalJSON writes the schema with "properties" in declared order.
func (p *Parameters) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(p.schema)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}
	delete(fields, "properties")

	var buf bytes.Buffer
	buf.WriteString(`{"properties":{`)
	for i, name := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		prop, err := json.Marshal(p.schema.Properties[name])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(prop)
	}
	buf.WriteByte('}')

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key, _ := json.Marshal(k)
		buf.WriteByte(',')
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (p *Parameters) UnmarshalJSON(data []byte) error {
	parsed, err := ParseParameters(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// propertyOrder lists the keys of the top-level "properties" object in the
// order they appear in raw.
func propertyOrder(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("schema must be a JSON object")
	}

	var names []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, _ := tok.(string)
		if key != "properties" {
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
			continue
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); !ok || d != '{' {
			continue
		}
		for dec.More() {
			tok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			name, _ := tok.(string)
			names = append(names, name)
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, err
			}
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
	}
	return names, nil
}
