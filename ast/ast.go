// Package ast decodes the tagged node tree the compiler consumes. The AST
// producer (parser/semantic analyzer) is an external collaborator — this
// package only gives the compiler a convenient view over the JSON shape
// an upstream parser emits, mirroring the {"type": Tag, ...fields} printer
// convention its teacher already used for debugging its own tree-walker.
package ast

import "encoding/json"

// Node is a single tagged AST node, decoded lazily: Type drives dispatch,
// and Raw holds the full json.RawMessage so per-node fields can be pulled
// out on demand without a fixed Go struct per node kind (the node set is
// defined by the upstream parser, not by this package).
type Node struct {
	Type string
	Raw  json.RawMessage
}

// Decode parses a single JSON-encoded AST node. A bare literal (number,
// string, bool, null, or array of nodes) has no "type" field; Type is left
// empty and the original encoding stays in Raw so the compiler's fallback
// path can inspect it directly.
func Decode(data json.RawMessage) (Node, error) {
	var probe struct {
		Type string `json:"type"`
	}
	// A literal scalar/array fails to unmarshal into probe's field only when
	// it isn't a JSON object; that's expected and not an error here.
	_ = json.Unmarshal(data, &probe)
	return Node{Type: probe.Type, Raw: data}, nil
}

// Field extracts a named field of the node into dst. It reports false if
// the field is absent (not an error: most fields are optional per node
// kind).
func (n Node) Field(name string, dst any) (bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(n.Raw, &obj); err != nil {
		return false, nil
	}
	raw, ok := obj[name]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

// NodeField extracts a named field as a single child Node.
func (n Node) NodeField(name string) (Node, bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(n.Raw, &obj); err != nil {
		return Node{}, false, nil
	}
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		return Node{}, false, nil
	}
	child, err := Decode(raw)
	return child, true, err
}

// NodeListField extracts a named field as a slice of child Nodes.
func (n Node) NodeListField(name string) ([]Node, bool, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(n.Raw, &obj); err != nil {
		return nil, false, nil
	}
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		return nil, false, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false, err
	}
	nodes := make([]Node, len(items))
	for i, item := range items {
		child, err := Decode(item)
		if err != nil {
			return nil, false, err
		}
		nodes[i] = child
	}
	return nodes, true, nil
}

// StringField extracts a named string field, defaulting to fallback.
func (n Node) StringField(name, fallback string) string {
	var s string
	if ok, err := n.Field(name, &s); ok && err == nil {
		return s
	}
	return fallback
}

// OpType extracts the nested "op.type" tag compound binary/unary operator
// nodes carry (e.g. {"op": {"type": "TAMBAH"}, ...}).
func (n Node) OpType() string {
	var op struct {
		Type string `json:"type"`
	}
	if ok, err := n.Field("op", &op); ok && err == nil {
		return op.Type
	}
	return ""
}

// IsNumber, IsString, IsBool, IsNull and IsArray classify a bare-literal
// node (no "type" tag) for the compiler's literal fallback path.
func (n Node) IsNumber() bool {
	if len(n.Raw) == 0 {
		return false
	}
	c := n.Raw[0]
	return c == '-' || (c >= '0' && c <= '9')
}

func (n Node) IsString() bool {
	return len(n.Raw) > 0 && n.Raw[0] == '"'
}

func (n Node) IsBool() bool {
	s := string(n.Raw)
	return s == "true" || s == "false"
}

func (n Node) IsNull() bool {
	return string(n.Raw) == "null"
}

func (n Node) IsArray() bool {
	return len(n.Raw) > 0 && n.Raw[0] == '['
}

func (n Node) AsFloat64() (float64, bool) {
	var f float64
	if err := json.Unmarshal(n.Raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func (n Node) AsInt64() (int64, bool) {
	var i int64
	if err := json.Unmarshal(n.Raw, &i); err != nil {
		return 0, false
	}
	return i, true
}

func (n Node) AsString() (string, bool) {
	var s string
	if err := json.Unmarshal(n.Raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (n Node) AsBool() (bool, bool) {
	var b bool
	if err := json.Unmarshal(n.Raw, &b); err != nil {
		return false, false
	}
	return b, true
}

// AsArrayIfArray decodes n as a slice of child Nodes only if the raw
// encoding is a JSON array; otherwise it reports false with no error.
func (n Node) AsArrayIfArray() ([]Node, bool, error) {
	if !n.IsArray() {
		return nil, false, nil
	}
	nodes, err := n.AsArray()
	return nodes, true, err
}

func (n Node) AsArray() ([]Node, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(n.Raw, &items); err != nil {
		return nil, err
	}
	nodes := make([]Node, len(items))
	for i, item := range items {
		child, err := Decode(item)
		if err != nil {
			return nil, err
		}
		nodes[i] = child
	}
	return nodes, nil
}
