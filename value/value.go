// Package value implements the tagged-value model shared by the compiler
// and the virtual machine: a sum type over None, Bool, Int, Float, String,
// List, Dict and Function, with the arithmetic, comparison, indexing,
// membership, length, display and deep-clone contracts the engine runs on.
package value

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Kind tags which variant of Value is populated.
type Kind byte

const (
	KindNone Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindDict
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindBool:
		return "Bool"
	case KindInt:
		return "Int"
	case KindFloat:
		return "Float"
	case KindString:
		return "String"
	case KindList:
		return "List"
	case KindDict:
		return "Dict"
	case KindFunction:
		return "Function"
	default:
		return "Unknown"
	}
}

// DictEntry is one (key, value) pair of an ordered Dict.
type DictEntry struct {
	Key   string
	Value Value
}

// Function is the payload of a Value of KindFunction.
type Function struct {
	Name           string
	Params         []string
	BytecodeOffset uint32
}

// Value is the sole runtime type. Only the field matching Kind is
// meaningful; the zero Value is None.
type Value struct {
	Kind     Kind
	BoolVal  bool
	IntVal   int64
	FloatVal float64
	StrVal   string
	ListVal  []Value
	DictVal  []DictEntry
	FuncVal  *Function
}

// epsilon used for float equality, per the single-machine-epsilon contract.
// Matches the original source's f64::EPSILON, not an arbitrarily widened
// tolerance.
const epsilon = 2.220446049250313e-16

func None() Value                { return Value{Kind: KindNone} }
func Bool(b bool) Value           { return Value{Kind: KindBool, BoolVal: b} }
func Int(i int64) Value           { return Value{Kind: KindInt, IntVal: i} }
func Float(f float64) Value       { return Value{Kind: KindFloat, FloatVal: f} }
func String(s string) Value       { return Value{Kind: KindString, StrVal: s} }
func List(items []Value) Value    { return Value{Kind: KindList, ListVal: items} }
func Dict(entries []DictEntry) Value { return Value{Kind: KindDict, DictVal: entries} }
func Func(f *Function) Value      { return Value{Kind: KindFunction, FuncVal: f} }

// TypeName returns the variant name used in error messages.
func (v Value) TypeName() string { return v.Kind.String() }

// IsTruthy implements the per-variant truthiness table from the data model.
func (v Value) IsTruthy() bool {
	switch v.Kind {
	case KindNone:
		return false
	case KindBool:
		return v.BoolVal
	case KindInt:
		return v.IntVal != 0
	case KindFloat:
		return v.FloatVal != 0
	case KindString:
		return v.StrVal != ""
	case KindList:
		return len(v.ListVal) != 0
	case KindDict:
		return len(v.DictVal) != 0
	case KindFunction:
		return true
	default:
		return false
	}
}

// Clone deep-clones Lists, Dicts and Strings so pushes/pops/stores never
// share mutable backing storage (value semantics, no aliasing).
func (v Value) Clone() Value {
	switch v.Kind {
	case KindList:
		cloned := make([]Value, len(v.ListVal))
		for i, item := range v.ListVal {
			cloned[i] = item.Clone()
		}
		return List(cloned)
	case KindDict:
		cloned := make([]DictEntry, len(v.DictVal))
		for i, entry := range v.DictVal {
			cloned[i] = DictEntry{Key: entry.Key, Value: entry.Value.Clone()}
		}
		return Dict(cloned)
	default:
		return v
	}
}

// String renders the display form observable via Print.
func (v Value) String() string {
	switch v.Kind {
	case KindNone:
		return "kosong"
	case KindBool:
		if v.BoolVal {
			return "benar"
		}
		return "salah"
	case KindInt:
		return fmt.Sprintf("%d", v.IntVal)
	case KindFloat:
		return formatFloat(v.FloatVal)
	case KindString:
		return v.StrVal
	case KindList:
		parts := make([]string, len(v.ListVal))
		for i, item := range v.ListVal {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindDict:
		parts := make([]string, len(v.DictVal))
		for i, entry := range v.DictVal {
			parts[i] = fmt.Sprintf("%q: %s", entry.Key, entry.Value.String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KindFunction:
		return fmt.Sprintf("<fungsi %s>", v.FuncVal.Name)
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	s := fmt.Sprintf("%g", f)
	return s
}

func isNumeric(v Value) bool { return v.Kind == KindInt || v.Kind == KindFloat }

func asFloat(v Value) float64 {
	if v.Kind == KindInt {
		return float64(v.IntVal)
	}
	return v.FloatVal
}

// Add implements TAMBAH: numeric addition, string concatenation, and
// element-wise list append.
func (v Value) Add(other Value) (Value, error) {
	switch {
	case v.Kind == KindInt && other.Kind == KindInt:
		return Int(v.IntVal + other.IntVal), nil
	case isNumeric(v) && isNumeric(other):
		return Float(asFloat(v) + asFloat(other)), nil
	case v.Kind == KindString && other.Kind == KindString:
		return String(v.StrVal + other.StrVal), nil
	case v.Kind == KindList && other.Kind == KindList:
		combined := make([]Value, 0, len(v.ListVal)+len(other.ListVal))
		combined = append(combined, v.ListVal...)
		combined = append(combined, other.ListVal...)
		return List(combined), nil
	default:
		return Value{}, fmt.Errorf("Cannot add %s and %s", v.TypeName(), other.TypeName())
	}
}

func (v Value) Sub(other Value) (Value, error) {
	switch {
	case v.Kind == KindInt && other.Kind == KindInt:
		return Int(v.IntVal - other.IntVal), nil
	case isNumeric(v) && isNumeric(other):
		return Float(asFloat(v) - asFloat(other)), nil
	default:
		return Value{}, fmt.Errorf("Cannot subtract %s and %s", v.TypeName(), other.TypeName())
	}
}

// Mul implements KALI: numeric multiplication plus String*Int / List*Int
// repetition (the Int operand may be on either side).
func (v Value) Mul(other Value) (Value, error) {
	switch {
	case v.Kind == KindString && other.Kind == KindInt:
		return String(strings.Repeat(v.StrVal, repeatCount(other.IntVal))), nil
	case v.Kind == KindInt && other.Kind == KindString:
		return String(strings.Repeat(other.StrVal, repeatCount(v.IntVal))), nil
	case v.Kind == KindList && other.Kind == KindInt:
		return List(repeatList(v.ListVal, repeatCount(other.IntVal))), nil
	case v.Kind == KindInt && other.Kind == KindList:
		return List(repeatList(other.ListVal, repeatCount(v.IntVal))), nil
	case v.Kind == KindInt && other.Kind == KindInt:
		return Int(v.IntVal * other.IntVal), nil
	case isNumeric(v) && isNumeric(other):
		return Float(asFloat(v) * asFloat(other)), nil
	default:
		return Value{}, fmt.Errorf("Cannot multiply %s and %s", v.TypeName(), other.TypeName())
	}
}

func repeatCount(n int64) int {
	if n < 0 {
		return 0
	}
	return int(n)
}

func repeatList(items []Value, n int) []Value {
	out := make([]Value, 0, len(items)*n)
	for i := 0; i < n; i++ {
		for _, item := range items {
			out = append(out, item.Clone())
		}
	}
	return out
}

// Div implements BAGI: always returns Float.
func (v Value) Div(other Value) (Value, error) {
	if !isNumeric(v) || !isNumeric(other) {
		return Value{}, fmt.Errorf("Cannot divide %s and %s", v.TypeName(), other.TypeName())
	}
	denom := asFloat(other)
	if denom == 0 {
		return Value{}, fmt.Errorf("Division by zero")
	}
	return Float(asFloat(v) / denom), nil
}

// FloorDiv implements PEMBAGIAN_BULAT: flooring toward negative infinity for
// every operand combination (see DESIGN.md for why this deviates from a
// literal truncating Int/Int division).
func (v Value) FloorDiv(other Value) (Value, error) {
	if !isNumeric(v) || !isNumeric(other) {
		return Value{}, fmt.Errorf("Cannot floor-divide %s and %s", v.TypeName(), other.TypeName())
	}
	if v.Kind == KindInt && other.Kind == KindInt {
		if other.IntVal == 0 {
			return Value{}, fmt.Errorf("Division by zero")
		}
		q := v.IntVal / other.IntVal
		if (v.IntVal%other.IntVal != 0) && ((v.IntVal < 0) != (other.IntVal < 0)) {
			q--
		}
		return Int(q), nil
	}
	denom := asFloat(other)
	if denom == 0 {
		return Value{}, fmt.Errorf("Division by zero")
	}
	return Float(math.Floor(asFloat(v) / denom)), nil
}

// Mod implements SISA_BAGI.
func (v Value) Mod(other Value) (Value, error) {
	if !isNumeric(v) || !isNumeric(other) {
		return Value{}, fmt.Errorf("Cannot modulo %s and %s", v.TypeName(), other.TypeName())
	}
	if v.Kind == KindInt && other.Kind == KindInt {
		if other.IntVal == 0 {
			return Value{}, fmt.Errorf("Modulo by zero")
		}
		return Int(v.IntVal % other.IntVal), nil
	}
	denom := asFloat(other)
	if denom == 0 {
		return Value{}, fmt.Errorf("Modulo by zero")
	}
	return Float(math.Mod(asFloat(v), denom)), nil
}

// Pow implements PANGKAT: Int**Int with a non-negative exponent stays Int;
// a negative exponent promotes to Float.
func (v Value) Pow(other Value) (Value, error) {
	if !isNumeric(v) || !isNumeric(other) {
		return Value{}, fmt.Errorf("Cannot raise %s to power %s", v.TypeName(), other.TypeName())
	}
	if v.Kind == KindInt && other.Kind == KindInt && other.IntVal >= 0 {
		result := int64(1)
		base := v.IntVal
		for exp := other.IntVal; exp > 0; exp-- {
			result *= base
		}
		return Int(result), nil
	}
	return Float(math.Pow(asFloat(v), asFloat(other))), nil
}

// Eq implements SAMA_DENGAN with epsilon-based float comparison. Dict and
// Function values always compare unequal (no deep structural equality is
// defined for them).
func (v Value) Eq(other Value) bool {
	switch {
	case v.Kind == KindNone && other.Kind == KindNone:
		return true
	case v.Kind == KindBool && other.Kind == KindBool:
		return v.BoolVal == other.BoolVal
	case v.Kind == KindInt && other.Kind == KindInt:
		return v.IntVal == other.IntVal
	case isNumeric(v) && isNumeric(other):
		return math.Abs(asFloat(v)-asFloat(other)) < epsilon
	case v.Kind == KindString && other.Kind == KindString:
		return v.StrVal == other.StrVal
	case v.Kind == KindList && other.Kind == KindList:
		if len(v.ListVal) != len(other.ListVal) {
			return false
		}
		for i := range v.ListVal {
			if !v.ListVal[i].Eq(other.ListVal[i]) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Lt implements KURANG_DARI: numeric and lexicographic string ordering only.
func (v Value) Lt(other Value) (bool, error) {
	switch {
	case v.Kind == KindInt && other.Kind == KindInt:
		return v.IntVal < other.IntVal, nil
	case isNumeric(v) && isNumeric(other):
		return asFloat(v) < asFloat(other), nil
	case v.Kind == KindString && other.Kind == KindString:
		return v.StrVal < other.StrVal, nil
	default:
		return false, fmt.Errorf("Cannot compare %s and %s", v.TypeName(), other.TypeName())
	}
}

func (v Value) Le(other Value) (bool, error) {
	switch {
	case v.Kind == KindInt && other.Kind == KindInt:
		return v.IntVal <= other.IntVal, nil
	case isNumeric(v) && isNumeric(other):
		return asFloat(v) <= asFloat(other), nil
	case v.Kind == KindString && other.Kind == KindString:
		return v.StrVal <= other.StrVal, nil
	default:
		return false, fmt.Errorf("Cannot compare %s and %s", v.TypeName(), other.TypeName())
	}
}

// Gt and Ge are defined in terms of Lt/Eq per the spec, not as independent
// comparisons — see DESIGN.md's Open Question resolution for NaN policy.
func (v Value) Gt(other Value) (bool, error) {
	lt, err := v.Lt(other)
	if err != nil {
		return false, err
	}
	return !lt && !v.Eq(other), nil
}

func (v Value) Ge(other Value) (bool, error) {
	lt, err := v.Lt(other)
	if err != nil {
		return false, err
	}
	return !lt, nil
}

func (v Value) Negate() (Value, error) {
	switch v.Kind {
	case KindInt:
		return Int(-v.IntVal), nil
	case KindFloat:
		return Float(-v.FloatVal), nil
	default:
		return Value{}, fmt.Errorf("Cannot negate %s", v.TypeName())
	}
}

func (v Value) Not() Value { return Bool(!v.IsTruthy()) }

func (v Value) BitAnd(other Value) (Value, error) {
	if v.Kind != KindInt || other.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot bitwise AND %s and %s", v.TypeName(), other.TypeName())
	}
	return Int(v.IntVal & other.IntVal), nil
}

func (v Value) BitOr(other Value) (Value, error) {
	if v.Kind != KindInt || other.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot bitwise OR %s and %s", v.TypeName(), other.TypeName())
	}
	return Int(v.IntVal | other.IntVal), nil
}

func (v Value) BitXor(other Value) (Value, error) {
	if v.Kind != KindInt || other.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot bitwise XOR %s and %s", v.TypeName(), other.TypeName())
	}
	return Int(v.IntVal ^ other.IntVal), nil
}

func (v Value) BitNot() (Value, error) {
	if v.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot bitwise NOT %s", v.TypeName())
	}
	return Int(^v.IntVal), nil
}

func (v Value) Shl(other Value) (Value, error) {
	if v.Kind != KindInt || other.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot left shift %s by %s", v.TypeName(), other.TypeName())
	}
	return Int(v.IntVal << uint(other.IntVal)), nil
}

func (v Value) Shr(other Value) (Value, error) {
	if v.Kind != KindInt || other.Kind != KindInt {
		return Value{}, fmt.Errorf("Cannot right shift %s by %s", v.TypeName(), other.TypeName())
	}
	return Int(v.IntVal >> uint(other.IntVal)), nil
}

func normalizeIndex(i int64, length int) (int, error) {
	idx := i
	if idx < 0 {
		idx += int64(length)
	}
	if idx < 0 || idx >= int64(length) {
		return 0, fmt.Errorf("Index %d out of range", i)
	}
	return int(idx), nil
}

// GetIndex implements GetIndex: negative wrap on List/String, String key
// lookup on Dict via linear scan.
func (v Value) GetIndex(index Value) (Value, error) {
	switch {
	case v.Kind == KindList && index.Kind == KindInt:
		idx, err := normalizeIndex(index.IntVal, len(v.ListVal))
		if err != nil {
			return Value{}, err
		}
		return v.ListVal[idx].Clone(), nil
	case v.Kind == KindString && index.Kind == KindInt:
		runes := []rune(v.StrVal)
		idx, err := normalizeIndex(index.IntVal, len(runes))
		if err != nil {
			return Value{}, err
		}
		return String(string(runes[idx])), nil
	case v.Kind == KindDict && index.Kind == KindString:
		for _, entry := range v.DictVal {
			if entry.Key == index.StrVal {
				return entry.Value.Clone(), nil
			}
		}
		return Value{}, fmt.Errorf("Key '%s' not found", index.StrVal)
	default:
		return Value{}, fmt.Errorf("Cannot index %s with %s", v.TypeName(), index.TypeName())
	}
}

// SetIndex implements SetIndex in place: List replaces an existing
// element, Dict updates-or-appends (preserving first-insert order).
func (v *Value) SetIndex(index Value, newValue Value) error {
	switch v.Kind {
	case KindList:
		i, ok := indexAsInt(index)
		if !ok {
			return fmt.Errorf("Cannot index list with %s", index.TypeName())
		}
		idx, err := normalizeIndex(i, len(v.ListVal))
		if err != nil {
			return err
		}
		v.ListVal[idx] = newValue.Clone()
		return nil
	case KindDict:
		if index.Kind != KindString {
			return fmt.Errorf("Cannot index dict with %s", index.TypeName())
		}
		for i, entry := range v.DictVal {
			if entry.Key == index.StrVal {
				v.DictVal[i].Value = newValue.Clone()
				return nil
			}
		}
		v.DictVal = append(v.DictVal, DictEntry{Key: index.StrVal, Value: newValue.Clone()})
		return nil
	default:
		return fmt.Errorf("Cannot set index on %s", v.TypeName())
	}
}

func indexAsInt(v Value) (int64, bool) {
	if v.Kind != KindInt {
		return 0, false
	}
	return v.IntVal, true
}

// Len implements Len.
func (v Value) Len() (Value, error) {
	switch v.Kind {
	case KindString:
		return Int(int64(len([]rune(v.StrVal)))), nil
	case KindList:
		return Int(int64(len(v.ListVal))), nil
	case KindDict:
		return Int(int64(len(v.DictVal))), nil
	default:
		return Value{}, fmt.Errorf("Cannot get length of %s", v.TypeName())
	}
}

// Contains implements DALAM/Contains.
func (v Value) Contains(item Value) (bool, error) {
	switch v.Kind {
	case KindString:
		if item.Kind != KindString {
			return false, fmt.Errorf("Cannot check if %s contains %s", v.TypeName(), item.TypeName())
		}
		return strings.Contains(v.StrVal, item.StrVal), nil
	case KindList:
		for _, elem := range v.ListVal {
			if elem.Eq(item) {
				return true, nil
			}
		}
		return false, nil
	case KindDict:
		if item.Kind != KindString {
			return false, fmt.Errorf("Dict keys must be strings")
		}
		for _, entry := range v.DictVal {
			if entry.Key == item.StrVal {
				return true, nil
			}
		}
		return false, nil
	default:
		return false, fmt.Errorf("Cannot check membership in %s", v.TypeName())
	}
}

// jsonValue is the externally-tagged wire shape used for the constants
// pool's JSON section, mirroring the original source's serde encoding of
// its Value enum.
type jsonValue struct {
	None     *struct{}    `json:"None,omitempty"`
	Bool     *bool        `json:"Bool,omitempty"`
	Int      *int64       `json:"Int,omitempty"`
	Float    *float64     `json:"Float,omitempty"`
	String   *string      `json:"String,omitempty"`
	List     []Value      `json:"List,omitempty"`
	Dict     [][2]any     `json:"Dict,omitempty"`
	Function *jsonFuncion `json:"Function,omitempty"`
}

type jsonFuncion struct {
	Name           string   `json:"name"`
	Params         []string `json:"params"`
	BytecodeOffset uint32   `json:"bytecode_offset"`
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindNone:
		return json.Marshal("None")
	case KindBool:
		return json.Marshal(jsonValue{Bool: &v.BoolVal})
	case KindInt:
		return json.Marshal(jsonValue{Int: &v.IntVal})
	case KindFloat:
		return json.Marshal(jsonValue{Float: &v.FloatVal})
	case KindString:
		return json.Marshal(jsonValue{String: &v.StrVal})
	case KindList:
		list := v.ListVal
		if list == nil {
			list = []Value{}
		}
		return json.Marshal(jsonValue{List: list})
	case KindDict:
		pairs := make([][2]any, len(v.DictVal))
		for i, entry := range v.DictVal {
			pairs[i] = [2]any{entry.Key, entry.Value}
		}
		return json.Marshal(jsonValue{Dict: pairs})
	case KindFunction:
		return json.Marshal(jsonValue{Function: &jsonFuncion{
			Name:           v.FuncVal.Name,
			Params:         v.FuncVal.Params,
			BytecodeOffset: v.FuncVal.BytecodeOffset,
		}})
	default:
		return json.Marshal("None")
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var tag string
	if err := json.Unmarshal(data, &tag); err == nil {
		if tag == "None" {
			*v = None()
			return nil
		}
	}

	var raw jsonValue
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Bool != nil:
		*v = Bool(*raw.Bool)
	case raw.Int != nil:
		*v = Int(*raw.Int)
	case raw.Float != nil:
		*v = Float(*raw.Float)
	case raw.String != nil:
		*v = String(*raw.String)
	case raw.List != nil:
		*v = List(raw.List)
	case raw.Dict != nil:
		entries := make([]DictEntry, 0, len(raw.Dict))
		for _, pair := range raw.Dict {
			key, _ := pair[0].(string)
			var val Value
			encoded, err := json.Marshal(pair[1])
			if err != nil {
				return err
			}
			if err := json.Unmarshal(encoded, &val); err != nil {
				return err
			}
			entries = append(entries, DictEntry{Key: key, Value: val})
		}
		*v = Dict(entries)
	case raw.Function != nil:
		*v = Func(&Function{
			Name:           raw.Function.Name,
			Params:         raw.Function.Params,
			BytecodeOffset: raw.Function.BytecodeOffset,
		})
	default:
		*v = None()
	}
	return nil
}
