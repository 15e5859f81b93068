package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strconv"
)

var ErrDecode = errors.New("failed to decode ledger value")

type Kind string

const (
	KindVoid    Kind = "void"
	KindBool    Kind = "bool"
	KindU32     Kind = "u32"
	KindU64     Kind = "u64"
	KindI128    Kind = "i128"
	KindString  Kind = "string"
	KindSymbol  Kind = "symbol"
	KindAddress Kind = "address"
	KindVec     Kind = "vec"
	KindMap     Kind = "map"
)

// Ledger-native value. Exactly one of the payload fields is meaningful, depending on Kind.
// The zero value is void.
type Value struct {
	kind Kind
	b    bool
	u    uint64
	i    *big.Int
	s    string
	vec  []Value
	m    []MapEntry
}

type MapEntry struct {
	Key   Value `json:"key"`
	Value Value `json:"value"`
}

func Void() Value { return Value{kind: KindVoid} }
func Bool(v bool) Value { return Value{kind: KindBool, b: v} }
func U32(v uint32) Value { return Value{kind: KindU32, u: uint64(v)} }
func U64(v uint64) Value { return Value{kind: KindU64, u: v} }
func String(v string) Value { return Value{kind: KindString, s: v} }
func Symbol(v string) Value { return Value{kind: KindSymbol, s: v} }
func Address(v string) Value { return Value{kind: KindAddress, s: v} }
func Vec(v ...Value) Value { return Value{kind: KindVec, vec: v} }
func Map(entries ...MapEntry) Value { return Value{kind: KindMap, m: entries} }

func I128(v *big.Int) Value {
	if v == nil {
		v = new(big.Int)
	}
	return Value{kind: KindI128, i: new(big.Int).Set(v)}
}

// Map entry keyed by a symbol, the usual shape of contract structs
func Entry(name string, v Value) MapEntry {
	return MapEntry{Key: Symbol(name), Value: v}
}

func (self Value) Kind() Kind {
	if self.kind == "" {
		return KindVoid
	}
	return self.kind
}

func (self Value) IsVoid() bool {
	return self.Kind() == KindVoid
}

func (self Value) mismatch(expected ...Kind) error {
	return fmt.Errorf("%w: expected %v, got %s", ErrDecode, expected, self.Kind())
}

func (self Value) AsBool() (bool, error) {
	if self.Kind() != KindBool {
		return false, self.mismatch(KindBool)
	}
	return self.b, nil
}

func (self Value) AsU32() (uint32, error) {
	if self.Kind() != KindU32 {
		return 0, self.mismatch(KindU32)
	}
	return uint32(self.u), nil
}

// Accepts both unsigned widths
func (self Value) AsU64() (uint64, error) {
	switch self.Kind() {
	case KindU32, KindU64:
		return self.u, nil
	}
	return 0, self.mismatch(KindU32, KindU64)
}

func (self Value) AsI128() (*big.Int, error) {
	switch self.Kind() {
	case KindI128:
		return new(big.Int).Set(self.i), nil
	case KindU32, KindU64:
		return new(big.Int).SetUint64(self.u), nil
	}
	return nil, self.mismatch(KindI128)
}

// Accepts strings and symbols
func (self Value) AsString() (string, error) {
	switch self.Kind() {
	case KindString, KindSymbol:
		return self.s, nil
	}
	return "", self.mismatch(KindString, KindSymbol)
}

func (self Value) AsAddress() (string, error) {
	if self.Kind() != KindAddress {
		return "", self.mismatch(KindAddress)
	}
	return self.s, nil
}

func (self Value) AsVec() ([]Value, error) {
	if self.Kind() != KindVec {
		return nil, self.mismatch(KindVec)
	}
	return self.vec, nil
}

func (self Value) AsMap() ([]MapEntry, error) {
	if self.Kind() != KindMap {
		return nil, self.mismatch(KindMap)
	}
	return self.m, nil
}

// Looks up a map entry by its symbol or string key
func (self Value) Field(name string) (Value, error) {
	entries, err := self.AsMap()
	if err != nil {
		return Value{}, err
	}
	for _, e := range entries {
		key, err := e.Key.AsString()
		if err == nil && key == name {
			return e.Value, nil
		}
	}
	return Value{}, fmt.Errorf("%w: missing field %q", ErrDecode, name)
}

func (self Value) String() string {
	switch self.Kind() {
	case KindVoid:
		return "void"
	case KindBool:
		return strconv.FormatBool(self.b)
	case KindU32, KindU64:
		return strconv.FormatUint(self.u, 10)
	case KindI128:
		return self.i.String()
	case KindVec:
		return fmt.Sprintf("%v", self.vec)
	case KindMap:
		return fmt.Sprintf("%v", self.m)
	}
	return self.s
}

type wireValue struct {
	Type  Kind            `json:"type"`
	Value json.RawMessage `json:"value,omitempty"`
}

func (self Value) MarshalJSON() ([]byte, error) {
	var (
		payload any
		err     error
	)
	switch self.Kind() {
	case KindVoid:
		return json.Marshal(wireValue{Type: KindVoid})
	case KindBool:
		payload = self.b
	case KindU32:
		payload = uint32(self.u)
	case KindU64:
		// Precision of JSON numbers isn't enough
		payload = strconv.FormatUint(self.u, 10)
	case KindI128:
		payload = self.i.String()
	case KindString, KindSymbol, KindAddress:
		payload = self.s
	case KindVec:
		vec := self.vec
		if vec == nil {
			vec = []Value{}
		}
		payload = vec
	case KindMap:
		m := self.m
		if m == nil {
			m = []MapEntry{}
		}
		payload = m
	default:
		return nil, fmt.Errorf("unknown ledger value type: %s", self.kind)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireValue{Type: self.Kind(), Value: raw})
}

func (self *Value) UnmarshalJSON(data []byte) (err error) {
	var wire wireValue
	err = json.Unmarshal(data, &wire)
	if err != nil {
		return
	}

	out := Value{kind: wire.Type}
	switch wire.Type {
	case KindVoid, "":
		out.kind = KindVoid
	case KindBool:
		err = json.Unmarshal(wire.Value, &out.b)
	case KindU32:
		var v uint32
		err = json.Unmarshal(wire.Value, &v)
		out.u = uint64(v)
	case KindU64:
		var s json.Number
		err = json.Unmarshal(wire.Value, &s)
		if err == nil {
			out.u, err = strconv.ParseUint(s.String(), 10, 64)
		}
	case KindI128:
		var s json.Number
		err = json.Unmarshal(wire.Value, &s)
		if err == nil {
			var ok bool
			out.i, ok = new(big.Int).SetString(s.String(), 10)
			if !ok {
				err = fmt.Errorf("%w: bad i128 %q", ErrDecode, s)
			}
		}
	case KindString, KindSymbol, KindAddress:
		err = json.Unmarshal(wire.Value, &out.s)
	case KindVec:
		err = json.Unmarshal(wire.Value, &out.vec)
	case KindMap:
		err = json.Unmarshal(wire.Value, &out.m)
	default:
		err = fmt.Errorf("%w: unknown type %q", ErrDecode, wire.Type)
	}
	if err != nil {
		return
	}

	*self = out
	return
}
