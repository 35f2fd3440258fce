package optional

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Int is an explicitly optional int64.
// External APIs conflate "missing", null and zero for numeric fields;
// conversion into Int happens only at the extraction boundary. Internal
// logic never sees a raw maybe-missing number.
type Int struct {
	value int64
	valid bool
}

// Some returns a present Int holding v.
func Some(v int64) Int {
	return Int{value: v, valid: true}
}

// None returns an absent Int.
func None() Int {
	return Int{}
}

// FromPositive normalizes an external value: non-positive means "unknown".
func FromPositive(v int64) Int {
	if v <= 0 {
		return None()
	}
	return Some(v)
}

// FromNonNegative normalizes an external count: negative means "unknown".
func FromNonNegative(v int64) Int {
	if v < 0 {
		return None()
	}
	return Some(v)
}

// Get returns the value and whether it is present.
func (o Int) Get() (int64, bool) {
	return o.value, o.valid
}

// IsSome reports whether a value is present.
func (o Int) IsSome() bool {
	return o.valid
}

// Or returns the value if present, otherwise def.
func (o Int) Or(def int64) int64 {
	if o.valid {
		return o.value
	}
	return def
}

// Equal reports value equality. Two absent Ints are equal.
func (o Int) Equal(other Int) bool {
	if o.valid != other.valid {
		return false
	}
	return !o.valid || o.value == other.value
}

func (o Int) String() string {
	if !o.valid {
		return "null"
	}
	return fmt.Sprintf("%d", o.value)
}

// MarshalJSON encodes a present value as the number and an absent one as null.
func (o Int) MarshalJSON() ([]byte, error) {
	if !o.valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null (or an absent field) as None.
func (o *Int) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = None()
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}
