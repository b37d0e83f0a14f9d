package forms

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// CoerceFlag maps boolean-ish model output to a tri-state flag: 1, 0, or nil.
// Booleans map directly, numbers are 1 when non-zero, anything else is nil.
func CoerceFlag(v any) *int {
	var n int
	switch x := v.(type) {
	case bool:
		if x {
			n = 1
		}
	case float64:
		if x != 0 {
			n = 1
		}
	case float32:
		if x != 0 {
			n = 1
		}
	case int:
		if x != 0 {
			n = 1
		}
	case int64:
		if x != 0 {
			n = 1
		}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		if f != 0 {
			n = 1
		}
	default:
		return nil
	}
	return &n
}

// Text is a string leaf that tolerates numbers and booleans from the model.
// Objects, arrays and blank strings decode as absent.
type Text struct {
	String string
	Valid  bool
}

func (t *Text) UnmarshalJSON(b []byte) error {
	*t = Text{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	if s, ok := ScalarString(v); ok && strings.TrimSpace(s) != "" {
		*t = Text{String: s, Valid: true}
	}
	return nil
}

func (t Text) MarshalJSON() ([]byte, error) {
	if !t.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(t.String)
}

// Ptr returns nil for an absent value.
func (t Text) Ptr() *string {
	if !t.Valid {
		return nil
	}
	s := t.String
	return &s
}

// Flag is a tri-state checkbox leaf decoded with CoerceFlag.
type Flag struct {
	Int   int
	Valid bool
}

func (f *Flag) UnmarshalJSON(b []byte) error {
	*f = Flag{}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	if p := CoerceFlag(v); p != nil {
		*f = Flag{Int: *p, Valid: true}
	}
	return nil
}

func (f Flag) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(f.Int == 1)
}

func (f Flag) Ptr() *int {
	if !f.Valid {
		return nil
	}
	n := f.Int
	return &n
}

// Integer accepts integral numbers and numeric strings such as "12".
type Integer struct {
	Int   int64
	Valid bool
}

func (i *Integer) UnmarshalJSON(b []byte) error {
	*i = Integer{}
	b = bytes.TrimSpace(b)
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case float64:
		// float64(math.MaxInt64) rounds up to 2^63, hence the strict bound.
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			*i = Integer{Int: int64(x), Valid: true}
		}
	case string:
		if n, err := strconv.ParseInt(strings.ReplaceAll(strings.TrimSpace(x), ",", ""), 10, 64); err == nil {
			*i = Integer{Int: n, Valid: true}
		}
	}
	return nil
}

func (i Integer) MarshalJSON() ([]byte, error) {
	if !i.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(i.Int)
}

func (i Integer) Ptr() *int64 {
	if !i.Valid {
		return nil
	}
	n := i.Int
	return &n
}

// ScalarString renders a JSON scalar the way flattened fields store it.
func ScalarString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case bool:
		return strconv.FormatBool(x), true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case json.Number:
		return x.String(), true
	case int:
		return strconv.Itoa(x), true
	case int64:
		return strconv.FormatInt(x, 10), true
	}
	return "", false
}
