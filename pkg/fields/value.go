package fields

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/pkg/errors"
)

// ErrUnsupportedValue is returned when a field value is neither a string, a number nor null.
var ErrUnsupportedValue = errors.New("unsupported field value")

type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Value is a nullable form field value. The zero value is null.
type Value struct {
	kind Kind
	str  string
	num  float64
}

func Null() Value {
	return Value{}
}

func String(s string) Value {
	return Value{kind: KindString, str: s}
}

func Number(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

func Int(n int) Value {
	return Number(float64(n))
}

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// Str returns the string payload, ok is false for non-string values.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Float returns the numeric payload, ok is false for non-number values.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the value for display. Null renders as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return formatNumber(v.num)
	default:
		return ""
	}
}

// Equal reports whether both values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v == o
}

// FromAny converts a decoded YAML/JSON scalar into a Value.
func FromAny(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case int:
		return Int(t), nil
	case int64:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), errors.Wrapf(ErrUnsupportedValue, "number %q", t.String())
		}
		return Number(f), nil
	default:
		return Null(), errors.Wrapf(ErrUnsupportedValue, "%T", x)
	}
}

// Interface returns nil, a string or a float64. Used for YAML output.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		if isIntegral(v.num) {
			return int64(v.num)
		}
		return v.num
	default:
		return nil
	}
}

func (v Value) MarshalYAML() (interface{}, error) {
	return v.Interface(), nil
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			return nil, errors.Wrap(ErrUnsupportedValue, "non-finite number")
		}
		return []byte(formatNumber(v.num)), nil
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errors.Wrap(ErrUnsupportedValue, "empty")
	}
	switch b[0] {
	case 'n':
		if string(b) != "null" {
			return errors.Wrapf(ErrUnsupportedValue, "%s", b)
		}
		*v = Null()
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*v = String(s)
		return nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		f, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return errors.Wrapf(ErrUnsupportedValue, "number %s", b)
		}
		*v = Number(f)
		return nil
	default:
		return errors.Wrapf(ErrUnsupportedValue, "%s", b)
	}
}

func isIntegral(f float64) bool {
	return f == math.Trunc(f) && math.Abs(f) < 1e15
}

func formatNumber(f float64) string {
	if isIntegral(f) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
