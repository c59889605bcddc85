package repo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind is the semantic type of a dynamic setting.
type Kind int

const (
	KindNull Kind = iota
	KindText
	KindInt
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindBool:
		return "boolean"
	default:
		return "null"
	}
}

// ColumnType is a declared SQL column type for dynamic settings.
type ColumnType string

const (
	TypeText    ColumnType = "TEXT"
	TypeInteger ColumnType = "INTEGER"
)

// Value is a dynamic setting value. Booleans are stored as 0/1 integers.
type Value struct {
	Kind Kind
	Text string
	Int  int64
	Bool bool
}

// Text, Int and Bool build typed values.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }
func Int(i int64) Value   { return Value{Kind: KindInt, Int: i} }
func Bool(b bool) Value   { return Value{Kind: KindBool, Bool: b} }

// ColumnType infers the declared type of a column created for v.
func (v Value) ColumnType() ColumnType {
	switch v.Kind {
	case KindInt, KindBool:
		return TypeInteger
	default:
		return TypeText
	}
}

// Arg returns v as a statement argument.
func (v Value) Arg() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindInt:
		return v.Int
	case KindBool:
		if v.Bool {
			return int64(1)
		}
		return int64(0)
	default:
		return nil
	}
}

// Literal renders v with SQLLiteral.
func (v Value) Literal() string {
	switch v.Kind {
	case KindText:
		return SQLLiteral(v.Text)
	case KindInt:
		return SQLLiteral(v.Int)
	case KindBool:
		return SQLLiteral(v.Bool)
	default:
		return SQLLiteral(nil)
	}
}

// SQLLiteral renders o as a SQL literal for DEFAULT clauses:
// nil is null, booleans are 1/0, integers are plain digits, and everything
// else is single-quoted with ' and " doubled.
//
// This is not a general-purpose escaper; values are only ever setting
// defaults chosen by command code.
func SQLLiteral(o any) string {
	switch v := o.(type) {
	case nil:
		return "null"
	case bool:
		if v {
			return "1"
		}
		return "0"
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	}
	s := fmt.Sprint(o)
	s = strings.ReplaceAll(s, "'", "''")
	s = strings.ReplaceAll(s, `"`, `""`)
	return "'" + s + "'"
}

// coerce converts a scanned column value to the wanted kind. raw must not
// be nil; NULL handling is the caller's business.
func coerce(field string, raw any, want Kind) (Value, error) {
	fail := func() (Value, error) {
		return Value{}, &CoercionError{Field: field, Value: raw, Want: want}
	}
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}

	switch want {
	case KindText:
		switch v := raw.(type) {
		case string:
			return Text(v), nil
		case int64:
			return Text(strconv.FormatInt(v, 10)), nil
		case float64:
			return Text(strconv.FormatFloat(v, 'f', -1, 64)), nil
		case bool:
			return Text(strconv.FormatBool(v)), nil
		}
		return fail()

	case KindInt, KindBool:
		var n int64
		switch v := raw.(type) {
		case int64:
			n = v
		case bool:
			if v {
				n = 1
			}
		case float64:
			if v != math.Trunc(v) || v > math.MaxInt64 || v < math.MinInt64 {
				return fail()
			}
			n = int64(v)
		case string:
			p, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
			if err != nil {
				return fail()
			}
			n = p
		default:
			return fail()
		}
		if want == KindBool {
			return Bool(n == 1), nil
		}
		return Int(n), nil
	}
	return fail()
}
