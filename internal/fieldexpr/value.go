package fieldexpr

import (
	"fmt"
	"time"
)

// ValueKind tags the dynamic type of a Value.
type ValueKind int

const (
	KindInt ValueKind = iota
	KindString
	KindBool
	KindDate
)

// Value is the dynamically-typed result of evaluating an expression or
// sub-expression. Only one of the fields is meaningful, selected by Kind.
type Value struct {
	Kind ValueKind
	Int  int
	Str  string
	Bool bool
	Date time.Time
}

func IntValue(n int) Value         { return Value{Kind: KindInt, Int: n} }
func StringValue(s string) Value   { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }
func DateValue(t time.Time) Value  { return Value{Kind: KindDate, Date: t} }

// String renders a Value the way str() and implicit string contexts do.
func (v Value) String() string {
	switch v.Kind {
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindString:
		return v.Str
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	case KindDate:
		return v.Date.Format("2006-01-02")
	default:
		return ""
	}
}

// Truthy implements the language's notion of truthiness for if() and &&/||:
// zero int, empty string, and false bool are falsy; everything else (and
// all dates) is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.Int != 0
	case KindString:
		return v.Str != ""
	case KindBool:
		return v.Bool
	case KindDate:
		return true
	default:
		return false
	}
}

func (v Value) typeName() string {
	switch v.Kind {
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	default:
		return "unknown"
	}
}
