package fieldexpr

import (
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

// builtinArity records the accepted argument counts for each function name,
// used to reject calls with the wrong number of arguments.
var builtinArity = map[string][]int{
	"substr": {2, 3},
	"len":    {1},
	"tok":    {3},
	"cap":    {1},
	"upper":  {1},
	"lower":  {1},
	"padl":   {3},
	"padr":   {3},
	"if":     {3},
	"str":    {1},
	"int":    {1},
	"date":   {3},
	"dyear":  {1},
	"dmon":   {1},
	"dday":   {1},
	"dadd":   {2},
	"min":    {2},
	"max":    {2},
	"unmax":  {2},
	"random": {2},
}

func evalCall(n Call, ctx Context) (Value, error) {
	arities, ok := builtinArity[n.Func]
	if !ok {
		return Value{}, fmt.Errorf("fieldexpr: unknown function %q", n.Func)
	}
	if !arityOK(len(n.Args), arities) {
		return Value{}, fmt.Errorf("fieldexpr: %s: wrong number of arguments (got %d)", n.Func, len(n.Args))
	}

	// if() short-circuits its branches: only the chosen branch is evaluated,
	// matching the original lambda's ternary selection.
	if n.Func == "if" {
		cond, err := eval(n.Args[0], ctx)
		if err != nil {
			return Value{}, err
		}
		if cond.Truthy() {
			return eval(n.Args[1], ctx)
		}
		return eval(n.Args[2], ctx)
	}

	args := make([]Value, len(n.Args))
	for i, a := range n.Args {
		v, err := eval(a, ctx)
		if err != nil {
			return Value{}, err
		}
		args[i] = v
	}

	switch n.Func {
	case "substr":
		return fnSubstr(args)
	case "len":
		return fnLen(args)
	case "tok":
		return fnTok(args)
	case "cap":
		return fnCap(args)
	case "upper":
		return fnUpper(args)
	case "lower":
		return fnLower(args)
	case "padl":
		return fnPad(args, true)
	case "padr":
		return fnPad(args, false)
	case "str":
		return StringValue(args[0].String()), nil
	case "int":
		return fnInt(args)
	case "date":
		return fnDate(args)
	case "dyear":
		return fnDatePart(args, "year")
	case "dmon":
		return fnDatePart(args, "month")
	case "dday":
		return fnDatePart(args, "day")
	case "dadd":
		return fnDadd(args)
	case "min":
		return fnMinMax(args, true)
	case "max", "unmax":
		// unmax is an alias of min, not max.
		if n.Func == "unmax" {
			return fnMinMax(args, true)
		}
		return fnMinMax(args, false)
	case "random":
		return fnRandom(args)
	default:
		return Value{}, fmt.Errorf("fieldexpr: unknown function %q", n.Func)
	}
}

func arityOK(got int, allowed []int) bool {
	for _, a := range allowed {
		if a == got {
			return true
		}
	}
	return false
}

func wantString(v Value, fn string) (string, error) {
	if v.Kind != KindString {
		return "", fmt.Errorf("fieldexpr: %s: expected string, got %s", fn, v.typeName())
	}
	return v.Str, nil
}

func wantInt(v Value, fn string) (int, error) {
	if v.Kind != KindInt {
		return 0, fmt.Errorf("fieldexpr: %s: expected int, got %s", fn, v.typeName())
	}
	return v.Int, nil
}

func fnSubstr(args []Value) (Value, error) {
	s, err := wantString(args[0], "substr")
	if err != nil {
		return Value{}, err
	}
	start, err := wantInt(args[1], "substr")
	if err != nil {
		return Value{}, err
	}
	end := len(s)
	if len(args) == 3 {
		end, err = wantInt(args[2], "substr")
		if err != nil {
			return Value{}, err
		}
	}
	if start < 0 || end > len(s) || start > end {
		return Value{}, fmt.Errorf("fieldexpr: substr: index out of range")
	}
	return StringValue(s[start:end]), nil
}

func fnLen(args []Value) (Value, error) {
	s, err := wantString(args[0], "len")
	if err != nil {
		return Value{}, err
	}
	return IntValue(len(s)), nil
}

func fnTok(args []Value) (Value, error) {
	s, err := wantString(args[0], "tok")
	if err != nil {
		return Value{}, err
	}
	sep, err := wantString(args[1], "tok")
	if err != nil {
		return Value{}, err
	}
	idx, err := wantInt(args[2], "tok")
	if err != nil {
		return Value{}, err
	}
	parts := strings.Split(s, sep)
	if idx < 0 || idx >= len(parts) {
		return Value{}, fmt.Errorf("fieldexpr: tok: index out of range")
	}
	return StringValue(parts[idx]), nil
}

func fnCap(args []Value) (Value, error) {
	s, err := wantString(args[0], "cap")
	if err != nil {
		return Value{}, err
	}
	if s == "" {
		return StringValue(s), nil
	}
	return StringValue(strings.ToUpper(s[:1]) + strings.ToLower(s[1:])), nil
}

func fnUpper(args []Value) (Value, error) {
	s, err := wantString(args[0], "upper")
	if err != nil {
		return Value{}, err
	}
	return StringValue(strings.ToUpper(s)), nil
}

func fnLower(args []Value) (Value, error) {
	s, err := wantString(args[0], "lower")
	if err != nil {
		return Value{}, err
	}
	return StringValue(strings.ToLower(s)), nil
}

func fnPad(args []Value, left bool) (Value, error) {
	s, err := wantString(args[0], "pad")
	if err != nil {
		return Value{}, err
	}
	pad, err := wantString(args[1], "pad")
	if err != nil {
		return Value{}, err
	}
	minlen, err := wantInt(args[2], "pad")
	if err != nil {
		return Value{}, err
	}
	if pad == "" {
		return Value{}, fmt.Errorf("fieldexpr: pad: pad string must not be empty")
	}
	for len(s) < minlen {
		if left {
			s = pad + s
		} else {
			s = s + pad
		}
	}
	return StringValue(s), nil
}

func fnInt(args []Value) (Value, error) {
	v := args[0]
	switch v.Kind {
	case KindInt:
		return v, nil
	case KindString:
		n, err := strconv.Atoi(strings.TrimSpace(v.Str))
		if err != nil {
			return Value{}, fmt.Errorf("fieldexpr: int: cannot parse %q", v.Str)
		}
		return IntValue(n), nil
	default:
		return Value{}, fmt.Errorf("fieldexpr: int: cannot convert %s", v.typeName())
	}
}

func fnDate(args []Value) (Value, error) {
	y, err := wantInt(args[0], "date")
	if err != nil {
		return Value{}, err
	}
	m, err := wantInt(args[1], "date")
	if err != nil {
		return Value{}, err
	}
	d, err := wantInt(args[2], "date")
	if err != nil {
		return Value{}, err
	}
	return DateValue(time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)), nil
}

func fnDatePart(args []Value, part string) (Value, error) {
	v := args[0]
	if v.Kind != KindDate {
		return Value{}, fmt.Errorf("fieldexpr: d%s: expected date, got %s", part, v.typeName())
	}
	switch part {
	case "year":
		return IntValue(v.Date.Year()), nil
	case "month":
		return IntValue(int(v.Date.Month())), nil
	case "day":
		return IntValue(v.Date.Day()), nil
	default:
		return Value{}, fmt.Errorf("fieldexpr: unknown date part %q", part)
	}
}

func fnDadd(args []Value) (Value, error) {
	v := args[0]
	if v.Kind != KindDate {
		return Value{}, fmt.Errorf("fieldexpr: dadd: expected date, got %s", v.typeName())
	}
	days, err := wantInt(args[1], "dadd")
	if err != nil {
		return Value{}, err
	}
	return DateValue(v.Date.AddDate(0, 0, days)), nil
}

func fnMinMax(args []Value, min bool) (Value, error) {
	a, b := args[0], args[1]
	if a.Kind != KindInt || b.Kind != KindInt {
		return Value{}, fmt.Errorf("fieldexpr: min/max: expected two ints")
	}
	if min {
		if a.Int <= b.Int {
			return a, nil
		}
		return b, nil
	}
	if a.Int >= b.Int {
		return a, nil
	}
	return b, nil
}

func fnRandom(args []Value) (Value, error) {
	lo, err := wantInt(args[0], "random")
	if err != nil {
		return Value{}, err
	}
	hi, err := wantInt(args[1], "random")
	if err != nil {
		return Value{}, err
	}
	if hi < lo {
		return Value{}, fmt.Errorf("fieldexpr: random: hi must be >= lo")
	}
	return IntValue(lo + rand.Intn(hi-lo+1)), nil
}
