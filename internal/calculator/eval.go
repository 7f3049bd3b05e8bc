package calculator

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

// Context supplies the bindings an expression evaluates against: the
// current field scope (from the token's joined facts), the raw fact set
// those fields were drawn from (for the fact_sum/fact_avg/... aggregate
// built-ins), and a store lookup so fact_field/fact_exists can reach an
// arbitrary fact by id rather than only the ones bound into the current
// token (spec §4.2's cross-fact accessors).
type Context struct {
	Vars  map[string]value.Value
	Facts []*store.Fact
	Store *store.Store
}

// CalcError carries a structured detail alongside the plain error message,
// so callers (the engine's action layer, tests) can branch on ErrKind
// instead of string-matching messages.
type CalcError struct {
	Kind    string // "type_mismatch" | "undefined" | "division_by_zero" | "arity" | "range"
	Message string
}

func (e *CalcError) Error() string { return e.Message }

func typeErr(format string, args ...interface{}) error {
	return &CalcError{Kind: "type_mismatch", Message: fmt.Sprintf(format, args...)}
}

func undefinedErr(format string, args ...interface{}) error {
	return &CalcError{Kind: "undefined", Message: fmt.Sprintf(format, args...)}
}

// Eval parses and evaluates src against ctx without consulting any cache.
// Compiled-expression callers should prefer the Engine type in cache.go,
// which runs evalNode on a cached AST.
func Eval(src string, ctx *Context) (value.Value, error) {
	n, err := parse(src)
	if err != nil {
		return value.Null, err
	}
	return evalNode(n, ctx)
}

func evalNode(n node, ctx *Context) (value.Value, error) {
	switch t := n.(type) {
	case litNode:
		return evalLit(t, ctx)
	case identNode:
		v, ok := ctx.Vars[t.name]
		if !ok {
			return value.Null, undefinedErr("calculator: undefined identifier %q", t.name)
		}
		return v, nil
	case fieldAccessNode:
		base, err := evalNode(t.target, ctx)
		if err != nil {
			return value.Null, err
		}
		f, ok := base.Field(t.field)
		if !ok {
			return value.Null, undefinedErr("calculator: field %q not present on %s", t.field, base.TypeName())
		}
		return f, nil
	case indexNode:
		base, err := evalNode(t.target, ctx)
		if err != nil {
			return value.Null, err
		}
		idxv, err := evalNode(t.index, ctx)
		if err != nil {
			return value.Null, err
		}
		i, ok := idxv.AsInt()
		if !ok {
			return value.Null, typeErr("calculator: array index must be an integer")
		}
		el, ok := base.Index(int(i))
		if !ok {
			return value.Null, undefinedErr("calculator: index %d out of range", i)
		}
		return el, nil
	case unaryNode:
		return evalUnary(t, ctx)
	case binaryNode:
		return evalBinary(t, ctx)
	case ifNode:
		cond, err := evalNode(t.cond, ctx)
		if err != nil {
			return value.Null, err
		}
		b, ok := cond.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: if condition must be boolean")
		}
		if b {
			return evalNode(t.then, ctx)
		}
		return evalNode(t.els, ctx)
	case caseNode:
		for i, pred := range t.preds {
			pv, err := evalNode(pred, ctx)
			if err != nil {
				return value.Null, err
			}
			b, ok := pv.AsBool()
			if !ok {
				return value.Null, typeErr("calculator: case() predicate %d must be boolean", i)
			}
			if b {
				return evalNode(t.values[i], ctx)
			}
		}
		return evalNode(t.fallback, ctx)
	case callNode:
		return evalCall(t, ctx)
	default:
		return value.Null, fmt.Errorf("calculator: unhandled node type %T", n)
	}
}

func litToValue(v interface{}) (value.Value, error) {
	switch x := v.(type) {
	case nil:
		return value.Null, nil
	case string:
		return value.String(x), nil
	case int64:
		return value.Int(x), nil
	case float64:
		return value.Float(x), nil
	case bool:
		return value.Bool(x), nil
	case []node:
		return value.Null, fmt.Errorf("calculator: array literal must be evaluated with context")
	case map[string]node:
		return value.Null, fmt.Errorf("calculator: object literal must be evaluated with context")
	default:
		return value.Null, fmt.Errorf("calculator: unsupported literal %T", v)
	}
}

// evalLit handles the two literal kinds that need ctx to evaluate their
// elements (arrays, objects); everything else is constant.
func evalLit(t litNode, ctx *Context) (value.Value, error) {
	switch x := t.val.(type) {
	case []node:
		items := make([]value.Value, len(x))
		for i, item := range x {
			v, err := evalNode(item, ctx)
			if err != nil {
				return value.Null, err
			}
			items[i] = v
		}
		return value.Array(items), nil
	case map[string]node:
		fields := make(map[string]value.Value, len(x))
		for k, item := range x {
			v, err := evalNode(item, ctx)
			if err != nil {
				return value.Null, err
			}
			fields[k] = v
		}
		return value.Object(fields), nil
	default:
		return litToValue(t.val)
	}
}

func evalUnary(t unaryNode, ctx *Context) (value.Value, error) {
	v, err := evalNode(t.expr, ctx)
	if err != nil {
		return value.Null, err
	}
	switch t.op {
	case "neg":
		if i, ok := v.AsInt(); ok {
			return value.Int(-i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return value.Float(-f), nil
		}
		return value.Null, typeErr("calculator: unary '-' requires a number, got %s", v.TypeName())
	case "not":
		b, ok := v.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: '!' requires a boolean, got %s", v.TypeName())
		}
		return value.Bool(!b), nil
	case "abs":
		if i, ok := v.AsInt(); ok {
			if i < 0 {
				i = -i
			}
			return value.Int(i), nil
		}
		if f, ok := v.AsFloat(); ok {
			return value.Float(math.Abs(f)), nil
		}
		return value.Null, typeErr("calculator: abs requires a number, got %s", v.TypeName())
	default:
		return value.Null, fmt.Errorf("calculator: unknown unary op %q", t.op)
	}
}

func evalBinary(t binaryNode, ctx *Context) (value.Value, error) {
	// or/and short-circuit; everything else evaluates both sides first.
	if t.op == binOr {
		l, err := evalNode(t.left, ctx)
		if err != nil {
			return value.Null, err
		}
		lb, ok := l.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: '||' requires booleans")
		}
		if lb {
			return value.Bool(true), nil
		}
		r, err := evalNode(t.right, ctx)
		if err != nil {
			return value.Null, err
		}
		rb, ok := r.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: '||' requires booleans")
		}
		return value.Bool(rb), nil
	}
	if t.op == binAnd {
		l, err := evalNode(t.left, ctx)
		if err != nil {
			return value.Null, err
		}
		lb, ok := l.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: '&&' requires booleans")
		}
		if !lb {
			return value.Bool(false), nil
		}
		r, err := evalNode(t.right, ctx)
		if err != nil {
			return value.Null, err
		}
		rb, ok := r.AsBool()
		if !ok {
			return value.Null, typeErr("calculator: '&&' requires booleans")
		}
		return value.Bool(rb), nil
	}

	l, err := evalNode(t.left, ctx)
	if err != nil {
		return value.Null, err
	}
	r, err := evalNode(t.right, ctx)
	if err != nil {
		return value.Null, err
	}

	switch t.op {
	case binEq:
		return value.Bool(l.Equal(r)), nil
	case binNe:
		return value.Bool(!l.Equal(r)), nil
	case binGt, binLt, binGe, binLe:
		cmp, ok := l.Compare(r)
		if !ok {
			return value.Null, typeErr("calculator: %s and %s are not comparable", l.TypeName(), r.TypeName())
		}
		switch t.op {
		case binGt:
			return value.Bool(cmp > 0), nil
		case binLt:
			return value.Bool(cmp < 0), nil
		case binGe:
			return value.Bool(cmp >= 0), nil
		default:
			return value.Bool(cmp <= 0), nil
		}
	case binContains:
		return value.Bool(l.Contains(r)), nil
	case binIn:
		return value.Bool(r.Contains(l)), nil
	case binStartsWith:
		ls, ok1 := l.AsString()
		rs, ok2 := r.AsString()
		if !ok1 || !ok2 {
			return value.Null, typeErr("calculator: starts_with requires strings")
		}
		return value.Bool(strings.HasPrefix(ls, rs)), nil
	case binEndsWith:
		ls, ok1 := l.AsString()
		rs, ok2 := r.AsString()
		if !ok1 || !ok2 {
			return value.Null, typeErr("calculator: ends_with requires strings")
		}
		return value.Bool(strings.HasSuffix(ls, rs)), nil
	case binConcat:
		ls, ok1 := l.AsString()
		rs, ok2 := r.AsString()
		if ok1 && ok2 {
			return value.String(ls + rs), nil
		}
		larr, ok1 := l.AsArray()
		rarr, ok2 := r.AsArray()
		if ok1 && ok2 {
			out := make([]value.Value, 0, len(larr)+len(rarr))
			out = append(out, larr...)
			out = append(out, rarr...)
			return value.Array(out), nil
		}
		return value.Null, typeErr("calculator: '++' requires two strings or two arrays")
	case binAdd, binSub, binMul, binDiv, binMod, binPow:
		return evalArith(t.op, l, r)
	default:
		return value.Null, fmt.Errorf("calculator: unknown binary op %d", t.op)
	}
}

func evalArith(op binOp, l, r value.Value) (value.Value, error) {
	li, liok := l.AsInt()
	ri, riok := r.AsInt()
	if liok && riok && op != binPow {
		switch op {
		case binAdd:
			return value.Int(li + ri), nil
		case binSub:
			return value.Int(li - ri), nil
		case binMul:
			return value.Int(li * ri), nil
		case binDiv:
			if ri == 0 {
				return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: division by zero"}
			}
			return value.Int(li / ri), nil
		case binMod:
			if ri == 0 {
				return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: modulo by zero"}
			}
			return value.Int(li % ri), nil
		}
	}
	lf, lok := l.AsNumber()
	rf, rok := r.AsNumber()
	if !lok || !rok {
		return value.Null, typeErr("calculator: arithmetic requires numbers, got %s and %s", l.TypeName(), r.TypeName())
	}
	switch op {
	case binAdd:
		return value.Float(lf + rf), nil
	case binSub:
		return value.Float(lf - rf), nil
	case binMul:
		return value.Float(lf * rf), nil
	case binDiv:
		if rf == 0 {
			return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: division by zero"}
		}
		return value.Float(lf / rf), nil
	case binMod:
		if rf == 0 {
			return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: modulo by zero"}
		}
		return value.Float(math.Mod(lf, rf)), nil
	case binPow:
		return value.Float(math.Pow(lf, rf)), nil
	default:
		return value.Null, fmt.Errorf("calculator: unknown arithmetic op %d", op)
	}
}

func evalCall(t callNode, ctx *Context) (value.Value, error) {
	args := make([]value.Value, len(t.args))
	for i, a := range t.args {
		v, err := evalNode(a, ctx)
		if err != nil {
			return value.Null, err
		}
		args[i] = v
	}
	fn, ok := builtinFuncs[t.name]
	if !ok {
		return value.Null, undefinedErr("calculator: unknown function %q", t.name)
	}
	return fn(ctx, args)
}

type builtinFunc func(ctx *Context, args []value.Value) (value.Value, error)

var builtinFuncs map[string]builtinFunc

func init() {
	builtinFuncs = map[string]builtinFunc{
		"abs":      biAbs,
		"floor":    biFloor,
		"ceil":     biCeil,
		"round":    biRound,
		"min":      biMin,
		"max":      biMax,
		"len":      biLen,
		"upper":    biUpper,
		"lower":    biLower,
		"trim":     biTrim,
		"sum":      biSum,
		"avg":      biAvg,
		"count":    biCount,
		"sqrt":     biSqrt,

		"array_push":     biArrayPush,
		"array_contains": biArrayContains,

		"fact_field":  biFactField,
		"fact_sum":    biFactSum,
		"fact_avg":    biFactAvg,
		"fact_count":  biFactCount,
		"fact_min":    biFactMin,
		"fact_max":    biFactMax,
		"fact_exists": biFactExists,
	}
}

func arity(name string, args []value.Value, n int) error {
	if len(args) != n {
		return &CalcError{Kind: "arity", Message: fmt.Sprintf("calculator: %s expects %d argument(s), got %d", name, n, len(args))}
	}
	return nil
}

func biAbs(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("abs", args, 1); err != nil {
		return value.Null, err
	}
	if i, ok := args[0].AsInt(); ok {
		if i < 0 {
			i = -i
		}
		return value.Int(i), nil
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return value.Null, typeErr("calculator: abs requires a number")
	}
	return value.Float(math.Abs(f)), nil
}

func biFloor(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("floor", args, 1); err != nil {
		return value.Null, err
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return value.Null, typeErr("calculator: floor requires a number")
	}
	return value.Int(int64(math.Floor(f))), nil
}

func biCeil(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("ceil", args, 1); err != nil {
		return value.Null, err
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return value.Null, typeErr("calculator: ceil requires a number")
	}
	return value.Int(int64(math.Ceil(f))), nil
}

func biRound(_ *Context, args []value.Value) (value.Value, error) {
	if len(args) != 1 && len(args) != 2 {
		return value.Null, &CalcError{Kind: "arity", Message: "calculator: round expects 1 or 2 arguments"}
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return value.Null, typeErr("calculator: round requires a number")
	}
	digits := int64(0)
	if len(args) == 2 {
		d, ok := args[1].AsInt()
		if !ok {
			return value.Null, typeErr("calculator: round precision must be an integer")
		}
		digits = d
	}
	mult := math.Pow(10, float64(digits))
	return value.Float(math.Round(f*mult) / mult), nil
}

func biSqrt(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("sqrt", args, 1); err != nil {
		return value.Null, err
	}
	f, ok := args[0].AsNumber()
	if !ok {
		return value.Null, typeErr("calculator: sqrt requires a number")
	}
	if f < 0 {
		return value.Null, &CalcError{Kind: "range", Message: "calculator: sqrt of negative number"}
	}
	return value.Float(math.Sqrt(f)), nil
}

func biMin(_ *Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &CalcError{Kind: "arity", Message: "calculator: min requires at least one argument"}
	}
	best := args[0]
	for _, a := range args[1:] {
		cmp, ok := a.Compare(best)
		if !ok {
			return value.Null, typeErr("calculator: min requires comparable arguments")
		}
		if cmp < 0 {
			best = a
		}
	}
	return best, nil
}

func biMax(_ *Context, args []value.Value) (value.Value, error) {
	if len(args) == 0 {
		return value.Null, &CalcError{Kind: "arity", Message: "calculator: max requires at least one argument"}
	}
	best := args[0]
	for _, a := range args[1:] {
		cmp, ok := a.Compare(best)
		if !ok {
			return value.Null, typeErr("calculator: max requires comparable arguments")
		}
		if cmp > 0 {
			best = a
		}
	}
	return best, nil
}

func biLen(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("len", args, 1); err != nil {
		return value.Null, err
	}
	if s, ok := args[0].AsString(); ok {
		return value.Int(int64(len(s))), nil
	}
	if arr, ok := args[0].AsArray(); ok {
		return value.Int(int64(len(arr))), nil
	}
	if obj, ok := args[0].AsObject(); ok {
		return value.Int(int64(len(obj))), nil
	}
	return value.Null, typeErr("calculator: len requires a string, array, or object")
}

func biUpper(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("upper", args, 1); err != nil {
		return value.Null, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: upper requires a string")
	}
	return value.String(strings.ToUpper(s)), nil
}

func biLower(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("lower", args, 1); err != nil {
		return value.Null, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: lower requires a string")
	}
	return value.String(strings.ToLower(s)), nil
}

func biTrim(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("trim", args, 1); err != nil {
		return value.Null, err
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: trim requires a string")
	}
	return value.String(strings.TrimSpace(s)), nil
}

func biSum(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("sum", args, 1); err != nil {
		return value.Null, err
	}
	arr, ok := args[0].AsArray()
	if !ok {
		return value.Null, typeErr("calculator: sum requires an array")
	}
	total := 0.0
	allInt := true
	for _, el := range arr {
		f, ok := el.AsNumber()
		if !ok {
			return value.Null, typeErr("calculator: sum requires an array of numbers")
		}
		if _, ok := el.AsInt(); !ok {
			allInt = false
		}
		total += f
	}
	if allInt {
		return value.Int(int64(total)), nil
	}
	return value.Float(total), nil
}

func biAvg(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("avg", args, 1); err != nil {
		return value.Null, err
	}
	arr, ok := args[0].AsArray()
	if !ok {
		return value.Null, typeErr("calculator: avg requires an array")
	}
	if len(arr) == 0 {
		return value.Null, &CalcError{Kind: "range", Message: "calculator: avg of empty array"}
	}
	sumv, err := biSum(ctx, args)
	if err != nil {
		return value.Null, err
	}
	total, _ := sumv.AsNumber()
	return value.Float(total / float64(len(arr))), nil
}

func biCount(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("count", args, 1); err != nil {
		return value.Null, err
	}
	arr, ok := args[0].AsArray()
	if !ok {
		return value.Null, typeErr("calculator: count requires an array")
	}
	return value.Int(int64(len(arr))), nil
}

func biArrayPush(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("array_push", args, 2); err != nil {
		return value.Null, err
	}
	arr, ok := args[0].AsArray()
	if !ok {
		return value.Null, typeErr("calculator: array_push requires an array")
	}
	out := make([]value.Value, len(arr)+1)
	copy(out, arr)
	out[len(arr)] = args[1]
	return value.Array(out), nil
}

func biArrayContains(_ *Context, args []value.Value) (value.Value, error) {
	if err := arity("array_contains", args, 2); err != nil {
		return value.Null, err
	}
	return value.Bool(args[0].Contains(args[1])), nil
}

// biFactField implements fact_field(id, field): a cross-fact accessor that
// looks up any fact in the store by id, not just the ones bound into the
// current token (spec §4.2, spec §8's "Cross-fact formula" scenario).
func biFactField(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_field", args, 2); err != nil {
		return value.Null, err
	}
	f, err := lookupFact(ctx, args[0], "fact_field")
	if err != nil {
		return value.Null, err
	}
	field, ok := args[1].AsString()
	if !ok {
		return value.Null, typeErr("calculator: fact_field requires a string field name")
	}
	v, ok := f.Data[field]
	if !ok {
		return value.Null, undefinedErr("calculator: fact_field: fact %d has no field %q", f.ID, field)
	}
	return v, nil
}

// lookupFact resolves idArg to a fact via ctx.Store. Used by the cross-fact
// built-ins (fact_field, fact_exists) rather than ctx.Facts, since the fact
// being asked about is typically not one of the current token's own facts.
func lookupFact(ctx *Context, idArg value.Value, fn string) (*store.Fact, error) {
	id, ok := idArg.AsInt()
	if !ok {
		return nil, typeErr("calculator: %s requires an integer fact id", fn)
	}
	if ctx.Store == nil {
		return nil, undefinedErr("calculator: %s: no fact store available", fn)
	}
	f, ok := ctx.Store.Get(uint64(id))
	if !ok {
		return nil, undefinedErr("calculator: %s: fact %d not found", fn, id)
	}
	return f, nil
}

func factNumbers(ctx *Context, field string) ([]float64, error) {
	out := make([]float64, 0, len(ctx.Facts))
	for _, f := range ctx.Facts {
		v, ok := f.Data[field]
		if !ok {
			continue
		}
		n, ok := v.AsNumber()
		if !ok {
			return nil, typeErr("calculator: field %q is not numeric on fact %d", field, f.ID)
		}
		out = append(out, n)
	}
	return out, nil
}

func biFactSum(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_sum", args, 1); err != nil {
		return value.Null, err
	}
	field, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: fact_sum requires a string field name")
	}
	nums, err := factNumbers(ctx, field)
	if err != nil {
		return value.Null, err
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return value.Float(total), nil
}

func biFactAvg(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_avg", args, 1); err != nil {
		return value.Null, err
	}
	field, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: fact_avg requires a string field name")
	}
	nums, err := factNumbers(ctx, field)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, &CalcError{Kind: "range", Message: "calculator: fact_avg over empty fact set"}
	}
	total := 0.0
	for _, n := range nums {
		total += n
	}
	return value.Float(total / float64(len(nums))), nil
}

func biFactCount(ctx *Context, args []value.Value) (value.Value, error) {
	if len(args) != 0 {
		return value.Null, &CalcError{Kind: "arity", Message: "calculator: fact_count expects no arguments"}
	}
	return value.Int(int64(len(ctx.Facts))), nil
}

func biFactMin(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_min", args, 1); err != nil {
		return value.Null, err
	}
	field, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: fact_min requires a string field name")
	}
	nums, err := factNumbers(ctx, field)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, &CalcError{Kind: "range", Message: "calculator: fact_min over empty fact set"}
	}
	sort.Float64s(nums)
	return value.Float(nums[0]), nil
}

func biFactMax(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_max", args, 1); err != nil {
		return value.Null, err
	}
	field, ok := args[0].AsString()
	if !ok {
		return value.Null, typeErr("calculator: fact_max requires a string field name")
	}
	nums, err := factNumbers(ctx, field)
	if err != nil {
		return value.Null, err
	}
	if len(nums) == 0 {
		return value.Null, &CalcError{Kind: "range", Message: "calculator: fact_max over empty fact set"}
	}
	sort.Float64s(nums)
	return value.Float(nums[len(nums)-1]), nil
}

// biFactExists implements fact_exists(id): reports whether a fact with
// that id currently exists in the store (spec §4.2).
func biFactExists(ctx *Context, args []value.Value) (value.Value, error) {
	if err := arity("fact_exists", args, 1); err != nil {
		return value.Null, err
	}
	id, ok := args[0].AsInt()
	if !ok {
		return value.Null, typeErr("calculator: fact_exists requires an integer fact id")
	}
	if ctx.Store == nil {
		return value.Bool(false), nil
	}
	_, ok = ctx.Store.Get(uint64(id))
	return value.Bool(ok), nil
}
