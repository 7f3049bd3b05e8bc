package calculator

import (
	"math"
	"strconv"
	"testing"

	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

func TestBuiltinAbsFloorCeilRound(t *testing.T) {
	if v := evalSrc(t, "abs(-5)", nil); mustInt(t, v) != 5 {
		t.Fatalf("abs failed")
	}
	if v := evalSrc(t, "floor(3.7)", nil); mustInt(t, v) != 3 {
		t.Fatalf("floor failed")
	}
	if v := evalSrc(t, "ceil(3.2)", nil); mustInt(t, v) != 4 {
		t.Fatalf("ceil failed")
	}
	if v := evalSrc(t, "round(3.456, 2)", nil); math.Abs(mustFloat(t, v)-3.46) > 1e-9 {
		t.Fatalf("round failed: %v", v.Debug())
	}
}

func TestBuiltinMinMaxLen(t *testing.T) {
	if v := evalSrc(t, "min(3, 1, 2)", nil); mustInt(t, v) != 1 {
		t.Fatalf("min failed")
	}
	if v := evalSrc(t, "max(3, 1, 2)", nil); mustInt(t, v) != 3 {
		t.Fatalf("max failed")
	}
	if v := evalSrc(t, `len("hello")`, nil); mustInt(t, v) != 5 {
		t.Fatalf("len failed")
	}
}

func TestFactAggregateBuiltins(t *testing.T) {
	facts := []*store.Fact{
		{ID: 1, Data: map[string]value.Value{"amount": value.Float(10)}},
		{ID: 2, Data: map[string]value.Value{"amount": value.Float(30)}},
	}
	ctx := &Context{Vars: map[string]value.Value{}, Facts: facts}
	v, err := Eval(`fact_sum("amount")`, ctx)
	if err != nil {
		t.Fatalf("fact_sum: %v", err)
	}
	if mustFloat(t, v) != 40 {
		t.Fatalf("got %v", v.Debug())
	}
	v, err = Eval(`fact_avg("amount")`, ctx)
	if err != nil {
		t.Fatalf("fact_avg: %v", err)
	}
	if mustFloat(t, v) != 20 {
		t.Fatalf("got %v", v.Debug())
	}
	v, err = Eval(`fact_count()`, ctx)
	if err != nil {
		t.Fatalf("fact_count: %v", err)
	}
	if mustInt(t, v) != 2 {
		t.Fatalf("got %v", v.Debug())
	}
}

func TestFactFieldCrossFactLookup(t *testing.T) {
	// spec §8's "Cross-fact formula" scenario: an order fact's formula pulls
	// a field off a *different*, unbound customer fact by id.
	st := store.New(store.Config{})
	customer := st.Insert(store.Fact{Data: map[string]value.Value{"discount_rate": value.Float(0.1)}})
	order := st.Insert(store.Fact{Data: map[string]value.Value{"type": value.String("order"), "amount": value.Float(100)}})

	ctx := &Context{
		Vars:  map[string]value.Value{"type": value.String("order"), "amount": value.Float(100)},
		Facts: []*store.Fact{order},
		Store: st,
	}
	v, err := Eval(`amount * (1 - fact_field(`+fmtID(customer.ID)+`, "discount_rate"))`, ctx)
	if err != nil {
		t.Fatalf("fact_field: %v", err)
	}
	if got := mustFloat(t, v); math.Abs(got-90) > 1e-9 {
		t.Fatalf("expected net 90, got %v", got)
	}

	if _, err := Eval(`fact_field(`+fmtID(order.ID)+`, "discount_rate")`, ctx); err == nil {
		t.Fatal("expected an error looking up a field the target fact doesn't have")
	}
	if _, err := Eval(`fact_field(999999, "discount_rate")`, ctx); err == nil {
		t.Fatal("expected an error looking up a nonexistent fact id")
	}
}

func TestFactExistsChecksStoreById(t *testing.T) {
	st := store.New(store.Config{})
	f := st.Insert(store.Fact{Data: map[string]value.Value{"amount": value.Float(1)}})
	ctx := &Context{Vars: map[string]value.Value{}, Store: st}

	v, err := Eval(`fact_exists(`+fmtID(f.ID)+`)`, ctx)
	if err != nil {
		t.Fatalf("fact_exists: %v", err)
	}
	if b, _ := v.AsBool(); !b {
		t.Fatal("expected fact_exists to report true for a stored fact")
	}

	v, err = Eval(`fact_exists(999999)`, ctx)
	if err != nil {
		t.Fatalf("fact_exists: %v", err)
	}
	if b, _ := v.AsBool(); b {
		t.Fatal("expected fact_exists to report false for an absent fact id")
	}
}

func fmtID(id uint64) string { return strconv.FormatUint(id, 10) }

func TestUndefinedIdentifierErrors(t *testing.T) {
	_, err := Eval("missing_field + 1", &Context{Vars: map[string]value.Value{}})
	if err == nil {
		t.Fatal("expected undefined identifier error")
	}
}

func mustInt(t *testing.T, v value.Value) int64 {
	t.Helper()
	i, ok := v.AsInt()
	if !ok {
		t.Fatalf("value %v is not an integer", v.Debug())
	}
	return i
}

func mustFloat(t *testing.T, v value.Value) float64 {
	t.Helper()
	f, ok := v.AsNumber()
	if !ok {
		t.Fatalf("value %v is not numeric", v.Debug())
	}
	return f
}
