package rete

import (
	"testing"

	"ruleengine/internal/calculator"
	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

func newTestExecContext(t *testing.T) (*store.Store, *ExecContext) {
	t.Helper()
	st := store.New(store.Config{})
	ec := &ExecContext{
		Store:   st,
		Calc:    calculator.New(calculator.Config{}),
		Plugins: calculator.NewDefaultRegistry(),
		Logf:    func(ruleID uint64, msg string) { t.Logf("rule %d: %s", ruleID, msg) },
	}
	return st, ec
}

func TestTerminalFireSetField(t *testing.T) {
	st, ec := newTestExecContext(t)
	f := st.Insert(store.Fact{Data: map[string]value.Value{"amount": value.Int(100)}})

	term := newTerminalNode(1, 7, "flag premium")
	actions := []rule.Action{{Type: rule.ActionSetField, Field: "premium", Value: value.Bool(true)}}

	res, err := term.Fire(newToken1(f), actions, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Actions) != 1 || res.Actions[0].Skipped {
		t.Fatalf("expected one successful action, got %+v", res.Actions)
	}
	updated, ok := st.Get(res.Actions[0].CreatedFact)
	if !ok {
		t.Fatal("expected updated fact to be retrievable")
	}
	b, _ := updated.Data["premium"].AsBool()
	if !b {
		t.Fatal("expected premium field to be true on updated fact")
	}
}

func TestTerminalFireFormula(t *testing.T) {
	st, ec := newTestExecContext(t)
	f := st.Insert(store.Fact{Data: map[string]value.Value{"hours": value.Float(45)}})

	term := newTerminalNode(1, 7, "overtime pay")
	actions := []rule.Action{{Type: rule.ActionFormula, Field: "overtime_hours", Expr: "hours - 40"}}

	res, err := term.Fire(newToken1(f), actions, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := res.Actions[0].Value.AsFloat()
	if got != 5 {
		t.Fatalf("expected 5 overtime hours, got %v", got)
	}
}

func TestTerminalFireCallCalculator(t *testing.T) {
	st, ec := newTestExecContext(t)
	f := st.Insert(store.Fact{Data: map[string]value.Value{
		"base_amount": value.Float(200),
		"pct":         value.Float(0.1),
	}})

	term := newTerminalNode(1, 7, "apply surcharge")
	actions := []rule.Action{{
		Type:       rule.ActionCallCalculator,
		Calculator: "percentage_add",
		Inputs:     map[string]string{"amount": "base_amount", "percentage": "pct"},
		Output:     "total",
	}}

	res, err := term.Fire(newToken1(f), actions, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Actions[0].Skipped {
		t.Fatalf("expected calculator action to succeed, got err %q", res.Actions[0].Err)
	}
	got, _ := res.Actions[0].Value.AsFloat()
	if got != 220 {
		t.Fatalf("expected 220, got %v", got)
	}
}

func TestTerminalFireUnknownFactErrors(t *testing.T) {
	_, ec := newTestExecContext(t)
	term := newTerminalNode(1, 7, "broken")
	_, err := term.Fire(newToken1(&store.Fact{ID: 999}), nil, ec)
	if err == nil {
		t.Fatal("expected error for unresolvable fact id")
	}
}

func TestTerminalFireBadFormulaSkipsWithoutAborting(t *testing.T) {
	st, ec := newTestExecContext(t)
	f := st.Insert(store.Fact{Data: map[string]value.Value{"x": value.Int(1)}})

	term := newTerminalNode(1, 7, "bad then log")
	actions := []rule.Action{
		{Type: rule.ActionFormula, Field: "y", Expr: "x / 0"},
		{Type: rule.ActionLog, Message: "ran anyway"},
	}
	res, err := term.Fire(newToken1(f), actions, ec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Actions[0].Skipped {
		t.Fatal("expected division-by-zero formula to be skipped")
	}
	if res.Actions[1].Skipped {
		t.Fatal("expected subsequent log action to still run")
	}
}
