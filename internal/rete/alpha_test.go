package rete

import (
	"testing"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

func TestAlphaNodeMatchesAndMemory(t *testing.T) {
	cond := rule.Condition{Type: rule.ConditionSimple, Field: "amount", Op: rule.OpGt, Value: value.Int(1000)}
	a := newAlphaNode(1, cond)

	hot := store.Fact{ID: 1, Data: map[string]value.Value{"amount": value.Int(1500)}}
	cold := store.Fact{ID: 2, Data: map[string]value.Value{"amount": value.Int(10)}}

	if !a.Matches(&hot) {
		t.Fatal("expected hot fact to match")
	}
	if a.Matches(&cold) {
		t.Fatal("expected cold fact not to match")
	}

	if !a.Insert(hot.ID) {
		t.Fatal("expected first insert to report new")
	}
	if a.Insert(hot.ID) {
		t.Fatal("expected duplicate insert to report false")
	}
	if !a.Contains(hot.ID) {
		t.Fatal("expected memory to contain inserted id")
	}
	if a.Len() != 1 {
		t.Fatalf("expected len 1, got %d", a.Len())
	}
	if !a.Remove(hot.ID) {
		t.Fatal("expected remove to report true")
	}
	if a.Contains(hot.ID) {
		t.Fatal("expected memory to no longer contain removed id")
	}
}

func TestAlphaKeyDedupIgnoresNumericKindCollision(t *testing.T) {
	intCond := rule.Condition{Type: rule.ConditionSimple, Field: "x", Op: rule.OpEq, Value: value.Int(5)}
	floatCond := rule.Condition{Type: rule.ConditionSimple, Field: "x", Op: rule.OpEq, Value: value.Float(5)}
	if alphaKey(intCond) == alphaKey(floatCond) {
		t.Fatal("expected integer 5 and float 5 to produce distinct alpha keys")
	}

	same := rule.Condition{Type: rule.ConditionSimple, Field: "x", Op: rule.OpEq, Value: value.Int(5)}
	if alphaKey(intCond) != alphaKey(same) {
		t.Fatal("expected identical conditions to share an alpha key")
	}
}

func TestEvalSimpleOperators(t *testing.T) {
	f := &store.Fact{Data: map[string]value.Value{
		"status": value.String("premium"),
		"tags":   value.Array([]value.Value{value.String("vip"), value.String("gold")}),
	}}

	cases := []struct {
		op   rule.Op
		val  value.Value
		want bool
	}{
		{rule.OpEq, value.String("premium"), true},
		{rule.OpNe, value.String("basic"), true},
		{rule.OpContains, value.String("vip"), false}, // field is "status", not "tags"
	}
	for _, tc := range cases {
		got := evalSimple(rule.Condition{Type: rule.ConditionSimple, Field: "status", Op: tc.op, Value: tc.val}, f)
		if got != tc.want {
			t.Errorf("op %v: got %v want %v", tc.op, got, tc.want)
		}
	}

	tagsCond := rule.Condition{Type: rule.ConditionSimple, Field: "tags", Op: rule.OpContains, Value: value.String("gold")}
	if !evalSimple(tagsCond, f) {
		t.Fatal("expected tags to contain gold")
	}
}
