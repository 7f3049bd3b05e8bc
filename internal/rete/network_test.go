package rete

import (
	"testing"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

func TestCompileSimpleRuleFiresOnMatch(t *testing.T) {
	net := NewNetwork()
	r := rule.Rule{
		ID:   1,
		Name: "overtime",
		Conditions: []rule.Condition{
			{Type: rule.ConditionSimple, Field: "hours", Op: rule.OpGt, Value: value.Int(40)},
		},
	}
	if err := net.CompileRule(r); err != nil {
		t.Fatalf("compile: %v", err)
	}

	st := store.New(store.Config{})
	f := st.Insert(store.Fact{Data: map[string]value.Value{"hours": value.Int(45)}})
	hits := net.ProcessFact(f)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Terminal.RuleID != 1 {
		t.Fatalf("expected rule 1, got %d", hits[0].Terminal.RuleID)
	}

	cold := st.Insert(store.Fact{Data: map[string]value.Value{"hours": value.Int(10)}})
	hits = net.ProcessFact(cold)
	if len(hits) != 0 {
		t.Fatalf("expected no hits for non-matching fact, got %d", len(hits))
	}
}

func TestCompileComplexAndJoinsSameFact(t *testing.T) {
	net := NewNetwork()
	r := rule.Rule{
		ID:   2,
		Name: "premium high value",
		Conditions: []rule.Condition{{
			Type:      rule.ConditionComplex,
			LogicalOp: rule.LogicalAnd,
			Children: []rule.Condition{
				{Type: rule.ConditionSimple, Field: "amount", Op: rule.OpGt, Value: value.Int(1000)},
				{Type: rule.ConditionSimple, Field: "status", Op: rule.OpEq, Value: value.String("premium")},
			},
		}},
	}
	if err := net.CompileRule(r); err != nil {
		t.Fatalf("compile: %v", err)
	}

	st := store.New(store.Config{})
	match := st.Insert(store.Fact{Data: map[string]value.Value{
		"amount": value.Int(1500),
		"status": value.String("premium"),
	}})
	hits := net.ProcessFact(match)
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit for matching fact, got %d", len(hits))
	}
	if len(hits[0].Token.Facts) != 2 {
		t.Fatalf("expected a 2-fact token (same fact joined twice), got %v", hits[0].Token.Facts)
	}

	partial := st.Insert(store.Fact{Data: map[string]value.Value{
		"amount": value.Int(1500),
		"status": value.String("basic"),
	}})
	hits = net.ProcessFact(partial)
	if len(hits) != 0 {
		t.Fatalf("expected no hit when only one child condition matches, got %d", len(hits))
	}
}

func TestCompileFieldJoinCorrelatesOnRuntimeValue(t *testing.T) {
	net := NewNetwork()
	// Two distinct Simple conditions sharing a field name ("amount")
	// compile to a JoinField beta keyed by that field's runtime value.
	r := rule.Rule{
		ID:   3,
		Name: "amount boundary pair",
		Conditions: []rule.Condition{
			{Type: rule.ConditionSimple, Field: "amount", Op: rule.OpGe, Value: value.Int(500)},
			{Type: rule.ConditionSimple, Field: "amount", Op: rule.OpLe, Value: value.Int(500)},
		},
	}
	if err := net.CompileRule(r); err != nil {
		t.Fatalf("compile: %v", err)
	}

	st := store.New(store.Config{})
	boundary := st.Insert(store.Fact{Data: map[string]value.Value{"amount": value.Int(500)}})
	hits := net.ProcessFact(boundary)
	if len(hits) != 1 {
		t.Fatalf("expected the boundary value to satisfy both sides of the join, got %d hits", len(hits))
	}

	above := st.Insert(store.Fact{Data: map[string]value.Value{"amount": value.Int(1500)}})
	hits = net.ProcessFact(above)
	if len(hits) != 0 {
		t.Fatalf("expected no join for a value satisfying only one side, got %d", len(hits))
	}
}

// TestThreeConditionFieldJoinAcrossNonAdjacentHops exercises a chain where
// the second beta's join field lives on the condition two hops back from
// the fact that starts a given ProcessFact call: c1/c2 share no field
// (JoinCross), c2/c3 share "customer_id" (JoinField). A fact satisfying c1
// carries no customer_id at all, so the second beta only finds the
// customer_id=7 bucket if it keys off the c2 fact bound into the joined
// token. A customer_id=7 fact satisfies both c2 and c3, so it can fill
// both of those positions.
func TestThreeConditionFieldJoinAcrossNonAdjacentHops(t *testing.T) {
	net := NewNetwork()
	r := rule.Rule{
		ID:   6,
		Name: "order with known customer",
		Conditions: []rule.Condition{
			{Type: rule.ConditionSimple, Field: "kind", Op: rule.OpEq, Value: value.String("order")},
			{Type: rule.ConditionSimple, Field: "customer_id", Op: rule.OpEq, Value: value.Int(7)},
			{Type: rule.ConditionSimple, Field: "customer_id", Op: rule.OpNe, Value: value.Int(999)},
		},
	}
	if err := net.CompileRule(r); err != nil {
		t.Fatalf("compile: %v", err)
	}

	st := store.New(store.Config{})
	// c2's fact arrives first so c1's fact (which lacks customer_id
	// entirely) is the one that ends up as the "triggering" insert when c1
	// matches second.
	f2 := st.Insert(store.Fact{Data: map[string]value.Value{"customer_id": value.Int(7)}})
	if hits := net.ProcessFact(f2); len(hits) != 0 {
		t.Fatalf("expected no hit from the customer_id fact alone, got %d", len(hits))
	}

	// f2 satisfies c3 as well (7 != 999), so c1's fact completes the
	// chain as [f1, f2, f2].
	f1 := st.Insert(store.Fact{Data: map[string]value.Value{"kind": value.String("order")}})
	if hits := net.ProcessFact(f1); len(hits) != 1 {
		t.Fatalf("expected the customer_id=7 join to fire across the non-adjacent hop, got %d hits", len(hits))
	}

	// A second customer_id=7 fact pairs with f2 in either position and with
	// itself: [f1, f3, f2], [f1, f2, f3], [f1, f3, f3].
	f3 := st.Insert(store.Fact{Data: map[string]value.Value{"customer_id": value.Int(7)}})
	hits := net.ProcessFact(f3)
	if len(hits) != 3 {
		t.Fatalf("expected 3 new hits from the second customer_id=7 fact, got %d", len(hits))
	}
	if len(hits[0].Token.Facts) != 3 {
		t.Fatalf("expected a 3-fact token, got %v", hits[0].Token.Facts)
	}
}

func TestRemoveRuleDropsTerminal(t *testing.T) {
	net := NewNetwork()
	r := rule.Rule{
		ID: 4,
		Conditions: []rule.Condition{
			{Type: rule.ConditionSimple, Field: "x", Op: rule.OpEq, Value: value.Int(1)},
		},
	}
	if err := net.CompileRule(r); err != nil {
		t.Fatalf("compile: %v", err)
	}
	net.RemoveRule(4)

	st := store.New(store.Config{})
	f := st.Insert(store.Fact{Data: map[string]value.Value{"x": value.Int(1)}})
	hits := net.ProcessFact(f)
	if len(hits) != 0 {
		t.Fatalf("expected no hits after rule removal, got %d", len(hits))
	}
}

func TestCompileRuleRejectsAggregationCondition(t *testing.T) {
	net := NewNetwork()
	r := rule.Rule{
		ID: 5,
		Conditions: []rule.Condition{
			{Type: rule.ConditionAggregation, AggKind: rule.AggSum, SourceField: "amount"},
		},
	}
	if err := net.CompileRule(r); err == nil {
		t.Fatal("expected error compiling an aggregation condition into the join network")
	}
}
