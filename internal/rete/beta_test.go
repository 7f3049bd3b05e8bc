package rete

import (
	"testing"

	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

func TestBetaNodeCrossJoin(t *testing.T) {
	b := newBetaNode(1, JoinCross, "", 10, 20)

	left := newToken1(&store.Fact{ID: 1})
	joined := b.ProcessLeftInsert(left)
	if len(joined) != 0 {
		t.Fatalf("expected no joins before any right facts, got %d", len(joined))
	}

	joined = b.ProcessRightInsert(newToken1(&store.Fact{ID: 100}), 0)
	if len(joined) != 1 || joined[0].Facts[0] != 1 || joined[0].Facts[1] != 100 {
		t.Fatalf("expected one joined token [1,100], got %+v", joined)
	}

	// A second left token should join against the already-seen right fact.
	left2 := newToken1(&store.Fact{ID: 2})
	joined = b.ProcessLeftInsert(left2)
	if len(joined) != 1 || joined[0].Facts[0] != 2 || joined[0].Facts[1] != 100 {
		t.Fatalf("expected [2,100], got %+v", joined)
	}
}

func TestBetaNodeFieldJoin(t *testing.T) {
	b := newBetaNode(1, JoinField, "dept", 10, 20)

	eng := &store.Fact{ID: 1, Data: map[string]value.Value{"dept": value.String("eng")}}

	left := newToken1(eng)
	b.ProcessLeftInsert(left)

	rightEngKey := b.RightKeyFor(newToken1(&store.Fact{Data: map[string]value.Value{"dept": value.String("eng")}}))
	rightSalesKey := b.RightKeyFor(newToken1(&store.Fact{Data: map[string]value.Value{"dept": value.String("sales")}}))

	joined := b.ProcessRightInsert(newToken1(&store.Fact{ID: 200, Data: map[string]value.Value{"dept": value.String("sales")}}), rightSalesKey)
	if len(joined) != 0 {
		t.Fatalf("expected no join across mismatched dept, got %+v", joined)
	}

	joined = b.ProcessRightInsert(newToken1(&store.Fact{ID: 201, Data: map[string]value.Value{"dept": value.String("eng")}}), rightEngKey)
	if len(joined) != 1 || joined[0].Facts[1] != 201 {
		t.Fatalf("expected join against matching dept fact 201, got %+v", joined)
	}
}

func TestBetaNodeSameFactJoin(t *testing.T) {
	b := newBetaNode(1, JoinSameFact, "", 10, 20)

	left := newToken1(&store.Fact{ID: 42})
	joined := b.ProcessLeftInsert(left)
	if len(joined) != 0 {
		t.Fatal("expected no join yet")
	}
	joined = b.ProcessRightInsert(newToken1(&store.Fact{ID: 42}), 42)
	if len(joined) != 1 || joined[0].Facts[0] != 42 || joined[0].Facts[1] != 42 {
		t.Fatalf("expected same-fact join [42,42], got %+v", joined)
	}

	// A different fact id must not join.
	left2 := newToken1(&store.Fact{ID: 7})
	joined = b.ProcessLeftInsert(left2)
	if len(joined) != 0 {
		t.Fatalf("expected no join for unrelated fact id, got %+v", joined)
	}
}

func TestBetaNodeNotJoinPassesOnlyWhenRightEmpty(t *testing.T) {
	b := newBetaNode(1, JoinNot, "", 10, 20)

	left := newToken1(&store.Fact{ID: 1})
	joined := b.ProcessLeftInsert(left)
	if len(joined) != 1 {
		t.Fatalf("expected token to pass through empty-right Not join, got %d", len(joined))
	}

	b.ProcessRightInsert(newToken1(&store.Fact{ID: 999}), 0)

	left2 := newToken1(&store.Fact{ID: 2})
	joined = b.ProcessLeftInsert(left2)
	if len(joined) != 0 {
		t.Fatalf("expected no pass-through once right memory is non-empty, got %d", len(joined))
	}

	prior := b.PriorLeftTokens()
	if len(prior) != 2 {
		t.Fatalf("expected 2 buffered left tokens, got %d", len(prior))
	}
}

// TestBetaNodeFieldJoinUsesPrecedingConditionFact exercises the bug a 3+
// condition JoinField chain used to hit: the left token's key must come
// from the fact bound by the condition immediately preceding this beta
// node, not from whichever fact originally triggered the propagation that
// reached it several hops back.
func TestBetaNodeFieldJoinUsesPrecedingConditionFact(t *testing.T) {
	b := newBetaNode(1, JoinField, "customer_id", 10, 20)

	// A token already carrying two facts: the first (id 1) has no
	// customer_id at all, the second (id 2, the "preceding condition")
	// carries customer_id=7. The join must key off fact 2, not fact 1.
	chained := join(newToken1(&store.Fact{ID: 1}), newToken1(&store.Fact{ID: 2, Data: map[string]value.Value{"customer_id": value.Int(7)}}))

	joined := b.ProcessLeftInsert(chained)
	if len(joined) != 0 {
		t.Fatalf("expected no join before any right facts, got %d", len(joined))
	}

	rightKey := b.RightKeyFor(newToken1(&store.Fact{Data: map[string]value.Value{"customer_id": value.Int(7)}}))
	joined = b.ProcessRightInsert(newToken1(&store.Fact{ID: 3, Data: map[string]value.Value{"customer_id": value.Int(7)}}), rightKey)
	if len(joined) != 1 || len(joined[0].Facts) != 3 || joined[0].Facts[2] != 3 {
		t.Fatalf("expected the chained token to join against customer_id=7, got %+v", joined)
	}
}
