// Package rete implements the alpha network (C3), beta network (C4), and
// terminal layer (C6) described in spec §4.3-§4.6: per-condition filter
// nodes with indexed memories, multi-condition join nodes over partial-match
// tokens, and the action-executing terminal nodes they feed.
package rete

import (
	"sync"

	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

// NodeID is the dense integer id shared by every node kind in the network.
type NodeID uint64

// NodeKind identifies which of the three node kinds a NodeID resolves to.
type NodeKind int

const (
	KindAlpha NodeKind = iota
	KindBeta
	KindTerminal
)

// Token is an immutable tuple of fact ids representing a partial or
// complete match. Objs carries the bound *store.Fact for each position in
// Facts (same order, same length): a beta join needs the actual fact data
// to resolve its join field, and a position several hops back in a long
// condition chain is otherwise unreachable without re-querying the store
// mid-propagation (see network.go's propagate). Arity-1 tokens are drawn
// from a pool to avoid allocation pressure on hot alpha-to-beta propagation
// paths; multi-arity tokens are built by join into freshly allocated
// slices that share no backing array with either input token.
type Token struct {
	Facts []uint64
	Objs  []*store.Fact
}

// tokenPool supplies arity-1 tokens. Nothing in the network calls
// releaseToken, so tokens are not returned to it and each Get allocates a
// new one. Pool size is not bounded here; sync.Pool already discards entries under memory pressure,
// matching spec §3's "overflow falls through to direct allocation without
// correctness impact".
var tokenPool = sync.Pool{
	New: func() interface{} {
		return &Token{Facts: make([]uint64, 1), Objs: make([]*store.Fact, 1)}
	},
}

// newToken1 returns a pooled single-fact token bound to f.
func newToken1(f *store.Fact) *Token {
	t := tokenPool.Get().(*Token)
	t.Facts = t.Facts[:1]
	t.Objs = t.Objs[:1]
	t.Facts[0] = f.ID
	t.Objs[0] = f
	return t
}

// releaseToken returns t to the pool. Only arity-1 tokens built by
// newToken1 should be released; joined tokens are not pooled since their
// lifetime is tied to beta memory.
func releaseToken(t *Token) {
	if cap(t.Facts) != 1 {
		return
	}
	tokenPool.Put(t)
}

// join returns a new token extending left with right's fact ids and bound
// facts, in order.
func join(left, right *Token) *Token {
	facts := make([]uint64, 0, len(left.Facts)+len(right.Facts))
	facts = append(facts, left.Facts...)
	facts = append(facts, right.Facts...)
	objs := make([]*store.Fact, 0, len(left.Objs)+len(right.Objs))
	objs = append(objs, left.Objs...)
	objs = append(objs, right.Objs...)
	return &Token{Facts: facts, Objs: objs}
}

// fieldValue returns the value bound to field by the most recently joined
// fact in tok that carries it, searching back to front so a beta hop
// prefers the fact added by the condition immediately preceding it in the
// chain over one added earlier (spec §4.4's join key is always derived
// from the previous condition).
func fieldValue(tok *Token, field string) (value.Value, bool) {
	for i := len(tok.Objs) - 1; i >= 0; i-- {
		f := tok.Objs[i]
		if f == nil {
			continue
		}
		if v, ok := f.Data[field]; ok {
			return v, true
		}
	}
	return value.Value{}, false
}

// DeltaKind is the direction of a propagated change: Add for a new match,
// Remove for a retraction.
type DeltaKind int

const (
	DeltaAdd DeltaKind = iota
	DeltaRemove
)

// TokenDelta pairs a token with its propagation direction.
type TokenDelta struct {
	Kind  DeltaKind
	Token *Token
}
