package rete

import "sync"

// JoinKind selects how a BetaNode correlates its left (partial match) and
// right (alpha memory) inputs.
type JoinKind int

const (
	// JoinCross performs a full cross product: every left token is paired
	// with every right fact id. Used when the rule's conditions share no
	// correlating field (spec §4.4: "a cross product if none").
	JoinCross JoinKind = iota
	// JoinField correlates on equal values of a named field, read off the
	// right-hand fact and off the left token's bound facts by scanning the
	// facts each token carries (see keyFor and fieldValue).
	JoinField
	// JoinSameFact correlates left and right by fact identity: the right
	// alpha's matching fact id must equal the left token's most recent
	// fact id. This is how a Complex And's children (multiple predicates
	// over the *same* incoming fact) are joined, per spec §4.3's note that
	// Complex conditions expand into "alpha nodes plus beta joins".
	JoinSameFact
	// JoinNot is a negated join (spec §4.3): the token passes through only
	// when the right-hand alpha memory has no match at all (Not-condition
	// semantics; the right alpha's emptiness is the entire contract, so no
	// field correlation is needed).
	JoinNot
)

// BetaNode is a two-input join node (spec §4.4).
type BetaNode struct {
	ID    NodeID
	Kind  JoinKind
	Field string // meaningful only when Kind == JoinField

	Left  NodeID
	Right NodeID

	mu         sync.RWMutex
	leftTokens map[uint64][]*Token // bucketed by join key hash; key 0 when JoinCross
	rightToks  map[uint64][]*Token // bucketed by join key hash

	succ []NodeID
}

func newBetaNode(id NodeID, kind JoinKind, field string, left, right NodeID) *BetaNode {
	return &BetaNode{
		ID: id, Kind: kind, Field: field, Left: left, Right: right,
		leftTokens: make(map[uint64][]*Token),
		rightToks:  make(map[uint64][]*Token),
	}
}

func (n *BetaNode) addSuccessor(id NodeID) { n.succ = append(n.succ, id) }

// keyFor derives the join bucket for a token on whichever side it arrives
// from: for JoinField it is the hash of the named field's value, resolved
// by scanning every fact bound into tok (see fieldValue) rather than
// assuming a fixed position, since the relevant condition may be several
// beta hops back in a 3+ condition chain; for JoinSameFact it is the
// token's own fact id (the most recently bound one).
func (n *BetaNode) keyFor(tok *Token) uint64 {
	switch n.Kind {
	case JoinField:
		v, ok := fieldValue(tok, n.Field)
		if !ok {
			return 0
		}
		return v.Hash()
	case JoinSameFact:
		return lastFact(tok)
	default:
		return 0
	}
}

// ProcessLeftInsert records a new left-side token and returns every joined
// token it produces against the current right memory.
func (n *BetaNode) ProcessLeftInsert(tok *Token) []*Token {
	n.mu.Lock()
	key := n.keyFor(tok)
	n.leftTokens[key] = append(n.leftTokens[key], tok)
	var rightToks []*Token
	if n.Kind == JoinNot {
		n.mu.Unlock()
		if len(n.rightSnapshotLocked()) == 0 {
			return []*Token{tok}
		}
		return nil
	}
	rightToks = append(rightToks, n.rightToks[key]...)
	n.mu.Unlock()

	out := make([]*Token, 0, len(rightToks))
	for _, rt := range rightToks {
		out = append(out, join(tok, rt))
	}
	return out
}

func (n *BetaNode) rightSnapshotLocked() []*Token {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var all []*Token
	for _, toks := range n.rightToks {
		all = append(all, toks...)
	}
	return all
}

// ProcessRightInsert records a new right-side token under its join key and
// returns every joined token it produces against the current left memory.
// For JoinNot, the right token is only recorded and nothing is returned;
// the caller hands PriorLeftTokens to retractDownstream, which is a no-op,
// so left tokens that already passed through are not retracted.
func (n *BetaNode) ProcessRightInsert(rtok *Token, key uint64) []*Token {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rightToks[key] = append(n.rightToks[key], rtok)
	if n.Kind == JoinNot {
		return nil
	}
	var out []*Token
	for _, tok := range n.leftTokens[key] {
		out = append(out, join(tok, rtok))
	}
	return out
}

// PriorLeftTokens returns every left token currently buffered, regardless
// of bucket; used by JoinNot to retract previously-passed tokens once a
// right-hand match appears.
func (n *BetaNode) PriorLeftTokens() []*Token {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var all []*Token
	for _, toks := range n.leftTokens {
		all = append(all, toks...)
	}
	return all
}

// RightKeyFor computes the join bucket a right-hand token belongs to. The
// right side can itself be a multi-fact token (a Complex condition's
// sub-tree feeding the top-level chain as one "condition"), so this shares
// keyFor's token-wide field scan rather than only looking at one fact.
func (n *BetaNode) RightKeyFor(tok *Token) uint64 {
	return n.keyFor(tok)
}

func lastFact(tok *Token) uint64 {
	if len(tok.Facts) == 0 {
		return 0
	}
	return tok.Facts[len(tok.Facts)-1]
}
