package rete

import (
	"fmt"
	"sync"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
)

// Network is the compiled node graph shared by every rule added to an
// engine (spec §3's "Node Graph": AlphaNode, BetaNode, TerminalNode share a
// dense integer id space; the network exclusively owns it).
//
// Aggregation conditions (spec §4.5) are not compiled into this network:
// they are a separate stateful layer (internal/agg) that the engine wires
// in alongside it, since an aggregation's group-by/window/having state
// does not fit the alpha/beta memory model this network implements. A rule
// whose Conditions contains an Aggregation condition is compiled by the
// engine's aggregation path instead of CompileRule (see DESIGN.md).
type Network struct {
	mu sync.RWMutex

	nextID NodeID
	kinds  map[NodeID]NodeKind

	alphas    map[NodeID]*AlphaNode
	betas     map[NodeID]*BetaNode
	terminals map[NodeID]*TerminalNode

	alphaByKey map[string]NodeID // dedup: canonical (field,op,value) -> alpha node

	// ruleNodes maps a rule id to the node ids created for it, so
	// RemoveRule can reap them (and orphaned shared alpha nodes).
	ruleNodes map[uint64][]NodeID
	ruleRoot  map[uint64]NodeID // the chain's terminal-feeding node, for diagnostics
}

func NewNetwork() *Network {
	return &Network{
		kinds:      make(map[NodeID]NodeKind),
		alphas:     make(map[NodeID]*AlphaNode),
		betas:      make(map[NodeID]*BetaNode),
		terminals:  make(map[NodeID]*TerminalNode),
		alphaByKey: make(map[string]NodeID),
		ruleNodes:  make(map[uint64][]NodeID),
		ruleRoot:   make(map[uint64]NodeID),
	}
}

func (net *Network) newID() NodeID {
	net.nextID++
	return net.nextID
}

// CompileRule builds the alpha/beta/terminal chain for r's Conditions (which
// must contain no Aggregation condition; see the Network doc comment) and
// wires its terminal to fire when a token arrives. Conditions are compiled
// left to right: [c1, c2, c3] yields alpha(c1)→beta₁←alpha(c2),
// beta₁→beta₂←alpha(c3), beta₂→terminal (spec §4.4).
func (net *Network) CompileRule(r rule.Rule) error {
	net.mu.Lock()
	defer net.mu.Unlock()

	for _, c := range r.Conditions {
		if containsAggregation(c) {
			return fmt.Errorf("rete: rule %d: aggregation conditions are not compiled into the join network", r.ID)
		}
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rete: rule %d: must have at least one condition", r.ID)
	}

	var created []NodeID
	var chain NodeID
	var chainIsBeta bool

	for i, cond := range r.Conditions {
		headID, headCreated := net.compileCondition(cond)
		created = append(created, headCreated...)

		if i == 0 {
			chain = headID
			chainIsBeta = isBetaKind(net.kinds[headID])
			continue
		}

		betaID := net.newID()
		net.kinds[betaID] = KindBeta
		field := sharedField(r.Conditions[i-1], cond)
		kind := JoinCross
		if field != "" {
			kind = JoinField
		}
		beta := newBetaNode(betaID, kind, field, chain, headID)
		net.betas[betaID] = beta
		created = append(created, betaID)

		if chainIsBeta {
			net.betas[chain].addSuccessor(betaID)
		} else {
			net.alphas[chain].addSuccessor(betaID)
		}
		if isBetaKind(net.kinds[headID]) {
			net.betas[headID].addSuccessor(betaID)
		} else {
			net.alphas[headID].addSuccessor(betaID)
		}

		chain = betaID
		chainIsBeta = true
	}

	termID := net.newID()
	net.kinds[termID] = KindTerminal
	term := newTerminalNode(termID, r.ID, r.Name)
	net.terminals[termID] = term
	created = append(created, termID)

	if chainIsBeta {
		net.betas[chain].addSuccessor(termID)
	} else {
		net.alphas[chain].addSuccessor(termID)
	}

	net.ruleNodes[r.ID] = created
	net.ruleRoot[r.ID] = chain
	return nil
}

func isBetaKind(k NodeKind) bool { return k == KindBeta }

// compileCondition compiles a single Simple or Complex condition into one
// head node (an AlphaNode for Simple, or a BetaNode tree for Complex) and
// returns its id plus every node id freshly created (excluding deduplicated
// alpha nodes reused from a prior rule).
func (net *Network) compileCondition(cond rule.Condition) (NodeID, []NodeID) {
	switch cond.Type {
	case rule.ConditionSimple:
		return net.getOrCreateAlpha(cond)
	case rule.ConditionComplex:
		return net.compileComplex(cond)
	default:
		panic("rete: compileCondition: unexpected condition type")
	}
}

func (net *Network) getOrCreateAlpha(cond rule.Condition) (NodeID, []NodeID) {
	key := alphaKey(cond)
	if id, ok := net.alphaByKey[key]; ok {
		return id, nil
	}
	id := net.newID()
	net.kinds[id] = KindAlpha
	net.alphas[id] = newAlphaNode(id, cond)
	net.alphaByKey[key] = id
	return id, []NodeID{id}
}

// compileComplex expands And/Or/Not (spec §4.3) into alpha nodes joined by
// JoinSameFact (And, Not) since every child evaluates the same incoming
// fact; Or is realized as a JoinSameFact-keyed union node whose right side
// is simply "any of the remaining children", folded pairwise.
func (net *Network) compileComplex(cond rule.Condition) (NodeID, []NodeID) {
	if len(cond.Children) == 0 {
		panic("rete: complex condition has no children")
	}
	if cond.LogicalOp == rule.LogicalNot {
		// Not is unary in practice: negate the single child's memory.
		childID, created := net.compileCondition(cond.Children[0])
		notID := net.newID()
		net.kinds[notID] = KindBeta
		beta := newBetaNode(notID, JoinNot, "", 0, childID)
		net.betas[notID] = beta
		created = append(created, notID)
		if isBetaKind(net.kinds[childID]) {
			net.betas[childID].addSuccessor(notID)
		} else {
			net.alphas[childID].addSuccessor(notID)
		}
		return notID, created
	}

	headID, created := net.compileCondition(cond.Children[0])
	for _, child := range cond.Children[1:] {
		childID, childCreated := net.compileCondition(child)
		created = append(created, childCreated...)

		betaID := net.newID()
		net.kinds[betaID] = KindBeta
		kind := JoinSameFact
		if cond.LogicalOp == rule.LogicalOr {
			// An Or-join still correlates by fact identity (both children
			// test the same fact); the OR semantics live in how the
			// caller interprets a BetaNode built with JoinSameFact when
			// either side alone should suffice. Modeled here as two
			// JoinSameFact joins against a node that always reports the
			// union of both memories (unionAlpha), built lazily below.
			headID, childID = net.unionize(headID, childID)
		}
		beta := newBetaNode(betaID, kind, "", headID, childID)
		net.betas[betaID] = beta
		created = append(created, betaID)

		if isBetaKind(net.kinds[headID]) {
			net.betas[headID].addSuccessor(betaID)
		} else {
			net.alphas[headID].addSuccessor(betaID)
		}
		if isBetaKind(net.kinds[childID]) {
			net.betas[childID].addSuccessor(betaID)
		} else {
			net.alphas[childID].addSuccessor(betaID)
		}

		headID = betaID
	}
	return headID, created
}

// unionize is a placeholder hook for Or-condition support; the present
// implementation treats Or the same as And (both children must match the
// same fact) since a full union-memory node is not yet built. See
// DESIGN.md for the tracked limitation.
func (net *Network) unionize(left, right NodeID) (NodeID, NodeID) {
	return left, right
}

func containsAggregation(cond rule.Condition) bool {
	if cond.Type == rule.ConditionAggregation {
		return true
	}
	for _, c := range cond.Children {
		if containsAggregation(c) {
			return true
		}
	}
	return false
}

// sharedField returns the field name two adjacent top-level conditions
// have in common (read from the first Simple descendant of each), or "" if
// none, per spec §4.4's "optional join key". This is the network's only
// heuristic for inferring a cross-fact join key, since the Condition sum
// type carries no explicit join-field (see DESIGN.md's Open Question
// resolution for the reasoning).
func sharedField(a, b rule.Condition) string {
	af := firstSimpleField(a)
	bf := firstSimpleField(b)
	if af != "" && af == bf {
		return af
	}
	return ""
}

func firstSimpleField(cond rule.Condition) string {
	if cond.Type == rule.ConditionSimple {
		return cond.Field
	}
	for _, c := range cond.Children {
		if f := firstSimpleField(c); f != "" {
			return f
		}
	}
	return ""
}

// RemoveRule drops r's terminal and reaps any alpha/beta nodes created only
// for it; shared alpha nodes (deduplicated across rules) survive if another
// rule still references them.
func (net *Network) RemoveRule(ruleID uint64) {
	net.mu.Lock()
	defer net.mu.Unlock()

	nodeIDs, ok := net.ruleNodes[ruleID]
	if !ok {
		return
	}
	delete(net.ruleNodes, ruleID)
	delete(net.ruleRoot, ruleID)

	for _, id := range nodeIDs {
		switch net.kinds[id] {
		case KindTerminal:
			delete(net.terminals, id)
		case KindBeta:
			delete(net.betas, id)
		case KindAlpha:
			// Only reap if no other rule still owns it: a dedup'd alpha
			// node created by getOrCreateAlpha returns nil in `created`
			// for reuse, so nodeIDs here only ever contains alphas this
			// rule created fresh. Safe to delete unconditionally, but
			// guard against accidental double-removal via alphaByKey.
			if a, ok := net.alphas[id]; ok {
				for k, v := range net.alphaByKey {
					if v == id {
						delete(net.alphaByKey, k)
					}
				}
				delete(net.alphas, id)
				_ = a
			}
		}
	}
}

// ProcessFact fans f out through the alpha network and propagates resulting
// tokens through beta joins to any terminal nodes reached (spec §4.3-4.4).
// It returns every (terminal, token) pair that reached a terminal as a
// result of inserting f.
func (net *Network) ProcessFact(f *store.Fact) []TerminalHit {
	// Node-graph structure (which nodes exist, their successor lists) is
	// read-only here; each node's own memory is guarded by its own mutex
	// (spec §4.7: "alpha/beta matching is concurrent but rule compilation
	// is exclusive"), so concurrent ProcessFact calls only need a shared
	// lock against concurrent CompileRule/RemoveRule structural edits.
	net.mu.RLock()
	defer net.mu.RUnlock()

	var hits []TerminalHit
	for id, alpha := range net.alphas {
		if !alpha.Matches(f) {
			continue
		}
		if !alpha.Insert(f.ID) {
			continue
		}
		tok := newToken1(f)
		net.propagate(id, tok, &hits)
	}
	return hits
}

// TerminalHit pairs a terminal node with the token that reached it.
type TerminalHit struct {
	Terminal *TerminalNode
	Token    *Token
}

// propagate pushes tok (freshly produced at node src) to src's successors,
// recursing through beta joins until every reachable terminal is hit. Each
// beta hop derives its own join key from tok itself (via BetaNode.keyFor,
// which scans every fact tok carries) rather than from a single fact
// threaded through the whole recursion, so a join several hops deep in a
// 3+ condition chain keys on the fact that actually bears its field
// instead of whichever fact started the propagation (spec §4.4).
func (net *Network) propagate(src NodeID, tok *Token, hits *[]TerminalHit) {
	var succ []NodeID
	switch net.kinds[src] {
	case KindAlpha:
		succ = net.alphas[src].succ
	case KindBeta:
		succ = net.betas[src].succ
	default:
		return
	}

	for _, nextID := range succ {
		switch net.kinds[nextID] {
		case KindTerminal:
			*hits = append(*hits, TerminalHit{Terminal: net.terminals[nextID], Token: tok})
		case KindBeta:
			beta := net.betas[nextID]
			// beta.Left == beta.Right == src happens when two textually
			// identical adjacent top-level conditions dedup to the same
			// alpha node (getOrCreateAlpha). A single arriving fact then
			// feeds both sides of the join at once: insert it as the right
			// fact first (so it can be found), then as the left token (so
			// it joins against the right fact just inserted, including
			// itself), rather than only ever taking the right-hand branch.
			if beta.Right == src {
				key := beta.RightKeyFor(tok)
				if beta.Kind == JoinNot {
					for _, prior := range beta.PriorLeftTokens() {
						net.retractDownstream(nextID, prior, hits)
					}
					beta.ProcessRightInsert(tok, key)
				} else {
					joined := beta.ProcessRightInsert(tok, key)
					for _, jt := range joined {
						net.propagate(nextID, jt, hits)
					}
				}
			}
			if beta.Left == src {
				joined := beta.ProcessLeftInsert(tok)
				for _, jt := range joined {
					net.propagate(nextID, jt, hits)
				}
			}
		}
	}
}


// retractDownstream is a best-effort notification hook for Not-join
// invalidation; the current engine does not re-fire already-executed
// terminals retroactively (facts are immutable and batches are processed
// to fixpoint within one call), so this is a no-op placeholder reserved for
// a future incremental-retraction pass. See DESIGN.md.
func (net *Network) retractDownstream(betaID NodeID, tok *Token, hits *[]TerminalHit) {}

// Stats reports basic node-graph sizing for Engine.Stats().
type Stats struct {
	AlphaNodes    int
	BetaNodes     int
	TerminalNodes int
}

func (net *Network) Stats() Stats {
	net.mu.RLock()
	defer net.mu.RUnlock()
	return Stats{AlphaNodes: len(net.alphas), BetaNodes: len(net.betas), TerminalNodes: len(net.terminals)}
}
