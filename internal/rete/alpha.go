package rete

import (
	"strconv"
	"strings"
	"sync"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

// AlphaNode is the per-condition filter node (spec §4.3): one per distinct
// Simple condition encountered across all compiled rules, deduplicated by
// its (field, op, value) canonical form.
type AlphaNode struct {
	ID        NodeID
	Condition rule.Condition // Type == ConditionSimple

	mu      sync.RWMutex
	memory  map[uint64]struct{} // fact ids currently matching
	succ    []NodeID
}

func newAlphaNode(id NodeID, cond rule.Condition) *AlphaNode {
	return &AlphaNode{ID: id, Condition: cond, memory: make(map[uint64]struct{})}
}

func (n *AlphaNode) addSuccessor(id NodeID) { n.succ = append(n.succ, id) }

// Matches evaluates the node's predicate against f without touching memory.
func (n *AlphaNode) Matches(f *store.Fact) bool {
	return evalSimple(n.Condition, f)
}

// Insert adds f's id to the alpha memory. Returns false if already present
// (idempotent re-insertion, e.g. a duplicate propagation).
func (n *AlphaNode) Insert(factID uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.memory[factID]; ok {
		return false
	}
	n.memory[factID] = struct{}{}
	return true
}

// Remove retracts factID from the alpha memory.
func (n *AlphaNode) Remove(factID uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.memory[factID]; !ok {
		return false
	}
	delete(n.memory, factID)
	return true
}

// Contains reports whether factID is currently in the alpha memory.
func (n *AlphaNode) Contains(factID uint64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.memory[factID]
	return ok
}

// Snapshot returns the current member fact ids, in no particular order.
// Nothing in the engine calls it; beta probes use the beta node's own
// memory and batch-abort rollback rebuilds the network.
func (n *AlphaNode) Snapshot() []uint64 {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]uint64, 0, len(n.memory))
	for id := range n.memory {
		out = append(out, id)
	}
	return out
}

// Len reports the current alpha memory size.
func (n *AlphaNode) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.memory)
}

// evalSimple implements the Simple condition's comparison operators
// (spec §3: Eq, Ne, Gt, Lt, Ge, Le, Contains).
func evalSimple(cond rule.Condition, f *store.Fact) bool {
	fv, ok := f.Data[cond.Field]
	if !ok {
		return false
	}
	switch cond.Op {
	case rule.OpEq:
		return fv.Equal(cond.Value)
	case rule.OpNe:
		return !fv.Equal(cond.Value)
	case rule.OpGt:
		cmp, ok := fv.Compare(cond.Value)
		return ok && cmp > 0
	case rule.OpLt:
		cmp, ok := fv.Compare(cond.Value)
		return ok && cmp < 0
	case rule.OpGe:
		cmp, ok := fv.Compare(cond.Value)
		return ok && cmp >= 0
	case rule.OpLe:
		cmp, ok := fv.Compare(cond.Value)
		return ok && cmp <= 0
	case rule.OpContains:
		return fv.Contains(cond.Value)
	default:
		return false
	}
}

// alphaKey is the canonical (field, op, value) deduplication key for an
// alpha node (spec §4.3).
func alphaKey(cond rule.Condition) string {
	var sb strings.Builder
	sb.WriteString(cond.Field)
	sb.WriteByte('\x00')
	sb.WriteString(cond.Op.String())
	sb.WriteByte('\x00')
	sb.WriteString(valueDebugKey(cond.Value))
	return sb.String()
}

// valueDebugKey renders v into a string that differs whenever v.Kind()
// differs, so an Integer and a Float that happen to print the same digits
// never collapse onto the same alpha node.
func valueDebugKey(v value.Value) string {
	return v.Kind().String() + ":" + strconv.FormatUint(v.Hash(), 16)
}
