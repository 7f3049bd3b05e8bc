// Package agg implements the aggregation & windowing layer (spec §4.5, C5):
// group-by stateful aggregators with optional tumbling/sliding windows,
// lazy recomputation, and a having-clause gate that emits one token per
// contributing fact.
package agg

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/benbjohnson/clock"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

// contribution is one fact's recorded presence in a group's window.
type contribution struct {
	factID uint64
	val    float64
	at     int64 // unix nanos, only meaningful for time-based Sliding windows
}

// groupState holds one group-by key's running window plus its lazily
// computed aggregate (spec §4.5: "a cached current value and an
// invalidation flag").
type groupState struct {
	window []contribution
	dirty  bool
	cached value.Value
	passed bool
	fired  map[uint64]bool // fact ids already reported by a passing having (spec §4.5)
}

// Node is the compiled form of one Aggregation condition (spec §3): it
// owns every group's state for a single rule's aggregation clause.
type Node struct {
	RuleID uint64
	Cond   rule.Condition // Type == ConditionAggregation

	clock clock.Clock

	mu     sync.Mutex
	groups map[string]*groupState

	stats Stats
}

// Stats are the counters spec §4.5 requires the aggregator to expose.
type Stats struct {
	Created            int64
	Reused             int64
	CacheInvalidations int64
	FullComputations   int64
	EarlyTerminations  int64
}

// NewNode constructs an aggregation node for cond, which must have
// Type == rule.ConditionAggregation. clk is injectable so time-based
// Sliding windows can be driven deterministically in tests; a nil clk
// defaults to the real wall clock.
func NewNode(ruleID uint64, cond rule.Condition, clk clock.Clock) *Node {
	if clk == nil {
		clk = clock.New()
	}
	return &Node{RuleID: ruleID, Cond: cond, clock: clk, groups: make(map[string]*groupState)}
}

// Result is one synthetic firing for a single contributing fact, emitted
// when a group's having clause passes (spec §4.5: "emits one token per
// contributing fact, so downstream rules fire per-fact"). ContributingIDs
// always holds exactly one fact id, matching spec §3's token-arity
// invariant (a rule with one Aggregation condition produces arity-1
// tokens).
type Result struct {
	GroupKey        string
	ContributingIDs []uint64
	AggregateValue  value.Value
}

// Process folds f into whichever group it belongs to (if any) and, if that
// group's having clause now passes, returns one Result per fact in the
// window that has not already fired for this group — so a fact fires
// exactly once over its lifetime in a group, whether it was the fact that
// tipped having from false to true or one already sitting in the window
// when that happened (spec §8's "six firings: 3 sales + 3 engineering"
// scenario: having first passes on the group's 2nd or 3rd fact, and every
// fact present at that point fires, not just the newest one). A fact
// missing the SourceField, or any GroupBy field, does not contribute and
// Process returns ok == false.
func (n *Node) Process(f *store.Fact) (res []Result, ok bool) {
	fv, hasSource := f.Data[n.Cond.SourceField]
	if !hasSource {
		return nil, false
	}
	numeric, numOK := fv.AsNumber()
	if !numOK && n.Cond.AggKind != rule.AggCount {
		return nil, false
	}

	key, keyOK := groupKey(f, n.Cond.GroupBy)
	if !keyOK {
		return nil, false
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	g, exists := n.groups[key]
	if !exists {
		g = &groupState{fired: make(map[uint64]bool)}
		n.groups[key] = g
		n.stats.Created++
	} else {
		n.stats.Reused++
	}

	g.window = append(g.window, contribution{factID: f.ID, val: numeric, at: n.clock.Now().UnixNano()})
	n.evictLocked(g)
	g.dirty = true
	n.stats.CacheInvalidations++

	passed, aggVal := n.evaluateLocked(g)
	if !passed {
		return nil, false
	}

	var results []Result
	for _, c := range g.window {
		if g.fired[c.factID] {
			continue
		}
		g.fired[c.factID] = true
		results = append(results, Result{GroupKey: key, ContributingIDs: []uint64{c.factID}, AggregateValue: aggVal})
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, true
}

// evictLocked applies the node's window policy (spec §4.5: Tumbling is a
// bounded count-based FIFO; Sliding is count- or time-based eviction).
func (n *Node) evictLocked(g *groupState) {
	w := n.Cond.Window
	if w == nil || w.Kind == rule.WindowNone {
		return
	}
	switch w.Kind {
	case rule.WindowTumbling:
		if w.Size > 0 && len(g.window) > w.Size {
			g.window = append([]contribution(nil), g.window[len(g.window)-w.Size:]...)
		}
	case rule.WindowSliding:
		if w.Duration > 0 {
			cutoff := n.clock.Now().Add(-w.Duration).UnixNano()
			i := 0
			for i < len(g.window) && g.window[i].at < cutoff {
				i++
			}
			if i > 0 {
				g.window = append([]contribution(nil), g.window[i:]...)
			}
		} else if w.Size > 0 && len(g.window) > w.Size {
			g.window = append([]contribution(nil), g.window[len(g.window)-w.Size:]...)
		}
	}
}

// evaluateLocked recomputes g's aggregate only if dirty (spec §4.5's lazy
// recomputation contract) and evaluates the having clause against it.
func (n *Node) evaluateLocked(g *groupState) (bool, value.Value) {
	if !g.dirty {
		return g.passed, g.cached
	}

	if len(g.window) == 0 {
		// Aggregation over an empty group emits nothing, decidable without
		// touching any statistic (spec §4.5's named early-termination case).
		n.stats.EarlyTerminations++
		g.dirty = false
		g.passed = false
		g.cached = value.Null
		return false, value.Null
	}

	aggVal := computeAggregate(n.Cond.AggKind, g.window, n.Cond.Percentile)
	n.stats.FullComputations++

	passed := true
	if n.Cond.Having != nil {
		passed = evalHaving(*n.Cond.Having, n.Cond.Alias, aggVal)
	}

	g.dirty = false
	g.cached = aggVal
	g.passed = passed
	return passed, aggVal
}

// Stats returns a snapshot of the node's aggregation counters.
func (n *Node) Stats() Stats {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.stats
}

func groupKey(f *store.Fact, groupBy []string) (string, bool) {
	if len(groupBy) == 0 {
		return "*", true
	}
	var sb []byte
	for _, field := range groupBy {
		v, ok := f.Data[field]
		if !ok {
			return "", false
		}
		sb = append(sb, []byte(field)...)
		sb = append(sb, '=')
		sb = append(sb, []byte(fmt.Sprintf("%x", v.Hash()))...)
		sb = append(sb, ';')
	}
	return string(sb), true
}

func computeAggregate(kind rule.AggKind, window []contribution, percentile float64) value.Value {
	n := len(window)
	switch kind {
	case rule.AggCount:
		return value.Int(int64(n))
	case rule.AggSum:
		var sum float64
		for _, c := range window {
			sum += c.val
		}
		return value.Float(sum)
	case rule.AggAvg:
		var sum float64
		for _, c := range window {
			sum += c.val
		}
		return value.Float(sum / float64(n))
	case rule.AggMin:
		min := window[0].val
		for _, c := range window[1:] {
			if c.val < min {
				min = c.val
			}
		}
		return value.Float(min)
	case rule.AggMax:
		max := window[0].val
		for _, c := range window[1:] {
			if c.val > max {
				max = c.val
			}
		}
		return value.Float(max)
	case rule.AggStdDev, rule.AggVariance:
		v := sampleVariance(window)
		if kind == rule.AggVariance {
			return value.Float(v)
		}
		return value.Float(math.Sqrt(v))
	case rule.AggPercentile:
		return value.Float(percentileOf(window, percentile))
	default:
		return value.Null
	}
}

// sampleVariance computes the N-1 denominator sample variance via a
// Welford-style single pass over the current window (spec §4.5: "sample
// (N-1 denominator) by default"). Recomputed from scratch on each access
// that the window is dirty, rather than maintained incrementally across
// evictions — see DESIGN.md for why an incrementally-updated Welford
// accumulator does not support O(1) removal.
func sampleVariance(window []contribution) float64 {
	n := len(window)
	if n < 2 {
		return 0
	}
	var mean, m2 float64
	for i, c := range window {
		delta := c.val - mean
		mean += delta / float64(i+1)
		delta2 := c.val - mean
		m2 += delta * delta2
	}
	return m2 / float64(n-1)
}

// percentileOf returns the p-th percentile (0-100) via linear interpolation
// between order statistics (spec §4.5).
func percentileOf(window []contribution, p float64) float64 {
	vals := make([]float64, len(window))
	for i, c := range window {
		vals[i] = c.val
	}
	sort.Float64s(vals)
	n := len(vals)
	if n == 1 {
		return vals[0]
	}
	rank := (p / 100) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return vals[lo]
	}
	frac := rank - float64(lo)
	return vals[lo]*(1-frac) + vals[hi]*frac
}

// evalHaving evaluates a Simple condition against a synthetic fact whose
// only field is alias -> aggregate value (spec §4.5). The rule decoder
// accepts any condition type as a having clause; a non-Simple Having is
// treated as always-true to fail open rather than panic.
func evalHaving(having rule.Condition, alias string, aggVal value.Value) bool {
	if having.Type != rule.ConditionSimple {
		return true
	}
	var fv value.Value
	if having.Field == alias || having.Field == "" {
		fv = aggVal
	} else {
		return false
	}
	switch having.Op {
	case rule.OpEq:
		return fv.Equal(having.Value)
	case rule.OpNe:
		return !fv.Equal(having.Value)
	case rule.OpGt:
		cmp, ok := fv.Compare(having.Value)
		return ok && cmp > 0
	case rule.OpLt:
		cmp, ok := fv.Compare(having.Value)
		return ok && cmp < 0
	case rule.OpGe:
		cmp, ok := fv.Compare(having.Value)
		return ok && cmp >= 0
	case rule.OpLe:
		cmp, ok := fv.Compare(having.Value)
		return ok && cmp <= 0
	case rule.OpContains:
		return fv.Contains(having.Value)
	default:
		return false
	}
}
