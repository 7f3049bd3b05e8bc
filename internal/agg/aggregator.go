package agg

import (
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"

	"ruleengine/internal/rule"
	"ruleengine/internal/store"
)

// Aggregator owns every rule's aggregation node and fans each inserted fact
// out to all of them (spec §4.5). It is a sibling of internal/rete.Network
// rather than a component inside it: an aggregation condition's group-by/
// window/having state does not fit the alpha/beta memory model, so the
// engine facade (C7) runs both side by side (see DESIGN.md).
type Aggregator struct {
	clock clock.Clock

	mu    sync.RWMutex
	nodes map[uint64]*Node // keyed by rule id
}

// NewAggregator constructs an Aggregator. A nil clk uses the real wall
// clock; tests inject clock.NewMock() to drive time-based Sliding windows
// deterministically.
func NewAggregator(clk clock.Clock) *Aggregator {
	if clk == nil {
		clk = clock.New()
	}
	return &Aggregator{clock: clk, nodes: make(map[uint64]*Node)}
}

// Register compiles r's Aggregation condition into a Node. It returns an
// error if r has no Aggregation condition or more than one — a rule may
// carry at most one aggregation clause in this engine (see DESIGN.md's
// scope note on mixing aggregation with other condition kinds).
func (a *Aggregator) Register(r rule.Rule) error {
	var aggCond *rule.Condition
	for i := range r.Conditions {
		if r.Conditions[i].Type == rule.ConditionAggregation {
			if aggCond != nil {
				return &ConfigError{RuleID: r.ID, Message: "rule has more than one aggregation condition"}
			}
			aggCond = &r.Conditions[i]
		}
	}
	if aggCond == nil {
		return &ConfigError{RuleID: r.ID, Message: "rule has no aggregation condition"}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nodes[r.ID] = NewNode(r.ID, *aggCond, a.clock)
	return nil
}

// Unregister drops a rule's aggregation node.
func (a *Aggregator) Unregister(ruleID uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.nodes, ruleID)
}

// NodeResult pairs a rule id with the aggregation Result its node produced.
type NodeResult struct {
	RuleID uint64
	Result Result
}

// Process offers f to every registered aggregation node and collects every
// per-fact Result whose having clause now passes. A single fact can yield
// more than one NodeResult per rule id when having first starts passing
// and sweeps in several already-buffered facts at once (see Node.Process).
func (a *Aggregator) Process(f *store.Fact) []NodeResult {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []NodeResult
	for ruleID, node := range a.nodes {
		if results, ok := node.Process(f); ok {
			for _, res := range results {
				out = append(out, NodeResult{RuleID: ruleID, Result: res})
			}
		}
	}
	return out
}

// Stats returns the per-rule aggregation counters for a single node, or the
// zero Stats if ruleID has no aggregation node.
func (a *Aggregator) Stats(ruleID uint64) Stats {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if n, ok := a.nodes[ruleID]; ok {
		return n.Stats()
	}
	return Stats{}
}

// ConfigError reports a rule that cannot be registered with the aggregator.
type ConfigError struct {
	RuleID  uint64
	Message string
}

func (e *ConfigError) Error() string {
	return "agg: rule " + strconv.FormatUint(e.RuleID, 10) + ": " + e.Message
}
