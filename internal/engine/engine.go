package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/bits-and-blooms/bitset"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"ruleengine/internal/agg"
	"ruleengine/internal/calculator"
	"ruleengine/internal/rete"
	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/pkg/config"
)

// Engine is the facade spec §1/C7 describes: it owns the fact store, the
// RETE network, the aggregation layer and the calculator expression engine,
// and is the only type a caller needs to add rules, insert facts and read
// back firing results.
type Engine struct {
	mu sync.RWMutex // guards rules/aggTerminals and the network/aggregator/store swap on batch abort

	cfg config.EngineConfig

	store      *store.Store
	network    *rete.Network
	aggregator *agg.Aggregator
	calc       *calculator.Engine
	plugins    *calculator.Registry
	clock      clock.Clock

	rules       map[uint64]rule.Rule
	aggTerminal map[uint64]*rete.TerminalNode // ad hoc terminal per aggregation-only rule

	log *logrus.Logger
}

// New constructs an Engine using config.Default().
func New() *Engine { return NewWithConfig(config.Default()) }

// WithCapacity scales the store's shard count to a hint of the steady-state
// fact population, per spec §6's capacity-planning guidance. One shard per
// ~100k facts, capped at 64, mirrors the store's own partitioning knob.
func WithCapacity(hint int) *Engine {
	cfg := config.Default()
	if hint > 0 {
		partitions := hint / 100000
		if partitions < 1 {
			partitions = 1
		}
		if partitions > 64 {
			partitions = 64
		}
		cfg.Store.Partitions = partitions
	}
	return NewWithConfig(cfg)
}

// NewWithConfig constructs an Engine from an explicit configuration, as
// loaded by pkg/config.
func NewWithConfig(cfg config.EngineConfig) *Engine {
	st := store.New(store.Config{Partitions: cfg.Store.Partitions, IndexedFields: cfg.Store.IndexedFields})
	calc := calculator.New(calculator.Config{
		CompiledCacheSize: cfg.Calculator.CompiledCacheSize,
		MemoCacheSize:     cfg.Calculator.MemoCacheSize,
	})

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(lvl)
	}

	clk := clock.New()
	return &Engine{
		cfg:         cfg,
		store:       st,
		network:     rete.NewNetwork(),
		aggregator:  agg.NewAggregator(clk),
		calc:        calc,
		plugins:     calculator.NewDefaultRegistry(),
		clock:       clk,
		rules:       make(map[uint64]rule.Rule),
		aggTerminal: make(map[uint64]*rete.TerminalNode),
		log:         log,
	}
}

// Store exposes the underlying fact store for read-only queries.
func (e *Engine) Store() *store.Store { return e.store }

// Plugins exposes the calculator plugin registry so callers can register
// additional WasmPlugin instances before processing facts.
func (e *Engine) Plugins() *calculator.Registry { return e.plugins }

func isAggregationRule(r rule.Rule) bool {
	for _, c := range r.Conditions {
		if c.Type == rule.ConditionAggregation {
			return true
		}
	}
	return false
}

// AddRule compiles r into the engine (spec §3/§9): non-aggregation rules
// are compiled into the RETE network; a rule carrying an Aggregation
// condition is registered with the aggregator instead (at most one
// aggregation condition per rule; see internal/agg's DESIGN.md note).
func (e *Engine) AddRule(r rule.Rule) error {
	if len(r.Conditions) == 0 {
		return newErr(KindRuleValidation, "rule must have at least one condition")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; exists {
		return newErr(KindRuleValidation, "duplicate rule id")
	}

	if isAggregationRule(r) {
		if len(r.Conditions) != 1 {
			return newErr(KindRuleValidation, "an aggregation rule may not combine its aggregation condition with any other condition")
		}
		if err := e.aggregator.Register(r); err != nil {
			return wrapErr(KindRuleValidation, "register aggregation rule", err)
		}
		e.aggTerminal[r.ID] = rete.NewTerminalNode(r.ID, r.Name)
	} else {
		if err := e.network.CompileRule(r); err != nil {
			return wrapErr(KindRuleValidation, "compile rule", err)
		}
	}

	e.rules[r.ID] = r
	return nil
}

// RemoveRule drops a previously added rule. Removing an unknown rule id is
// a no-op, matching spec §3's "rules may be withdrawn at any time".
func (e *Engine) RemoveRule(ruleID uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeRuleLocked(ruleID)
}

func (e *Engine) removeRuleLocked(ruleID uint64) {
	r, ok := e.rules[ruleID]
	if !ok {
		return
	}
	if isAggregationRule(r) {
		e.aggregator.Unregister(ruleID)
		delete(e.aggTerminal, ruleID)
	} else {
		e.network.RemoveRule(ruleID)
	}
	delete(e.rules, ruleID)
}

// UpdateRule atomically replaces a rule's definition (remove, then add).
func (e *Engine) UpdateRule(r rule.Rule) error {
	if len(r.Conditions) == 0 {
		return newErr(KindRuleValidation, "rule must have at least one condition")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.removeRuleLocked(r.ID)

	if isAggregationRule(r) {
		if len(r.Conditions) != 1 {
			return newErr(KindRuleValidation, "an aggregation rule may not combine its aggregation condition with any other condition")
		}
		if err := e.aggregator.Register(r); err != nil {
			return wrapErr(KindRuleValidation, "register aggregation rule", err)
		}
		e.aggTerminal[r.ID] = rete.NewTerminalNode(r.ID, r.Name)
	} else {
		if err := e.network.CompileRule(r); err != nil {
			return wrapErr(KindRuleValidation, "compile rule", err)
		}
	}
	e.rules[r.ID] = r
	return nil
}

// RuleCount returns the number of rules currently registered.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

// Stats reports the counters spec §6 requires of the engine's stats
// endpoint.
type Stats struct {
	RuleCount    int
	FactCount    int
	AlphaNodes   int
	BetaNodes    int
	TerminalNodes int
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ns := e.network.Stats()
	return Stats{
		RuleCount:     len(e.rules),
		FactCount:     e.store.Len(),
		AlphaNodes:    ns.AlphaNodes,
		BetaNodes:     ns.BetaNodes,
		TerminalNodes: ns.TerminalNodes,
	}
}

// Clear drops every fact from the store and rebuilds the network and
// aggregator from the currently registered rules, so no alpha/beta/
// aggregation memory keeps referencing now-gone fact ids. Rules themselves
// are left intact.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.store.Clear()
	e.rollbackLocked(nil)
}

func validateFact(f store.Fact) error {
	if f.Data == nil {
		return newErr(KindFactValidation, "fact has no data fields")
	}
	return nil
}

// ProcessFacts inserts facts and runs the engine to fixpoint (spec §4.1):
// each inserted fact is matched against the alpha/beta network and every
// aggregation node; every terminal reached fires its rule's actions, whose
// CreateFact/SetField/Formula/CallCalculator outputs are fed back into the
// same call as new facts, repeating until a round introduces nothing new.
// Facts within a round above Batch.ParallelThreshold are matched across a
// worker pool. The returned results are stably sorted by rule id; results
// of the same rule keep the order in which they were collected, which for a
// parallel round depends on which worker finished first.
//
// If the wall-clock budget (Batch.TimeoutMS) or the created-fact cap
// (Batch.MaxCreatedFacts) is exceeded, the entire batch is rolled back: the
// store, network and aggregator are restored to their state immediately
// before this call, as if it had never been made.
func (e *Engine) ProcessFacts(facts []store.Fact) ([]rete.RuleExecutionResult, error) {
	for _, f := range facts {
		if err := validateFact(f); err != nil {
			return nil, err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	preBatch := e.store.Snapshot()
	start := time.Now()
	timeout := time.Duration(e.cfg.Batch.TimeoutMS) * time.Millisecond

	var results []rete.RuleExecutionResult
	visited := bitset.New(1024) // dedup guard against the same fact id re-entering a round twice
	createdCount := 0

	abort := func(kind Kind, message string) ([]rete.RuleExecutionResult, error) {
		e.rollbackLocked(preBatch)
		return nil, newErr(kind, message)
	}

	ec := &rete.ExecContext{
		Store:   e.store,
		Calc:    e.calc,
		Plugins: e.plugins,
		Logf:    func(ruleID uint64, msg string) { e.log.WithField("rule_id", ruleID).Warn(msg) },
	}

	round := facts
	for len(round) > 0 {
		if timeout > 0 && time.Since(start) > timeout {
			return abort(KindTimeout, "batch exceeded its wall-clock budget")
		}

		roundResults, nextRound := e.processRound(round, visited, ec)
		results = append(results, roundResults...)
		createdCount += len(nextRound)

		if e.cfg.Batch.MaxCreatedFacts > 0 && createdCount > e.cfg.Batch.MaxCreatedFacts {
			return abort(KindFactExplosion, "batch exceeded the configured created-fact cap")
		}

		round = nextRound
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].RuleID < results[j].RuleID })
	return results, nil
}

// processRound inserts and matches one generation of facts, partitioning
// across a worker pool when the round is large (spec §4.7). It returns the
// results fired this round and the facts created/updated as a side effect,
// to be processed as the next generation.
func (e *Engine) processRound(round []store.Fact, visited *bitset.BitSet, ec *rete.ExecContext) ([]rete.RuleExecutionResult, []store.Fact) {
	var mu sync.Mutex
	var results []rete.RuleExecutionResult
	var next []store.Fact

	process := func(raw store.Fact) {
		f := e.store.Insert(raw)

		// Fact ids are monotonically assigned by the store, so a given id
		// should never reach processRound twice within one batch; this is a
		// defensive backstop against the fixpoint loop looping forever if
		// that invariant is ever violated, not a behavior callers rely on.
		mu.Lock()
		alreadyVisited := visited.Test(uint(f.ID))
		if !alreadyVisited {
			visited.Set(uint(f.ID))
		}
		mu.Unlock()
		if alreadyVisited {
			return
		}

		var onNew []store.Fact
		localEC := &rete.ExecContext{
			Store:   ec.Store,
			Calc:    ec.Calc,
			Plugins: ec.Plugins,
			Logf:    ec.Logf,
			OnNewFact: func(nf *store.Fact) {
				onNew = append(onNew, *nf)
			},
		}

		hits := e.network.ProcessFact(f)
		for _, hit := range hits {
			res, err := e.fire(hit.Terminal, hit.Token.Facts, localEC)
			if err != nil {
				ec.Logf(hit.Terminal.RuleID, err.Error())
				continue
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
		}

		for _, agHit := range e.aggregator.Process(f) {
			term, ok := e.aggTerminal[agHit.RuleID]
			if !ok {
				continue
			}
			res, err := e.fire(term, agHit.Result.ContributingIDs, localEC)
			if err != nil {
				ec.Logf(agHit.RuleID, err.Error())
				continue
			}
			mu.Lock()
			results = append(results, *res)
			mu.Unlock()
		}

		mu.Lock()
		next = append(next, onNew...)
		mu.Unlock()
	}

	if e.cfg.Batch.ParallelThreshold > 0 && len(round) > e.cfg.Batch.ParallelThreshold {
		var g errgroup.Group
		for _, chunk := range partition(round, 8) {
			chunk := chunk
			g.Go(func() error {
				for _, raw := range chunk {
					process(raw)
				}
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for _, raw := range round {
			process(raw)
		}
	}

	return results, next
}

func (e *Engine) fire(term *rete.TerminalNode, factIDs []uint64, ec *rete.ExecContext) (*rete.RuleExecutionResult, error) {
	tok := &rete.Token{Facts: factIDs}
	return term.Fire(tok, e.actionsFor(term.RuleID), ec)
}

func (e *Engine) actionsFor(ruleID uint64) []rule.Action {
	if r, ok := e.rules[ruleID]; ok {
		return r.Actions
	}
	return nil
}

// rollbackLocked restores the store and rebuilds the network/aggregator
// from the currently registered rule set, then replays preBatch's facts
// through them. Replay only repopulates alpha/beta/aggregation memory: it
// calls ProcessFact/Aggregator.Process directly rather than going through
// fire, so no action re-executes and no further facts are created.
// Rebuilding rather than tracking per-batch deltas sidesteps having to
// separately account for retract+reinsert churn within the aborted batch
// (every SetField/Formula/CallCalculator action removes and re-inserts its
// primary fact under a new id); replaying from a clean network against the
// exact pre-batch fact set is the simplest mechanism that is still
// correct regardless of how many rounds the aborted batch ran.
func (e *Engine) rollbackLocked(preBatch []store.Fact) {
	e.store.Restore(preBatch)

	net := rete.NewNetwork()
	aggr := agg.NewAggregator(e.clock)
	for _, r := range e.rules {
		if isAggregationRule(r) {
			_ = aggr.Register(r)
		} else {
			_ = net.CompileRule(r)
		}
	}
	e.network = net
	e.aggregator = aggr

	for _, f := range preBatch {
		fc := f
		net.ProcessFact(&fc)
		aggr.Process(&fc)
	}
}

// partition splits items into at most n roughly-equal chunks.
func partition(items []store.Fact, n int) [][]store.Fact {
	if n < 1 {
		n = 1
	}
	if len(items) < n {
		n = len(items)
	}
	if n == 0 {
		return nil
	}
	chunks := make([][]store.Fact, n)
	per := (len(items) + n - 1) / n
	for i := 0; i < n; i++ {
		lo := i * per
		if lo >= len(items) {
			break
		}
		hi := lo + per
		if hi > len(items) {
			hi = len(items)
		}
		chunks[i] = items[lo:hi]
	}
	out := chunks[:0]
	for _, c := range chunks {
		if len(c) > 0 {
			out = append(out, c)
		}
	}
	return out
}
