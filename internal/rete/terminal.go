package rete

import (
	"fmt"

	"ruleengine/internal/calculator"
	"ruleengine/internal/rule"
	"ruleengine/internal/store"
	"ruleengine/internal/value"
)

// TerminalNode is the end of a rule's compiled network (spec §4.6): it
// receives tokens, binds their fact ids to the rule's condition list, and
// executes the rule's action list in order.
type TerminalNode struct {
	ID     NodeID
	RuleID uint64
	Name   string
	Fields []string // per-condition alias, in token-position order, "" for unnamed positions
}

func newTerminalNode(id NodeID, ruleID uint64, name string) *TerminalNode {
	return &TerminalNode{ID: id, RuleID: ruleID, Name: name}
}

// NewTerminalNode builds a standalone terminal node for firing a rule's
// actions outside the alpha/beta network (the engine facade's aggregation
// path: an Aggregation condition's match comes from internal/agg, not a
// beta join, but still fires through the same Fire contract). Its NodeID is
// meaningless outside a Network and is left zero.
func NewTerminalNode(ruleID uint64, name string) *TerminalNode {
	return newTerminalNode(0, ruleID, name)
}

// ActionResult records the effect one action produced.
type ActionResult struct {
	Type        rule.ActionType
	Field       string
	Value       value.Value
	CreatedFact uint64 // 0 if no fact was created
	Calculator  string
	Skipped     bool
	Err         string
}

// RuleExecutionResult is the (rule_id, fact_id, action-effects) triple the
// engine emits (spec §1).
type RuleExecutionResult struct {
	RuleID  uint64
	FactID  uint64 // primary fact: token's first element
	Token   []uint64
	Actions []ActionResult
}

// ExecContext bundles the collaborators a terminal node needs to run a
// rule's actions: the fact store, the calculator expression cache, the
// calculator plugin registry, and a sink for facts created by CreateFact so
// the engine can feed them back through the network in the same batch.
type ExecContext struct {
	Store      *store.Store
	Calc       *calculator.Engine
	Plugins    *calculator.Registry
	OnNewFact  func(*store.Fact)
	Logf       func(ruleID uint64, message string)
}

// Fire binds tok's fact ids to positions and executes the rule's actions,
// in order, against the evaluation context they assemble. A failing action
// is skipped and logged (its ActionResult carries Err); it does not stop
// the remaining actions or abort the batch (spec §4.2 failure model).
func (n *TerminalNode) Fire(tok *Token, actions []rule.Action, ec *ExecContext) (*RuleExecutionResult, error) {
	facts := make([]*store.Fact, 0, len(tok.Facts))
	for _, id := range tok.Facts {
		f, ok := ec.Store.Get(id)
		if !ok {
			return nil, fmt.Errorf("rete: terminal %d: token references unknown fact %d", n.ID, id)
		}
		facts = append(facts, f)
	}

	vars := bindVars(facts)
	res := &RuleExecutionResult{RuleID: n.RuleID, Token: append([]uint64(nil), tok.Facts...)}
	if len(facts) > 0 {
		res.FactID = facts[0].ID
	}

	for _, act := range actions {
		ar := n.execAction(act, facts, vars, ec)
		res.Actions = append(res.Actions, ar)
	}
	return res, nil
}

// bindVars flattens every bound fact's fields into one variable scope so
// expressions can reference fields by name regardless of which joined fact
// they came from. Later facts (later token positions) shadow earlier ones
// on name collision.
func bindVars(facts []*store.Fact) map[string]value.Value {
	vars := make(map[string]value.Value)
	for _, f := range facts {
		for k, v := range f.Data {
			vars[k] = v
		}
	}
	return vars
}

func (n *TerminalNode) execAction(act rule.Action, facts []*store.Fact, vars map[string]value.Value, ec *ExecContext) ActionResult {
	ctx := &calculator.Context{Vars: vars, Facts: facts, Store: ec.Store}

	switch act.Type {
	case rule.ActionSetField:
		if len(facts) == 0 {
			return ActionResult{Type: act.Type, Field: act.Field, Skipped: true, Err: "no bound fact"}
		}
		primary := facts[0]
		updated := primary.Clone()
		updated.Data[act.Field] = act.Value
		ec.Store.Remove(primary.ID)
		stored := ec.Store.Insert(*updated)
		if ec.OnNewFact != nil {
			ec.OnNewFact(stored)
		}
		return ActionResult{Type: act.Type, Field: act.Field, Value: act.Value, CreatedFact: stored.ID}

	case rule.ActionFormula:
		result, err := ec.Calc.Eval(act.Expr, ctx)
		if err != nil {
			n.logErr(ec, "formula %q: %v", act.Expr, err)
			return ActionResult{Type: act.Type, Field: act.Field, Skipped: true, Err: err.Error()}
		}
		if len(facts) == 0 {
			return ActionResult{Type: act.Type, Field: act.Field, Skipped: true, Err: "no bound fact"}
		}
		primary := facts[0]
		updated := primary.Clone()
		updated.Data[act.Field] = result
		ec.Store.Remove(primary.ID)
		stored := ec.Store.Insert(*updated)
		if ec.OnNewFact != nil {
			ec.OnNewFact(stored)
		}
		return ActionResult{Type: act.Type, Field: act.Field, Value: result, CreatedFact: stored.ID}

	case rule.ActionCreateFact:
		data := make(map[string]value.Value, len(act.Fields))
		for field, expr := range act.Fields {
			v, err := ec.Calc.Eval(expr, ctx)
			if err != nil {
				n.logErr(ec, "create_fact field %q: %v", field, err)
				return ActionResult{Type: act.Type, Skipped: true, Err: err.Error()}
			}
			data[field] = v
		}
		stored := ec.Store.Insert(store.Fact{Data: data})
		if ec.OnNewFact != nil {
			ec.OnNewFact(stored)
		}
		return ActionResult{Type: act.Type, CreatedFact: stored.ID}

	case rule.ActionCallCalculator:
		inputs := make(map[string]value.Value, len(act.Inputs))
		for name, expr := range act.Inputs {
			v, err := ec.Calc.Eval(expr, ctx)
			if err != nil {
				n.logErr(ec, "call_calculator %q input %q: %v", act.Calculator, name, err)
				return ActionResult{Type: act.Type, Calculator: act.Calculator, Skipped: true, Err: err.Error()}
			}
			inputs[name] = v
		}
		result, err := ec.Plugins.Call(act.Calculator, inputs)
		if err != nil {
			n.logErr(ec, "call_calculator %q: %v", act.Calculator, err)
			return ActionResult{Type: act.Type, Calculator: act.Calculator, Skipped: true, Err: err.Error()}
		}
		if len(facts) > 0 && act.Output != "" {
			primary := facts[0]
			updated := primary.Clone()
			updated.Data[act.Output] = result
			ec.Store.Remove(primary.ID)
			stored := ec.Store.Insert(*updated)
			if ec.OnNewFact != nil {
				ec.OnNewFact(stored)
			}
			return ActionResult{Type: act.Type, Calculator: act.Calculator, Field: act.Output, Value: result, CreatedFact: stored.ID}
		}
		return ActionResult{Type: act.Type, Calculator: act.Calculator, Value: result}

	case rule.ActionLog:
		if ec.Logf != nil {
			ec.Logf(n.RuleID, act.Message)
		}
		return ActionResult{Type: act.Type, Value: value.String(act.Message)}

	default:
		return ActionResult{Type: act.Type, Skipped: true, Err: "unknown action type"}
	}
}

func (n *TerminalNode) logErr(ec *ExecContext, format string, args ...interface{}) {
	if ec.Logf == nil {
		return
	}
	ec.Logf(n.RuleID, fmt.Sprintf(format, args...))
}
