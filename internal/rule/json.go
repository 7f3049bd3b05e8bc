package rule

import (
	"encoding/json"
	"fmt"
	"time"

	"ruleengine/internal/value"
)

// wireRule/Condition/Action mirror the canonical JSON shape from spec §6.

type wireRule struct {
	ID         uint64          `json:"id"`
	Name       string          `json:"name"`
	Conditions []wireCondition `json:"conditions"`
	Actions    []wireAction    `json:"actions"`
}

type wireWindow struct {
	Kind       string `json:"kind"`
	Size       int    `json:"size,omitempty"`
	DurationMS int64  `json:"duration_ms,omitempty"`
}

type wireCondition struct {
	Type string `json:"type"`

	// simple
	Field string       `json:"field,omitempty"`
	Op    string       `json:"op,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`

	// complex
	LogicalOp string          `json:"logical_op,omitempty"`
	Children  []wireCondition `json:"children,omitempty"`

	// aggregation
	Kind        string         `json:"kind,omitempty"`
	SourceField string         `json:"source_field,omitempty"`
	GroupBy     []string       `json:"group_by,omitempty"`
	Window      *wireWindow    `json:"window,omitempty"`
	Having      *wireCondition `json:"having,omitempty"`
	Alias       string         `json:"alias,omitempty"`
	Percentile  float64        `json:"percentile,omitempty"`
}

type wireAction struct {
	Type string `json:"type"`

	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
	Expr  string          `json:"expr,omitempty"`

	Fields map[string]string `json:"fields,omitempty"`

	Calculator string            `json:"calculator,omitempty"`
	Inputs     map[string]string `json:"inputs,omitempty"`
	Output     string            `json:"output,omitempty"`

	Message string `json:"message,omitempty"`
}

// MarshalJSON encodes r using the canonical tagged-union wire shape.
func (r Rule) MarshalJSON() ([]byte, error) {
	w := wireRule{ID: r.ID, Name: r.Name}
	for _, c := range r.Conditions {
		wc, err := conditionToWire(c)
		if err != nil {
			return nil, err
		}
		w.Conditions = append(w.Conditions, wc)
	}
	for _, a := range r.Actions {
		wa, err := actionToWire(a)
		if err != nil {
			return nil, err
		}
		w.Actions = append(w.Actions, wa)
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes r from the canonical tagged-union wire shape.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var w wireRule
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	r.ID = w.ID
	r.Name = w.Name
	r.Conditions = nil
	for _, wc := range w.Conditions {
		c, err := conditionFromWire(wc)
		if err != nil {
			return err
		}
		r.Conditions = append(r.Conditions, c)
	}
	r.Actions = nil
	for _, wa := range w.Actions {
		a, err := actionFromWire(wa)
		if err != nil {
			return err
		}
		r.Actions = append(r.Actions, a)
	}
	return nil
}

func conditionToWire(c Condition) (wireCondition, error) {
	var w wireCondition
	switch c.Type {
	case ConditionSimple:
		w.Type = "simple"
		w.Field = c.Field
		w.Op = c.Op.String()
		raw, err := json.Marshal(c.Value)
		if err != nil {
			return w, err
		}
		w.Value = raw
	case ConditionComplex:
		w.Type = "complex"
		w.LogicalOp = c.LogicalOp.String()
		for _, child := range c.Children {
			wc, err := conditionToWire(child)
			if err != nil {
				return w, err
			}
			w.Children = append(w.Children, wc)
		}
	case ConditionAggregation:
		w.Type = "aggregation"
		w.Kind = c.AggKind.String()
		w.SourceField = c.SourceField
		w.GroupBy = c.GroupBy
		w.Alias = c.Alias
		w.Percentile = c.Percentile
		if c.Window != nil {
			ww := &wireWindow{Size: c.Window.Size, DurationMS: c.Window.Duration.Milliseconds()}
			switch c.Window.Kind {
			case WindowTumbling:
				ww.Kind = "tumbling"
			case WindowSliding:
				ww.Kind = "sliding"
			}
			w.Window = ww
		}
		if c.Having != nil {
			hw, err := conditionToWire(*c.Having)
			if err != nil {
				return w, err
			}
			w.Having = &hw
		}
	default:
		return w, fmt.Errorf("rule: unknown condition type %d", c.Type)
	}
	return w, nil
}

func conditionFromWire(w wireCondition) (Condition, error) {
	var c Condition
	switch w.Type {
	case "simple":
		c.Type = ConditionSimple
		c.Field = w.Field
		op, err := opFromString(w.Op)
		if err != nil {
			return c, err
		}
		c.Op = op
		var v value.Value
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &v); err != nil {
				return c, fmt.Errorf("rule: condition value: %w", err)
			}
		}
		c.Value = v
	case "complex":
		c.Type = ConditionComplex
		lop, err := logicalOpFromString(w.LogicalOp)
		if err != nil {
			return c, err
		}
		c.LogicalOp = lop
		for _, wc := range w.Children {
			child, err := conditionFromWire(wc)
			if err != nil {
				return c, err
			}
			c.Children = append(c.Children, child)
		}
	case "aggregation":
		c.Type = ConditionAggregation
		kind, err := aggKindFromString(w.Kind)
		if err != nil {
			return c, err
		}
		c.AggKind = kind
		c.SourceField = w.SourceField
		c.GroupBy = w.GroupBy
		c.Alias = w.Alias
		c.Percentile = w.Percentile
		if w.Window != nil {
			win := &Window{Size: w.Window.Size, Duration: time.Duration(w.Window.DurationMS) * time.Millisecond}
			switch w.Window.Kind {
			case "tumbling":
				win.Kind = WindowTumbling
			case "sliding":
				win.Kind = WindowSliding
			default:
				return c, fmt.Errorf("rule: unknown window kind %q", w.Window.Kind)
			}
			c.Window = win
		}
		if w.Having != nil {
			h, err := conditionFromWire(*w.Having)
			if err != nil {
				return c, err
			}
			c.Having = &h
		}
	default:
		return c, fmt.Errorf("rule: unknown condition type %q", w.Type)
	}
	return c, nil
}

func actionToWire(a Action) (wireAction, error) {
	var w wireAction
	switch a.Type {
	case ActionSetField:
		w.Type = "set_field"
		w.Field = a.Field
		raw, err := json.Marshal(a.Value)
		if err != nil {
			return w, err
		}
		w.Value = raw
	case ActionCreateFact:
		w.Type = "create_fact"
		w.Fields = a.Fields
	case ActionFormula:
		w.Type = "formula"
		w.Field = a.Field
		w.Expr = a.Expr
	case ActionCallCalculator:
		w.Type = "call_calculator"
		w.Calculator = a.Calculator
		w.Inputs = a.Inputs
		w.Output = a.Output
	case ActionLog:
		w.Type = "log"
		w.Message = a.Message
	default:
		return w, fmt.Errorf("rule: unknown action type %d", a.Type)
	}
	return w, nil
}

func actionFromWire(w wireAction) (Action, error) {
	var a Action
	switch w.Type {
	case "set_field":
		a.Type = ActionSetField
		a.Field = w.Field
		var v value.Value
		if len(w.Value) > 0 {
			if err := json.Unmarshal(w.Value, &v); err != nil {
				return a, fmt.Errorf("rule: action value: %w", err)
			}
		}
		a.Value = v
	case "create_fact":
		a.Type = ActionCreateFact
		a.Fields = w.Fields
	case "formula":
		a.Type = ActionFormula
		a.Field = w.Field
		a.Expr = w.Expr
	case "call_calculator":
		a.Type = ActionCallCalculator
		a.Calculator = w.Calculator
		a.Inputs = w.Inputs
		a.Output = w.Output
	case "log":
		a.Type = ActionLog
		a.Message = w.Message
	default:
		return a, fmt.Errorf("rule: unknown action type %q", w.Type)
	}
	return a, nil
}

func opFromString(s string) (Op, error) {
	switch s {
	case "eq":
		return OpEq, nil
	case "ne":
		return OpNe, nil
	case "gt":
		return OpGt, nil
	case "lt":
		return OpLt, nil
	case "ge":
		return OpGe, nil
	case "le":
		return OpLe, nil
	case "contains":
		return OpContains, nil
	default:
		return 0, fmt.Errorf("rule: unknown op %q", s)
	}
}

func logicalOpFromString(s string) (LogicalOp, error) {
	switch s {
	case "and":
		return LogicalAnd, nil
	case "or":
		return LogicalOr, nil
	case "not":
		return LogicalNot, nil
	default:
		return 0, fmt.Errorf("rule: unknown logical_op %q", s)
	}
}

func aggKindFromString(s string) (AggKind, error) {
	switch s {
	case "sum":
		return AggSum, nil
	case "avg":
		return AggAvg, nil
	case "count":
		return AggCount, nil
	case "min":
		return AggMin, nil
	case "max":
		return AggMax, nil
	case "stddev":
		return AggStdDev, nil
	case "variance":
		return AggVariance, nil
	case "percentile":
		return AggPercentile, nil
	default:
		return 0, fmt.Errorf("rule: unknown aggregation kind %q", s)
	}
}
