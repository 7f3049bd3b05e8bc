package calculator

import (
	"testing"

	"ruleengine/internal/value"
)

func callPlugin(t *testing.T, r *Registry, name string, inputs map[string]value.Value) value.Value {
	t.Helper()
	v, err := r.Call(name, inputs)
	if err != nil {
		t.Fatalf("%s: %v", name, err)
	}
	return v
}

func TestDefaultRegistryArithmeticCalculators(t *testing.T) {
	r := NewDefaultRegistry()

	v := callPlugin(t, r, "multiply", map[string]value.Value{"a": value.Float(2), "b": value.Float(3.5)})
	if mustFloat(t, v) != 7 {
		t.Fatalf("multiply: got %v", v.Debug())
	}

	v = callPlugin(t, r, "add", map[string]value.Value{"a": value.Float(10), "b": value.Float(15.5)})
	if mustFloat(t, v) != 25.5 {
		t.Fatalf("add: got %v", v.Debug())
	}

	v = callPlugin(t, r, "percentage_add", map[string]value.Value{"amount": value.Float(100), "percentage": value.Float(0.1)})
	if mustFloat(t, v) != 110 {
		t.Fatalf("percentage_add: got %v", v.Debug())
	}

	v = callPlugin(t, r, "percentage_deduct", map[string]value.Value{"amount": value.Float(200), "percentage": value.Float(0.25)})
	if mustFloat(t, v) != 150 {
		t.Fatalf("percentage_deduct: got %v", v.Debug())
	}

	v = callPlugin(t, r, "proportional_allocator", map[string]value.Value{
		"total_amount": value.Float(1000), "individual_value": value.Float(10), "total_value": value.Float(100),
	})
	if mustFloat(t, v) != 100 {
		t.Fatalf("proportional_allocator: got %v", v.Debug())
	}
}

func TestWeightedAverageCalculator(t *testing.T) {
	r := NewDefaultRegistry()
	items := value.Array([]value.Value{
		value.Object(map[string]value.Value{"value": value.Float(5), "weight": value.Float(1)}),
		value.Object(map[string]value.Value{"value": value.Float(15), "weight": value.Float(3)}),
	})
	v := callPlugin(t, r, "weighted_average", map[string]value.Value{"items": items})
	if mustFloat(t, v) != 12.5 {
		t.Fatalf("got %v", v.Debug())
	}
}

func TestThresholdAndLimitCalculators(t *testing.T) {
	r := NewDefaultRegistry()
	v := callPlugin(t, r, "threshold_check", map[string]value.Value{"value": value.Float(10), "threshold": value.Float(5)})
	if b, _ := v.AsBool(); !b {
		t.Fatalf("expected true")
	}
	v = callPlugin(t, r, "threshold_check", map[string]value.Value{"value": value.Float(3), "threshold": value.Float(5)})
	if b, _ := v.AsBool(); b {
		t.Fatalf("expected false")
	}
	v = callPlugin(t, r, "limit_validate", map[string]value.Value{"value": value.Float(150), "min": value.Float(0), "max": value.Float(100)})
	if b, _ := v.AsBool(); b {
		t.Fatalf("expected false")
	}
}

func TestTimeBetweenDatetimePlain(t *testing.T) {
	r := NewDefaultRegistry()
	v := callPlugin(t, r, "time_between_datetime", map[string]value.Value{
		"start_datetime":  value.String("2024-01-01T00:00:00Z"),
		"finish_datetime": value.String("2024-01-02T00:00:00Z"),
		"units":           value.String("hours"),
	})
	if mustFloat(t, v) != 24 {
		t.Fatalf("got %v", v.Debug())
	}
}

func TestTimeBetweenDatetimeWorkdayMidnight(t *testing.T) {
	r := NewDefaultRegistry()
	base := map[string]value.Value{
		"start_datetime":  value.String("2025-01-01T18:00:00Z"),
		"finish_datetime": value.String("2025-01-02T02:00:00Z"),
		"workday":         value.Object(map[string]value.Value{"hours": value.Int(0), "minutes": value.Int(0)}),
		"units":           value.String("hours"),
	}

	before := map[string]value.Value{}
	for k, v := range base {
		before[k] = v
	}
	before["part"] = value.String("time_before")
	v := callPlugin(t, r, "time_between_datetime", before)
	if mustFloat(t, v) != 6 {
		t.Fatalf("time_before: got %v", v.Debug())
	}

	after := map[string]value.Value{}
	for k, v := range base {
		after[k] = v
	}
	after["part"] = value.String("time_after")
	v = callPlugin(t, r, "time_between_datetime", after)
	if mustFloat(t, v) != 2 {
		t.Fatalf("time_after: got %v", v.Debug())
	}
}

func TestTimeBetweenDatetimeWorkday2230(t *testing.T) {
	r := NewDefaultRegistry()
	base := map[string]value.Value{
		"start_datetime":  value.String("2025-01-01T18:00:00Z"),
		"finish_datetime": value.String("2025-01-02T02:00:00Z"),
		"workday":         value.Object(map[string]value.Value{"hours": value.Int(22), "minutes": value.Int(30)}),
		"units":           value.String("hours"),
	}

	before := map[string]value.Value{}
	for k, v := range base {
		before[k] = v
	}
	before["part"] = value.String("time_before")
	v := callPlugin(t, r, "time_between_datetime", before)
	if mustFloat(t, v) != 4.5 {
		t.Fatalf("time_before: got %v", v.Debug())
	}

	after := map[string]value.Value{}
	for k, v := range base {
		after[k] = v
	}
	after["part"] = value.String("time_after")
	v = callPlugin(t, r, "time_between_datetime", after)
	if mustFloat(t, v) != 3.5 {
		t.Fatalf("time_after: got %v", v.Debug())
	}
}

func TestHoursBetweenDatetime(t *testing.T) {
	r := NewDefaultRegistry()
	v := callPlugin(t, r, "hours_between_datetime", map[string]value.Value{
		"start_datetime":  value.String("2025-01-01T08:00:00Z"),
		"finish_datetime": value.String("2025-01-01T17:00:00Z"),
	})
	if mustFloat(t, v) != 9 {
		t.Fatalf("got %v", v.Debug())
	}
}
