package calculator

import (
	"fmt"
	"time"

	"ruleengine/internal/value"
)

// defaultBuiltinPlugins returns the required calculator set from spec §4.3,
// grounded on bingo-calculator's built_in package (original_source) for
// exact numeric semantics.

func defaultBuiltinPlugins() []Plugin {
	return []Plugin{
		addCalculator{},
		multiplyCalculator{},
		percentageAddCalculator{},
		percentageDeductCalculator{},
		proportionalAllocatorCalculator{},
		weightedAverageCalculator{},
		thresholdCheckCalculator{},
		limitValidateCalculator{},
		timeBetweenDatetimeCalculator{},
		hoursBetweenDatetimeCalculator{},
	}
}

type addCalculator struct{}

func (addCalculator) Name() string { return "add" }
func (addCalculator) Call(in map[string]value.Value) (value.Value, error) {
	a, err := requireNumber(in, "a")
	if err != nil {
		return value.Null, err
	}
	b, err := requireNumber(in, "b")
	if err != nil {
		return value.Null, err
	}
	return value.Float(a + b), nil
}

type multiplyCalculator struct{}

func (multiplyCalculator) Name() string { return "multiply" }
func (multiplyCalculator) Call(in map[string]value.Value) (value.Value, error) {
	a, err := requireNumber(in, "a")
	if err != nil {
		return value.Null, err
	}
	b, err := requireNumber(in, "b")
	if err != nil {
		return value.Null, err
	}
	return value.Float(a * b), nil
}

type percentageAddCalculator struct{}

func (percentageAddCalculator) Name() string { return "percentage_add" }
func (percentageAddCalculator) Call(in map[string]value.Value) (value.Value, error) {
	amount, err := requireNumber(in, "amount")
	if err != nil {
		return value.Null, err
	}
	pct, err := requireNumber(in, "percentage")
	if err != nil {
		return value.Null, err
	}
	return value.Float(amount + amount*pct), nil
}

type percentageDeductCalculator struct{}

func (percentageDeductCalculator) Name() string { return "percentage_deduct" }
func (percentageDeductCalculator) Call(in map[string]value.Value) (value.Value, error) {
	amount, err := requireNumber(in, "amount")
	if err != nil {
		return value.Null, err
	}
	pct, err := requireNumber(in, "percentage")
	if err != nil {
		return value.Null, err
	}
	return value.Float(amount * (1 - pct)), nil
}

// proportionalAllocatorCalculator computes
// total_amount * (individual_value / total_value).
type proportionalAllocatorCalculator struct{}

func (proportionalAllocatorCalculator) Name() string { return "proportional_allocator" }
func (proportionalAllocatorCalculator) Call(in map[string]value.Value) (value.Value, error) {
	total, err := requireNumber(in, "total_amount")
	if err != nil {
		return value.Null, err
	}
	individual, err := requireNumber(in, "individual_value")
	if err != nil {
		return value.Null, err
	}
	totalValue, err := requireNumber(in, "total_value")
	if err != nil {
		return value.Null, err
	}
	if totalValue == 0 {
		return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: proportional_allocator total_value is zero"}
	}
	return value.Float(total * (individual / totalValue)), nil
}

// weightedAverageCalculator averages an array of {value, weight} objects.
type weightedAverageCalculator struct{}

func (weightedAverageCalculator) Name() string { return "weighted_average" }
func (weightedAverageCalculator) Call(in map[string]value.Value) (value.Value, error) {
	itemsV, err := requireField(in, "items")
	if err != nil {
		return value.Null, err
	}
	items, ok := itemsV.AsArray()
	if !ok {
		return value.Null, typeErr("calculator: weighted_average requires 'items' to be an array")
	}
	var weightedSum, weightSum float64
	for i, item := range items {
		valueField, ok := item.Field("value")
		if !ok {
			return value.Null, undefinedErr("calculator: weighted_average item %d missing 'value'", i)
		}
		weightField, ok := item.Field("weight")
		if !ok {
			return value.Null, undefinedErr("calculator: weighted_average item %d missing 'weight'", i)
		}
		v, ok := valueField.AsNumber()
		if !ok {
			return value.Null, typeErr("calculator: weighted_average item %d 'value' is not numeric", i)
		}
		w, ok := weightField.AsNumber()
		if !ok {
			return value.Null, typeErr("calculator: weighted_average item %d 'weight' is not numeric", i)
		}
		weightedSum += v * w
		weightSum += w
	}
	if weightSum == 0 {
		return value.Null, &CalcError{Kind: "division_by_zero", Message: "calculator: weighted_average total weight is zero"}
	}
	return value.Float(weightedSum / weightSum), nil
}

type thresholdCheckCalculator struct{}

func (thresholdCheckCalculator) Name() string { return "threshold_check" }
func (thresholdCheckCalculator) Call(in map[string]value.Value) (value.Value, error) {
	v, err := requireNumber(in, "value")
	if err != nil {
		return value.Null, err
	}
	threshold, err := requireNumber(in, "threshold")
	if err != nil {
		return value.Null, err
	}
	return value.Bool(v >= threshold), nil
}

type limitValidateCalculator struct{}

func (limitValidateCalculator) Name() string { return "limit_validate" }
func (limitValidateCalculator) Call(in map[string]value.Value) (value.Value, error) {
	v, err := requireNumber(in, "value")
	if err != nil {
		return value.Null, err
	}
	min, err := requireNumber(in, "min")
	if err != nil {
		return value.Null, err
	}
	max, err := requireNumber(in, "max")
	if err != nil {
		return value.Null, err
	}
	return value.Bool(v >= min && v <= max), nil
}

// hoursBetweenDatetimeCalculator is the plain finish-minus-start duration in
// hours, with no workday semantics.
type hoursBetweenDatetimeCalculator struct{}

func (hoursBetweenDatetimeCalculator) Name() string { return "hours_between_datetime" }
func (hoursBetweenDatetimeCalculator) Call(in map[string]value.Value) (value.Value, error) {
	start, finish, err := parseDatetimeRange(in)
	if err != nil {
		return value.Null, err
	}
	return value.Float(finish.Sub(start).Hours()), nil
}

// timeBetweenDatetimeCalculator implements spec §9's resolved open question:
// with no workday/part, it returns the plain duration in the requested
// units. With a workday time-of-day and a part ("time_before"/"time_after"),
// it locates the occurrence of that time-of-day within [start, finish] and
// returns the duration before or after that boundary instant.
type timeBetweenDatetimeCalculator struct{}

func (timeBetweenDatetimeCalculator) Name() string { return "time_between_datetime" }
func (timeBetweenDatetimeCalculator) Call(in map[string]value.Value) (value.Value, error) {
	start, finish, err := parseDatetimeRange(in)
	if err != nil {
		return value.Null, err
	}
	units := "hours"
	if u, ok := in["units"]; ok {
		s, ok := u.AsString()
		if !ok {
			return value.Null, typeErr("calculator: time_between_datetime 'units' must be a string")
		}
		units = s
	}

	workdayV, hasWorkday := in["workday"]
	partV, hasPart := in["part"]
	if !hasWorkday || !hasPart {
		return durationIn(finish.Sub(start), units)
	}

	part, ok := partV.AsString()
	if !ok {
		return value.Null, typeErr("calculator: time_between_datetime 'part' must be a string")
	}
	hour, minute, err := parseWorkday(workdayV)
	if err != nil {
		return value.Null, err
	}

	boundary := time.Date(start.Year(), start.Month(), start.Day(), hour, minute, 0, 0, time.UTC)
	if boundary.Before(start) {
		boundary = boundary.AddDate(0, 0, 1)
	}

	switch part {
	case "time_before":
		return durationIn(boundary.Sub(start), units)
	case "time_after":
		return durationIn(finish.Sub(boundary), units)
	default:
		return value.Null, &CalcError{Kind: "range", Message: fmt.Sprintf("calculator: time_between_datetime unknown part %q", part)}
	}
}

func parseDatetimeRange(in map[string]value.Value) (start, finish time.Time, err error) {
	startV, err := requireField(in, "start_datetime")
	if err != nil {
		return
	}
	finishV, err := requireField(in, "finish_datetime")
	if err != nil {
		return
	}
	start, err = asDatetime(startV)
	if err != nil {
		return
	}
	finish, err = asDatetime(finishV)
	return
}

func asDatetime(v value.Value) (time.Time, error) {
	if t, ok := v.AsDate(); ok {
		return t, nil
	}
	if s, ok := v.AsString(); ok {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, typeErr("calculator: invalid datetime %q: %v", s, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, typeErr("calculator: expected a date or RFC3339 string, got %s", v.TypeName())
}

// parseWorkday reads {hours, minutes} off an Object value.
func parseWorkday(v value.Value) (hour, minute int, err error) {
	obj, ok := v.AsObject()
	if !ok {
		return 0, 0, typeErr("calculator: 'workday' must be an object with 'hours' and 'minutes'")
	}
	h, ok := obj["hours"]
	if !ok {
		return 0, 0, undefinedErr("calculator: 'workday' missing 'hours'")
	}
	m, ok := obj["minutes"]
	if !ok {
		return 0, 0, undefinedErr("calculator: 'workday' missing 'minutes'")
	}
	hf, ok := h.AsNumber()
	if !ok {
		return 0, 0, typeErr("calculator: 'workday.hours' must be numeric")
	}
	mf, ok := m.AsNumber()
	if !ok {
		return 0, 0, typeErr("calculator: 'workday.minutes' must be numeric")
	}
	return int(hf), int(mf), nil
}

func durationIn(d time.Duration, units string) (value.Value, error) {
	switch units {
	case "hours":
		return value.Float(d.Hours()), nil
	case "minutes":
		return value.Float(d.Minutes()), nil
	case "seconds":
		return value.Float(d.Seconds()), nil
	case "days":
		return value.Float(d.Hours() / 24), nil
	default:
		return value.Null, &CalcError{Kind: "range", Message: fmt.Sprintf("calculator: unknown units %q", units)}
	}
}
