package plan

import (
	"fmt"
	"math"
	"strings"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// Merge applies an extracted slot update to the session slots, last write
// wins, and returns the names of slots whose value actually changed. Values
// that fail to coerce are reported as errors rather than silently dropped
// so the caller can warn the user.
func Merge(slots *travel.Slots, update travel.SlotUpdate) (changed []string, err error) {
	for _, name := range orderedSlotNames(update) {
		raw := update[name]
		if raw == nil {
			continue
		}
		didChange, cerr := applySlot(slots, name, raw)
		if cerr != nil {
			return changed, fmt.Errorf("slot %s: %w", name, cerr)
		}
		if didChange {
			changed = append(changed, name)
		}
	}
	return changed, nil
}

// orderedSlotNames iterates the update deterministically so merge results
// and error messages are stable.
func orderedSlotNames(update travel.SlotUpdate) []string {
	order := []string{
		travel.SlotDestination, travel.SlotOrigin,
		travel.SlotStartDate, travel.SlotEndDate,
		travel.SlotBudget, travel.SlotMaxRate, travel.SlotTravelers,
		travel.SlotPreferences, travel.SlotNeighborhood, travel.SlotExperienceQuery,
	}
	names := make([]string, 0, len(update))
	for _, name := range order {
		if _, ok := update[name]; ok {
			names = append(names, name)
		}
	}
	return names
}

func applySlot(slots *travel.Slots, name string, raw interface{}) (bool, error) {
	switch name {
	case travel.SlotDestination:
		return setString(&slots.Destination, raw)
	case travel.SlotOrigin:
		return setString(&slots.Origin, raw)
	case travel.SlotNeighborhood:
		return setString(&slots.Neighborhood, raw)
	case travel.SlotExperienceQuery:
		return setString(&slots.ExperienceQuery, raw)
	case travel.SlotStartDate:
		return setDate(&slots.StartDate, raw)
	case travel.SlotEndDate:
		return setDate(&slots.EndDate, raw)
	case travel.SlotBudget:
		return setFloat(&slots.Budget, raw)
	case travel.SlotMaxRate:
		return setFloat(&slots.MaxRate, raw)
	case travel.SlotTravelers:
		return setInt(&slots.Travelers, raw)
	case travel.SlotPreferences:
		return setStrings(&slots.Preferences, raw)
	}
	// Unknown slot names from the extractor are ignored, not fatal.
	return false, nil
}

func setString(dst *string, raw interface{}) (bool, error) {
	s, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("want string, got %T", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" || s == *dst {
		return false, nil
	}
	*dst = s
	return true, nil
}

func setDate(dst **travel.Date, raw interface{}) (bool, error) {
	s, ok := raw.(string)
	if !ok {
		return false, fmt.Errorf("want date string, got %T", raw)
	}
	d, err := travel.ParseDate(strings.TrimSpace(s))
	if err != nil {
		return false, err
	}
	if *dst != nil && (*dst).Equal(d) {
		return false, nil
	}
	*dst = &d
	return true, nil
}

func setFloat(dst **float64, raw interface{}) (bool, error) {
	v, err := toFloat(raw)
	if err != nil {
		return false, err
	}
	if *dst != nil && **dst == v {
		return false, nil
	}
	*dst = &v
	return true, nil
}

func setInt(dst **int, raw interface{}) (bool, error) {
	f, err := toFloat(raw)
	if err != nil {
		return false, err
	}
	if f != math.Trunc(f) {
		return false, fmt.Errorf("want whole number, got %v", f)
	}
	v := int(f)
	if *dst != nil && **dst == v {
		return false, nil
	}
	*dst = &v
	return true, nil
}

func setStrings(dst *[]string, raw interface{}) (bool, error) {
	var vals []string
	switch t := raw.(type) {
	case []string:
		vals = t
	case []interface{}:
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return false, fmt.Errorf("want string list, got %T element", item)
			}
			vals = append(vals, s)
		}
	case string:
		vals = []string{t}
	default:
		return false, fmt.Errorf("want string list, got %T", raw)
	}

	if equalStrings(*dst, vals) {
		return false, nil
	}
	*dst = vals
	return true, nil
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// toFloat accepts the numeric shapes JSON decoding produces plus plain Go
// ints from tests and rule-based extraction.
func toFloat(raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("want number, got %T", raw)
	}
}
