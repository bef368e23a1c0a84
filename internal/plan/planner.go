package plan

import (
	"github.com/tripweaver/tripweaver/internal/travel"
)

// defaultOrigin is used for flight searches when the user has not named an
// origin yet. The search still runs; origin stays on the follow-up list.
const defaultOrigin = "anywhere"

// Plan is the outcome of planning one turn.
type Plan struct {
	// Tasks are the searches whose inputs changed and must be dispatched.
	Tasks []travel.Task
	// Reused lists active domains whose fingerprint matches the previous
	// run; their cached results are still valid.
	Reused []travel.Domain
	// Missing lists slot names worth asking the user for, in prompt order.
	Missing []string
}

// Planner builds minimal task plans from slots and previous fingerprints.
type Planner struct {
	rules Rules
}

// NewPlanner creates a planner with the given rule table. A nil table uses
// DefaultRules.
func NewPlanner(rules Rules) *Planner {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Planner{rules: rules}
}

// Rules exposes the planner's rule table.
func (p *Planner) Rules() Rules {
	return p.rules
}

// Build computes the plan for the current slots. fingerprints holds the
// per-domain fingerprints of the previously dispatched searches; a domain
// whose freshly computed fingerprint matches is reused, not re-dispatched.
func (p *Planner) Build(slots travel.Slots, fingerprints map[travel.Domain]string) Plan {
	var result Plan
	missingSet := make(map[string]bool)

	for _, domain := range []travel.Domain{
		travel.DomainFlights, travel.DomainHotels, travel.DomainExperiences,
	} {
		if !p.rules.Active(domain, slots) {
			continue
		}

		missing := p.rules.missingRequired(domain, slots)
		for _, slot := range missing {
			missingSet[slot] = true
		}
		for _, slot := range p.rules.promptable(domain, slots) {
			missingSet[slot] = true
		}
		if len(missing) > 0 {
			continue
		}

		params := p.taskParams(domain, slots)
		fp := Fingerprint(domain, params)
		if fingerprints[domain] == fp {
			result.Reused = append(result.Reused, domain)
			continue
		}
		result.Tasks = append(result.Tasks, travel.Task{
			Domain:      domain,
			Params:      params,
			Fingerprint: fp,
		})
	}

	result.Missing = orderMissing(missingSet)
	return result
}

// promptOrder ranks follow-up questions: destination first, then dates,
// then origin, then budget, then the rest.
var promptOrder = []string{
	travel.SlotDestination,
	travel.SlotStartDate,
	travel.SlotEndDate,
	travel.SlotOrigin,
	travel.SlotBudget,
	travel.SlotMaxRate,
	travel.SlotTravelers,
	travel.SlotNeighborhood,
	travel.SlotExperienceQuery,
	travel.SlotPreferences,
}

func orderMissing(set map[string]bool) []string {
	var out []string
	for _, slot := range promptOrder {
		if set[slot] {
			out = append(out, slot)
		}
	}
	return out
}

func (p *Planner) taskParams(domain travel.Domain, slots travel.Slots) map[string]interface{} {
	params := map[string]interface{}{
		"destination": slots.Destination,
		"start_date":  slots.StartDate.String(),
		"end_date":    slots.EndDate.String(),
	}

	switch domain {
	case travel.DomainFlights:
		origin := slots.Origin
		if origin == "" {
			origin = defaultOrigin
		}
		params["origin"] = origin
		params["travelers"] = slots.TravelerCount()
		if slots.Budget != nil {
			params["budget"] = *slots.Budget
		}

	case travel.DomainHotels:
		params["travelers"] = slots.TravelerCount()
		if slots.Budget != nil {
			params["budget"] = *slots.Budget
		}
		if slots.MaxRate != nil {
			params["max_rate"] = *slots.MaxRate
		}
		if slots.Neighborhood != "" {
			params["neighborhood"] = slots.Neighborhood
		}

	case travel.DomainExperiences:
		params["query"] = slots.ExperienceQuery
	}

	return params
}
