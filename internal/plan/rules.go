// Package plan decides which searches a turn needs: it merges slot updates,
// fingerprints per-domain task parameters, and rebuilds only the domains
// whose inputs actually changed.
package plan

import (
	"github.com/tripweaver/tripweaver/internal/travel"
)

// DomainRule declares how a search domain depends on slots.
//
// Deps lists every slot that feeds the domain's task parameters; a change
// to any of them invalidates the domain's fingerprint. Required lists the
// subset that must be filled before the domain can be dispatched at all.
// Prompts lists slots worth asking the user for even though the domain can
// run without them.
type DomainRule struct {
	Deps     []string
	Required []string
	Prompts  []string
}

// Rules maps each domain to its slot dependencies.
type Rules map[travel.Domain]DomainRule

// DefaultRules returns the built-in dependency table.
//
// Experiences are activated by the experience_query slot: when the user
// never asked for activities the domain is simply inactive, which is not
// the same as missing information.
func DefaultRules() Rules {
	return Rules{
		travel.DomainFlights: {
			Deps: []string{
				travel.SlotOrigin, travel.SlotDestination,
				travel.SlotStartDate, travel.SlotEndDate,
				travel.SlotBudget, travel.SlotTravelers,
			},
			Required: []string{
				travel.SlotDestination, travel.SlotStartDate, travel.SlotEndDate,
			},
			Prompts: []string{travel.SlotOrigin, travel.SlotBudget},
		},
		travel.DomainHotels: {
			Deps: []string{
				travel.SlotDestination, travel.SlotStartDate, travel.SlotEndDate,
				travel.SlotBudget, travel.SlotMaxRate, travel.SlotNeighborhood,
				travel.SlotTravelers,
			},
			Required: []string{
				travel.SlotDestination, travel.SlotStartDate, travel.SlotEndDate,
			},
		},
		travel.DomainExperiences: {
			Deps: []string{
				travel.SlotDestination, travel.SlotStartDate, travel.SlotEndDate,
				travel.SlotExperienceQuery,
			},
			Required: []string{
				travel.SlotDestination, travel.SlotStartDate, travel.SlotEndDate,
				travel.SlotExperienceQuery,
			},
		},
	}
}

// Active reports whether the domain should be considered at all for the
// given slots. Flights and hotels are always active; experiences only once
// the user has asked for activities.
func (r Rules) Active(domain travel.Domain, slots travel.Slots) bool {
	if domain == travel.DomainExperiences {
		return slots.ExperienceQuery != ""
	}
	return true
}

// dependsOn reports whether the domain's parameters include the slot.
func (r Rules) dependsOn(domain travel.Domain, slot string) bool {
	for _, dep := range r[domain].Deps {
		if dep == slot {
			return true
		}
	}
	return false
}

// missingRequired returns the required slots the domain still lacks, in
// rule order.
func (r Rules) missingRequired(domain travel.Domain, slots travel.Slots) []string {
	var missing []string
	for _, slot := range r[domain].Required {
		if !slotFilled(slot, slots) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// promptable returns prompt slots the domain would like but lacks.
func (r Rules) promptable(domain travel.Domain, slots travel.Slots) []string {
	var want []string
	for _, slot := range r[domain].Prompts {
		if !slotFilled(slot, slots) {
			want = append(want, slot)
		}
	}
	return want
}

func slotFilled(slot string, slots travel.Slots) bool {
	switch slot {
	case travel.SlotDestination:
		return slots.Destination != ""
	case travel.SlotOrigin:
		return slots.Origin != ""
	case travel.SlotStartDate:
		return slots.StartDate != nil
	case travel.SlotEndDate:
		return slots.EndDate != nil
	case travel.SlotBudget:
		return slots.Budget != nil
	case travel.SlotMaxRate:
		return slots.MaxRate != nil
	case travel.SlotTravelers:
		return slots.Travelers != nil
	case travel.SlotPreferences:
		return len(slots.Preferences) > 0
	case travel.SlotNeighborhood:
		return slots.Neighborhood != ""
	case travel.SlotExperienceQuery:
		return slots.ExperienceQuery != ""
	}
	return false
}
