package orchestrator

import (
	"fmt"
	"strings"

	"github.com/tripweaver/tripweaver/internal/plan"
	"github.com/tripweaver/tripweaver/internal/rank"
	"github.com/tripweaver/tripweaver/internal/travel"
)

// slotQuestions phrases the follow-up for each missing slot.
var slotQuestions = map[string]string{
	travel.SlotDestination:     "Where would you like to go?",
	travel.SlotStartDate:       "When are you planning to travel?",
	travel.SlotEndDate:         "When would you like to come back?",
	travel.SlotOrigin:          "Where will you be flying from?",
	travel.SlotBudget:          "Do you have a total budget in mind?",
	travel.SlotMaxRate:         "Is there a nightly rate you'd like to stay under?",
	travel.SlotTravelers:       "How many people are traveling?",
	travel.SlotNeighborhood:    "Any neighborhood you'd prefer to stay in?",
	travel.SlotExperienceQuery: "What kind of activities are you interested in?",
}

func composeMessage(slots travel.Slots, p plan.Plan, outcome rank.Outcome, degraded bool) string {
	var b strings.Builder

	switch {
	case len(outcome.Packages) > 0:
		fmt.Fprintf(&b, "Here are the top %d trip options for %s:\n",
			len(outcome.Packages), slots.Destination)
		for i, pkg := range outcome.Packages {
			b.WriteString(packageLine(i+1, pkg))
		}
	case len(p.Tasks) > 0 || len(p.Reused) > 0:
		if degraded {
			b.WriteString("I ran into trouble searching just now.\n")
		} else {
			fmt.Fprintf(&b, "I searched for your trip to %s but couldn't put together a full package yet.\n",
				slots.Destination)
		}
	default:
		b.WriteString("Happy to help plan your trip!\n")
	}

	for _, notice := range outcome.Notices {
		b.WriteString(notice)
		b.WriteString("\n")
	}

	if questions := followUps(p.Missing); questions != "" {
		b.WriteString(questions)
		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}

func packageLine(n int, pkg travel.Package) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d. %s + %s", n, pkg.Flight.Name, pkg.Hotel.Name)
	for _, exp := range pkg.Experiences {
		fmt.Fprintf(&b, " + %s", exp.Name)
	}
	fmt.Fprintf(&b, " ($%.0f total)\n", pkg.TotalPrice)
	return b.String()
}

func followUps(missing []string) string {
	var questions []string
	for _, slot := range missing {
		if q, ok := slotQuestions[slot]; ok {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return ""
	}
	return strings.Join(questions, " ")
}
