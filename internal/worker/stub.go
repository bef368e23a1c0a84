package worker

import (
	"context"
	"fmt"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// StubWorker returns canned results so the orchestrator can run end to end
// without real search backends. Useful for demos and local development.
type StubWorker struct {
	domain travel.Domain
}

// NewStubWorker creates a stub for one domain.
func NewStubWorker(domain travel.Domain) *StubWorker {
	return &StubWorker{domain: domain}
}

// Search returns deterministic sample items keyed off the task params.
func (s *StubWorker) Search(_ context.Context, task travel.Task) ([]travel.Item, error) {
	dest, _ := task.Params["destination"].(string)
	if dest == "" {
		dest = "your destination"
	}

	switch s.domain {
	case travel.DomainFlights:
		return []travel.Item{
			{ID: "fl_1", Domain: s.domain, Name: fmt.Sprintf("Nonstop to %s", dest), Price: 420, Currency: "USD", Stops: 0, Duration: "5h 10m"},
			{ID: "fl_2", Domain: s.domain, Name: fmt.Sprintf("One stop to %s", dest), Price: 310, Currency: "USD", Stops: 1, Duration: "8h 45m"},
			{ID: "fl_3", Domain: s.domain, Name: fmt.Sprintf("Red-eye to %s", dest), Price: 265, Currency: "USD", Stops: 1, Duration: "9h 30m"},
		}, nil
	case travel.DomainHotels:
		return []travel.Item{
			{ID: "ho_1", Domain: s.domain, Name: "Harborview Hotel", Price: 180, Currency: "USD", Rating: 4.5, Location: dest},
			{ID: "ho_2", Domain: s.domain, Name: "Midtown Suites", Price: 140, Currency: "USD", Rating: 4.1, Location: dest},
			{ID: "ho_3", Domain: s.domain, Name: "The Pennypincher Inn", Price: 95, Currency: "USD", Rating: 3.6, Location: dest},
		}, nil
	case travel.DomainExperiences:
		return []travel.Item{
			{ID: "ex_1", Domain: s.domain, Name: "Guided food tour", Price: 75, Currency: "USD", Rating: 4.8, Location: dest},
			{ID: "ex_2", Domain: s.domain, Name: "Old town walking tour", Price: 30, Currency: "USD", Rating: 4.4, Location: dest},
		}, nil
	default:
		return nil, nil
	}
}
