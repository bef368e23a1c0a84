// Package travel defines the core domain types for the TripWeaver orchestrator.
package travel

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// Domain identifies a category of search task.
type Domain string

const (
	DomainFlights     Domain = "flights"
	DomainHotels      Domain = "hotels"
	DomainExperiences Domain = "experiences"
)

// RequiredDomains returns the domains a package cannot be assembled
// without. Each call returns a fresh slice.
func RequiredDomains() []Domain {
	return []Domain{DomainFlights, DomainHotels}
}

// Slot names recognized by the slot merger. The NLU oracle may emit any
// subset of these keys; unknown keys are discarded at merge time.
const (
	SlotDestination     = "destination"
	SlotOrigin          = "origin"
	SlotStartDate       = "start_date"
	SlotEndDate         = "end_date"
	SlotBudget          = "budget"
	SlotMaxRate         = "max_rate"
	SlotTravelers       = "travelers"
	SlotPreferences     = "preferences"
	SlotNeighborhood    = "neighborhood"
	SlotExperienceQuery = "experience_query"
)

// SlotUpdate is a partial slot mapping produced by the NLU oracle for one
// message. Only keys present in the map are applied; an empty update means
// the message carried no recognizable trip intent.
type SlotUpdate map[string]interface{}

// Slots holds the trip intent accumulated across a conversation. Fields are
// nil/zero until the user provides them.
type Slots struct {
	Destination     string   `json:"destination,omitempty"`
	Origin          string   `json:"origin,omitempty"`
	StartDate       *Date    `json:"start_date,omitempty"`
	EndDate         *Date    `json:"end_date,omitempty"`
	Budget          *float64 `json:"budget,omitempty"`
	MaxRate         *float64 `json:"max_rate,omitempty"`
	Travelers       *int     `json:"travelers,omitempty"`
	Preferences     []string `json:"preferences,omitempty"`
	Neighborhood    string   `json:"neighborhood,omitempty"`
	ExperienceQuery string   `json:"experience_query,omitempty"`
}

// TravelerCount returns the number of travelers, defaulting to 1 when the
// user never said.
func (s Slots) TravelerCount() int {
	if s.Travelers == nil || *s.Travelers < 1 {
		return 1
	}
	return *s.Travelers
}

// HasDates reports whether both trip dates are known.
func (s Slots) HasDates() bool {
	return s.StartDate != nil && s.EndDate != nil
}

// Task is a unit of search work for one domain, created fresh each turn by
// the planner. Only its fingerprint and its domain's result survive the turn.
type Task struct {
	Domain      Domain                 `json:"domain"`
	Params      map[string]interface{} `json:"params"`
	Fingerprint string                 `json:"fingerprint"`
}

// Item is one result row returned by a search worker. The shape is shared
// across domains; fields that do not apply are left zero.
type Item struct {
	ID       string  `json:"id"`
	Domain   Domain  `json:"domain"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Currency string  `json:"currency,omitempty"`
	Rating   float64 `json:"rating,omitempty"`
	Stops    int     `json:"stops,omitempty"`
	Location string  `json:"location,omitempty"`
	Start    string  `json:"start,omitempty"`
	End      string  `json:"end,omitempty"`
	Duration string  `json:"duration,omitempty"`
	Link     string  `json:"link,omitempty"`

	// Availability window, used by experiences to check trip-date fit.
	WindowStart *Date `json:"window_start,omitempty"`
	WindowEnd   *Date `json:"window_end,omitempty"`
}

// Package is one ranked bundle of results: a flight, a hotel, and zero or
// more experiences. Packages are a derived view recomputed every turn.
type Package struct {
	ID          string  `json:"id"`
	Flight      *Item   `json:"flight,omitempty"`
	Hotel       *Item   `json:"hotel,omitempty"`
	Experiences []Item  `json:"experiences,omitempty"`
	TotalPrice  float64 `json:"total_price"`
	Score       float64 `json:"score"`
}

// NewPackageID returns a lexicographically sortable unique package ID.
func NewPackageID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}
