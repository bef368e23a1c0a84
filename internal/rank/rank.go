// Package rank aggregates search results into scored trip packages. Scores
// combine normalized price, item quality, and fit with the user's stated
// constraints; candidate packages can additionally be filtered with a
// user-configured expression.
package rank

import (
	"fmt"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/tripweaver/tripweaver/internal/travel"
)

// Weights control the scoring blend. They should sum to roughly 1 but the
// ranker does not enforce that; only relative magnitude matters.
type Weights struct {
	Price   float64 `json:"price" yaml:"price"`
	Quality float64 `json:"quality" yaml:"quality"`
	Fit     float64 `json:"fit" yaml:"fit"`
}

// DefaultWeights favor price over quality over fit.
func DefaultWeights() Weights {
	return Weights{Price: 0.5, Quality: 0.3, Fit: 0.2}
}

// Input is everything the ranker needs for one turn.
type Input struct {
	Slots travel.Slots
	// Items holds the usable results per domain, fresh and reused alike.
	Items map[travel.Domain][]travel.Item
	// Unavailable names domains whose search failed this turn, with a
	// human-readable reason.
	Unavailable map[travel.Domain]string
}

// Outcome is the ranked result set plus any degradation notices.
type Outcome struct {
	Packages []travel.Package
	Notices  []string
}

const defaultMaxPackages = 3

// Ranker builds and scores packages. Weights and the filter expression can
// be swapped at runtime; Rank takes a consistent snapshot per call.
type Ranker struct {
	mu          sync.RWMutex
	weights     Weights
	maxPackages int
	filter      *vm.Program
	filterSrc   string
}

// NewRanker creates a ranker with the given weights. Zero weights fall back
// to DefaultWeights.
func NewRanker(w Weights) *Ranker {
	if w == (Weights{}) {
		w = DefaultWeights()
	}
	return &Ranker{weights: w, maxPackages: defaultMaxPackages}
}

// SetWeights replaces the scoring weights.
func (r *Ranker) SetWeights(w Weights) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.weights = w
}

// Weights returns the current scoring weights.
func (r *Ranker) Weights() Weights {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.weights
}

// SetMaxPackages bounds how many packages Rank returns.
func (r *Ranker) SetMaxPackages(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n > 0 {
		r.maxPackages = n
	}
}

// SetFilter compiles and installs a package filter expression. Candidates
// for which the expression is false are dropped. An empty source clears
// the filter.
//
// The expression sees: total_price, score, flight_price, hotel_price,
// hotel_rating, stops, experiences (count).
func (r *Ranker) SetFilter(source string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if source == "" {
		r.filter, r.filterSrc = nil, ""
		return nil
	}
	program, err := expr.Compile(source, expr.Env(filterEnv{}), expr.AsBool())
	if err != nil {
		return fmt.Errorf("compile package filter %q: %w", source, err)
	}
	r.filter, r.filterSrc = program, source
	return nil
}

// filterEnv is the typed environment for filter expressions.
type filterEnv struct {
	TotalPrice  float64 `expr:"total_price"`
	Score       float64 `expr:"score"`
	FlightPrice float64 `expr:"flight_price"`
	HotelPrice  float64 `expr:"hotel_price"`
	HotelRating float64 `expr:"hotel_rating"`
	Stops       int     `expr:"stops"`
	Experiences int     `expr:"experiences"`
}

// Rank assembles up to maxPackages scored packages. Flights and hotels are
// both required; if either produced nothing the outcome carries a notice
// naming the gap instead of a partial package.
func (r *Ranker) Rank(in Input) Outcome {
	r.mu.RLock()
	weights := r.weights
	maxPackages := r.maxPackages
	filter := r.filter
	filterSrc := r.filterSrc
	r.mu.RUnlock()

	var out Outcome
	for _, domain := range travel.RequiredDomains() {
		if reason, down := in.Unavailable[domain]; down {
			out.Notices = append(out.Notices, unavailableNotice(domain, reason, len(in.Items[domain]) > 0))
		} else if len(in.Items[domain]) == 0 {
			out.Notices = append(out.Notices, fmt.Sprintf("No %s found for this trip yet.", domain))
		}
	}
	if reason, down := in.Unavailable[travel.DomainExperiences]; down {
		out.Notices = append(out.Notices, unavailableNotice(travel.DomainExperiences, reason,
			len(in.Items[travel.DomainExperiences]) > 0))
	}

	flights := in.Items[travel.DomainFlights]
	hotels := in.Items[travel.DomainHotels]
	if len(flights) == 0 || len(hotels) == 0 {
		return out
	}

	flightScores := scoreItems(flights, weights, in.Slots)
	hotelScores := scoreItems(hotels, weights, in.Slots)
	experiences := compatibleExperiences(in.Items[travel.DomainExperiences], in.Slots)

	topFlights := topN(flights, flightScores, maxPackages)
	topHotels := topN(hotels, hotelScores, maxPackages)

	var candidates []travel.Package
	for _, f := range topFlights {
		for _, h := range topHotels {
			pkg := assemble(f, h, experiences, flightScores, hotelScores, weights, in.Slots)
			if filter != nil && !passesFilter(filter, filterSrc, pkg) {
				continue
			}
			candidates = append(candidates, pkg)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].TotalPrice < candidates[j].TotalPrice
	})
	if len(candidates) > maxPackages {
		candidates = candidates[:maxPackages]
	}
	out.Packages = candidates
	return out
}

func unavailableNotice(domain travel.Domain, reason string, cached bool) string {
	if cached {
		return fmt.Sprintf("The %s search is unavailable right now (%s); showing earlier results.", domain, reason)
	}
	return fmt.Sprintf("The %s search is unavailable right now (%s); results shown without it.", domain, reason)
}

// scoreItems computes a score per item with price normalized min-max
// within the domain.
func scoreItems(items []travel.Item, w Weights, slots travel.Slots) map[string]float64 {
	minPrice, maxPrice := items[0].Price, items[0].Price
	for _, item := range items[1:] {
		if item.Price < minPrice {
			minPrice = item.Price
		}
		if item.Price > maxPrice {
			maxPrice = item.Price
		}
	}

	scores := make(map[string]float64, len(items))
	for _, item := range items {
		priceScore := 1.0
		if maxPrice > minPrice {
			priceScore = 1 - (item.Price-minPrice)/(maxPrice-minPrice)
		}
		scores[item.ID] = w.Price*priceScore + w.Quality*quality(item) + w.Fit*fit(item, slots)
	}
	return scores
}

// quality maps item attributes onto [0, 1]. Flights reward fewer stops;
// everything else uses its star rating.
func quality(item travel.Item) float64 {
	if item.Domain == travel.DomainFlights {
		return 1 / float64(1+item.Stops)
	}
	q := item.Rating / 5
	if q < 0 {
		return 0
	}
	if q > 1 {
		return 1
	}
	return q
}

// fit rewards matches against stated soft constraints.
func fit(item travel.Item, slots travel.Slots) float64 {
	switch item.Domain {
	case travel.DomainHotels:
		if slots.Neighborhood != "" {
			if item.Location == slots.Neighborhood {
				return 1
			}
			return 0
		}
		if slots.MaxRate != nil && item.Price > *slots.MaxRate*float64(nights(slots)) {
			return 0
		}
	case travel.DomainFlights:
		if slots.Budget != nil && item.Price > *slots.Budget {
			return 0
		}
	}
	return 0.5
}

func nights(slots travel.Slots) int {
	if !slots.HasDates() {
		return 1
	}
	n := int(slots.EndDate.Sub(slots.StartDate.Time).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

// compatibleExperiences keeps experiences whose availability window falls
// within the trip dates, so the scheduled slot happens while the user is
// there. A nil bound is open on that side; windowless experiences always
// qualify.
func compatibleExperiences(items []travel.Item, slots travel.Slots) []travel.Item {
	if !slots.HasDates() {
		return items
	}
	var out []travel.Item
	for _, item := range items {
		if item.WindowStart != nil && item.WindowStart.Before(slots.StartDate.Time) {
			continue
		}
		if item.WindowEnd != nil && item.WindowEnd.After(slots.EndDate.Time) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func topN(items []travel.Item, scores map[string]float64, n int) []travel.Item {
	sorted := append([]travel.Item(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if scores[sorted[i].ID] != scores[sorted[j].ID] {
			return scores[sorted[i].ID] > scores[sorted[j].ID]
		}
		return sorted[i].Price < sorted[j].Price
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func assemble(flight, hotel travel.Item, experiences []travel.Item,
	flightScores, hotelScores map[string]float64, w Weights, slots travel.Slots) travel.Package {

	f, h := flight, hotel
	pkg := travel.Package{
		ID:     travel.NewPackageID(),
		Flight: &f,
		Hotel:  &h,
	}

	total := f.Price + h.Price
	score := flightScores[f.ID] + hotelScores[h.ID]
	members := 2.0
	for _, exp := range experiences {
		exp := exp
		pkg.Experiences = append(pkg.Experiences, exp)
		total += exp.Price
		score += w.Quality * quality(exp)
		members++
	}

	pkg.TotalPrice = total
	pkg.Score = score / members
	return pkg
}

func passesFilter(program *vm.Program, source string, pkg travel.Package) bool {
	env := filterEnv{
		TotalPrice:  pkg.TotalPrice,
		Score:       pkg.Score,
		FlightPrice: pkg.Flight.Price,
		HotelPrice:  pkg.Hotel.Price,
		HotelRating: pkg.Hotel.Rating,
		Stops:       pkg.Flight.Stops,
		Experiences: len(pkg.Experiences),
	}
	result, err := expr.Run(program, env)
	if err != nil {
		// A broken filter must not hide every result.
		return true
	}
	pass, ok := result.(bool)
	return !ok || pass
}
