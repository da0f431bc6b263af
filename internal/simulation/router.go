package simulation

import (
	"sort"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// triagePreferences orders destination facilities per category.
var triagePreferences = map[models.TriageCategory][]string{
	models.TriageImmediate: {"Role2", "Role3"},
	models.TriageDelayed:   {"Role1", "CSU", "Role2"},
	models.TriageMinimal:   {"Role1", "CSU"},
	models.TriageExpectant: {"Role1"},
}

// RouteConstraints bounds destination selection.
type RouteConstraints struct {
	Origin              string
	MaxTransportMinutes float64 // 0 means unconstrained
}

// RouteResult is the tagged outcome of a routing decision.
type RouteResult struct {
	RoutedTo string                   `json:"routed_to"`
	Admitted bool                     `json:"admitted"`
	Bed      int                      `json:"bed,omitempty"`
	Queued   bool                     `json:"queued"`
	Priority models.TransportPriority `json:"priority"`
	Reason   string                   `json:"reason,omitempty"`
}

// OverflowRouter selects a destination facility per triage preference,
// capacity, load balance, and transport budget.
type OverflowRouter struct {
	fm     *FacilityManager
	routes *RouteTable
}

// NewOverflowRouter builds a router over the facility manager and the
// transport route table.
func NewOverflowRouter(fm *FacilityManager, routes *RouteTable) *OverflowRouter {
	return &OverflowRouter{fm: fm, routes: routes}
}

// RoutePatient chooses a facility and admits (or enqueues) the patient:
//  1. The first triage preference wins if it has beds, a short queue, and
//     fits the transport budget.
//  2. Otherwise the lowest-utilization viable facility wins.
//  3. If everything is full, the patient queues at the first preference.
func (r *OverflowRouter) RoutePatient(patientID string, triage models.TriageCategory, priority models.TransportPriority, constraints RouteConstraints) RouteResult {
	if priority == "" {
		priority = models.PriorityRoutine
		if triage == models.TriageImmediate {
			priority = models.PriorityUrgent
		}
	}

	prefs := triagePreferences[triage]
	if len(prefs) == 0 {
		prefs = []string{"Role1"}
	}

	first := prefs[0]
	if f := r.fm.Get(first); f != nil {
		if r.fm.AvailableBeds(first) > 0 && f.QueueLength() < 5 && r.withinBudget(constraints, first) {
			res := r.fm.Admit(first, patientID, priority)
			if res.Admitted {
				return RouteResult{RoutedTo: first, Admitted: true, Bed: res.BedNumber, Priority: priority}
			}
		}
	}

	// Load-balance pass over the whole chain.
	var best string
	bestUtil := 2.0
	for _, name := range []string{"Role1", "CSU", "Role2", "Role3"} {
		f := r.fm.Get(name)
		if f == nil || r.fm.AvailableBeds(name) == 0 {
			continue
		}
		if f.QueueLength() > 10 {
			continue
		}
		if !r.withinBudget(constraints, name) {
			continue
		}
		if u := f.Utilization(); u < bestUtil {
			bestUtil, best = u, name
		}
	}
	if best != "" {
		res := r.fm.Admit(best, patientID, priority)
		if res.Admitted {
			return RouteResult{RoutedTo: best, Admitted: true, Bed: res.BedNumber, Priority: priority}
		}
	}

	res := r.fm.Admit(first, patientID, priority)
	return RouteResult{
		RoutedTo: first,
		Queued:   res.Queued,
		Priority: priority,
		Reason:   "all_facilities_full",
	}
}

func (r *OverflowRouter) withinBudget(c RouteConstraints, destination string) bool {
	if c.MaxTransportMinutes <= 0 || c.Origin == "" || r.routes == nil {
		return true
	}
	return r.routes.Duration(c.Origin, destination) <= c.MaxTransportMinutes
}

// RouteMassCasualty routes a batch, most urgent category first; T1 patients
// enter with urgent priority.
func (r *OverflowRouter) RouteMassCasualty(patients []*models.Patient, constraints RouteConstraints) map[string]RouteResult {
	sorted := make([]*models.Patient, len(patients))
	copy(sorted, patients)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Triage.Priority() < sorted[j].Triage.Priority()
	})

	results := make(map[string]RouteResult, len(sorted))
	for _, p := range sorted {
		priority := models.PriorityRoutine
		if p.Triage == models.TriageImmediate {
			priority = models.PriorityUrgent
		}
		results[p.ID] = r.RoutePatient(p.ID, p.Triage, priority, constraints)
	}
	return results
}
