package simulation

import (
	"fmt"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// Standard bed capacities per facility type.
var defaultCapacities = map[string]int{
	"Role1": 20,
	"Role2": 60,
	"Role3": 200,
	"CSU":   50,
}

// Facility is a bounded bed pool with priority and routine intake queues.
type Facility struct {
	Name              string
	Capacity          int
	OverflowThreshold float64

	admitted      map[string]bool
	priorityQueue []string
	routineQueue  []string
	nextBed       int
}

// Occupancy is always the cardinality of the admitted set.
func (f *Facility) Occupancy() int { return len(f.admitted) }

// Utilization is occupancy over capacity.
func (f *Facility) Utilization() float64 {
	if f.Capacity == 0 {
		return 1
	}
	return float64(len(f.admitted)) / float64(f.Capacity)
}

// QueueLength is the total number of waiting patients.
func (f *Facility) QueueLength() int {
	return len(f.priorityQueue) + len(f.routineQueue)
}

// Has reports whether a patient is admitted here.
func (f *Facility) Has(patientID string) bool { return f.admitted[patientID] }

// AdmitResult is the tagged outcome of an admission attempt.
type AdmitResult struct {
	Admitted      bool
	BedNumber     int
	Queued        bool
	QueuePosition int
	Priority      models.TransportPriority
	Reason        string
}

// TransferResult is the tagged outcome of a transfer.
type TransferResult struct {
	Success bool
	Reason  string
	Bed     int
}

// FacilityManager owns all facilities of one orchestrator instance.
type FacilityManager struct {
	facilities map[string]*Facility
	order      []string
}

// NewFacilityManager creates the standard chain: Role1, Role2, Role3, CSU.
func NewFacilityManager() *FacilityManager {
	fm := &FacilityManager{facilities: make(map[string]*Facility)}
	for _, name := range []string{"Role1", "Role2", "Role3", "CSU"} {
		threshold := 0.85
		if name == "Role1" {
			threshold = 0.8
		} else if name == "Role3" {
			threshold = 0.9
		}
		fm.facilities[name] = &Facility{
			Name:              name,
			Capacity:          defaultCapacities[name],
			OverflowThreshold: threshold,
			admitted:          make(map[string]bool),
		}
		fm.order = append(fm.order, name)
	}
	return fm
}

// Get returns a facility by name, or nil.
func (fm *FacilityManager) Get(name string) *Facility { return fm.facilities[name] }

// Names returns facility names in creation order.
func (fm *FacilityManager) Names() []string { return append([]string(nil), fm.order...) }

// Admit places a patient in a bed, or enqueues them when the facility is
// full: priority queue for urgent, routine otherwise.
func (fm *FacilityManager) Admit(facility, patientID string, priority models.TransportPriority) AdmitResult {
	f, ok := fm.facilities[facility]
	if !ok {
		return AdmitResult{Reason: "unknown_facility"}
	}
	if f.admitted[patientID] {
		return AdmitResult{Reason: "already_admitted"}
	}
	if len(f.admitted) < f.Capacity {
		f.admitted[patientID] = true
		f.nextBed++
		return AdmitResult{Admitted: true, BedNumber: f.nextBed}
	}
	if priority == models.PriorityUrgent {
		f.priorityQueue = append(f.priorityQueue, patientID)
		return AdmitResult{Queued: true, QueuePosition: len(f.priorityQueue), Priority: models.PriorityUrgent, Reason: "facility_full"}
	}
	f.routineQueue = append(f.routineQueue, patientID)
	return AdmitResult{Queued: true, QueuePosition: len(f.priorityQueue) + len(f.routineQueue), Priority: models.PriorityRoutine, Reason: "facility_full"}
}

// Discharge frees a patient's bed. Unknown patients fail.
func (fm *FacilityManager) Discharge(facility, patientID string) error {
	f, ok := fm.facilities[facility]
	if !ok {
		return fmt.Errorf("unknown facility %q", facility)
	}
	if !f.admitted[patientID] {
		return fmt.Errorf("patient %s not admitted to %s", patientID, facility)
	}
	delete(f.admitted, patientID)
	return nil
}

// RemoveFromQueue drops a patient from a facility's intake queues, for
// deaths while waiting.
func (fm *FacilityManager) RemoveFromQueue(facility, patientID string) {
	f, ok := fm.facilities[facility]
	if !ok {
		return
	}
	f.priorityQueue = removeID(f.priorityQueue, patientID)
	f.routineQueue = removeID(f.routineQueue, patientID)
}

func removeID(queue []string, id string) []string {
	for i, q := range queue {
		if q == id {
			return append(queue[:i], queue[i+1:]...)
		}
	}
	return queue
}

// Transfer is discharge-then-admit with rollback: if the destination admit
// fails, the patient is re-admitted at the origin.
func (fm *FacilityManager) Transfer(from, to, patientID string, priority models.TransportPriority) TransferResult {
	if err := fm.Discharge(from, patientID); err != nil {
		return TransferResult{Reason: "not_admitted_at_origin"}
	}
	result := fm.Admit(to, patientID, priority)
	if !result.Admitted {
		fm.Admit(from, patientID, priority) // rollback, bed was just freed
		return TransferResult{Reason: "transfer_failed"}
	}
	return TransferResult{Success: true, Bed: result.BedNumber}
}

// ProcessQueue admits waiting patients while beds are free, priority queue
// first. Returns admitted patient IDs in admission order.
func (fm *FacilityManager) ProcessQueue(facility string) []string {
	f, ok := fm.facilities[facility]
	if !ok {
		return nil
	}
	var admitted []string
	for len(f.admitted) < f.Capacity && len(f.priorityQueue) > 0 {
		id := f.priorityQueue[0]
		f.priorityQueue = f.priorityQueue[1:]
		f.admitted[id] = true
		f.nextBed++
		admitted = append(admitted, id)
	}
	for len(f.admitted) < f.Capacity && len(f.routineQueue) > 0 {
		id := f.routineQueue[0]
		f.routineQueue = f.routineQueue[1:]
		f.admitted[id] = true
		f.nextBed++
		admitted = append(admitted, id)
	}
	return admitted
}

// CheckOverflowNeeded reports whether utilization crossed the facility's
// overflow threshold.
func (fm *FacilityManager) CheckOverflowNeeded(facility string) bool {
	f, ok := fm.facilities[facility]
	if !ok {
		return false
	}
	return f.Utilization() >= f.OverflowThreshold
}

// OverflowRecommendation returns the fixed overflow cascade for a facility.
func (fm *FacilityManager) OverflowRecommendation(facility string) []string {
	switch facility {
	case "Role1":
		return []string{"CSU", "Role2"}
	case "Role2":
		return []string{"Role3"}
	case "CSU":
		return []string{"Role2", "Role3"}
	default:
		return nil
	}
}

// AvailableBeds returns free bed count at a facility.
func (fm *FacilityManager) AvailableBeds(facility string) int {
	f, ok := fm.facilities[facility]
	if !ok {
		return 0
	}
	return f.Capacity - len(f.admitted)
}

// LocateAdmitted returns the facility holding a patient, or "".
func (fm *FacilityManager) LocateAdmitted(patientID string) string {
	for _, name := range fm.order {
		if fm.facilities[name].admitted[patientID] {
			return name
		}
	}
	return ""
}

// FacilitySnapshot is a read-only view for status reporting.
type FacilitySnapshot struct {
	Name        string  `json:"name"`
	Capacity    int     `json:"capacity"`
	Occupancy   int     `json:"occupancy"`
	Utilization float64 `json:"utilization"`
	QueueLength int     `json:"queue_length"`
}

// Snapshot captures the state of every facility.
func (fm *FacilityManager) Snapshot() []FacilitySnapshot {
	out := make([]FacilitySnapshot, 0, len(fm.order))
	for _, name := range fm.order {
		f := fm.facilities[name]
		out = append(out, FacilitySnapshot{
			Name:        name,
			Capacity:    f.Capacity,
			Occupancy:   f.Occupancy(),
			Utilization: f.Utilization(),
			QueueLength: f.QueueLength(),
		})
	}
	return out
}
