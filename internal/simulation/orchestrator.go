package simulation

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// In-transit mortality draw by risk band, applied on top of deterioration.
var transitMortality = map[models.DeteriorationRisk]float64{
	models.RiskHigh:     0.15,
	models.RiskModerate: 0.05,
	models.RiskLow:      0.005,
}

// SystemStatus is a point-in-time snapshot of one simulation run.
type SystemStatus struct {
	Clock              time.Time                   `json:"clock"`
	TotalPatients      int                         `json:"total_patients"`
	ByState            map[models.PatientState]int `json:"patients_by_state"`
	Facilities         []FacilitySnapshot          `json:"facilities"`
	Transport          TransportStats              `json:"transport"`
	Deaths             DeathStatistics             `json:"deaths"`
	BatchMetrics       BatchMetrics                `json:"csu_batches"`
	DiagnosticAccuracy float64                     `json:"diagnostic_accuracy"`
}

// Orchestrator owns the logical clock and the patient map, and drives every
// simulation component. One instance per cohort; not safe for concurrent
// use. The outer job layer gives each run its own instance.
type Orchestrator struct {
	cat *Catalog
	rng *rand.Rand

	clock     time.Time
	startedAt time.Time

	patients map[string]*models.Patient

	det        *DeteriorationCalculator
	health     *HealthEngine
	triage     *TriageMapper
	protocols  *ProtocolCatalog
	selector   *TreatmentSelector
	facilities *FacilityManager
	router     *OverflowRouter
	transport  *TransportScheduler
	csu        *BatchCoordinator
	deaths     *DeathTracker
	diagnostic *DiagnosticEngine

	environment []string
}

// NewOrchestrator wires all components around a shared catalog, seed, and
// base instant.
func NewOrchestrator(cat *Catalog, seed int64, baseDate time.Time) *Orchestrator {
	if cat == nil {
		cat = DefaultCatalog()
	}
	if baseDate.IsZero() {
		baseDate = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	}
	rng := rand.New(rand.NewSource(seed))

	o := &Orchestrator{
		cat:       cat,
		rng:       rng,
		clock:     baseDate,
		startedAt: baseDate,
		patients:  make(map[string]*models.Patient),
	}
	o.det = NewDeteriorationCalculator(cat)
	o.health = NewHealthEngine(cat, o.det, rng)
	o.triage = &TriageMapper{}
	o.protocols = NewProtocolCatalog(cat)
	o.selector = NewTreatmentSelector(cat, o.protocols, rng)
	o.facilities = NewFacilityManager()
	o.transport = NewTransportScheduler(0, 0, 0, NewRouteTable(), o.Now)
	o.router = NewOverflowRouter(o.facilities, o.transport.Routes())
	o.csu = NewBatchCoordinator(o.facilities, 0, 0, o.Now)
	o.deaths = NewDeathTracker()
	o.diagnostic = NewDiagnosticEngine(cat, rng)
	return o
}

// Now returns the current logical time.
func (o *Orchestrator) Now() time.Time { return o.clock }

// SetEnvironment sets the active environmental conditions for the run.
func (o *Orchestrator) SetEnvironment(conditions []string) {
	o.environment = append([]string(nil), conditions...)
}

// SetMassCasualty toggles conservative mass-casualty triage.
func (o *Orchestrator) SetMassCasualty(active bool) { o.triage.MassCasualty = active }

// Facilities exposes the facility manager for coordinated reads.
func (o *Orchestrator) Facilities() *FacilityManager { return o.facilities }

// Transportation exposes the transport scheduler.
func (o *Orchestrator) Transportation() *TransportScheduler { return o.transport }

// CSU exposes the batch coordinator.
func (o *Orchestrator) CSU() *BatchCoordinator { return o.csu }

// Deaths exposes the death tracker.
func (o *Orchestrator) Deaths() *DeathTracker { return o.deaths }

// Diagnostics exposes the diagnostic engine.
func (o *Orchestrator) Diagnostics() *DiagnosticEngine { return o.diagnostic }

// Selector exposes the treatment utility model.
func (o *Orchestrator) Selector() *TreatmentSelector { return o.selector }

// Patient returns a patient by ID.
func (o *Orchestrator) Patient(id string) (*models.Patient, bool) {
	p, ok := o.patients[id]
	return p, ok
}

// PatientIDs returns a sorted snapshot of patient IDs.
func (o *Orchestrator) PatientIDs() []string {
	ids := make([]string, 0, len(o.patients))
	for id := range o.patients {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Patients returns all patients, sorted by ID.
func (o *Orchestrator) Patients() []*models.Patient {
	ids := o.PatientIDs()
	out := make([]*models.Patient, 0, len(ids))
	for _, id := range ids {
		out = append(out, o.patients[id])
	}
	return out
}

// InitializePatient materializes a patient at a location (normally POI) with
// sampled initial health.
func (o *Orchestrator) InitializePatient(id string, injury models.InjuryType, severity int, location, trueCondition string, triageOverride models.TriageCategory, bodyPart string) (*models.Patient, error) {
	if _, exists := o.patients[id]; exists {
		return nil, fmt.Errorf("patient %s already exists", id)
	}
	if severity < 1 {
		severity = 1
	}
	if severity > 10 {
		severity = 10
	}
	if location == "" {
		location = "POI"
	}

	initial := o.health.InitialHealth(injury, severity, trueCondition)
	p := &models.Patient{
		ID:            id,
		InjuryType:    injury,
		Severity:      severity,
		Band:          models.BandForSeverity(severity),
		BodyPart:      bodyPart,
		TrueCondition: trueCondition,
		InitialHealth: initial,
		CurrentHealth: initial,
		State:         models.StateAtPOI,
		Location:      location,
		InjuredAt:     o.clock,
	}
	if triageOverride != "" {
		p.Triage = triageOverride
	}
	p.AddEvent(o.clock, "injury", location, map[string]interface{}{
		"injury_type": string(injury),
		"severity":    severity,
		"health":      initial,
	})
	o.patients[id] = p
	return p, nil
}

// ProcessTriage categorizes a patient and routes them to a facility.
// Returns the category and the routed destination.
func (o *Orchestrator) ProcessTriage(id string) (models.TriageCategory, string, error) {
	p, ok := o.patients[id]
	if !ok {
		return "", "", fmt.Errorf("unknown patient %s", id)
	}
	if p.State.Terminal() {
		return p.Triage, "", fmt.Errorf("patient %s is %s", id, p.State)
	}

	if p.Triage == "" {
		tags := []string{p.BodyPart}
		if o.protocols.Entry(p.TrueCondition) != nil {
			tags = append(tags, o.protocols.Entry(p.TrueCondition).Categories...)
		}
		p.Triage = o.triage.Categorize(p.CurrentHealth, tags, p.Band)
	}
	p.State = models.StateInTriage
	p.AddEvent(o.clock, "triage", p.Location, map[string]interface{}{
		"category": string(p.Triage),
		"health":   p.CurrentHealth,
	})

	priority := models.PriorityRoutine
	if p.Triage == models.TriageImmediate {
		priority = models.PriorityUrgent
	}
	route := o.router.RoutePatient(id, p.Triage, priority, RouteConstraints{Origin: p.Location})
	p.Destination = route.RoutedTo

	if route.Admitted {
		// Routed direct into a bed: undo the provisional admission and move
		// the patient by transport instead, so beds are held on arrival.
		o.facilities.Discharge(route.RoutedTo, id)
	}
	if route.Queued {
		p.State = models.StateInQueue
		p.AddEvent(o.clock, "queued", route.RoutedTo, map[string]interface{}{"reason": route.Reason})
		return p.Triage, route.RoutedTo, nil
	}

	if _, err := o.Transport(id, route.RoutedTo); err != nil {
		return p.Triage, route.RoutedTo, err
	}
	return p.Triage, route.RoutedTo, nil
}

// ApplyTreatment applies a list of treatments at the patient's current
// facility and returns the resulting health.
func (o *Orchestrator) ApplyTreatment(id string, treatments []string) (float64, error) {
	p, ok := o.patients[id]
	if !ok {
		return 0, fmt.Errorf("unknown patient %s", id)
	}
	if p.State.Terminal() {
		return p.CurrentHealth, fmt.Errorf("patient %s is %s", id, p.State)
	}

	for _, name := range treatments {
		if p.TrueCondition != "" && o.protocols.Contraindicated(p.TrueCondition, name) {
			continue
		}
		before, after := o.health.ApplyTreatmentEffect(p, name)
		p.Treatments = append(p.Treatments, models.AppliedTreatment{
			Name:         name,
			AppliedAt:    o.clock,
			Facility:     p.Location,
			HealthBefore: before,
			HealthAfter:  after,
		})
		p.AddEvent(o.clock, "treatment_applied", p.Location, map[string]interface{}{
			"treatment":     name,
			"health_before": before,
			"health_after":  after,
		})
	}
	return p.CurrentHealth, nil
}

// SelectAndTreat runs the utility model for the patient's diagnosed (or
// true) condition and applies the chosen treatments.
func (o *Orchestrator) SelectAndTreat(id string, maxTreatments int, resources map[string]float64) ([]ScoredTreatment, error) {
	p, ok := o.patients[id]
	if !ok {
		return nil, fmt.Errorf("unknown patient %s", id)
	}
	code := p.TrueCondition
	if d := p.LatestDiagnosis(); d != nil && d.DiagnosedCode != "" {
		code = d.DiagnosedCode
	}
	elapsed := o.clock.Sub(p.InjuredAt).Minutes()
	chosen := o.selector.Select(code, p.Band, p.Location, elapsed, resources, maxTreatments)
	if len(chosen) == 0 {
		return nil, nil
	}
	names := make([]string, len(chosen))
	for i, c := range chosen {
		names[i] = c.Name
	}
	if _, err := o.ApplyTreatment(id, names); err != nil {
		return nil, err
	}
	return chosen, nil
}

// Deteriorate applies sub-hour deterioration and handles death.
func (o *Orchestrator) Deteriorate(id string, minutes float64) error {
	p, ok := o.patients[id]
	if !ok {
		return fmt.Errorf("unknown patient %s", id)
	}
	if p.State.Terminal() || p.State == models.StateEvacuated {
		return nil
	}
	elapsed := o.clock.Sub(p.InjuredAt).Minutes()
	o.health.Deteriorate(p, minutes, elapsed, o.environment)
	if p.CurrentHealth <= 0 {
		o.handleDeath(p, "deterioration")
	}
	return nil
}

// Recover adds health at Role2 and above.
func (o *Orchestrator) Recover(id string, minutes, ratePerHour float64) error {
	p, ok := o.patients[id]
	if !ok {
		return fmt.Errorf("unknown patient %s", id)
	}
	if p.State.Terminal() {
		return nil
	}
	switch p.Location {
	case "Role2", "Role3", "Role4":
		o.health.Recover(p, minutes, ratePerHour)
	}
	return nil
}

// Discharge returns a fully recovered, treated patient to duty. This is the
// only RTD path; bulk deterioration never discharges.
func (o *Orchestrator) Discharge(id string) error {
	p, ok := o.patients[id]
	if !ok {
		return fmt.Errorf("unknown patient %s", id)
	}
	if p.State != models.StateInTreatment {
		return fmt.Errorf("patient %s not in treatment", id)
	}
	if p.CurrentHealth < 100 || len(p.Treatments) == 0 {
		return fmt.Errorf("patient %s not eligible for discharge", id)
	}
	o.facilities.Discharge(p.Location, id)
	p.State = models.StateDischarged
	p.AddEvent(o.clock, "discharged_rtd", p.Location, nil)
	return nil
}

// Transport schedules a mission to the destination and marks the patient in
// transit. Returns the mission ID (the mission may be queued).
func (o *Orchestrator) Transport(id, destination string) (string, error) {
	p, ok := o.patients[id]
	if !ok {
		return "", fmt.Errorf("unknown patient %s", id)
	}
	if p.State.Terminal() {
		return "", fmt.Errorf("patient %s is %s", id, p.State)
	}

	priority := models.PriorityRoutine
	if p.Triage == models.TriageImmediate {
		priority = models.PriorityUrgent
	}
	// Leaving a facility frees its bed.
	if loc := o.facilities.LocateAdmitted(id); loc != "" {
		o.facilities.Discharge(loc, id)
	}

	mission := o.transport.Schedule(id, p.Location, destination, priority, p.CurrentHealth)
	p.TransportID = mission.ID
	p.Destination = destination

	if mission.Status == models.MissionQueued {
		p.State = models.StateInQueue
		p.AddEvent(o.clock, "transport_queued", p.Location, map[string]interface{}{
			"mission_id":     mission.ID,
			"queue_position": mission.QueuePosition,
		})
		return mission.ID, nil
	}

	p.State = models.StateInTransport
	p.Location = models.LocationInTransit
	p.AddEvent(o.clock, "transport_started", models.LocationInTransit, map[string]interface{}{
		"mission_id":  mission.ID,
		"destination": destination,
		"vehicle":     string(mission.Vehicle),
		"risk":        string(mission.Risk),
	})
	return mission.ID, nil
}

// CompleteTransport finishes a patient's active mission. The patient
// deteriorates for the trip duration and may die in transit; survivors are
// admitted, or re-routed when the destination filled up en route.
func (o *Orchestrator) CompleteTransport(id string) (bool, error) {
	p, ok := o.patients[id]
	if !ok {
		return false, fmt.Errorf("unknown patient %s", id)
	}
	if p.TransportID == "" {
		return false, fmt.Errorf("patient %s has no active transport", id)
	}
	mission := o.transport.Get(p.TransportID)
	if mission == nil {
		p.TransportID = ""
		return false, fmt.Errorf("mission not active for patient %s", id)
	}

	destination := mission.Destination
	elapsed := o.clock.Sub(p.InjuredAt).Minutes()
	o.health.Deteriorate(p, mission.DurationMinutes, elapsed, o.environment)

	died := p.CurrentHealth <= 0
	if !died && o.rng.Float64() < transitMortality[mission.Risk] {
		died = true
		p.CurrentHealth = 0
	}

	if died {
		o.transport.Complete(mission.ID, "died_in_transit")
		p.TransportID = ""
		o.handleDeath(p, "died_in_transit")
		return false, nil
	}

	o.transport.Complete(mission.ID, "delivered")
	p.TransportID = ""

	priority := models.PriorityRoutine
	if p.Triage == models.TriageImmediate {
		priority = models.PriorityUrgent
	}
	admit := o.facilities.Admit(destination, id, priority)
	if admit.Admitted {
		o.arrive(p, destination)
		return true, nil
	}

	// The refused admit parked the patient in the destination queue. Pull
	// them back out while deciding, so a re-route never leaves a stale
	// queue entry behind.
	o.facilities.RemoveFromQueue(destination, id)

	// Destination filled while in transit: ask the router for overflow and
	// push onward.
	for _, alt := range o.facilities.OverflowRecommendation(destination) {
		if o.facilities.AvailableBeds(alt) > 0 {
			p.Location = destination
			if _, err := o.Transport(id, alt); err == nil {
				return true, nil
			}
		}
	}

	// Nowhere to go: wait in the destination queue.
	o.facilities.Admit(destination, id, priority)
	p.State = models.StateInQueue
	p.Location = destination
	p.AddEvent(o.clock, "queued", destination, map[string]interface{}{"reason": "facility_full"})
	return true, nil
}

// arrive finalizes admission at a facility: state, diagnosis refresh, CSU
// batching.
func (o *Orchestrator) arrive(p *models.Patient, facility string) {
	p.Location = facility
	p.Destination = ""
	p.State = models.StateInTreatment
	p.AddEvent(o.clock, "facility_arrival", facility, map[string]interface{}{
		"health": p.CurrentHealth,
	})

	if p.TrueCondition != "" {
		o.diagnostic.OnProgression(p, facility, o.environment, o.clock)
	}
	if facility == "CSU" {
		o.csu.Add(p.ID, p.Triage)
	}
}

// ProcessQueues drains every facility's intake queue into freed beds and
// finalizes arrival for each admitted patient. Returns the admitted IDs.
func (o *Orchestrator) ProcessQueues() []string {
	var admitted []string
	for _, name := range o.facilities.Names() {
		for _, id := range o.facilities.ProcessQueue(name) {
			admitted = append(admitted, id)
			if p, ok := o.patients[id]; ok && !p.State.Terminal() {
				o.arrive(p, name)
			}
		}
	}
	return admitted
}

// EvacuateToCSU moves a set of patients into the staging unit as one
// movement. Patients that cannot be admitted stay where they are.
func (o *Orchestrator) EvacuateToCSU(ids []string) bool {
	allMoved := true
	for _, id := range ids {
		p, ok := o.patients[id]
		if !ok || p.State.Terminal() {
			allMoved = false
			continue
		}
		if loc := o.facilities.LocateAdmitted(id); loc != "" {
			o.facilities.Discharge(loc, id)
		}
		admit := o.facilities.Admit("CSU", id, models.PriorityRoutine)
		if !admit.Admitted {
			allMoved = false
			continue
		}
		o.arrive(p, "CSU")
	}
	return allMoved
}

// ReleaseCSUBatch executes the staged batch transfer and schedules the bus.
func (o *Orchestrator) ReleaseCSUBatch(force bool) ExecuteResult {
	plan := o.csu.PrepareTransfer()
	result := o.csu.Execute(plan.Destination, force)
	if !result.Success {
		return result
	}
	if plan.TransportRequired && len(plan.PatientIDs) > 0 {
		for start := 0; start < len(plan.PatientIDs); start += maxBusBatch {
			end := start + maxBusBatch
			if end > len(plan.PatientIDs) {
				end = len(plan.PatientIDs)
			}
			mission, err := o.transport.ScheduleBatch(plan.PatientIDs[start:end], "CSU", plan.Destination)
			if err != nil {
				result.Reason = "bus_unavailable"
				continue
			}
			// The facility transfer already happened in Execute, so the
			// movement is instantaneous and the bus goes straight back.
			o.transport.Complete(mission.ID, "delivered")
		}
	}
	for _, id := range plan.PatientIDs {
		if p, ok := o.patients[id]; ok && !p.State.Terminal() {
			p.Location = plan.Destination
			p.State = models.StateEvacuated
			p.AddEvent(o.clock, "batch_evacuation", plan.Destination, map[string]interface{}{
				"from": "CSU",
			})
		}
	}
	return result
}

// AdvanceClock moves the logical clock without any patient dynamics.
func (o *Orchestrator) AdvanceClock(minutes float64) {
	o.clock = o.clock.Add(time.Duration(minutes * float64(time.Minute)))
}

// AdvanceTime moves the logical clock forward and deteriorates every
// non-terminal patient. Iteration runs over a snapshot of IDs so patients
// materialized mid-call are unaffected this tick.
func (o *Orchestrator) AdvanceTime(minutes float64) {
	ids := o.PatientIDs()
	o.AdvanceClock(minutes)
	for _, id := range ids {
		p, ok := o.patients[id]
		if !ok || p.State.Terminal() {
			continue
		}
		o.Deteriorate(id, minutes)
	}
}

// handleDeath finalizes a fatality: zero health, bed and queue cleanup,
// classification.
func (o *Orchestrator) handleDeath(p *models.Patient, cause string) {
	p.CurrentHealth = 0
	location := p.Location

	if loc := o.facilities.LocateAdmitted(p.ID); loc != "" {
		o.facilities.Discharge(loc, p.ID)
	}
	for _, name := range o.facilities.Names() {
		o.facilities.RemoveFromQueue(name, p.ID)
	}

	p.State = models.StateDied
	o.deaths.Track(DeathInfo{
		PatientID:      p.ID,
		InjuryType:     p.InjuryType,
		Location:       location,
		TimeOfDeath:    o.clock,
		InjuredAt:      p.InjuredAt,
		InitialHealth:  p.InitialHealth,
		TreatmentCount: len(p.Treatments),
		Cause:          cause,
	})
	p.AddEvent(o.clock, "death", location, map[string]interface{}{"cause": cause})
}

// Status snapshots the whole system.
func (o *Orchestrator) Status() SystemStatus {
	byState := make(map[models.PatientState]int)
	for _, p := range o.patients {
		byState[p.State]++
	}
	return SystemStatus{
		Clock:              o.clock,
		TotalPatients:      len(o.patients),
		ByState:            byState,
		Facilities:         o.facilities.Snapshot(),
		Transport:          o.transport.Stats(),
		Deaths:             o.deaths.Statistics(),
		BatchMetrics:       o.csu.Metrics(),
		DiagnosticAccuracy: o.diagnostic.Accuracy(),
	}
}

// Shutdown releases all held shared resources. Called on job cancellation.
func (o *Orchestrator) Shutdown() {
	o.transport.ReleaseAll()
	for _, id := range o.PatientIDs() {
		if loc := o.facilities.LocateAdmitted(id); loc != "" {
			o.facilities.Discharge(loc, id)
		}
	}
}
