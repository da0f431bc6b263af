package simulation

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banton/medical-patients-sub001/internal/models"
)

const (
	airSpeedMultiplier = 0.33
	maxBusBatch        = 10
)

// RouteTable maps (origin, destination) to ground travel minutes.
type RouteTable struct {
	durations map[string]float64
}

// NewRouteTable returns the default evacuation route durations.
func NewRouteTable() *RouteTable {
	rt := &RouteTable{durations: make(map[string]float64)}
	defaults := map[[2]string]float64{
		{"POI", "Role1"}:   25,
		{"POI", "CSU"}:     35,
		{"POI", "Role2"}:   55,
		{"POI", "Role3"}:   95,
		{"Role1", "CSU"}:   30,
		{"Role1", "Role2"}: 40,
		{"Role1", "Role3"}: 90,
		{"CSU", "Role2"}:   35,
		{"CSU", "Role3"}:   80,
		{"Role2", "Role3"}: 60,
	}
	for k, v := range defaults {
		rt.Set(k[0], k[1], v)
	}
	return rt
}

// Set records a symmetric route duration.
func (rt *RouteTable) Set(from, to string, minutes float64) {
	rt.durations[from+"|"+to] = minutes
	rt.durations[to+"|"+from] = minutes
}

// Duration returns the ground minutes between two points, 45 when unmapped.
func (rt *RouteTable) Duration(from, to string) float64 {
	if d, ok := rt.durations[from+"|"+to]; ok {
		return d
	}
	return 45
}

type vehiclePool struct {
	total     int
	available int
}

// TransportStats aggregates scheduler counters.
type TransportStats struct {
	Scheduled     map[models.VehicleKind]int `json:"scheduled_by_vehicle"`
	Completed     int                        `json:"completed"`
	DiedInTransit int                        `json:"died_in_transit"`
	Active        int                        `json:"active"`
	QueuedUrgent  int                        `json:"queued_urgent"`
	QueuedRoutine int                        `json:"queued_routine"`
}

// TransportScheduler owns vehicle pools and transport missions.
type TransportScheduler struct {
	pools  map[models.VehicleKind]*vehiclePool
	routes *RouteTable
	now    func() time.Time

	active        map[string]*models.TransportMission
	urgentQueue   []*models.TransportMission
	routineQueue  []*models.TransportMission
	scheduledBy   map[models.VehicleKind]int
	completed     int
	diedInTransit int
}

// NewTransportScheduler builds a scheduler with the given pool sizes (zero
// values take defaults 40/4/6) and a clock provided by the orchestrator.
func NewTransportScheduler(ground, air, bus int, routes *RouteTable, now func() time.Time) *TransportScheduler {
	if ground <= 0 {
		ground = 40
	}
	if air <= 0 {
		air = 4
	}
	if bus <= 0 {
		bus = 6
	}
	if routes == nil {
		routes = NewRouteTable()
	}
	if now == nil {
		now = time.Now
	}
	return &TransportScheduler{
		pools: map[models.VehicleKind]*vehiclePool{
			models.VehicleGroundAmbulance: {total: ground, available: ground},
			models.VehicleAirAmbulance:    {total: air, available: air},
			models.VehicleBus:             {total: bus, available: bus},
		},
		routes:      routes,
		now:         now,
		active:      make(map[string]*models.TransportMission),
		scheduledBy: make(map[models.VehicleKind]int),
	}
}

// Routes exposes the route table for the overflow router.
func (ts *TransportScheduler) Routes() *RouteTable { return ts.routes }

// Schedule creates a mission for one patient. If no vehicle of the selected
// class is free the mission queues instead.
func (ts *TransportScheduler) Schedule(patientID, from, to string, priority models.TransportPriority, health float64) *models.TransportMission {
	ground := ts.routes.Duration(from, to)

	vehicle := models.VehicleGroundAmbulance
	duration := ground
	airPool := ts.pools[models.VehicleAirAmbulance]
	if (priority == models.PriorityUrgent || ground > 30) && airPool.available > 0 {
		vehicle = models.VehicleAirAmbulance
		duration = ground * airSpeedMultiplier
	}

	now := ts.now()
	mission := &models.TransportMission{
		ID:               uuid.NewString(),
		PatientID:        patientID,
		Origin:           from,
		Destination:      to,
		Vehicle:          vehicle,
		ScheduledAt:      now,
		DurationMinutes:  duration,
		EstimatedArrival: now.Add(time.Duration(duration * float64(time.Minute))),
		Priority:         priority,
		Risk:             deteriorationRisk(health, duration),
	}

	pool := ts.pools[vehicle]
	if pool.available > 0 {
		pool.available--
		mission.Status = models.MissionScheduled
		ts.active[mission.ID] = mission
		ts.scheduledBy[vehicle]++
		return mission
	}

	mission.Status = models.MissionQueued
	if priority == models.PriorityUrgent {
		ts.urgentQueue = append(ts.urgentQueue, mission)
		mission.QueuePosition = len(ts.urgentQueue)
	} else {
		ts.routineQueue = append(ts.routineQueue, mission)
		mission.QueuePosition = len(ts.urgentQueue) + len(ts.routineQueue)
	}
	return mission
}

func deteriorationRisk(health, duration float64) models.DeteriorationRisk {
	switch {
	case health > 0 && health < 20 && duration > 30:
		return models.RiskHigh
	case (health > 0 && health < 40) || duration > 45:
		return models.RiskModerate
	default:
		return models.RiskLow
	}
}

// Get returns an active mission by ID.
func (ts *TransportScheduler) Get(missionID string) *models.TransportMission {
	return ts.active[missionID]
}

// Complete finishes a mission, returns its vehicle, and activates queued
// missions. Outcome is "delivered" or "died_in_transit".
func (ts *TransportScheduler) Complete(missionID, outcome string) error {
	mission, ok := ts.active[missionID]
	if !ok {
		return fmt.Errorf("unknown mission %s", missionID)
	}
	delete(ts.active, missionID)
	ts.pools[mission.Vehicle].available++
	mission.Status = models.MissionCompleted

	ts.completed++
	if outcome == "died_in_transit" {
		ts.diedInTransit++
	}

	ts.ProcessQueue()
	return nil
}

// ProcessQueue activates queued missions priority-first while the required
// vehicle class has free units.
func (ts *TransportScheduler) ProcessQueue() []*models.TransportMission {
	var activated []*models.TransportMission
	for _, queue := range []*[]*models.TransportMission{&ts.urgentQueue, &ts.routineQueue} {
		remaining := (*queue)[:0]
		for _, mission := range *queue {
			pool := ts.pools[mission.Vehicle]
			if pool.available > 0 {
				pool.available--
				now := ts.now()
				mission.Status = models.MissionScheduled
				mission.ScheduledAt = now
				mission.EstimatedArrival = now.Add(time.Duration(mission.DurationMinutes * float64(time.Minute)))
				mission.QueuePosition = 0
				ts.active[mission.ID] = mission
				ts.scheduledBy[mission.Vehicle]++
				activated = append(activated, mission)
			} else {
				remaining = append(remaining, mission)
			}
		}
		*queue = remaining
	}
	return activated
}

// ScheduleBatch allocates a bus for up to 10 patients moving together.
func (ts *TransportScheduler) ScheduleBatch(patientIDs []string, from, to string) (*models.TransportMission, error) {
	if len(patientIDs) == 0 {
		return nil, fmt.Errorf("empty batch")
	}
	if len(patientIDs) > maxBusBatch {
		return nil, fmt.Errorf("batch of %d exceeds bus capacity %d", len(patientIDs), maxBusBatch)
	}
	pool := ts.pools[models.VehicleBus]
	if pool.available == 0 {
		return nil, fmt.Errorf("no bus available")
	}
	pool.available--

	now := ts.now()
	duration := ts.routes.Duration(from, to)
	mission := &models.TransportMission{
		ID:               uuid.NewString(),
		BatchPatientIDs:  append([]string(nil), patientIDs...),
		Origin:           from,
		Destination:      to,
		Vehicle:          models.VehicleBus,
		ScheduledAt:      now,
		DurationMinutes:  duration,
		EstimatedArrival: now.Add(time.Duration(duration * float64(time.Minute))),
		Status:           models.MissionScheduled,
		Priority:         models.PriorityRoutine,
		Risk:             models.RiskLow,
	}
	ts.active[mission.ID] = mission
	ts.scheduledBy[models.VehicleBus]++
	return mission, nil
}

// PoolState returns (available, total) for a vehicle class.
func (ts *TransportScheduler) PoolState(kind models.VehicleKind) (int, int) {
	p := ts.pools[kind]
	return p.available, p.total
}

// Stats snapshots scheduler counters.
func (ts *TransportScheduler) Stats() TransportStats {
	byVehicle := make(map[models.VehicleKind]int, len(ts.scheduledBy))
	for k, v := range ts.scheduledBy {
		byVehicle[k] = v
	}
	return TransportStats{
		Scheduled:     byVehicle,
		Completed:     ts.completed,
		DiedInTransit: ts.diedInTransit,
		Active:        len(ts.active),
		QueuedUrgent:  len(ts.urgentQueue),
		QueuedRoutine: len(ts.routineQueue),
	}
}

// ReleaseAll returns every active vehicle to its pool. Used on job
// cancellation so a cancelled run leaves no vehicle checked out.
func (ts *TransportScheduler) ReleaseAll() {
	for id, mission := range ts.active {
		ts.pools[mission.Vehicle].available++
		delete(ts.active, id)
	}
	ts.urgentQueue = nil
	ts.routineQueue = nil
}
