package simulation

import (
	"fmt"
	"math/rand"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// Condition pools per injury type. Codes are SNOMED CT.
var conditionPools = map[models.InjuryType][]string{
	models.InjuryBattle:    {"125689001", "262525000", "125670008", "127295002", "125666000"},
	models.InjuryNonBattle: {"58150001", "125666000", "52072009", "47505003"},
	models.InjuryDisease:   {"52072009", "47505003"},
}

var bodyParts = []string{
	"head", "torso", "left_arm", "right_arm", "left_leg", "right_leg",
}

// severityWeights biases sampled severity by injury type: battle trauma
// skews severe.
var severityWeights = map[models.InjuryType][]float64{
	models.InjuryBattle:    {0.04, 0.05, 0.07, 0.10, 0.12, 0.14, 0.15, 0.14, 0.11, 0.08},
	models.InjuryNonBattle: {0.10, 0.13, 0.15, 0.15, 0.13, 0.11, 0.09, 0.07, 0.04, 0.03},
	models.InjuryDisease:   {0.15, 0.17, 0.17, 0.14, 0.12, 0.09, 0.07, 0.05, 0.03, 0.01},
}

// PatientSpec is a sampled patient blueprint.
type PatientSpec struct {
	InjuryType    models.InjuryType
	Severity      int
	TrueCondition string
	BodyPart      string
}

// SamplePatient draws a patient blueprint from the injury mix. Mix keys are
// injury type strings; an empty mix defaults to 70/20/10
// battle/non-battle/disease.
func SamplePatient(rng *rand.Rand, mix map[string]float64) PatientSpec {
	if len(mix) == 0 {
		mix = map[string]float64{
			string(models.InjuryBattle):    0.7,
			string(models.InjuryNonBattle): 0.2,
			string(models.InjuryDisease):   0.1,
		}
	}
	injury := sampleInjuryType(rng, mix)
	severity := sampleSeverity(rng, injury)
	pool := conditionPools[injury]
	condition := pool[rng.Intn(len(pool))]
	return PatientSpec{
		InjuryType:    injury,
		Severity:      severity,
		TrueCondition: condition,
		BodyPart:      bodyParts[rng.Intn(len(bodyParts))],
	}
}

func sampleInjuryType(rng *rand.Rand, mix map[string]float64) models.InjuryType {
	ordered := []models.InjuryType{models.InjuryBattle, models.InjuryNonBattle, models.InjuryDisease}
	var sum float64
	for _, t := range ordered {
		sum += mix[string(t)]
	}
	if sum == 0 {
		return models.InjuryBattle
	}
	r := rng.Float64() * sum
	for _, t := range ordered {
		r -= mix[string(t)]
		if r <= 0 {
			return t
		}
	}
	return models.InjuryBattle
}

func sampleSeverity(rng *rand.Rand, injury models.InjuryType) int {
	weights := severityWeights[injury]
	r := rng.Float64()
	for i, w := range weights {
		r -= w
		if r <= 0 {
			return i + 1
		}
	}
	return 5
}

// FlowSimulator drives a cohort of casualty events through one
// orchestrator: materialization, triage, transport, treatment, staging,
// and the final drain.
type FlowSimulator struct {
	orch *Orchestrator
	rng  *rand.Rand

	injuryMix     map[string]float64
	treatmentsMax int
	nextSerial    int

	medical        bool
	treatmentModel bool
}

// NewFlowSimulator builds a simulator over an orchestrator. The rand source
// must be distinct from the orchestrator's so event processing and medical
// sampling stay independently reproducible.
func NewFlowSimulator(orch *Orchestrator, rng *rand.Rand, injuryMix map[string]float64) *FlowSimulator {
	return &FlowSimulator{
		orch:           orch,
		rng:            rng,
		injuryMix:      injuryMix,
		treatmentsMax:  3,
		medical:        true,
		treatmentModel: true,
	}
}

// SetMedicalSimulation toggles the evacuation flow. When off, events only
// materialize patients at POI and the clock moves without patient dynamics.
func (fs *FlowSimulator) SetMedicalSimulation(enabled bool) { fs.medical = enabled }

// SetTreatmentModel toggles utility-model treatment selection.
func (fs *FlowSimulator) SetTreatmentModel(enabled bool) { fs.treatmentModel = enabled }

// ProcessEvent advances the clock to the event instant, materializes its
// patients, and triages them. Returns the new patient IDs.
func (fs *FlowSimulator) ProcessEvent(ev models.CasualtyEvent) ([]string, error) {
	if delta := ev.Timestamp.Sub(fs.orch.Now()); delta > 0 {
		if fs.medical {
			fs.stepThrough(delta.Minutes())
		} else {
			fs.orch.AdvanceClock(delta.Minutes())
		}
	}
	fs.orch.SetMassCasualty(ev.MassCasualty)
	if len(ev.Environmental) > 0 {
		fs.orch.SetEnvironment(ev.Environmental)
	}

	ids := make([]string, 0, ev.PatientCount)
	for i := 0; i < ev.PatientCount; i++ {
		fs.nextSerial++
		id := fmt.Sprintf("P-%06d", fs.nextSerial)
		spec := SamplePatient(fs.rng, fs.injuryMix)

		p, err := fs.orch.InitializePatient(id, spec.InjuryType, spec.Severity, "POI", spec.TrueCondition, "", spec.BodyPart)
		if err != nil {
			return ids, err
		}
		fs.orch.Diagnostics().Diagnose(p, "POI", ev.Environmental, 0, nil, fs.orch.Now())
		if !fs.medical {
			ids = append(ids, id)
			continue
		}
		if _, _, err := fs.orch.ProcessTriage(id); err != nil {
			continue // terminal or routing dead-end; the drain will catch up
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// stepThrough advances simulated time in bounded ticks, completing due
// transports and treating admitted patients along the way.
func (fs *FlowSimulator) stepThrough(minutes float64) {
	const tick = 30.0
	for minutes > 0 {
		step := tick
		if minutes < tick {
			step = minutes
		}
		fs.orch.AdvanceTime(step)
		minutes -= step
		fs.settle()
	}
}

// settle completes arrivals, treats, stages, and discharges after a tick.
func (fs *FlowSimulator) settle() {
	now := fs.orch.Now()
	for _, id := range fs.orch.PatientIDs() {
		p, ok := fs.orch.Patient(id)
		if !ok || p.State.Terminal() {
			continue
		}
		switch p.State {
		case models.StateInTransport:
			if m := fs.orch.Transportation().Get(p.TransportID); m != nil && !m.EstimatedArrival.After(now) {
				fs.orch.CompleteTransport(id)
			}
		case models.StateInTreatment:
			fs.treatOnce(p)
		case models.StateInQueue:
			// Queue drains happen on facility discharges below.
		}
	}

	fs.orch.ProcessQueues()

	if fs.orch.CSU().Ready() {
		fs.orch.ReleaseCSUBatch(false)
	}
}

// treatOnce gives an untreated admitted patient one round of utility-model
// treatment, plus ongoing recovery at Role2+.
func (fs *FlowSimulator) treatOnce(p *models.Patient) {
	if fs.treatmentModel && len(p.Treatments) == 0 {
		fs.orch.SelectAndTreat(p.ID, fs.treatmentsMax, nil)
	}
	switch p.Location {
	case "Role2", "Role3":
		fs.orch.Recover(p.ID, 30, 3.0)
		if p.CurrentHealth >= 100 && len(p.Treatments) > 0 {
			fs.orch.Discharge(p.ID)
		}
	}
}

// Drain advances time until every patient is terminal or maxHours elapses.
func (fs *FlowSimulator) Drain(maxHours float64) {
	if !fs.medical {
		return
	}
	for elapsed := 0.0; elapsed < maxHours*60; elapsed += 60 {
		if fs.activeCount() == 0 {
			return
		}
		fs.stepThrough(60)
	}
}

func (fs *FlowSimulator) activeCount() int {
	active := 0
	for _, p := range fs.orch.Patients() {
		if !p.State.Terminal() {
			active++
		}
	}
	return active
}

// Orchestrator exposes the underlying orchestrator.
func (fs *FlowSimulator) Orchestrator() *Orchestrator { return fs.orch }
