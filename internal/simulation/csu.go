package simulation

import (
	"sort"
	"time"

	"github.com/banton/medical-patients-sub001/internal/models"
)

// batchEntry is one patient waiting in the staging batch.
type batchEntry struct {
	PatientID string
	Triage    models.TriageCategory
}

// BatchMetrics aggregates coordinator counters.
type BatchMetrics struct {
	TotalBatches        int `json:"total_batches"`
	FullBatches         int `json:"full_batches"`
	PartialBatches      int `json:"partial_batches"`
	PatientsTransferred int `json:"patients_transferred"`
}

// AddResult reports the batch state after adding a patient.
type AddResult struct {
	BatchCount int  `json:"batch_count"`
	BatchReady bool `json:"batch_ready"`
}

// TransferPlan is the coordinator's recommendation for releasing a batch.
type TransferPlan struct {
	PatientIDs         []string `json:"patient_ids"`
	Destination        string   `json:"destination"`
	TransportRequired  bool     `json:"transport_required"`
}

// ExecuteResult is the tagged outcome of a batch transfer.
type ExecuteResult struct {
	Success          bool   `json:"success"`
	Reason           string `json:"reason,omitempty"`
	TransferredCount int    `json:"transferred_count"`
	FailedCount      int    `json:"failed_count"`
}

// BatchCoordinator accumulates CSU patients into batches and releases them
// onward in one transport movement.
type BatchCoordinator struct {
	fm  *FacilityManager
	now func() time.Time

	batchSize      int
	maxHoldMinutes float64

	batch   []batchEntry
	firstAt time.Time
	metrics BatchMetrics
}

// NewBatchCoordinator builds a coordinator. Zero batchSize/maxHold take the
// defaults 10 patients / 60 minutes.
func NewBatchCoordinator(fm *FacilityManager, batchSize int, maxHoldMinutes float64, now func() time.Time) *BatchCoordinator {
	if batchSize <= 0 {
		batchSize = 10
	}
	if maxHoldMinutes <= 0 {
		maxHoldMinutes = 60
	}
	if now == nil {
		now = time.Now
	}
	return &BatchCoordinator{fm: fm, now: now, batchSize: batchSize, maxHoldMinutes: maxHoldMinutes}
}

// Add places a patient in the accumulating batch. The batch is ready when it
// reaches batchSize or the first patient has waited past the hold limit.
func (bc *BatchCoordinator) Add(patientID string, triage models.TriageCategory) AddResult {
	if len(bc.batch) == 0 {
		bc.firstAt = bc.now()
	}
	bc.batch = append(bc.batch, batchEntry{PatientID: patientID, Triage: triage})
	return AddResult{BatchCount: len(bc.batch), BatchReady: bc.Ready()}
}

// Ready reports whether the batch should be released.
func (bc *BatchCoordinator) Ready() bool {
	if len(bc.batch) == 0 {
		return false
	}
	if len(bc.batch) >= bc.batchSize {
		return true
	}
	return bc.now().Sub(bc.firstAt).Minutes() >= bc.maxHoldMinutes
}

// Count returns the number of patients held.
func (bc *BatchCoordinator) Count() int { return len(bc.batch) }

// PrepareTransfer sorts the batch by triage priority and recommends a
// destination: Role2 when it has room below its overflow point, else Role3,
// else Role2 anyway.
func (bc *BatchCoordinator) PrepareTransfer() TransferPlan {
	sorted := make([]batchEntry, len(bc.batch))
	copy(sorted, bc.batch)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Triage.Priority() < sorted[j].Triage.Priority()
	})

	ids := make([]string, len(sorted))
	for i, e := range sorted {
		ids[i] = e.PatientID
	}

	destination := "Role2"
	role2 := bc.fm.Get("Role2")
	if role2 == nil || bc.fm.AvailableBeds("Role2") < len(bc.batch) || role2.Utilization() >= 0.9 {
		if bc.fm.AvailableBeds("Role3") >= len(bc.batch) {
			destination = "Role3"
		}
	}

	return TransferPlan{PatientIDs: ids, Destination: destination, TransportRequired: true}
}

// Execute transfers the batch to the destination via facility transfers.
// Refuses when the batch is not ready (unless forced) or the destination
// lacks capacity for the whole batch.
func (bc *BatchCoordinator) Execute(destination string, force bool) ExecuteResult {
	if len(bc.batch) == 0 {
		return ExecuteResult{Reason: "batch_empty"}
	}
	if !bc.Ready() && !force {
		return ExecuteResult{Reason: "batch_not_ready"}
	}
	if bc.fm.AvailableBeds(destination) < len(bc.batch) {
		return ExecuteResult{Reason: "insufficient_capacity"}
	}

	plan := bc.PrepareTransfer()
	var transferred, failed int
	for _, id := range plan.PatientIDs {
		res := bc.fm.Transfer("CSU", destination, id, models.PriorityRoutine)
		if res.Success {
			transferred++
		} else {
			failed++
		}
	}

	full := len(bc.batch) >= bc.batchSize
	bc.batch = nil
	bc.metrics.TotalBatches++
	if full {
		bc.metrics.FullBatches++
	} else {
		bc.metrics.PartialBatches++
	}
	bc.metrics.PatientsTransferred += transferred

	return ExecuteResult{Success: true, TransferredCount: transferred, FailedCount: failed}
}

// Metrics snapshots the coordinator counters.
func (bc *BatchCoordinator) Metrics() BatchMetrics { return bc.metrics }
