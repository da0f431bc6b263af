package simulation

// lifeSavingOrder is the doctrinal priority of interventions inside the
// critical window: stop bleeding, open airway, fix breathing, then volume
// and surgery.
var lifeSavingOrder = []string{
	"tourniquet",
	"airway_management",
	"needle_decompression",
	"bandage",
	"hemostatic_dressing",
	"iv_fluids",
	"blood_transfusion",
	"damage_control_surgery",
	"intubation",
}

// anatomicalConstraints restricts treatments to matching body parts.
// Treatments absent from this map apply anywhere.
var anatomicalConstraints = map[string][]string{
	"tourniquet":           {"left_arm", "right_arm", "left_leg", "right_leg"},
	"chest_seal":           {"torso"},
	"needle_decompression": {"torso"},
	"craniotomy":           {"head"},
	"splinting":            {"left_arm", "right_arm", "left_leg", "right_leg"},
}

// ProtocolCatalog answers which treatments are permitted for a condition at
// a facility echelon.
type ProtocolCatalog struct {
	cat *Catalog
}

// NewProtocolCatalog builds a catalog view.
func NewProtocolCatalog(cat *Catalog) *ProtocolCatalog {
	return &ProtocolCatalog{cat: cat}
}

// Entry returns the raw protocol for a condition code, or nil.
func (pc *ProtocolCatalog) Entry(code string) *ProtocolEntry {
	if e, ok := pc.cat.Protocols[code]; ok {
		return &e
	}
	return nil
}

// GetAppropriate returns the ordered treatments for (code, facility):
// primary list, plus secondary when severe/critical, minus contraindications
// and anatomical mismatches. Inside the critical window, life-saving
// interventions are moved to the front in doctrinal order.
func (pc *ProtocolCatalog) GetAppropriate(code, facility string, severe bool, elapsedMinutes float64, bodyPart string) []string {
	entry, ok := pc.cat.Protocols[code]
	if !ok {
		return nil
	}

	treatments := append([]string(nil), entry.Primary[facilityEchelon(facility)]...)
	if severe {
		treatments = append(treatments, entry.Secondary[facilityEchelon(facility)]...)
	}

	contra := make(map[string]bool, len(entry.Contraindicated))
	for _, c := range entry.Contraindicated {
		contra[c] = true
	}

	var filtered []string
	seen := make(map[string]bool)
	for _, t := range treatments {
		if contra[t] || seen[t] {
			continue
		}
		if !bodyPartAllowed(t, bodyPart) {
			continue
		}
		seen[t] = true
		filtered = append(filtered, t)
	}

	if entry.CriticalWindow > 0 && elapsedMinutes <= entry.CriticalWindow {
		filtered = frontLoadLifeSaving(filtered)
	}
	return filtered
}

// Contraindicated reports whether a treatment is barred for a condition.
func (pc *ProtocolCatalog) Contraindicated(code, treatment string) bool {
	entry, ok := pc.cat.Protocols[code]
	if !ok {
		return false
	}
	for _, c := range entry.Contraindicated {
		if c == treatment {
			return true
		}
	}
	return false
}

func bodyPartAllowed(treatment, bodyPart string) bool {
	constraint, ok := anatomicalConstraints[treatment]
	if !ok || bodyPart == "" {
		return true
	}
	for _, part := range constraint {
		if part == bodyPart {
			return true
		}
	}
	return false
}

func frontLoadLifeSaving(treatments []string) []string {
	rank := make(map[string]int, len(lifeSavingOrder))
	for i, t := range lifeSavingOrder {
		rank[t] = i
	}
	var lead, rest []string
	for _, t := range treatments {
		if _, ok := rank[t]; ok {
			lead = append(lead, t)
		} else {
			rest = append(rest, t)
		}
	}
	// Insertion sort keeps the short lead list in doctrinal order.
	for i := 1; i < len(lead); i++ {
		for j := i; j > 0 && rank[lead[j]] < rank[lead[j-1]]; j-- {
			lead[j], lead[j-1] = lead[j-1], lead[j]
		}
	}
	return append(lead, rest...)
}

// facilityEchelon normalizes facility names to protocol table keys.
func facilityEchelon(facility string) string {
	switch facility {
	case "POI", "Role1", "Role2", "Role3", "Role4", "CSU":
		return facility
	}
	return "Role1"
}
