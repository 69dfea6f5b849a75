package domain

// Static top-up plan catalog. Used only for mismatch detection on the
// client verification path; unknown plan names are allowed through.
var planAmounts = map[string]int64{
	"Go":   100_00, // Rs 100
	"Pro":  300_00, // Rs 300
	"Plus": 600_00, // Rs 600
}

// PlanTolerance is the largest acceptable gap, in minor units, between a
// plan's expected amount and what the gateway says was actually paid
// (Rs 1, covers gateway rounding and small fee adjustments).
const PlanTolerance int64 = 100

// PlanAmount returns the expected amount in minor units for a plan name.
func PlanAmount(name string) (int64, bool) {
	amount, ok := planAmounts[name]
	return amount, ok
}

// PlanMatches reports whether a paid amount is close enough to the plan's
// expected amount. Unknown plans always match (permissive default).
func PlanMatches(name string, paid int64) bool {
	expected, ok := planAmounts[name]
	if !ok {
		return true
	}
	return AbsDiff(expected, paid) <= PlanTolerance
}
