package events

// AdjustAcuity applies an acuity-sensitivity dial to a raw acuity a.
// A scaling above 1 widens the gap between low and high acuity, a scaling
// below 1 narrows it, and a scaling of exactly 1 returns a unchanged.
func AdjustAcuity(a, scaling float64) float64 {
	if scaling >= 1 {
		if a < 1 {
			return a / scaling
		}
		return a * scaling
	}
	if a < 1 {
		return 1 - (1-a)*scaling
	}
	return 1 + (a-1)*scaling
}

// Weight computes (base + measure*acuity) * weight for an acuity already
// passed through AdjustAcuity.
func Weight(base, measure, acuity, weight float64) float64 {
	return (base + measure*acuity) * weight
}
