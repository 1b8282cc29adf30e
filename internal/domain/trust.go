package domain

// tierScores maps a source tier to the reliability score stamped on
// resources attributed to that source.
var tierScores = map[Tier]float64{
	TierGovernment:           1.0,
	TierEstablishedNonprofit: 0.8,
	TierDirectory:            0.6,
	TierCommunity:            0.4,
}

// TierScore returns the reliability score for a tier. Unknown tiers map
// to the community score so a miscoded connector can never inflate trust.
func TierScore(t Tier) float64 {
	if score, ok := tierScores[t]; ok {
		return score
	}
	return tierScores[TierCommunity]
}

// riskyFields are resource fields whose change requires human
// re-verification before being trusted. An automated update touching any
// of them forces the resource into NEEDS_REVIEW.
var riskyFields = map[string]bool{
	"phone":        true,
	"website":      true,
	"address":      true,
	"eligibility":  true,
	"how_to_apply": true,
	"cost":         true,
}

// IsRiskyField reports whether a change to the named resource field
// requires human review.
func IsRiskyField(field string) bool {
	return riskyFields[field]
}
