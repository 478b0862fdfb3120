package router

import "github.com/revenuelab/modelgate/internal/registry"

// Scoring weights. All inputs are static catalog attributes: the mapping's
// declared capability fit, the model's quality tier and its unit cost.
const (
	priorityWeight = 10.0
	tierWeight     = 5.0
	costWeight     = 100.0
)

// Score computes the deterministic routing score for a candidate.
// Higher capability fit and quality raise the score; declared cost lowers
// it. No randomness, clock or per-call state may ever enter this function.
func Score(c registry.CandidateModel) float64 {
	return priorityWeight*float64(c.Priority) +
		tierWeight*float64(c.QualityTier) -
		costWeight*c.UnitCost
}
