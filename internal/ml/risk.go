package ml

import (
	"fmt"

	"dropout-risk/internal/common"
)

// RiskScheme maps a dropout probability onto a risk category. A deployment
// uses one scheme for every front-end.
type RiskScheme string

const (
	// TwoBucket is High Risk above 0.6, Low Risk otherwise.
	TwoBucket RiskScheme = common.RiskSchemeTwoBucket
	// ThreeBucket is High Risk from 0.6, Moderate Risk from 0.3, Low Risk below.
	ThreeBucket RiskScheme = common.RiskSchemeThreeBucket
)

// ParseRiskScheme validates a configured scheme name. Empty selects TwoBucket.
func ParseRiskScheme(name string) (RiskScheme, error) {
	switch RiskScheme(name) {
	case "", TwoBucket:
		return TwoBucket, nil
	case ThreeBucket:
		return ThreeBucket, nil
	}
	return "", fmt.Errorf("unknown risk scheme %q", name)
}

// Categorize returns the risk category of probability p.
func (s RiskScheme) Categorize(p float64) string {
	if s == ThreeBucket {
		switch {
		case p >= common.HighRiskThreshold:
			return common.RiskHigh
		case p >= common.ModerateRiskThreshold:
			return common.RiskModerate
		default:
			return common.RiskLow
		}
	}
	if p > common.HighRiskThreshold {
		return common.RiskHigh
	}
	return common.RiskLow
}

// Color is the display colour of a risk category.
func Color(category string) string {
	switch category {
	case common.RiskHigh:
		return "#ff6b6b"
	case common.RiskModerate:
		return "#feca57"
	default:
		return "#4ecdc4"
	}
}
