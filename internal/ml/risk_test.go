package ml

import (
	"testing"

	"dropout-risk/internal/common"

	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		scheme RiskScheme
		p      float64
		want   string
	}{
		{TwoBucket, 0.0, common.RiskLow},
		{TwoBucket, 0.6, common.RiskLow},
		{TwoBucket, 0.6001, common.RiskHigh},
		{TwoBucket, 1.0, common.RiskHigh},
		{ThreeBucket, 0.29, common.RiskLow},
		{ThreeBucket, 0.3, common.RiskModerate},
		{ThreeBucket, 0.59, common.RiskModerate},
		{ThreeBucket, 0.6, common.RiskHigh},
		{ThreeBucket, 0.95, common.RiskHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.scheme.Categorize(tt.p), "%s at %v", tt.scheme, tt.p)
	}
}

func TestParseRiskScheme(t *testing.T) {
	s, err := ParseRiskScheme("")
	assert.NoError(t, err)
	assert.Equal(t, TwoBucket, s)

	s, err = ParseRiskScheme("three-bucket")
	assert.NoError(t, err)
	assert.Equal(t, ThreeBucket, s)

	_, err = ParseRiskScheme("five-bucket")
	assert.Error(t, err)
}

func TestColor(t *testing.T) {
	assert.Equal(t, "#ff6b6b", Color(common.RiskHigh))
	assert.Equal(t, "#feca57", Color(common.RiskModerate))
	assert.Equal(t, "#4ecdc4", Color(common.RiskLow))
}
