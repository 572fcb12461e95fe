package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindDurations(t *testing.T) {
	assert.Equal(t, 30, Monthly.DurationDays())
	assert.Equal(t, 90, Quarterly.DurationDays())
	assert.Equal(t, 365, Yearly.DurationDays())
	assert.Equal(t, 0, Kind("weekly").DurationDays())
}

func TestParseKind(t *testing.T) {
	k, ok := ParseKind("monthly")
	assert.True(t, ok)
	assert.Equal(t, Monthly, k)

	for _, in := range []string{"weekly", "Monthly", "MONTHLY", " monthly", ""} {
		_, ok = ParseKind(in)
		assert.False(t, ok, "%q", in)
	}
	assert.Len(t, Kinds, MaxPlans)
}
