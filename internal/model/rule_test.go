package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeUnit(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    TimeUnit
		wantErr bool
	}{
		{raw: "month", want: UnitMonth},
		{raw: " Years ", want: UnitYear},
		{raw: "minute", want: UnitMinute},
		{raw: "5", want: UnitHour},
		{raw: "0", want: UnitDay},
		{raw: "fortnight", wantErr: true},
		{raw: "9", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseTimeUnit(tt.raw)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidInput, tt.raw)
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got, tt.raw)
	}
}

func TestCreateRuleRequestTimeUnitJSON(t *testing.T) {
	t.Parallel()

	var byCode CreateRuleRequest
	require.NoError(t, json.Unmarshal([]byte(`{"time_unit":3,"time_amount":1}`), &byCode))
	assert.Equal(t, UnitYear, byCode.TimeUnit)

	var byName CreateRuleRequest
	require.NoError(t, json.Unmarshal([]byte(`{"time_unit":"day","time_amount":1}`), &byName))
	assert.Equal(t, UnitDay, byName.TimeUnit)

	// Out-of-range codes decode and are rejected later by rule validation.
	var unknown CreateRuleRequest
	require.NoError(t, json.Unmarshal([]byte(`{"time_unit":42}`), &unknown))
	assert.False(t, unknown.TimeUnit.Valid())

	var bad CreateRuleRequest
	require.Error(t, json.Unmarshal([]byte(`{"time_unit":"eon"}`), &bad))
}

func TestRuleKey(t *testing.T) {
	t.Parallel()

	tagRule := ArchiveRule{ID: 4, TagID: ptr(int64(9))}
	timeRule := ArchiveRule{ID: 4}

	assert.Equal(t, "tag:9", tagRule.Key().String())
	assert.Equal(t, "rule:4", timeRule.Key().String())
	assert.Equal(t, "tag", tagRule.Key().Mode())
	assert.Equal(t, "time", timeRule.Key().Mode())
	assert.False(t, RuleKey{}.Valid())
	assert.True(t, timeRule.Key().Valid())
}

func ptr[T any](v T) *T {
	return &v
}
