package tags

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sopflow/sopflow/pkg/models"
)

func TestFormatReadings(t *testing.T) {
	readings := []models.TagReading{
		{Tag: "TI-101", Value: "85.3"},
		{Tag: "PI-102", Value: "1.2"},
	}
	units := map[string]string{"TI-101": "degC", "PI-102": "bar"}

	assert.Equal(t, "TI-101=85.3 degC, PI-102=1.2 bar", FormatReadings(readings, units))
}

func TestFormatReadings_SentinelsKeepUnit(t *testing.T) {
	readings := []models.TagReading{
		{Tag: "TI-101", Value: models.TagValueOffline},
		{Tag: "PI-102", Value: "1.2"},
	}
	units := map[string]string{"TI-101": "degC", "PI-102": "bar"}

	// Sentinels render like any value; stored logs carry the unit after
	// them too.
	assert.Equal(t, "TI-101=Offline degC, PI-102=1.2 bar", FormatReadings(readings, units))
}

func TestFormatReadings_Empty(t *testing.T) {
	assert.Equal(t, models.NoValue, FormatReadings(nil, nil))
}

func TestFormatReadings_MissingUnit(t *testing.T) {
	readings := []models.TagReading{{Tag: "TI-101", Value: "85.3"}}

	// An absent unit still leaves the separating space, byte-identical to
	// how historical logs were written.
	assert.Equal(t, "TI-101=85.3 ", FormatReadings(readings, nil))
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value     string
		precision int
		want      string
	}{
		{"85.349", 1, "85.3"},
		{"85.35", 1, "85.3"},
		{"85", 2, "85.00"},
		{"85.5", 0, "86"},
		{models.TagValueError, 2, models.TagValueError},
		{"not a number", 2, "not a number"},
		{"", 2, ""},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, FormatValue(tc.value, tc.precision), "value %q precision %d", tc.value, tc.precision)
	}
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"TI-101", "PI-102"}, SplitTags("TI-101;PI-102"))
	assert.Equal(t, []string{"TI-101"}, SplitTags(" TI-101 ; ; "))
	assert.Nil(t, SplitTags(""))
	assert.Nil(t, SplitTags(";;"))
}

type failingOracle struct{}

func (failingOracle) FetchValues(context.Context, string) ([]models.TagReading, error) {
	return nil, errors.New("boom")
}

func (failingOracle) Status(context.Context) string {
	return StatusOffline
}

func TestFetchOrSentinel(t *testing.T) {
	ctx := t.Context()

	readings := FetchOrSentinel(ctx, nil, "TI-101;PI-102")
	require.Len(t, readings, 2)
	assert.Equal(t, models.TagValueNotFound, readings[0].Value)
	assert.Equal(t, models.TagValueNotFound, readings[1].Value)

	readings = FetchOrSentinel(ctx, failingOracle{}, "TI-101")
	require.Len(t, readings, 1)
	assert.Equal(t, models.TagValueConnectionError, readings[0].Value)

	assert.Nil(t, FetchOrSentinel(ctx, nil, ""))
}

func TestMockOracle_StableWithinMinute(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	oracle := &MockOracle{clock: func() time.Time { return now }}

	first, err := oracle.FetchValues(t.Context(), "TI-101;PI-102")
	require.NoError(t, err)
	require.Len(t, first, 2)

	// Seconds tick, same minute bucket: identical values.
	now = now.Add(20 * time.Second)

	second, err := oracle.FetchValues(t.Context(), "TI-101;PI-102")
	require.NoError(t, err)
	assert.Equal(t, first[0].Value, second[0].Value)
	assert.Equal(t, first[1].Value, second[1].Value)

	// Next minute bucket: values move.
	now = now.Add(time.Minute)

	third, err := oracle.FetchValues(t.Context(), "TI-101")
	require.NoError(t, err)
	assert.NotEqual(t, first[0].Value, third[0].Value)
}

func TestMockOracle_ValuesInRange(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 0, 0, time.UTC)

	for _, tag := range []string{"TI-101", "PI-102", "FI-330", "LI-204"} {
		value := mockValue(tag, now)
		assert.GreaterOrEqual(t, value, 20.0, "tag %s", tag)
		assert.Less(t, value, 100.0, "tag %s", tag)
	}
}

func TestMockOracle_Metadata(t *testing.T) {
	oracle := NewMockOracle()

	readings, err := oracle.FetchValues(t.Context(), "TI-101")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, SourceMock, readings[0].Source)
	assert.Equal(t, StatusNotConfigured, oracle.Status(t.Context()))
}
