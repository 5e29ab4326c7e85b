package tags

import (
	"context"
	"hash/fnv"
	"strconv"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
)

// Reading sources for simulated values.
const (
	SourceMock      = "Mock"
	SourceMockError = "Mock (Error)"
)

// MockOracle serves simulated readings when no real oracle is configured.
// Values are pseudo-random in [20, 100) but stable per tag within a one
// minute bucket, so repeated reads of the same tag look like a real, slowly
// moving signal.
type MockOracle struct {
	clock func() time.Time
}

// NewMockOracle returns a mock oracle on the wall clock.
func NewMockOracle() *MockOracle {
	return &MockOracle{clock: time.Now}
}

func (o *MockOracle) FetchValues(_ context.Context, tagExpr string) ([]models.TagReading, error) {
	return MockReadings(SplitTags(tagExpr), o.clock(), SourceMock), nil
}

func (o *MockOracle) Status(_ context.Context) string {
	return StatusNotConfigured
}

// MockReadings builds simulated readings for the given tags at the given
// instant, labelled with the given source.
func MockReadings(tagNames []string, now time.Time, source string) []models.TagReading {
	readings := make([]models.TagReading, 0, len(tagNames))

	for _, name := range tagNames {
		readings = append(readings, models.TagReading{
			Tag:       name,
			Value:     strconv.FormatFloat(mockValue(name, now), 'f', -1, 64),
			Timestamp: now,
			Source:    source,
		})
	}

	return readings
}

func mockValue(tag string, now time.Time) float64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tag))
	_, _ = h.Write([]byte(now.UTC().Truncate(time.Minute).Format(time.RFC3339)))

	return 20.0 + float64(h.Sum64()%8000)/100.0
}
