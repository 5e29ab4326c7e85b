package tags

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sopflow/sopflow/pkg/models"
)

// WebOracle reads tag values from an HTTP data server. When the server is
// unreachable it falls back to simulated readings labelled "Mock (Error)"
// rather than failing the caller; execution keeps moving and the fallback
// is visible in the recorded value.
type WebOracle struct {
	baseURL string
	client  *http.Client
	clock   func() time.Time
}

// NewWebOracle builds an oracle against the given base URL.
func NewWebOracle(baseURL string, timeout time.Duration) *WebOracle {
	return &WebOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		clock:   time.Now,
	}
}

type webReading struct {
	Tag       string   `json:"tag"`
	Value     *float64 `json:"value"`
	Timestamp string   `json:"timestamp"`
	Good      *bool    `json:"good"`
}

func (o *WebOracle) FetchValues(ctx context.Context, tagExpr string) ([]models.TagReading, error) {
	tagNames := SplitTags(tagExpr)
	if len(tagNames) == 0 {
		return nil, nil
	}

	raw, err := o.query(ctx, tagExpr)
	if err != nil {
		return MockReadings(tagNames, o.clock(), SourceMockError), nil
	}

	byTag := make(map[string]webReading, len(raw))
	for _, r := range raw {
		byTag[r.Tag] = r
	}

	readings := make([]models.TagReading, 0, len(tagNames))

	for _, name := range tagNames {
		reading := models.TagReading{
			Tag:       name,
			Timestamp: o.clock(),
			Source:    o.baseURL,
		}

		remote, ok := byTag[name]

		switch {
		case !ok:
			reading.Value = models.TagValueNotFound
		case remote.Good != nil && !*remote.Good:
			reading.Value = models.TagValueError
		case remote.Value == nil:
			reading.Value = models.TagValueOffline
		default:
			reading.Value = fmt.Sprintf("%g", *remote.Value)
		}

		if remote.Timestamp != "" {
			if ts, err := time.Parse(time.RFC3339, remote.Timestamp); err == nil {
				reading.Timestamp = ts
			}
		}

		readings = append(readings, reading)
	}

	return readings, nil
}

func (o *WebOracle) Status(ctx context.Context) string {
	if o.baseURL == "" {
		return StatusNotConfigured
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/health", nil)
	if err != nil {
		return StatusOffline
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return StatusOffline
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return StatusOffline
	}

	return StatusConnected
}

func (o *WebOracle) query(ctx context.Context, tagExpr string) ([]webReading, error) {
	endpoint := fmt.Sprintf("%s/values?tags=%s", o.baseURL, url.QueryEscape(tagExpr))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tag server returned status %d", resp.StatusCode)
	}

	var raw []webReading
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode tag server response: %w", err)
	}

	return raw, nil
}
