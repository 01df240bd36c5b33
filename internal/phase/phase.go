// Package phase talks to the phase/pattern analysis service and applies its
// answers to a job.
package phase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/verte-zerg/sensorview/internal/annotate"
	"github.com/verte-zerg/sensorview/internal/logging"
	"github.com/verte-zerg/sensorview/internal/model"
)

var (
	ErrEmptyResponse = errors.New("empty phase response")
	ErrBusy          = errors.New("phase analysis already running")
	ErrNoEndpoint    = errors.New("phase service url is not configured")
)

// DefaultTimeout bounds one analysis request.
const DefaultTimeout = 30 * time.Second

// SamplePayload is one reading sent to the service.
type SamplePayload struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// Request is the analysis request body.
type Request struct {
	Samples          []SamplePayload `json:"samples"`
	SensorType       string          `json:"sensorType"`
	MeasurementRange float64         `json:"measurementRange"`
}

// PointPayload is a point reported by the service.
type PointPayload struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// PhasePayload is a named range reported by the service.
type PhasePayload struct {
	Name      string    `json:"name"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Response is the analysis response body.
type Response struct {
	Phases             []PhasePayload          `json:"phases,omitempty"`
	Points             map[string]PointPayload `json:"points,omitempty"`
	ResponseStartPoint *PointPayload           `json:"responseStartPoint,omitempty"`
	ResponseEndPoint   *PointPayload           `json:"responseEndPoint,omitempty"`
	ResponseError      string                  `json:"responseError,omitempty"`
}

// NewRequest builds the request for one channel of a dataset.
func NewRequest(ds *model.Dataset, ch int, sensor model.SensorType) Request {
	series := ds.Series(ch)
	req := Request{
		Samples:          make([]SamplePayload, 0, len(series)),
		SensorType:       string(sensor),
		MeasurementRange: ds.MeasurementRange,
	}
	for _, p := range series {
		req.Samples = append(req.Samples, SamplePayload{Timestamp: p.Time, Value: p.Value})
	}
	return req
}

// Decode parses and validates a response body.
func Decode(data []byte) (Response, error) {
	var res Response
	if len(bytes.TrimSpace(data)) == 0 {
		return res, ErrEmptyResponse
	}
	if err := json.Unmarshal(data, &res); err != nil {
		return Response{}, fmt.Errorf("failed to decode phase response: %w", err)
	}
	if res.ResponseError != "" {
		return Response{}, fmt.Errorf("phase service: %s", res.ResponseError)
	}
	if len(res.Phases) == 0 && len(res.Points) == 0 && res.ResponseStartPoint == nil && res.ResponseEndPoint == nil {
		return Response{}, ErrEmptyResponse
	}
	for _, ph := range res.Phases {
		if strings.TrimSpace(ph.Name) == "" {
			return Response{}, errors.New("phase without a name")
		}
		if ph.EndTime.Before(ph.StartTime) {
			return Response{}, fmt.Errorf("phase %q ends before it starts", ph.Name)
		}
	}
	if res.ResponseStartPoint != nil && res.ResponseEndPoint != nil &&
		res.ResponseEndPoint.Timestamp.Before(res.ResponseStartPoint.Timestamp) {
		return Response{}, errors.New("response end point is before the start point")
	}
	return res, nil
}

// Apply writes a decoded response into the manager: points are upserted, ST
// and EN come from the response start and end points, and phases are
// replaced. Labels the sensor does not know are skipped and returned.
func Apply(m *annotate.Manager, res Response) ([]string, error) {
	points := map[string]PointPayload{}
	for label, p := range res.Points {
		points[label] = p
	}
	if res.ResponseStartPoint != nil {
		points[model.LabelStart] = *res.ResponseStartPoint
	}
	if res.ResponseEndPoint != nil {
		points[model.LabelEnd] = *res.ResponseEndPoint
	}

	labels := make([]string, 0, len(points))
	for label := range points {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var skipped []string
	for _, label := range labels {
		p := points[label]
		err := m.SetPoint(label, model.Point{Time: p.Timestamp, Value: p.Value})
		switch {
		case errors.Is(err, annotate.ErrUnknownLabel), errors.Is(err, annotate.ErrMissingReading):
			skipped = append(skipped, label)
		case err != nil:
			return skipped, err
		}
	}

	if len(res.Phases) > 0 {
		phases := make([]model.Phase, 0, len(res.Phases))
		for _, ph := range res.Phases {
			phases = append(phases, model.Phase{Name: ph.Name, Start: ph.StartTime, End: ph.EndTime})
		}
		m.SetPhases(phases)
	}
	m.SetError("")
	if len(skipped) > 0 {
		logging.Debugf("phase response skipped labels %v", skipped)
	}
	return skipped, nil
}

// Client posts analysis requests.
type Client struct {
	URL  string
	HTTP *http.Client
}

// NewClient returns a client with the given request timeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

// Analyze sends req and decodes the answer.
func (c *Client) Analyze(ctx context.Context, req Request) (Response, error) {
	if c.URL == "" {
		return Response{}, ErrNoEndpoint
	}
	body, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to encode phase request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("failed to build phase request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("failed to call phase service: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			// Best-effort body close.
			_ = cerr
		}
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return Response{}, fmt.Errorf("failed to read phase response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Response{}, fmt.Errorf("phase service returned %s: %s", resp.Status, strings.TrimSpace(string(data)))
	}
	return Decode(data)
}

// Analyzer is the service call used by Runner.
type Analyzer interface {
	Analyze(ctx context.Context, req Request) (Response, error)
}

// Runner guards a single in-flight analysis.
type Runner struct {
	analyzer Analyzer
	busy     atomic.Bool
}

// NewRunner wraps an analyzer.
func NewRunner(a Analyzer) *Runner {
	return &Runner{analyzer: a}
}

// Busy reports whether an analysis is in flight.
func (r *Runner) Busy() bool {
	return r.busy.Load()
}

// Run performs one analysis. A second call while one is in flight fails with
// ErrBusy. The call is never retried.
func (r *Runner) Run(ctx context.Context, req Request) (Response, error) {
	if !r.busy.CompareAndSwap(false, true) {
		return Response{}, ErrBusy
	}
	defer r.busy.Store(false)
	return r.analyzer.Analyze(ctx, req)
}
