// Package csvdata loads sensor logs from CSV files.
package csvdata

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/sensorview/internal/model"
)

// ErrNoData is returned for files without a header and at least one row.
var ErrNoData = errors.New("no data rows")

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
}

// Load reads a CSV file into a dataset.
func Load(path string) (*model.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()
	ds, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return ds, nil
}

// Parse reads a CSV stream. The first column is the timestamp; every other
// column is a channel. Lines starting with '#' are comments, and a
// "# range=<number>" comment sets the measurement range.
func Parse(r io.Reader) (*model.Dataset, error) {
	ds := &model.Dataset{}
	var body bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	lines := []int{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if v, ok := parseRangeComment(trimmed); ok {
				ds.MeasurementRange = v
			}
			continue
		}
		if trimmed == "" {
			continue
		}
		body.WriteString(line)
		body.WriteByte('\n')
		lines = append(lines, lineNo)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}

	reader := csv.NewReader(&body)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	if len(records) < 2 {
		return nil, ErrNoData
	}

	header := records[0]
	if len(header) < 2 {
		return nil, fmt.Errorf("header needs a timestamp and at least one channel, got %d columns", len(header))
	}
	for i, h := range header[1:] {
		name, unit := splitHeader(h)
		ds.Channels = append(ds.Channels, model.Channel{ID: i, Name: name, Unit: unit})
	}

	n := len(ds.Channels)
	for i, rec := range records[1:] {
		line := lines[i+1]
		ts, err := parseTime(rec[0])
		if err != nil {
			return nil, fmt.Errorf("invalid timestamp at line %d: %w", line, err)
		}
		values := make([]float64, n)
		for c := 0; c < n; c++ {
			if c+1 >= len(rec) {
				values[c] = model.Missing
				continue
			}
			v, err := parseValue(rec[c+1])
			if err != nil {
				return nil, fmt.Errorf("invalid value at line %d column %d: %w", line, c+2, err)
			}
			values[c] = v
		}
		ds.Samples = append(ds.Samples, model.Sample{Time: ts, Values: values})
	}
	ds.SortSamples()
	return ds, nil
}

// splitHeader turns "pH (pH)" or "Turbidity [NTU]" into name and unit.
func splitHeader(h string) (string, string) {
	h = strings.TrimSpace(h)
	for _, pair := range [][2]string{{"(", ")"}, {"[", "]"}} {
		if !strings.HasSuffix(h, pair[1]) {
			continue
		}
		open := strings.LastIndex(h, pair[0])
		if open <= 0 {
			continue
		}
		name := strings.TrimSpace(h[:open])
		unit := strings.TrimSpace(h[open+1 : len(h)-1])
		if name != "" {
			return name, unit
		}
	}
	return h, ""
}

func parseRangeComment(line string) (float64, bool) {
	body := strings.TrimSpace(strings.TrimPrefix(line, "#"))
	key, value, ok := strings.Cut(body, "=")
	if !ok || !strings.EqualFold(strings.TrimSpace(key), "range") {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognised timestamp %q", raw)
	}
	return time.Unix(0, 0).UTC().Add(time.Duration(secs * float64(time.Second))), nil
}

func parseValue(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "-", "nan", "null":
		return model.Missing, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// GuessSensor picks a sensor type from the first channel name.
func GuessSensor(ds *model.Dataset) model.SensorType {
	if len(ds.Channels) == 0 {
		return model.SensorDefault
	}
	name := strings.ToLower(ds.Channels[0].Name + " " + ds.Channels[0].Unit)
	switch {
	case strings.Contains(name, "ph"):
		return model.SensorPH
	case strings.Contains(name, "turb") || strings.Contains(name, "ntu"):
		return model.SensorTurbidity
	case strings.Contains(name, "chlor"):
		return model.SensorChlorine
	case strings.Contains(name, "oxygen") || strings.HasPrefix(name, "do"):
		return model.SensorDO
	case strings.Contains(name, "suspended") || strings.HasPrefix(name, "ss"):
		return model.SensorSS
	default:
		return model.SensorDefault
	}
}
