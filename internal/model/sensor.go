package model

import (
	"fmt"
	"strings"
)

// SensorType selects the calibration label set of a job.
type SensorType string

const (
	SensorPH        SensorType = "ph"
	SensorSS        SensorType = "ss"
	SensorDO        SensorType = "do"
	SensorTurbidity SensorType = "turbidity"
	SensorChlorine  SensorType = "chlorine"
	SensorDefault   SensorType = "default"
)

var (
	phLabels      = []string{"Z1", "S1", "Z2", "S2", "Z3", "S3", "Z4", "S4", "Z5", "S5", "M1", "ST", "EN"}
	ssLabels      = []string{"Z1", "S1", "Z2", "S2", "Z3", "S3", "M1", "M2", "M3", "ST", "EN"}
	doLabels      = []string{"Z1", "Z2", "S1", "S2", "Z3", "Z4", "S3", "S4", "ST", "EN"}
	defaultLabels = []string{"Z1", "Z2", "S1", "S2", "Z3", "Z4", "S3", "S4", "Z5", "S5", "M1", "ST", "EN"}
)

// Response labels shared by every sensor type.
const (
	LabelStart = "ST"
	LabelEnd   = "EN"
	LabelSpan1 = "S1"
)

// ParseSensorType maps user input to a SensorType.
func ParseSensorType(raw string) (SensorType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "default":
		return SensorDefault, nil
	case "ph":
		return SensorPH, nil
	case "ss":
		return SensorSS, nil
	case "do":
		return SensorDO, nil
	case "turbidity", "tu", "ntu":
		return SensorTurbidity, nil
	case "chlorine", "cl":
		return SensorChlorine, nil
	default:
		return "", fmt.Errorf("unknown sensor type %q (want ph, ss, do, turbidity, chlorine or default)", raw)
	}
}

// Labels returns the ordered sequential placement labels for the sensor.
func (s SensorType) Labels() []string {
	return append([]string(nil), s.labels()...)
}

// LabelIndex returns the position of label in the sensor's order, or -1.
func (s SensorType) LabelIndex(label string) int {
	for i, l := range s.labels() {
		if l == label {
			return i
		}
	}
	return -1
}

// HasLabel reports whether label is valid for the sensor.
func (s SensorType) HasLabel(label string) bool {
	return s.LabelIndex(label) >= 0
}

func (s SensorType) labels() []string {
	switch s {
	case SensorPH:
		return phLabels
	case SensorSS:
		return ssLabels
	case SensorDO:
		return doLabels
	default:
		return defaultLabels
	}
}
