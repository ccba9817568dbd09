// Package hvlumi finds the periods of a run during which the high voltage of a
// GEM chamber did not follow its set-point, and maps them onto lumisections.
package hvlumi

import (
	"fmt"
	"strings"
)

const (
	// DividerResistance converts the summed electrode voltages (V) into the
	// equivalent divider current (uA).
	DividerResistance = 4.7

	DefaultGranularity           int64   = 20000 // ms
	DefaultThreshold             float64 = 5     // uA
	DefaultSecondsPerLumisection float64 = 23.3

	// InvalidLumisection is the whole-chamber marker used when a chamber lacks data.
	InvalidLumisection = -1
)

// Electrode is one of the seven HV channels of a chamber.
type Electrode int

const (
	DRIFT Electrode = iota
	G1TOP
	G2TOP
	G3TOP
	G1BOT
	G2BOT
	G3BOT
)

var electrodeNames = [...]string{"DRIFT", "G1TOP", "G2TOP", "G3TOP", "G1BOT", "G2BOT", "G3BOT"}

// AllElectrodes lists the electrodes in DCS order.
var AllElectrodes = []Electrode{DRIFT, G1TOP, G2TOP, G3TOP, G1BOT, G2BOT, G3BOT}

func (e Electrode) String() string {
	if e < 0 || int(e) >= len(electrodeNames) {
		return fmt.Sprintf("Electrode(%d)", int(e))
	}
	return electrodeNames[e]
}

// ParseElectrode accepts the DCS spelling of an electrode, case-insensitive.
func ParseElectrode(s string) (Electrode, error) {
	u := strings.ToUpper(strings.TrimSpace(s))
	for i, name := range electrodeNames {
		if name == u {
			return Electrode(i), nil
		}
	}
	return 0, fmt.Errorf("unknown electrode %q", s)
}

// Metric distinguishes monitored from configured values.
type Metric int

const (
	Mon Metric = iota
	Set
)

func (m Metric) String() string {
	switch m {
	case Mon:
		return "vMon"
	case Set:
		return "v0Set"
	}
	return fmt.Sprintf("Metric(%d)", int(m))
}

// ParseMetric maps the DCS monitorable names onto a Metric.
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "vmon", "mon":
		return Mon, nil
	case "v0set", "vset", "set":
		return Set, nil
	}
	return 0, fmt.Errorf("unknown metric %q", s)
}

// Sample is a single archived HV reading.
type Sample struct {
	Chamber     string
	Electrode   Electrode
	Metric      Metric
	Value       float64 // V
	Timestamp   int64   // ms since epoch, UTC
	Lumisection int     // as recorded at ingestion
}

// BadInterval is a closed range of grid timestamps in ms.
type BadInterval struct {
	Start int64
	End   int64
}

// Width returns End-Start in ms.
func (b BadInterval) Width() int64 {
	return b.End - b.Start
}

// Currents holds the equivalent divider currents of a chamber on the time grid.
type Currents struct {
	Mon []float64
	Set []float64
}

// ChamberResult is the outcome of analysing a single chamber.
type ChamberResult struct {
	ID              string
	MeanMon         float64
	StdMon          float64
	MeanSet         float64
	StdSet          float64
	BadLumisections []int
	Valid           bool

	Intervals []BadInterval
	Currents  Currents
	Err       error
}

// ChamberSummary is one row of the run summary table.
type ChamberSummary struct {
	ID      string
	MeanMon float64
	StdMon  float64
	MeanSet float64
	StdSet  float64
}

// Summary returns the table row for a valid result.
func (r ChamberResult) Summary() ChamberSummary {
	return ChamberSummary{
		ID:      r.ID,
		MeanMon: r.MeanMon,
		StdMon:  r.StdMon,
		MeanSet: r.MeanSet,
		StdSet:  r.StdSet,
	}
}
