// Package chambers lists the GEM HV units and parses their DCS tags.
//
// Unit IDs follow the HV monitoring naming:
//
//	GE11-<endcap>-<chamber>L<layer>
//	GE21-<endcap>-<chamber>L<layer><module>
//
// with module A, B, C, D for M1..M4.
package chambers

import (
	"fmt"
	"strings"

	"github.com/gemdqm/hvlumi"
)

var ge21Chambers = []string{"GE21-P-16L1", "GE21-M-16L1", "GE21-M-18L1"}

// GE11 returns the 144 GE1/1 units, negative endcap first.
func GE11() []string {
	ids := make([]string, 0, 144)
	for _, endcap := range []string{"M", "P"} {
		for layer := 1; layer <= 2; layer++ {
			for ch := 1; ch <= 36; ch++ {
				ids = append(ids, fmt.Sprintf("GE11-%s-%02dL%d", endcap, ch, layer))
			}
		}
	}
	return ids
}

// GE21 returns the demonstrator GE2/1 modules.
func GE21() []string {
	ids := make([]string, 0, len(ge21Chambers)*4)
	for _, ch := range ge21Chambers {
		for _, module := range []string{"A", "B", "C", "D"} {
			ids = append(ids, ch+module)
		}
	}
	return ids
}

// All returns every HV unit, GE1/1 first.
func All() []string {
	return append(GE11(), GE21()...)
}

// Tag builds the DCS tag of an electrode, e.g. GE11-P-16L1:HV:DRIFT.
func Tag(unit string, el hvlumi.Electrode) string {
	return unit + ":HV:" + el.String()
}

// ParseTag splits a DCS tag into unit and electrode.
func ParseTag(tag string) (string, hvlumi.Electrode, error) {
	parts := strings.Split(tag, ":")
	if len(parts) < 2 || parts[0] == "" {
		return "", 0, fmt.Errorf("malformed DCS tag %q", tag)
	}
	el, err := hvlumi.ParseElectrode(parts[len(parts)-1])
	if err != nil {
		return "", 0, fmt.Errorf("tag %q: %w", tag, err)
	}
	return parts[0], el, nil
}

// ParseTarget splits a DCS response target such as "vMon,GE11-P-16L1:HV:DRIFT".
func ParseTarget(target string) (string, hvlumi.Electrode, hvlumi.Metric, error) {
	metricName, tag, ok := strings.Cut(target, ",")
	if !ok {
		return "", 0, 0, fmt.Errorf("malformed DCS target %q", target)
	}
	m, err := hvlumi.ParseMetric(metricName)
	if err != nil {
		return "", 0, 0, fmt.Errorf("target %q: %w", target, err)
	}
	unit, el, err := ParseTag(tag)
	if err != nil {
		return "", 0, 0, err
	}
	return unit, el, m, nil
}
