// Package output writes the run summary table and the bad-lumisection mapping.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gemdqm/hvlumi"
)

// SummaryHeader is the column layout of HVSummary_<run>.csv. The leading empty column
// is the row index.
var SummaryHeader = []string{
	"",
	"ID",
	"MonEquivalentCurrent_mean",
	"MonEquivalentCurrent_std",
	"SetEquivalentCurrent_mean",
	"SetEquivalentCurrent_std",
}

// SummaryPath returns the summary file name of run inside dir.
func SummaryPath(dir string, run int) string {
	return filepath.Join(dir, fmt.Sprintf("HVSummary_%d.csv", run))
}

// BadLumiPath returns the bad-lumisection file name of run inside dir.
func BadLumiPath(dir string, run int) string {
	return filepath.Join(dir, fmt.Sprintf("BadHVLumi_%d.json", run))
}

// WriteSummary writes one CSV row per valid chamber.
func WriteSummary(w io.Writer, rows []hvlumi.ChamberSummary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SummaryHeader); err != nil {
		return fmt.Errorf("error writing summary header: %w", err)
	}
	for i, r := range rows {
		record := []string{
			strconv.Itoa(i),
			r.ID,
			formatFloat(r.MeanMon),
			formatFloat(r.StdMon),
			formatFloat(r.MeanSet),
			formatFloat(r.StdSet),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("error writing summary row %s: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// undefined statistics (e.g. std of a single point) are left empty
func formatFloat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteBadLumisections writes the chamber -> lumisections mapping as JSON.
func WriteBadLumisections(w io.Writer, bad map[string][]int) error {
	if err := json.NewEncoder(w).Encode(bad); err != nil {
		return fmt.Errorf("failed to encode bad lumisections: %w", err)
	}
	return nil
}

// WriteRun stores both artifacts of run in dir and returns their paths.
func WriteRun(dir string, run int, report *hvlumi.Report) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output folder: %w", err)
	}

	summary := SummaryPath(dir, run)
	if err := writeFile(summary, func(w io.Writer) error { return WriteSummary(w, report.Summary) }); err != nil {
		return nil, err
	}
	badLumi := BadLumiPath(dir, run)
	if err := writeFile(badLumi, func(w io.Writer) error { return WriteBadLumisections(w, report.BadLumisections) }); err != nil {
		return nil, err
	}
	return []string{summary, badLumi}, nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}
