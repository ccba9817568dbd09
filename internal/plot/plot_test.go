package plot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemdqm/hvlumi"
)

func TestRun(t *testing.T) {
	dir := t.TempDir()
	grid := []int64{0, 20000, 40000, 60000}
	report := hvlumi.NewReport([]hvlumi.ChamberResult{
		{
			ID:    "GE11-P-01L1",
			Valid: true,
			Currents: hvlumi.Currents{
				Mon: []float64{700, 700, 650, 700},
				Set: []float64{700, 700, 700, 700},
			},
			Intervals:       []hvlumi.BadInterval{{Start: 40000, End: 40000}},
			BadLumisections: []int{2},
		},
		{ID: "GE11-P-02L1", BadLumisections: []int{hvlumi.InvalidLumisection}},
	})

	files, err := Run(filepath.Join(dir, "plots"), grid, report)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "plots", "GE11-P-01L1.png")}, files)

	info, err := os.Stat(files[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestChamberRejectsMismatchedCurrents(t *testing.T) {
	_, err := Chamber(t.TempDir(), []int64{0, 1}, hvlumi.ChamberResult{
		ID:       "GE11-P-01L1",
		Valid:    true,
		Currents: hvlumi.Currents{Mon: []float64{1}, Set: []float64{1}},
	})
	assert.ErrorContains(t, err, "2 grid points")
}

func TestInIntervals(t *testing.T) {
	ivs := []hvlumi.BadInterval{{Start: 10, End: 30}}
	assert.True(t, inIntervals(10, ivs))
	assert.True(t, inIntervals(30, ivs))
	assert.False(t, inIntervals(31, ivs))
	assert.False(t, inIntervals(5, nil))
}
