package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/synaptiq-labs/neurobatch/pkg/recording"
)

// Built-in analysis function names.
const (
	// SignalStatsName computes per-recording signal statistics.
	SignalStatsName = "signal_stats"
	// CompareChannelsName computes the pairwise channel comparison matrix.
	CompareChannelsName = "compare_channels"
)

// ErrNoSignals indicates an analysis that requires loaded signal data
// ran against a recording without any.
var ErrNoSignals = errors.New("recording has no loaded signals")

// ErrNoSamples indicates loaded signal channels that all carry zero
// samples, leaving nothing to aggregate.
var ErrNoSamples = errors.New("recording signals contain no samples")

// compareDirName is the per-component output folder for comparison
// matrices under sim_results.
const compareDirName = "compare"

// RegisterBuiltins adds the built-in analysis functions and the "none"
// argument resolver to reg.
func RegisterBuiltins(reg *Registry) error {
	err := reg.RegisterFn(SignalStatsName, SignalStats)
	if err != nil {
		return err
	}

	err = reg.RegisterFn(CompareChannelsName, CompareChannels)
	if err != nil {
		return err
	}

	return reg.RegisterArgsFn("none", func(_ *recording.Recording) (map[string][]any, error) {
		return map[string][]any{}, nil
	})
}

// SignalStats returns mean, min, max and channel count over all loaded
// signal samples of the recording. Channels may be empty; a recording
// whose channels are all empty fails with ErrNoSamples.
func SignalStats(_ context.Context, rec *recording.Recording, _ ...any) (any, error) {
	if len(rec.Signals) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSignals, rec.SourceFile)
	}

	var (
		sum   float64
		count int
		low   float64
		high  float64
	)

	for _, sig := range rec.Signals {
		for _, s := range sig.Samples {
			if count == 0 {
				low, high = s, s
			}

			sum += s
			count++

			if s < low {
				low = s
			}

			if s > high {
				high = s
			}
		}
	}

	if count == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSamples, rec.SourceFile)
	}

	return map[string]any{
		"mean":     sum / float64(count),
		"min":      low,
		"max":      high,
		"channels": len(rec.Signals),
	}, nil
}

// NormalizedDiff is the symmetric normalized squared difference of two
// equal-length sample slices: MSE of the pair over the mean of their
// energies.
func NormalizedDiff(s1, s2 []float64, sq1, sq2 float64) float64 {
	var num float64

	for i := range s1 {
		d := s1[i] - s2[i]
		num += d * d
	}

	denom := (sq1 + sq2) / 2
	if denom == 0 {
		return 0
	}

	return num / denom
}

// CompareChannels computes the pairwise normalized difference matrix
// over all signal channels and writes it as a fixed-precision CSV to
// <outBase>/sim_results/compare/<name>_compare.csv. The optional first
// argument overrides outBase; the default is the recording's directory.
// Returns the channel count and the mean off-diagonal difference.
func CompareChannels(_ context.Context, rec *recording.Recording, args ...any) (any, error) {
	if len(rec.Signals) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSignals, rec.SourceFile)
	}

	outBase := filepath.Dir(rec.SourceFile)
	if len(args) > 0 {
		if s, ok := args[0].(string); ok && s != "" {
			outBase = s
		}
	}

	n := len(rec.Signals)

	sumSquares := make([]float64, n)
	for i, sig := range rec.Signals {
		for _, s := range sig.Samples {
			sumSquares[i] += s * s
		}
	}

	matrix := make([][]float64, n)

	var offDiagSum float64

	for i := 0; i < n; i++ {
		matrix[i] = make([]float64, n)

		for j := 0; j < n; j++ {
			d := NormalizedDiff(rec.Signals[i].Samples, rec.Signals[j].Samples, sumSquares[i], sumSquares[j])
			matrix[i][j] = d

			if i != j {
				offDiagSum += d
			}
		}
	}

	outName := rec.NameForSave(outBase) + "_compare.csv"
	outPath := filepath.Join(outBase, "sim_results", compareDirName, outName)

	err := writeMatrix(outPath, matrix)
	if err != nil {
		return nil, err
	}

	meanDiff := 0.0
	if n > 1 {
		meanDiff = offDiagSum / float64(n*(n-1))
	}

	return map[string]any{"channels": n, "mean_diff": meanDiff, "matrix_file": outPath}, nil
}

// writeMatrix writes a square matrix as CSV with a channel-index header
// and two-decimal cells.
func writeMatrix(path string, matrix [][]float64) error {
	err := os.MkdirAll(filepath.Dir(path), 0o750)
	if err != nil {
		return fmt.Errorf("create comparison dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create comparison file: %w", err)
	}
	defer file.Close()

	for i := range matrix {
		if i == 0 {
			for j := range matrix {
				if j > 0 {
					fmt.Fprint(file, ",")
				}

				fmt.Fprint(file, strconv.Itoa(j))
			}

			fmt.Fprintln(file)
		}

		for j, v := range matrix[i] {
			if j > 0 {
				fmt.Fprint(file, ",")
			}

			fmt.Fprintf(file, "%.2f", v)
		}

		fmt.Fprintln(file)
	}

	return nil
}
