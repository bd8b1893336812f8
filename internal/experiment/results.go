package experiment

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"potability/internal/evaluation"
)

var resultsHeader = []string{
	"Model", "Algorithm", "Split", "Accuracy", "Precision", "Recall", "F1Score",
	"WeightedF1", "Cost", "CVMean", "CVStd", "Parameters", "TrainingTimeMs",
}

// ExportResults writes one CSV row per model and split.
func ExportResults(results []*ModelResult, filename string) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(resultsHeader); err != nil {
		return err
	}

	for _, res := range results {
		cvMean, cvStd := "", ""
		if res.Search != nil {
			best := res.Search.Candidates[res.Search.BestIndex].CV
			cvMean = fmt.Sprintf("%.4f", best.Mean)
			cvStd = fmt.Sprintf("%.4f", best.Std)
		}
		for _, part := range []struct {
			name string
			m    *evaluation.ClassificationMetrics
		}{{"train", res.Train}, {"test", res.Test}} {
			row := []string{
				res.Name,
				res.Algorithm,
				part.name,
				fmt.Sprintf("%.4f", part.m.Accuracy),
				fmt.Sprintf("%.4f", part.m.MacroPrecision),
				fmt.Sprintf("%.4f", part.m.MacroRecall),
				fmt.Sprintf("%.4f", part.m.MacroF1),
				fmt.Sprintf("%.4f", part.m.WeightedF1),
				fmt.Sprintf("%.0f", part.m.Cost.Total),
				cvMean,
				cvStd,
				FormatParams(res.Params),
				fmt.Sprintf("%d", res.TrainingTime.Milliseconds()),
			}
			if err := writer.Write(row); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

// FormatParams renders parameters as "k=v" pairs in key order.
func FormatParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%v", k, params[k])
	}
	return strings.Join(parts, " ")
}
