package evaluation

import (
	"fmt"
	"strings"
)

const reportDigits = 2

// FormatReport renders per-class and averaged scores as a fixed-width
// classification report. targetNames may be nil to use the class labels.
func FormatReport(m *ClassificationMetrics, targetNames []string) string {
	names := make([]string, len(m.Classes))
	for i, class := range m.Classes {
		if i < len(targetNames) {
			names[i] = targetNames[i]
		} else {
			names[i] = fmt.Sprint(class)
		}
	}

	width := len("weighted avg")
	for _, name := range names {
		if len(name) > width {
			width = len(name)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%*s  %9s %9s %9s %9s\n\n", width, "", "precision", "recall", "f1-score", "support")

	total := 0
	for i, class := range m.Classes {
		cm := m.PerClassMetrics[class]
		total += cm.Support
		writeReportRow(&b, width, names[i], cm.Precision, cm.Recall, cm.F1Score, cm.Support)
	}
	b.WriteString("\n")

	fmt.Fprintf(&b, "%*s  %9s %9s %9.*f %9d\n", width, "accuracy", "", "", reportDigits, m.Accuracy, total)
	writeReportRow(&b, width, "macro avg", m.MacroPrecision, m.MacroRecall, m.MacroF1, total)
	writeReportRow(&b, width, "weighted avg", m.WeightedPrecision, m.WeightedRecall, m.WeightedF1, total)
	return b.String()
}

func writeReportRow(b *strings.Builder, width int, name string, precision, recall, f1 float64, support int) {
	fmt.Fprintf(b, "%*s  %9.*f %9.*f %9.*f %9d\n", width, name,
		reportDigits, precision, reportDigits, recall, reportDigits, f1, support)
}

// FormatConfusionMatrix renders the matrix with actual classes as rows.
func FormatConfusionMatrix(m *ClassificationMetrics) string {
	var b strings.Builder
	b.WriteString("actual\\pred")
	for _, class := range m.Classes {
		fmt.Fprintf(&b, " %6d", class)
	}
	b.WriteString("\n")
	for i, class := range m.Classes {
		fmt.Fprintf(&b, "%11d", class)
		for _, n := range m.ConfusionMatrix[i] {
			fmt.Fprintf(&b, " %6d", n)
		}
		b.WriteString("\n")
	}
	return b.String()
}
