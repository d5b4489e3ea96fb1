package train

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/sjwhitworth/golearn/evaluation"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// ErrUndefinedAUC is returned when the evaluation labels hold one class only.
var ErrUndefinedAUC = errors.New("ROC-AUC is undefined for a single class")

// ClassMetrics are the per-class rows of a classification report.
type ClassMetrics struct {
	Class     int     `json:"class"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation is the held-out performance of a model.
type Evaluation struct {
	Accuracy    float64        `json:"accuracy"`
	ROCAUC      float64        `json:"roc_auc"`
	Classes     []ClassMetrics `json:"classes"`
	MacroAvg    ClassMetrics   `json:"macro_avg"`
	WeightedAvg ClassMetrics   `json:"weighted_avg"`
	Support     int            `json:"support"`
}

// Evaluate scores probabilities against binary labels. Hard predictions use
// the 0.5 threshold.
func Evaluate(labels []int, probs []float64) (Evaluation, error) {
	if len(labels) == 0 {
		return Evaluation{}, fmt.Errorf("nothing to evaluate")
	}
	if len(labels) != len(probs) {
		return Evaluation{}, fmt.Errorf("%d labels but %d probabilities", len(labels), len(probs))
	}

	pred := make([]int, len(probs))
	for i, p := range probs {
		if p > 0.5 {
			pred[i] = 1
		}
	}

	auc, err := ROCAUC(labels, probs)
	if err != nil {
		return Evaluation{}, err
	}

	cm := ConfusionMatrix(labels, pred)
	ev := Evaluation{
		Accuracy: evaluation.GetAccuracy(cm),
		ROCAUC:   auc,
		Support:  len(labels),
	}
	for _, class := range []int{0, 1} {
		ev.Classes = append(ev.Classes, classMetrics(cm, class))
	}

	ev.MacroAvg = ClassMetrics{Class: -1, Support: ev.Support}
	ev.WeightedAvg = ClassMetrics{Class: -1, Support: ev.Support}
	for _, c := range ev.Classes {
		w := float64(c.Support) / float64(ev.Support)
		ev.MacroAvg.Precision += c.Precision / float64(len(ev.Classes))
		ev.MacroAvg.Recall += c.Recall / float64(len(ev.Classes))
		ev.MacroAvg.F1 += c.F1 / float64(len(ev.Classes))
		ev.WeightedAvg.Precision += c.Precision * w
		ev.WeightedAvg.Recall += c.Recall * w
		ev.WeightedAvg.F1 += c.F1 * w
	}
	return ev, nil
}

// ConfusionMatrix counts labels against predictions, indexed
// [actual][predicted]. Both classes are always present so absent cells read
// as zero.
func ConfusionMatrix(yTrue, yPred []int) evaluation.ConfusionMatrix {
	cm := evaluation.ConfusionMatrix{
		"0": {"0": 0, "1": 0},
		"1": {"0": 0, "1": 0},
	}
	for i := range yTrue {
		cm[strconv.Itoa(yTrue[i])][strconv.Itoa(yPred[i])]++
	}
	return cm
}

// classMetrics treats class as the positive label. golearn divides by zero
// for classes never predicted or never seen; those cells report 0.
func classMetrics(cm evaluation.ConfusionMatrix, class int) ClassMetrics {
	name := strconv.Itoa(class)
	tp := evaluation.GetTruePositives(name, cm)
	fp := evaluation.GetFalsePositives(name, cm)
	fn := evaluation.GetFalseNegatives(name, cm)

	m := ClassMetrics{Class: class, Support: int(tp + fn)}
	if tp+fp > 0 {
		m.Precision = evaluation.GetPrecision(name, cm)
	}
	if tp+fn > 0 {
		m.Recall = evaluation.GetRecall(name, cm)
	}
	if tp > 0 {
		m.F1 = evaluation.GetF1Score(name, cm)
	}
	return m
}

// ROCAUC is the area under the ROC curve of probs for the positive class.
func ROCAUC(labels []int, probs []float64) (float64, error) {
	y := make([]float64, len(probs))
	copy(y, probs)
	classes := make([]bool, len(labels))
	var pos, neg int
	for i, label := range labels {
		classes[i] = label == 1
		if classes[i] {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return math.NaN(), ErrUndefinedAUC
	}

	stat.SortWeightedLabeled(y, classes, nil)
	tpr, fpr, _ := stat.ROC(nil, y, classes, nil)
	return integrate.Trapezoidal(fpr, tpr), nil
}

// Report renders the evaluation as a plain-text classification report with
// per-class rows followed by accuracy, macro and weighted averages.
func (ev Evaluation) Report() string {
	const width = len("weighted avg")
	var b strings.Builder

	fmt.Fprintf(&b, "%*s ", width, "")
	for _, h := range []string{"precision", "recall", "f1-score", "support"} {
		fmt.Fprintf(&b, " %9s", h)
	}
	b.WriteString("\n\n")

	row := func(name string, m ClassMetrics) {
		fmt.Fprintf(&b, "%*s  %9.2f %9.2f %9.2f %9d\n", width, name, m.Precision, m.Recall, m.F1, m.Support)
	}
	for _, c := range ev.Classes {
		row(fmt.Sprint(c.Class), c)
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%*s  %9s %9s %9.2f %9d\n", width, "accuracy", "", "", ev.Accuracy, ev.Support)
	row("macro avg", ev.MacroAvg)
	row("weighted avg", ev.WeightedAvg)
	return b.String()
}
