package ml

import "math"

// ClassMetrics holds per-class scores on an evaluation set
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation summarizes predictions against ground truth over numClasses codes.
type Evaluation struct {
	Accuracy   float64        `json:"accuracy"`
	WeightedF1 float64        `json:"weighted_f1"`
	PerClass   []ClassMetrics `json:"per_class"`
	Confusion  [][]int        `json:"confusion"` // [true][predicted]
}

// Evaluate computes accuracy, per-class metrics and support-weighted F1.
// Classes with no true samples contribute nothing to the weighted F1, and
// undefined precision or recall counts as zero.
func Evaluate(yTrue, yPred []int, numClasses int) Evaluation {
	conf := make([][]int, numClasses)
	for i := range conf {
		conf[i] = make([]int, numClasses)
	}
	correct := 0
	for i := range yTrue {
		conf[yTrue[i]][yPred[i]]++
		if yTrue[i] == yPred[i] {
			correct++
		}
	}

	ev := Evaluation{Confusion: conf, PerClass: make([]ClassMetrics, numClasses)}
	if len(yTrue) == 0 {
		return ev
	}
	ev.Accuracy = float64(correct) / float64(len(yTrue))

	var weighted float64
	for c := range numClasses {
		tp := conf[c][c]
		support, predicted := 0, 0
		for j := range numClasses {
			support += conf[c][j]
			predicted += conf[j][c]
		}
		m := ClassMetrics{Support: support}
		if predicted > 0 {
			m.Precision = float64(tp) / float64(predicted)
		}
		if support > 0 {
			m.Recall = float64(tp) / float64(support)
		}
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		ev.PerClass[c] = m
		weighted += m.F1 * float64(support)
	}
	ev.WeightedF1 = weighted / float64(len(yTrue))
	return ev
}

// WeightedF1 is shorthand for Evaluate(...).WeightedF1
func WeightedF1(yTrue, yPred []int, numClasses int) float64 {
	return Evaluate(yTrue, yPred, numClasses).WeightedF1
}

// MeanStd returns the mean and population standard deviation
func MeanStd(v []float64) (float64, float64) {
	if len(v) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range v {
		sum += x
	}
	mean := sum / float64(len(v))
	var sq float64
	for _, x := range v {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(v)))
}
