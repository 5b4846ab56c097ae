package inference

import (
	"math"
	"sort"
)

// softmax converts logits to probabilities.
func softmax(logits []float64) []float64 {
	if len(logits) == 0 {
		return nil
	}

	maxLogit := logits[0]
	for _, v := range logits[1:] {
		if v > maxLogit {
			maxLogit = v
		}
	}

	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(v - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// argmax returns the index of the largest value; the first one wins ties.
func argmax(values []float64) int {
	best := 0
	for i, v := range values {
		if v > values[best] {
			best = i
		}
	}
	return best
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// rank pairs probabilities with class names and returns the top k,
// highest first, ties broken by name.
func rank(classes []string, probs []float64, k int) []RankedCrop {
	ranked := make([]RankedCrop, len(probs))
	for i, p := range probs {
		ranked[i] = RankedCrop{Crop: classes[i], Probability: round4(p)}
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Probability != ranked[j].Probability {
			return ranked[i].Probability > ranked[j].Probability
		}
		return ranked[i].Crop < ranked[j].Crop
	})
	if k > 0 && k < len(ranked) {
		ranked = ranked[:k]
	}
	return ranked
}
