package analyzer

import (
	"fmt"
	"sort"
	"time"
)

// Disagreement records one field where analyzer outputs diverge
type Disagreement struct {
	Field  string              `json:"field"`
	Values []DisagreementValue `json:"values"`
}

// DisagreementValue is one analyzer's value for a contested field
type DisagreementValue struct {
	Analyzer   string  `json:"analyzer"`
	Value      any     `json:"value"`
	Confidence float64 `json:"confidence"`
}

// DeliberationResult folds multiple analyzer outputs about one entity into
// the fields they agree on and the fields they contest
type DeliberationResult struct {
	Consensus       map[string]any `json:"consensus"`
	Disagreements   []Disagreement `json:"disagreements"`
	FinalConfidence float64        `json:"final_confidence"`
	Timestamp       time.Time      `json:"timestamp"`
}

// Deliberate compares outputs field by field. A field is consensus when
// every output that carries it holds the same value; otherwise it is
// surfaced as a disagreement with each analyzer's value and confidence.
// The final confidence is the mean of the output confidences.
func Deliberate(outputs []*Output) DeliberationResult {
	result := DeliberationResult{
		Consensus: map[string]any{},
		Timestamp: time.Now().UTC(),
	}
	if len(outputs) == 0 {
		return result
	}
	if len(outputs) == 1 {
		result.Consensus = outputs[0].Data
		result.FinalConfidence = outputs[0].Confidence
		return result
	}

	keys := map[string]struct{}{}
	for _, o := range outputs {
		for k := range o.Data {
			keys[k] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(keys))
	for k := range keys {
		ordered = append(ordered, k)
	}
	sort.Strings(ordered)

	for _, key := range ordered {
		var values []DisagreementValue
		seen := map[string]struct{}{}
		for _, o := range outputs {
			v, ok := o.Data[key]
			if !ok {
				continue
			}
			seen[fmt.Sprintf("%v", v)] = struct{}{}
			values = append(values, DisagreementValue{Analyzer: o.AnalyzerName, Value: v, Confidence: o.Confidence})
		}
		if len(seen) == 1 {
			result.Consensus[key] = values[0].Value
		} else {
			result.Disagreements = append(result.Disagreements, Disagreement{Field: key, Values: values})
		}
	}

	total := 0.0
	for _, o := range outputs {
		total += o.Confidence
	}
	result.FinalConfidence = total / float64(len(outputs))

	return result
}
