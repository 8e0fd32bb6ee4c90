package generation

import "strings"

// stopMarkers are turn boundaries a model may hallucinate after its answer.
// Output is truncated at the earliest occurrence.
var stopMarkers = []string{"\nQuestion:", "\nQ:", "\nUser:"}

// Clean isolates the assistant's reply from raw model output: strips the
// prompt echo prefix (common for completion-style models), truncates at the
// first turn-boundary marker, and trims surrounding whitespace. Pure string
// transform; applying it twice yields the same result as once.
func Clean(raw, prompt string) string {
	answer := raw
	for {
		next := cleanOnce(answer, prompt)
		if next == answer {
			return next
		}
		answer = next
	}
}

func cleanOnce(raw, prompt string) string {
	answer := raw
	if prompt != "" && strings.HasPrefix(answer, prompt) {
		answer = answer[len(prompt):]
	}

	cut := len(answer)
	for _, marker := range stopMarkers {
		if idx := strings.Index(answer, marker); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	answer = answer[:cut]

	return strings.TrimSpace(answer)
}
