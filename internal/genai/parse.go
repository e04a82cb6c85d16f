package genai

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/serviceseeking/onboard/internal/domain"
)

// Suggestion is the parsed form of a generator reply. Structured is true
// when the reply carried a JSON payload; otherwise Response holds the raw
// text and every other field is zero. It is a value type: callers branch on
// Structured instead of nil-checking.
type Suggestion struct {
	Structured   bool
	Response     string
	Services     []string
	ServiceAreas []string
	Buttons      []domain.QuickReply
	StepComplete bool
}

type rawSuggestion struct {
	Response     string   `json:"response"`
	Services     []string `json:"services"`
	ServiceAreas []string `json:"service_areas"`
	Buttons      []struct {
		Label string `json:"label"`
		Value string `json:"value"`
	} `json:"buttons"`
	StepComplete bool `json:"step_complete"`
}

var codeFence = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// ParseSuggestion interprets generator output. It tries, in order: the
// whole reply as JSON, the contents of a markdown code fence, and the
// substring from the first '{' to the last '}'. When none decodes, the
// reply is treated as unstructured text.
func ParseSuggestion(reply string) Suggestion {
	trimmed := strings.TrimSpace(reply)

	for _, candidate := range jsonCandidates(trimmed) {
		var raw rawSuggestion
		if err := json.Unmarshal([]byte(candidate), &raw); err != nil {
			continue
		}
		if raw.Response == "" && len(raw.Services) == 0 && len(raw.ServiceAreas) == 0 &&
			len(raw.Buttons) == 0 && !raw.StepComplete {
			continue
		}
		s := Suggestion{
			Structured:   true,
			Response:     raw.Response,
			Services:     raw.Services,
			ServiceAreas: raw.ServiceAreas,
			StepComplete: raw.StepComplete,
		}
		for _, b := range raw.Buttons {
			if b.Label == "" {
				continue
			}
			value := b.Value
			if value == "" {
				value = b.Label
			}
			s.Buttons = append(s.Buttons, domain.QuickReply{Label: b.Label, Value: value})
		}
		return s
	}

	return Suggestion{Response: trimmed}
}

func jsonCandidates(text string) []string {
	var candidates []string
	if strings.HasPrefix(text, "{") {
		candidates = append(candidates, text)
	}
	if m := codeFence.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, strings.TrimSpace(m[1]))
	}
	if open := strings.Index(text, "{"); open >= 0 {
		if close := strings.LastIndex(text, "}"); close > open {
			candidates = append(candidates, text[open:close+1])
		}
	}
	return candidates
}

var verdictLine = regexp.MustCompile(`(?i)IMAGE[_\s]?(\d+)\s*:\s*(WORK|SKIP)`)

// parseVerdicts reads one WORK/SKIP line per image. Images the reply does
// not mention default to SKIP.
func parseVerdicts(reply string, n int) []bool {
	verdicts := make([]bool, n)
	for _, m := range verdictLine.FindAllStringSubmatch(reply, -1) {
		idx := 0
		for _, r := range m[1] {
			idx = idx*10 + int(r-'0')
		}
		if idx >= 1 && idx <= n {
			verdicts[idx-1] = strings.EqualFold(m[2], "WORK")
		}
	}
	return verdicts
}
