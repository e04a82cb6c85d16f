package flow

import "strings"

var affirmatives = []string{
	"yes", "yep", "yeah", "yea", "correct", "confirm", "confirmed",
	"that's right", "thats right", "that's it", "thats it", "sure",
	"ok", "okay", "looks good", "all good", "done", "sounds good",
}

var negatives = []string{
	"no", "nope", "nah", "not right", "wrong", "that's not", "thats not",
	"none of", "neither", "incorrect",
}

func isAffirmative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, a := range affirmatives {
		if t == a || strings.HasPrefix(t, a+" ") || strings.HasPrefix(t, a+",") || strings.HasPrefix(t, a+".") || strings.HasPrefix(t, a+"!") {
			return true
		}
	}
	return false
}

func isNegative(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, n := range negatives {
		if t == n || strings.HasPrefix(t, n+" ") || strings.HasPrefix(t, n+",") || strings.HasPrefix(t, n+".") {
			return true
		}
	}
	return false
}

// mentions reports whether the text contains the phrase, case-insensitively.
func mentions(text, phrase string) bool {
	return phrase != "" && strings.Contains(strings.ToLower(text), strings.ToLower(phrase))
}

// splitList breaks free text into service-like items on commas, newlines,
// "and", and ampersands.
func splitList(text string) []string {
	replacer := strings.NewReplacer("\n", ",", ";", ",", " and ", ",", " & ", ",", " plus ", ",")
	var items []string
	for _, part := range strings.Split(replacer.Replace(strings.ToLower(text)), ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			items = append(items, part)
		}
	}
	return items
}
