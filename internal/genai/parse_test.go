package genai

import (
	"reflect"
	"testing"

	"github.com/serviceseeking/onboard/internal/domain"
)

func TestParseSuggestionWholeJSON(t *testing.T) {
	reply := `{"response": "Got it.", "services": ["Blocked Drains"], "step_complete": true}`
	s := ParseSuggestion(reply)
	if !s.Structured {
		t.Fatal("Expected a structured suggestion")
	}
	if s.Response != "Got it." {
		t.Errorf("Expected response text, got %q", s.Response)
	}
	if !reflect.DeepEqual(s.Services, []string{"Blocked Drains"}) {
		t.Errorf("Expected services parsed, got %v", s.Services)
	}
	if !s.StepComplete {
		t.Error("Expected step_complete true")
	}
}

func TestParseSuggestionCodeFence(t *testing.T) {
	reply := "Here you go:\n```json\n{\"response\": \"Which of these do you offer?\"}\n```"
	s := ParseSuggestion(reply)
	if !s.Structured {
		t.Fatal("Expected the fenced JSON to parse")
	}
	if s.Response != "Which of these do you offer?" {
		t.Errorf("Expected fenced response, got %q", s.Response)
	}
}

func TestParseSuggestionBraceSubstring(t *testing.T) {
	reply := `Sure! {"response": "Done", "service_areas": ["Hills District"]} Hope that helps.`
	s := ParseSuggestion(reply)
	if !s.Structured {
		t.Fatal("Expected the embedded JSON to parse")
	}
	if !reflect.DeepEqual(s.ServiceAreas, []string{"Hills District"}) {
		t.Errorf("Expected service areas parsed, got %v", s.ServiceAreas)
	}
}

func TestParseSuggestionUnstructuredFallback(t *testing.T) {
	s := ParseSuggestion("  What services do you offer?  ")
	if s.Structured {
		t.Error("Expected plain text to stay unstructured")
	}
	if s.Response != "What services do you offer?" {
		t.Errorf("Expected trimmed raw text, got %q", s.Response)
	}
}

func TestParseSuggestionRejectsEmptyDecode(t *testing.T) {
	// Valid JSON with none of the expected fields must not count as
	// structured output.
	s := ParseSuggestion(`{"unrelated": 1}`)
	if s.Structured {
		t.Error("Expected an all-zero decode to fall through to raw text")
	}
}

func TestParseSuggestionButtonValueFallback(t *testing.T) {
	reply := `{"response": "Pick one", "buttons": [{"label": "Yes", "value": "confirm"}, {"label": "No"}, {"value": "orphan"}]}`
	s := ParseSuggestion(reply)
	want := []domain.QuickReply{
		{Label: "Yes", Value: "confirm"},
		{Label: "No", Value: "No"},
	}
	if !reflect.DeepEqual(s.Buttons, want) {
		t.Errorf("Expected %v, got %v", want, s.Buttons)
	}
}

func TestParseVerdicts(t *testing.T) {
	reply := "IMAGE_1: WORK\nIMAGE_2: skip\nimage 3: work\n"
	got := parseVerdicts(reply, 4)
	want := []bool{true, false, true, false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParseVerdictsIgnoresOutOfRange(t *testing.T) {
	got := parseVerdicts("IMAGE_9: WORK", 2)
	want := []bool{false, false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected out-of-range indices ignored, got %v", got)
	}
}
