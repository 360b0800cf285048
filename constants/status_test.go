package constants

import "testing"

func TestParseTaskStatus(t *testing.T) {
	cases := map[string]TaskStatus{
		"completed":   TaskStatusCompleted,
		" PROCESSING": TaskStatusProcessing,
		"Error":       TaskStatusError,
		"weird":       TaskStatus("WEIRD"),
	}
	for raw, want := range cases {
		if got := ParseTaskStatus(raw); got != want {
			t.Errorf("ParseTaskStatus(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []TaskStatus{TaskStatusCompleted, TaskStatusError} {
		if !s.Terminal() {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []TaskStatus{TaskStatusStarting, TaskStatusProcessing, TaskStatus("UNKNOWN")} {
		if s.Terminal() {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestEntityFolder(t *testing.T) {
	if got := EntityDeforestationMapBiomas.Folder(); got != "DeforestationAnalysisMapBiomas" {
		t.Errorf("unexpected folder %q", got)
	}
	if got := EntityDeforestationProdes.Folder(); got != string(EntityDeforestationProdes) {
		t.Errorf("unexpected folder %q", got)
	}
	if !KnownEntityType("DeforestationAnalysis") || KnownEntityType("Nope") {
		t.Error("KnownEntityType misclassified a value")
	}
}
