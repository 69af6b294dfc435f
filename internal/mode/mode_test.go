package mode

import "testing"

func TestInitialState(t *testing.T) {
	c := NewController()
	st := c.State()
	if st.Mode != Chat {
		t.Fatalf("initial mode = %s, want chat", st.Mode)
	}
	if st.EvaluationOpen {
		t.Fatalf("evaluation overlay should start closed")
	}
	if st.HintVisible {
		t.Fatalf("chat mode has no hint panel")
	}
}

func TestSelectClosesEvaluation(t *testing.T) {
	c := NewController()
	c.ToggleEvaluation()
	if !c.EvaluationOpen() {
		t.Fatalf("toggle should open the overlay")
	}
	st := c.Select(Generate)
	if st.Mode != Generate {
		t.Fatalf("mode = %s, want generate", st.Mode)
	}
	if st.EvaluationOpen {
		t.Fatalf("selecting a primary mode must close the overlay")
	}
	if !st.HintVisible || st.HintText == "" {
		t.Fatalf("generate mode should expose a hint panel")
	}
}

func TestToggleEvaluationKeepsPrimaryMode(t *testing.T) {
	c := NewController()
	c.Select(Analyze)
	before := c.State()
	after := c.ToggleEvaluation()
	if after.Mode != Analyze {
		t.Fatalf("overlay toggle must not change the primary mode")
	}
	if after.Placeholder != before.Placeholder || after.HintText != before.HintText {
		t.Fatalf("overlay toggle must not clear mode UI state")
	}
	if !after.EvaluationOpen {
		t.Fatalf("overlay should be open after one toggle")
	}
	if c.ToggleEvaluation().EvaluationOpen {
		t.Fatalf("overlay should close after a second toggle")
	}
}

func TestPlaceholdersAreDeterministicPerMode(t *testing.T) {
	c := NewController()
	for _, m := range []Mode{Chat, Generate, Analyze} {
		first := c.Select(m)
		second := c.Select(m)
		if first.Placeholder == "" || first.Placeholder != second.Placeholder {
			t.Fatalf("placeholder for %s should be fixed, got %q / %q", m, first.Placeholder, second.Placeholder)
		}
	}
	if !c.Select(Analyze).UploadRequested {
		t.Fatalf("analyze mode should request the upload affordance")
	}
}

func TestUnknownModeIgnored(t *testing.T) {
	c := NewController()
	c.Select(Generate)
	st := c.Select(Mode("bogus"))
	if st.Mode != Generate {
		t.Fatalf("unknown mode should leave the controller untouched")
	}
}

func TestReset(t *testing.T) {
	c := NewController()
	c.Select(Generate)
	c.ToggleEvaluation()
	st := c.Reset()
	if st.Mode != Chat || st.EvaluationOpen {
		t.Fatalf("reset should restore chat with the overlay closed")
	}
}
