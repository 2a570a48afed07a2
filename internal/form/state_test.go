package form

import "testing"

func TestProgress(t *testing.T) {
	v := mustValidator(t, choiceYAML) // required: firstName, sessionFrequency, terms
	st := NewState()

	if got := st.Progress(v.Rules()); got != 0 {
		t.Fatalf("empty progress = %d, want 0", got)
	}
	st.Set("firstName", "Amina")
	st.Set("nickname", "ignored") // optional fields do not count
	if got := st.Progress(v.Rules()); got != 33 {
		t.Fatalf("one of three = %d, want 33", got)
	}
	st.Set("sessionFrequency", "Daily")
	if got := st.Progress(v.Rules()); got != 67 {
		t.Fatalf("two of three = %d, want 67", got)
	}
	st.SetChecked("terms", true)
	if got := st.Progress(v.Rules()); got != 100 {
		t.Fatalf("all filled = %d, want 100", got)
	}
}

func TestProgressWithoutRequiredFields(t *testing.T) {
	rs, err := NewRuleSet(FieldRule{Name: "note"})
	if err != nil {
		t.Fatal(err)
	}
	if got := NewState().Progress(rs); got != 100 {
		t.Fatalf("progress = %d, want 100", got)
	}
}

func TestResetClearsEverything(t *testing.T) {
	st := NewState()
	st.Set("name", "x")
	st.SetChecked("terms", true)
	st.setError("name", "bad")
	st.Reset()

	if st.Value("name") != "" || st.Checked("terms") || st.HasError("name") {
		t.Fatalf("state not reset: %+v", st)
	}
}

func TestErrorsReturnsCopy(t *testing.T) {
	st := NewState()
	st.setError("a", "x")
	m := st.Errors()
	m["b"] = "y"
	if st.HasError("b") {
		t.Fatal("Errors must not expose the internal map")
	}
}
