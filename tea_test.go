package main

import (
	"context"
	"errors"
	"testing"

	"agentic-storywriter/agent"
	"agentic-storywriter/story"
)

func TestFormatNumber(t *testing.T) {
	tests := map[int]string{
		0:       "0",
		999:     "999",
		1000:    "1,000",
		1234567: "1,234,567",
	}
	for in, want := range tests {
		if got := formatNumber(in); got != want {
			t.Errorf("formatNumber(%d) = %q, want %q", in, got, want)
		}
	}
}

func newTestModel(t *testing.T) storyModel {
	t.Helper()
	tracker, err := agent.NewUsageTracker()
	if err != nil {
		t.Fatal(err)
	}
	w := story.NewWorkflow(nil, nil, nil, story.Options{MaxIterations: 2})
	return initialStoryModel(context.Background(), w, tracker, make(chan story.ProgressUpdate, 1), "A dog learns to fly.")
}

func TestInitialStoryModelSteps(t *testing.T) {
	m := newTestModel(t)
	if len(m.steps) != 6 {
		t.Fatalf("expected outline, draft and two rounds of critique and revise, got %d steps", len(m.steps))
	}
	last := m.steps[len(m.steps)-1]
	if last.step != story.StepRevise || last.iteration != 2 {
		t.Errorf("unexpected last step %+v", last)
	}
	if m.userInput != "A dog learns to fly." {
		t.Errorf("concept should prefill the input, got %q", m.userInput)
	}
}

func TestStoryModelProgress(t *testing.T) {
	m := newTestModel(t)
	m.isProcessing = true

	updated, _ := m.Update(progressUpdateMsg{update: story.ProgressUpdate{Step: story.StepCritique, Iteration: 2, Status: story.StatusStarted, Message: "Critiquing"}})
	m = updated.(storyModel)
	if m.steps[4].status != story.StatusStarted || m.steps[4].message != "Critiquing" {
		t.Errorf("critique round 2 not started: %+v", m.steps[4])
	}
	if m.steps[2].status != "waiting" {
		t.Error("critique round 1 should be untouched")
	}

	updated, _ = m.Update(progressUpdateMsg{update: story.ProgressUpdate{Step: story.StepCritique, Iteration: 2, Status: story.StatusCompleted, Err: errors.New("boom")}})
	m = updated.(storyModel)
	if !m.steps[4].degraded {
		t.Error("completed step with an error report should be marked degraded")
	}
}

func TestStoryModelComplete(t *testing.T) {
	m := newTestModel(t)
	m.isProcessing = true

	updated, _ := m.Update(storyCompleteMsg{story: &story.Story{Text: "The end."}})
	m = updated.(storyModel)
	if !m.finished || m.isProcessing {
		t.Error("model should be finished")
	}
	if m.result == nil || m.result.Text != "The end." {
		t.Errorf("unexpected result %+v", m.result)
	}
}
