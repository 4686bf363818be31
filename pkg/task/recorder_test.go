package task

import (
	"errors"
	"testing"
)

func TestRecorderCollectsStepsInOrder(t *testing.T) {

	rec := NewRecorder()
	rec.Begin("first")
	rec.CurrentStepSucceeded("done")
	rec.Begin("second")
	rec.CurrentStepSkipped("nothing to do")
	rec.Begin("third")
	rec.CurrentStepFailed("broke", errors.New("boom"))

	result := rec.Finish()
	if len(result.Steps) != 3 {
		t.Fatalf("Expected 3 steps, got %d", len(result.Steps))
	}
	if result.Steps[0].Resolution != Succeeded ||
		result.Steps[1].Resolution != Skipped ||
		result.Steps[2].Resolution != Failed {
		t.Errorf("Wrong resolutions: %+v", result.Steps)
	}
	if result.Succeeded() {
		t.Error("A result with a failed step must not report success")
	}
	if result.Err() == nil || result.Err().Error() != "boom" {
		t.Errorf("Expected the first failure error, got %v", result.Err())
	}
}

func TestSkippedStepsDoNotFailTheResult(t *testing.T) {

	rec := NewRecorder()
	rec.Begin("only")
	rec.CurrentStepSkipped("precondition unmet")

	result := rec.Finish()
	if !result.Succeeded() {
		t.Error("A skipped step is not a failure")
	}
	if result.Err() != nil {
		t.Errorf("Expected no error, got %v", result.Err())
	}
}

func TestFinishResolvesOpenStepAsFailed(t *testing.T) {

	rec := NewRecorder()
	rec.Begin("first")
	rec.CurrentStepSucceeded("done")
	rec.Begin("left open")

	result := rec.Finish()
	last := result.Steps[len(result.Steps)-1]
	if last.Resolution != Failed {
		t.Errorf("Expected the open step to resolve as failed, got %+v", last)
	}
	if result.Succeeded() {
		t.Error("A result with an unresolved step must not report success")
	}
}

func TestResolutionAppliesToTheOpenStepOnly(t *testing.T) {

	rec := NewRecorder()
	rec.Begin("first")
	rec.CurrentStepSucceeded("done")
	// a second resolution without a new step must not rewrite the first
	rec.CurrentStepFailed("too late", errors.New("ignored"))

	result := rec.Finish()
	if len(result.Steps) != 1 {
		t.Fatalf("Expected 1 step, got %d", len(result.Steps))
	}
	if result.Steps[0].Resolution != Succeeded {
		t.Errorf("A resolved step must not be rewritten, got %+v", result.Steps[0])
	}
}
