// Copyright 2025 Openshelf. All rights reserved.
// Use of this source code is governed by a BSD-style license
// specified in the Github project LICENSE file.

// The task package records the ordered steps a task performs and how each
// one resolved. The resulting report is part of the task contract: tests and
// diagnostics read step outcomes, not just final state.
package task

// Resolution is the outcome of one step.
type Resolution string

const (
	Succeeded Resolution = "succeeded"
	Failed    Resolution = "failed"
	Skipped   Resolution = "skipped"
)

type (

	// Step is one named unit of work and its outcome.
	Step struct {
		Description string
		Resolution  Resolution
		Message     string
		Err         error
	}

	// Result is the ordered list of steps a task performed.
	Result struct {
		Steps []Step
	}

	// Recorder accumulates steps as a task runs.
	Recorder struct {
		steps []Step
	}
)

// Succeeded reports whether no step failed.
func (r Result) Succeeded() bool {
	for _, s := range r.Steps {
		if s.Resolution == Failed {
			return false
		}
	}
	return true
}

// Err returns the error of the first failed step, if any.
func (r Result) Err() error {
	for _, s := range r.Steps {
		if s.Resolution == Failed && s.Err != nil {
			return s.Err
		}
	}
	return nil
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Begin opens a new step. The step stays open until one of the resolution
// methods closes it; a task that returns with an open step has a bug, so
// Finish resolves any open step as failed.
func (r *Recorder) Begin(description string) {
	r.steps = append(r.steps, Step{Description: description})
}

// CurrentStepSucceeded resolves the open step as succeeded.
func (r *Recorder) CurrentStepSucceeded(message string) {
	r.resolve(Succeeded, message, nil)
}

// CurrentStepFailed resolves the open step as failed.
func (r *Recorder) CurrentStepFailed(message string, err error) {
	r.resolve(Failed, message, err)
}

// CurrentStepSkipped resolves the open step as skipped.
func (r *Recorder) CurrentStepSkipped(message string) {
	r.resolve(Skipped, message, nil)
}

func (r *Recorder) resolve(res Resolution, message string, err error) {
	if len(r.steps) == 0 {
		return
	}
	last := &r.steps[len(r.steps)-1]
	if last.Resolution != "" {
		return
	}
	last.Resolution = res
	last.Message = message
	last.Err = err
}

// Finish closes the recorder and returns the report.
func (r *Recorder) Finish() Result {
	if n := len(r.steps); n > 0 && r.steps[n-1].Resolution == "" {
		r.steps[n-1].Resolution = Failed
		r.steps[n-1].Message = "step left unresolved"
	}
	return Result{Steps: append([]Step(nil), r.steps...)}
}
