package main

import "fmt"

// StepResult is the tagged outcome of one pipeline step. It is built only
// through stepSucceeded or stepFailed and cannot be changed afterwards.
type StepResult[T any] struct {
	step      string
	agent     string
	succeeded bool
	payload   T
	errMsg    string
}

func stepSucceeded[T any](step, agent string, payload T) StepResult[T] {
	return StepResult[T]{step: step, agent: agent, succeeded: true, payload: payload}
}

func stepFailed[T any](step, agent string, err error) StepResult[T] {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return StepResult[T]{step: step, agent: agent, errMsg: msg}
}

// Step returns the label of the step that produced the result
func (r StepResult[T]) Step() string { return r.step }

// Agent returns the component name that produced the result
func (r StepResult[T]) Agent() string { return r.agent }

// Succeeded reports whether the step completed
func (r StepResult[T]) Succeeded() bool { return r.succeeded }

// Payload returns the step output; the zero value when the step failed
func (r StepResult[T]) Payload() T { return r.payload }

// ErrorMessage returns the failure message; empty when the step succeeded
func (r StepResult[T]) ErrorMessage() string { return r.errMsg }

// LogEntry converts the result into an execution log entry
func (r StepResult[T]) LogEntry() LogEntry {
	return LogEntry{
		Step:    r.step,
		Agent:   r.agent,
		Success: r.succeeded,
		Error:   r.errMsg,
	}
}

// runStep invokes fn and turns its error, or a panic, into a failed StepResult
func runStep[T any](step, agent string, fn func() (T, error)) (result StepResult[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			logError(agent, "Step panicked", map[string]any{"step": step, "panic": fmt.Sprint(rec)})
			result = stepFailed[T](step, agent, fmt.Errorf("panic: %v", rec))
		}
	}()

	payload, err := fn()
	if err != nil {
		return stepFailed[T](step, agent, err)
	}
	return stepSucceeded(step, agent, payload)
}
