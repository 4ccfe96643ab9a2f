package domain

import (
	"fmt"
	"strings"
)

// AnimationState enumerates the lifecycle states of a step animation job.
type AnimationState string

const (
	AnimationStateNone       AnimationState = "none"
	AnimationStatePending    AnimationState = "pending"
	AnimationStateProcessing AnimationState = "processing"
	AnimationStateSucceeded  AnimationState = "succeeded"
	AnimationStateFailed     AnimationState = "failed"
)

// Animation is the animation job attached to a step. The zero value is the
// "none" state. Values are built through the constructors below so that a
// result only exists on success and an error only exists on failure.
type Animation struct {
	state       AnimationState
	operationID string
	key         string
	url         string
	message     string
}

// AnimationNone reports a step without any animation job.
func AnimationNone() Animation {
	return Animation{state: AnimationStateNone}
}

// AnimationProcessing reports an active job. External "pending" operations
// are folded into this state.
func AnimationProcessing(operationID string) Animation {
	return Animation{state: AnimationStateProcessing, operationID: strings.TrimSpace(operationID)}
}

// AnimationSucceeded reports a job whose artifact has been re-stored.
func AnimationSucceeded(operationID, key, url string) Animation {
	return Animation{
		state:       AnimationStateSucceeded,
		operationID: strings.TrimSpace(operationID),
		key:         strings.TrimSpace(key),
		url:         strings.TrimSpace(url),
	}
}

// AnimationFailed reports a terminal failure. operationID is empty only when
// the job could not be submitted at all.
func AnimationFailed(operationID, message string) Animation {
	message = strings.TrimSpace(message)
	if message == "" {
		message = DefaultAnimationError
	}
	return Animation{state: AnimationStateFailed, operationID: strings.TrimSpace(operationID), message: message}
}

// DefaultAnimationError is used when the provider fails without a message.
const DefaultAnimationError = "Veo animation failed."

func (a Animation) State() AnimationState {
	if a.state == "" {
		return AnimationStateNone
	}
	return a.state
}

func (a Animation) OperationID() string { return a.operationID }
func (a Animation) ResultKey() string   { return a.key }
func (a Animation) ResultURL() string   { return a.url }
func (a Animation) Error() string       { return a.message }

// IsActive reports whether the job still awaits an external result.
func (a Animation) IsActive() bool {
	return a.State() == AnimationStateProcessing || a.State() == AnimationStatePending
}

// HasResult reports whether a stored artifact is available.
func (a Animation) HasResult() bool {
	return a.State() == AnimationStateSucceeded && (a.key != "" || a.url != "")
}

// Validate checks the invariants of the state machine.
func (a Animation) Validate() error {
	switch a.State() {
	case AnimationStateNone:
		if a.operationID != "" || a.key != "" || a.url != "" || a.message != "" {
			return fmt.Errorf("%w: animation without a job carries job fields", ErrInvalidAnimation)
		}
	case AnimationStatePending, AnimationStateProcessing:
		if a.operationID == "" {
			return fmt.Errorf("%w: active animation requires an operation id", ErrInvalidAnimation)
		}
		if a.key != "" || a.url != "" || a.message != "" {
			return fmt.Errorf("%w: active animation carries result or error fields", ErrInvalidAnimation)
		}
	case AnimationStateSucceeded:
		if a.operationID == "" || a.key == "" || a.url == "" {
			return fmt.Errorf("%w: succeeded animation requires operation id, key and url", ErrInvalidAnimation)
		}
		if a.message != "" {
			return fmt.Errorf("%w: succeeded animation carries an error", ErrInvalidAnimation)
		}
	case AnimationStateFailed:
		if a.message == "" {
			return fmt.Errorf("%w: failed animation requires an error", ErrInvalidAnimation)
		}
		if a.key != "" || a.url != "" {
			return fmt.Errorf("%w: failed animation carries result fields", ErrInvalidAnimation)
		}
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidAnimation, a.state)
	}
	return nil
}

// AnimationColumns is the nullable column representation stored on a step row.
type AnimationColumns struct {
	Status      *string
	OperationID *string
	Key         *string
	URL         *string
	Error       *string
}

// Columns flattens the animation into its persisted columns.
func (a Animation) Columns() AnimationColumns {
	var cols AnimationColumns
	if a.State() == AnimationStateNone {
		return cols
	}
	status := string(a.State())
	if a.State() == AnimationStatePending {
		status = string(AnimationStateProcessing)
	}
	cols.Status = &status
	cols.OperationID = nullable(a.operationID)
	cols.Key = nullable(a.key)
	cols.URL = nullable(a.url)
	cols.Error = nullable(a.message)
	return cols
}

// StatusColumn returns the persisted status value used for compare-and-swap
// updates; nil stands for "none".
func (s AnimationState) StatusColumn() *string {
	switch s {
	case AnimationStateNone, "":
		return nil
	case AnimationStatePending:
		v := string(AnimationStateProcessing)
		return &v
	default:
		v := string(s)
		return &v
	}
}

// AnimationFromColumns rebuilds an animation from a step row. Rows written by
// older code may hold partial combinations; they are coerced to the closest
// legal state and then validated.
func AnimationFromColumns(cols AnimationColumns) (Animation, error) {
	status := strings.TrimSpace(deref(cols.Status))
	opID := deref(cols.OperationID)
	var a Animation
	switch AnimationState(status) {
	case "", AnimationStateNone:
		if opID == "" {
			return AnimationNone(), nil
		}
		a = AnimationProcessing(opID)
	case AnimationStatePending, AnimationStateProcessing:
		a = AnimationProcessing(opID)
	case AnimationStateSucceeded:
		a = AnimationSucceeded(opID, deref(cols.Key), deref(cols.URL))
	case AnimationStateFailed:
		a = AnimationFailed(opID, deref(cols.Error))
	default:
		return Animation{}, fmt.Errorf("%w: unknown state %q", ErrInvalidAnimation, status)
	}
	if err := a.Validate(); err != nil {
		return Animation{}, err
	}
	return a, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
