// Package cli provides structured error output helpers.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/loopmill/loopmill/internal/models"
)

// ErrorEnvelope is the JSON error response shape.
type ErrorEnvelope struct {
	Error ErrorPayload `json:"error"`
}

// ErrorPayload carries structured error details.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Hint    string `json:"hint,omitempty"`
}

// ExitError carries an exit code and whether output was already printed.
type ExitError struct {
	Code    int
	Err     error
	Printed bool
}

func (e *ExitError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	return e.Err.Error()
}

func handleCLIError(err error) error {
	if err == nil {
		return nil
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Printed {
			return exitErr
		}
		if exitErr.Err != nil {
			err = exitErr.Err
		}
	}

	exitCode := 1
	if exitErr != nil && exitErr.Code != 0 {
		exitCode = exitErr.Code
	}

	if IsJSONOutput() {
		_ = WriteOutput(os.Stdout, buildErrorEnvelope(err))
	} else {
		fmt.Fprintln(os.Stderr, err.Error())
	}

	return &ExitError{
		Code:    exitCode,
		Err:     err,
		Printed: true,
	}
}

func buildErrorEnvelope(err error) ErrorEnvelope {
	payload := ErrorPayload{
		Code:    "error",
		Message: err.Error(),
	}

	var transitionErr *models.TransitionError
	switch {
	case errors.As(err, &transitionErr):
		payload.Code = "invalid_transition"
		payload.Hint = "check 'loopmill status' for the current session state"
	case errors.Is(err, models.ErrNotFound):
		payload.Code = "not_found"
		payload.Hint = "start a session first with 'loopmill start'"
	case errors.Is(err, models.ErrInvalidSessionID):
		payload.Code = "invalid_session_id"
	case errors.Is(err, models.ErrInvalidProjectPath):
		payload.Code = "invalid_project_path"
	}
	return ErrorEnvelope{Error: payload}
}
