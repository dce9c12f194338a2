package turn

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/germanamz/assistant/pkg/guardrails"
	"github.com/germanamz/assistant/pkg/modeladapter"
	"github.com/germanamz/assistant/pkg/models"
	"github.com/germanamz/assistant/pkg/router"
)

// ValidationError reports a request the pipeline cannot start on.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("turn: invalid request: %s %s", e.Field, e.Reason)
}

// EmptyResponseError is returned when a model answers with neither text nor
// tool calls.
type EmptyResponseError struct {
	Model string
}

func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("turn: no response from model %s", e.Model)
}

// ToolLoopExceededError is returned when the model keeps asking for tools
// after the round cap.
type ToolLoopExceededError struct {
	Rounds int
}

func (e *ToolLoopExceededError) Error() string {
	return fmt.Sprintf("turn: tool loop exceeded %d rounds", e.Rounds)
}

// StatusClientClosedRequest is answered when the caller went away before the
// turn finished.
const StatusClientClosedRequest = 499

// HTTPStatus maps a ProcessTurn error to the HTTP status a caller should
// answer with. Nil maps to 200.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var (
		validation *ValidationError
		unknown    *models.UnknownModelError
		empty      *EmptyResponseError
		selection  *router.SelectionError
		provider   *modeladapter.ProviderError
		loop       *ToolLoopExceededError
		backend    *guardrails.BackendError
	)

	switch {
	case errors.As(err, &validation), errors.As(err, &unknown), errors.As(err, &empty):
		return http.StatusBadRequest
	case errors.As(err, &selection):
		return http.StatusUnprocessableEntity
	case errors.As(err, &loop):
		return http.StatusLoopDetected
	case errors.As(err, &backend):
		return http.StatusServiceUnavailable
	case errors.As(err, &provider):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}
