package errors

import "net/http"

// Disposition is how a delivery is answered once an error reaches the edge.
type Disposition struct {
	Status int
	// Acknowledge is false only when the sender must treat the delivery as rejected.
	Acknowledge bool
}

// ErrorHandler classifies pipeline errors and logs them with step context.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle logs err for the given step and returns the HTTP disposition.
// Every code except INVALID_SIGNATURE is acknowledged with 200 so the sender
// does not redeliver work that can only be remediated by hand.
func (h *ErrorHandler) Handle(step string, err error) Disposition {
	if err == nil {
		return Disposition{Status: http.StatusOK, Acknowledge: true}
	}
	stdErr := Normalize(err)
	h.log(step, stdErr)
	return DispositionFor(stdErr.Code)
}

// DispositionFor maps an error code to its HTTP answer.
func DispositionFor(code ErrorCode) Disposition {
	if code == ErrCodeInvalidSignature {
		return Disposition{Status: http.StatusBadRequest, Acknowledge: false}
	}
	return Disposition{Status: http.StatusOK, Acknowledge: true}
}

func (h *ErrorHandler) log(step string, stdErr *StandardError) {
	fields := map[string]interface{}{
		"step":          step,
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	for k, v := range stdErr.Metadata {
		fields[k] = v
	}
	if cause, ok := AsStandardError(stdErr.Unwrap()); ok && cause.Code != stdErr.Code {
		fields["causeCode"] = string(cause.Code)
		fields["causeRetryable"] = cause.Retryable
		for k, v := range cause.Metadata {
			if _, taken := fields[k]; !taken {
				fields[k] = v
			}
		}
	}

	switch stdErr.Code {
	case ErrCodeUnrecognizedEventType, ErrCodeFilteredEventType, ErrCodeProductNotFound:
		h.logger.Warn("Pipeline step skipped", fields)
	default:
		h.logger.Error("Pipeline step failed", fields)
	}
}
