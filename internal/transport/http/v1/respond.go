package v1

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/xiaot623/gogo/coach/internal/domain"
	"github.com/xiaot623/gogo/coach/internal/logging"
	"github.com/xiaot623/gogo/coach/internal/validation"
)

const unexpectedMessage = "An unexpected error occurred"

// RequestID returns the id echoed in X-Request-ID, assigning one when the
// RequestID middleware has not.
func RequestID(c echo.Context) string {
	res := c.Response().Header()
	if id := res.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	id := c.Request().Header.Get(echo.HeaderXRequestID)
	if id == "" {
		id = uuid.New().String()
	}
	res.Set(echo.HeaderXRequestID, id)
	return id
}

// NewEnvelope wraps data or an error body in the response envelope.
func NewEnvelope(c echo.Context, data interface{}, errBody *domain.ErrorBody) domain.Envelope {
	return domain.Envelope{
		Success:   errBody == nil,
		Data:      data,
		Error:     errBody,
		RequestID: RequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}
}

func (h *Handler) ok(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, NewEnvelope(c, data, nil))
}

// fail writes err as an error envelope. Errors without a code are internal.
func (h *Handler) fail(c echo.Context, err error) error {
	var coded *domain.CodedError
	if !errors.As(err, &coded) {
		coded = domain.NewCodedError(domain.CodeInternal, unexpectedMessage, err)
	}

	body := &domain.ErrorBody{Code: coded.Code, Message: coded.Message}
	var verr *validation.Error
	if errors.As(err, &verr) {
		body.Details = verr.Fields
	}

	logger := logging.FromContext(c.Request().Context(), h.logger)
	event := logger.Warn()
	if coded.Status >= 500 {
		event = logger.Error()
	}
	event.Str("code", string(coded.Code)).Int("status", coded.Status).Err(err).Msg("request failed")

	return c.JSON(coded.Status, NewEnvelope(c, nil, body))
}

func badRequest(message string) *domain.CodedError {
	return domain.NewCodedError(domain.CodeInvalidRequestBody, message, nil)
}
