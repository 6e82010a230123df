package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"

	"github.com/goliatone/go-course-auth"
)

// ErrorBody is the JSON error envelope
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

type ErrorDetail struct {
	TextCode string `json:"text_code"`
	Message  string `json:"message"`
	Fields   any    `json:"fields,omitempty"`
}

// ErrorHandler renders rich errors as JSON. Server errors never carry
// their cause and authentication failures only carry the generic message.
func ErrorHandler(logger auth.Logger) fiber.ErrorHandler {
	if logger == nil {
		logger = auth.DefaultLogger()
	}

	return func(c *fiber.Ctx, err error) error {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorBody{
				Error: ErrorDetail{
					TextCode: textCodeForStatus(fiberErr.Code),
					Message:  fiberErr.Message,
				},
			})
		}

		var richErr *errors.Error
		if !errors.As(err, &richErr) {
			richErr = errors.Wrap(err, errors.CategoryInternal, "An unexpected server error occurred").
				WithCode(errors.CodeInternal)
		}

		status := richErr.Code
		if status == 0 {
			status = fiber.StatusInternalServerError
		}

		detail := ErrorDetail{
			TextCode: richErr.TextCode,
			Message:  richErr.Message,
		}

		switch {
		case status >= fiber.StatusInternalServerError:
			logger.Error("request failed",
				"method", c.Method(),
				"path", c.OriginalURL(),
				"error", err,
				"details", print.MaybePrettyJSON(richErr.Metadata),
			)
			detail.TextCode = textCodeForStatus(status)
			if richErr.TextCode == auth.TextCodeServerMisconfigured {
				detail.TextCode = auth.TextCodeServerMisconfigured
			}
			detail.Message = "internal server error"
		case status == fiber.StatusUnauthorized:
			logger.Debug("request unauthenticated", "path", c.OriginalURL(), "text_code", richErr.TextCode)
		default:
			if fields, ok := richErr.Metadata["fields"]; ok {
				detail.Fields = fields
			}
		}

		if detail.TextCode == "" {
			detail.TextCode = textCodeForStatus(status)
		}

		return c.Status(status).JSON(ErrorBody{Error: detail})
	}
}

func textCodeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return auth.TextCodeValidation
	case fiber.StatusUnauthorized:
		return auth.TextCodeAuthenticationRequired
	case fiber.StatusForbidden:
		return auth.TextCodeForbidden
	case fiber.StatusNotFound:
		return auth.TextCodeNotFound
	case fiber.StatusConflict:
		return auth.TextCodeConflict
	case fiber.StatusInternalServerError:
		return "INTERNAL_ERROR"
	default:
		return "REQUEST_FAILED"
	}
}
