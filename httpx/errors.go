package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"github.com/pixeluwjal/sanghaforms-sub002/log"
)

// Error sends a structured JSON error response with the given status.
func Error(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, map[string]any{
		"success": false,
		"error":   msg,
	})
}

// LogInternalError logs an error under a dotted code and sends a generic 500.
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	Error(w, r, http.StatusInternalServerError, "internal server error")
}

// LogStatus logs an error code at the given level and sends the given
// status with a JSON error message.
func LogStatus(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, msg string) {
	log.Log(level, code+":", msg)
	Error(w, r, status, msg)
}

// Unauthenticated maps any authentication failure to a plain 401. The cause
// is logged, never surfaced to the client.
func Unauthenticated(w http.ResponseWriter, r *http.Request, code string, err error) {
	if err != nil {
		log.Debugf("%s: %s", code, err)
	}
	Error(w, r, http.StatusUnauthorized, "unauthenticated")
}

// ValidationFailed unwraps validator errors into a flat list of field-level
// messages; anything else becomes a single generic message.
func ValidationFailed(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Debugf("%s: %s", code, err)

	fields := []string{}
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		for _, fe := range verr {
			fields = append(fields, fieldMessage(fe))
		}
	} else {
		fields = append(fields, "invalid request body")
	}

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, map[string]any{
		"success": false,
		"error":   "validation failed",
		"fields":  fields,
	})
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	default:
		return field + " is invalid"
	}
}
