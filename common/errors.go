package common

import (
	"github.com/gin-gonic/gin"
	provide "github.com/provideplatform/provide-go/common"
)

// Error is a typed registry failure; Status is the HTTP status the API
// surface renders for the error class
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
}

func (e *Error) Error() string {
	return e.Message
}

// CapacityError is raised when a bounded-collection insert would exceed its fixed cap
func CapacityError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: 422}
}

// AuthorizationError is raised when the caller identity does not match the
// identity required for the operation
func AuthorizationError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: 403}
}

// StateError is raised when the target record's current status does not
// satisfy the operation's required pre-state
func StateError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: 409}
}

// ValidationError is raised on malformed or policy-violating input
// independent of record state
func ValidationError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: 422}
}

// ConflictError is raised when a duplicate insert signals a caller logic error
// worth surfacing rather than an idempotent no-op
func ConflictError(code, message string) *Error {
	return &Error{Code: code, Message: message, Status: 409}
}

// ErrRecordModified is returned when a compare-and-swap commit observes a
// concurrent mutation of the record since it was read
var ErrRecordModified = StateError("record_modified", "record was modified concurrently; retry the instruction")

// RenderError renders a typed registry error with its class-specific HTTP
// status; untyped errors render as an internal error
func RenderError(err error, c *gin.Context) {
	if typed, typedOk := err.(*Error); typedOk {
		provide.RenderError(typed.Message, typed.Status, c)
		return
	}
	provide.RenderError(err.Error(), 500, c)
}
