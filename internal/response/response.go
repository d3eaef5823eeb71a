// Package response writes the JSON envelope every API endpoint answers with.
package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/dukerupert/linkshelf/internal/store"
)

// BizCode is the application status carried in the envelope. Each code has
// a matching HTTP status.
type BizCode int

const (
	Success      BizCode = 200
	BadRequest   BizCode = 400
	Unauthorized BizCode = 401
	Forbidden    BizCode = 403
	NotFound     BizCode = 404
	ServerError  BizCode = 500
)

var messages = map[BizCode]string{
	Success:      "success",
	BadRequest:   "bad request",
	Unauthorized: "unauthorized",
	Forbidden:    "forbidden",
	NotFound:     "not found",
	ServerError:  "internal server error",
}

// Message returns the default message for c.
func (c BizCode) Message() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return messages[ServerError]
}

// Status returns the HTTP status for c.
func (c BizCode) Status() int {
	if _, ok := messages[c]; ok {
		return int(c)
	}
	return http.StatusInternalServerError
}

type Envelope struct {
	Code BizCode `json:"code"`
	Msg  string  `json:"msg"`
	Data any     `json:"data"`
}

// ValidationError reports malformed client input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FromError maps an error onto a business code and a client-safe message.
func FromError(err error) (BizCode, string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return BadRequest, ve.Error()
	case errors.Is(err, store.ErrNotFound):
		return NotFound, NotFound.Message()
	case errors.Is(err, store.ErrConstraint):
		return BadRequest, "conflicts with existing data"
	case errors.Is(err, store.ErrUnavailable):
		return ServerError, "storage unavailable"
	default:
		return ServerError, ServerError.Message()
	}
}

// Write sends an envelope with the HTTP status matching code.
func Write(w http.ResponseWriter, code BizCode, msg string, data any) {
	if msg == "" {
		msg = code.Message()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code.Status())
	json.NewEncoder(w).Encode(Envelope{Code: code, Msg: msg, Data: data})
}

// OK sends a success envelope carrying data.
func OK(w http.ResponseWriter, data any) {
	Write(w, Success, "", data)
}

// Fail sends an error envelope with no payload.
func Fail(w http.ResponseWriter, code BizCode, msg string) {
	Write(w, code, msg, nil)
}

// Error sends the envelope FromError picks for err.
func Error(w http.ResponseWriter, err error) {
	code, msg := FromError(err)
	Fail(w, code, msg)
}
