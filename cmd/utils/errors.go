package utils

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorKind tags an APIError with the HTTP status it renders to.
type ErrorKind int

const (
	KindBadRequest ErrorKind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindValidation
	KindInternal
)

// FieldError carries per-field detail for validation failures.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

// APIError is the single error currency of the service layer. Handlers
// return it up and the response writer renders it once into the envelope.
type APIError struct {
	Kind    ErrorKind
	Message string
	Fields  []FieldError
}

func (e *APIError) Error() string {
	return e.Message
}

func BadRequest(message string) *APIError {
	return &APIError{Kind: KindBadRequest, Message: message}
}

func Unauthorized(message string) *APIError {
	return &APIError{Kind: KindUnauthorized, Message: message}
}

func Forbidden(message string) *APIError {
	return &APIError{Kind: KindForbidden, Message: message}
}

func NotFound(message string) *APIError {
	return &APIError{Kind: KindNotFound, Message: message}
}

func Conflict(message string) *APIError {
	return &APIError{Kind: KindConflict, Message: message}
}

func Validation(message string, fields ...FieldError) *APIError {
	return &APIError{Kind: KindValidation, Message: message, Fields: fields}
}

// StatusOf maps an error to its HTTP status. Unknown errors are 500.
func StatusOf(err error) int {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return http.StatusInternalServerError
	}
	switch apiErr.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// namedConstraints maps composite unique indexes to domain messages,
// so duplicate edges read better than raw column lists.
var namedConstraints = map[string]string{
	"idx_follow_edge": "Follow request already exists!",
	"idx_like_once":   "Post already liked!",
	"idx_report_once": "Post already reported!",
}

const uniqueViolation = "23505"

// FromDBError converts database errors into API errors. Unique violations
// become conflicts with a "{field} {value} already exists" message; the
// field and value come from the pg error detail, which Error() does not
// include, so the *pgconn.PgError has to be unwrapped rather than string
// matched. Anything else passes through unchanged.
func FromDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != uniqueViolation {
			return err
		}
		if friendly, ok := namedConstraints[pgErr.ConstraintName]; ok {
			return Conflict(friendly)
		}
		return duplicateKeyConflict(pgErr.Detail)
	}

	// Drivers that don't surface PgError (sqlite, test fakes) only give
	// us the message text.
	msg := err.Error()
	if !strings.Contains(msg, "duplicate key") && !strings.Contains(msg, "UNIQUE constraint") {
		return err
	}
	for name, friendly := range namedConstraints {
		if strings.Contains(msg, name) {
			return Conflict(friendly)
		}
	}
	return duplicateKeyConflict(msg)
}

func duplicateKeyConflict(detail string) *APIError {
	if field, value, ok := parseDuplicateKey(detail); ok {
		if value != "" {
			return Conflict(fmt.Sprintf("%s %s already exists", field, value))
		}
		return Conflict(fmt.Sprintf("%s already exists", field))
	}
	return Conflict("Already exists!")
}

// parseDuplicateKey pulls field and value out of postgres detail text of
// the form `Key (email)=(a@b.com) already exists.`
func parseDuplicateKey(msg string) (field, value string, ok bool) {
	_, after, found := strings.Cut(msg, "Key (")
	if !found {
		return "", "", false
	}
	field, after, found = strings.Cut(after, ")")
	if !found {
		return "", "", false
	}
	if rest, valFound := strings.CutPrefix(after, "=("); valFound {
		value, _, _ = strings.Cut(rest, ")")
	}
	return field, value, true
}
