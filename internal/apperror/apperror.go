// Package apperror defines the closed set of failure kinds the classifier
// reports and how each maps to an HTTP status.
package apperror

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

type Kind int

const (
	Unknown Kind = iota
	MissingInput
	ModelLoadFailure
	PreprocessingFailure
	InferenceFailure
	UnknownClassIndex
)

func (k Kind) String() string {
	switch k {
	case MissingInput:
		return "missing_input"
	case ModelLoadFailure:
		return "model_load_failure"
	case PreprocessingFailure:
		return "preprocessing_failure"
	case InferenceFailure:
		return "inference_failure"
	case UnknownClassIndex:
		return "unknown_class_index"
	default:
		return "unknown"
	}
}

// HTTPStatus returns the response code for a kind.
func HTTPStatus(k Kind) int {
	if k == MissingInput {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// Error carries a kind, a human readable detail and an optional cause.
type Error struct {
	Kind   Kind
	Detail string
	cause  error
}

func (e *Error) Error() string {
	if e.cause == nil {
		return e.Detail
	}
	return fmt.Sprintf("%s: %v", e.Detail, e.cause)
}

func (e *Error) Cause() error  { return e.cause }
func (e *Error) Unwrap() error { return e.cause }

func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap attaches kind and detail to err. A nil err yields nil.
func Wrap(err error, kind Kind, detail string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Detail: detail, cause: err}
}

// KindOf finds the outermost *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}
