package classifier

import (
	"context"
	"errors"
	"fmt"

	"deepdefender/internal/acquire"
)

// FieldName is the multipart field the classification service reads the image from.
const FieldName = "file"

// FallbackMessage is shown when a failure carries no message of its own.
const FallbackMessage = "An error occurred during analysis"

// Request is the immutable payload for one classification attempt.
type Request struct {
	FieldName string
	FileName  string
	MediaType string
	Data      []byte
}

// NewRequest builds a single-part request carrying file's bytes under FieldName.
func NewRequest(file *acquire.InputFile) (*Request, error) {
	if file == nil {
		return nil, acquire.ErrNoFile
	}
	name := file.Name
	if name == "" {
		name = "upload"
	}
	return &Request{
		FieldName: FieldName,
		FileName:  name,
		MediaType: file.MediaType,
		Data:      file.Data,
	}, nil
}

// Prediction is the service's answer for one image.
type Prediction struct {
	DeepfakeProbability float64 `json:"deepfake_probability"`
}

// Client exposes the remote classification capability.
type Client interface {
	Classify(ctx context.Context, req *Request) (*Prediction, error)
}

// ErrorKind separates failures for logging; users see one Failure shape.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindMalformed ErrorKind = "malformed"
)

// Error describes a failed classification.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError reports a non-success HTTP status.
func StatusError(code int) *Error {
	return &Error{
		Kind:       KindStatus,
		StatusCode: code,
		Message:    fmt.Sprintf("Server responded with %d", code),
	}
}

// UserMessage maps any classification error to the text shown in the error view.
func UserMessage(err error) string {
	if err == nil {
		return FallbackMessage
	}
	var cerr *Error
	if errors.As(err, &cerr) && cerr.Message != "" {
		return cerr.Message
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return FallbackMessage
}
