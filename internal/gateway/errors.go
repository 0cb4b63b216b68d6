package gateway

import (
	"errors"
	"fmt"
)

// Kind classifies why a gateway call failed.
type Kind int

const (
	// KindValidation means the call was refused before anything was sent.
	KindValidation Kind = iota + 1
	// KindTransport means no usable response was obtained: the server was
	// unreachable or its reply could not be decoded.
	KindTransport
	// KindServer means the server answered with a non-2xx status.
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// Error is returned by every failing Client call. Message is the text meant
// for display; Error() returns it unchanged.
type Error struct {
	Op      string
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a gateway *Error of the given kind.
func IsKind(err error, k Kind) bool {
	var gerr *Error
	return errors.As(err, &gerr) && gerr.Kind == k
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Status
	}
	return 0
}

// operation describes the messages one endpoint synthesizes when the server
// does not provide its own.
type operation struct {
	name      string
	statusMsg string // formatted with the numeric status
	transport string
}

var (
	opAsk = operation{
		name:      "ask",
		statusMsg: "Server error (%d)",
		transport: "Request failed: server not reachable",
	}
	opUploadPDF = operation{
		name:      "upload_pdf",
		statusMsg: "Upload failed (%d)",
		transport: "Upload failed",
	}
	opUploadText = operation{
		name:      "upload_text",
		statusMsg: "Text upload failed (%d)",
		transport: "Upload failed",
	}
	opHealth = operation{
		name:      "health",
		statusMsg: "Health check failed (%d)",
		transport: "Server not reachable",
	}
)

func (o operation) validation(msg string) *Error {
	return &Error{Op: o.name, Kind: KindValidation, Message: msg}
}

func (o operation) transportErr(cause error) *Error {
	return &Error{Op: o.name, Kind: KindTransport, Message: o.transport, Err: cause}
}

func (o operation) decodeErr(cause error) *Error {
	return &Error{
		Op:      o.name,
		Kind:    KindTransport,
		Message: "Invalid response from server",
		Err:     cause,
	}
}

func (o operation) serverErr(status int, serverMsg string) *Error {
	msg := serverMsg
	if msg == "" {
		msg = fmt.Sprintf(o.statusMsg, status)
	}
	return &Error{Op: o.name, Kind: KindServer, Status: status, Message: msg}
}
