package wire

import (
	"fmt"
)

// MessageError describes an issue with a message. An example of some potential
// issues are messages from the wrong bitcoin network, invalid commands,
// mismatched checksums, and exceeding max payloads.
//
// This provides a mechanism for the caller to type assert the error to
// differentiate between general io errors such as io.EOF and issues that
// resulted from malformed messages.
type MessageError struct {
	Func        string // Function name
	Description string // Human readable description of the issue
}

// Error satisfies the error interface and prints human-readable errors.
func (e *MessageError) Error() string {
	if e.Func != "" {
		return fmt.Sprintf("%v: %v", e.Func, e.Description)
	}
	return e.Description
}

// messageError creates an error for the given function and description.
func messageError(f string, desc string) *MessageError {
	return &MessageError{Func: f, Description: desc}
}

// FormatError is returned when a frame cannot be trusted: foreign magic, a
// declared length that disagrees with the frame, a checksum mismatch, or a
// payload whose fields do not parse.
type FormatError struct {
	Description string
	// Err is the underlying field error, if the payload failed to parse.
	Err error
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("format error: %v: %v", e.Description, e.Err)
	}
	return "format error: " + e.Description
}

// Unwrap returns the field error that caused the format error, if any.
func (e *FormatError) Unwrap() error {
	return e.Err
}

// UnknownCommandError is returned for a well formed frame whose command has no
// registered message type. Frame holds the raw bytes for diagnostics.
type UnknownCommandError struct {
	Command string
	Frame   []byte
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q (%d byte frame)", e.Command, len(e.Frame))
}
