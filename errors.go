package plotview

import "errors"

var (
	// ErrSerialization is returned when a figure cannot be encoded as a JSON
	// object. The widget state is left unchanged.
	ErrSerialization = errors.New("plotview: figure serialization failed")

	// ErrServerBind is returned when the local server cannot listen on a port.
	ErrServerBind = errors.New("plotview: local server bind failed")

	// ErrHandshakeTimeout is returned by WaitReady when the page did not report
	// ready in time.
	ErrHandshakeTimeout = errors.New("plotview: page handshake timed out")

	// ErrClosed is returned when using a widget after Close.
	ErrClosed = errors.New("plotview: widget closed")
)
