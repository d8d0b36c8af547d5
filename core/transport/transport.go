// Package transport defines the primitives a QUIC session library has to
// provide for quicio to drive it. Sessions are identified by positive integer
// handles.
package transport

import (
	"net/http"
	"time"
)

const (
	// SeekSize asks Seek for the total size of the resource instead of moving.
	SeekSize = 0x10000
	// SeekForce may be or'ed into whence as a hint; transports ignore it.
	SeekForce = 0x20000
)

// OpenRequest carries everything a transport needs to open one session.
type OpenRequest struct {
	URL  string // http:// or https:// URL
	IP   string // pre-resolved address, empty to let the transport resolve
	Port int

	// Zero values mean a plain GET without extra headers or body.
	Method  string
	Headers http.Header
	Body    []byte

	VerifyCertificate bool
	ProtocolVersion   int
	HandshakeVersion  int
	TransportVersion  int
	Timeout           time.Duration // zero means no timeout
}

// LogCallback receives log lines emitted by a transport.
type LogCallback func(severity, file string, line int, msg string)

// Transport is the session library. Open returns a positive handle on success;
// every other call is keyed on that handle until Close releases it.
type Transport interface {
	Open(req OpenRequest) (int, error)
	Read(handle int, p []byte, timeout time.Duration) (int, error)
	Write(handle int, p []byte) (int, error)
	Seek(handle int, offset int64, whence int) (int64, error)
	Close(handle int) error
	SetLogCallback(cb LogCallback)
}

// Log severities passed to LogCallback.
const (
	SeverityVerbose = "VERBOSE"
	SeverityInfo    = "INFO"
	SeverityWarning = "WARNING"
	SeverityError   = "ERROR"
	SeverityFatal   = "FATAL"
)
