package quicio

import (
	"sync"

	"go.uber.org/zap"

	"github.com/apernet/bequic/core/transport"
)

// installedTransports holds every transport that already got the callback.
var installedTransports sync.Map

// installLogCallback hands transportLogCallback to t the first time t is used
// for an open. Later calls with the same transport do nothing.
func installLogCallback(t transport.Transport) {
	if _, loaded := installedTransports.LoadOrStore(t, struct{}{}); !loaded {
		t.SetLogCallback(transportLogCallback)
	}
}

// transportLogCallback looks up the global logger on every call so that
// zap.ReplaceGlobals done after installation still applies.
func transportLogCallback(severity, file string, line int, msg string) {
	l := zap.L().Named("transport")
	fields := []zap.Field{zap.String("file", file), zap.Int("line", line)}
	switch severity {
	case transport.SeverityFatal, transport.SeverityError:
		l.Error(msg, fields...)
	case transport.SeverityWarning:
		l.Warn(msg, fields...)
	case transport.SeverityVerbose:
		l.Debug(msg, fields...)
	default:
		l.Info(msg, fields...)
	}
}
