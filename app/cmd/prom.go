package cmd

import (
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/apernet/bequic/extras/trafficlogger"
)

type sessionMetrics struct {
	reg            *prometheus.Registry
	openCounterVec *prometheus.CounterVec
	activeGauge    prometheus.Gauge
	upCounter      prometheus.Counter
	downCounter    prometheus.Counter
}

func newSessionMetrics() *sessionMetrics {
	m := &sessionMetrics{
		reg: prometheus.NewRegistry(),
		openCounterVec: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bequic_session_opens_total",
			Help: "Session open attempts by result.",
		}, []string{"result"}),
		activeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bequic_active_sessions",
			Help: "Sessions currently open.",
		}),
		upCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bequic_traffic_uplink_bytes_total",
		}),
		downCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bequic_traffic_downlink_bytes_total",
		}),
	}
	m.reg.MustRegister(m.openCounterVec, m.activeGauge, m.upCounter, m.downCounter)
	return m
}

func (m *sessionMetrics) Open(err error) {
	if err != nil {
		m.openCounterVec.WithLabelValues("error").Inc()
		return
	}
	m.openCounterVec.WithLabelValues("ok").Inc()
	m.activeGauge.Inc()
}

func (m *sessionMetrics) Close() {
	m.activeGauge.Dec()
}

func (m *sessionMetrics) Traffic(tx, rx uint64) {
	m.upCounter.Add(float64(tx))
	m.downCounter.Add(float64(rx))
}

func (m *sessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// startPrometheus serves the metrics on listen in the background.
func startPrometheus(listen string, m *sessionMetrics) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		if err := http.Serve(ln, mux); err != nil {
			logger.Error("prometheus server stopped", zap.Error(err))
		}
	}()
	logger.Info("prometheus metrics enabled", zap.String("addr", ln.Addr().String()))
	return nil
}

// startTrafficStats serves the traffic stats API on listen in the background.
func startTrafficStats(listen string, h http.Handler) error {
	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	go func() {
		if err := http.Serve(ln, h); err != nil {
			logger.Error("traffic stats server stopped", zap.Error(err))
		}
	}()
	logger.Info("traffic stats server up and running", zap.String("addr", ln.Addr().String()))
	return nil
}

// sessionLogger is the event and traffic logger handed to every session.
type sessionLogger struct {
	Metrics *sessionMetrics                  // optional
	Stats   trafficlogger.TrafficStatsServer // optional
}

func (l *sessionLogger) Open(url string, handle int, err error) {
	if err == nil {
		logger.Info("session opened", zap.String("url", url), zap.Int("handle", handle))
	} else {
		logger.Error("session open failed", zap.String("url", url), zap.Error(err))
	}
	if l.Metrics != nil {
		l.Metrics.Open(err)
	}
	if l.Stats != nil {
		l.Stats.Open(url, handle, err)
	}
}

func (l *sessionLogger) Close(handle int, err error) {
	if err == nil {
		logger.Debug("session closed", zap.Int("handle", handle))
	} else {
		logger.Warn("session closed with error", zap.Int("handle", handle), zap.Error(err))
	}
	if l.Metrics != nil {
		l.Metrics.Close()
	}
	if l.Stats != nil {
		l.Stats.Close(handle, err)
	}
}

func (l *sessionLogger) Log(handle int, tx, rx uint64) {
	if l.Metrics != nil {
		l.Metrics.Traffic(tx, rx)
	}
	if l.Stats != nil {
		l.Stats.Log(handle, tx, rx)
	}
}
