package core

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// loggerT is a thin alias so call sites don't need to import logrus
// directly; it keeps the same WithFields/Info/Warn/Error surface logrus
// gives us. Grounded in system_health_logging.go's HealthLogger, which
// builds one JSON-formatted *logrus.Logger and threads it through every
// subsystem rather than using the package-level default logger.
type loggerT = logrus.Logger

func newSubsystemLogger(name string) *loggerT {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{})
	l.SetOutput(os.Stderr)
	return l.WithField("subsystem", name).Logger
}

var (
	remoteLog  = newSubsystemLogger("remote_reader")
	overlayLog = newSubsystemLogger("local_overlay")
	storeLog   = newSubsystemLogger("readthrough_store")
	typeLog    = newSubsystemLogger("type_cache")
	gasLog     = newSubsystemLogger("gas_charger")
	vmLog      = newSubsystemLogger("vm")
	engineLog  = newSubsystemLogger("engine")
	facadeLog  = newSubsystemLogger("facade")
	bridgeLog  = newSubsystemLogger("bridge")
	rpcLog     = newSubsystemLogger("rpc")
)

// Metrics holds the process-wide Prometheus collectors, following
// system_health_logging.go's HealthLogger field layout (one gauge/counter
// field per measured quantity, registered against a dedicated registry
// rather than the global default one so tests can construct isolated
// instances).
type Metrics struct {
	Registry *prometheus.Registry

	OverlayObjectCount prometheus.Gauge
	LastCommittedVersion prometheus.Gauge
	FacadeRequests      *prometheus.CounterVec
	InvariantAborts     prometheus.Counter
}

// NewMetrics builds and registers a fresh Metrics instance. Each call
// creates its own registry so unit tests never collide over global
// Prometheus state.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		OverlayObjectCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forknet_overlay_object_count",
			Help: "Number of objects currently held in the local overlay store.",
		}),
		LastCommittedVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forknet_last_committed_version",
			Help: "Lamport version of the last object write committed to the overlay.",
		}),
		FacadeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forknet_facade_requests_total",
			Help: "Count of facade operations, by method name and outcome.",
		}, []string{"method", "outcome"}),
		InvariantAborts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "forknet_invariant_aborts_total",
			Help: "Count of InvariantViolation errors raised by the engine.",
		}),
	}
	reg.MustRegister(m.OverlayObjectCount, m.LastCommittedVersion, m.FacadeRequests, m.InvariantAborts)
	return m
}
