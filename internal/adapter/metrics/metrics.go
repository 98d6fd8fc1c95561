package metrics

import (
	"errors"
	"net/http"

	"custody-vault/pkg/apperror"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const resultSuccess = "success"

// Prometheus implements ports.Metrics with counters labelled by operation
// and outcome. The outcome is "success" or the AppError code.
type Prometheus struct {
	operations *prometheus.CounterVec
	amounts    *prometheus.CounterVec
}

// New registers the custody counters on reg.
func New(reg prometheus.Registerer) *Prometheus {
	p := &Prometheus{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custody",
			Subsystem: "vault",
			Name:      "operations_total",
			Help:      "Custody operations by type and result.",
		}, []string{"op", "result"}),
		amounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "custody",
			Subsystem: "vault",
			Name:      "amount_total",
			Help:      "Base units moved by successful custody operations.",
		}, []string{"op"}),
	}
	reg.MustRegister(p.operations, p.amounts)
	return p
}

// ObserveOperation counts one operation; amount is added only on success.
func (p *Prometheus) ObserveOperation(op string, err error, amount uint64) {
	p.operations.WithLabelValues(op, resultLabel(err)).Inc()
	if err == nil {
		p.amounts.WithLabelValues(op).Add(float64(amount))
	}
}

func resultLabel(err error) string {
	if err == nil {
		return resultSuccess
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return apperror.CodeInternal
}

// Handler exposes the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
