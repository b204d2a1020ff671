package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhooksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopgate_webhooks_total",
		Help: "Webhook deliveries by verification result.",
	}, []string{"result"})

	usageChargesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shopgate_usage_charges_total",
		Help: "Usage records created against the platform.",
	})
)
