// Package metrics объявляет prometheus-счётчики доменных событий биллинга.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DownloadsTotal число учтённых загрузок.
	DownloadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wabot_downloads_total",
		Help: "Number of recorded downloads.",
	})

	// ActivationsTotal число активаций подписок по тарифам.
	ActivationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wabot_activations_total",
		Help: "Number of subscription activations by plan.",
	}, []string{"plan"})

	// CodeValidationFailures число неудачных проверок кода по причинам.
	CodeValidationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wabot_code_validation_failures_total",
		Help: "Number of failed verification code checks by reason.",
	}, []string{"reason"})

	// DemoGrantsTotal число выданных демо-доступов.
	DemoGrantsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wabot_demo_grants_total",
		Help: "Number of granted demo windows.",
	})

	// ExpiredSweptTotal число подписок, помеченных истёкшими.
	ExpiredSweptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wabot_expired_swept_total",
		Help: "Number of subscriptions flagged as expired by the sweeper.",
	})
)
