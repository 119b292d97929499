// Package metrics содержит prometheus-метрики бота.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GateDecisions считает решения шлюза доступа.
	GateDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riya_gate_decisions_total",
			Help: "Total number of entitlement gate decisions",
		},
		[]string{"result", "reason"},
	)

	// Grants считает выдачи доступа по источнику (webhook, admin).
	Grants = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riya_grants_total",
			Help: "Total number of entitlement grants",
		},
		[]string{"source", "plan"},
	)

	// Strikes считает нарушения модерации.
	Strikes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riya_moderation_strikes_total",
			Help: "Total number of moderation strikes",
		},
		[]string{"muted"},
	)

	// ReplyFailures считает неудачные обращения к генератору ответов.
	ReplyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "riya_reply_failures_total",
			Help: "Total number of failed reply generations",
		},
	)

	// ReplyDuration время генерации ответа.
	ReplyDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "riya_reply_duration_seconds",
			Help:    "Duration of reply generation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// WebhookEvents считает обработанные вебхуки по итоговому статусу.
	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riya_payment_webhook_events_total",
			Help: "Total number of payment webhook events by outcome",
		},
		[]string{"status"},
	)

	// TranscriptDropped считает строки журнала, которые не удалось записать.
	TranscriptDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "riya_transcript_dropped_total",
			Help: "Total number of transcript rows dropped",
		},
		[]string{"reason"},
	)

	// UpdatesInFlight количество обрабатываемых обновлений Telegram.
	UpdatesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "riya_updates_in_flight",
			Help: "Number of Telegram updates being handled",
		},
	)
)
