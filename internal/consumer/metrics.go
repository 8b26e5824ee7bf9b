package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultProcessed = "processed"
	resultFailed    = "failed"
)

var (
	handledCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vitalia",
		Subsystem: "consumer",
		Name:      "messages_total",
		Help:      "Kafka messages handled by the consumer, by result.",
	}, []string{"topic", "event_type", "result"})

	lastMessageGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "vitalia",
		Subsystem: "consumer",
		Name:      "last_message_timestamp_seconds",
		Help:      "Timestamp of the most recent Kafka message handled.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(handledCounter, lastMessageGauge)
}

func recordHandled(msg Message, result string) {
	handledCounter.WithLabelValues(msg.Topic, msg.EventType(), result).Inc()
	if !msg.Timestamp.IsZero() {
		lastMessageGauge.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}
