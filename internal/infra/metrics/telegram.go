package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		telegramCommandsReceivedTotal,
		telegramRateLimitTriggeredTotal,
		telegramDeliveryErrorsTotal,
	)
}

var (
	telegramCommandsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_commands_received_total",
			Help: "Counts incoming messages and commands from users.",
		},
		[]string{"command"},
	)

	telegramRateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telegram_rate_limit_triggered_total",
			Help: "Total number of times chats have been rate-limited.",
		},
	)

	telegramDeliveryErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telegram_delivery_errors_total",
			Help: "Failed outbound Telegram calls by kind.",
		},
		[]string{"kind"}, // 'send', 'delete'
	)
)

func IncTelegramCommand(command string) {
	telegramCommandsReceivedTotal.WithLabelValues(norm(command)).Inc()
}

func IncRateLimitTriggered() {
	telegramRateLimitTriggeredTotal.Inc()
}

func IncDeliveryError(kind string) {
	telegramDeliveryErrorsTotal.WithLabelValues(norm(kind)).Inc()
}
