package rabbitmq

// Топология журнала переписки.
const (
	TranscriptExchange   = "transcripts"
	TranscriptQueue      = "transcripts.rows"
	TranscriptRoutingKey = "row"
)

// QueueConfig очередь и ключ, с которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// TranscriptQueues возвращает очереди журнала переписки.
func TranscriptQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: TranscriptQueue, RoutingKey: TranscriptRoutingKey},
	}
}
