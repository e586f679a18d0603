package rabbitmq

type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.expiry", RoutingKey: "expiry"},
		// при необходимости дополнительные очереди для других воркеров
	}
}
