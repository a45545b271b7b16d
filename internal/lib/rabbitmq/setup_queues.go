package rabbitmq

// NotificationsExchange direct-exchange, через который уходят все уведомления.
const NotificationsExchange = "notifications"

// TrialEndingRoutingKey ключ маршрутизации напоминаний о конце пробного периода.
const TrialEndingRoutingKey = "trial_ending"

// QueueConfig очередь и ключ, которым она привязана к NotificationsExchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые объявляет публикующая сторона,
// чтобы сообщения не терялись до запуска потребителей доставки.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: "notifications.trial_ending", RoutingKey: TrialEndingRoutingKey},
	}
}
