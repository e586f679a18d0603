package models

// IncomingMessage входящее сообщение от транспорта.
// Транспорт не гарантирует ни порядок доставки, ни отсутствие дублей.
type IncomingMessage struct {
	SenderID string `json:"sender_id" validate:"required"`
	Text     string `json:"text" validate:"required"`
}

// OutgoingMessage исходящее сообщение пользователю бота.
type OutgoingMessage struct {
	RecipientID string `json:"recipient_id"`
	Text        string `json:"text"`
}

// ExpiryNotice событие об истечении подписки, публикуемое планировщиком
// в очередь уведомлений.
type ExpiryNotice struct {
	PhoneNumber string `json:"phone_number"`
	Plan        string `json:"plan"`
	Expiry      string `json:"expiry"`
	Kind        string `json:"kind"` // expiring_soon или expired
}
