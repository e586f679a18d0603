// Package models содержит доменные структуры биллинга бота:
// учётную запись пользователя со счётчиками загрузок и состоянием подписки,
// платёжные попытки и записи истории активаций.
package models

import "time"

// Sentinel-значения поля SubscriptionType.
const (
	// SubscriptionExpired проставляется sweep-ом вместо ключа плана,
	// когда срок подписки истёк.
	SubscriptionExpired = "expired"
	// SubscriptionDemo проставляется при выдаче демо-доступа.
	SubscriptionDemo = "demo"
)

// CategoryCounter счётчик загрузок в одной категории медиа
// со скользящим окном сброса.
type CategoryCounter struct {
	Used    int       `json:"used"`
	ResetAt time.Time `json:"reset_at"` // момент, после которого счётчик начинается заново
}

// SubscriptionRecord неизменяемая запись истории активаций подписки.
type SubscriptionRecord struct {
	Plan         string    `json:"plan"`
	DurationDays int       `json:"duration_days"`
	ActivatedAt  time.Time `json:"activated_at"`
	Expiry       time.Time `json:"expiry"`
	PricePaid    float64   `json:"price_paid"`
	Currency     string    `json:"currency"`
}

// UserAccount учётная запись пользователя бота.
// Ключ — номер телефона как непрозрачная строка, формат не проверяется.
// Запись создаётся лениво при первом обращении и никогда не удаляется.
type UserAccount struct {
	PhoneNumber        string                      `json:"phone_number"`
	DownloadCount      int                         `json:"download_count"`
	Categories         map[string]*CategoryCounter `json:"categories"`
	DemoUses           int                         `json:"demo_uses"`
	DemoExpiry         *time.Time                  `json:"demo_expiry,omitempty"`
	SubscriptionActive bool                        `json:"subscription_active"`
	SubscriptionType   string                      `json:"subscription_type"`
	SubscriptionExpiry *time.Time                  `json:"subscription_expiry,omitempty"`
	DatingEnabled      bool                        `json:"dating_enabled"`
	History            []SubscriptionRecord        `json:"history"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
}

// HasActiveSubscription сообщает, действует ли оплаченная подписка в момент now.
func (a *UserAccount) HasActiveSubscription(now time.Time) bool {
	return a.SubscriptionActive && a.SubscriptionExpiry != nil && a.SubscriptionExpiry.After(now)
}
