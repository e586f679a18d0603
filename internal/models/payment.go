package models

import "time"

// Статусы платёжной попытки. Переходы только вперёд:
// instructions_sent -> pending_verification -> verified.
const (
	PaymentInstructionsSent    = "instructions_sent"
	PaymentPendingVerification = "pending_verification"
	PaymentVerified            = "verified"
)

// PaymentAttempt платёжная попытка пользователя.
// Код подтверждения хранится в самой записи и служит ключом сопоставления
// при подтверждении оплаты. Записи никогда не удаляются.
type PaymentAttempt struct {
	UID         string     `json:"uid"`
	PhoneNumber string     `json:"phone_number"`
	Method      string     `json:"method"` // ecocash, onemoney, cash и т.п.
	Plan        string     `json:"plan"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Code        string     `json:"code"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	VerifiedAt  *time.Time `json:"verified_at,omitempty"`
}

// PaymentStats агрегированная сводка по платёжным попыткам для админа.
// Выручка считается отдельно по каждой валюте, суммы не смешиваются.
type PaymentStats struct {
	Total      int     `json:"total"`
	Pending    int     `json:"pending"`
	Verified   int     `json:"verified"`
	RevenueUSD float64 `json:"revenue_usd"`
	RevenueZWG float64 `json:"revenue_zwg"`
}
