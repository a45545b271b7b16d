package models

import "time"

// AdminSession короткоживущий грант повышенных привилегий.
// Срок действия абсолютный, при чтении не продлевается.
type AdminSession struct {
	ID        string    `json:"id"`
	UserUID   string    `json:"userId"`
	IssuedAt  time.Time `json:"issuedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}
