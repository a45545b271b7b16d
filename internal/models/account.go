package models

import "time"

// SubscriptionStatus статус подписки аккаунта, который выставляет биллинг.
type SubscriptionStatus string

const (
	StatusTrial     SubscriptionStatus = "trial"
	StatusActive    SubscriptionStatus = "active"
	StatusExpired   SubscriptionStatus = "expired"
	StatusOverdue   SubscriptionStatus = "overdue"
	StatusCancelled SubscriptionStatus = "cancelled"
)

// Role уровень авторизации, не связанный с биллингом.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// AccountSnapshot read-only срез аккаунта, по которому принимается решение о доступе.
type AccountSnapshot struct {
	UserUID            string             `json:"userId"`
	CreatedAt          time.Time          `json:"createdAt"`
	SubscriptionStatus SubscriptionStatus `json:"subscriptionStatus"`
	// SubscriptionEndsAt имеет смысл только для статуса cancelled.
	SubscriptionEndsAt *time.Time `json:"subscriptionEndsAt,omitempty"`
	IsSuspended        bool       `json:"isSuspended"`
	SuspendedReason    *string    `json:"suspendedReason,omitempty"`
	Role               Role       `json:"role"`
}

// IsAdmin сообщает, имеет ли аккаунт роль admin.
func (s AccountSnapshot) IsAdmin() bool {
	return s.Role == RoleAdmin
}
