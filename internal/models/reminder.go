package models

import "time"

// TrialReminder сообщение о скором окончании пробного периода,
// публикуется в очередь уведомлений.
type TrialReminder struct {
	UserUID    string    `json:"user_uid"`
	Email      string    `json:"email"`
	Username   string    `json:"username"`
	TrialEndAt time.Time `json:"trial_end_at"`
}
