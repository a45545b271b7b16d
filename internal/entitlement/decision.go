package entitlement

import "net/http"

// Code машиночитаемая причина отказа, на которую клиент строит призыв к оплате.
type Code string

const (
	CodeAccountSuspended    Code = "ACCOUNT_SUSPENDED"
	CodeTrialExpired        Code = "TRIAL_EXPIRED"
	CodeSubscriptionExpired Code = "SUBSCRIPTION_EXPIRED"
	CodeSubscriptionEnded   Code = "SUBSCRIPTION_ENDED"
	CodeUnknownStatus       Code = "UNKNOWN_STATUS"
)

// Категории отказа, общие для шлюза и процедурного слоя.
const (
	CategoryPaymentRequired = "PAYMENT_REQUIRED"
	CategoryForbidden       = "FORBIDDEN"
)

// Decision результат Evaluate: либо доступ разрешён, либо отказ с кодом,
// HTTP-статусом, сообщением и дополнительными полями ответа.
type Decision struct {
	Allowed bool
	Code    Code
	Status  int
	Message string
	Extra   map[string]any
}

// Allow разрешающее решение.
func Allow() Decision {
	return Decision{Allowed: true}
}

// Deny запрещающее решение.
func Deny(code Code, status int, message string, extra map[string]any) Decision {
	return Decision{
		Code:    code,
		Status:  status,
		Message: message,
		Extra:   extra,
	}
}

// Category возвращает категорию отказа по HTTP-статусу.
func (d Decision) Category() string {
	if d.Status == http.StatusPaymentRequired {
		return CategoryPaymentRequired
	}
	return CategoryForbidden
}

// Body формирует тело ответа об отказе: {error, message, code, ...extra}.
// Поля extra не перетирают обязательные ключи.
func (d Decision) Body() map[string]any {
	body := make(map[string]any, len(d.Extra)+3)
	for k, v := range d.Extra {
		body[k] = v
	}
	body["error"] = d.Category()
	body["message"] = d.Message
	body["code"] = string(d.Code)
	return body
}
