// Package rpc процедурный слой: типизированные процедуры под /rpc/{procedure}
// и цепочки guard'ов, через которые проходит каждый вызов.
package rpc

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/magabrotheeeer/stable-manager/internal/entitlement"
)

// Code категория ошибки процедуры.
type Code string

const (
	CodeBadRequest         Code = "BAD_REQUEST"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodePaymentRequired    Code = "PAYMENT_REQUIRED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeMethodNotSupported Code = "METHOD_NOT_SUPPORTED"
	CodeTooManyRequests    Code = "TOO_MANY_REQUESTS"
	CodeInternal           Code = "INTERNAL_SERVER_ERROR"
)

var httpStatus = map[Code]int{
	CodeBadRequest:         http.StatusBadRequest,
	CodeUnauthorized:       http.StatusUnauthorized,
	CodePaymentRequired:    http.StatusPaymentRequired,
	CodeForbidden:          http.StatusForbidden,
	CodeNotFound:           http.StatusNotFound,
	CodeMethodNotSupported: http.StatusMethodNotAllowed,
	CodeTooManyRequests:    http.StatusTooManyRequests,
	CodeInternal:           http.StatusInternalServerError,
}

// Причины отказа guard'а админской сессии.
const (
	ReasonAdminRequired           = "ADMIN_REQUIRED"
	ReasonAdminSessionRequired    = "ADMIN_SESSION_REQUIRED"
	ReasonAdminSessionUnavailable = "ADMIN_SESSION_UNAVAILABLE"
)

// Error структурированная ошибка процедуры. Reason уточняет Code
// машиночитаемой причиной, Data попадает в тело ответа как есть.
type Error struct {
	Code    Code
	Message string
	Reason  string
	Data    map[string]any
}

// NewError ошибка без причины и данных.
func NewError(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithReason ошибка с уточняющей причиной.
func WithReason(code Code, reason, message string) *Error {
	return &Error{Code: code, Reason: reason, Message: message}
}

// FromDecision переводит отказ политики доступа в ошибку процедуры.
// Тело ответа совпадает с телом отказа шлюза.
func FromDecision(d entitlement.Decision) *Error {
	return &Error{
		Code:    Code(d.Category()),
		Message: d.Message,
		Reason:  string(d.Code),
		Data:    d.Extra,
	}
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s (%s): %s", e.Code, e.Reason, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// HTTPStatus HTTP-статус ответа для ошибки.
func (e *Error) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Body тело ответа: {error, message, code, ...data}.
func (e *Error) Body() map[string]any {
	body := make(map[string]any, len(e.Data)+3)
	for k, v := range e.Data {
		body[k] = v
	}
	code := e.Reason
	if code == "" {
		code = string(e.Code)
	}
	body["error"] = string(e.Code)
	body["message"] = e.Message
	body["code"] = code
	return body
}

// AsError достаёт *Error из цепочки. Остальные ошибки становятся
// INTERNAL_SERVER_ERROR без подробностей.
func AsError(err error) (*Error, bool) {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}
	return NewError(CodeInternal, "internal error"), false
}
