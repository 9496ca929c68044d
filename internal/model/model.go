// Package model содержит доменные сущности сервиса учёта расходов.
package model

import "time"

// DateLayout задаёт формат даты счёта.
const DateLayout = "2006-01-02"

// User представляет пользователя панели управления.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash []byte
}

// Customer описывает клиента, на которого выставляется счёт.
type Customer struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	ImageURL string `json:"image_url"`
}

// InvoiceStatus описывает статус оплаты счёта.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
)

// Valid сообщает, является ли статус допустимым значением перечисления.
func (s InvoiceStatus) Valid() bool {
	return s == InvoiceStatusPending || s == InvoiceStatusPaid
}

// Invoice описывает сохранённый счёт.
type Invoice struct {
	ID          string
	CustomerID  string
	AmountCents int64
	Status      InvoiceStatus
	// ReceiptKey пуст, если чек не прикреплён.
	ReceiptKey string
	Date       time.Time
}

// InvoiceView описывает строку списка счетов вместе с данными клиента.
type InvoiceView struct {
	ID           string        `json:"id"`
	CustomerID   string        `json:"customer_id"`
	CustomerName string        `json:"customer_name"`
	Email        string        `json:"email"`
	AmountCents  int64         `json:"amount"`
	Status       InvoiceStatus `json:"status"`
	ReceiptKey   string        `json:"receipt_id,omitempty"`
	Date         string        `json:"date"`
}

// InvoiceForm содержит сырые строковые значения полей формы счёта.
type InvoiceForm struct {
	CustomerID string
	Amount     string
	Status     string
	ReceiptID  string
}

// InvoiceFields содержит проверенные и нормализованные поля счёта.
type InvoiceFields struct {
	CustomerID  string
	AmountCents int64
	Status      InvoiceStatus
	ReceiptID   string
}
