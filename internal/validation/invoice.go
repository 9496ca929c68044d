// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"math"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/mmeshcher/expense-tracker/internal/model"
)

// Имена полей формы счёта в том виде, в каком они приходят от клиента.
const (
	FieldCustomerID = "customerId"
	FieldAmount     = "amount"
	FieldStatus     = "status"
	FieldReceiptID  = "receiptId"
)

// Сообщения об ошибках полей формы.
const (
	MsgCustomer = "Please select a customer."
	MsgAmount   = "Please enter an amount greater than $0."
	MsgStatus   = "Please select an invoice status."
)

// Errors содержит ошибки валидации по полям формы.
type Errors map[string][]string

// Error реализует интерфейс error.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return "invalid fields: " + strings.Join(fields, ", ")
}

func (e Errors) add(field, msg string) {
	e[field] = append(e[field], msg)
}

type invoiceSchema struct {
	CustomerID string `validate:"required"`
	Status     string `validate:"required,oneof=pending paid"`
}

var schemaMessages = map[string]struct{ field, msg string }{
	"CustomerID": {FieldCustomerID, MsgCustomer},
	"Status":     {FieldStatus, MsgStatus},
}

var hundred = decimal.NewFromInt(100)

// InvoiceValidator проверяет поля формы счёта.
type InvoiceValidator struct {
	validate *validator.Validate
}

// NewInvoiceValidator создаёт валидатор формы счёта.
func NewInvoiceValidator() *InvoiceValidator {
	return &InvoiceValidator{validate: validator.New()}
}

// Validate проверяет все поля формы сразу и возвращает либо нормализованные поля, либо Errors.
func (v *InvoiceValidator) Validate(form model.InvoiceForm) (model.InvoiceFields, error) {
	errs := Errors{}

	schema := invoiceSchema{
		CustomerID: strings.TrimSpace(form.CustomerID),
		Status:     form.Status,
	}
	if err := v.validate.Struct(schema); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.InvoiceFields{}, err
		}
		for _, fe := range verrs {
			m, ok := schemaMessages[fe.Field()]
			if !ok {
				continue
			}
			errs.add(m.field, m.msg)
		}
	}

	cents, ok := ParseAmountCents(form.Amount)
	if !ok {
		errs.add(FieldAmount, MsgAmount)
	}

	if len(errs) > 0 {
		return model.InvoiceFields{}, errs
	}

	return model.InvoiceFields{
		CustomerID:  schema.CustomerID,
		AmountCents: cents,
		Status:      model.InvoiceStatus(form.Status),
		ReceiptID:   form.ReceiptID,
	}, nil
}

const (
	maxAmountLen = 32
	maxAmountExp = 18
)

// ParseAmountCents переводит десятичную сумму в центы с округлением до ближайшего цента.
// Нулевые, отрицательные и нечисловые значения отклоняются.
func ParseAmountCents(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || len(raw) > maxAmountLen {
		return 0, false
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	// Mul, Round и Cmp масштабируют коэффициент на 10^|exp|
	if exp := amount.Exponent(); exp < -maxAmountExp || exp > maxAmountExp {
		return 0, false
	}
	if !amount.IsPositive() {
		return 0, false
	}

	cents := amount.Mul(hundred).Round(0)
	if cents.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, false
	}
	// суммы меньше половины цента округляются в ноль
	if !cents.IsPositive() {
		return 0, false
	}

	return cents.IntPart(), true
}
