package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/validation"
)

// Сообщения, возвращаемые операциями со счетами.
const (
	MsgCreateMissingFields = "Missing Fields. Failed to Create Invoice."
	MsgUpdateMissingFields = "Missing Fields. Failed to Update Invoice."
	MsgCreateDBError       = "Database Error: Failed to Create Invoice."
	MsgUpdateDBError       = "Database Error: Failed to Update Invoice."
	MsgDeleteDBError       = "Database Error: Failed to Delete Invoice."
	MsgDeleted             = "Deleted Invoice."
	MsgUploadError         = "Upload Error: Failed to Upload Receipt."
)

// ResultKind различает исходы операции со счётом.
type ResultKind int

const (
	// ResultOK означает, что изменение сохранено.
	ResultOK ResultKind = iota
	// ResultValidationError означает, что поля формы не прошли проверку и БД не затрагивалась.
	ResultValidationError
	// ResultPersistenceError означает ошибку БД.
	ResultPersistenceError
	// ResultUploadError означает, что файл чека не попал в хранилище и счёт не сохранялся.
	ResultUploadError
)

// String возвращает имя исхода для логов.
func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultValidationError:
		return "validation_error"
	case ResultPersistenceError:
		return "persistence_error"
	case ResultUploadError:
		return "upload_error"
	default:
		return "unknown"
	}
}

// Result описывает исход операции со счётом.
type Result struct {
	Kind    ResultKind
	ID      string
	Fields  model.InvoiceFields
	Errors  validation.Errors
	Message string
}

// OK сообщает, что операция завершилась успешно.
func (r Result) OK() bool {
	return r.Kind == ResultOK
}

// CreateInvoice проверяет форму и сохраняет новый счёт с датой создания, равной сегодняшнему дню.
func (s *Service) CreateInvoice(ctx context.Context, form model.InvoiceForm) Result {
	return s.CreateInvoiceWithID(ctx, s.newID(), form)
}

// CreateInvoiceWithID сохраняет счёт с заданным идентификатором.
// Повторная отправка с тем же идентификатором ничего не меняет и считается успешной.
func (s *Service) CreateInvoiceWithID(ctx context.Context, id string, form model.InvoiceForm) Result {
	fields, res, ok := s.validate(form, MsgCreateMissingFields)
	if !ok {
		return res
	}

	inv := model.Invoice{
		ID:          id,
		CustomerID:  fields.CustomerID,
		AmountCents: fields.AmountCents,
		Status:      fields.Status,
		ReceiptKey:  fields.ReceiptID,
		Date:        today(s.now()),
	}

	inserted, err := s.repo.InsertInvoice(ctx, inv)
	if err != nil {
		s.logger.Error("create invoice", zap.Error(err), zap.String("id", id))
		return Result{Kind: ResultPersistenceError, Message: MsgCreateDBError}
	}
	if !inserted {
		s.logger.Info("duplicate invoice submission ignored", zap.String("id", id))
	}

	s.invalidateList(ctx)

	return Result{Kind: ResultOK, ID: id, Fields: fields}
}

// UpdateInvoice проверяет форму и обновляет счёт. Пустой ReceiptID очищает ссылку на чек,
// поэтому вызывающая сторона должна передавать прежний ключ, если вложение не менялось.
func (s *Service) UpdateInvoice(ctx context.Context, id string, form model.InvoiceForm) Result {
	fields, res, ok := s.validate(form, MsgUpdateMissingFields)
	if !ok {
		return res
	}

	if err := s.repo.UpdateInvoice(ctx, id, fields); err != nil {
		s.logger.Error("update invoice", zap.Error(err), zap.String("id", id))
		return Result{Kind: ResultPersistenceError, Message: MsgUpdateDBError}
	}

	s.invalidateList(ctx)

	return Result{Kind: ResultOK, ID: id, Fields: fields}
}

// DeleteInvoice удаляет счёт. Удаление несуществующего счёта считается успешным.
func (s *Service) DeleteInvoice(ctx context.Context, id string) Result {
	if err := s.repo.DeleteInvoice(ctx, id); err != nil {
		s.logger.Error("delete invoice", zap.Error(err), zap.String("id", id))
		return Result{Kind: ResultPersistenceError, Message: MsgDeleteDBError}
	}

	s.invalidateList(ctx)

	return Result{Kind: ResultOK, ID: id, Message: MsgDeleted}
}

func (s *Service) validate(form model.InvoiceForm, summary string) (model.InvoiceFields, Result, bool) {
	fields, err := s.validator.Validate(form)
	if err == nil {
		return fields, Result{}, true
	}

	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		s.logger.Error("validate invoice form", zap.Error(err))
		verrs = validation.Errors{}
	}

	return model.InvoiceFields{}, Result{Kind: ResultValidationError, Errors: verrs, Message: summary}, false
}

func today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
