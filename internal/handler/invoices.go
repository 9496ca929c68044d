package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/repository"
	"github.com/mmeshcher/expense-tracker/internal/service"
	"github.com/mmeshcher/expense-tracker/internal/uploader"
	"github.com/mmeshcher/expense-tracker/internal/validation"
	"github.com/mmeshcher/expense-tracker/internal/view"
)

const receiptFormField = "receipt"

var errUploadsDisabled = errors.New("receipt storage is not configured")

// submission описывает одну отправку формы счёта. Передаётся по значению,
// каждый шаг возвращает новую копию.
type submission struct {
	form model.InvoiceForm
	file *uploader.File
}

// withReceipt возвращает копию отправки с ключом загруженного чека.
func (s submission) withReceipt(key string) submission {
	s.form.ReceiptID = key
	s.file = nil
	return s
}

type formPage struct {
	ID         string
	Form       model.InvoiceForm
	Customers  []model.Customer
	Errors     validation.Errors
	Message    string
	ReceiptURL string
}

type listPage struct {
	Invoices []model.InvoiceView
}

// ListInvoices показывает таблицу счетов.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.logger.Error("list invoices error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.render(w, http.StatusOK, "pages/invoices.html", view.TemplateData{
		Title: "Invoices",
		Flash: r.URL.Query().Get("message"),
		Data:  listPage{Invoices: invoices},
	})
}

// CreateInvoicePage показывает пустую форму создания счёта.
func (h *Handler) CreateInvoicePage(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "pages/create.html", formPage{})
}

// CreateInvoice обрабатывает отправку формы создания счёта.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	sub, cleanup, err := h.readSubmission(w, r)
	if err != nil {
		h.logger.Info("bad invoice form", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer cleanup()

	sub.form.ReceiptID = ""
	res := h.submit(r.Context(), sub, service.MsgCreateMissingFields, func(ctx context.Context, form model.InvoiceForm) service.Result {
		return h.service.CreateInvoice(ctx, form)
	})
	if res.OK() {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	h.renderForm(w, r, resultStatus(res), "pages/create.html", formPage{
		Form:    sub.form,
		Errors:  res.Errors,
		Message: res.Message,
	})
}

// EditInvoicePage показывает форму редактирования с текущими значениями счёта.
func (h *Handler) EditInvoicePage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrInvoiceNotFound) {
			http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
			return
		}
		h.logger.Error("get invoice error", zap.Error(err), zap.String("id", id))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.renderForm(w, r, http.StatusOK, "pages/edit.html", formPage{
		ID: inv.ID,
		Form: model.InvoiceForm{
			CustomerID: inv.CustomerID,
			Amount:     formatCents(inv.AmountCents),
			Status:     string(inv.Status),
			ReceiptID:  inv.ReceiptKey,
		},
		ReceiptURL: h.receiptURL(inv.ReceiptKey),
	})
}

// UpdateInvoice обрабатывает отправку формы редактирования счёта.
// Скрытое поле receiptId сохраняет прежний чек, флажок removeReceipt убирает его,
// новый файл заменяет.
func (h *Handler) UpdateInvoice(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sub, cleanup, err := h.readSubmission(w, r)
	if err != nil {
		h.logger.Info("bad invoice form", zap.Error(err), zap.String("id", id))
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	defer cleanup()

	if r.PostFormValue("removeReceipt") != "" {
		sub.form.ReceiptID = ""
	}

	res := h.submit(r.Context(), sub, service.MsgUpdateMissingFields, func(ctx context.Context, form model.InvoiceForm) service.Result {
		return h.service.UpdateInvoice(ctx, id, form)
	})
	if res.OK() {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}

	h.renderForm(w, r, resultStatus(res), "pages/edit.html", formPage{
		ID:         id,
		Form:       sub.form,
		Errors:     res.Errors,
		Message:    res.Message,
		ReceiptURL: h.receiptURL(sub.form.ReceiptID),
	})
}

// DeleteInvoice удаляет счёт и возвращает на список с сообщением об исходе.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	res := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "id"))
	http.Redirect(w, r, dashboardPath+"?message="+url.QueryEscape(res.Message), http.StatusSeeOther)
}

// submit загружает приложенный файл, затем передаёт форму операции mutate.
// Форма с файлом проверяется до загрузки, чтобы отклонённая отправка не оставляла объект в хранилище.
// Ошибка загрузки прерывает отправку, и счёт не сохраняется.
func (h *Handler) submit(ctx context.Context, sub submission, summary string, mutate func(context.Context, model.InvoiceForm) service.Result) service.Result {
	if sub.file != nil {
		if _, err := h.validator.Validate(sub.form); err != nil {
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				verrs = validation.Errors{}
			}
			return service.Result{Kind: service.ResultValidationError, Errors: verrs, Message: summary}
		}

		key, err := h.uploadReceipt(ctx, *sub.file)
		if err != nil {
			h.logger.Error("upload receipt error", zap.Error(err), zap.String("filename", sub.file.Name))
			return service.Result{Kind: service.ResultUploadError, Message: service.MsgUploadError}
		}
		sub = sub.withReceipt(key)
	}

	res := mutate(ctx, sub.form)
	if !res.OK() {
		h.logger.Info("invoice submission rejected",
			zap.Stringer("kind", res.Kind),
			zap.String("message", res.Message),
		)
	}
	return res
}

func (h *Handler) uploadReceipt(ctx context.Context, f uploader.File) (string, error) {
	if h.uploader == nil {
		return "", errUploadsDisabled
	}
	return h.uploader.Upload(ctx, f)
}

// readSubmission разбирает multipart-форму. Возвращаемая функция освобождает временные файлы.
func (h *Handler) readSubmission(w http.ResponseWriter, r *http.Request) (submission, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return submission{}, noop, fmt.Errorf("parse form: %w", err)
	}

	sub := submission{form: formFromRequest(r)}

	file, header, err := r.FormFile(receiptFormField)
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return sub, noop, nil
	case err != nil:
		return submission{}, noop, fmt.Errorf("read receipt: %w", err)
	}

	cleanup := func() {
		_ = file.Close()
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}

	if header.Filename == "" || header.Size == 0 {
		return sub, cleanup, nil
	}

	sub.file = &uploader.File{
		Name:        header.Filename,
		ContentType: fileContentType(header, file),
		Body:        file,
	}
	return sub, cleanup, nil
}

func formFromRequest(r *http.Request) model.InvoiceForm {
	return model.InvoiceForm{
		CustomerID: r.PostFormValue(validation.FieldCustomerID),
		Amount:     r.PostFormValue(validation.FieldAmount),
		Status:     r.PostFormValue(validation.FieldStatus),
		ReceiptID:  r.PostFormValue(validation.FieldReceiptID),
	}
}

// fileContentType берёт тип из заголовка части, а при его отсутствии определяет по содержимому.
func fileContentType(header *multipart.FileHeader, file multipart.File) string {
	if ct := header.Header.Get("Content-Type"); ct != "" && ct != "application/octet-stream" {
		return ct
	}

	buf := make([]byte, 512)
	n, _ := io.ReadFull(file, buf)
	_, _ = file.Seek(0, io.SeekStart)
	return http.DetectContentType(buf[:n])
}

func (h *Handler) renderForm(w http.ResponseWriter, r *http.Request, status int, name string, page formPage) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers error", zap.Error(err))
	}
	page.Customers = customers

	title := "Create Invoice"
	if strings.HasSuffix(name, "edit.html") {
		title = "Edit Invoice"
	}
	h.render(w, status, name, view.TemplateData{Title: title, Data: page})
}

func resultStatus(res service.Result) int {
	switch res.Kind {
	case service.ResultOK:
		return http.StatusOK
	case service.ResultValidationError:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
