package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/repository"
	"github.com/mmeshcher/expense-tracker/internal/service"
	"github.com/mmeshcher/expense-tracker/internal/storage"
	"github.com/mmeshcher/expense-tracker/internal/validation"
)

type uploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// PresignUpload выдаёт дескриптор для прямой загрузки чека в хранилище.
func (h *Handler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	if h.presigner == nil {
		h.logger.Error("presign upload error", zap.Error(errUploadsDisabled))
		http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		return
	}

	var req uploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Filename == "" || req.ContentType == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	desc, err := h.presigner.PresignUpload(r.Context(), req.Filename, req.ContentType)
	if err != nil {
		if errors.Is(err, storage.ErrUnsupportedContentType) || errors.Is(err, storage.ErrEmptyFilename) {
			http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
			return
		}
		h.logger.Error("presign upload error", zap.Error(err), zap.String("filename", req.Filename))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, desc)
}

type validationResponse struct {
	Errors  validation.Errors `json:"errors"`
	Message string            `json:"message"`
}

// APIListInvoices возвращает список счетов в JSON.
func (h *Handler) APIListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.ListInvoices(r.Context())
	if err != nil {
		h.logger.Error("list invoices error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(invoices) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.writeJSON(w, http.StatusOK, invoices)
}

// APIListCustomers возвращает список клиентов в JSON.
func (h *Handler) APIListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.service.ListCustomers(r.Context())
	if err != nil {
		h.logger.Error("list customers error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, customers)
}

// APICreateInvoice создаёт счёт из формы, закодированной как application/x-www-form-urlencoded.
func (h *Handler) APICreateInvoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.writeResult(w, r, h.service.CreateInvoice(r.Context(), formFromRequest(r)))
}

// APIUpdateInvoice обновляет счёт. Пустой или отсутствующий receiptId убирает чек.
func (h *Handler) APIUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	h.writeResult(w, r, h.service.UpdateInvoice(r.Context(), chi.URLParam(r, "id"), formFromRequest(r)))
}

// APIDeleteInvoice удаляет счёт и возвращает сообщение об исходе.
func (h *Handler) APIDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	res := h.service.DeleteInvoice(r.Context(), chi.URLParam(r, "id"))

	status := http.StatusOK
	if !res.OK() {
		status = http.StatusInternalServerError
	}
	h.writeJSON(w, status, messageResponse{Message: res.Message})
}

type receiptResponse struct {
	URL string `json:"url"`
}

// ReceiptURL возвращает публичную ссылку на чек счёта.
func (h *Handler) ReceiptURL(w http.ResponseWriter, r *http.Request) {
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

	link := h.receiptURL(inv.ReceiptKey)
	if link == "" {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, receiptResponse{URL: link})
}

// writeResult переводит исход операции в HTTP-ответ: успех перенаправляет на список счетов.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res service.Result) {
	switch res.Kind {
	case service.ResultOK:
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	case service.ResultValidationError:
		h.writeJSON(w, http.StatusUnprocessableEntity, validationResponse{Errors: res.Errors, Message: res.Message})
	default:
		h.writeJSON(w, http.StatusInternalServerError, messageResponse{Message: res.Message})
	}
}
