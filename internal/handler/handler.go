// Package handler содержит HTTP-обработчики панели счетов и её API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/middleware"
	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/service"
	"github.com/mmeshcher/expense-tracker/internal/uploader"
	"github.com/mmeshcher/expense-tracker/internal/validation"
	"github.com/mmeshcher/expense-tracker/internal/view"
)

const (
	dashboardPath = "/dashboard/invoices"
	loginPath     = "/login"

	defaultMaxUploadBytes = 5 << 20
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Authenticate(ctx context.Context, email, password string) (int64, error)
	ListCustomers(ctx context.Context) ([]model.Customer, error)
	ListInvoices(ctx context.Context) ([]model.InvoiceView, error)
	GetInvoice(ctx context.Context, id string) (*model.Invoice, error)
	CreateInvoice(ctx context.Context, form model.InvoiceForm) service.Result
	UpdateInvoice(ctx context.Context, id string, form model.InvoiceForm) service.Result
	DeleteInvoice(ctx context.Context, id string) service.Result
}

// Uploader загружает файл чека в хранилище и возвращает ключ объекта.
type Uploader interface {
	Upload(ctx context.Context, f uploader.File) (string, error)
}

// ReceiptResolver строит публичную ссылку на чек по ключу объекта.
type ReceiptResolver interface {
	ReceiptURL(key string) string
}

// Options содержит зависимости обработчика.
type Options struct {
	Service   Service
	Uploader  Uploader
	Presigner uploader.DescriptorSource
	Resolver  ReceiptResolver
	Views     *view.Engine
	Logger    *zap.Logger
	Auth      *middleware.AuthMiddleware

	// MaxUploadBytes ограничивает размер прикладываемого к форме файла.
	MaxUploadBytes int64
}

// Handler реализует HTTP-обработчики панели счетов.
type Handler struct {
	service        Service
	uploader       Uploader
	presigner      uploader.DescriptorSource
	resolver       ReceiptResolver
	validator      *validation.InvoiceValidator
	views          *view.Engine
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
	maxUploadBytes int64
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(opts Options) *Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxBytes := opts.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}

	return &Handler{
		service:        opts.Service,
		uploader:       opts.Uploader,
		presigner:      opts.Presigner,
		resolver:       opts.Resolver,
		validator:      validation.NewInvoiceValidator(),
		views:          opts.Views,
		logger:         logger,
		authMiddleware: opts.Auth,
		maxUploadBytes: maxBytes,
	}
}

type loginPage struct {
	Email   string
	Message string
}

// Сообщения формы входа.
const (
	msgInvalidCredentials = "Invalid credentials."
	msgSomethingWrong     = "Something went wrong."
)

// LoginPage показывает форму входа. Вошедший пользователь сразу попадает на список счетов.
func (h *Handler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.authMiddleware.UserID(r); ok {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
		return
	}
	h.render(w, http.StatusOK, "pages/login.html", view.TemplateData{Title: "Login", Data: loginPage{}})
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	email := r.PostForm.Get("email")
	password := r.PostForm.Get("password")

	userID, err := h.service.Authenticate(r.Context(), email, password)
	if err != nil {
		page := loginPage{Email: email}
		status := http.StatusUnauthorized
		if errors.Is(err, service.ErrInvalidCredentials) {
			page.Message = msgInvalidCredentials
		} else {
			h.logger.Error("login user error", zap.Error(err))
			page.Message = msgSomethingWrong
			status = http.StatusInternalServerError
		}
		h.render(w, status, "pages/login.html", view.TemplateData{Title: "Login", Data: page})
		return
	}

	h.authMiddleware.SetAuthCookie(w, userID)
	http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
}

// Logout удаляет cookie авторизации.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	h.authMiddleware.ClearAuthCookie(w)
	http.Redirect(w, r, loginPath, http.StatusSeeOther)
}

// Healthz сообщает, что процесс принимает запросы.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) render(w http.ResponseWriter, status int, name string, data view.TemplateData) {
	if err := h.views.Render(w, status, name, data); err != nil {
		h.logger.Error("render template error", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) receiptURL(key string) string {
	if key == "" || h.resolver == nil {
		return ""
	}
	return h.resolver.ReceiptURL(key)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response error", zap.Error(err))
	}
}

type messageResponse struct {
	Message string `json:"message"`
}
