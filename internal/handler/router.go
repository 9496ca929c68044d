package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"

	custommiddleware "github.com/mmeshcher/expense-tracker/internal/middleware"
)

const (
	loginRateLimit  = 10
	loginRateWindow = time.Minute
)

// RouterOptions настраивает middleware, зависящие от окружения.
type RouterOptions struct {
	// DevMode отключает HSTS и редирект на HTTPS.
	DevMode bool
	// ImageSources добавляется в img-src политики CSP, чтобы показывать чеки из хранилища.
	ImageSources string
}

// SetupRouter настраивает HTTP-маршруты и middleware панели счетов.
func (h *Handler) SetupRouter(opts RouterOptions) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders(opts).Handler)
	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))

	r.Get("/healthz", h.Healthz)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, dashboardPath, http.StatusSeeOther)
	})

	r.Get(loginPath, h.LoginPage)
	r.With(httprate.LimitByIP(loginRateLimit, loginRateWindow)).Post(loginPath, h.Login)
	r.Post("/logout", h.Logout)

	r.Group(func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Route(dashboardPath, func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Get("/create", h.CreateInvoicePage)
			r.Post("/create", h.CreateInvoice)
			r.Get("/{id}/edit", h.EditInvoicePage)
			r.Post("/{id}/edit", h.UpdateInvoice)
			r.Post("/{id}/delete", h.DeleteInvoice)
		})

		r.Route("/api", func(r chi.Router) {
			r.Post("/upload", h.PresignUpload)
			r.Get("/customers", h.APIListCustomers)
			r.Get("/invoices", h.APIListInvoices)
			r.Post("/invoices", h.APICreateInvoice)
			r.Put("/invoices/{id}", h.APIUpdateInvoice)
			r.Delete("/invoices/{id}", h.APIDeleteInvoice)
			r.Get("/invoices/{id}/receipt", h.ReceiptURL)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	})

	return r
}

func securityHeaders(opts RouterOptions) *secure.Secure {
	imgSrc := "'self' data:"
	if opts.ImageSources != "" {
		imgSrc += " " + opts.ImageSources
	}

	return secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "same-origin",
		ContentSecurityPolicy: "default-src 'self'; img-src " + imgSrc + "; form-action 'self'",
		STSSeconds:            31536000,
		STSIncludeSubdomains:  true,
		IsDevelopment:         opts.DevMode,
	})
}
