// Package cli реализует клиент API панели счетов и команды утилиты invoicectl.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/expense-tracker/internal/model"
	"github.com/mmeshcher/expense-tracker/internal/uploader"
	"github.com/mmeshcher/expense-tracker/internal/validation"
)

// ErrInvalidCredentials возвращается, если сервер отклонил email или пароль.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrNotFound возвращается для отсутствующих счетов и чеков.
var ErrNotFound = errors.New("not found")

// APIError описывает отказ сервера выполнить операцию со счётом.
type APIError struct {
	Status  int               `json:"-"`
	Message string            `json:"message"`
	Errors  validation.Errors `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("%s (%s)", e.Message, e.Errors.Error())
	}
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// Client обращается к API панели счетов от имени вошедшего пользователя.
type Client struct {
	baseURL    string
	httpClient *http.Client
	uploads    *uploader.Client
	logger     *zap.Logger
}

// NewClient создаёт клиент для сервера baseURL. Cookie авторизации хранятся в памяти процесса.
func NewClient(baseURL string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	httpClient := &http.Client{
		Jar:     jar,
		Timeout: 30 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	// Хранилище принимает файлы без cookie сервера, поэтому загрузка идёт отдельным клиентом.
	storageClient := &http.Client{Timeout: 30 * time.Second}
	descriptors := uploader.NewHTTPDescriptorSource(base, httpClient)

	return &Client{
		baseURL:    base,
		httpClient: httpClient,
		uploads:    uploader.NewClient(descriptors, storageClient),
		logger:     logger,
	}, nil
}

// Login выполняет вход и сохраняет cookie авторизации.
func (c *Client) Login(ctx context.Context, email, password string) error {
	form := url.Values{"email": {email}, "password": {password}}

	resp, err := c.postForm(ctx, http.MethodPost, "/login", form)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusSeeOther:
		c.logger.Debug("logged in", zap.String("email", email))
		return nil
	case http.StatusUnauthorized:
		return ErrInvalidCredentials
	default:
		return fmt.Errorf("login: unexpected status %d", resp.StatusCode)
	}
}

// ListInvoices возвращает все счета, новые первыми.
func (c *Client) ListInvoices(ctx context.Context) ([]model.InvoiceView, error) {
	var invoices []model.InvoiceView
	if err := c.getJSON(ctx, "/api/invoices", &invoices); err != nil {
		return nil, err
	}
	return invoices, nil
}

// ListCustomers возвращает клиентов, которым можно выставить счёт.
func (c *Client) ListCustomers(ctx context.Context) ([]model.Customer, error) {
	var customers []model.Customer
	if err := c.getJSON(ctx, "/api/customers", &customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// UploadReceipt загружает файл чека и возвращает ключ объекта.
func (c *Client) UploadReceipt(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open receipt: %w", err)
	}
	defer f.Close()

	head := make([]byte, 512)
	n, _ := io.ReadFull(f, head)
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind receipt: %w", err)
	}

	key, err := c.uploads.Upload(ctx, uploader.File{
		Name:        filepath.Base(path),
		ContentType: http.DetectContentType(head[:n]),
		Body:        f,
	})
	if err != nil {
		return "", err
	}

	c.logger.Debug("receipt uploaded", zap.String("key", key))
	return key, nil
}

// CreateInvoice создаёт счёт.
func (c *Client) CreateInvoice(ctx context.Context, form model.InvoiceForm) error {
	return c.mutate(ctx, http.MethodPost, "/api/invoices", form)
}

// UpdateInvoice обновляет счёт. Пустой ReceiptID убирает чек.
func (c *Client) UpdateInvoice(ctx context.Context, id string, form model.InvoiceForm) error {
	return c.mutate(ctx, http.MethodPut, "/api/invoices/"+url.PathEscape(id), form)
}

// DeleteInvoice удаляет счёт и возвращает сообщение сервера.
func (c *Client) DeleteInvoice(ctx context.Context, id string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/invoices/"+url.PathEscape(id), nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("delete invoice: %w", err)
	}
	defer resp.Body.Close()

	apiErr := decodeAPIError(resp)
	if resp.StatusCode != http.StatusOK {
		return "", apiErr
	}
	return apiErr.Message, nil
}

// ReceiptURL возвращает публичную ссылку на чек счёта.
func (c *Client) ReceiptURL(ctx context.Context, id string) (string, error) {
	var out struct {
		URL string `json:"url"`
	}
	if err := c.getJSON(ctx, "/api/invoices/"+url.PathEscape(id)+"/receipt", &out); err != nil {
		return "", err
	}
	return out.URL, nil
}

func (c *Client) mutate(ctx context.Context, method, path string, form model.InvoiceForm) error {
	values := url.Values{
		validation.FieldCustomerID: {form.CustomerID},
		validation.FieldAmount:     {form.Amount},
		validation.FieldStatus:     {form.Status},
		validation.FieldReceiptID:  {form.ReceiptID},
	}

	resp, err := c.postForm(ctx, method, path, values)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusSeeOther {
		return nil
	}
	return decodeAPIError(resp)
}

func (c *Client) postForm(ctx context.Context, method, path string, values url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("decode %s: %w", path, err)
		}
		return nil
	case http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return decodeAPIError(resp)
	}
}

func decodeAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		_ = json.NewDecoder(resp.Body).Decode(apiErr)
	}
	return apiErr
}
