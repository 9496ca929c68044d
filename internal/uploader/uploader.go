// Package uploader реализует двухфазную загрузку чека: получение подписанного дескриптора
// и отправку файла напрямую в объектное хранилище.
package uploader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmeshcher/expense-tracker/internal/storage"
)

var (
	// ErrDescriptor возвращается, если не удалось получить дескриптор загрузки.
	ErrDescriptor = errors.New("failed to get pre-signed upload descriptor")
	// ErrUpload возвращается, если хранилище не приняло файл.
	ErrUpload = errors.New("failed to upload file to storage")
	// ErrNoKey возвращается, если дескриптор не содержит ключа объекта.
	ErrNoKey = errors.New("upload descriptor has no key")
)

// File описывает загружаемый файл.
type File struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// DescriptorSource выдаёт дескрипторы загрузки.
type DescriptorSource interface {
	PresignUpload(ctx context.Context, filename, contentType string) (*storage.UploadDescriptor, error)
}

// Client выполняет загрузку файлов по подписанным дескрипторам.
type Client struct {
	descriptors DescriptorSource
	httpClient  *http.Client
}

// NewClient создаёт клиент загрузки. При httpClient == nil используется клиент с таймаутом 30 секунд.
func NewClient(descriptors DescriptorSource, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		descriptors: descriptors,
		httpClient:  httpClient,
	}
}

// Upload загружает файл и возвращает ключ объекта в хранилище.
// Любая ошибка любой из фаз прерывает загрузку целиком.
func (c *Client) Upload(ctx context.Context, f File) (string, error) {
	d, err := c.descriptors.PresignUpload(ctx, f.Name, f.ContentType)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDescriptor, err)
	}

	key := d.Key()
	if key == "" {
		return "", ErrNoKey
	}

	body, contentType, err := buildForm(d.Fields, f)
	if err != nil {
		return "", fmt.Errorf("build upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpload, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d: %s", ErrUpload, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	return key, nil
}

// buildForm собирает multipart-форму: сначала поля дескриптора, затем файл, который S3 требует последним.
func buildForm(fields map[string]string, f File) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := mw.WriteField(name, fields[name]); err != nil {
			return nil, "", err
		}
	}

	part, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, f.Body); err != nil {
		return nil, "", err
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return &buf, mw.FormDataContentType(), nil
}

// HTTPDescriptorSource запрашивает дескрипторы у эндпоинта POST /api/upload сервиса.
type HTTPDescriptorSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPDescriptorSource создаёт источник дескрипторов для сервиса по указанному адресу.
func NewHTTPDescriptorSource(baseURL string, httpClient *http.Client) *HTTPDescriptorSource {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &HTTPDescriptorSource{
		baseURL:    base,
		httpClient: httpClient,
	}
}

type descriptorRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

// PresignUpload запрашивает дескриптор загрузки у сервиса.
func (s *HTTPDescriptorSource) PresignUpload(ctx context.Context, filename, contentType string) (*storage.UploadDescriptor, error) {
	payload, err := json.Marshal(descriptorRequest{Filename: filename, ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/upload", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var d storage.UploadDescriptor
	if err := json.NewDecoder(resp.Body).Decode(&d); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &d, nil
}
