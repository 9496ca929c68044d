// Package storage выдаёт подписанные дескрипторы загрузки чеков в S3 и строит публичные ссылки на них.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// KeyPrefix задаёт префикс ключей объектов с чеками.
const KeyPrefix = "receipts/"

var (
	// ErrUnsupportedContentType возвращается для файлов, не являющихся изображениями PNG или JPEG.
	ErrUnsupportedContentType = errors.New("unsupported content type")
	// ErrEmptyFilename возвращается, если имя файла не указано.
	ErrEmptyFilename = errors.New("empty filename")
)

var allowedContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
}

// UploadDescriptor содержит адрес и поля формы для прямой загрузки файла в хранилище.
type UploadDescriptor struct {
	URL    string            `json:"url"`
	Fields map[string]string `json:"fields"`
}

// Key возвращает ключ объекта, под которым файл будет сохранён.
func (d *UploadDescriptor) Key() string {
	if d == nil {
		return ""
	}
	return d.Fields["key"]
}

// Options содержит параметры подключения к объектному хранилищу.
type Options struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Insecure        bool
	MaxBytes        int64
	URLTTL          time.Duration
}

// Presigner выдаёт подписанные POST-политики для загрузки чеков.
type Presigner struct {
	client   *minio.Client
	bucket   string
	maxBytes int64
	ttl      time.Duration
	newKey   func(ext string) string
}

// NewPresigner создаёт Presigner. Сетевых обращений при создании не выполняется.
func NewPresigner(opts Options) (*Presigner, error) {
	if opts.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure: !opts.Insecure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &Presigner{
		client:   client,
		bucket:   opts.Bucket,
		maxBytes: opts.MaxBytes,
		ttl:      opts.URLTTL,
		newKey: func(ext string) string {
			return KeyPrefix + uuid.NewString() + ext
		},
	}, nil
}

// PresignUpload формирует дескриптор загрузки для файла с указанным именем и типом содержимого.
func (p *Presigner) PresignUpload(ctx context.Context, filename, contentType string) (*UploadDescriptor, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, ErrEmptyFilename
	}

	ext, ok := allowedContentTypes[contentType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedContentType, contentType)
	}
	if e := strings.ToLower(path.Ext(filename)); e == ".jpeg" || e == ".jpg" || e == ".png" {
		ext = e
	}

	policy := minio.NewPostPolicy()
	if err := policy.SetBucket(p.bucket); err != nil {
		return nil, fmt.Errorf("set bucket: %w", err)
	}
	if err := policy.SetKey(p.newKey(ext)); err != nil {
		return nil, fmt.Errorf("set key: %w", err)
	}
	if err := policy.SetContentType(contentType); err != nil {
		return nil, fmt.Errorf("set content type: %w", err)
	}
	if err := policy.SetContentLengthRange(1, p.maxBytes); err != nil {
		return nil, fmt.Errorf("set content length: %w", err)
	}
	if err := policy.SetExpires(time.Now().UTC().Add(p.ttl)); err != nil {
		return nil, fmt.Errorf("set expiry: %w", err)
	}

	u, fields, err := p.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		return nil, fmt.Errorf("presign post policy: %w", err)
	}

	return &UploadDescriptor{URL: u.String(), Fields: fields}, nil
}

// Resolver строит публичные ссылки на сохранённые чеки.
type Resolver struct {
	bucket string
	region string
}

// NewResolver создаёт Resolver для указанных бакета и региона.
func NewResolver(bucket, region string) *Resolver {
	return &Resolver{bucket: bucket, region: region}
}

// ReceiptURL возвращает ссылку вида https://{bucket}.s3.{region}.amazonaws.com/{key}.
// Существование объекта не проверяется. Для пустого ключа вызывать не следует.
func (r *Resolver) ReceiptURL(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", r.bucket, r.region, strings.Join(segments, "/"))
}
