package uploader

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/expense-tracker/internal/storage"
)

type stubSource struct {
	descriptor *storage.UploadDescriptor
	err        error

	gotName        string
	gotContentType string
}

func (s *stubSource) PresignUpload(ctx context.Context, filename, contentType string) (*storage.UploadDescriptor, error) {
	s.gotName = filename
	s.gotContentType = contentType
	return s.descriptor, s.err
}

// newStorageServer имитирует приём POST-формы хранилищем.
func newStorageServer(t *testing.T, status int, received map[string]string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		for k, v := range r.MultipartForm.Value {
			received[k] = v[0]
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer f.Close()
		body, _ := io.ReadAll(f)
		received["file"] = string(body)
		received["filename"] = hdr.Filename

		w.WriteHeader(status)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func TestUpload_Success(t *testing.T) {
	received := map[string]string{}
	ts := newStorageServer(t, http.StatusNoContent, received)

	src := &stubSource{
		descriptor: &storage.UploadDescriptor{
			URL: ts.URL,
			Fields: map[string]string{
				"key":    "receipts/abc.png",
				"policy": "p",
			},
		},
	}
	c := NewClient(src, ts.Client())

	key, err := c.Upload(context.Background(), File{
		Name:        "abc.png",
		ContentType: "image/png",
		Body:        strings.NewReader("PNGDATA"),
	})
	require.NoError(t, err)

	assert.Equal(t, "receipts/abc.png", key)
	assert.Equal(t, "abc.png", src.gotName)
	assert.Equal(t, "image/png", src.gotContentType)
	assert.Equal(t, "receipts/abc.png", received["key"])
	assert.Equal(t, "p", received["policy"])
	assert.Equal(t, "PNGDATA", received["file"])
	assert.Equal(t, "abc.png", received["filename"])
}

func TestUpload_DescriptorFailureSkipsUpload(t *testing.T) {
	called := false
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer ts.Close()

	c := NewClient(&stubSource{err: errors.New("presign failed")}, ts.Client())

	_, err := c.Upload(context.Background(), File{Name: "a.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrDescriptor)
	assert.False(t, called, "storage must not be contacted without a descriptor")
}

func TestUpload_StorageRejectionAborts(t *testing.T) {
	received := map[string]string{}
	ts := newStorageServer(t, http.StatusForbidden, received)

	src := &stubSource{
		descriptor: &storage.UploadDescriptor{URL: ts.URL, Fields: map[string]string{"key": "receipts/x.png"}},
	}
	c := NewClient(src, ts.Client())

	key, err := c.Upload(context.Background(), File{Name: "x.png", ContentType: "image/png", Body: strings.NewReader("x")})
	require.ErrorIs(t, err, ErrUpload)
	assert.Empty(t, key)
}

func TestUpload_MissingKey(t *testing.T) {
	src := &stubSource{
		descriptor: &storage.UploadDescriptor{URL: "http://127.0.0.1:1", Fields: map[string]string{}},
	}
	c := NewClient(src, nil)

	_, err := c.Upload(context.Background(), File{Name: "x.png", ContentType: "image/png", Body: strings.NewReader("x")})
	assert.ErrorIs(t, err, ErrNoKey)
}

func TestHTTPDescriptorSource_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/upload" {
			t.Fatalf("path = %s, want /api/upload", r.URL.Path)
		}
		var req descriptorRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.Filename != "r.jpg" || req.ContentType != "image/jpeg" {
			t.Fatalf("unexpected request: %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(storage.UploadDescriptor{
			URL:    "https://bucket.s3.amazonaws.com/",
			Fields: map[string]string{"key": "receipts/r.jpg"},
		})
	}))
	defer ts.Close()

	src := NewHTTPDescriptorSource(ts.URL+"/", ts.Client())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	d, err := src.PresignUpload(ctx, "r.jpg", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, "https://bucket.s3.amazonaws.com/", d.URL)
	assert.Equal(t, "receipts/r.jpg", d.Key())
}

func TestHTTPDescriptorSource_NonOK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	src := NewHTTPDescriptorSource(ts.URL, ts.Client())

	_, err := src.PresignUpload(context.Background(), "doc.pdf", "application/pdf")
	assert.Error(t, err)
}

func TestNewHTTPDescriptorSource_AddsScheme(t *testing.T) {
	src := NewHTTPDescriptorSource("localhost:8080/", nil)
	assert.Equal(t, "http://localhost:8080", src.baseURL)
}
