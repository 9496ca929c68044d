package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoHandler отвечает телом запроса с типом содержимого из заголовка X-Reply-Type.
func echoHandler(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	defer r.Body.Close()

	w.Header().Set("Content-Type", r.Header.Get("X-Reply-Type"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func gzipBytes(t *testing.T, s string) *bytes.Buffer {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(s))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return &buf
}

func readMaybeGzip(t *testing.T, res *http.Response) string {
	t.Helper()

	var r io.Reader = res.Body
	if res.Header.Get("Content-Encoding") == "gzip" {
		gr, err := gzip.NewReader(res.Body)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	}

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(body)
}

func TestGzipMiddleware(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		compressedBody bool
		acceptEncoding string
		replyType      string
		wantEncoding   string
	}{
		{
			name:           "invoice page is compressed",
			body:           "<table><tr><td>Amy Burns</td></tr></table>",
			acceptEncoding: "gzip",
			replyType:      "text/html; charset=utf-8",
			wantEncoding:   "gzip",
		},
		{
			name:           "json message is compressed",
			body:           `{"message":"Deleted Invoice."}`,
			acceptEncoding: "gzip, deflate",
			replyType:      "application/json",
			wantEncoding:   "gzip",
		},
		{
			name:           "client without gzip support",
			body:           "<p>No invoices yet.</p>",
			acceptEncoding: "",
			replyType:      "text/html; charset=utf-8",
			wantEncoding:   "",
		},
		{
			name:           "receipt image is passed through",
			body:           "\x89PNG",
			acceptEncoding: "gzip",
			replyType:      "image/png",
			wantEncoding:   "",
		},
		{
			name:           "compressed form body is inflated",
			body:           "customerId=c1&amount=45.00&status=pending",
			compressedBody: true,
			acceptEncoding: "gzip",
			replyType:      "text/plain",
			wantEncoding:   "gzip",
		},
		{
			name:           "compressed body with plain reply",
			body:           "receipts/abc.png",
			compressedBody: true,
			acceptEncoding: "",
			replyType:      "text/plain",
			wantEncoding:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reqBody io.Reader = strings.NewReader(tt.body)
			if tt.compressedBody {
				reqBody = gzipBytes(t, tt.body)
			}

			req := httptest.NewRequest(http.MethodPost, "/api/invoices", reqBody)
			req.Header.Set("X-Reply-Type", tt.replyType)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			if tt.compressedBody {
				req.Header.Set("Content-Encoding", "gzip")
			}

			rec := httptest.NewRecorder()
			GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != http.StatusOK {
				t.Fatalf("status: got %d want %d", res.StatusCode, http.StatusOK)
			}
			assert.Equal(t, tt.replyType, res.Header.Get("Content-Type"))
			assert.Equal(t, tt.wantEncoding, res.Header.Get("Content-Encoding"))
			assert.Equal(t, tt.body, readMaybeGzip(t, res))
		})
	}
}

func TestGzipMiddleware_InvalidRequestBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/invoices", strings.NewReader("not gzip"))
	req.Header.Set("Content-Encoding", "gzip")

	rec := httptest.NewRecorder()
	GzipMiddleware(http.HandlerFunc(echoHandler)).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}
