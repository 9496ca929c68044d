package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresigner(t *testing.T) *Presigner {
	t.Helper()

	p, err := NewPresigner(Options{
		Endpoint:        "s3.amazonaws.com",
		Region:          "us-east-1",
		Bucket:          "expense-receipts",
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		MaxBytes:        5 << 20,
		URLTTL:          10 * time.Minute,
	})
	require.NoError(t, err)

	p.newKey = func(ext string) string { return KeyPrefix + "fixed" + ext }
	return p
}

func TestPresignUpload_ReturnsKeyField(t *testing.T) {
	p := newTestPresigner(t)

	d, err := p.PresignUpload(context.Background(), "lunch.jpeg", "image/jpeg")
	require.NoError(t, err)

	assert.NotEmpty(t, d.URL)
	assert.Contains(t, d.URL, "expense-receipts")
	assert.Equal(t, "receipts/fixed.jpeg", d.Key())
	assert.Equal(t, "image/jpeg", d.Fields["Content-Type"])
	assert.NotEmpty(t, d.Fields["policy"])
}

func TestPresignUpload_ExtensionFromContentType(t *testing.T) {
	p := newTestPresigner(t)

	d, err := p.PresignUpload(context.Background(), "scan", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "receipts/fixed.png", d.Key())
}

func TestPresignUpload_Rejects(t *testing.T) {
	p := newTestPresigner(t)

	_, err := p.PresignUpload(context.Background(), "doc.pdf", "application/pdf")
	assert.True(t, errors.Is(err, ErrUnsupportedContentType), "got %v", err)

	_, err = p.PresignUpload(context.Background(), "  ", "image/png")
	assert.ErrorIs(t, err, ErrEmptyFilename)
}

func TestNewPresigner_RequiresBucket(t *testing.T) {
	_, err := NewPresigner(Options{Endpoint: "s3.amazonaws.com"})
	assert.Error(t, err)
}

func TestReceiptURL(t *testing.T) {
	r := NewResolver("expense-receipts", "eu-central-1")

	tests := []struct {
		key  string
		want string
	}{
		{
			key:  "receipts/abc.png",
			want: "https://expense-receipts.s3.eu-central-1.amazonaws.com/receipts/abc.png",
		},
		{
			key:  "plain.jpg",
			want: "https://expense-receipts.s3.eu-central-1.amazonaws.com/plain.jpg",
		},
		{
			key:  "receipts/with space.png",
			want: "https://expense-receipts.s3.eu-central-1.amazonaws.com/receipts/with%20space.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, r.ReceiptURL(tt.key))
		})
	}
}

func TestDescriptorKey_Nil(t *testing.T) {
	var d *UploadDescriptor
	assert.Equal(t, "", d.Key())
}
