package view

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/expense-tracker/internal/model"
)

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(nil)
	assert.NoError(t, err, "Templates should parse without error")
	assert.NotNil(t, engine)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$45.00", FormatAmount(4500))
	assert.Equal(t, "$0.05", FormatAmount(5))
	assert.Equal(t, "$1,234.56", FormatAmount(123456))
}

func TestRender_InvoiceList(t *testing.T) {
	engine, err := NewEngine(func(key string) string { return "https://cdn.example/" + key })
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, http.StatusOK, "pages/invoices.html", TemplateData{
		Title: "Invoices",
		Flash: "Deleted Invoice.",
		Data: map[string]any{
			"Invoices": []model.InvoiceView{
				{ID: "i1", CustomerName: "Lee Robinson", AmountCents: 4500, Status: model.InvoiceStatusPending, Date: "2024-03-15", ReceiptKey: "receipts/a.png"},
			},
		},
	})
	require.NoError(t, err)

	body := rec.Body.String()
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "Lee Robinson")
	assert.Contains(t, body, "$45.00")
	assert.Contains(t, body, "https://cdn.example/receipts/a.png")
	assert.Contains(t, body, "Deleted Invoice.")
}

func TestRender_UnknownTemplate(t *testing.T) {
	engine, err := NewEngine(nil)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = engine.Render(rec, http.StatusOK, "pages/missing.html", TemplateData{})
	assert.Error(t, err)
	assert.Zero(t, rec.Body.Len())
}
