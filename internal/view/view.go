// Package view рендерит HTML-страницы панели управления.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed templates/*.html
var templatesFS embed.FS

// TemplateData содержит значения, общие для всех страниц.
type TemplateData struct {
	Title string
	Flash string
	Data  any
}

// Engine рендерит HTML-шаблоны.
type Engine struct {
	templates *template.Template
}

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatAmount форматирует сумму в центах как доллары с разделителями разрядов.
func FormatAmount(cents int64) string {
	return printer.Sprintf("$%.2f", float64(cents)/100)
}

// NewEngine разбирает встроенные шаблоны. receiptURL строит ссылку на чек по ключу.
func NewEngine(receiptURL func(key string) string) (*Engine, error) {
	if receiptURL == nil {
		receiptURL = func(string) string { return "" }
	}

	funcMap := template.FuncMap{
		"formatAmount": FormatAmount,
		"receiptURL":   receiptURL,
	}

	tpl, err := template.New("root").Funcs(funcMap).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	return &Engine{templates: tpl}, nil
}

// Render выполняет именованный шаблон с указанным статусом ответа.
// При ошибке шаблона в ответ ничего не пишется.
func (e *Engine) Render(w http.ResponseWriter, status int, name string, data TemplateData) error {
	if e == nil {
		return fmt.Errorf("template engine not initialised")
	}

	var buf bytes.Buffer
	if err := e.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return fmt.Errorf("execute %s: %w", name, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
