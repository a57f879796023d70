package mlog

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/crownlabs/academy-idp/pkg/logaction"
	"github.com/crownlabs/academy-idp/pkg/logger"
)

type ctxKey struct{}

// With stores the request-scoped logger in the context.
func With(ctx context.Context, l *logger.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// L returns the request-scoped logger, or a throwaway one when the request
// did not pass through the logging middleware (tests, background work).
func L(ctx context.Context) *logger.Logger {
	if ctx == nil {
		return logger.NewLogger("", "")
	}
	if l, ok := ctx.Value(ctxKey{}).(*logger.Logger); ok && l != nil {
		return l
	}
	return logger.NewLogger("", "")
}

// ResponseWithLogger couples an http.ResponseWriter with the request logger:
// it logs the inbound request on creation and the outbound response when one
// of the Response helpers fires, then flushes the transaction summary.
type ResponseWithLogger struct {
	w   http.ResponseWriter
	r   *http.Request
	log *logger.Logger
}

func NewResponseWithLogger(w http.ResponseWriter, r *http.Request, useCase string, masking ...logger.MaskingRule) *ResponseWithLogger {
	l := L(r.Context())
	l.AddMetadata("useCase", useCase)

	headers := make(map[string]string, len(r.Header))
	for key, values := range r.Header {
		headers[key] = strings.Join(values, ", ")
	}

	var body map[string]any
	if r.Method != http.MethodGet && r.Body != nil {
		raw, err := io.ReadAll(r.Body)
		if err == nil {
			r.Body = io.NopCloser(bytes.NewReader(raw))
			json.Unmarshal(raw, &body)
		}
	}

	l.Info(logaction.INBOUND(r.Method+" "+r.URL.Path), map[string]any{
		"method":  r.Method,
		"url":     r.URL.String(),
		"headers": headers,
		"query":   r.URL.Query(),
		"body":    body,
	}, masking...)

	return &ResponseWithLogger{w: w, r: r, log: l}
}

func (rwl *ResponseWithLogger) Logger() *logger.Logger {
	return rwl.log
}

func (rwl *ResponseWithLogger) ResponseJson(status int, data any, masking ...logger.MaskingRule) {
	rwl.w.Header().Set("Content-Type", "application/json")
	rwl.w.WriteHeader(status)
	json.NewEncoder(rwl.w).Encode(data)

	rwl.log.Info(logaction.OUTBOUND(rwl.r.Method+" "+rwl.r.URL.Path+" response"), map[string]any{
		"status": status,
		"body":   data,
	}, masking...)
	rwl.log.Flush(status, http.StatusText(status))
}

func (rwl *ResponseWithLogger) ResponseJsonError(status int, data any, err error) {
	rwl.w.Header().Set("Content-Type", "application/json")
	rwl.w.WriteHeader(status)
	json.NewEncoder(rwl.w).Encode(data)

	detail := map[string]any{
		"status": status,
		"body":   data,
	}
	if err != nil {
		detail["cause"] = err.Error()
	}
	rwl.log.Error(logaction.OUTBOUND(rwl.r.Method+" "+rwl.r.URL.Path+" response"), detail)
	rwl.log.FlushError(status, http.StatusText(status))
}

// ResponseText writes a short plain-text error, used by the authorize
// endpoint before any redirect target has been validated.
func (rwl *ResponseWithLogger) ResponseText(status int, text string, err error) {
	rwl.w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	rwl.w.WriteHeader(status)
	io.WriteString(rwl.w, text)

	detail := map[string]any{
		"status": status,
		"body":   text,
	}
	if err != nil {
		detail["cause"] = err.Error()
	}
	rwl.log.Error(logaction.OUTBOUND(rwl.r.Method+" "+rwl.r.URL.Path+" response"), detail)
	rwl.log.FlushError(status, http.StatusText(status))
}

func (rwl *ResponseWithLogger) Redirect(location string) {
	rwl.log.Info(logaction.OUTBOUND(rwl.r.Method+" "+rwl.r.URL.Path+" redirect"), map[string]any{
		"location": location,
	})
	rwl.log.Flush(http.StatusFound, http.StatusText(http.StatusFound))
	http.Redirect(rwl.w, rwl.r, location, http.StatusFound)
}
