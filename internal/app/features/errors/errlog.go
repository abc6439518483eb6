// internal/app/features/errors/errlog.go
package errors

import (
	"net/http"

	"go.uber.org/zap"
)

// ErrorLogger pairs structured logging with user-facing error pages so
// handlers can report a failure in one call. The internal message and
// error go to the log; the user message goes on the rendered page.
type ErrorLogger struct {
	log *zap.Logger
}

// NewErrorLogger constructs an ErrorLogger over the given zap logger.
func NewErrorLogger(log *zap.Logger) *ErrorLogger {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorLogger{log: log}
}

func (e *ErrorLogger) fields(r *http.Request, err error) []zap.Field {
	fields := []zap.Field{
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	return fields
}

// LogServerError logs an internal error and renders a generic error page.
func (e *ErrorLogger) LogServerError(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg, backURL string) {
	e.log.Error(internalMsg, e.fields(r, err)...)
	w.WriteHeader(http.StatusInternalServerError)
	RenderServerError(w, r, userMsg, backURL)
}

// LogBadRequest logs a client error and renders an error page.
func (e *ErrorLogger) LogBadRequest(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg, backURL string) {
	e.log.Warn(internalMsg, e.fields(r, err)...)
	w.WriteHeader(http.StatusBadRequest)
	RenderServerError(w, r, userMsg, backURL)
}

// LogForbidden logs a denied action and renders the access denied page.
func (e *ErrorLogger) LogForbidden(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg, backURL string) {
	e.log.Warn(internalMsg, e.fields(r, err)...)
	w.WriteHeader(http.StatusForbidden)
	RenderForbidden(w, r, userMsg, backURL)
}

// HTMX variants return a plain-text body instead of a full page so the
// response can land inside a snippet target.

func (e *ErrorLogger) HTMXLogServerError(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg string) {
	e.log.Error(internalMsg, e.fields(r, err)...)
	http.Error(w, userMsg, http.StatusInternalServerError)
}

func (e *ErrorLogger) HTMXLogBadRequest(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg string) {
	e.log.Warn(internalMsg, e.fields(r, err)...)
	http.Error(w, userMsg, http.StatusBadRequest)
}

func (e *ErrorLogger) HTMXLogForbidden(w http.ResponseWriter, r *http.Request, internalMsg string, err error, userMsg string) {
	e.log.Warn(internalMsg, e.fields(r, err)...)
	http.Error(w, userMsg, http.StatusForbidden)
}
