// Package responses renders the API's JSON envelopes: {"data": ...} for
// success and {"error": {...}} for failures.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

const retryAfterSeconds = 5

type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError maps err onto its status and public envelope. Client errors
// keep their own message; server errors show only the generic one, and
// untyped errors are treated as internal.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())
	clientFault := meta.HTTPStatus < http.StatusInternalServerError

	body := APIError{
		Code:      string(typed.Code()),
		Reason:    string(typed.Reason()),
		Message:   meta.PublicMessage,
		RequestID: w.Header().Get("X-Request-Id"),
	}
	if msg := typed.Message(); clientFault && msg != "" {
		body.Message = msg
	}
	if meta.DetailsAllowed {
		body.Details = typed.Details()
	}
	if meta.Retryable && meta.HTTPStatus == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}

	if logg != nil {
		logCtx := logg.WithFields(ctx, pkgerrors.LogFields(err))
		if clientFault {
			logg.Warn(logCtx, "request.rejected")
		} else {
			logg.Error(logCtx, "request.error", err)
		}
	}
	writeJSON(w, meta.HTTPStatus, ErrorEnvelope{Error: body})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		status = http.StatusInternalServerError
		raw = []byte(`{"error":{"code":"INTERNAL_ERROR","message":"internal server error"}}`)
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(raw, '\n'))
}
