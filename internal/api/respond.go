package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/plataa/triagem/internal/middleware"
	"github.com/plataa/triagem/internal/screening"
	"github.com/plataa/triagem/internal/services"
	"github.com/plataa/triagem/internal/utils"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON every failed request returns. Message is localized;
// Category is one of incomplete, duplicate, invalid, unknown.
type errorBody struct {
	Error     string `json:"error"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Missing   []int  `json:"missing,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCSV(w http.ResponseWriter, filename string, b []byte) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(b)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return services.NewInvalidError("request body required")
		}
		return services.NewInvalidError("invalid json: " + err.Error())
	}
	return nil
}

// statusFor maps a service code, or failing that the core category, to an
// HTTP status.
func statusFor(err error) (int, string) {
	if se, ok := services.AsServiceError(err); ok {
		switch se.Code {
		case services.ErrorInvalid:
			return http.StatusBadRequest, string(se.Code)
		case services.ErrorIncomplete:
			return http.StatusUnprocessableEntity, string(se.Code)
		case services.ErrorDuplicate, services.ErrorConflict:
			return http.StatusConflict, string(se.Code)
		case services.ErrorForbidden:
			return http.StatusForbidden, string(se.Code)
		case services.ErrorNotFound:
			return http.StatusNotFound, string(se.Code)
		case services.ErrorUnauthorized:
			return http.StatusUnauthorized, string(se.Code)
		}
	}
	switch screening.Categorize(err) {
	case screening.CategoryIncomplete:
		return http.StatusUnprocessableEntity, string(screening.CategoryIncomplete)
	case screening.CategoryDuplicate:
		return http.StatusConflict, string(screening.CategoryDuplicate)
	case screening.CategoryInvalid:
		return http.StatusBadRequest, string(screening.CategoryInvalid)
	}
	return http.StatusInternalServerError, string(screening.CategoryUnknown)
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	locale := middleware.LocaleFromContext(r.Context())
	body := errorBody{
		Error:     code,
		Category:  string(services.ErrorCategory(err)),
		Message:   utils.T(locale, "error."+code),
		RequestID: middleware.RequestIDFromContext(r.Context()),
	}
	if status == http.StatusInternalServerError {
		body.Category = string(screening.CategoryUnknown)
		rt.log.Error().Err(err).
			Str("request_id", body.RequestID).
			Str("path", r.URL.Path).
			Msg("request failed")
	} else {
		body.Detail = err.Error()
	}
	var inc *screening.IncompleteAnswersError
	if errors.As(err, &inc) {
		body.Missing = inc.Missing
	}
	writeJSON(w, status, body)
}
