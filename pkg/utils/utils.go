package utils

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

const (
	HeaderContentType   = "Content-Type"
	MIMEApplicationJSON = "application/json"
	MIMETextPlain       = "text/plain; charset=utf-8"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

func RespondWithJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set(HeaderContentType, MIMEApplicationJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func RespondWithErrorJSON(w http.ResponseWriter, status int, message string) {
	RespondWithJSON(w, status, ErrorResponse{Error: message})
}

func RespondWithText(w http.ResponseWriter, status int, text string) {
	w.Header().Set(HeaderContentType, MIMETextPlain)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(text))
}
