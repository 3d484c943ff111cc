package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ternarybob/valuer/internal/models"
)

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// WriteKindError writes a classified error with the status its kind maps to.
func WriteKindError(w http.ResponseWriter, kind models.ErrorKind, message string) error {
	return WriteJSON(w, StatusForKind(kind), map[string]string{
		"status": "error",
		"kind":   string(kind),
		"error":  message,
	})
}

// StatusForKind maps an error kind to an HTTP status.
func StatusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindInvalidTicker:
		return http.StatusNotFound
	case models.KindRateLimit:
		return http.StatusTooManyRequests
	case models.KindInvalidAssumptions:
		return http.StatusBadRequest
	case models.KindInsufficientData, models.KindNoData:
		return http.StatusUnprocessableEntity
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case "":
		return http.StatusInternalServerError
	}
	return http.StatusBadGateway
}
