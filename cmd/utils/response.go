package utils

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
)

// Envelope is the uniform response body: success and error alike carry
// message, success and data.
type Envelope struct {
	Message string      `json:"message"`
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
}

func WriteSuccess(w http.ResponseWriter, status int, message string, data interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Message: message, Success: true, Data: data})
}

// WriteError renders any error into the envelope. Validation errors put
// their per-field detail in data; uncategorized errors degrade to 500 with
// the error's string as the message.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusOf(err)
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
	}

	data := interface{}(map[string]interface{}{})
	var apiErr *APIError
	if errors.As(err, &apiErr) && len(apiErr.Fields) > 0 {
		data = map[string]interface{}{"detail": apiErr.Fields}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(Envelope{Message: err.Error(), Success: false, Data: data})
}
