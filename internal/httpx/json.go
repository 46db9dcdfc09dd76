package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON serializes v with a JSON content type. Encoding failures after
// the header is written can only be dropped.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
