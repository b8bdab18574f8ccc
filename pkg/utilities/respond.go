package utilities

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Detail is the error body returned by every endpoint.
type Detail struct {
	Detail string `json:"detail"`
}

// Message is the body of endpoints that only acknowledge.
type Message struct {
	Message string `json:"message"`
}

// WriteJSON writes v with status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteDetail writes {"detail": msg}.
func WriteDetail(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, Detail{Detail: msg})
}

// WriteMessage writes {"message": msg} with 200.
func WriteMessage(w http.ResponseWriter, msg string) {
	WriteJSON(w, http.StatusOK, Message{Message: msg})
}

// DecodeJSON decodes a single JSON object from the request body.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty request body")
		}
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

// FormValues returns the named form fields, and the first one missing or
// blank, if any. Both urlencoded and multipart bodies are accepted.
func FormValues(r *http.Request, names ...string) (map[string]string, string) {
	out := make(map[string]string, len(names))
	for _, n := range names {
		v := r.FormValue(n)
		if v == "" {
			return out, n
		}
		out[n] = v
	}
	return out, ""
}

// OptionalForm returns a pointer to the form value, or nil when it is blank.
func OptionalForm(r *http.Request, name string) *string {
	v := r.FormValue(name)
	if v == "" {
		return nil
	}
	return &v
}
