package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"complyflow/pkg/domainerrors"
)

// WriteJSON encodes v as the response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

// WriteError maps a domain error to its HTTP status. Internal errors never
// leak their message to callers.
func WriteError(w http.ResponseWriter, err error) {
	code := domainerrors.CodeOf(err)
	body := errorBody{Error: string(code)}
	if code != domainerrors.CodeInternal {
		var de *domainerrors.Error
		if errors.As(err, &de) {
			body.Description = de.Message
		}
	}
	WriteJSON(w, domainerrors.ToHTTPStatus(code), body)
}

// Decode reads the JSON request body into T, rejecting unknown fields.
func Decode[T any](r *http.Request) (*T, error) {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	var v T
	if err := dec.Decode(&v); err != nil {
		return nil, domainerrors.Wrap(domainerrors.CodeBadRequest, "invalid request body: "+err.Error(), err)
	}
	return &v, nil
}
