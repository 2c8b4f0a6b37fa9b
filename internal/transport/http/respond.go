package httptransport

import (
	"encoding/json"
	"net/http"

	dErrors "opsdeck/pkg/domain-errors"
)

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError translates a domain error into a JSON error envelope.
// Uncoded errors surface as 500 without leaking internals.
func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, dErrors.HTTPStatus(err), map[string]string{
		"error": string(dErrors.CodeOf(err)),
	})
}

// decode parses the JSON request body into dst, rejecting unknown fields.
func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return dErrors.New(dErrors.CodeBadRequest, "invalid request body")
	}
	return nil
}
