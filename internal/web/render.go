package web

import (
	"encoding/json"
	stderrors "errors"
	"net/http"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// errorBody is the JSON shape of every error response from the endpoint.
type errorBody struct {
	Error struct {
		Code    errors.ErrorCode `json:"code"`
		Message string           `json:"message"`
		Status  int              `json:"status"`
	} `json:"error"`
}

// renderError writes err as a JSON error response.
func renderError(w http.ResponseWriter, err error) {
	var sErr *errors.ShareError
	if !stderrors.As(err, &sErr) {
		sErr = errors.NewInternal(err)
	}

	var body errorBody
	body.Error.Code = sErr.Code
	body.Error.Message = sErr.Message
	body.Error.Status = sErr.Status
	renderJSON(w, sErr.Status, body)
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
