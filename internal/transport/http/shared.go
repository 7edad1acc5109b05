package httptransport

import (
	"encoding/json"
	"net/http"

	derrors "giftvault/pkg/domain-errors"
)

type errorEnvelope struct {
	Error     string `json:"error"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// writeError translates a domain error into the JSON error envelope. Unknown
// errors surface as internal without leaking their reason.
func writeError(w http.ResponseWriter, err error) {
	code := derrors.CodeOf(err)
	env := errorEnvelope{
		Error:     string(code),
		Reason:    derrors.ReasonOf(err),
		Retryable: derrors.Retryable(err),
	}
	if code == derrors.CodeInternal {
		env.Reason = ""
	}
	writeJSON(w, derrors.ToHTTPStatus(code), env)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return derrors.New(derrors.CodeValidation, "invalid request body")
	}
	return nil
}
