package errors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
)

// errorResponse is the wire format for faults. Server faults carry only the
// correlation id, never the diagnostic details.
type errorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	InstanceID string `json:"instanceId,omitempty"`
}

// WriteErrorResponse normalises the error and writes it as the JSON fault
// response. Client faults are logged at info level since they are routine,
// while server faults are logged as errors with their full details.
func WriteErrorResponse(w http.ResponseWriter, err error) {
	fault := FromError(err)

	var clientError *ClientError
	if errors.As(fault, &clientError) {
		logger.Infof("client error: %s", clientError.Error())

		switch clientError.Status {
		case http.StatusUnauthorized:
			// RFC 6750 section 3: a request without a token gets a bare
			// challenge, a request with a rejected token names the error
			if clientError.missingToken {
				w.Header().Set("WWW-Authenticate", "Bearer")
			} else {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
			}
		case http.StatusForbidden:
			if clientError.Code == CodeInsufficientScope {
				w.Header().Set("WWW-Authenticate", `Bearer error="insufficient_scope"`)
			}
		}

		writeJSON(w, clientError.Status, errorResponse{
			Code:    clientError.Code,
			Message: clientError.Message,
		})
		return
	}

	var serverError *ServerError
	errors.As(fault, &serverError)
	logger.Errorf("server error: %s, instance id: %s", serverError.Error(), serverError.InstanceID)

	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Code:       serverError.Code,
		Message:    serverError.Message,
		InstanceID: serverError.InstanceID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body errorResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Errorf("failed to write error response: %v", err)
	}
}
