package auth

import (
	"net/http"

	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

// Middleware authorizes every request before it reaches a handler. Failed
// requests receive the JSON fault response and never run the handler.
func Middleware(authorizer *Authorizer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authorizer.AuthorizeRequest(r)
			if err != nil {
				errors.WriteErrorResponse(w, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithPrincipal(r.Context(), principal)))
		})
	}
}
