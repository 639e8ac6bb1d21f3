package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

// UserInfoRouter sets up the route returning the caller's own user details
func UserInfoRouter() http.Handler {
	r := chi.NewRouter()
	r.Get("/", getUserInfo)
	return r
}

// userInfoResponse returns display fields from the extra claims, so that
// frontends do not need to decode access tokens
type userInfoResponse struct {
	Title   string   `json:"title"`
	Regions []string `json:"regions"`
}

func getUserInfo(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		errors.WriteErrorResponse(w, errors.NewMissingClaimError("principal"))
		return
	}

	writeJSON(w, userInfoResponse{
		Title:   principal.Extra.Title,
		Regions: principal.Extra.Regions,
	})
}
