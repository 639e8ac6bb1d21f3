// Package api hosts the sample API's HTTP endpoints behind the OAuth
// authorization middleware.
package api

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth"
	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
	"github.com/gary-archer/oauth.websample.azure/pkg/repository"
)

const (
	middlewareTimeout = 30 * time.Second
	readHeaderTimeout = 10 * time.Second
)

// headersMiddleware sets the JSON content type for API responses
func headersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") {
			w.Header().Set("Content-Type", "application/json")
		}
		next.ServeHTTP(w, r)
	})
}

// recoveryMiddleware turns handler panics into the standard server fault
// response instead of killing the connection
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if recovered := recover(); recovered != nil {
				errors.WriteErrorResponse(w, fmt.Errorf("panic in request handler: %v", recovered))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// NewRouter builds the API routes with their middleware chain
func NewRouter(
	authorizer *auth.Authorizer,
	companyRepository *repository.CompanyRepository,
	trustedOrigins []string,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.Timeout(middlewareTimeout),
		headersMiddleware,
		recoveryMiddleware,
	)

	// Browser clients from the configured web origins send the token in a
	// header, so those origins must be allowed to read responses
	if len(trustedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: trustedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "Accept"},
		}).Handler)
	}

	// Unknown routes get the standard not found fault
	notFound := func(w http.ResponseWriter, _ *http.Request) {
		errors.WriteErrorResponse(w, errors.NewRequestNotFoundError())
	}
	r.NotFound(notFound)

	// Every API route requires a valid access token
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(authorizer))
		r.NotFound(notFound)
		r.Mount("/companies", CompaniesRouter(companyRepository))
		r.Mount("/userinfo", UserInfoRouter())
	})

	return r
}

// Serve runs the API server until the context is cancelled. The caller is
// expected to set up signal handling.
func Serve(
	ctx context.Context,
	configuration *config.Config,
	authorizer *auth.Authorizer,
	companyRepository *repository.CompanyRepository,
) error {
	srv := &http.Server{
		BaseContext:       func(net.Listener) context.Context { return ctx },
		Addr:              fmt.Sprintf(":%d", configuration.API.Port),
		Handler:           NewRouter(authorizer, companyRepository, configuration.API.TrustedOrigins),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", configuration.API.Port, err)
	}

	logger.Infof("API is listening on port %d", configuration.API.Port)

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Serve(listener); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server stopped with error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
