package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gary-archer/oauth.websample.azure/pkg/api"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/claims"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/oidc"
	"github.com/gary-archer/oauth.websample.azure/pkg/auth/token"
	"github.com/gary-archer/oauth.websample.azure/pkg/config"
	"github.com/gary-archer/oauth.websample.azure/pkg/logger"
	"github.com/gary-archer/oauth.websample.azure/pkg/networking"
	"github.com/gary-archer/oauth.websample.azure/pkg/repository"
)

// newServeCmd creates the serve command for starting the API
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the sample API",
		Long: `Start the API server. The configuration file supplies the identity
provider's details and the claims caching settings.`,
		RunE: runServe,
	}

	cmd.Flags().String("data", "data", "Directory containing the API's JSON data files")
	if err := viper.BindPFlag("data", cmd.Flags().Lookup("data")); err != nil {
		logger.Errorf("Error binding data flag: %v", err)
	}

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	configuration, err := config.Load(viper.GetString("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	authorizer, err := buildAuthorizer(cmd.Context(), &configuration.OAuth)
	if err != nil {
		return err
	}

	companyRepository := repository.NewCompanyRepository(viper.GetString("data"))
	return api.Serve(cmd.Context(), configuration, authorizer, companyRepository)
}

// buildAuthorizer wires the token validator, claims cache and claims
// provider from configuration
func buildAuthorizer(ctx context.Context, oauthConfig *config.OAuthConfig) (*auth.Authorizer, error) {
	httpClient, err := networking.NewHTTPClientBuilder().
		WithPrivateIPs(oauthConfig.AllowPrivateEndpoints).
		WithTimeout(oauthConfig.FetchTimeout()).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP client: %w", err)
	}

	// Use the configured JWKS endpoint, or discover it from the issuer's
	// OIDC metadata when not set
	jwksEndpoint := oauthConfig.JWKSEndpoint
	if jwksEndpoint == "" {
		endpoints, err := oidc.DiscoverEndpoints(ctx, oauthConfig.Issuer, oauthConfig.AllowPrivateEndpoints)
		if err != nil {
			return nil, fmt.Errorf("failed to discover OIDC endpoints: %w", err)
		}
		jwksEndpoint = endpoints.JWKSURI
		logger.Infof("Discovered JWKS endpoint %s", jwksEndpoint)
	}

	retriever, err := token.NewJWKSRetriever(ctx, jwksEndpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS retriever: %w", err)
	}

	validator := token.NewValidator(oauthConfig, retriever)

	claimsCache := claims.NewCache(oauthConfig.ClaimsCacheMaxEntries, oauthConfig.ClaimsCacheTimeToLive())

	var claimsProvider claims.Provider
	switch oauthConfig.ClaimsProvider {
	case config.ProviderGraph:
		claimsProvider = claims.NewGraphProvider(&oauthConfig.Graph, httpClient)
	default:
		claimsProvider = claims.NewSampleProvider()
	}

	return auth.NewAuthorizer(validator, claimsCache, claimsProvider), nil
}
