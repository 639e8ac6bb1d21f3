package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gary-archer/oauth.websample.azure/pkg/auth"
	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
	"github.com/gary-archer/oauth.websample.azure/pkg/repository"
)

// CompaniesRouter sets up the company data routes
func CompaniesRouter(companyRepository *repository.CompanyRepository) http.Handler {
	routes := &companyRoutes{repository: companyRepository}
	r := chi.NewRouter()
	r.Get("/", routes.getCompanyList)
	r.Get("/{id}/transactions", routes.getCompanyTransactions)
	return r
}

type companyRoutes struct {
	repository *repository.CompanyRepository
}

// getCompanyList returns the companies the caller's regions allow
func (c *companyRoutes) getCompanyList(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		errors.WriteErrorResponse(w, errors.NewMissingClaimError("principal"))
		return
	}

	companies, err := c.repository.GetCompanyList()
	if err != nil {
		errors.WriteErrorResponse(w, err)
		return
	}

	authorized := make([]repository.Company, 0, len(companies))
	for _, company := range companies {
		if principal.CanAccessRegion(company.Region) {
			authorized = append(authorized, company)
		}
	}

	writeJSON(w, authorized)
}

// getCompanyTransactions returns one company's transactions. Requests for
// companies outside the caller's regions and for non existent companies are
// both reported as not found, so callers cannot enumerate valid ids.
func (c *companyRoutes) getCompanyTransactions(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		errors.WriteErrorResponse(w, errors.NewMissingClaimError("principal"))
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id <= 0 {
		errors.WriteErrorResponse(w, errors.NewClientError(
			http.StatusBadRequest,
			errors.CodeInvalidCompanyID,
			"the company id must be a positive numeric integer"))
		return
	}

	transactions, found, err := c.repository.GetCompanyTransactions(id)
	if err != nil {
		errors.WriteErrorResponse(w, err)
		return
	}

	if !found || !principal.CanAccessRegion(transactions.Company.Region) {
		errors.WriteErrorResponse(w, companyNotFoundError(id))
		return
	}

	writeJSON(w, transactions)
}

func companyNotFoundError(id int) *errors.ClientError {
	return errors.NewClientError(
		http.StatusNotFound,
		errors.CodeCompanyNotFound,
		"company "+strconv.Itoa(id)+" was not found for this user")
}

func writeJSON(w http.ResponseWriter, body any) {
	if err := json.NewEncoder(w).Encode(body); err != nil {
		errors.WriteErrorResponse(w, err)
	}
}
