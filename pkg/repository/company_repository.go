package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gary-archer/oauth.websample.azure/pkg/errors"
)

const (
	companyListFile         = "companyList.json"
	companyTransactionsFile = "companyTransactions.json"
)

// CompanyRepository reads company data from JSON files in a data directory
type CompanyRepository struct {
	dataDirectory string
}

// NewCompanyRepository creates the repository for a data directory
func NewCompanyRepository(dataDirectory string) *CompanyRepository {
	return &CompanyRepository{dataDirectory: dataDirectory}
}

// GetCompanyList returns all companies
func (r *CompanyRepository) GetCompanyList() ([]Company, error) {
	var companies []Company
	if err := r.readFile(companyListFile, &companies); err != nil {
		return nil, err
	}
	return companies, nil
}

// GetCompanyTransactions returns a company's transactions joined with the
// company itself, with found false when the id does not exist
func (r *CompanyRepository) GetCompanyTransactions(id int) (*CompanyTransactions, bool, error) {
	companies, err := r.GetCompanyList()
	if err != nil {
		return nil, false, err
	}

	var company *Company
	for i := range companies {
		if companies[i].ID == id {
			company = &companies[i]
			break
		}
	}
	if company == nil {
		return nil, false, nil
	}

	var allTransactions []CompanyTransactions
	if err := r.readFile(companyTransactionsFile, &allTransactions); err != nil {
		return nil, false, err
	}

	for i := range allTransactions {
		if allTransactions[i].ID == id {
			allTransactions[i].Company = *company
			return &allTransactions[i], true, nil
		}
	}

	return nil, false, nil
}

// readFile loads and parses one JSON data file, reporting failures as
// server faults so that the caller does not leak file system details
func (r *CompanyRepository) readFile(name string, target any) error {
	path := filepath.Join(r.dataDirectory, name)

	data, err := os.ReadFile(path) //nolint:gosec // path is from configuration, not request input
	if err != nil {
		return errors.NewServerError(errors.CodeFileReadError, "problem reading API data", err)
	}

	if err := json.Unmarshal(data, target); err != nil {
		return errors.NewServerError(
			errors.CodeFileReadError, "problem reading API data",
			fmt.Errorf("failed to parse %s: %w", name, err))
	}

	return nil
}
