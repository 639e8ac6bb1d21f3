// Package repository provides file backed access to the API's business
// data. A real deployment would use a database behind the same interface.
package repository

// Company is a summary of an investment company
type Company struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Region        string `json:"region"`
	TargetUsd     int    `json:"targetUsd"`
	InvestmentUsd int    `json:"investmentUsd"`
	NoInvestors   int    `json:"noInvestors"`
}

// Transaction is a single investment into a company
type Transaction struct {
	ID         int    `json:"id"`
	InvestorID string `json:"investorId"`
	AmountUsd  int    `json:"amountUsd"`
}

// CompanyTransactions joins a company with its transactions
type CompanyTransactions struct {
	ID           int           `json:"id"`
	Company      Company       `json:"company"`
	Transactions []Transaction `json:"transactions"`
}
