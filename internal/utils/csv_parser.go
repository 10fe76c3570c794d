// Package utils provides utility functions for the repayment negotiation engine.
package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"repayment-negotiation-engine/internal/models"
)

// CSVParser errors
var (
	ErrEmptyCSV       = errors.New("CSV content is empty")
	ErrMissingColumns = errors.New("missing required columns")
	ErrNoDataRows     = errors.New("CSV file contains no data rows")
)

// RequiredColumns defines the columns that must be present in the CSV.
var RequiredColumns = []string{
	"loan_id",
	"customer_name",
	"phone_number",
	"loan_amount",
}

// ColumnAliases maps alternative column names to standard names.
var ColumnAliases = map[string]string{
	// loan_id aliases
	"loanid":     "loan_id",
	"loan id":    "loan_id",
	"loan":       "loan_id",
	"account_id": "loan_id",
	"accountid":  "loan_id",

	// customer_name aliases
	"customername":  "customer_name",
	"customer name": "customer_name",
	"name":          "customer_name",
	"borrower":      "customer_name",
	"borrower_name": "customer_name",
	"full_name":     "customer_name",
	"fullname":      "customer_name",

	// phone_number aliases
	"phonenumber":  "phone_number",
	"phone number": "phone_number",
	"phone":        "phone_number",
	"mobile":       "phone_number",
	"contact":      "phone_number",

	// address aliases
	"city":     "address",
	"location": "address",

	// loan_amount aliases
	"loanamount":  "loan_amount",
	"loan amount": "loan_amount",
	"amount":      "loan_amount",
	"principal":   "loan_amount",

	// outstanding_balance aliases
	"outstanding":        "outstanding_balance",
	"outstandingbalance": "outstanding_balance",
	"balance":            "outstanding_balance",
	"outstanding_amount": "outstanding_balance",

	// emi_amount aliases
	"emi":         "emi_amount",
	"emiamount":   "emi_amount",
	"emi amount":  "emi_amount",
	"monthly_emi": "emi_amount",

	// due_date aliases
	"duedate":      "due_date",
	"due date":     "due_date",
	"next_due":     "due_date",
	"nextduedate":  "due_date",
	"payment_date": "due_date",
}

// CSVParser handles parsing of borrower CSV files.
type CSVParser struct {
	columnMapping map[string]int
}

// NewCSVParser creates a new CSV parser instance.
func NewCSVParser() *CSVParser {
	return &CSVParser{
		columnMapping: make(map[string]int),
	}
}

// ParseBorrowers parses CSV content and returns a slice of BorrowerCreate objects.
func (p *CSVParser) ParseBorrowers(content string, batchID string) ([]*models.BorrowerCreate, []error) {
	if strings.TrimSpace(content) == "" {
		return nil, []error{ErrEmptyCSV}
	}

	reader := csv.NewReader(strings.NewReader(content))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	header, err := reader.Read()
	if err != nil {
		return nil, []error{fmt.Errorf("failed to read header: %w", err)}
	}

	if err := p.buildColumnMapping(header); err != nil {
		return nil, []error{err}
	}

	var borrowers []*models.BorrowerCreate
	var parseErrors []error
	lineNum := 1 // Header is line 1

	for {
		lineNum++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		borrower, err := p.parseRow(record, batchID)
		if err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		if err := models.ValidateBorrowerCreate(borrower); err != nil {
			parseErrors = append(parseErrors, fmt.Errorf("line %d: %w", lineNum, err))
			continue
		}

		borrowers = append(borrowers, borrower)
	}

	if len(borrowers) == 0 && len(parseErrors) > 0 {
		return nil, append([]error{ErrNoDataRows}, parseErrors...)
	}

	return borrowers, parseErrors
}

// buildColumnMapping creates a mapping of standard column names to their indices.
func (p *CSVParser) buildColumnMapping(header []string) error {
	p.columnMapping = make(map[string]int)

	for i, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(col))
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}
		p.columnMapping[normalized] = i
	}

	var missing []string
	for _, required := range RequiredColumns {
		if _, ok := p.columnMapping[required]; !ok {
			missing = append(missing, required)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}

	return nil
}

// parseRow parses a single CSV row into a BorrowerCreate object.
func (p *CSVParser) parseRow(record []string, batchID string) (*models.BorrowerCreate, error) {
	getValue := func(column string) string {
		idx, ok := p.columnMapping[column]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	loanAmount, err := parseFloat(getValue("loan_amount"))
	if err != nil {
		return nil, fmt.Errorf("invalid loan_amount: %w", err)
	}

	borrower := &models.BorrowerCreate{
		LoanID:       getValue("loan_id"),
		CustomerName: getValue("customer_name"),
		PhoneNumber:  getValue("phone_number"),
		Address:      getValue("address"),
		LoanAmount:   loanAmount,
		BatchID:      batchID,
	}

	// Optional columns fall back to zero when absent or blank.
	if v := getValue("outstanding_balance"); v != "" {
		borrower.OutstandingBalance, err = parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid outstanding_balance: %w", err)
		}
	}

	if v := getValue("emi_amount"); v != "" {
		borrower.EMIAmount, err = parseFloat(v)
		if err != nil {
			return nil, fmt.Errorf("invalid emi_amount: %w", err)
		}
	}

	if v := getValue("due_date"); v != "" {
		due, err := time.Parse("2006-01-02", v)
		if err != nil {
			return nil, models.ErrInvalidDueDate
		}
		borrower.DueDate = &due
	}

	return borrower, nil
}

// parseFloat parses a string to float64, handling common formats.
func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty value")
	}

	// Remove commas and currency symbols
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimPrefix(s, "₹")
	s = strings.TrimSpace(s)

	return strconv.ParseFloat(s, 64)
}

// ValidateCSVStructure performs a quick validation of CSV structure without full parsing.
func ValidateCSVStructure(content string) (*CSVValidationResult, error) {
	result := &CSVValidationResult{
		Valid:          false,
		RowCount:       0,
		Columns:        []string{},
		MissingColumns: []string{},
		Errors:         []string{},
	}

	if strings.TrimSpace(content) == "" {
		result.Errors = append(result.Errors, "empty file")
		return result, nil
	}

	reader := csv.NewReader(strings.NewReader(content))

	header, err := reader.Read()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("failed to read header: %v", err))
		return result, nil
	}

	normalizedColumns := make(map[string]bool)
	for _, col := range header {
		normalized := strings.ToLower(strings.TrimSpace(col))
		if alias, ok := ColumnAliases[normalized]; ok {
			normalized = alias
		}
		normalizedColumns[normalized] = true
		result.Columns = append(result.Columns, col)
	}

	for _, required := range RequiredColumns {
		if !normalizedColumns[required] {
			result.MissingColumns = append(result.MissingColumns, required)
		}
	}

	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("row error: %v", err))
			continue
		}
		result.RowCount++
	}

	result.Valid = len(result.MissingColumns) == 0 && result.RowCount > 0

	return result, nil
}

// CSVValidationResult contains the results of CSV validation.
type CSVValidationResult struct {
	Valid          bool     `json:"valid"`
	RowCount       int      `json:"row_count"`
	Columns        []string `json:"columns"`
	MissingColumns []string `json:"missing_columns"`
	Errors         []string `json:"errors"`
}
