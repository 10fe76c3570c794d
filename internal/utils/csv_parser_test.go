package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repayment-negotiation-engine/internal/models"
)

func TestParseBorrowersStandardHeader(t *testing.T) {
	content := `loan_id,customer_name,phone_number,address,loan_amount,outstanding_balance,emi_amount,due_date
LN-1001,Asha Rao,+919800011111,Bengaluru,240000,200000,10000,2025-05-01
LN-1002,Ravi Kumar,+919800022222,Mysuru,100000,40000,8000,2025-05-15
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-1")

	assert.Empty(t, errs)
	require.Len(t, borrowers, 2)

	b := borrowers[0]
	assert.Equal(t, "LN-1001", b.LoanID)
	assert.Equal(t, "Asha Rao", b.CustomerName)
	assert.Equal(t, "+919800011111", b.PhoneNumber)
	assert.Equal(t, "Bengaluru", b.Address)
	assert.Equal(t, 240000.0, b.LoanAmount)
	assert.Equal(t, 200000.0, b.OutstandingBalance)
	assert.Equal(t, 10000.0, b.EMIAmount)
	assert.Equal(t, "batch-1", b.BatchID)
	require.NotNil(t, b.DueDate)
	assert.Equal(t, time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC), *b.DueDate)
}

func TestParseBorrowersHeaderAliases(t *testing.T) {
	content := `LoanID,Name,Mobile,City,Amount,Balance,EMI,DueDate
LN-2001,Meena Shetty,+919800033333,Udupi,150000,90000,6000,2025-06-01
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-2")

	assert.Empty(t, errs)
	require.Len(t, borrowers, 1)

	b := borrowers[0]
	assert.Equal(t, "LN-2001", b.LoanID)
	assert.Equal(t, "Meena Shetty", b.CustomerName)
	assert.Equal(t, "+919800033333", b.PhoneNumber)
	assert.Equal(t, "Udupi", b.Address)
	assert.Equal(t, 150000.0, b.LoanAmount)
	assert.Equal(t, 90000.0, b.OutstandingBalance)
	assert.Equal(t, 6000.0, b.EMIAmount)
	assert.NotNil(t, b.DueDate)
}

func TestParseBorrowersMissingRequiredColumn(t *testing.T) {
	content := `loan_id,customer_name,loan_amount
LN-1001,Asha Rao,240000
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-3")

	assert.Nil(t, borrowers)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMissingColumns)
	assert.Contains(t, errs[0].Error(), "phone_number")
}

func TestParseBorrowersEmptyContent(t *testing.T) {
	parser := NewCSVParser()

	for _, content := range []string{"", "   ", "\n\n"} {
		borrowers, errs := parser.ParseBorrowers(content, "batch-4")
		assert.Nil(t, borrowers)
		require.Len(t, errs, 1)
		assert.ErrorIs(t, errs[0], ErrEmptyCSV)
	}
}

func TestParseBorrowersPerLineErrors(t *testing.T) {
	content := `loan_id,customer_name,phone_number,loan_amount,due_date
LN-1001,Asha Rao,+919800011111,240000,2025-05-01
LN-1002,Ravi Kumar,+919800022222,not-a-number,2025-05-15
LN-1003,Meena Shetty,+919800033333,150000,15/06/2025
,Anonymous,+919800044444,90000,
LN-1005,Kiran Patil,+919800055555,120000,
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-5")

	// Good rows survive bad ones.
	require.Len(t, borrowers, 2)
	assert.Equal(t, "LN-1001", borrowers[0].LoanID)
	assert.Equal(t, "LN-1005", borrowers[1].LoanID)

	require.Len(t, errs, 3)
	assert.Contains(t, errs[0].Error(), "line 3")
	assert.Contains(t, errs[0].Error(), "loan_amount")
	assert.ErrorIs(t, errs[1], models.ErrInvalidDueDate)
	assert.ErrorIs(t, errs[2], models.ErrEmptyLoanID)
}

func TestParseBorrowersAllRowsBad(t *testing.T) {
	content := `loan_id,customer_name,phone_number,loan_amount
,Asha Rao,+919800011111,240000
LN-1002,,+919800022222,100000
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-6")

	assert.Nil(t, borrowers)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[0], ErrNoDataRows)
}

func TestParseBorrowersOptionalColumnsDefaultToZero(t *testing.T) {
	content := `loan_id,customer_name,phone_number,loan_amount
LN-3001,Asha Rao,+919800011111,240000
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-7")

	assert.Empty(t, errs)
	require.Len(t, borrowers, 1)
	assert.Zero(t, borrowers[0].OutstandingBalance)
	assert.Zero(t, borrowers[0].EMIAmount)
	assert.Nil(t, borrowers[0].DueDate)
}

func TestParseBorrowersCurrencyFormats(t *testing.T) {
	content := `loan_id,customer_name,phone_number,loan_amount,outstanding_balance
LN-4001,Asha Rao,+919800011111,"₹2,40,000","$1,00,000.50"
`

	parser := NewCSVParser()
	borrowers, errs := parser.ParseBorrowers(content, "batch-8")

	assert.Empty(t, errs)
	require.Len(t, borrowers, 1)
	assert.Equal(t, 240000.0, borrowers[0].LoanAmount)
	assert.Equal(t, 100000.50, borrowers[0].OutstandingBalance)
}

func TestValidateCSVStructure(t *testing.T) {
	t.Run("valid file", func(t *testing.T) {
		content := `loan_id,customer_name,phone_number,loan_amount
LN-1001,Asha Rao,+919800011111,240000
`
		result, err := ValidateCSVStructure(content)
		require.NoError(t, err)
		assert.True(t, result.Valid)
		assert.Equal(t, 1, result.RowCount)
		assert.Empty(t, result.MissingColumns)
	})

	t.Run("missing columns", func(t *testing.T) {
		content := `loan_id,loan_amount
LN-1001,240000
`
		result, err := ValidateCSVStructure(content)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.ElementsMatch(t, []string{"customer_name", "phone_number"}, result.MissingColumns)
	})

	t.Run("no data rows", func(t *testing.T) {
		content := "loan_id,customer_name,phone_number,loan_amount\n"
		result, err := ValidateCSVStructure(content)
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.Zero(t, result.RowCount)
	})

	t.Run("empty file", func(t *testing.T) {
		result, err := ValidateCSVStructure("")
		require.NoError(t, err)
		assert.False(t, result.Valid)
		assert.NotEmpty(t, result.Errors)
	})
}
