package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionValidate(t *testing.T) {
	bal := "1200.10"
	ok := Transaction{Date: "2025-01-03", Description: "COFFEE", Amount: "-4.50", Type: Debit, Balance: &bal}
	assert.NoError(t, ok.Validate())

	badType := ok
	badType.Type = "transfer"
	assert.ErrorContains(t, badType.Validate(), "unknown transaction type")

	badAmount := ok
	badAmount.Amount = "4,50"
	assert.ErrorContains(t, badAmount.Validate(), "parsing amount")

	badBalance := ok
	junk := "n/a"
	badBalance.Balance = &junk
	assert.ErrorContains(t, badBalance.Validate(), "parsing balance")
}

func TestSum(t *testing.T) {
	txns := []Transaction{
		{Amount: "-4.50", Type: Debit},
		{Amount: "10.10", Type: Debit},
		{Amount: "2500.00", Type: Credit},
		{Amount: "oops", Type: Credit},
	}
	tot := Sum(txns)
	assert.Equal(t, "14.60", tot.Debits.StringFixed(2))
	assert.Equal(t, "2500.00", tot.Credits.StringFixed(2))
	assert.Equal(t, "2485.40", tot.Net().StringFixed(2))
	assert.Equal(t, 1, tot.Invalid)
}

func TestTransactionJSON(t *testing.T) {
	raw := `{
		"date": "2025-02-01",
		"description": "RENT",
		"amount": "1500.00",
		"transaction_type": "debit",
		"external_id": "abc-1",
		"status": "duplicate",
		"existing_transaction": {"id": 42, "amount": "1500.00"}
	}`
	var txn Transaction
	require.NoError(t, json.Unmarshal([]byte(raw), &txn))
	assert.Equal(t, Debit, txn.Type)
	assert.True(t, txn.IsDuplicate())
	require.NotNil(t, txn.ExistingTransaction)
	assert.Equal(t, int64(42), txn.ExistingTransaction.ID)
	assert.Nil(t, txn.Balance)
}
