package rdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildSelect(t *testing.T) {
	query, args := buildSelect("entity", Row{"id": 2, "name": "Workforce"}, 1)
	assert.Equal(t, "SELECT * FROM entity WHERE id = $1 AND name = $2 LIMIT 1", query)
	assert.Equal(t, []any{2, "Workforce"}, args)
}

func TestBuildSelectWholeTable(t *testing.T) {
	query, args := buildSelect("entity", nil, 0)
	assert.Equal(t, "SELECT * FROM entity", query)
	assert.Empty(t, args)
}

func TestBuildInsertSingleRow(t *testing.T) {
	query, args, err := buildInsert("entity", []Row{{"id": 4, "name": "3rd Party"}})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO entity (id, name) VALUES ($1, $2)", query)
	assert.Equal(t, []any{4, "3rd Party"}, args)
}

func TestBuildInsertMultiRow(t *testing.T) {
	query, args, err := buildInsert("events", []Row{
		{"kind": "a", "user_id": 1},
		{"kind": "b", "user_id": 2},
	})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO events (kind, user_id) VALUES ($1, $2), ($3, $4)", query)
	assert.Equal(t, []any{"a", 1, "b", 2}, args)
}

func TestBuildInsertMismatchedRows(t *testing.T) {
	_, _, err := buildInsert("events", []Row{
		{"kind": "a", "user_id": 1},
		{"kind": "b"},
	})
	require.Error(t, err)
}

func TestBuildUpsertDoUpdate(t *testing.T) {
	query, args, err := buildUpsert("wallets",
		[]Row{{"address": "0xabc", "balance": 10, "chain": "evm"}},
		[]string{"address"}, nil, false)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO wallets (address, balance, chain) VALUES ($1, $2, $3)"+
			" ON CONFLICT (address) DO UPDATE SET balance = EXCLUDED.balance, chain = EXCLUDED.chain",
		query)
	assert.Equal(t, []any{"0xabc", 10, "evm"}, args)
}

func TestBuildUpsertDoNothing(t *testing.T) {
	query, _, err := buildUpsert("wallets",
		[]Row{{"address": "0xabc", "balance": 10}},
		[]string{"address"}, nil, true)
	require.NoError(t, err)
	assert.Equal(t,
		"INSERT INTO wallets (address, balance) VALUES ($1, $2) ON CONFLICT (address) DO NOTHING",
		query)
}

func TestBuildUpsertExplicitUpdateColumns(t *testing.T) {
	query, _, err := buildUpsert("wallets",
		[]Row{{"address": "0xabc", "balance": 10, "updated_at": "now"}},
		[]string{"address"}, []string{"balance"}, false)
	require.NoError(t, err)
	assert.Contains(t, query, "DO UPDATE SET balance = EXCLUDED.balance")
	assert.NotContains(t, query, "updated_at = EXCLUDED")
}

func TestBuildUpsertRequiresConflictColumns(t *testing.T) {
	_, _, err := buildUpsert("wallets", []Row{{"a": 1}}, nil, nil, false)
	require.Error(t, err)
}

func TestBuildUpdate(t *testing.T) {
	query, args, err := buildUpdate("entity", Row{"name": "Workforce"}, Row{"id": 2})
	require.NoError(t, err)
	assert.Equal(t, "UPDATE entity SET name = $1 WHERE id = $2", query)
	assert.Equal(t, []any{"Workforce", 2}, args)
}

func TestBuildUpdateRefusesUnbounded(t *testing.T) {
	_, _, err := buildUpdate("entity", Row{"name": "x"}, nil)
	require.Error(t, err)
}

func TestBuildDelete(t *testing.T) {
	query, args, err := buildDelete("entity", Row{"id": 2, "name": "Workforce"})
	require.NoError(t, err)
	assert.Equal(t, "DELETE FROM entity WHERE id = $1 AND name = $2", query)
	assert.Equal(t, []any{2, "Workforce"}, args)
}

func TestBuildDeleteRefusesUnbounded(t *testing.T) {
	_, _, err := buildDelete("entity", nil)
	require.Error(t, err)
}

func TestDatabasePolicyRetriesOnlyConnectionClass(t *testing.T) {
	p := DatabasePolicy()
	assert.Equal(t, 2, p.MaxAttempts)
}
