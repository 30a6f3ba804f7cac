package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames()
	require.NoError(t, err)
	require.NotEmpty(t, names)
	require.Equal(t, "001_init.sql", names[0])
	for i := 1; i < len(names); i++ {
		require.Less(t, names[i-1], names[i])
	}
}

func TestInitMigrationCreatesTables(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/001_init.sql")
	require.NoError(t, err)
	require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS llm_calls")
	require.Contains(t, string(body), "CREATE TABLE IF NOT EXISTS analyses")
}

func TestNopImplementations(t *testing.T) {
	var audit LLMAuditLog = NopAuditLog{}
	require.NoError(t, audit.Insert(context.Background(), LLMCallRecord{Operation: "summary"}))

	var archive AnalysisArchive = NopArchive{}
	_, err := archive.Get(context.Background(), "a1")
	require.ErrorIs(t, err, ErrAnalysisNotFound)
	list, err := archive.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, list)
}
