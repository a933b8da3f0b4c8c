package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/jdasdash/internal/dashboard"
	"github.com/example/jdasdash/internal/dataverse"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, k := range []string{"DATAVERSE_URL", "TENANT_ID", "CLIENT_ID", "CLIENT_SECRET", "REGISTRY_FILE"} {
		t.Setenv(k, "")
	}
	t.Setenv("LOG_LEVEL", "error")

	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTablesCommandNeedsNoUpstream(t *testing.T) {
	out, err := run(t, "tables")
	require.NoError(t, err)

	var tables []dashboard.TableInfo
	require.NoError(t, json.Unmarshal([]byte(out), &tables))
	require.Len(t, tables, 8)
	require.Equal(t, "marketinsight", tables[0].Key)
	require.Empty(t, tables[0].ResolvedCollection)
}

func TestDataCommandsReportMissingConfiguration(t *testing.T) {
	for _, args := range [][]string{
		{"industry"},
		{"industry", "ai"},
		{"cards", "marketinsight"},
		{"raw", "marketinsight", "--filter", "$filter=statecode eq 0"},
		{"describe", "jdas_marketinsight"},
	} {
		_, err := run(t, args...)
		require.ErrorIs(t, err, dataverse.ErrConfiguration, "%v", args)
	}
}

func TestUnknownTableCommand(t *testing.T) {
	_, err := run(t, "cards", "nope")
	require.ErrorIs(t, err, dashboard.ErrUnknownTable)
}

func TestCommandArgs(t *testing.T) {
	_, err := run(t, "cards")
	require.Error(t, err)
	_, err = run(t, "tables", "extra")
	require.Error(t, err)
}
