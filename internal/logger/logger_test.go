package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupWriterJSON(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	require.NoError(t, SetupWriter("debug", "json", &buf))

	slog.Debug("page fetched", "table", "jdas_marketinsight")
	require.Contains(t, buf.String(), `"msg":"page fetched"`)
	require.Contains(t, buf.String(), `"table":"jdas_marketinsight"`)
}

func TestSetupWriterRejectsUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.Error(t, SetupWriter("chatty", "json", &buf))
	require.Error(t, SetupWriter("info", "xml", &buf))
}
