package parsers_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/primmus/DC3-MWCP/pkg/mwcp"
	"github.com/primmus/DC3-MWCP/pkg/mwcp/parser"
	_ "github.com/primmus/DC3-MWCP/pkg/mwcp/parsers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runBundled(t *testing.T, spec string, data []byte, parserOpts map[string]any) *mwcp.Result {
	t.Helper()
	eng, err := mwcp.New(mwcp.Options{
		Logger:             slog.NewTextHandler(io.Discard, nil),
		DisableOutputFiles: true,
	})
	require.NoError(t, err)
	result, err := eng.Run(context.Background(), spec, mwcp.RunInput{Data: data}, parserOpts)
	require.NoError(t, err)
	return result
}

// TestBundledParsersRegistered verifies the import side effect.
func TestBundledParsersRegistered(t *testing.T) {
	assert.NotEmpty(t, parser.Default().Resolve("mwcp:urlscan"))
	assert.NotEmpty(t, parser.Default().Resolve("mwcp:sample"))
}

// TestURLScan verifies URL carving and its cascade into address fields.
func TestURLScan(t *testing.T) {
	data := []byte("garbage\x00http://evil.example.net:8080/gate\x00more\x00ftp://files.example.org/drop\x00")
	result := runBundled(t, "mwcp:urlscan", data, nil)

	require.True(t, result.Success(), "run errors: %v", result.Errors)
	urls, _ := result.Metadata["url"].([]string)
	assert.Contains(t, urls, "http://evil.example.net:8080/gate")
	assert.Contains(t, urls, "ftp://files.example.org/drop")
	assert.Contains(t, result.Metadata["address"], "files.example.org")
	assert.Contains(t, result.Metadata["socketaddress"], []string{"evil.example.net", "8080", "tcp"})
}

// TestURLScanNothingFound verifies the quiet path.
func TestURLScanNothingFound(t *testing.T) {
	result := runBundled(t, "mwcp:urlscan", []byte("no urls here"), nil)

	require.True(t, result.Success())
	assert.NotContains(t, result.Metadata, "url")
	assert.Contains(t, result.Metadata["debug"], "no printable URLs found")
}

// TestSampleParser verifies the demo parser's full report shape.
func TestSampleParser(t *testing.T) {
	result := runBundled(t, "mwcp:sample", []byte("sample body"), map[string]any{"mutex": "Global\\demo"})

	require.True(t, result.Success(), "run errors: %v", result.Errors)
	md := result.Metadata

	assert.Contains(t, md["url"], "http://127.0.0.1")
	assert.Contains(t, md["c2_address"], "fe80::20c:1234:5678:9abc")
	assert.Contains(t, md["username"], "admin")
	assert.Contains(t, md["mutex"], "Global\\demo")
	assert.Contains(t, md["servicename"], "WinDefender")
	assert.Contains(t, md["registrypath"], `HKLM\Software\Run\svc`)
	assert.Equal(t, map[string]any{"keylogger": "true"}, md["other"])

	require.Len(t, result.Outputs, 1)
	assert.Equal(t, "fooconfigtest.txt", result.Outputs[0].Name)
	assert.Equal(t, []byte("hello world"), result.Outputs[0].Data)
}
