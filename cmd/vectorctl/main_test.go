package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaleem-ai/vectorsearch/internal/indexer"
)

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()

	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"ensure", "index", "delete", "search", "unified", "status"} {
		assert.Contains(t, names, want)
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCommands_RejectBadArgsBeforeConnecting(t *testing.T) {
	file := filepath.Join(t.TempDir(), "items.json")
	require.NoError(t, os.WriteFile(file, []byte(`[]`), 0o600))

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "index needs two args", args: []string{"index", "product"}, wantErr: "accepts 2 arg(s)"},
		{name: "unknown entity", args: []string{"index", "widget", file}, wantErr: `unknown entity "widget"`},
		{name: "missing file", args: []string{"index", "product", filepath.Join(t.TempDir(), "nope.json")}, wantErr: "read "},
		{name: "unknown collection", args: []string{"delete", "widgets", "--id", "x"}, wantErr: `unknown collection "widgets"`},
		{name: "delete needs a selector", args: []string{"delete", "products"}, wantErr: "either --id or --merchant is required"},
		{name: "search unknown collection", args: []string{"search", "widgets", "shoes"}, wantErr: `unknown collection "widgets"`},
		{name: "unified needs merchant", args: []string{"unified", "returns"}, wantErr: "--merchant is required"},
		{name: "status takes no args", args: []string{"status", "extra"}, wantErr: "unknown command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := newRootCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&out)
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDecodeList(t *testing.T) {
	t.Run("array", func(t *testing.T) {
		got, err := decodeList[indexer.FAQ]([]byte(` [{"id":"f1","question":"q","answer":"a"},{"id":"f2"}] `))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "f1", got[0].ID)
		assert.Equal(t, "f2", got[1].ID)
	})

	t.Run("single object", func(t *testing.T) {
		got, err := decodeList[indexer.WebPage]([]byte(`{"merchantId":"m1","url":"https://shop.example/about"}`))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "m1", got[0].MerchantID)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := decodeList[indexer.FAQ]([]byte("  \n"))
		assert.Error(t, err)
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := decodeList[indexer.FAQ]([]byte(`[{"id":`))
		assert.ErrorContains(t, err, "decode array")
	})
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, "m1", orDefault("", "m1"))
	assert.Equal(t, "own", orDefault("own", "m1"))
}
