package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadIngestDocument_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tides.md")
	require.NoError(t, os.WriteFile(path, []byte("\n# Tides\nThe Moon pulls the oceans.\n"), 0o600))

	doc, err := readIngestDocument(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "tides", doc.Title)
	assert.Equal(t, "# Tides\nThe Moon pulls the oceans.", doc.Content)
}

func TestReadIngestDocument_Stdin(t *testing.T) {
	doc, err := readIngestDocument("-", strings.NewReader("from stdin"))
	require.NoError(t, err)

	assert.Empty(t, doc.Title)
	assert.Equal(t, "from stdin", doc.Content)
}

func TestReadIngestDocument_Errors(t *testing.T) {
	_, err := readIngestDocument(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.ErrorContains(t, err, "read")

	_, err = readIngestDocument("-", strings.NewReader("   \n"))
	assert.ErrorContains(t, err, "is empty")
}

func TestMetaFlags(t *testing.T) {
	m := metaFlags{}
	require.NoError(t, m.Set("source=atlas"))
	require.NoError(t, m.Set(" lang =en=GB"))

	assert.Equal(t, metaFlags{"source": "atlas", "lang": "en=GB"}, m)
	assert.Error(t, m.Set("novalue"))
	assert.Error(t, m.Set("=x"))
}
