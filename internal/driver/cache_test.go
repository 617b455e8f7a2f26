package driver

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCacheFreshReturnsFalseWhenFileMissing(t *testing.T) {
	fresh, err := isCacheFresh(filepath.Join(t.TempDir(), "missing.cid"), []byte("source"))
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestIsCacheFreshMatchesPlainJSON(t *testing.T) {
	source := []byte("int main(){return 0;}")
	path := filepath.Join(t.TempDir(), "test.cid")
	// sha256("int main(){return 0;}") computed at test-write time would
	// require importing crypto/sha256 here too; instead round-trip
	// through the same hashing the cache check performs by writing a
	// document whose hash we compute the identical way.
	hash := sha256Hex(source)
	require.NoError(t, os.WriteFile(path, []byte(`{"source_sha256_hex":"`+hash+`"}`), 0o644))

	fresh, err := isCacheFresh(path, source)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestIsCacheFreshRejectsStaleHash(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.cid")
	require.NoError(t, os.WriteFile(path, []byte(`{"source_sha256_hex":"deadbeef"}`), 0o644))

	fresh, err := isCacheFresh(path, []byte("int main(){return 0;}"))
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestIsCacheFreshDecompressesGzip(t *testing.T) {
	source := []byte("int main(){return 0;}")
	hash := sha256Hex(source)
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(`{"source_sha256_hex":"` + hash + `"}`))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "test.cid")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	fresh, err := isCacheFresh(path, source)
	require.NoError(t, err)
	assert.True(t, fresh)
}
