package registry

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaterializePassesThroughRemoteURL(t *testing.T) {
	m := &ImageMaterializer{Dir: t.TempDir(), BaseURL: "https://dir.example"}

	url, err := m.Materialize(3, "https://cdn.example/banner.png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/banner.png", url)

	url, err = m.Materialize(3, "none")
	require.NoError(t, err)
	assert.Equal(t, "none", url)
}

func TestMaterializeWritesInlinePayloadOnce(t *testing.T) {
	dir := t.TempDir()
	m := &ImageMaterializer{Dir: dir, BaseURL: "https://dir.example"}

	payload := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("png-bytes"))
	url, err := m.Materialize(7, payload)
	require.NoError(t, err)
	assert.Equal(t, "https://dir.example/images/7.png", url)

	path := filepath.Join(dir, "7.png")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))

	// A later payload for the same listing must not rewrite the stored file.
	other := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("different"))
	url, err = m.Materialize(7, other)
	require.NoError(t, err)
	assert.Equal(t, "https://dir.example/images/7.png", url)

	raw, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(raw))
}

func TestMaterializeDecodeFailure(t *testing.T) {
	m := &ImageMaterializer{Dir: t.TempDir(), BaseURL: "https://dir.example"}

	_, err := m.Materialize(1, "data:image/png;base64,@@not-base64@@")
	require.Error(t, err)

	_, err = m.Materialize(1, "data:image/png;hex,cafe")
	require.Error(t, err)
}
