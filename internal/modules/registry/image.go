package registry

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImageMaterializer persists inline image payloads under the image directory
// and rewrites them to their served URL. Remote URLs pass through untouched.
type ImageMaterializer struct {
	// Dir is the on-disk image directory, served at /images.
	Dir string
	// BaseURL prefixes the served path, e.g. https://dir.example.
	BaseURL string
}

// Materialize resolves a submission's image field for listing id. Inline
// payloads (data: URLs) are decoded and written once; a decode failure fails
// the enclosing operation so no partial row is committed.
func (m *ImageMaterializer) Materialize(id int64, image string) (string, error) {
	payload, ok := strings.CutPrefix(image, "data:")
	if !ok {
		return image, nil
	}

	_, b64, found := strings.Cut(payload, "base64,")
	if !found {
		return "", fmt.Errorf("inline image for listing %d is not base64", id)
	}
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("decode inline image for listing %d: %w", id, err)
	}

	name := fmt.Sprintf("%d.png", id)
	path := filepath.Join(m.Dir, name)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(m.Dir, 0o755); err != nil {
			return "", err
		}
		if err := os.WriteFile(path, raw, 0o644); err != nil {
			return "", fmt.Errorf("write image %s: %w", path, err)
		}
	}
	return m.BaseURL + "/images/" + name, nil
}
