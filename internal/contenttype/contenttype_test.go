package contenttype

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
)

func TestFromExtension(t *testing.T) {
	assert.Equal(t, "application/pdf", FromExtension("pdfs/guide.pdf"))
	assert.Equal(t, "image/png", FromExtension("img/LOGO.PNG"))
	assert.Equal(t, "font/woff2", FromExtension("fonts/a.woff2"))
	assert.Equal(t, "image/svg+xml", FromExtension("icons/a.svg"))
	assert.Equal(t, "", FromExtension("LICENSE"))
}

func TestDetect(t *testing.T) {
	pngHeader := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	assert.Equal(t, "application/pdf", Detect("guide.pdf", nil))
	assert.Equal(t, "image/png", Detect("blob", bytes.NewReader(pngHeader)))
	assert.Equal(t, assettypes.DefaultContentType, Detect("blob", nil))
	assert.Equal(t, assettypes.DefaultContentType, Detect("blob", strings.NewReader("")))
	assert.True(t, strings.HasPrefix(Detect("notes", strings.NewReader("plain words")), "text/plain"))
}
