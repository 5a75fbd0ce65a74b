// Package contenttype derives the Content-Type sent with each upload.
package contenttype

import (
	"io"
	"mime"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/input-output-hk/catalyst-forge-libs/assetsync/assettypes"
	"github.com/input-output-hk/catalyst-forge-libs/assetsync/internal/pool"
)

// overrides pins types whose platform mime tables disagree.
var overrides = map[string]string{
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".webp":  "image/webp",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".mp4":   "video/mp4",
	".mp3":   "audio/mpeg",
	".wav":   "audio/wav",
	".ogg":   "audio/ogg",
}

// FromExtension returns the type registered for the extension of p, or "".
func FromExtension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return ""
	}
	if ct, ok := overrides[ext]; ok {
		return ct
	}
	return mime.TypeByExtension(ext)
}

// Detect returns the content type for the file at p.
// The extension wins; otherwise the first bytes of r are sniffed with mimetype.
// r may be nil, in which case DefaultContentType is the fallback.
func Detect(p string, r io.Reader) string {
	if ct := FromExtension(p); ct != "" {
		return ct
	}
	if r == nil {
		return assettypes.DefaultContentType
	}

	buf := pool.GetSmallBuffer()
	defer pool.PutSmallBuffer(buf)

	n, _ := io.ReadFull(r, buf)
	if n == 0 {
		return assettypes.DefaultContentType
	}
	if mt := mimetype.Detect(buf[:n]); mt != nil {
		return mt.String()
	}
	return assettypes.DefaultContentType
}
