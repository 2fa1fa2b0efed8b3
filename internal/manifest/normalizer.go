package manifest

import (
	"path"
	"regexp"
	"strings"

	"assetmanifest/internal/core"
)

var fullURLRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9+.\-]*://`)

// IsFullURL reports whether s starts with a URI scheme ("https://...").
func IsFullURL(s string) bool {
	return fullURLRe.MatchString(s)
}

// Normalizer prefixes descriptor names with BasePath (manifest keys) and
// descriptor paths with PublicPath (manifest values).
type Normalizer struct {
	BasePath   string
	PublicPath string
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(basePath, publicPath string) Normalizer {
	return Normalizer{BasePath: basePath, PublicPath: publicPath}
}

// Normalize returns the manifest key and value for d.
func (n Normalizer) Normalize(d core.FileDescriptor) (key, value string) {
	return prefix(n.BasePath, d.Name), prefix(n.PublicPath, d.Path)
}

// Apply rewrites Name and Path of every descriptor to its key and value.
// The input slice is not modified.
func (n Normalizer) Apply(ds []core.FileDescriptor) []core.FileDescriptor {
	out := make([]core.FileDescriptor, len(ds))
	for i, d := range ds {
		d.Name, d.Path = n.Normalize(d)
		out[i] = d
	}
	return out
}

// prefix joins p onto base. Full URLs and protocol-relative prefixes are
// concatenated verbatim since a path join would collapse their "//".
func prefix(base, p string) string {
	if base == "" {
		return p
	}
	if IsFullURL(base) || strings.HasPrefix(base, "//") {
		return base + p
	}
	joined := path.Join(base, p)
	if strings.HasSuffix(p, "/") && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}
