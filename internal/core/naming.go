package core

import (
	"fmt"
	"path"
	"regexp"
	"strings"
)

// NameResolver derives the logical name of a chunk file.
type NameResolver interface {
	ResolveName(chunk *Chunk, emittedPath string) string
}

// ChunkNames names a chunk file after its chunk plus the file type, so
// "one.3f9a1c.js" from chunk "one" becomes "one.js" and its source map
// "one.3f9a1c.js.map" becomes "one.js.map". Directories in the emitted
// path are not carried over.
type ChunkNames struct{}

func (ChunkNames) ResolveName(chunk *Chunk, emittedPath string) string {
	if chunk == nil || chunk.Name == "" {
		return emittedPath
	}
	ext := FileType(emittedPath)
	if ext == "" {
		return chunk.Name
	}
	return chunk.Name + "." + ext
}

// FileType returns the extension of p without the leading dot. A trailing
// "map" or "gz" extension is kept together with the one before it
// ("js.map"). Query strings are ignored.
func FileType(p string) string {
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	base := path.Base(p)
	parts := strings.Split(base, ".")
	if len(parts) < 2 {
		return ""
	}
	ext := parts[len(parts)-1]
	lower := strings.ToLower(ext)
	if (lower == "map" || lower == "gz") && len(parts) > 2 {
		ext = parts[len(parts)-2] + "." + ext
	}
	return ext
}

var placeholderRe = regexp.MustCompile(`\[(name|id|ext|hash|chunkhash|contenthash)(?::(\d+))?\]`)

type templateToken struct {
	literal string
	kind    string
	length  string
}

// TemplateNames strips hash placeholders from an output filename template
// and keeps everything else, so "js/[name].[chunkhash:8].js" names the
// file "js/main.0badc0de.js" of chunk "main" as "js/main.js". Files that
// do not match the template fall back to ChunkNames.
type TemplateNames struct {
	Template string

	tokens []templateToken
	match  *regexp.Regexp
}

// NewTemplateNames compiles template. Templates without a [name]
// placeholder are rejected since they cannot distinguish chunks.
func NewTemplateNames(template string) (*TemplateNames, error) {
	if !strings.Contains(template, "[name]") {
		return nil, fmt.Errorf("filename template %q has no [name] placeholder", template)
	}
	t := &TemplateNames{Template: template}

	var re strings.Builder
	re.WriteString("^")
	last := 0
	for _, m := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		if m[0] > last {
			lit := template[last:m[0]]
			t.tokens = append(t.tokens, templateToken{literal: lit})
			re.WriteString(regexp.QuoteMeta(lit))
		}
		tok := templateToken{kind: template[m[2]:m[3]]}
		if m[4] >= 0 {
			tok.length = template[m[4]:m[5]]
		}
		t.tokens = append(t.tokens, tok)
		switch tok.kind {
		case "name", "id":
			re.WriteString(`.+?`)
		case "ext":
			re.WriteString(`(?P<ext>[^./]+)`)
		default:
			if tok.length != "" {
				re.WriteString(`[0-9A-Za-z]{` + tok.length + `}`)
			} else {
				re.WriteString(`[0-9A-Za-z]+`)
			}
		}
		last = m[1]
	}
	if last < len(template) {
		lit := template[last:]
		t.tokens = append(t.tokens, templateToken{literal: lit})
		re.WriteString(regexp.QuoteMeta(lit))
	}
	re.WriteString("$")

	match, err := regexp.Compile(re.String())
	if err != nil {
		return nil, fmt.Errorf("compiling filename template %q: %w", template, err)
	}
	t.match = match
	return t, nil
}

func (t *TemplateNames) ResolveName(chunk *Chunk, emittedPath string) string {
	if chunk == nil || chunk.Name == "" {
		return emittedPath
	}
	if t == nil || t.match == nil {
		return ChunkNames{}.ResolveName(chunk, emittedPath)
	}
	m := t.match.FindStringSubmatch(emittedPath)
	if m == nil {
		return ChunkNames{}.ResolveName(chunk, emittedPath)
	}
	ext := ""
	if i := t.match.SubexpIndex("ext"); i > 0 {
		ext = m[i]
	}

	var out strings.Builder
	for i, tok := range t.tokens {
		switch tok.kind {
		case "":
			lit := tok.literal
			if i+1 < len(t.tokens) && isHashKind(t.tokens[i+1].kind) {
				if t.hashOwnsSegment(i + 1) {
					// "[name]/[hash].js" folds into "[name].js".
					lit = strings.TrimSuffix(lit, "/")
				} else {
					// Drop the separator that only existed to frame a hash.
					lit = trimSeparatorSuffix(lit)
				}
			}
			if i > 0 && isHashKind(t.tokens[i-1].kind) {
				switch {
				case t.hashOwnsSegment(i - 1):
					if out.Len() == 0 {
						lit = strings.TrimPrefix(lit, "/")
					}
				case atSegmentStart(out.String()):
					lit = trimSeparatorPrefix(lit)
				}
			}
			out.WriteString(lit)
		case "name":
			out.WriteString(chunk.Name)
		case "id":
			out.WriteString(chunk.ID)
		case "ext":
			out.WriteString(ext)
		}
	}
	return out.String()
}

// hashOwnsSegment reports whether the path segment holding token i has no
// [name] or [id] placeholder, so dropping the hash leaves nothing of it.
func (t *TemplateNames) hashOwnsSegment(i int) bool {
	for j := i - 1; j >= 0; j-- {
		tok := t.tokens[j]
		if tok.kind == "" && strings.Contains(tok.literal, "/") {
			break
		}
		if tok.kind == "name" || tok.kind == "id" {
			return false
		}
	}
	for j := i + 1; j < len(t.tokens); j++ {
		tok := t.tokens[j]
		if tok.kind == "" && strings.Contains(tok.literal, "/") {
			break
		}
		if tok.kind == "name" || tok.kind == "id" {
			return false
		}
	}
	return true
}

func isHashKind(kind string) bool {
	return kind == "hash" || kind == "chunkhash" || kind == "contenthash"
}

func trimSeparatorSuffix(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '-', '_', '~':
		return s[:len(s)-1]
	}
	return s
}

func trimSeparatorPrefix(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '.', '-', '_', '~':
		return s[1:]
	}
	return s
}

func atSegmentStart(s string) bool {
	return s == "" || strings.HasSuffix(s, "/")
}
