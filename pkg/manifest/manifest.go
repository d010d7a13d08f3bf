// Package manifest locates the image list literal embedded in a page and edits it
// in place. Only the body of the first matching declaration is ever rewritten;
// every other byte of the document is carried through unchanged.
package manifest

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	ErrPatternNotFound  = errors.New("manifest declaration not found")
	ErrDocumentNotFound = errors.New("manifest document not found")
	ErrInvalidFilename  = errors.New("invalid image filename")
	ErrDuplicateEntry   = errors.New("image already listed in manifest")
	ErrMalformedBody    = errors.New("manifest body is not a list of string literals")
	ErrVerifyFailed     = errors.New("patched document failed verification")
)

const (
	DefaultKeyword    = "const"
	DefaultIdentifier = "images"
	DefaultIndent     = "      "
)

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Declaration names the list literal to edit, e.g. `const images = [...];`.
type Declaration struct {
	Keyword    string
	Identifier string
	// Indent prefixes new entries when it cannot be inferred from existing ones.
	Indent string
}

// Span holds byte offsets of a located declaration.
// [Start, End) covers the whole declaration; [BodyStart, BodyEnd) the list body.
type Span struct {
	Start     int
	End       int
	BodyStart int
	BodyEnd   int
}

// Body returns the list body text of doc covered by the span.
func (s Span) Body(doc string) string {
	return doc[s.BodyStart:s.BodyEnd]
}

// Patcher edits one declaration kind.
type Patcher struct {
	decl Declaration
	re   *regexp.Regexp
}

// NewPatcher validates decl and compiles its locating pattern.
func NewPatcher(decl Declaration) (*Patcher, error) {
	if decl.Keyword == "" {
		decl.Keyword = DefaultKeyword
	}
	if decl.Identifier == "" {
		decl.Identifier = DefaultIdentifier
	}
	if decl.Indent == "" {
		decl.Indent = DefaultIndent
	}
	if !identRe.MatchString(decl.Keyword) {
		return nil, fmt.Errorf("invalid declaration keyword %q", decl.Keyword)
	}
	if !identRe.MatchString(decl.Identifier) {
		return nil, fmt.Errorf("invalid declaration identifier %q", decl.Identifier)
	}
	if strings.TrimLeft(decl.Indent, " \t") != "" {
		return nil, fmt.Errorf("indent must contain only spaces or tabs, got %q", decl.Indent)
	}

	pattern := `(?s)\b(` + regexp.QuoteMeta(decl.Keyword) + `\s+` + regexp.QuoteMeta(decl.Identifier) +
		`\s*=\s*\[)(.*?)(\]\s*;)`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile declaration pattern: %w", err)
	}
	return &Patcher{decl: decl, re: re}, nil
}

// Default returns a patcher for `const images = [...];`.
func Default() *Patcher {
	p, err := NewPatcher(Declaration{})
	if err != nil {
		panic(err)
	}
	return p
}

// Declaration returns the effective declaration settings.
func (p *Patcher) Declaration() Declaration {
	return p.decl
}

// Locate finds the first declaration in doc.
func (p *Patcher) Locate(doc string) (Span, error) {
	m := p.re.FindStringSubmatchIndex(doc)
	if m == nil {
		return Span{}, fmt.Errorf("%w: %s %s = [...];", ErrPatternNotFound, p.decl.Keyword, p.decl.Identifier)
	}
	return Span{Start: m[0], End: m[1], BodyStart: m[4], BodyEnd: m[5]}, nil
}

// AppendEntry returns doc with filename appended as the last entry of the list.
// The opening `keyword ident = [` and the closing `];` are kept verbatim.
func (p *Patcher) AppendEntry(doc, filename string) (string, error) {
	if err := ValidateFilename(filename); err != nil {
		return "", err
	}
	span, err := p.Locate(doc)
	if err != nil {
		return "", err
	}

	body := span.Body(doc)
	newBody := p.appendToBody(body, quoteJS(filename), lineIndent(doc, span.Start), lineEnding(body, doc))
	return doc[:span.BodyStart] + newBody + doc[span.BodyEnd:], nil
}

func (p *Patcher) appendToBody(body, entry, declIndent, nl string) string {
	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		closing := declIndent
		if i := strings.LastIndexByte(body, '\n'); i >= 0 {
			closing = body[i+1:]
		}
		return nl + p.decl.Indent + entry + nl + closing
	}

	lead := body[:len(body)-len(strings.TrimLeftFunc(body, unicode.IsSpace))]
	trail := body[len(lead)+len(trimmed):]

	indent, ok := lastLineIndent(lead + trimmed)
	if !ok {
		indent = p.decl.Indent
	}

	sep := ","
	if strings.HasSuffix(trimmed, ",") {
		sep = ""
	}
	return lead + trimmed + sep + nl + indent + entry + trail
}

// lineEnding returns the line terminator used by the list body, falling back
// to the one used by the document.
func lineEnding(body, doc string) string {
	for _, s := range []string{body, doc} {
		if i := strings.IndexByte(s, '\n'); i >= 0 {
			if i > 0 && s[i-1] == '\r' {
				return "\r\n"
			}
			return "\n"
		}
	}
	return "\n"
}

// quoteJS renders name as a double-quoted JavaScript string literal. Only the
// quote, the backslash, control characters and the JS line separators are
// escaped, so the literal reads back as exactly name.
func quoteJS(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 2)
	b.WriteByte('"')
	for _, r := range name {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r < 0x20 || r == 0x7f || r == '\u2028' || r == '\u2029':
			_, _ = fmt.Fprintf(&b, "\\u%04x", r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// lastLineIndent returns the leading whitespace of the last line of s,
// or false when s is a single line.
func lastLineIndent(s string) (string, bool) {
	i := strings.LastIndexByte(s, '\n')
	if i < 0 {
		return "", false
	}
	line := s[i+1:]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))], true
}

// lineIndent returns the leading whitespace of the line containing pos.
func lineIndent(doc string, pos int) string {
	start := strings.LastIndexByte(doc[:pos], '\n') + 1
	line := doc[start:pos]
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

// Entries parses the string literals of the declaration body in order.
func (p *Patcher) Entries(doc string) ([]string, error) {
	span, err := p.Locate(doc)
	if err != nil {
		return nil, err
	}
	return parseEntries(span.Body(doc))
}

// Contains reports whether filename is already listed. Names are compared in
// Unicode NFC so decomposed and composed spellings match.
func (p *Patcher) Contains(doc, filename string) (bool, error) {
	entries, err := p.Entries(doc)
	if err != nil {
		return false, err
	}
	want := norm.NFC.String(filename)
	for _, e := range entries {
		if norm.NFC.String(e) == want {
			return true, nil
		}
	}
	return false, nil
}

// Verify checks that after is before with exactly filename appended to the list
// and nothing outside the list body changed.
func (p *Patcher) Verify(before, after, filename string) error {
	sb, err := p.Locate(before)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	sa, err := p.Locate(after)
	if err != nil {
		return fmt.Errorf("%w: declaration no longer matches", ErrVerifyFailed)
	}
	if before[:sb.BodyStart] != after[:sa.BodyStart] || before[sb.BodyEnd:] != after[sa.BodyEnd:] {
		return fmt.Errorf("%w: bytes outside the list changed", ErrVerifyFailed)
	}

	old, oldErr := parseEntries(sb.Body(before))
	if oldErr != nil {
		// Bodies holding more than plain literals are only checked by their tail.
		if !strings.HasSuffix(strings.TrimSpace(sa.Body(after)), quoteJS(filename)) {
			return fmt.Errorf("%w: new entry is not last", ErrVerifyFailed)
		}
		return nil
	}

	got, err := parseEntries(sa.Body(after))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerifyFailed, err)
	}
	if len(got) != len(old)+1 || got[len(got)-1] != filename {
		return fmt.Errorf("%w: expected %d entries ending with %q, got %d", ErrVerifyFailed, len(old)+1, filename, len(got))
	}
	for i := range old {
		if old[i] != got[i] {
			return fmt.Errorf("%w: entry %d changed", ErrVerifyFailed, i)
		}
	}
	return nil
}

// AppendEntry appends filename to `const images = [...];` in doc.
func AppendEntry(doc, filename string) (string, error) {
	return Default().AppendEntry(doc, filename)
}

// ValidateFilename accepts bare file names only.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidFilename, name)
	case strings.ContainsRune(name, 0):
		return fmt.Errorf("%w: %q contains a NUL byte", ErrInvalidFilename, name)
	case !utf8.ValidString(name):
		return fmt.Errorf("%w: %q is not valid UTF-8", ErrInvalidFilename, name)
	}
	return nil
}

// Duplicates returns names listed more than once, in first-repeat order.
func Duplicates(entries []string) []string {
	seen := make(map[string]int, len(entries))
	var dups []string
	for _, e := range entries {
		k := norm.NFC.String(e)
		seen[k]++
		if seen[k] == 2 {
			dups = append(dups, e)
		}
	}
	return dups
}
