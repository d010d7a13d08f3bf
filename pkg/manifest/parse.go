package manifest

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// parseEntries reads a comma separated list of quoted string literals.
// A trailing comma and JS comments are accepted.
func parseEntries(body string) ([]string, error) {
	var out []string
	s := body
	expectValue := true
	for {
		var err error
		if s, err = skipSpaceAndComments(s); err != nil {
			return nil, err
		}
		if s == "" {
			break
		}
		if !expectValue {
			if s[0] != ',' {
				return nil, fmt.Errorf("%w: expected ',' near %q", ErrMalformedBody, excerpt(s))
			}
			s = s[1:]
			expectValue = true
			continue
		}
		lit, rest, err := readStringLiteral(s)
		if err != nil {
			return nil, err
		}
		out = append(out, lit)
		s = rest
		expectValue = false
	}
	return out, nil
}

func skipSpaceAndComments(s string) (string, error) {
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		switch {
		case strings.HasPrefix(s, "//"):
			i := strings.IndexByte(s, '\n')
			if i < 0 {
				return "", nil
			}
			s = s[i+1:]
		case strings.HasPrefix(s, "/*"):
			i := strings.Index(s[2:], "*/")
			if i < 0 {
				return "", fmt.Errorf("%w: unterminated comment", ErrMalformedBody)
			}
			s = s[i+4:]
		default:
			return s, nil
		}
	}
}

func readStringLiteral(s string) (string, string, error) {
	quote := s[0]
	if quote != '"' && quote != '\'' {
		return "", "", fmt.Errorf("%w: expected string literal near %q", ErrMalformedBody, excerpt(s))
	}
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '\n':
			return "", "", fmt.Errorf("%w: newline in string literal", ErrMalformedBody)
		case quote:
			v, err := unescapeJS(s[1:i])
			if err != nil {
				return "", "", err
			}
			return v, s[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("%w: unterminated string literal", ErrMalformedBody)
}

func unescapeJS(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(s) {
			return "", fmt.Errorf("%w: dangling escape", ErrMalformedBody)
		}
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case 'x', 'u':
			n := 2
			if s[i] == 'u' {
				n = 4
			}
			if i+1+n > len(s) {
				return "", fmt.Errorf("%w: short \\%c escape", ErrMalformedBody, s[i])
			}
			r, err := strconv.ParseUint(s[i+1:i+1+n], 16, 32)
			if err != nil {
				return "", fmt.Errorf("%w: bad \\%c escape", ErrMalformedBody, s[i])
			}
			b.WriteRune(rune(r))
			i += n
		default:
			// \\ \" \' \/ and unknown escapes yield the character itself.
			r, size := utf8.DecodeRuneInString(s[i:])
			b.WriteRune(r)
			i += size - 1
		}
	}
	return b.String(), nil
}

func excerpt(s string) string {
	if len(s) > 20 {
		return s[:20] + "..."
	}
	return s
}
