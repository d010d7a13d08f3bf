package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const page = `<!DOCTYPE html>
<html>
  <body>
    <div id="gallery"></div>
    <script>
    const images = [
      "a.jpg"
    ];
    render(images);
    </script>
  </body>
</html>
`

func TestAppendEntry_PreservesLayout(t *testing.T) {
	got, err := AppendEntry(page, "b.jpg")
	require.NoError(t, err)

	want := strings.Replace(page,
		"const images = [\n      \"a.jpg\"\n    ];",
		"const images = [\n      \"a.jpg\",\n      \"b.jpg\"\n    ];", 1)
	assert.Equal(t, want, got)
}

func TestAppendEntry_EmptyList(t *testing.T) {
	got, err := AppendEntry("const images = [];", "first.jpg")
	require.NoError(t, err)
	assert.Equal(t, "const images = [\n      \"first.jpg\"\n];", got)

	entries, err := Default().Entries(got)
	require.NoError(t, err)
	assert.Equal(t, []string{"first.jpg"}, entries)
}

func TestAppendEntry_Cases(t *testing.T) {
	tests := []struct {
		name     string
		doc      string
		filename string
		want     string
	}{
		{
			name:     "indented empty list closes at declaration indent",
			doc:      "  <script>\n    const images = [];\n  </script>",
			filename: "x.png",
			want:     "  <script>\n    const images = [\n      \"x.png\"\n    ];\n  </script>",
		},
		{
			name:     "empty multi-line list keeps closing indent",
			doc:      "const images = [\n  ];",
			filename: "x.png",
			want:     "const images = [\n      \"x.png\"\n  ];",
		},
		{
			name:     "trailing comma is not doubled",
			doc:      "const images = [\n  \"a.jpg\",\n];",
			filename: "b.jpg",
			want:     "const images = [\n  \"a.jpg\",\n  \"b.jpg\"\n];",
		},
		{
			name:     "single line list uses configured indent",
			doc:      `const images = ["a.jpg", "b.jpg"];`,
			filename: "c.jpg",
			want:     "const images = [\"a.jpg\", \"b.jpg\",\n      \"c.jpg\"];",
		},
		{
			name:     "whitespace between tokens is tolerated and kept",
			doc:      "const   images=[ ]  ;",
			filename: "x.png",
			want:     "const   images=[\n      \"x.png\"\n]  ;",
		},
		{
			name:     "tab indented entries",
			doc:      "const images = [\n\t\t'a.jpg'\n\t];",
			filename: "b.jpg",
			want:     "const images = [\n\t\t'a.jpg',\n\t\t\"b.jpg\"\n\t];",
		},
		{
			name:     "quotes in filenames are escaped",
			doc:      "const images = [];",
			filename: `say "hi".jpg`,
			want:     "const images = [\n      \"say \\\"hi\\\".jpg\"\n];",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AppendEntry(tt.doc, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.NoError(t, Default().Verify(tt.doc, got, tt.filename))
		})
	}
}

func TestAppendEntry_TwiceKeepsOrderAndSingleComma(t *testing.T) {
	p := Default()
	doc := "const images = [];"

	doc, err := p.AppendEntry(doc, "f1.jpg")
	require.NoError(t, err)
	doc, err = p.AppendEntry(doc, "f2.jpg")
	require.NoError(t, err)

	entries, err := p.Entries(doc)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1.jpg", "f2.jpg"}, entries)

	span, err := p.Locate(doc)
	require.NoError(t, err)
	body := span.Body(doc)
	assert.Equal(t, 1, strings.Count(body, ","))
	assert.False(t, strings.HasSuffix(strings.TrimSpace(body), ","), "no dangling comma before ]")
}

func TestAppendEntry_OutsideBytesUnchanged(t *testing.T) {
	p := Default()
	got, err := p.AppendEntry(page, "z.webp")
	require.NoError(t, err)

	before, err := p.Locate(page)
	require.NoError(t, err)
	after, err := p.Locate(got)
	require.NoError(t, err)

	assert.Equal(t, page[:before.BodyStart], got[:after.BodyStart])
	assert.Equal(t, page[before.BodyEnd:], got[after.BodyEnd:])
}

func TestAppendEntry_FirstMatchOnly(t *testing.T) {
	doc := "const images = [];\nconst images = [];"
	got, err := AppendEntry(doc, "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, "const images = [\n      \"a.jpg\"\n];\nconst images = [];", got)
}

func TestAppendEntry_PatternNotFound(t *testing.T) {
	for _, doc := range []string{
		"",
		"<html></html>",
		"let photos = [];",
		"const Images = [];",
		"const images = [",
		"const imagesList = [];",
		"myconst images = [];",
	} {
		got, err := AppendEntry(doc, "a.jpg")
		assert.ErrorIs(t, err, ErrPatternNotFound, "doc %q", doc)
		assert.Empty(t, got)
	}
}

func TestAppendEntry_InvalidFilename(t *testing.T) {
	for _, name := range []string{"", ".", "..", "dir/a.jpg", `dir\a.jpg`, "caf\xe9.jpg"} {
		_, err := AppendEntry("const images = [];", name)
		assert.ErrorIs(t, err, ErrInvalidFilename, "name %q", name)
	}
}

func TestAppendEntry_QuotesLikeJavaScript(t *testing.T) {
	tests := []struct {
		name    string
		literal string
	}{
		{"café.jpg", `"café.jpg"`},
		{`say "hi".jpg`, `"say \"hi\".jpg"`},
		{"tab\tbell\a.jpg", `"tab\u0009bell\u0007.jpg"`},
		{"line\u2028sep.jpg", `"line\u2028sep.jpg"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := `const images = ["a.jpg"];`
			got, err := AppendEntry(doc, tt.name)
			require.NoError(t, err)
			assert.Contains(t, got, tt.literal)
			require.NoError(t, Default().Verify(doc, got, tt.name))

			entries, err := Default().Entries(got)
			require.NoError(t, err)
			assert.Equal(t, []string{"a.jpg", tt.name}, entries)
		})
	}
}

func TestAppendEntry_KeepsCRLF(t *testing.T) {
	doc := "<script>\r\n    const images = [\r\n      \"a.jpg\"\r\n    ];\r\n</script>\r\n"
	got, err := AppendEntry(doc, "b.jpg")
	require.NoError(t, err)
	assert.Equal(t,
		"<script>\r\n    const images = [\r\n      \"a.jpg\",\r\n      \"b.jpg\"\r\n    ];\r\n</script>\r\n", got)
	assert.NotContains(t, strings.ReplaceAll(got, "\r\n", ""), "\n")

	got, err = AppendEntry("<p>\r\nconst images = [];\r\n", "b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "<p>\r\nconst images = [\r\n      \"b.jpg\"\r\n];\r\n", got)
}

func TestCustomDeclaration(t *testing.T) {
	p, err := NewPatcher(Declaration{Keyword: "var", Identifier: "photos", Indent: "  "})
	require.NoError(t, err)

	got, err := p.AppendEntry("var photos = [];", "p.jpg")
	require.NoError(t, err)
	assert.Equal(t, "var photos = [\n  \"p.jpg\"\n];", got)

	_, err = p.AppendEntry("const images = [];", "p.jpg")
	assert.ErrorIs(t, err, ErrPatternNotFound)
}

func TestNewPatcherRejectsBadDeclaration(t *testing.T) {
	_, err := NewPatcher(Declaration{Identifier: "bad name"})
	assert.Error(t, err)
	_, err = NewPatcher(Declaration{Keyword: "const;"})
	assert.Error(t, err)
	_, err = NewPatcher(Declaration{Indent: "--"})
	assert.Error(t, err)

	p, err := NewPatcher(Declaration{})
	require.NoError(t, err)
	assert.Equal(t, Declaration{Keyword: "const", Identifier: "images", Indent: DefaultIndent}, p.Declaration())
}

func TestEntries(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"empty", "", nil},
		{"double quoted", `"a.jpg", "b.jpg"`, []string{"a.jpg", "b.jpg"}},
		{"single quoted", `'a.jpg','b.jpg',`, []string{"a.jpg", "b.jpg"}},
		{"escapes", `"it\'s.jpg", "tab\there", "café.png"`, []string{"it's.jpg", "tab\there", "café.png"}},
		{"comments", "\n  // hero\n  \"a.jpg\", /* old */ \"b.jpg\"\n", []string{"a.jpg", "b.jpg"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default().Entries("const images = [" + tt.body + "];")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEntriesMalformed(t *testing.T) {
	for _, body := range []string{`foo`, `"a.jpg" "b.jpg"`, `,`, `"open`, `"a" /* x`} {
		_, err := Default().Entries("const images = [" + body + "];")
		assert.ErrorIs(t, err, ErrMalformedBody, "body %q", body)
	}
}

func TestContainsNormalizesUnicode(t *testing.T) {
	doc := "const images = [\"cafe\u0301.jpg\"];"

	ok, err := Default().Contains(doc, "caf\u00e9.jpg")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Default().Contains(doc, "cafe.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestVerifyDetectsTampering(t *testing.T) {
	p := Default()
	before := "<p>x</p>\nconst images = [\"a.jpg\"];"

	after, err := p.AppendEntry(before, "b.jpg")
	require.NoError(t, err)
	require.NoError(t, p.Verify(before, after, "b.jpg"))

	assert.ErrorIs(t, p.Verify(before, strings.Replace(after, "<p>x</p>", "<p>y</p>", 1), "b.jpg"), ErrVerifyFailed)
	assert.ErrorIs(t, p.Verify(before, after, "c.jpg"), ErrVerifyFailed)
	assert.ErrorIs(t, p.Verify(before, "nothing here", "b.jpg"), ErrVerifyFailed)
}

func TestVerifyNonLiteralBody(t *testing.T) {
	p := Default()
	before := "const images = [...legacy];"

	after, err := p.AppendEntry(before, "b.jpg")
	require.NoError(t, err)
	assert.Equal(t, "const images = [...legacy,\n      \"b.jpg\"];", after)
	assert.NoError(t, p.Verify(before, after, "b.jpg"))
}

func TestDuplicates(t *testing.T) {
	assert.Empty(t, Duplicates([]string{"a", "b"}))
	assert.Equal(t, []string{"a"}, Duplicates([]string{"a", "b", "a", "a"}))
	assert.Equal(t, []string{"cafe\u0301"}, Duplicates([]string{"caf\u00e9", "cafe\u0301"}))
}

func TestLoadAndSave(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "index.html"), []byte(page), 0o644))

	doc, err := Load(root, "index.html")
	require.NoError(t, err)
	assert.Equal(t, page, doc)

	updated, err := AppendEntry(doc, "b.jpg")
	require.NoError(t, err)
	require.NoError(t, Save(root, "index.html", updated))

	data, err := os.ReadFile(filepath.Join(root, "index.html"))
	require.NoError(t, err)
	assert.Equal(t, updated, string(data))

	_, err = Load(root, "missing.html")
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	assert.Error(t, Save(root, "../escape.html", "x"))
}
