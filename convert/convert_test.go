package convert

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "markserve/http"
)

const articleHTML = `<!DOCTYPE html>
<html>
<head><title>Gardening Basics</title></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Gardening Basics</h1>
<p>Tomatoes need at least six hours of direct sunlight every day to produce a good harvest, and they prefer soil that drains well after heavy rain.</p>
<p>Water deeply but infrequently so the roots grow down instead of staying near the surface, which makes the plants far more tolerant of hot spells in midsummer.</p>
<p>Mulching with straw keeps moisture in the ground, suppresses weeds and stops soil from splashing onto the lower leaves where it can spread disease.</p>
<p>Rotate crops every season so pests that overwinter in the soil do not find the same host waiting for them, and feed the beds with compost each autumn.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func newTestConverter(t *testing.T) *Local {
	t.Helper()
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = 5 * time.Second
	cfg.Retry.MaxRetries = 0
	client := httpclient.New(cfg)
	t.Cleanup(func() { client.Close() })
	return NewLocal(client)
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestIsURL(t *testing.T) {
	assert.True(t, IsURL("https://example.com/a"))
	assert.True(t, IsURL("http://example.com"))
	assert.False(t, IsURL("ftp://example.com/file"))
	assert.False(t, IsURL("/tmp/notes.txt"))
	assert.False(t, IsURL("notes.txt"))
	assert.False(t, IsURL("https://"))
}

func TestConvertURLArticle(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(articleHTML))
	}))
	defer server.Close()

	res, err := newTestConverter(t).Convert(context.Background(), server.URL+"/garden")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "six hours of direct sunlight")
	assert.Contains(t, res.Markdown, "six hours of direct sunlight")
	assert.NotContains(t, res.Markdown, "<p>")
	assert.Equal(t, "Gardening Basics", res.Title)
	assert.NoError(t, ValidateURLContent(res.Text))
}

func TestConvertURLPlainText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("just some notes"))
	}))
	defer server.Close()

	res, err := newTestConverter(t).Convert(context.Background(), server.URL+"/notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "just some notes", res.Text)
	assert.Equal(t, "notes.txt", res.Title)
}

func TestConvertURLUnsupported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte{0x00, 0x01, 0x02})
	}))
	defer server.Close()

	_, err := newTestConverter(t).Convert(context.Background(), server.URL+"/blob")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	var convErr *ConversionError
	require.ErrorAs(t, err, &convErr)
	assert.Equal(t, server.URL+"/blob", convErr.Source)
}

func TestConvertURLNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := newTestConverter(t).Convert(context.Background(), server.URL+"/missing")
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, httpclient.StatusCode(err))
}

func TestConvertFiles(t *testing.T) {
	c := newTestConverter(t)
	ctx := context.Background()

	t.Run("text", func(t *testing.T) {
		res, err := c.Convert(ctx, writeFile(t, "notes.txt", "\ufeffline one\nline two"))
		require.NoError(t, err)
		assert.Equal(t, "line one\nline two", res.Text)
		assert.Equal(t, res.Text, res.Markdown)
		assert.Equal(t, "notes.txt", res.Title)
	})

	t.Run("markdown", func(t *testing.T) {
		res, err := c.Convert(ctx, writeFile(t, "README.MD", "# Title\n\nBody"))
		require.NoError(t, err)
		assert.Equal(t, "# Title\n\nBody", res.Markdown)
	})

	t.Run("csv", func(t *testing.T) {
		res, err := c.Convert(ctx, writeFile(t, "plants.csv", "name,water\ntomato,daily\nbasil|mint,weekly\n"))
		require.NoError(t, err)
		want := "| name | water |\n| --- | --- |\n| tomato | daily |\n| basil\\|mint | weekly |"
		assert.Equal(t, want, res.Markdown)
		assert.Equal(t, "plants.csv", res.Title)
	})

	t.Run("html", func(t *testing.T) {
		res, err := c.Convert(ctx, writeFile(t, "garden.html", articleHTML))
		require.NoError(t, err)
		assert.Equal(t, "Gardening Basics", res.Title)
		assert.Contains(t, res.Text, "Mulching with straw")
	})

	t.Run("needs external converter", func(t *testing.T) {
		_, err := c.Convert(ctx, writeFile(t, "report.pdf", "%PDF-1.4"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("unknown extension", func(t *testing.T) {
		_, err := c.Convert(ctx, writeFile(t, "program.exe", "MZ"))
		assert.ErrorIs(t, err, ErrUnsupportedFormat)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := c.Convert(ctx, filepath.Join(t.TempDir(), "gone.txt"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("empty source", func(t *testing.T) {
		_, err := c.Convert(ctx, "  ")
		assert.ErrorIs(t, err, ErrEmptySource)
	})
}

func TestConvertCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestConverter(t).Convert(ctx, "notes.txt")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTMLText(t *testing.T) {
	body := []byte(`<html><head><title>T</title><style>p{}</style></head>
<body><script>var x = 1;</script><h1>Heading</h1><p>First   paragraph.</p><ul><li>one</li><li>two</li></ul></body></html>`)
	assert.Equal(t, "Heading\nFirst paragraph.\none\ntwo", htmlText(body))
	assert.Equal(t, "T", htmlTitle(body))
}

func TestValidateURLContent(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{"empty", "", ErrNoContent},
		{"whitespace", "   \n\t ", ErrNoContent},
		{"short", "  too short", ErrNoContent},
		{"ten chars", " tencharsxx ", nil},
		{"nine accented chars", "ééééééééé", ErrNoContent},
		{"ten accented chars", "éééééééééé", nil},
		{"parser error", "XML error: no element found at line 1", ErrErrorPage},
		{"fetch error", "Attempt 3 of fetching the page FAILED", ErrErrorPage},
		{"only attempt", "We attempt to explain gardening here.", nil},
		{"document", "A perfectly ordinary document body.", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateURLContent(tt.text)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

type stubConverter struct {
	fail map[string]bool
}

func (s stubConverter) Convert(ctx context.Context, source string) (*Result, error) {
	if s.fail[source] {
		return nil, errors.New("boom")
	}
	return &Result{Text: strings.ToUpper(source)}, nil
}

func TestConvertBatch(t *testing.T) {
	items := []BatchItem{
		{Name: "a.txt", Source: "a"},
		{Name: "b.txt", Source: "b"},
		{Name: "c.txt", Source: "c"},
	}
	results := ConvertBatch(context.Background(), stubConverter{fail: map[string]bool{"b": true}}, items)
	require.Len(t, results, 3)
	assert.Equal(t, "A", results[0].Result.Text)
	assert.EqualError(t, results[1].Err, "boom")
	assert.Nil(t, results[1].Result)
	assert.Equal(t, "c.txt", results[2].Name)
	assert.Equal(t, "C", results[2].Result.Text)
}

func TestConvertBatchCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	results := ConvertBatch(ctx, stubConverter{}, []BatchItem{{Name: "a", Source: "a"}})
	require.Len(t, results, 1)
	assert.ErrorIs(t, results[0].Err, context.Canceled)
}

func TestFormats(t *testing.T) {
	names := FormatNames()
	assert.Len(t, names, len(SupportedFormats))
	assert.Contains(t, names, "docx")
	assert.True(t, IsSupported("Report.PDF"))
	assert.False(t, IsSupported("binary.exe"))
	for category, exts := range Categories {
		if category == "youtube" {
			continue
		}
		for _, ext := range exts {
			assert.Contains(t, SupportedFormats, ext, "category %s", category)
		}
	}
}
