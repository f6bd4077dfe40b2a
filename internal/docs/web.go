package docs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/chainbench/internal/provider"
)

// DefaultExportURL is the plain-text export of a shared Google Doc. {id} is
// replaced with the document id.
const DefaultExportURL = "https://docs.google.com/document/d/{id}/export?format=txt"

const maxDocumentSize = 5 << 20

// ErrReadOnly is returned by Web for every write.
var ErrReadOnly = errors.New("document provider is read-only")

// Web fetches documents over HTTP. References carrying a /d/<id> segment are
// fetched from the export URL; other http(s) URLs are fetched as given. HTML
// responses are reduced to their readable text.
type Web struct {
	ExportURL string
	UserAgent string
	Client    *http.Client
}

var _ provider.DocumentProvider = (*Web)(nil)

func NewWeb(exportURL string) *Web {
	if exportURL == "" {
		exportURL = DefaultExportURL
	}
	return &Web{
		ExportURL: exportURL,
		UserAgent: "chainbench/1.0",
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (w *Web) GetText(ctx context.Context, ref string) (string, error) {
	target, err := w.url(ref)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: failed to create request: %w", provider.ErrTransport, err)
	}
	req.Header.Set("User-Agent", w.UserAgent)

	resp, err := w.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to fetch %s: %w", provider.ErrTransport, ref, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: failed to fetch %s: status code %d", provider.ErrTransport, ref, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s: %w", provider.ErrTransport, ref, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if mediaType != "text/html" {
		return strings.TrimPrefix(string(body), "\ufeff"), nil
	}

	return readable(string(body), resp.Request.URL)
}

func (w *Web) ReplaceText(_ context.Context, ref, _ string) error {
	return fmt.Errorf("%w: %w: %s", provider.ErrTransport, ErrReadOnly, ref)
}

func (w *Web) AppendText(_ context.Context, ref, _ string) error {
	return fmt.Errorf("%w: %w: %s", provider.ErrTransport, ErrReadOnly, ref)
}

func (w *Web) url(ref string) (string, error) {
	id, err := provider.ParseRef(ref)
	if err == nil {
		return strings.ReplaceAll(w.ExportURL, "{id}", url.PathEscape(id)), nil
	}

	u, perr := url.Parse(strings.TrimSpace(ref))
	if perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return u.String(), nil
	}
	return "", err
}

// readable extracts the main text of an HTML page.
func readable(html string, pageURL *url.URL) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), pageURL)
	if err != nil {
		return "", fmt.Errorf("%w: failed to parse page: %w", provider.ErrTransport, err)
	}

	// readability leaves entities and stray markup in TextContent
	p := bluemonday.StrictPolicy()
	return strings.TrimSpace(p.Sanitize(article.TextContent)), nil
}
