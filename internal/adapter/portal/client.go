package portal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/couchcryptid/crash-data-etl/internal/domain"
)

// archiveLinkClass is the class attribute of the download buttons on the index page.
const archiveLinkClass = "btn btn-sm btn-primary"

// requestHeaders is sent with every request. The portal rejects requests that
// do not look like they come from a browser.
var requestHeaders = map[string]string{
	"User-Agent":                "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:82.0) Gecko/20100101 Firefox/82.0",
	"Accept":                    "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
	"Accept-Language":           "en-US,en;q=0.5",
	"Connection":                "keep-alive",
	"Upgrade-Insecure-Requests": "1",
}

// Client discovers and fetches accident archives from the IZV portal.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	logger     *slog.Logger
}

// NewClient creates a portal client rooted at the index page URL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse source url: %w", err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: u,
		logger:  logger,
	}, nil
}

// Discover fetches the index page and returns the archives to ingest, in
// listing order. See domain.SelectArchives for the selection rules.
func (c *Client) Discover(ctx context.Context) ([]domain.ArchiveRef, error) {
	resp, err := c.get(ctx, c.baseURL.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	hrefs, err := archiveLinks(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse index page: %w", domain.ErrNetwork, err)
	}

	refs := domain.SelectArchives(hrefs)
	c.logger.Debug("archives discovered", "links", len(hrefs), "selected", len(refs))
	return refs, nil
}

// Fetch streams the archive's bytes into w.
func (c *Client) Fetch(ctx context.Context, ref domain.ArchiveRef, w io.Writer) error {
	target, err := c.baseURL.Parse(ref.Href)
	if err != nil {
		return fmt.Errorf("resolve archive url %q: %w", ref.Href, err)
	}

	resp, err := c.get(ctx, target.String())
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("%w: read archive %s: %w", domain.ErrNetwork, ref.Name, err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, fullURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, v := range requestHeaders {
		req.Header.Set(k, v)
	}
	req.Header.Set("Referer", c.baseURL.String())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", domain.ErrNetwork, fullURL, err)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: get %s: status %d: %s", domain.ErrNetwork, fullURL, resp.StatusCode, body)
	}
	return resp, nil
}

// archiveLinks returns the href of every download button, in document order.
func archiveLinks(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var hrefs []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if href, ok := archiveHref(n); ok {
				hrefs = append(hrefs, href)
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)
	return hrefs, nil
}

func archiveHref(n *html.Node) (string, bool) {
	var href, class string
	for _, a := range n.Attr {
		switch a.Key {
		case "href":
			href = a.Val
		case "class":
			class = strings.Join(strings.Fields(a.Val), " ")
		}
	}
	if class != archiveLinkClass || href == "" {
		return "", false
	}
	return href, true
}
