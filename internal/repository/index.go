package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"

	"golang.org/x/net/html"

	"github.com/pipg-project/pipg/internal/prepare"
	"github.com/pipg-project/pipg/internal/resolver"
)

// Option configures an IndexRepository.
type Option func(*IndexRepository)

// WithHTTPClient sets the HTTP client used for index requests.
func WithHTTPClient(c *http.Client) Option {
	return func(r *IndexRepository) {
		if c != nil {
			r.httpClient = c
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *IndexRepository) {
		if l != nil {
			r.logger = l
		}
	}
}

// IndexRepository reads candidates from a PEP 503 simple index, preferring
// the PEP 691 JSON representation when the server advertises it via the
// Accept header and falling back to HTML link scraping.
type IndexRepository struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ Repository = (*IndexRepository)(nil)

// NewIndexRepository creates a repository reading from baseURL (e.g.
// "https://pypi.org/simple").
func NewIndexRepository(baseURL string, opts ...Option) *IndexRepository {
	r := &IndexRepository{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{},
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// simpleIndexJSON is the PEP 691 "project detail" response shape.
type simpleIndexJSON struct {
	Name  string `json:"name"`
	Files []struct {
		Filename       string            `json:"filename"`
		URL            string            `json:"url"`
		Hashes         map[string]string `json:"hashes"`
		RequiresPython string            `json:"requires-python"`
		Yanked         any               `json:"yanked"`
	} `json:"files"`
}

// FindCandidates fetches the simple-index page for name and parses every
// linked file into a Candidate.
func (r *IndexRepository) FindCandidates(ctx context.Context, name string) ([]resolver.Candidate, error) {
	normalized := resolver.NormalizeName(name)
	indexURL := fmt.Sprintf("%s/%s/", r.baseURL, normalized)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", indexURL, err)
	}

	req.Header.Set("Accept", "application/vnd.pypi.simple.v1+json, text/html;q=0.5")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching index for %s: %w", normalized, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("package %s not found on index", normalized)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching index for %s", resp.StatusCode, normalized)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "application/vnd.pypi.simple.v1+json") {
		var doc simpleIndexJSON

		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, fmt.Errorf("decoding PEP 691 index for %s: %w", normalized, err)
		}

		return candidatesFromJSON(normalized, doc), nil
	}

	links, err := parseSimpleIndexHTML(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing simple index HTML for %s: %w", normalized, err)
	}

	return candidatesFromLinks(normalized, indexURL, links)
}

func candidatesFromJSON(name string, doc simpleIndexJSON) []resolver.Candidate {
	candidates := make([]resolver.Candidate, 0, len(doc.Files))

	for _, f := range doc.Files {
		_, version, _, err := parseArtifactName(f.Filename)
		if err != nil {
			continue
		}

		candidates = append(candidates, resolver.Candidate{
			Name:           name,
			Version:        version,
			RequiresPython: f.RequiresPython,
			Link:           f.URL,
			IsWheel:        strings.HasSuffix(f.Filename, ".whl"),
			Yanked:         f.Yanked != nil && f.Yanked != false,
			Hashes:         f.Hashes,
		})
	}

	return candidates
}

// simpleIndexLink is one <a href> entry from a PEP 503 HTML index page.
type simpleIndexLink struct {
	href           string
	requiresPython string
	yanked         bool
	yankedReason   string
}

func parseSimpleIndexHTML(body io.Reader) ([]simpleIndexLink, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	var links []simpleIndexLink

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			link := simpleIndexLink{}

			for _, attr := range n.Attr {
				switch attr.Key {
				case "href":
					link.href = attr.Val
				case "data-requires-python":
					link.requiresPython = attr.Val
				case "data-yanked":
					link.yanked = true
					link.yankedReason = attr.Val
				}
			}

			if link.href != "" {
				links = append(links, link)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	return links, nil
}

func candidatesFromLinks(name, baseURL string, links []simpleIndexLink) ([]resolver.Candidate, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL %s: %w", baseURL, err)
	}

	candidates := make([]resolver.Candidate, 0, len(links))

	for _, link := range links {
		ref, err := url.Parse(link.href)
		if err != nil {
			continue
		}

		resolved := base.ResolveReference(ref)
		filename := path.Base(resolved.Path)

		// Strip a #sha256=... or #egg=... fragment before parsing the filename.
		filename = strings.SplitN(filename, "#", 2)[0]

		_, version, _, err := parseArtifactName(filename)
		if err != nil {
			continue
		}

		fragment := resolved.Fragment
		resolved.Fragment = ""

		candidates = append(candidates, resolver.Candidate{
			Name:           name,
			Version:        version,
			RequiresPython: link.requiresPython,
			Link:           resolved.String(),
			IsWheel:        strings.HasSuffix(filename, ".whl"),
			Yanked:         link.yanked,
			YankedReason:   link.yankedReason,
			Hashes:         hashesFromFragment(fragment),
		})
	}

	return candidates, nil
}

func hashesFromFragment(fragment string) map[string]string {
	if !strings.Contains(fragment, "=") {
		return nil
	}

	parts := strings.SplitN(fragment, "=", 2)
	if len(parts) != 2 {
		return nil
	}

	return map[string]string{parts[0]: parts[1]}
}

// parseArtifactName extracts name/version from either a wheel filename
// ({name}-{version}-{python}-{abi}-{platform}.whl) or an sdist filename
// ({name}-{version}.tar.gz / .zip).
func parseArtifactName(filename string) (name, version, ext string, err error) {
	switch {
	case strings.HasSuffix(filename, ".whl"):
		base := strings.TrimSuffix(filename, ".whl")
		parts := strings.Split(base, "-")

		if len(parts) < 5 {
			return "", "", "", fmt.Errorf("invalid wheel filename %q", filename)
		}

		return parts[0], parts[1], "whl", nil
	case strings.HasSuffix(filename, ".tar.gz"):
		return parseSdistName(strings.TrimSuffix(filename, ".tar.gz"), filename, "tar.gz")
	case strings.HasSuffix(filename, ".zip"):
		return parseSdistName(strings.TrimSuffix(filename, ".zip"), filename, "zip")
	default:
		return "", "", "", fmt.Errorf("unrecognized artifact filename %q", filename)
	}
}

func parseSdistName(base, filename, ext string) (name, version, outExt string, err error) {
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return "", "", "", fmt.Errorf("invalid sdist filename %q", filename)
	}

	return base[:idx], base[idx+1:], ext, nil
}

// GetDependencies implements the "fall back to preparing the candidate"
// source from spec.md §4.5: for a wheel, the METADATA file is read directly
// out of the downloaded archive without invoking a build backend. A source
// distribution needs PEP 517 build-backend invocation (internal/prepare),
// which this repository-layer fast path deliberately does not perform;
// callers chain through a metadata cache or a JSON-augmented index first and
// only reach here as a last resort (spec.md §4.4).
func (r *IndexRepository) GetDependencies(ctx context.Context, candidate resolver.Candidate) ([]resolver.Requirement, resolver.PythonSpecSet, string, error) {
	universal := resolver.UniversalPythonSpecSet()

	if candidate.Link == "" {
		return nil, universal, "", fmt.Errorf("%w: %s %s has no download link", ErrCandidateInfoNotFound, candidate.Name, candidate.Version)
	}

	if !candidate.IsWheel {
		return nil, universal, "", fmt.Errorf("%w: %s %s is a source distribution; building it requires internal/prepare", ErrCandidateInfoNotFound, candidate.Name, candidate.Version)
	}

	wheelPath, cleanup, err := fetchToTemp(ctx, r.httpClient, candidate.Link)
	if err != nil {
		return nil, universal, "", fmt.Errorf("downloading %s %s: %w", candidate.Name, candidate.Version, err)
	}
	defer cleanup()

	meta, err := prepare.ExtractWheelMetadata(wheelPath)
	if err != nil {
		return nil, universal, "", fmt.Errorf("extracting metadata for %s %s: %w", candidate.Name, candidate.Version, err)
	}

	pyspec := universal

	if meta.RequiresPython != "" {
		pyspec, err = resolver.ParsePythonSpecSet(meta.RequiresPython)
		if err != nil {
			r.logger.Warn("ignoring unparsable requires-python", slog.String("package", candidate.Name), slog.String("requires_python", meta.RequiresPython))
			pyspec = universal
		}
	}

	deps := make([]resolver.Requirement, 0, len(meta.RequiresDist))
	for _, raw := range meta.RequiresDist {
		deps = append(deps, resolver.ParseRequirement(raw))
	}

	return deps, pyspec, meta.Summary, nil
}

// fetchToTemp downloads url into a temp file and returns its path plus a
// cleanup func that removes it; the caller owns the returned file.
func fetchToTemp(ctx context.Context, client *http.Client, url string) (string, func(), error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", nil, fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	f, err := os.CreateTemp("", "pipg-artifact-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())

		return "", nil, fmt.Errorf("writing %s to temp file: %w", url, err)
	}

	path := f.Name()

	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return "", nil, fmt.Errorf("closing temp file for %s: %w", url, err)
	}

	return path, func() { _ = os.Remove(path) }, nil
}
