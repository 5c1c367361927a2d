package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"gardener/internal/domain"
)

const (
	listingPath  = "torrents.php"
	downloadPath = "download.php"

	maxPageSize    = 8 << 20
	maxPayloadSize = 64 << 20
)

var filenameRe = regexp.MustCompile(`filename="([^"]*)"|filename=([^;]*)`)

// Getter issues authenticated requests against the catalog.
type Getter interface {
	Get(ctx context.Context, path string, query url.Values) (*http.Response, error)
}

// Reader reads the catalog listing and payloads through a session.
type Reader struct {
	session Getter
	logger  *slog.Logger
}

func New(session Getter, logger *slog.Logger) *Reader {
	return &Reader{
		session: session,
		logger:  logger.With("component", "catalog"),
	}
}

// ListCurrent returns the entries on the listing page in page order.
// An empty listing is not an error.
func (r *Reader) ListCurrent(ctx context.Context) ([]domain.Listing, error) {
	page, err := r.fetchPage(ctx, listingPath)
	if err != nil {
		return nil, err
	}

	listings, err := ParseListing(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}

	r.logger.Debug("fetched listing", "entries", len(listings))
	return listings, nil
}

// RatioSummary reads the user's transfer statistics from the listing page.
func (r *Reader) RatioSummary(ctx context.Context) (domain.RatioSummary, error) {
	page, err := r.fetchPage(ctx, listingPath)
	if err != nil {
		return domain.RatioSummary{}, err
	}

	summary, err := ParseRatio(bytes.NewReader(page))
	if err != nil {
		return domain.RatioSummary{}, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return summary, nil
}

// FetchPayload downloads the payload of an item. The filename comes from
// the Content-Disposition header, percent-decoded.
func (r *Reader) FetchPayload(ctx context.Context, externalID string) (*domain.Payload, error) {
	resp, err := r.session.Get(ctx, downloadPath, url.Values{"id": {externalID}})
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", domain.ErrCatalogUnavailable, externalID, err)
	}
	defer resp.Body.Close()

	name, err := payloadFilename(resp.Header.Get("Content-Disposition"))
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", domain.ErrCatalogUnavailable, externalID, err)
	}

	body, err := readLimited(resp.Body, maxPayloadSize)
	if err != nil {
		return nil, fmt.Errorf("%w: download %s: %w", domain.ErrCatalogUnavailable, externalID, err)
	}

	return &domain.Payload{Filename: name, Body: body}, nil
}

func (r *Reader) fetchPage(ctx context.Context, path string) ([]byte, error) {
	resp, err := r.session.Get(ctx, path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrCatalogUnavailable, path, err)
	}
	defer resp.Body.Close()

	page, err := readLimited(resp.Body, maxPageSize)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrCatalogUnavailable, path, err)
	}
	return page, nil
}

// payloadFilename extracts the artifact name from a Content-Disposition
// header. A well formed header is parsed as a media type, where an RFC 5987
// filename* wins over filename. Plain filename values are percent-decoded,
// since the catalog sends them encoded. Headers the parser rejects fall back
// to a loose match.
func payloadFilename(disposition string) (string, error) {
	if _, params, err := mime.ParseMediaType(disposition); err == nil {
		name, ok := params["filename"]
		if !ok {
			return "", fmt.Errorf("no filename in content disposition %q", disposition)
		}
		if !strings.Contains(disposition, "filename*") {
			return unescapeFilename(name)
		}
		if name == "" {
			return "", fmt.Errorf("empty filename in content disposition")
		}
		return name, nil
	}

	m := filenameRe.FindStringSubmatch(disposition)
	if m == nil {
		return "", fmt.Errorf("no filename in content disposition %q", disposition)
	}
	raw := m[1]
	if raw == "" {
		raw = strings.TrimSpace(m[2])
	}
	return unescapeFilename(raw)
}

func unescapeFilename(raw string) (string, error) {
	name, err := url.PathUnescape(raw)
	if err != nil {
		return "", fmt.Errorf("decode filename %q: %w", raw, err)
	}
	if name == "" {
		return "", fmt.Errorf("empty filename in content disposition")
	}
	return name, nil
}

func readLimited(body io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("response exceeds %d bytes", limit)
	}
	return data, nil
}
