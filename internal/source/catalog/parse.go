package catalog

import (
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/unicode/norm"

	"gardener/internal/domain"
)

var detailsIDRe = regexp.MustCompile(`^details\.php\?id=(\d+)(?:&|$)`)

// ParseListing extracts every torrent entry from the listing page. An entry
// is a td whose only class is "embedded", holding exactly one link to a
// details page.
func ParseListing(r io.Reader) ([]domain.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var listings []domain.Listing
	doc.Find("td").Each(func(_ int, td *goquery.Selection) {
		class, _ := td.Attr("class")
		if fields := strings.Fields(class); len(fields) != 1 || fields[0] != "embedded" {
			return
		}

		links := td.Find("a")
		if links.Length() != 1 {
			return
		}
		href, _ := links.Attr("href")
		m := detailsIDRe.FindStringSubmatch(href)
		if m == nil {
			return
		}

		title, ok := links.Attr("title")
		if !ok {
			title = links.Text()
		}

		listings = append(listings, domain.Listing{
			ExternalID: m[1],
			Title:      norm.NFC.String(strings.TrimSpace(title)),
		})
	})

	return listings, nil
}

var (
	uploadedLabels   = []string{"上传", "Uploaded"}
	downloadedLabels = []string{"下载", "Downloaded"}
)

// ParseRatio reads the transfer statistics from the user message bar.
func ParseRatio(r io.Reader) (domain.RatioSummary, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return domain.RatioSummary{}, fmt.Errorf("parse ratio: %w", err)
	}

	spans := doc.Find("#usermsglink").Find("span")
	if spans.Length() < 2 {
		return domain.RatioSummary{}, fmt.Errorf("parse ratio: user message bar not found")
	}

	fields := strippedStrings(spans.Get(1))
	summary := domain.RatioSummary{
		Uploaded:   valueAfter(fields, uploadedLabels),
		Downloaded: valueAfter(fields, downloadedLabels),
		Fields:     fields,
	}
	if summary.Uploaded == "" && summary.Downloaded == "" && len(fields) >= 2 {
		summary.Uploaded, summary.Downloaded = fields[0], fields[1]
	}
	return summary, nil
}

func strippedStrings(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				out = append(out, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func valueAfter(fields []string, labels []string) string {
	for i := 0; i < len(fields)-1; i++ {
		for _, label := range labels {
			if strings.Contains(fields[i], label) {
				return fields[i+1]
			}
		}
	}
	return ""
}
