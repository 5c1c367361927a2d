package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gardener/internal/domain"
)

// testGetter is a Getter over a plain client, without login.
type testGetter struct {
	base  string
	calls atomic.Int32
}

func (g *testGetter) Get(ctx context.Context, path string, query url.Values) (*http.Response, error) {
	g.calls.Add(1)
	u := g.base + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &url.Error{Op: "Get", URL: u, Err: io.ErrUnexpectedEOF}
	}
	return resp, nil
}

func newTestReader(t *testing.T, handler http.Handler) (*Reader, *testGetter) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	getter := &testGetter{base: server.URL}
	return New(getter, slog.New(slog.NewTextHandler(io.Discard, nil))), getter
}

func fixtureHandler(t *testing.T) http.Handler {
	t.Helper()
	page, err := os.ReadFile("testdata/torrents.html")
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/torrents.php", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(page)
	})
	mux.HandleFunc("/download.php", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("id") {
		case "1001":
			w.Header().Set("Content-Disposition", "attachment; filename=%5BSweetSub%5D%20Show%20-%2001.torrent")
			io.WriteString(w, "d8:announce")
		case "1002":
			w.Header().Set("Content-Disposition", `attachment; filename="%E5%9C%B0%E7%90%83.torrent"`)
			io.WriteString(w, "d4:info")
		default:
			io.WriteString(w, "no disposition")
		}
	})
	return mux
}

func TestParseListing_Golden(t *testing.T) {
	f, err := os.Open("testdata/torrents.html")
	require.NoError(t, err)
	defer f.Close()

	listings, err := ParseListing(f)
	require.NoError(t, err)

	data, err := json.MarshalIndent(listings, "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "listing", append(data, '\n'))
}

func TestParseListing_NormalizesTitles(t *testing.T) {
	page := "<table><tr><td class=\"embedded\"><a title=\" Cafe\u0301 Live \" href=\"details.php?id=7&hit=1\">x</a></td></tr></table>"

	listings, err := ParseListing(strings.NewReader(page))
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, domain.Listing{ExternalID: "7", Title: "Caf\u00e9 Live"}, listings[0])
}

func TestParseListing_Empty(t *testing.T) {
	listings, err := ParseListing(strings.NewReader("<html><body>nothing here</body></html>"))
	require.NoError(t, err)
	assert.Empty(t, listings)
}

func TestParseRatio(t *testing.T) {
	f, err := os.Open("testdata/torrents.html")
	require.NoError(t, err)
	defer f.Close()

	summary, err := ParseRatio(f)
	require.NoError(t, err)
	assert.Equal(t, "1.25 TB", summary.Uploaded)
	assert.Equal(t, "512.00 GB", summary.Downloaded)
	assert.Equal(t, []string{"分享率：", "2.500", "上传量：", "1.25 TB", "下载量：", "512.00 GB"}, summary.Fields)
}

func TestParseRatio_FallsBackToPosition(t *testing.T) {
	page := `<div id="usermsglink"><span>hi</span><span><b>10 GB</b> <i>2 GB</i></span></div>`

	summary, err := ParseRatio(strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, "10 GB", summary.Uploaded)
	assert.Equal(t, "2 GB", summary.Downloaded)

	_, err = ParseRatio(strings.NewReader("<html></html>"))
	assert.Error(t, err)
}

func TestReader_ListCurrent(t *testing.T) {
	reader, _ := newTestReader(t, fixtureHandler(t))

	listings, err := reader.ListCurrent(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 3)
	assert.Equal(t, "1001", listings[0].ExternalID)
	assert.Equal(t, "1005", listings[2].ExternalID)
}

func TestReader_ListCurrent_Unavailable(t *testing.T) {
	reader, _ := newTestReader(t, http.NotFoundHandler())

	_, err := reader.ListCurrent(context.Background())
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestReader_RatioSummary(t *testing.T) {
	reader, _ := newTestReader(t, fixtureHandler(t))

	summary, err := reader.RatioSummary(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.25 TB", summary.Uploaded)
}

func TestReader_FetchPayload(t *testing.T) {
	reader, _ := newTestReader(t, fixtureHandler(t))
	ctx := context.Background()

	payload, err := reader.FetchPayload(ctx, "1001")
	require.NoError(t, err)
	assert.Equal(t, "[SweetSub] Show - 01.torrent", payload.Filename)
	assert.Equal(t, []byte("d8:announce"), payload.Body)

	payload, err = reader.FetchPayload(ctx, "1002")
	require.NoError(t, err)
	assert.Equal(t, "地球.torrent", payload.Filename)

	_, err = reader.FetchPayload(ctx, "9999")
	assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
}

func TestPayloadFilename(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"attachment; filename=a%20b.torrent", "a b.torrent", true},
		{`attachment; filename="quoted.torrent"`, "quoted.torrent", true},
		{"attachment; filename=a+b.torrent", "a+b.torrent", true},
		{`attachment; filename="a.torrent"; size=12`, "a.torrent", true},
		{"attachment; filename*=UTF-8''%E5%9C%B0%E7%90%83.torrent", "地球.torrent", true},
		{`attachment; filename="a.torrent"; filename*=UTF-8''b.torrent`, "b.torrent", true},
		{"attachment; filename=[Sub] Show - 01.torrent", "[Sub] Show - 01.torrent", true},
		{"attachment; filename=[Sub] a.torrent; size=3", "[Sub] a.torrent", true},
		{"attachment", "", false},
		{"attachment; filename=%zz", "", false},
	}
	for _, tt := range tests {
		got, err := payloadFilename(tt.header)
		if !tt.ok {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}
