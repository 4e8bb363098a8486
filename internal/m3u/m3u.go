// Package m3u parses extended M3U playlists into stream entries. It is the
// direct-URL fallback for event groups that are not backed by a manager
// group.
package m3u

import (
	"bufio"
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/teamarr/teamarr/internal/httpclient"
	"github.com/teamarr/teamarr/internal/safeurl"
)

const maxLineSize = 1 << 20 // 1 MiB per line

// Entry is one playlist stream.
type Entry struct {
	ID         string // stable across refetches for an unchanged URL
	Name       string // display title after the EXTINF comma
	URL        string
	TVGID      string
	TVGName    string
	GroupTitle string
	LogoURL    string
}

// Fetch downloads and parses the playlist at m3uURL. A nil client uses
// httpclient.Default().
func Fetch(ctx context.Context, m3uURL string, client *http.Client) ([]Entry, error) {
	if !safeurl.IsHTTPOrHTTPS(m3uURL) {
		return nil, fmt.Errorf("playlist url %q: scheme must be http or https", m3uURL)
	}
	if client == nil {
		client = httpclient.Default()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m3uURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Teamarr/1.0")

	release := httpclient.GlobalHostSem.Acquire(m3uURL)
	defer release()

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch playlist: status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse reads an extended M3U stream. Lines that are neither EXTINF nor a
// URL following one are skipped; a playlist with no entries is not an error.
func Parse(r io.Reader) ([]Entry, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(nil, maxLineSize)

	var entries []Entry
	var extinf string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#EXTINF:") {
			extinf = line
			continue
		}
		if extinf != "" && (strings.HasPrefix(line, "http") || strings.HasPrefix(line, "/")) {
			entries = append(entries, Entry{
				ID:         stableID(line),
				Name:       titleOf(extinf),
				URL:        line,
				TVGID:      attr(extinf, "tvg-id"),
				TVGName:    attr(extinf, "tvg-name"),
				GroupTitle: attr(extinf, "group-title"),
				LogoURL:    attr(extinf, "tvg-logo"),
			})
			extinf = ""
			continue
		}
		extinf = ""
	}
	return entries, sc.Err()
}

// titleOf returns the display title after the last EXTINF comma outside
// quoted attributes; tvg-name wins when the trailing title is empty.
func titleOf(extinf string) string {
	body := extinf
	inQuote := false
	last := -1
	for i := 0; i < len(body); i++ {
		switch body[i] {
		case '"':
			inQuote = !inQuote
		case ',':
			if !inQuote {
				last = i
			}
		}
	}
	title := ""
	if last >= 0 {
		title = strings.TrimSpace(body[last+1:])
	}
	if title == "" {
		title = attr(extinf, "tvg-name")
	}
	return title
}

// attr extracts one key="value" attribute from an EXTINF line.
func attr(extinf, key string) string {
	marker := key + `="`
	i := strings.Index(extinf, marker)
	if i < 0 {
		return ""
	}
	rest := extinf[i+len(marker):]
	j := strings.Index(rest, `"`)
	if j < 0 {
		return ""
	}
	return rest[:j]
}

func stableID(url string) string {
	h := fnv.New64a()
	h.Write([]byte(url))
	return strconv.FormatUint(h.Sum64(), 16)
}
