package fetcher

import (
	"bytes"
	"context"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"github.com/markdave123-py/coursemate/internal/core"
)

var (
	drivePathID  = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)
	driveQueryID = regexp.MustCompile(`[?&]id=([A-Za-z0-9_-]+)`)
)

// DriveFileID extracts the file id from a Google Drive share link.
func DriveFileID(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host != "drive.google.com" && host != "docs.google.com" && host != "drive.usercontent.google.com" {
		return "", false
	}
	if m := drivePathID.FindStringSubmatch(u.Path); m != nil {
		return m[1], true
	}
	if m := driveQueryID.FindStringSubmatch("?" + u.RawQuery); m != nil {
		return m[1], true
	}
	return "", false
}

func (f *Fetcher) fetchDrive(ctx context.Context, id string) (core.RawDocument, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return core.RawDocument{}, err
	}
	client := *f.client
	client.Jar = jar

	first := f.driveURL + "?export=download&id=" + url.QueryEscape(id)
	resp, body, err := f.get(ctx, &client, first)
	if err != nil {
		return core.RawDocument{}, err
	}

	if isInterstitial(resp, body) {
		next := confirmURL(first, body, jar)
		f.log.Info("drive confirmation page, resubmitting", "file_id", id)
		resp, body, err = f.get(ctx, &client, next)
		if err != nil {
			return core.RawDocument{}, err
		}
		if isInterstitial(resp, body) {
			return core.RawDocument{}, core.ErrConfirmationUnresolved
		}
	}

	doc, err := f.document(resp, body)
	if err != nil {
		return core.RawDocument{}, err
	}
	doc.SourceID = "drive_" + id
	return doc, nil
}

// isInterstitial reports whether Drive answered with the large-file warning
// page instead of the file.
func isInterstitial(resp *http.Response, body []byte) bool {
	if !strings.HasPrefix(strings.ToLower(resp.Header.Get("Content-Type")), "text/html") {
		return false
	}
	return bytes.Contains(body, []byte("download-form")) ||
		bytes.Contains(body, []byte("confirm=")) ||
		strings.Contains(resp.Request.URL.RawQuery, "confirm=")
}

// confirmURL builds the single resubmission: the form on the page, then the
// download_warning cookie, then a bare confirm=t.
func confirmURL(first string, body []byte, jar http.CookieJar) string {
	if action, ok := downloadForm(first, body); ok {
		return action
	}
	if u, err := url.Parse(first); err == nil {
		for _, c := range jar.Cookies(u) {
			if strings.HasPrefix(c.Name, "download_warning") {
				return first + "&confirm=" + url.QueryEscape(c.Value)
			}
		}
	}
	return first + "&confirm=t"
}

// downloadForm resolves the interstitial's download-form into a GET URL.
func downloadForm(base string, body []byte) (string, bool) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	form := findNode(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.Data == "form" && attr(n, "id") == "download-form"
	})
	if form == nil {
		return "", false
	}

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	action, err := baseURL.Parse(attr(form, "action"))
	if err != nil {
		return "", false
	}

	q := action.Query()
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "input" && attr(n, "type") == "hidden" {
			if name := attr(n, "name"); name != "" {
				q.Set(name, attr(n, "value"))
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(form)
	action.RawQuery = q.Encode()
	return action.String(), true
}

func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
