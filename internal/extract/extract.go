// Package extract pulls plain text out of files and URLs so any document
// can be fed into analysis: PDF via text extraction, HTML via tag
// stripping, everything else verbatim.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"
)

// maxFetchBytes caps remote downloads so a misbehaving endpoint cannot
// exhaust memory.
const maxFetchBytes = 10 << 20

// FromFile reads path and returns its plain-text content. PDF and HTML
// files are converted; anything else is treated as text.
func FromFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(data)
	case ".html", ".htm":
		return htmlText(bytes.NewReader(data))
	default:
		return string(data), nil
	}
}

// FromURL fetches url and returns its plain-text content, converting by
// Content-Type. Non-2xx responses are an error.
func FromURL(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request for %s: %w", url, err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetching %s: unexpected status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return "", fmt.Errorf("reading body of %s: %w", url, err)
	}

	ct := resp.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "application/pdf"):
		return pdfText(data)
	case strings.Contains(ct, "text/html"):
		return htmlText(bytes.NewReader(data))
	default:
		return string(data), nil
	}
}

// pdfText extracts the text of every page, skipping pages that fail to
// parse. Image-only PDFs yield an empty string.
func pdfText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if text != "" {
			if sb.Len() > 0 {
				sb.WriteString("\n\n")
			}
			sb.WriteString(text)
		}
	}
	return sb.String(), nil
}

// htmlText strips tags and drops script and style bodies, joining text
// nodes with single spaces.
func htmlText(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	var sb strings.Builder
	var inScript, inStyle bool

	for {
		switch tt := z.Next(); tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return strings.TrimSpace(sb.String()), nil
			}
			return "", fmt.Errorf("parsing html: %w", z.Err())
		case html.StartTagToken, html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "script":
				inScript = tt == html.StartTagToken
			case "style":
				inStyle = tt == html.StartTagToken
			}
		case html.TextToken:
			if inScript || inStyle {
				continue
			}
			text := strings.TrimSpace(string(z.Text()))
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteString(" ")
				}
				sb.WriteString(text)
			}
		}
	}
}
