/*
Package parser inspects HTML response bodies for display.

Inspect returns the document title and the absolute URLs of the anchors found
in the document.

Example:

	doc, err := parser.Inspect(body, "https://example.com/")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(doc.Title, len(doc.Links))
*/
package parser

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Document is the display summary of an HTML document.
type Document struct {
	Title string
	// Links are absolute, de-duplicated and in document order.
	Links []string
}

// Inspect parses body as HTML. Relative links are resolved against baseURL.
func Inspect(body []byte, baseURL string) (*Document, error) {
	title, err := ExtractTitle(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	links, err := ExtractLinks(bytes.NewReader(body), baseURL)
	if err != nil {
		return nil, err
	}

	return &Document{Title: title, Links: links}, nil
}

// ExtractTitle returns the trimmed text of the first <title> element.
func ExtractTitle(body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", err
	}

	return strings.Join(strings.Fields(doc.Find("title").First().Text()), " "), nil
}

func getHref(t html.Token) (ok bool, href string) {
	for _, a := range t.Attr {
		if a.Key == "href" {
			return true, a.Val
		}
	}

	return false, ""
}

// ExtractLinks takes an io.Reader and returns the absolute http(s) URLs of
// all anchors found in the document.
func ExtractLinks(body io.Reader, baseURL string) ([]string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	links := []string{}
	seen := map[string]bool{}
	tokenizer := html.NewTokenizer(body)

	for {
		tt := tokenizer.Next()

		switch {
		case tt == html.ErrorToken: // End of the document
			if err := tokenizer.Err(); err != nil && err != io.EOF {
				return links, err
			}
			return links, nil
		case tt == html.StartTagToken || tt == html.SelfClosingTagToken:
			t := tokenizer.Token()

			if t.Data != "a" {
				continue
			}

			ok, href := getHref(t)
			if !ok {
				continue
			}

			link := absoluteURL(base, href)
			if link == "" || seen[link] {
				continue
			}

			seen[link] = true
			links = append(links, link)
		}
	}
}

// absoluteURL resolves link against base. Fragment-only links and links with
// a scheme other than http(s) are dropped.
func absoluteURL(base *url.URL, link string) string {
	link = strings.TrimSpace(link)
	if link == "" || strings.HasPrefix(link, "#") {
		return ""
	}

	href, err := url.Parse(link)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(href)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}

	return abs.String()
}
