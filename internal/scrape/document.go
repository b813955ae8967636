package scrape

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/varoOP/animequotes/internal/fetch"
	"github.com/varoOP/animequotes/internal/titles"
)

// parseDocument decodes the response body using its declared charset and
// builds a goquery document from it.
func parseDocument(resp *fetch.Response) (*goquery.Document, error) {
	contentType := ""
	if resp.Header != nil {
		contentType = resp.Header.Get("Content-Type")
	}

	r, err := charset.NewReader(bytes.NewReader(resp.Body), contentType)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to detect charset of %s", resp.URL)
	}

	node, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse html of %s", resp.URL)
	}

	return goquery.NewDocumentFromNode(node), nil
}

// directRows returns the rows that belong to table itself, not to nested
// tables. The parser moves rows into an implicit tbody, so both layouts are
// accepted.
func directRows(table *goquery.Selection) *goquery.Selection {
	return table.ChildrenFiltered("tr").
		AddSelection(table.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"))
}

// release is one entry of a listing table.
type release struct {
	Title  string
	URL    string
	Batch  bool
	SizeGB float64
}

// parseRelease reads a div.home_list_entry row. It returns false when the
// row has no size label or release link.
func parseRelease(entry *goquery.Selection) (release, bool) {
	r := release{
		Batch: entry.Find("div.links em").Length() > 0,
	}

	sizeLabel, ok := entry.Find("div.size").First().Attr("title")
	if !ok {
		return r, false
	}

	size, err := titles.SizeGB(sizeLabel)
	if err != nil {
		return r, false
	}
	r.SizeGB = size

	link := entry.Find("div.link a").First()
	if link.Length() == 0 {
		return r, false
	}
	r.Title = link.Text()
	r.URL, _ = link.Attr("href")

	return r, true
}

// usable reports whether the release is a single-episode release within the
// size bound.
func (r release) usable(maxSizeGB float64) bool {
	return !r.Batch && r.SizeGB <= maxSizeGB
}

// episodeCount reads the "N episode(s)" fragment of the info table.
func episodeCount(doc *goquery.Document) int {
	sel := doc.Find("table > tbody > tr > td > div > div").First()
	if sel.Length() == 0 {
		return 0
	}

	text := strings.SplitN(sel.Text(), " episode(s)", 2)[0]
	parts := strings.Split(text, ", ")

	n, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1]))
	if err != nil {
		return 0
	}
	return n
}

// malID reads the id at the tail of the "MAL" anchor in the second info cell.
func malID(doc *goquery.Document) int {
	infos := doc.Find("table > tbody > tr > td > div")
	if infos.Length() == 0 {
		return 0
	}
	if infos.Length() > 2 {
		infos = infos.Slice(0, 2)
	}

	anchor := infos.Last().Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Text() == "MAL"
	}).First()

	href, ok := anchor.Attr("href")
	if !ok {
		return 0
	}

	parts := strings.Split(strings.TrimRight(href, "/"), "/")
	id, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return id
}
