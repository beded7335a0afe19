package listing

import (
	"fmt"
	"io"
	"strings"

	"bilagscraper/pkg/config"
	errs "bilagscraper/pkg/errors"

	"github.com/PuerkitoBio/goquery"
)

// Document is one receipt row of the listing page
type Document struct {
	ID          string `json:"id"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

// Line renders the details file line for d: "id, date, description, amount"
func (d Document) Line() string {
	return strings.Join([]string{d.ID, d.Date, d.Description, d.Amount}, ", ")
}

// Parse reads the listing page HTML. Entries without an id attribute are
// counted in skipped and left out; an entry with an id but without one of its
// fields fails the whole parse.
func Parse(r io.Reader, sel config.SelectorsConfig) (docs []Document, skipped int, err error) {
	page, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, 0, errs.Wrap(errs.ErrorTypeParsing, "failed to parse listing page", err)
	}

	container := page.Find(sel.Container).First()
	if container.Length() == 0 {
		return nil, 0, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("listing container %q not found", sel.Container))
	}

	entries := container.ChildrenFiltered(sel.Entry)
	docs = make([]Document, 0, entries.Length())

	entries.EachWithBreak(func(i int, entry *goquery.Selection) bool {
		id, ok := entry.Attr("id")
		if !ok || id == "" {
			skipped++
			return true
		}

		var doc Document
		doc, err = parseEntry(entry, id, sel)
		if err != nil {
			err = fmt.Errorf("entry %d: %w", i, err)
			return false
		}
		docs = append(docs, doc)
		return true
	})
	if err != nil {
		return nil, 0, err
	}

	return docs, skipped, nil
}

func parseEntry(entry *goquery.Selection, id string, sel config.SelectorsConfig) (Document, error) {
	date, err := field(entry, id, sel.Date)
	if err != nil {
		return Document{}, err
	}
	desc, err := field(entry, id, sel.Description)
	if err != nil {
		return Document{}, err
	}
	amount, err := field(entry, id, sel.Amount)
	if err != nil {
		return Document{}, err
	}

	return Document{
		ID:          id,
		Date:        collapse(date.Text()),
		Description: collapse(desc.AttrOr("title", "")),
		Amount:      collapse(amount.Text()),
	}, nil
}

// collapse folds whitespace runs, line breaks included, into single spaces
// so every document stays on one line of the details file
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func field(entry *goquery.Selection, id, selector string) (*goquery.Selection, error) {
	s := entry.Find(selector).First()
	if s.Length() == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("document %s has no %q element", id, selector))
	}
	return s, nil
}

// IDs returns the ids of docs in order, duplicates included
func IDs(docs []Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// Render builds the details file content, one line per document
func Render(docs []Document) []byte {
	var b strings.Builder
	for _, d := range docs {
		b.WriteString(d.Line())
		b.WriteByte('\n')
	}
	return []byte(b.String())
}
