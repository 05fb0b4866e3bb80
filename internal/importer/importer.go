// Package importer extracts shopping-list item candidates from web pages
// for the /import command.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/VladimirNagibin/shop-list-bot/internal/list"
)

// maxItems caps one import so a long index page cannot flood a list.
const maxItems = 50

// qtyPrefix matches a leading amount like "2", "1.5 kg" or "400 g".
var qtyPrefix = regexp.MustCompile(`^(\d+(?:[.,]\d+)?(?:\s?(?:kg|g|l|ml|pcs|x))?)\s+(.+)$`)

// Importer fetches a page and pulls list entries out of it.
type Importer struct {
	client *http.Client
}

func New() *Importer {
	return &Importer{client: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch downloads the URL and returns the page's <li> entries as item
// candidates, deduplicated case-insensitively. A leading amount becomes the
// item quantity.
func (imp *Importer) Fetch(ctx context.Context, url string) ([]list.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := imp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch url: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	// Strip navigation noise before collecting entries.
	doc.Find("script, style, nav, footer, header, iframe").Each(func(_ int, s *goquery.Selection) {
		s.Remove()
	})

	seen := make(map[string]bool)
	var items []list.Item
	doc.Find("li").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || len(text) > 120 {
			return true
		}

		name, quantity := splitQuantity(text)
		key := list.Key(name)
		if seen[key] {
			return true
		}
		seen[key] = true

		it, err := list.NewItem(name, quantity)
		if err != nil {
			return true
		}
		items = append(items, it)
		return len(items) < maxItems
	})

	return items, nil
}

// splitQuantity peels a leading amount off an entry: "2 kg Potatoes" ->
// ("Potatoes", "2 kg").
func splitQuantity(text string) (name, quantity string) {
	if m := qtyPrefix.FindStringSubmatch(text); m != nil {
		return m[2], m[1]
	}
	return text, ""
}
