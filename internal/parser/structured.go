package parser

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// StructuredDataType identifies the type of structured data.
type StructuredDataType string

const (
	JSONLD    StructuredDataType = "json-ld"
	Microdata StructuredDataType = "microdata"
	OpenGraph StructuredDataType = "opengraph"
)

// StructuredData represents extracted structured data from a page.
type StructuredData struct {
	Type StructuredDataType `json:"type"`
	Data map[string]any     `json:"data"`
	Raw  string             `json:"raw,omitempty"`
}

// StructuredDataExtractor reads JSON-LD, OpenGraph and microdata markup.
// Storefronts publish these for search engines, so they survive class-name
// obfuscation and serve as the last product fallback.
type StructuredDataExtractor struct {
	logger *slog.Logger
}

// NewStructuredDataExtractor creates a new structured data extractor.
func NewStructuredDataExtractor(logger *slog.Logger) *StructuredDataExtractor {
	return &StructuredDataExtractor{
		logger: logger.With("component", "structured_data"),
	}
}

// Extract finds and parses all structured data in doc.
func (sde *StructuredDataExtractor) Extract(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	results = append(results, sde.extractJSONLD(doc)...)

	if og := sde.extractOpenGraph(doc); len(og.Data) > 0 {
		results = append(results, og)
	}

	results = append(results, sde.extractMicrodata(doc)...)

	sde.logger.Debug("structured data extracted", "blocks", len(results))
	return results
}

// Product builds a partial product record from structured data. Fields
// with no source stay empty.
func (sde *StructuredDataExtractor) Product(doc *goquery.Document, pageURL string) types.ProductRecord {
	rec := types.ProductRecord{URL: pageURL}
	for _, sd := range sde.Extract(doc) {
		switch sd.Type {
		case JSONLD:
			for _, obj := range productObjects(sd.Data) {
				rec.Merge(productFromJSONLD(obj))
			}
		case Microdata:
			if t, _ := sd.Data["@type"].(string); strings.HasSuffix(t, "/Product") {
				rec.Merge(productFromFlat(sd.Data, "name", "price", "image"))
			}
		case OpenGraph:
			rec.Merge(productFromFlat(sd.Data, "title", "price:amount", "image"))
		}
	}
	return rec
}

// productObjects returns the Product nodes of a JSON-LD block, looking
// inside @graph.
func productObjects(data map[string]any) []map[string]any {
	var out []map[string]any
	if isProduct(data) {
		out = append(out, data)
	}
	if graph, ok := List(data, "@graph"); ok {
		for _, g := range graph {
			if m, ok := g.(map[string]any); ok && isProduct(m) {
				out = append(out, m)
			}
		}
	}
	return out
}

func isProduct(m map[string]any) bool {
	switch t := m["@type"].(type) {
	case string:
		return t == "Product"
	case []any:
		for _, v := range t {
			if v == "Product" {
				return true
			}
		}
	}
	return false
}

func productFromJSONLD(obj map[string]any) *types.ProductRecord {
	rec := &types.ProductRecord{}
	rec.Title, _ = String(obj, "name")

	offers := obj["offers"]
	if list, ok := offers.([]any); ok && len(list) > 0 {
		offers = list[0]
	}
	if price, ok := Float(offers, "price"); ok && price > 0 {
		rec.Price = FormatWon(int(price))
	} else if price, ok := Float(offers, "lowPrice"); ok && price > 0 {
		rec.Price = FormatWon(int(price))
	}

	if r, ok := Float(obj, "aggregateRating", "ratingValue"); ok {
		rec.Rating = types.Float(r)
	}
	if n, ok := Int(obj, "aggregateRating", "reviewCount"); ok {
		rec.ReviewCount = types.Int(n)
	}

	switch img := obj["image"].(type) {
	case string:
		rec.AddImages(HTTPSURL(img))
	case []any:
		for _, v := range img {
			if s, ok := v.(string); ok {
				rec.AddImages(HTTPSURL(s))
			}
		}
	}
	return rec
}

func productFromFlat(data map[string]any, titleKey, priceKey, imageKey string) *types.ProductRecord {
	rec := &types.ProductRecord{}
	rec.Title, _ = String(data, titleKey)
	if price, ok := Float(data, priceKey); ok && price > 0 {
		rec.Price = FormatWon(int(price))
	}
	if img, ok := String(data, imageKey); ok {
		rec.AddImages(HTTPSURL(img))
	}
	return rec
}

// extractJSONLD parses <script type="application/ld+json"> elements.
func (sde *StructuredDataExtractor) extractJSONLD(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}

		// Try parsing as single object
		var data map[string]any
		if err := json.Unmarshal([]byte(raw), &data); err == nil {
			results = append(results, StructuredData{
				Type: JSONLD,
				Data: data,
				Raw:  raw,
			})
			return
		}

		// Try parsing as array
		var dataArr []map[string]any
		if err := json.Unmarshal([]byte(raw), &dataArr); err == nil {
			for _, d := range dataArr {
				results = append(results, StructuredData{
					Type: JSONLD,
					Data: d,
					Raw:  raw,
				})
			}
		}
	})

	return results
}

// extractOpenGraph parses og: and product: meta tags.
func (sde *StructuredDataExtractor) extractOpenGraph(doc *goquery.Document) StructuredData {
	data := make(map[string]any)

	doc.Find(`meta[property^="og:"], meta[property^="product:"]`).Each(func(i int, sel *goquery.Selection) {
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		if property != "" && content != "" {
			key := strings.TrimPrefix(strings.TrimPrefix(property, "og:"), "product:")
			if _, seen := data[key]; !seen {
				data[key] = content
			}
		}
	})

	return StructuredData{Type: OpenGraph, Data: data}
}

// extractMicrodata parses elements with itemscope/itemprop attributes.
func (sde *StructuredDataExtractor) extractMicrodata(doc *goquery.Document) []StructuredData {
	var results []StructuredData

	// Find top-level itemscope elements
	doc.Find("[itemscope]:not([itemscope] [itemscope])").Each(func(i int, sel *goquery.Selection) {
		data := make(map[string]any)

		itemType, _ := sel.Attr("itemtype")
		if itemType != "" {
			data["@type"] = itemType
		}

		sel.Find("[itemprop]").Each(func(j int, prop *goquery.Selection) {
			name, _ := prop.Attr("itemprop")
			if name == "" {
				return
			}

			var value string
			if href, exists := prop.Attr("href"); exists {
				value = href
			} else if src, exists := prop.Attr("src"); exists {
				value = src
			} else if content, exists := prop.Attr("content"); exists {
				value = content
			} else if datetime, exists := prop.Attr("datetime"); exists {
				value = datetime
			} else {
				value = strings.TrimSpace(prop.Text())
			}

			if value != "" {
				data[name] = value
			}
		})

		if len(data) > 0 {
			results = append(results, StructuredData{
				Type: Microdata,
				Data: data,
			})
		}
	})

	return results
}
