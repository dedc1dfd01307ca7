package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/types"
)

// NextDataSelector locates the framework's serialized page state.
const NextDataSelector = "script#__NEXT_DATA__"

// NextData decodes the __NEXT_DATA__ script of doc into a generic tree.
func NextData(doc *goquery.Document) (map[string]any, error) {
	raw := strings.TrimSpace(doc.Find(NextDataSelector).First().Text())
	if raw == "" {
		return nil, &types.ParseError{Selector: NextDataSelector, Err: types.ErrNoElement}
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return nil, &types.ParseError{Selector: NextDataSelector, Err: fmt.Errorf("decode: %w", err)}
	}
	return data, nil
}

// PageProps returns props.pageProps, the root of every embedded lookup.
func PageProps(data map[string]any) (map[string]any, bool) {
	return Map(data, "props", "pageProps")
}

// DehydratedData returns each state.data object in
// pageProps.dehydratedState.queries, in order.
func DehydratedData(props map[string]any) []map[string]any {
	queries, ok := List(props, "dehydratedState", "queries")
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(queries))
	for _, q := range queries {
		if d, ok := Map(q, "state", "data"); ok {
			out = append(out, d)
		}
	}
	return out
}
