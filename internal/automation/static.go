package automation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/StoreScope/internal/parser"
)

// ClickFunc handles a click on a static element. It may replace the page
// content with SetHTML to simulate navigation or expansion.
type ClickFunc func(p *StaticPage, el *StaticElement) error

// StaticPage is a Page backed by an in-memory HTML document. It serves
// fixtures in tests and snapshots of live pages.
type StaticPage struct {
	mu      sync.RWMutex
	doc     *goquery.Document
	url     string
	onClick ClickFunc
	onNav   func(p *StaticPage, url string) error
	evals   []string
}

// StaticOption configures a StaticPage.
type StaticOption func(*StaticPage)

// OnClick installs a click handler.
func OnClick(fn ClickFunc) StaticOption {
	return func(p *StaticPage) { p.onClick = fn }
}

// OnNavigate installs a navigation handler.
func OnNavigate(fn func(p *StaticPage, url string) error) StaticOption {
	return func(p *StaticPage) { p.onNav = fn }
}

// NewStaticPage parses content into a StaticPage located at url.
func NewStaticPage(url, content string, opts ...StaticOption) (*StaticPage, error) {
	p := &StaticPage{url: url}
	if err := p.SetHTML(content); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SetHTML replaces the document.
func (p *StaticPage) SetHTML(content string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}
	p.mu.Lock()
	p.doc = doc
	p.mu.Unlock()
	return nil
}

// SetURL changes the reported location.
func (p *StaticPage) SetURL(url string) {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()
}

// Document returns the current parsed document.
func (p *StaticPage) Document() *goquery.Document {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

// Evals returns the scripts passed to Eval, in order.
func (p *StaticPage) Evals() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.evals...)
}

func (p *StaticPage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.SetURL(url)
	if p.onNav != nil {
		return p.onNav(p, url)
	}
	return nil
}

func (p *StaticPage) Reload(ctx context.Context) error { return ctx.Err() }

func (p *StaticPage) URL() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.url
}

func (p *StaticPage) Title() string {
	return strings.TrimSpace(p.Document().Find("title").First().Text())
}

func (p *StaticPage) HTML() (string, error) {
	return goquery.OuterHtml(p.Document().Selection)
}

func (p *StaticPage) Query(selector string) (Element, bool) {
	sel := p.Document().Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return p.wrap(sel), true
}

func (p *StaticPage) QueryAll(selector string) []Element {
	return p.wrapAll(p.Document().Find(selector))
}

// QueryXPath evaluates expr with htmlquery against the document root.
func (p *StaticPage) QueryXPath(expr string) []Element {
	return p.wrapAll(parser.XPath(p.Document(), expr))
}

// Eval records the script. Static pages have no script engine.
func (p *StaticPage) Eval(ctx context.Context, js string) (string, error) {
	p.mu.Lock()
	p.evals = append(p.evals, js)
	p.mu.Unlock()
	return "", ctx.Err()
}

func (p *StaticPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Document().Find(selector).Length() == 0 {
		return fmt.Errorf("wait for %q: not present", selector)
	}
	return nil
}

func (p *StaticPage) ScrollBy(ctx context.Context, y int) error {
	_, err := p.Eval(ctx, fmt.Sprintf("window.scrollBy(0, %d)", y))
	return err
}

func (p *StaticPage) ScrollTo(ctx context.Context, y int) error {
	_, err := p.Eval(ctx, fmt.Sprintf("window.scrollTo(0, %d)", y))
	return err
}

func (p *StaticPage) wrap(sel *goquery.Selection) *StaticElement {
	return &StaticElement{sel: sel, page: p}
}

func (p *StaticPage) wrapAll(sel *goquery.Selection) []Element {
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, p.wrap(s))
	})
	return out
}

// StaticElement is an Element of a StaticPage.
type StaticElement struct {
	sel  *goquery.Selection
	page *StaticPage
}

// Selection exposes the underlying goquery selection.
func (e *StaticElement) Selection() *goquery.Selection { return e.sel }

func (e *StaticElement) Text() string { return e.sel.Text() }

func (e *StaticElement) Attr(name string) (string, bool) { return e.sel.Attr(name) }

func (e *StaticElement) Tag() string { return goquery.NodeName(e.sel) }

func (e *StaticElement) HTML() string {
	h, _ := goquery.OuterHtml(e.sel)
	return h
}

func (e *StaticElement) Query(selector string) (Element, bool) {
	sel := e.sel.Find(selector).First()
	if sel.Length() == 0 {
		return nil, false
	}
	return e.page.wrap(sel), true
}

func (e *StaticElement) QueryAll(selector string) []Element {
	return e.page.wrapAll(e.sel.Find(selector))
}

func (e *StaticElement) Children() []Element {
	return e.page.wrapAll(e.sel.Children())
}

func (e *StaticElement) Parent() (Element, bool) {
	parent := e.sel.Parent()
	if parent.Length() == 0 {
		return nil, false
	}
	return e.page.wrap(parent), true
}

func (e *StaticElement) Click(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.page.onClick == nil {
		return nil
	}
	return e.page.onClick(e.page, e)
}
