package automation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage adapts a live Rod page to the Page interface.
type RodPage struct {
	page    *rod.Page
	timeout time.Duration
	logger  *slog.Logger
}

// NewRodPage wraps page. timeout bounds every single browser call.
func NewRodPage(page *rod.Page, timeout time.Duration, logger *slog.Logger) *RodPage {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RodPage{
		page:    page,
		timeout: timeout,
		logger:  logger.With("component", "rod_page"),
	}
}

// Raw returns the wrapped Rod page.
func (p *RodPage) Raw() *rod.Page { return p.page }

func (p *RodPage) bounded(ctx context.Context) *rod.Page {
	return p.page.Context(ctx).Timeout(p.timeout)
}

func (p *RodPage) Navigate(ctx context.Context, url string) error {
	pg := p.bounded(ctx)
	if err := pg.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Debug("page load wait timed out, continuing", "url", url, "error", err)
	}
	return nil
}

func (p *RodPage) Reload(ctx context.Context) error {
	pg := p.bounded(ctx)
	if err := pg.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	if err := pg.WaitLoad(); err != nil {
		p.logger.Debug("reload wait timed out, continuing", "error", err)
	}
	return nil
}

func (p *RodPage) URL() string {
	info, err := p.page.Timeout(p.timeout).Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func (p *RodPage) Title() string {
	info, err := p.page.Timeout(p.timeout).Info()
	if err != nil || info == nil {
		return ""
	}
	return info.Title
}

func (p *RodPage) HTML() (string, error) {
	return p.page.Timeout(p.timeout).HTML()
}

func (p *RodPage) Query(selector string) (Element, bool) {
	has, el, err := p.page.Timeout(p.timeout).Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return p.wrap(el), true
}

func (p *RodPage) QueryAll(selector string) []Element {
	els, err := p.page.Timeout(p.timeout).Elements(selector)
	if err != nil {
		return nil
	}
	return p.wrapAll(els)
}

func (p *RodPage) QueryXPath(expr string) []Element {
	els, err := p.page.Timeout(p.timeout).ElementsX(expr)
	if err != nil {
		return nil
	}
	return p.wrapAll(els)
}

// Eval runs js as a function body expression, e.g. "() => document.title".
func (p *RodPage) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.bounded(ctx).Eval(js)
	if err != nil {
		return "", err
	}
	return res.Value.String(), nil
}

func (p *RodPage) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	_, err := p.page.Context(ctx).Timeout(timeout).Element(selector)
	return err
}

func (p *RodPage) ScrollBy(ctx context.Context, y int) error {
	_, err := p.Eval(ctx, fmt.Sprintf(`() => window.scrollBy(0, %d)`, y))
	return err
}

func (p *RodPage) ScrollTo(ctx context.Context, y int) error {
	_, err := p.Eval(ctx, fmt.Sprintf(`() => window.scrollTo(0, %d)`, y))
	return err
}

func (p *RodPage) wrap(el *rod.Element) *RodElement {
	return &RodElement{el: el, timeout: p.timeout, page: p}
}

func (p *RodPage) wrapAll(els rod.Elements) []Element {
	out := make([]Element, 0, len(els))
	for _, el := range els {
		out = append(out, p.wrap(el))
	}
	return out
}

// RodElement adapts a Rod element to the Element interface.
type RodElement struct {
	el      *rod.Element
	timeout time.Duration
	page    *RodPage
}

func (e *RodElement) bounded() *rod.Element { return e.el.Timeout(e.timeout) }

func (e *RodElement) Text() string {
	t, err := e.bounded().Text()
	if err != nil {
		return ""
	}
	return t
}

func (e *RodElement) Attr(name string) (string, bool) {
	v, err := e.bounded().Attribute(name)
	if err != nil || v == nil {
		return "", false
	}
	return *v, true
}

func (e *RodElement) Tag() string {
	res, err := e.bounded().Eval(`() => this.tagName.toLowerCase()`)
	if err != nil {
		return ""
	}
	return res.Value.String()
}

func (e *RodElement) HTML() string {
	h, err := e.bounded().HTML()
	if err != nil {
		return ""
	}
	return h
}

func (e *RodElement) Query(selector string) (Element, bool) {
	has, el, err := e.bounded().Has(selector)
	if err != nil || !has {
		return nil, false
	}
	return e.page.wrap(el), true
}

func (e *RodElement) QueryAll(selector string) []Element {
	els, err := e.bounded().Elements(selector)
	if err != nil {
		return nil
	}
	return e.page.wrapAll(els)
}

func (e *RodElement) Children() []Element {
	return e.QueryAll(":scope > *")
}

func (e *RodElement) Parent() (Element, bool) {
	parent, err := e.bounded().Parent()
	if err != nil || parent == nil {
		return nil, false
	}
	return e.page.wrap(parent), true
}

func (e *RodElement) Click(ctx context.Context) error {
	el := e.el.Context(ctx).Timeout(e.timeout)
	_ = el.ScrollIntoView()
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// Overlays commonly intercept the pointer; fall back to a DOM click.
		if _, jsErr := el.Eval(`() => this.click()`); jsErr != nil {
			return fmt.Errorf("click: %w", err)
		}
	}
	return nil
}
