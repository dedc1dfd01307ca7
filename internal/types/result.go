package types

import (
	"net/url"
	"time"
)

// PageURL returns the URL a browser should open for the product. Coupang
// product pages need the item selectors to render the right variant.
func (p *ProductIdentity) PageURL() string {
	if p.Platform != PlatformCoupang || (p.ItemID == "" && p.VendorItemID == "") {
		return p.CanonicalURL
	}
	q := url.Values{}
	if p.ItemID != "" {
		q.Set("itemId", p.ItemID)
	}
	if p.VendorItemID != "" {
		q.Set("vendorItemId", p.VendorItemID)
	}
	return p.CanonicalURL + "?" + q.Encode()
}

// Result is the frozen output of one analysis run.
type Result struct {
	Identity       *ProductIdentity `json:"identity"`
	Status         Status           `json:"status"`
	Product        ProductRecord    `json:"product"`
	Reviews        []ReviewRecord   `json:"reviews"`
	QnA            []QnAPair        `json:"qna"`
	StrategyYields map[string]int   `json:"strategy_yields"`
	Warnings       []string         `json:"warnings,omitempty"`
	StartedAt      time.Time        `json:"started_at"`
	Duration       time.Duration    `json:"duration"`
}

// OK reports whether the run reached the product page.
func (r *Result) OK() bool { return r != nil && r.Status == StatusOK }

// Yield returns the number of records strategy contributed to content.
func (r *Result) Yield(content ContentType, strategy string) int {
	if r == nil {
		return 0
	}
	return r.StrategyYields[YieldKey(content, strategy)]
}

// YieldKey is the StrategyYields key for a content type and strategy.
func YieldKey(content ContentType, strategy string) string {
	return string(content) + "/" + strategy
}

// Section names one narrative output.
type Section string

const (
	SectionStory  Section = "story"
	SectionReview Section = "review"
	SectionQnA    Section = "qna"
	SectionFull   Section = "full"
)

// Narratives holds the generated analysis text for one provider. A section
// that failed is empty and has an entry in Errors.
type Narratives struct {
	Provider string             `json:"provider"`
	Model    string             `json:"model,omitempty"`
	Story    string             `json:"story,omitempty"`
	Review   string             `json:"review,omitempty"`
	QnA      string             `json:"qna,omitempty"`
	Full     string             `json:"full,omitempty"`
	Errors   map[Section]string `json:"errors,omitempty"`
}

// Get returns the text for section.
func (n *Narratives) Get(s Section) string {
	switch s {
	case SectionStory:
		return n.Story
	case SectionReview:
		return n.Review
	case SectionQnA:
		return n.QnA
	case SectionFull:
		return n.Full
	}
	return ""
}

// Set stores the text for section.
func (n *Narratives) Set(s Section, text string) {
	switch s {
	case SectionStory:
		n.Story = text
	case SectionReview:
		n.Review = text
	case SectionQnA:
		n.QnA = text
	case SectionFull:
		n.Full = text
	}
}

// Fail records a section error.
func (n *Narratives) Fail(s Section, err error) {
	if n.Errors == nil {
		n.Errors = make(map[Section]string)
	}
	n.Errors[s] = err.Error()
}
