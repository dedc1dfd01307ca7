package types

import "strings"

// Platform identifies a supported storefront.
type Platform string

const (
	PlatformCoupang Platform = "coupang"
	PlatformNaver   Platform = "naver"
)

// ContentType names one of the three collected content kinds.
type ContentType string

const (
	ContentProduct ContentType = "product"
	ContentReviews ContentType = "reviews"
	ContentQnA     ContentType = "qna"
)

// NavOutcome is the result of a navigation attempt.
type NavOutcome string

const (
	NavSuccess   NavOutcome = "success"
	NavBlocked   NavOutcome = "blocked"
	NavChallenge NavOutcome = "challenge"
	NavFailed    NavOutcome = "failed"
)

// Status is the terminal state of an analysis run.
type Status string

const (
	StatusOK        Status = "ok"
	StatusChallenge Status = "challenge"
	StatusBlocked   Status = "blocked"
	StatusFailed    Status = "failed"
)

// MaxDetailImages caps ProductRecord.DetailImageURLs.
const MaxDetailImages = 50

// Endpoints holds the internal API URLs derived for a product.
type Endpoints struct {
	Reviews string `json:"reviews,omitempty"`
	QnA     string `json:"qna,omitempty"`
}

// ProductIdentity is the canonical, immutable description of one product
// page. It is created by the resolver and only read afterwards.
type ProductIdentity struct {
	Platform     Platform  `json:"platform"`
	ProductID    string    `json:"product_id"`
	StoreName    string    `json:"store_name,omitempty"`
	IsAltDomain  bool      `json:"is_alt_domain"`
	CanonicalURL string    `json:"canonical_url"`
	MobileURL    string    `json:"mobile_url,omitempty"`
	ItemID       string    `json:"item_id,omitempty"`
	VendorItemID string    `json:"vendor_item_id,omitempty"`
	Endpoints    Endpoints `json:"endpoints"`
}

// ProductRecord is assembled across strategies. A field set by an earlier
// strategy is never overwritten by a later one.
type ProductRecord struct {
	ID              string   `json:"id"`
	URL             string   `json:"url"`
	Title           string   `json:"title"`
	Price           string   `json:"price"`
	Rating          *float64 `json:"rating"`
	ReviewCount     *int     `json:"review_count"`
	DetailImageURLs []string `json:"detail_images"`
	Specifications  []string `json:"specs"`
}

// Merge copies every field of p that is still empty in r.
func (r *ProductRecord) Merge(p *ProductRecord) {
	if p == nil {
		return
	}
	if r.ID == "" {
		r.ID = p.ID
	}
	if r.URL == "" {
		r.URL = p.URL
	}
	if r.Title == "" {
		r.Title = strings.TrimSpace(p.Title)
	}
	if r.Price == "" {
		r.Price = strings.TrimSpace(p.Price)
	}
	if r.Rating == nil && p.Rating != nil {
		v := *p.Rating
		r.Rating = &v
	}
	if r.ReviewCount == nil && p.ReviewCount != nil {
		v := *p.ReviewCount
		r.ReviewCount = &v
	}
	if len(r.DetailImageURLs) == 0 {
		r.AddImages(p.DetailImageURLs...)
	}
	if len(r.Specifications) == 0 && len(p.Specifications) > 0 {
		r.Specifications = append([]string(nil), p.Specifications...)
	}
}

// AddImages appends image URLs, skipping blanks and duplicates, up to
// MaxDetailImages.
func (r *ProductRecord) AddImages(urls ...string) {
	seen := make(map[string]struct{}, len(r.DetailImageURLs))
	for _, u := range r.DetailImageURLs {
		seen[u] = struct{}{}
	}
	for _, u := range urls {
		if len(r.DetailImageURLs) >= MaxDetailImages {
			return
		}
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, dup := seen[u]; dup {
			continue
		}
		seen[u] = struct{}{}
		r.DetailImageURLs = append(r.DetailImageURLs, u)
	}
}

// Complete reports whether every scalar field has been populated.
func (r *ProductRecord) Complete() bool {
	return r.Title != "" && r.Price != "" && r.Rating != nil && r.ReviewCount != nil &&
		len(r.DetailImageURLs) > 0 && len(r.Specifications) > 0
}

// ReviewRecord is one customer review.
type ReviewRecord struct {
	Rating   *float64 `json:"rating"`
	Author   string   `json:"author"`
	Date     string   `json:"date"`
	Headline string   `json:"headline,omitempty"`
	Content  string   `json:"content"`
	Helpful  int      `json:"helpful"`
	Option   string   `json:"option,omitempty"`
}

// Empty reports whether the review carries no signal.
func (r *ReviewRecord) Empty() bool {
	return strings.TrimSpace(r.Author) == "" && strings.TrimSpace(r.Content) == ""
}

// Placeholder texts for Q&A items whose body is hidden.
const (
	AnsweredMarker = "(답변완료)"
	SecretQuestion = "(비공개 문의)"
)

// QnAPair is one customer question and the seller's answer, if any.
type QnAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	QDate    string `json:"q_date"`
	ADate    string `json:"a_date,omitempty"`
	Seller   string `json:"seller,omitempty"`
	Author   string `json:"author,omitempty"`
	IsSecret bool   `json:"is_secret"`
}

// Answered reports whether the question has any answer, including the
// bare "answered" marker left when the answer text was not recoverable.
func (q *QnAPair) Answered() bool { return strings.TrimSpace(q.Answer) != "" }

// HasAnswerText reports whether the answer body itself was recovered.
func (q *QnAPair) HasAnswerText() bool {
	a := strings.TrimSpace(q.Answer)
	return a != "" && a != AnsweredMarker
}

// Secret reports whether the question is a private one.
func (q *QnAPair) Secret() bool {
	return q.IsSecret || strings.Contains(q.Question, "(비공개") || strings.Contains(q.Question, "비밀글")
}

// Float returns a pointer to v.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
