package config

import "strings"

// Candidate prefixes. A bare candidate is a CSS selector; "xpath:" marks
// an XPath expression and "regex:" a pattern applied to element text.
const (
	XPathPrefix = "xpath:"
	RegexPrefix = "regex:"
)

// SelectorTable maps a field key to its ordered selector candidates.
// The first candidate is the primary one.
type SelectorTable map[string][]string

// Get returns the candidates for key, or nil.
func (t SelectorTable) Get(key string) []string {
	if t == nil {
		return nil
	}
	return t[strings.ToLower(key)]
}

// First returns the primary candidate for key.
func (t SelectorTable) First(key string) string {
	c := t.Get(key)
	if len(c) == 0 {
		return ""
	}
	return c[0]
}

// Joined returns the candidates for key as one comma-separated CSS group.
// XPath candidates are dropped.
func (t SelectorTable) Joined(key string) string {
	var css []string
	for _, c := range t.Get(key) {
		if !strings.HasPrefix(c, XPathPrefix) && !strings.HasPrefix(c, RegexPrefix) {
			css = append(css, c)
		}
	}
	return strings.Join(css, ", ")
}

// Selector keys shared by both platforms.
const (
	SelProductTitle       = "product_title"
	SelProductPrice       = "product_price"
	SelProductRating      = "product_rating"
	SelProductReviewCount = "product_review_count"
	SelProductImage       = "product_image"
	SelProductSpec        = "product_spec"

	SelTabReview = "tab_review"
	SelTabQnA    = "tab_qna"
	SelPager     = "pager"

	SelReviewItem    = "review_item"
	SelReviewStar    = "review_star"
	SelReviewAuthor  = "review_author"
	SelReviewDate    = "review_date"
	SelReviewContent = "review_content"
	SelReviewOption  = "review_option"
	SelReviewHelpful = "review_helpful"

	SelQnAItem     = "qna_item"
	SelQnAQuestion = "qna_question"
	SelQnAAnswer   = "qna_answer"
	SelQnADate     = "qna_date"
	SelQnASeller   = "qna_seller"
)

// Coupang-only selector keys.
const (
	SelAPIArticle  = "api_article"
	SelAPIStar     = "api_star"
	SelAPIAuthor   = "api_author"
	SelAPIDate     = "api_date"
	SelAPIHeadline = "api_headline"
	SelAPIContent  = "api_content"
	SelAPIHelpful  = "api_helpful"
	SelReviewHalf  = "review_half_star"
	SelReviewMeta  = "review_meta"
	SelReviewArea  = "review_area"
)

// CoupangSelectors returns the default Coupang selector table.
func CoupangSelectors() SelectorTable {
	return SelectorTable{
		SelAPIArticle:  {"article.sdp-review__article__list", ".js_reviewArticle"},
		SelAPIStar:     {".sdp-review__article__list__info__product-info__star-orange"},
		SelAPIAuthor:   {".sdp-review__article__list__info__user__name"},
		SelAPIDate:     {".sdp-review__article__list__info__product-info__reg-date"},
		SelAPIHeadline: {".sdp-review__article__list__headline"},
		SelAPIContent:  {".sdp-review__article__list__review__content"},
		SelAPIHelpful:  {".sdp-review__article__list__help__count"},

		SelReviewItem: {`article.twc-pt-\[16px\]`},
		SelReviewStar: {"i.twc-bg-full-star"},
		SelReviewHalf: {"i.twc-bg-half-star"},
		SelReviewMeta: {`.twc-flex.twc-flex-col.twc-gap-\[6px\]`},
		SelReviewContent: {
			".twc-text-bluegray-900.twc-break-all",
			".twc-text-bluegray-900.twc-break-all span",
			".twc-text-bluegray-900",
			".twc-break-all",
		},
		SelReviewHelpful: {".sdp-review__article__list__help"},
		SelReviewArea:    {".sdp-review"},
		SelPager:         {"[data-page]"},

		SelTabReview: {"xpath://a[contains(text(), '상품평')]"},
		SelTabQnA:    {"xpath://a[contains(text(), '상품문의')]"},

		SelQnAItem:     {"div.qna"},
		SelQnAQuestion: {"span[translate='no']"},
		SelQnASeller:   {".twc-font-bold"},

		SelProductTitle:       {"h1.prod-buy-header__title", "h2.prod-buy-header__title"},
		SelProductPrice:       {".total-price strong"},
		SelProductImage:       {".subType-IMAGE img", ".vendor-item img"},
		SelProductSpec:        {".prod-attr-item"},
		SelProductReviewCount: {"xpath://a[contains(., '상품평')]", `regex:상품평\s*\((\d[\d,]*)\)`},
	}
}

// NaverSelectors returns the default Naver selector table. Hashed class
// names come first, then attribute-substring alternates.
func NaverSelectors() SelectorTable {
	return SelectorTable{
		SelProductTitle: {
			"h3._22kNQuEXmb", "._3oDkSBFl5e h3", "[class*='headingArea'] h3",
			"h3[class*='product']", ".top_summary_title h3",
		},
		SelProductPrice: {
			"span._1LY7DqCnwR", "[class*='totalPrice'] span",
			"span[class*='sale_price']", ".total_price span strong",
		},
		SelProductRating: {
			"span._2pgHN-ntx6", "[class*='reviewScore']", "span[class*='avg_score']",
		},
		SelProductReviewCount: {
			"a._2FeLrDP75i em", "[class*='reviewCount'] em", "em[class*='review_count']",
		},
		SelProductImage: {
			"div._1b-GsMllMv img", "[class*='detailContent'] img",
			".se-module-image img", "div[class*='detail'] img",
		},
		SelProductSpec: {
			"table._1_UiXWHt__", "[class*='attribute'] table", "table[class*='detail_attr']",
		},
		SelReviewItem: {
			"ul._1eY1iFkjHa li", "[class*='reviewList'] li", "ul[class*='review_list'] > li",
		},
		SelReviewStar: {
			"em._15NU42F3kT", "[class*='reviewStar'] em", "em[class*='star_score']",
		},
		SelReviewContent: {
			"div._3z6gI4vI6l span._3QDEeS6NLn", "[class*='reviewContent'] span",
			"span[class*='review_text']", "div[class*='content'] span",
		},
		SelReviewAuthor: {
			"span._3QDEeS6NLn._2FIDGBqNMr", "[class*='reviewerName']", "span[class*='user_id']",
		},
		SelReviewDate: {
			"span._3QDEeS6NLn._1hR3urpB6W", "[class*='reviewDate']", "span[class*='date']",
		},
		SelReviewOption: {
			"div._1uRMhBLW0P", "[class*='reviewOption']", "span[class*='option']",
		},
		SelPager: {
			"a._2Ar8-aEUTq", "[class*='pagination'] a", "a[class*='page_num']",
		},
		SelQnAItem: {
			"ul._1eY1iFkjHa li", "[class*='inquiryList'] li", "ul[class*='qna_list'] > li",
		},
		SelQnAQuestion: {
			"div._3z6gI4vI6l", "[class*='inquiryQuestion']", "div[class*='question']",
		},
		SelQnAAnswer: {
			"div._1R_Resfly3", "[class*='inquiryAnswer']", "div[class*='answer']",
		},
		SelQnADate: {
			"span._1hR3urpB6W", "[class*='inquiryDate']", "span[class*='date']",
		},
		SelTabReview: {"a[href*='review']"},
		SelTabQnA:    {"a[href*='inquiry']", "a[href*='qna']"},
	}
}
