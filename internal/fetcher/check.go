package fetcher

import "strings"

// PageState is the classification of a loaded storefront page.
type PageState string

const (
	PageSuccess   PageState = "success"
	PageChallenge PageState = "challenge"
	PageError     PageState = "error"
)

var (
	challengeSigns = []string{"보안 확인", "captcha", "보안확인", "정답을 입력"}
	errorSigns     = []string{"429", "시스템 에러", "Error", "에러가 발생", "찾을 수 없", "존재하지 않"}
)

const (
	errorPageMaxLen    = 500
	errorScanPrefix    = 2000
	productPageMinLen  = 2000
	nextDataMarker     = "__NEXT_DATA__"
	productPathMarker  = "/products/"
	accessDeniedMarker = "Access Denied"
)

// HasChallenge reports whether source contains a bot-challenge marker.
func HasChallenge(source string) bool {
	for _, s := range challengeSigns {
		if strings.Contains(source, s) {
			return true
		}
	}
	return false
}

// IsBlocked reports whether a page title signals an explicit deny.
func IsBlocked(title string) bool {
	return strings.Contains(title, accessDeniedMarker)
}

// ClassifyPage decides whether a loaded page is usable. Checks run in a
// fixed order: challenge, short error page, embedded data, product-like
// content.
func ClassifyPage(pageURL, title, source string) PageState {
	if HasChallenge(source) {
		return PageChallenge
	}

	if len(source) < errorPageMaxLen && containsAny(title, source, errorSigns) {
		return PageError
	}

	if strings.Contains(source, nextDataMarker) {
		return PageSuccess
	}

	if strings.Contains(pageURL, productPathMarker) && len(source) > productPageMinLen {
		return PageSuccess
	}

	return PageError
}

// ChallengeCleared reports whether a page that showed a challenge now
// shows real content.
func ChallengeCleared(source string) bool {
	if HasChallenge(source) {
		return false
	}
	return len(source) > productPageMinLen || strings.Contains(source, nextDataMarker)
}

func containsAny(title, source string, signs []string) bool {
	head := source
	if len(head) > errorScanPrefix {
		head = head[:errorScanPrefix]
	}
	for _, s := range signs {
		if strings.Contains(title, s) || strings.Contains(head, s) {
			return true
		}
	}
	return false
}
