// Package resolver turns a raw storefront URL into a canonical product
// identity. It performs no I/O.
package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/StoreScope/internal/types"
)

const (
	coupangProductBase = "https://www.coupang.com/vp/products/"
	coupangReviewAPI   = "https://www.coupang.com/vp/product/reviews"

	naverSmartStoreBase       = "https://smartstore.naver.com"
	naverBrandBase            = "https://brand.naver.com"
	naverMobileSmartStoreBase = "https://m.smartstore.naver.com"
	naverMobileBrandBase      = "https://m.brand.naver.com"

	naverSmartStoreReviewPath = "/i/v1/reviews/paged-reviews"
	naverSmartStoreQnAPath    = "/i/v1/inquiries/paged-inquiries"
	naverBrandReviewPath      = "/n/v1/reviews/paged-reviews"
	naverBrandQnAPath         = "/n/v1/inquiries/paged-inquiries"
)

var (
	coupangPattern = regexp.MustCompile(`coupang\.com/vp/products/(\d+)`)
	naverPattern   = regexp.MustCompile(`(?:smartstore|brand)\.naver\.com/([^/?#]+)/products/(\d+)`)
	allDigits      = regexp.MustCompile(`^\d+$`)
)

// DetectPlatform guesses the storefront from the URL text without
// validating the product path. It returns "" for unknown hosts.
func DetectPlatform(rawURL string) types.Platform {
	u := strings.ToLower(strings.TrimSpace(rawURL))
	switch {
	case strings.Contains(u, "coupang.com"):
		return types.PlatformCoupang
	case strings.Contains(u, "smartstore.naver.com"),
		strings.Contains(u, "brand.naver.com"),
		strings.Contains(u, "shopping.naver.com"):
		return types.PlatformNaver
	default:
		return ""
	}
}

// Resolve parses rawURL into a ProductIdentity. It returns an
// *types.InvalidURLError if the URL is not a known product page.
func Resolve(rawURL string) (*types.ProductIdentity, error) {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return nil, &types.InvalidURLError{Raw: rawURL, Reason: "empty URL"}
	}

	switch DetectPlatform(raw) {
	case types.PlatformCoupang:
		return resolveCoupang(raw)
	case types.PlatformNaver:
		return resolveNaver(raw)
	default:
		return nil, &types.InvalidURLError{Raw: rawURL, Reason: "unsupported storefront (expected coupang.com or smartstore/brand.naver.com)"}
	}
}

func resolveCoupang(raw string) (*types.ProductIdentity, error) {
	m := coupangPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, &types.InvalidURLError{Raw: raw, Reason: "expected https://www.coupang.com/vp/products/{digits}"}
	}

	id := &types.ProductIdentity{
		Platform:     types.PlatformCoupang,
		ProductID:    m[1],
		CanonicalURL: coupangProductBase + m[1],
		Endpoints:    types.Endpoints{Reviews: coupangReviewAPI},
	}

	if u, err := url.Parse(raw); err == nil {
		q := u.Query()
		id.ItemID = digitsOrEmpty(q.Get("itemId"))
		id.VendorItemID = digitsOrEmpty(q.Get("vendorItemId"))
	}
	return id, nil
}

func resolveNaver(raw string) (*types.ProductIdentity, error) {
	m := naverPattern.FindStringSubmatch(raw)
	if m == nil {
		return nil, &types.InvalidURLError{Raw: raw, Reason: "expected https://smartstore.naver.com/{store}/products/{digits} or brand.naver.com"}
	}
	store, productID := m[1], m[2]

	// The API family is chosen from the actual hostname.
	brand := false
	if u, err := url.Parse(raw); err == nil {
		brand = strings.Contains(strings.ToLower(u.Hostname()), "brand.naver.com")
	} else {
		brand = strings.Contains(strings.ToLower(raw), "brand.naver.com")
	}

	desktop, mobile := naverSmartStoreBase, naverMobileSmartStoreBase
	reviewPath, qnaPath := naverSmartStoreReviewPath, naverSmartStoreQnAPath
	if brand {
		desktop, mobile = naverBrandBase, naverMobileBrandBase
		reviewPath, qnaPath = naverBrandReviewPath, naverBrandQnAPath
	}

	suffix := "/" + store + "/products/" + productID
	return &types.ProductIdentity{
		Platform:     types.PlatformNaver,
		ProductID:    productID,
		StoreName:    store,
		IsAltDomain:  brand,
		CanonicalURL: desktop + suffix,
		MobileURL:    mobile + suffix,
		Endpoints: types.Endpoints{
			Reviews: desktop + reviewPath,
			QnA:     desktop + qnaPath,
		},
	}, nil
}

func digitsOrEmpty(s string) string {
	if allDigits.MatchString(s) {
		return s
	}
	return ""
}
