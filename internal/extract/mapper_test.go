package extract

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestMapReviewSynonyms(t *testing.T) {
	r, ok := MapReview(decode(t, `{
		"reviewContent": "  배송 빠르고 좋아요  ",
		"writerNickname": "kim***",
		"reviewScore": 4,
		"createDate": "2024-05-01T10:22:33.000+0000",
		"productOption": ["색상: 블랙", "사이즈: L"],
		"helpCount": 7
	}`))
	require.True(t, ok)
	assert.Equal(t, "배송 빠르고 좋아요", r.Content)
	assert.Equal(t, "kim***", r.Author)
	require.NotNil(t, r.Rating)
	assert.Equal(t, 4.0, *r.Rating)
	assert.Equal(t, "2024-05-01", r.Date)
	assert.Equal(t, "색상: 블랙, 사이즈: L", r.Option)
	assert.Equal(t, 7, r.Helpful)

	r, ok = MapReview(decode(t, `{"content": "괜찮아요", "score": "5", "optionText": "단품"}`))
	require.True(t, ok)
	assert.Equal(t, "괜찮아요", r.Content)
	require.NotNil(t, r.Rating)
	assert.Equal(t, 5.0, *r.Rating)
	assert.Equal(t, "단품", r.Option)
}

func TestMapReviewRejectsEmpty(t *testing.T) {
	_, ok := MapReview(decode(t, `{"reviewScore": 5}`))
	assert.False(t, ok)

	_, ok = MapReview("not an object")
	assert.False(t, ok)
}

func TestMapReviewWithoutRating(t *testing.T) {
	r, ok := MapReview(decode(t, `{"content": "별점 없는 리뷰", "author": "lee**"}`))
	require.True(t, ok)
	assert.Nil(t, r.Rating)
}

func TestMapQnA(t *testing.T) {
	q, ok := MapQnA(decode(t, `{
		"inquiryContent": "재입고 예정 있나요?",
		"createDate": "2024-04-02T01:00:00Z",
		"answer": {"answerContent": "다음 주 입고됩니다.", "createDate": "2024-04-03T09:00:00Z", "sellerName": "공식스토어"}
	}`))
	require.True(t, ok)
	assert.Equal(t, "재입고 예정 있나요?", q.Question)
	assert.Equal(t, "2024-04-02", q.QDate)
	assert.Equal(t, "다음 주 입고됩니다.", q.Answer)
	assert.Equal(t, "2024-04-03", q.ADate)
	assert.Equal(t, "공식스토어", q.Seller)
	assert.False(t, q.IsSecret)

	q, ok = MapQnA(decode(t, `{"question": "세탁기 사용 가능한가요?", "reply": " 네, 가능합니다 ", "secretYn": "Y"}`))
	require.True(t, ok)
	assert.Equal(t, "네, 가능합니다", q.Answer)
	assert.True(t, q.IsSecret)

	q, ok = MapQnA(decode(t, `{"content": "배송은 언제 시작되나요?", "isSecret": false}`))
	require.True(t, ok)
	assert.False(t, q.Answered())
	assert.False(t, q.IsSecret)

	_, ok = MapQnA(decode(t, `{"answer": "질문이 없는 답변"}`))
	assert.False(t, ok)
}

func TestItemLists(t *testing.T) {
	flat := ItemLists(decode(t, `{"contents": [{"a": 1}, {"a": 2}], "totalElements": 2}`))
	require.Len(t, flat, 1)
	assert.Len(t, flat[0], 2)

	paged := ItemLists(decode(t, `{"pages": [{"contents": [{"a": 1}]}, {"reviews": [{"a": 2}, {"a": 3}]}, {"other": []}]}`))
	require.Len(t, paged, 2)
	assert.Len(t, paged[0], 1)
	assert.Len(t, paged[1], 2)

	bare := ItemLists(decode(t, `[{"a": 1}]`))
	require.Len(t, bare, 1)

	assert.Empty(t, ItemLists(decode(t, `{"contents": []}`)))
	assert.Empty(t, ItemLists(nil))
}

func TestProductFromPagePropsPartial(t *testing.T) {
	props := decode(t, `{
		"product": {
			"name": "무선 이어폰",
			"salePrice": 129000,
			"productImages": [{"url": "//shop-phinf.pstatic.net/a.jpg"}, "http://shop-phinf.pstatic.net/b.jpg"],
			"productAttributes": [{"attributeName": "색상", "attributeValue": "화이트"}, {"attributeName": "무게"}]
		}
	}`).(map[string]any)

	rec := ProductFromPageProps(props)
	assert.Equal(t, "무선 이어폰", rec.Title)
	assert.Equal(t, "129,000원", rec.Price)
	assert.Nil(t, rec.Rating)
	assert.Nil(t, rec.ReviewCount)
	assert.Equal(t, []string{"https://shop-phinf.pstatic.net/a.jpg", "https://shop-phinf.pstatic.net/b.jpg"}, rec.DetailImageURLs)
	assert.Equal(t, []string{"색상: 화이트"}, rec.Specifications)
}

func TestProductFromPagePropsMistyped(t *testing.T) {
	props := decode(t, `{"product": {"name": 42, "salePrice": "n/a", "reviewAmount": "many"}, "productName": "대체 이름"}`).(map[string]any)

	assert.NotPanics(t, func() {
		rec := ProductFromPageProps(props)
		assert.Equal(t, "42", rec.Title)
		assert.Empty(t, rec.Price)
		assert.Nil(t, rec.Rating)
	})
}

func TestProductFromPagePropsDetailImages(t *testing.T) {
	props := decode(t, `{
		"product": {
			"name": "t",
			"detailContents": "<img src=\"https://img.example.com/d1.png\"><img src=\"https://img.example.com/d1.png\"><img src=\"https://img.example.com/d2.webp\">",
			"productImages": [{"url": "https://img.example.com/thumb.jpg"}],
			"reviewAmount": {"averageReviewScore": 4.7, "totalReviewCount": 321}
		}
	}`).(map[string]any)

	rec := ProductFromPageProps(props)
	assert.Equal(t, []string{"https://img.example.com/d1.png", "https://img.example.com/d2.webp"}, rec.DetailImageURLs)
	require.NotNil(t, rec.Rating)
	assert.Equal(t, 4.7, *rec.Rating)
	require.NotNil(t, rec.ReviewCount)
	assert.Equal(t, 321, *rec.ReviewCount)
}

func TestEmbeddedRecordsDehydrated(t *testing.T) {
	props := decode(t, `{
		"dehydratedState": {"queries": [
			{"state": {"data": {"contents": [{"reviewContent": "정말 좋아요", "reviewScore": 5}]}}},
			{"state": {"data": {"contents": [{"inquiryContent": "배송 문의", "answer": "출고됐습니다"}]}}}
		]}
	}`).(map[string]any)

	revs := embeddedRecords(props, []string{"reviews"}, looksLikeReview, MapReview)
	require.Len(t, revs, 1)
	assert.Equal(t, "정말 좋아요", revs[0].Content)

	pairs := embeddedRecords(props, []string{"inquiries"}, looksLikeInquiry, MapQnA)
	require.Len(t, pairs, 1)
	assert.Equal(t, "배송 문의", pairs[0].Question)
	assert.Equal(t, "출고됐습니다", pairs[0].Answer)
}

func TestFindTokens(t *testing.T) {
	props := decode(t, `{"channel": {"channelNo": 100200}, "product": {"id": 5555, "originProductNo": "7777"}}`).(map[string]any)
	tok := FindTokens(props)
	assert.True(t, tok.OK())
	assert.Equal(t, "100200", tok.MerchantNo)
	assert.Equal(t, "7777", tok.OriginProductNo)

	tok = FindTokens(decode(t, `{"product": {"id": 5555}}`).(map[string]any))
	assert.False(t, tok.OK())
	assert.Equal(t, "5555", tok.OriginProductNo)
}
