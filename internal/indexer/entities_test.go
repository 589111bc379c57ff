package indexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestProduct_Text(t *testing.T) {
	p := Product{
		ID:             "p1",
		Name:           "Arabica beans",
		Description:    "Medium roast",
		CategoryID:     "c1",
		CategoryName:   "Coffee",
		SpecsBlock:     []string{"1kg", " ", "whole bean"},
		Attributes:     map[string][]string{"origin": {"Yemen", "Ethiopia"}, "grind": {"none"}},
		Keywords:       []string{"coffee", "beans"},
		HasActiveOffer: true,
		PriceOld:       ptr(100.0),
		PriceNew:       ptr(80.0),
		Price:          ptr(80.0),
		Currency:       "SAR",
	}

	assert.Equal(t,
		"Name: Arabica beans. Description: Medium roast. Category: Coffee. "+
			"Specs: 1kg, whole bean. Attributes: grind: none; origin: Yemen/Ethiopia. "+
			"Keywords: coffee, beans. Offer: from 100 to 80. Price: 80 SAR",
		p.Text())
}

func TestProduct_TextMinimal(t *testing.T) {
	p := Product{ID: "p1", Name: "Mug", CategoryID: "c9", Price: ptr(12.5)}
	assert.Equal(t, "Name: Mug. Category: c9. Price: 12.5", p.Text())
}

func TestProduct_TextOfferNeedsBothPrices(t *testing.T) {
	p := Product{Name: "Mug", HasActiveOffer: true, PriceOld: ptr(10.0)}
	assert.Equal(t, "Name: Mug", p.Text())
}

func TestProduct_Payload(t *testing.T) {
	p := Product{
		ID:         "p1",
		MerchantID: "m1",
		Name:       "Mug",
		PriceOld:   ptr(50.0),
		PriceNew:   ptr(40.0),
	}
	payload := p.Payload()

	assert.Equal(t, "m1", payload["merchantId"])
	assert.Nil(t, payload["categoryId"])
	assert.Equal(t, []string{}, payload["images"])
	require.NotNil(t, payload["discountPct"])
	assert.Equal(t, 20, *payload["discountPct"].(*int))
}

func TestDiscountPct(t *testing.T) {
	tests := []struct {
		name          string
		before, after *float64
		want          *int
	}{
		{"regular", ptr(200.0), ptr(150.0), ptr(25)},
		{"rounded", ptr(3.0), ptr(2.0), ptr(33)},
		{"price increase floors at zero", ptr(100.0), ptr(120.0), ptr(0)},
		{"missing old", nil, ptr(10.0), nil},
		{"missing new", ptr(10.0), nil, nil},
		{"zero old", ptr(0.0), ptr(10.0), nil},
		{"zero new", ptr(10.0), ptr(0.0), nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DiscountPct(tc.before, tc.after))
		})
	}
}

func TestFAQ_TextAndPayload(t *testing.T) {
	f := FAQ{ID: "f1", MerchantID: "m1", Question: "Shipping?", Answer: "Two days"}

	assert.Equal(t, "Shipping?\nTwo days", f.Text())
	assert.Equal(t, "faq", f.Payload()["type"])
	assert.Equal(t, "f1", f.Payload()["faqId"])
}

func TestBotFAQ_PayloadHasNoMerchant(t *testing.T) {
	f := BotFAQ{ID: "b1", Question: "q", Answer: "a"}
	payload := f.Payload()

	assert.NotContains(t, payload, "merchantId")
	assert.Equal(t, "manual", payload["source"])
}

func TestPointID_Deterministic(t *testing.T) {
	assert.Equal(t, PointID("faqs", "x"), PointID("faqs", "x"))
	assert.NotEqual(t, PointID("faqs", "x"), PointID("products", "x"))
}
