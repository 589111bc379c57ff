package indexer

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/kaleem-ai/vectorsearch/internal/embedding"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// Entity is anything that can be indexed as one vector point.
// ExternalID is the caller's identifier and is stored as mongoId.
type Entity interface {
	ExternalID() string
	Text() string
	Payload() map[string]any
}

// Payload limits for stored excerpts.
const (
	documentPayloadChars = 2000
	webPayloadChars      = 500
)

// Product is a catalog item as sent by the products service.
type Product struct {
	ID             string              `json:"id"`
	MerchantID     string              `json:"merchantId"`
	Name           string              `json:"name"`
	Description    string              `json:"description"`
	CategoryID     string              `json:"categoryId"`
	CategoryName   string              `json:"categoryName"`
	SpecsBlock     []string            `json:"specsBlock"`
	Attributes     map[string][]string `json:"attributes"`
	Keywords       []string            `json:"keywords"`
	Images         []string            `json:"images"`
	Slug           string              `json:"slug"`
	StorefrontSlug string              `json:"storefrontSlug"`
	Domain         string              `json:"domain"`
	PublicURL      string              `json:"publicUrlStored"`
	Price          *float64            `json:"price"`
	PriceEffective *float64            `json:"priceEffective"`
	Currency       string              `json:"currency"`
	HasActiveOffer bool                `json:"hasActiveOffer"`
	PriceOld       *float64            `json:"priceOld"`
	PriceNew       *float64            `json:"priceNew"`
	OfferStart     string              `json:"offerStart"`
	OfferEnd       string              `json:"offerEnd"`
	IsAvailable    *bool               `json:"isAvailable"`
	Status         string              `json:"status"`
	Quantity       *int                `json:"quantity"`
}

func (p Product) ExternalID() string { return p.ID }

// Text renders the labelled parts of the product joined by ". ".
func (p Product) Text() string {
	var parts []string
	if p.Name != "" {
		parts = append(parts, "Name: "+p.Name)
	}
	if p.Description != "" {
		parts = append(parts, "Description: "+p.Description)
	}
	if category := firstNonEmpty(p.CategoryName, p.CategoryID); category != "" {
		parts = append(parts, "Category: "+category)
	}
	if specs := joinNonEmpty(p.SpecsBlock, ", "); specs != "" {
		parts = append(parts, "Specs: "+specs)
	}
	if len(p.Attributes) > 0 {
		attrs := make([]string, 0, len(p.Attributes))
		for _, k := range slices.Sorted(maps.Keys(p.Attributes)) {
			attrs = append(attrs, k+": "+joinNonEmpty(p.Attributes[k], "/"))
		}
		parts = append(parts, "Attributes: "+strings.Join(attrs, "; "))
	}
	if keywords := joinNonEmpty(p.Keywords, ", "); keywords != "" {
		parts = append(parts, "Keywords: "+keywords)
	}
	if p.HasActiveOffer && p.PriceOld != nil && p.PriceNew != nil {
		parts = append(parts, fmt.Sprintf("Offer: from %s to %s", formatNumber(*p.PriceOld), formatNumber(*p.PriceNew)))
	}
	if p.Price != nil {
		parts = append(parts, strings.TrimSpace("Price: "+formatNumber(*p.Price)+" "+p.Currency))
	}
	return strings.Join(parts, ". ")
}

func (p Product) Payload() map[string]any {
	return map[string]any{
		storage.FieldMerchantID: p.MerchantID,
		"name":                  p.Name,
		"description":           p.Description,
		"categoryId":            nullable(p.CategoryID),
		"categoryName":          nullable(p.CategoryName),
		"specsBlock":            nonNil(p.SpecsBlock),
		"keywords":              nonNil(p.Keywords),
		"images":                nonNil(p.Images),
		"slug":                  nullable(p.Slug),
		"storefrontSlug":        nullable(p.StorefrontSlug),
		"domain":                nullable(p.Domain),
		"publicUrlStored":       nullable(p.PublicURL),
		"price":                 finite(p.Price),
		"priceEffective":        finite(p.PriceEffective),
		"currency":              nullable(p.Currency),
		"hasOffer":              p.HasActiveOffer,
		"priceOld":              p.PriceOld,
		"priceNew":              p.PriceNew,
		"offerStart":            nullable(p.OfferStart),
		"offerEnd":              nullable(p.OfferEnd),
		"discountPct":           DiscountPct(p.PriceOld, p.PriceNew),
		"isAvailable":           p.IsAvailable,
		"status":                nullable(p.Status),
		"quantity":              p.Quantity,
	}
}

// DiscountPct is the rounded percentage saved going from priceOld to
// priceNew, floored at zero. Nil when either price is missing or priceOld
// is not positive.
func DiscountPct(priceOld, priceNew *float64) *int {
	if priceOld == nil || priceNew == nil || *priceOld <= 0 || *priceNew == 0 {
		return nil
	}
	pct := int(math.Round((*priceOld - *priceNew) / *priceOld * 100))
	pct = max(pct, 0)
	return &pct
}

// Offer is a time-boxed price change on a product.
type Offer struct {
	ID          string   `json:"id"`
	MerchantID  string   `json:"merchantId"`
	ProductID   string   `json:"productId"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceOld    *float64 `json:"priceOld"`
	PriceNew    *float64 `json:"priceNew"`
	Currency    string   `json:"currency"`
	Start       string   `json:"start"`
	End         string   `json:"end"`
}

func (o Offer) ExternalID() string { return o.ID }

func (o Offer) Text() string {
	var parts []string
	if o.Name != "" {
		parts = append(parts, "Offer: "+o.Name)
	}
	if o.Description != "" {
		parts = append(parts, "Description: "+o.Description)
	}
	if o.PriceOld != nil && o.PriceNew != nil {
		parts = append(parts, strings.TrimSpace(fmt.Sprintf("Price: from %s to %s %s",
			formatNumber(*o.PriceOld), formatNumber(*o.PriceNew), o.Currency)))
	}
	return strings.Join(parts, ". ")
}

func (o Offer) Payload() map[string]any {
	return map[string]any{
		storage.FieldMerchantID: o.MerchantID,
		"productId":             nullable(o.ProductID),
		"name":                  o.Name,
		"description":           o.Description,
		"priceOld":              o.PriceOld,
		"priceNew":              o.PriceNew,
		"discountPct":           DiscountPct(o.PriceOld, o.PriceNew),
		"currency":              nullable(o.Currency),
		"start":                 nullable(o.Start),
		"end":                   nullable(o.End),
		"type":                  "offer",
	}
}

// FAQ is a merchant question and answer pair.
type FAQ struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchantId"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

func (f FAQ) ExternalID() string { return f.ID }

func (f FAQ) Text() string { return f.Question + "\n" + f.Answer }

func (f FAQ) Payload() map[string]any {
	return map[string]any{
		storage.FieldMerchantID: f.MerchantID,
		"faqId":                 f.ID,
		"question":              f.Question,
		"answer":                f.Answer,
		"type":                  "faq",
		"source":                "manual",
	}
}

// BotFAQ is a platform-wide FAQ answered by the assistant bot. It is not
// scoped to a merchant.
type BotFAQ struct {
	ID       string   `json:"id"`
	Question string   `json:"question"`
	Answer   string   `json:"answer"`
	Source   string   `json:"source"`
	Tags     []string `json:"tags"`
	Locale   string   `json:"locale"`
}

func (f BotFAQ) ExternalID() string { return f.ID }

func (f BotFAQ) Text() string { return f.Question + "\n" + f.Answer }

func (f BotFAQ) Payload() map[string]any {
	return map[string]any{
		"faqId":    f.ID,
		"question": f.Question,
		"answer":   f.Answer,
		"type":     "faq",
		"source":   firstNonEmpty(f.Source, "manual"),
		"tags":     nonNil(f.Tags),
		"locale":   nullable(f.Locale),
	}
}

// Document is an uploaded merchant document, already converted to text or
// markdown.
type Document struct {
	ID         string `json:"id"`
	MerchantID string `json:"merchantId"`
	Content    string `json:"content"`
}

// documentChunk is one indexed slice of a Document.
type documentChunk struct {
	merchantID string
	documentID string
	index      int
	total      int
	headerPath string
	content    string // header path prepended, embedded
	raw        string // stored excerpt
}

func (c documentChunk) ExternalID() string {
	return c.documentID + "#" + strconv.Itoa(c.index)
}

func (c documentChunk) Text() string { return c.content }

func (c documentChunk) Payload() map[string]any {
	return map[string]any{
		storage.FieldMerchantID: c.merchantID,
		"documentId":            c.documentID,
		"text":                  embedding.Truncate(c.raw, documentPayloadChars),
		"headerPath":            nullable(c.headerPath),
		"chunkIndex":            c.index,
		"totalChunks":           c.total,
	}
}

// WebPage is the extracted text of a crawled merchant page.
type WebPage struct {
	MerchantID string `json:"merchantId"`
	URL        string `json:"url"`
	Title      string `json:"title"`
	Text       string `json:"text"`
}

// webChunk is one indexed slice of a WebPage.
type webChunk struct {
	merchantID string
	url        string
	title      string
	index      int
	text       string
}

func (c webChunk) ExternalID() string {
	return c.merchantID + "|" + c.url + "#" + strconv.Itoa(c.index)
}

func (c webChunk) Text() string { return c.text }

func (c webChunk) Payload() map[string]any {
	return map[string]any{
		storage.FieldMerchantID: c.merchantID,
		"url":                   c.url,
		"title":                 nullable(c.title),
		"text":                  embedding.Truncate(c.text, webPayloadChars),
		"chunkIndex":            c.index,
		"type":                  "url",
		"source":                "web",
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func joinNonEmpty(values []string, sep string) string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return strings.Join(out, sep)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// nullable stores empty strings as null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func finite(f *float64) any {
	if f == nil || math.IsNaN(*f) || math.IsInf(*f, 0) {
		return nil
	}
	return *f
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
