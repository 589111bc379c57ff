package events

import (
	"context"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"

	"github.com/kaleem-ai/vectorsearch/internal/indexer"
	"github.com/kaleem-ai/vectorsearch/internal/logger"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// Indexer is the write side the handler drives.
type Indexer interface {
	IndexProducts(ctx context.Context, products []indexer.Product) (*indexer.IndexResult, error)
	IndexOffers(ctx context.Context, offers []indexer.Offer) (*indexer.IndexResult, error)
	IndexFAQs(ctx context.Context, faqs []indexer.FAQ) (*indexer.IndexResult, error)
	IndexBotFAQs(ctx context.Context, faqs []indexer.BotFAQ) (*indexer.IndexResult, error)
	IndexDocument(ctx context.Context, doc indexer.Document) (*indexer.IndexResult, error)
	IndexWebPage(ctx context.Context, page indexer.WebPage) (*indexer.IndexResult, error)

	RemoveProducts(ctx context.Context, ids []string) error
	RemoveEntity(ctx context.Context, collection, id string) error
	RemoveByMerchant(ctx context.Context, collection, merchantID string) error
	RemoveDocument(ctx context.Context, merchantID, documentID string) error
	RemoveWebPage(ctx context.Context, merchantID, url string) error
}

// Handler applies events to the index.
type Handler struct {
	indexer Indexer
	logger  *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(idx Indexer, log *zap.Logger) *Handler {
	return &Handler{indexer: idx, logger: logger.OrNop(log)}
}

// Handle applies one event. Malformed events return ErrInvalidEvent.
func (h *Handler) Handle(ctx context.Context, e Event) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.Action == ActionDelete {
		return h.remove(ctx, e)
	}
	return h.index(ctx, e)
}

func (h *Handler) index(ctx context.Context, e Event) error {
	var (
		result *indexer.IndexResult
		err    error
	)

	switch e.Entity {
	case EntityProduct:
		var products []indexer.Product
		if err := decodeList(e.Data, &products); err != nil {
			return err
		}
		for i := range products {
			products[i].MerchantID = orDefault(products[i].MerchantID, e.MerchantID)
		}
		result, err = h.indexer.IndexProducts(ctx, products)

	case EntityOffer:
		var offers []indexer.Offer
		if err := decodeList(e.Data, &offers); err != nil {
			return err
		}
		for i := range offers {
			offers[i].MerchantID = orDefault(offers[i].MerchantID, e.MerchantID)
		}
		result, err = h.indexer.IndexOffers(ctx, offers)

	case EntityFAQ:
		var faqs []indexer.FAQ
		if err := decodeList(e.Data, &faqs); err != nil {
			return err
		}
		for i := range faqs {
			faqs[i].MerchantID = orDefault(faqs[i].MerchantID, e.MerchantID)
		}
		result, err = h.indexer.IndexFAQs(ctx, faqs)

	case EntityBotFAQ:
		var faqs []indexer.BotFAQ
		if err := decodeList(e.Data, &faqs); err != nil {
			return err
		}
		result, err = h.indexer.IndexBotFAQs(ctx, faqs)

	case EntityDocument:
		var doc indexer.Document
		if err := decode(e.Data, &doc); err != nil {
			return err
		}
		doc.MerchantID = orDefault(doc.MerchantID, e.MerchantID)
		if doc.ID == "" || doc.MerchantID == "" {
			return fmt.Errorf("%w: document needs id and merchantId", ErrInvalidEvent)
		}
		result, err = h.indexer.IndexDocument(ctx, doc)

	case EntityWeb:
		var page indexer.WebPage
		if err := decode(e.Data, &page); err != nil {
			return err
		}
		page.MerchantID = orDefault(page.MerchantID, e.MerchantID)
		if page.URL == "" || page.MerchantID == "" {
			return fmt.Errorf("%w: web page needs url and merchantId", ErrInvalidEvent)
		}
		result, err = h.indexer.IndexWebPage(ctx, page)
	}
	if err != nil {
		return err
	}

	if result != nil {
		h.logger.Debug("Applied index event",
			zap.String("entity", e.Entity),
			zap.Int("indexed", result.Indexed),
			zap.Int("skipped", result.Skipped),
		)
	}
	return nil
}

// collectionOf maps entity kinds removed by id or merchant.
var collectionOf = map[string]string{
	EntityProduct:  storage.CollectionProducts,
	EntityOffer:    storage.CollectionOffers,
	EntityFAQ:      storage.CollectionFAQs,
	EntityBotFAQ:   storage.CollectionBotFAQs,
	EntityDocument: storage.CollectionDocuments,
	EntityWeb:      storage.CollectionWeb,
}

func (h *Handler) remove(ctx context.Context, e Event) error {
	if len(e.IDs) == 0 {
		return h.indexer.RemoveByMerchant(ctx, collectionOf[e.Entity], e.MerchantID)
	}

	switch e.Entity {
	case EntityProduct:
		return h.indexer.RemoveProducts(ctx, e.IDs)
	case EntityDocument, EntityWeb:
		if e.MerchantID == "" {
			return fmt.Errorf("%w: %s delete needs merchantId", ErrInvalidEvent, e.Entity)
		}
		for _, id := range e.IDs {
			var err error
			if e.Entity == EntityDocument {
				err = h.indexer.RemoveDocument(ctx, e.MerchantID, id)
			} else {
				err = h.indexer.RemoveWebPage(ctx, e.MerchantID, id)
			}
			if err != nil {
				return err
			}
		}
		return nil
	default:
		for _, id := range e.IDs {
			if err := h.indexer.RemoveEntity(ctx, collectionOf[e.Entity], id); err != nil {
				return err
			}
		}
		return nil
	}
}

// decodeList decodes one object or an array of objects into out, a pointer
// to a slice.
func decodeList(data any, out any) error {
	if m, ok := data.(map[string]any); ok {
		data = []any{m}
	}
	return decode(data, out)
}

func decode(data any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(data); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrInvalidEvent, err)
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
