package indexer

import (
	"context"
	"fmt"

	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

// RemoveProducts deletes the product points of the given external ids.
func (p *Pipeline) RemoveProducts(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := p.RemoveEntity(ctx, storage.CollectionProducts, id); err != nil {
			return err
		}
	}
	return nil
}

// RemoveEntity deletes the point of one external id.
func (p *Pipeline) RemoveEntity(ctx context.Context, collection, id string) error {
	if id == "" {
		return fmt.Errorf("remove from %s: empty id", collection)
	}
	return p.remove(ctx, collection, storage.Where(storage.FieldMongoID, id))
}

// RemoveByMerchant deletes every point of a merchant in a collection.
func (p *Pipeline) RemoveByMerchant(ctx context.Context, collection, merchantID string) error {
	if merchantID == "" {
		return fmt.Errorf("remove from %s: empty merchant id", collection)
	}
	return p.remove(ctx, collection, storage.Where(storage.FieldMerchantID, merchantID))
}

// RemoveProductsByCategory deletes the merchant's products in one category.
func (p *Pipeline) RemoveProductsByCategory(ctx context.Context, merchantID, categoryID string) error {
	if merchantID == "" || categoryID == "" {
		return fmt.Errorf("remove products by category: merchant and category are required")
	}
	return p.remove(ctx, storage.CollectionProducts,
		storage.Where(storage.FieldMerchantID, merchantID).And("categoryId", categoryID))
}

// RemoveWebPage deletes every chunk of a crawled page.
func (p *Pipeline) RemoveWebPage(ctx context.Context, merchantID, url string) error {
	return p.remove(ctx, storage.CollectionWeb,
		storage.Where(storage.FieldMerchantID, merchantID).And("url", url))
}

// RemoveDocument deletes every chunk of a document.
func (p *Pipeline) RemoveDocument(ctx context.Context, merchantID, documentID string) error {
	return p.remove(ctx, storage.CollectionDocuments,
		storage.Where(storage.FieldMerchantID, merchantID).And("documentId", documentID))
}

func (p *Pipeline) remove(ctx context.Context, collection string, f storage.Filter) error {
	if err := p.store.Delete(ctx, collection, f); err != nil {
		return fmt.Errorf("remove from %s: %w", collection, err)
	}
	return nil
}
