package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kaleem-ai/vectorsearch/internal/app"
	"github.com/kaleem-ai/vectorsearch/internal/indexer"
	"github.com/kaleem-ai/vectorsearch/internal/storage"
)

const defaultTopK = 5

// Entity kinds accepted by the index command.
var entityKinds = []string{"product", "offer", "faq", "bot_faq", "document", "web"}

func (c *cli) newEnsureCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ensure",
		Short: "Create missing collections",
		Long: `Creates every collection (` + strings.Join(storage.Collections, ", ") + `)
with the configured vector size and cosine distance, plus the mongoId and
merchantId payload indexes. Existing collections are left untouched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Indexer.EnsureCollections(ctx); err != nil {
					return err
				}
				fmt.Fprintf(c.out, "Collections ready (dim %d)\n", a.Config.Embedding.Dim)
				return nil
			})
		},
	}
}

func (c *cli) newIndexCmd() *cobra.Command {
	var merchantID string

	cmd := &cobra.Command{
		Use:   "index <entity> <file.json>",
		Short: "Index entities from a JSON file",
		Long: `Embeds and upserts the entities in a JSON file. The file holds one object
or an array of objects. Entity is one of: ` + strings.Join(entityKinds, ", ") + `.

Entities with the same id replace their previous vector. --merchant fills
merchantId where an entity has none; documents and web pages require one.

Examples:
  vectorctl index product products.json --merchant 60d21b4667d0d8992e610c85
  vectorctl index document terms.json --merchant m1`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			entity := args[0]
			if !slices.Contains(entityKinds, entity) {
				return fmt.Errorf("unknown entity %q, expected one of %s", entity, strings.Join(entityKinds, ", "))
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[1], err)
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				results, err := indexFile(ctx, a.Indexer, entity, merchantID, data)
				for _, r := range results {
					fmt.Fprintf(c.out, "%s: indexed %d, skipped %d in %d batches (%s)\n",
						r.Collection, r.Indexed, r.Skipped, r.Batches, r.Duration.Round(time.Millisecond))
				}
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "merchant id for entities without one")
	return cmd
}

// indexFile decodes data as entity records and indexes them.
func indexFile(ctx context.Context, p *indexer.Pipeline, entity, merchantID string, data []byte) ([]*indexer.IndexResult, error) {
	switch entity {
	case "product":
		products, err := decodeList[indexer.Product](data)
		if err != nil {
			return nil, err
		}
		for i := range products {
			products[i].MerchantID = orDefault(products[i].MerchantID, merchantID)
		}
		return single(p.IndexProducts(ctx, products))

	case "offer":
		offers, err := decodeList[indexer.Offer](data)
		if err != nil {
			return nil, err
		}
		for i := range offers {
			offers[i].MerchantID = orDefault(offers[i].MerchantID, merchantID)
		}
		return single(p.IndexOffers(ctx, offers))

	case "faq":
		faqs, err := decodeList[indexer.FAQ](data)
		if err != nil {
			return nil, err
		}
		for i := range faqs {
			faqs[i].MerchantID = orDefault(faqs[i].MerchantID, merchantID)
		}
		return single(p.IndexFAQs(ctx, faqs))

	case "bot_faq":
		faqs, err := decodeList[indexer.BotFAQ](data)
		if err != nil {
			return nil, err
		}
		return single(p.IndexBotFAQs(ctx, faqs))

	case "document":
		docs, err := decodeList[indexer.Document](data)
		if err != nil {
			return nil, err
		}
		var results []*indexer.IndexResult
		for _, d := range docs {
			d.MerchantID = orDefault(d.MerchantID, merchantID)
			r, err := p.IndexDocument(ctx, d)
			if err != nil {
				return results, fmt.Errorf("document %s: %w", d.ID, err)
			}
			results = append(results, r)
		}
		return results, nil

	case "web":
		pages, err := decodeList[indexer.WebPage](data)
		if err != nil {
			return nil, err
		}
		var results []*indexer.IndexResult
		for _, pg := range pages {
			pg.MerchantID = orDefault(pg.MerchantID, merchantID)
			r, err := p.IndexWebPage(ctx, pg)
			if err != nil {
				return results, fmt.Errorf("web page %s: %w", pg.URL, err)
			}
			results = append(results, r)
		}
		return results, nil
	}
	return nil, fmt.Errorf("unknown entity %q", entity)
}

// decodeList decodes one JSON object or an array of objects.
func decodeList[T any](data []byte) ([]T, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("input is empty")
	}
	if data[0] == '{' {
		var one T
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return []T{one}, nil
	}
	var list []T
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode array: %w", err)
	}
	return list, nil
}

func single(r *indexer.IndexResult, err error) ([]*indexer.IndexResult, error) {
	if r == nil {
		return nil, err
	}
	return []*indexer.IndexResult{r}, err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (c *cli) newDeleteCmd() *cobra.Command {
	var (
		merchantID string
		ids        []string
	)

	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete vectors by entity id or merchant",
		Long: `Deletes the points of the given entity ids (--id, repeatable) or every point
of a merchant (--merchant) from a collection.

Examples:
  vectorctl delete products --id p1 --id p2
  vectorctl delete web_knowledge --merchant m1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection := args[0]
			if !slices.Contains(storage.Collections, collection) {
				return fmt.Errorf("unknown collection %q, expected one of %s", collection, strings.Join(storage.Collections, ", "))
			}
			if len(ids) == 0 && merchantID == "" {
				return errors.New("either --id or --merchant is required")
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if len(ids) == 0 {
					if err := a.Indexer.RemoveByMerchant(ctx, collection, merchantID); err != nil {
						return err
					}
					fmt.Fprintf(c.out, "Deleted merchant %s from %s\n", merchantID, collection)
					return nil
				}
				for _, id := range ids {
					if err := a.Indexer.RemoveEntity(ctx, collection, id); err != nil {
						return err
					}
				}
				fmt.Fprintf(c.out, "Deleted %d entities from %s\n", len(ids), collection)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "delete every point of this merchant")
	cmd.Flags().StringArrayVar(&ids, "id", nil, "entity id (mongoId) to delete, repeatable")
	return cmd
}

func (c *cli) newSearchCmd() *cobra.Command {
	var (
		merchantID string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "search <collection> <text>",
		Short: "Run a similarity search against one collection",
		Long: `Embeds text and searches one collection. products runs the reranked
product search, bot_faqs the platform FAQ search; other collections print raw
scored candidates after the minimum score filter.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, text := args[0], args[1]
			if !slices.Contains(storage.Collections, collection) {
				return fmt.Errorf("unknown collection %q", collection)
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				switch collection {
				case storage.CollectionProducts:
					res, err := a.Products.SimilarProducts(ctx, merchantID, text, topK)
					if err != nil {
						return err
					}
					return c.printJSON(res)
				case storage.CollectionBotFAQs:
					res, err := a.BotFAQs.Search(ctx, text, topK)
					if err != nil {
						return err
					}
					return c.printJSON(res)
				default:
					res, err := a.Searcher.Query(ctx, collection, text, merchantID, topK)
					if err != nil {
						return err
					}
					if len(res) > topK {
						res = res[:topK]
					}
					return c.printJSON(res)
				}
			})
		},
	}
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "merchant id (required except for bot_faqs)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", defaultTopK, "number of results")
	return cmd
}

func (c *cli) newUnifiedCmd() *cobra.Command {
	var (
		merchantID string
		topK       int
	)

	cmd := &cobra.Command{
		Use:   "unified <query>",
		Short: "Search FAQs, documents and web pages of a merchant together",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if merchantID == "" {
				return errors.New("--merchant is required")
			}
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				res, err := a.Unified.Search(ctx, args[0], merchantID, topK)
				if err != nil {
					return err
				}
				return c.printJSON(res)
			})
		},
	}
	cmd.Flags().StringVarP(&merchantID, "merchant", "m", "", "merchant id")
	cmd.Flags().IntVarP(&topK, "top-k", "k", defaultTopK, "number of results")
	return cmd
}

func (c *cli) newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show point counts per collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.withApp(cmd.Context(), func(ctx context.Context, a *app.App) error {
				if err := a.Store.Health(ctx); err != nil {
					return fmt.Errorf("qdrant health check failed: %w", err)
				}
				fmt.Fprintf(c.out, "Qdrant %s healthy\n\n", a.Store.Addr())

				var total uint64
				for _, name := range storage.Collections {
					info, err := a.Store.CollectionInfo(ctx, name)
					if err != nil {
						fmt.Fprintf(c.out, "  %-15s error: %v\n", name, err)
						continue
					}
					fmt.Fprintf(c.out, "  %-15s %d points\n", name, info.PointsCount)
					total += info.PointsCount
				}
				fmt.Fprintf(c.out, "\n  %-15s %d points\n", "total", total)
				return nil
			})
		},
	}
}
