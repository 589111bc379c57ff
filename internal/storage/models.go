package storage

// Collection names, one per knowledge type.
const (
	CollectionProducts  = "products"
	CollectionOffers    = "offers"
	CollectionFAQs      = "faqs"
	CollectionDocuments = "documents"
	CollectionWeb       = "web_knowledge"
	CollectionBotFAQs   = "bot_faqs"
)

// Collections lists every collection in the order they are ensured at startup.
var Collections = []string{
	CollectionProducts,
	CollectionOffers,
	CollectionFAQs,
	CollectionDocuments,
	CollectionWeb,
	CollectionBotFAQs,
}

// Payload keys shared by every collection.
const (
	FieldMongoID    = "mongoId"
	FieldMerchantID = "merchantId"
)

// Point is one stored (id, vector, payload) triple.
type Point struct {
	ID      string // UUID
	Vector  []float32
	Payload map[string]any
}

// ScoredPoint is a search hit. Higher Score is more similar.
type ScoredPoint struct {
	ID      string
	Score   float64
	Payload map[string]any
}

// Match is an exact payload equality condition. Value may be a string,
// an integer or a bool.
type Match struct {
	Key   string
	Value any
}

// Filter is a conjunction of matches.
type Filter struct {
	Must []Match
}

// Where starts a filter with a single condition.
func Where(key string, value any) Filter {
	return Filter{Must: []Match{{Key: key, Value: value}}}
}

// And returns a copy of f with one more condition.
func (f Filter) And(key string, value any) Filter {
	must := make([]Match, 0, len(f.Must)+1)
	must = append(must, f.Must...)
	must = append(must, Match{Key: key, Value: value})
	return Filter{Must: must}
}

// IsEmpty reports whether the filter has no conditions.
func (f Filter) IsEmpty() bool {
	return len(f.Must) == 0
}

// SearchQuery is a nearest-neighbour request.
type SearchQuery struct {
	Vector []float32
	Limit  int
	Filter *Filter
}

// CollectionInfo contains collection statistics.
type CollectionInfo struct {
	Name        string
	PointsCount uint64
}
