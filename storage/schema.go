package storage

import (
	"fmt"
	"strconv"

	"github.com/poiesic/burrow/core"
	"github.com/tmc/langchaingo/schema"
)

// Metadata keys set on documents returned by passage stores.
const (
	MetadataID             = "id"
	MetadataSource         = "source"
	MetadataRelevanceScore = "relevance_score"
)

// FromSchemaDocument converts a langchaingo document into a storable document.
// Metadata values are stored as strings; the "source" key becomes the document source.
func FromSchemaDocument(doc schema.Document) *core.Document {
	record := &core.Document{Content: doc.PageContent}
	if len(doc.Metadata) == 0 {
		return record
	}
	record.Metadata = make(map[string]string, len(doc.Metadata))
	for k, v := range doc.Metadata {
		if k == MetadataSource {
			record.Source = fmt.Sprint(v)
			continue
		}
		record.Metadata[k] = fmt.Sprint(v)
	}
	return record
}

// ToSchemaDocument converts a stored document into a langchaingo document scored with score.
// The score is also recorded under the relevance_score metadata key.
func ToSchemaDocument(doc *core.Document, score float64) schema.Document {
	metadata := make(map[string]any, len(doc.Metadata)+3)
	for k, v := range doc.Metadata {
		metadata[k] = v
	}
	metadata[MetadataID] = FormatID(doc.Id)
	if doc.Source != "" {
		metadata[MetadataSource] = doc.Source
	}
	metadata[MetadataRelevanceScore] = score

	return schema.Document{
		PageContent: doc.Content,
		Metadata:    metadata,
		Score:       float32(score),
	}
}

// FormatID renders an ID the way passage stores report it.
func FormatID(id core.ID) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseID parses an ID rendered by FormatID.
func ParseID(s string) (core.ID, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q", ErrInvalidQuery, s)
	}
	return core.ID(id), nil
}
