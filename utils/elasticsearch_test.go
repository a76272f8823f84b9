package utils

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElasticsearchIndexSearchDelete(t *testing.T) {
	url := os.Getenv("ELASTICSEARCH_URL")
	if url == "" {
		t.Skip("ELASTICSEARCH_URL not set")
	}
	client, err := NewElasticsearchClient(url)
	require.NoError(t, err)
	defer client.Close()

	ctx := context.Background()
	index := "practitioners-test-" + uuid.NewString()[:8]
	doc := map[string]interface{}{"id": 1, "name": "Jane Doe", "specialty": "anxiety"}

	hits, err := client.Search(ctx, index, map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}})
	require.NoError(t, err, "searching a missing index returns no hits")
	assert.Empty(t, hits)

	definition := map[string]interface{}{
		"mappings": map[string]interface{}{
			"properties": map[string]interface{}{
				"id":        map[string]interface{}{"type": "long"},
				"name":      map[string]interface{}{"type": "text"},
				"specialty": map[string]interface{}{"type": "text"},
			},
		},
	}
	require.NoError(t, client.EnsureIndex(ctx, index, definition))
	require.NoError(t, client.EnsureIndex(ctx, index, definition), "existing index is kept")

	require.NoError(t, client.IndexDocument(ctx, index, "1", doc))

	hits, err = client.Search(ctx, index, map[string]interface{}{
		"query": map[string]interface{}{
			"match": map[string]interface{}{"specialty": "anxiety"},
		},
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Jane Doe", hits[0]["name"])

	require.NoError(t, client.DeleteDocument(ctx, index, "1"))
	// Deleting a missing document is not an error.
	assert.NoError(t, client.DeleteDocument(ctx, index, "1"))
}
