package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

type ElasticsearchClient interface {
	EnsureIndex(ctx context.Context, index string, definition map[string]interface{}) error
	IndexDocument(ctx context.Context, index string, id string, document interface{}) error
	Search(ctx context.Context, index string, query map[string]interface{}) ([]map[string]interface{}, error)
	DeleteDocument(ctx context.Context, index string, id string) error
	Close() error
}

type elasticsearchClient struct {
	client *elasticsearch.Client
}

func NewElasticsearchClient(url string) (ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{url},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := es.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("Elasticsearch ping error: %s", res.Status())
	}

	return &elasticsearchClient{client: es}, nil
}

func (e *elasticsearchClient) Close() error {
	// The HTTP transport holds no resources that need releasing.
	return nil
}

// perform runs req and turns an error status into an error, except for the
// statuses listed in allow. The caller owns the returned response body.
func (e *elasticsearchClient) perform(ctx context.Context, op string, req esapi.Request, allow ...int) (*esapi.Response, error) {
	res, err := req.Do(ctx, e.client)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	if res.IsError() {
		for _, code := range allow {
			if res.StatusCode == code {
				return res, nil
			}
		}
		defer res.Body.Close()
		return nil, fmt.Errorf("Elasticsearch %s error: %s", op, res.String())
	}
	return res, nil
}

func encodeBody(v interface{}) (*bytes.Reader, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}
	return bytes.NewReader(data), nil
}

// EnsureIndex creates index with the given settings and mappings unless it
// already exists. Existing mappings are left untouched.
func (e *elasticsearchClient) EnsureIndex(ctx context.Context, index string, definition map[string]interface{}) error {
	res, err := e.perform(ctx, "check index", esapi.IndicesExistsRequest{Index: []string{index}}, http.StatusNotFound)
	if err != nil {
		return err
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}

	body, err := encodeBody(definition)
	if err != nil {
		return err
	}
	// A concurrent creator wins with 400 resource_already_exists_exception.
	res, err = e.perform(ctx, "create index", esapi.IndicesCreateRequest{Index: index, Body: body}, http.StatusBadRequest)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusBadRequest {
		var failure struct {
			Error struct {
				Type string `json:"type"`
			} `json:"error"`
		}
		if err := json.NewDecoder(res.Body).Decode(&failure); err != nil || failure.Error.Type != "resource_already_exists_exception" {
			return fmt.Errorf("Elasticsearch create index error: %s", res.Status())
		}
	}
	return nil
}

func (e *elasticsearchClient) IndexDocument(ctx context.Context, index string, id string, document interface{}) error {
	body, err := encodeBody(document)
	if err != nil {
		return err
	}
	res, err := e.perform(ctx, "index document", esapi.IndexRequest{
		Index:      index,
		DocumentID: id,
		Body:       body,
		Refresh:    "true",
	})
	if err != nil {
		return err
	}
	return res.Body.Close()
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source map[string]interface{} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns the _source of every hit in rank order.
func (e *elasticsearchClient) Search(ctx context.Context, index string, query map[string]interface{}) ([]map[string]interface{}, error) {
	body, err := encodeBody(query)
	if err != nil {
		return nil, err
	}
	res, err := e.perform(ctx, "search", esapi.SearchRequest{
		Index: []string{index},
		Body:  body,
	}, http.StatusNotFound)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	// No index yet means nothing has been indexed.
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}
	results := make([]map[string]interface{}, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		results = append(results, hit.Source)
	}
	return results, nil
}

// DeleteDocument treats a missing document as already deleted.
func (e *elasticsearchClient) DeleteDocument(ctx context.Context, index string, id string) error {
	res, err := e.perform(ctx, "delete document", esapi.DeleteRequest{
		Index:      index,
		DocumentID: id,
		Refresh:    "true",
	}, http.StatusNotFound)
	if err != nil {
		return err
	}
	return res.Body.Close()
}
