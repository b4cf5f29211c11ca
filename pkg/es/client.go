// Package es 提供了与 Elasticsearch 交互的客户端功能。
package es

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"vyapar-go/internal/config"
	"vyapar-go/internal/model"
	"vyapar-go/pkg/log"
)

const snippetLen = 200

// Index 封装了已解释文档所在的索引。
type Index struct {
	client *elasticsearch.Client
	name   string
}

// NewIndex 初始化 Elasticsearch 客户端，并在索引不存在时创建它。
func NewIndex(esCfg config.ElasticsearchConfig) (*Index, error) {
	var addrs []string
	for _, a := range strings.Split(esCfg.Addresses, ",") {
		if a = strings.TrimSpace(a); a != "" {
			addrs = append(addrs, a)
		}
	}
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: addrs,
		Username:  esCfg.Username,
		Password:  esCfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
	})
	if err != nil {
		return nil, err
	}
	idx := &Index{client: client, name: esCfg.IndexName}
	if err := idx.createIfNotExists(); err != nil {
		return nil, err
	}
	return idx, nil
}

// createIfNotExists 检查索引是否存在，如果不存在则创建它
func (i *Index) createIfNotExists() error {
	res, err := i.client.Indices.Exists([]string{i.name})
	if err != nil {
		return fmt.Errorf("检查索引是否存在时出错: %w", err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		log.Infof("索引 '%s' 已存在", i.name)
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("检查索引是否存在时收到意外的状态码: %d", res.StatusCode)
	}

	mapping := `{
		"mappings": {
			"properties": {
				"doc_id": { "type": "keyword" },
				"user_id": { "type": "long" },
				"file_name": { "type": "text", "fields": { "raw": { "type": "keyword" } } },
				"text_content": { "type": "text" },
				"explanation": { "type": "text" },
				"object_name": { "type": "keyword" },
				"created_at": { "type": "date" }
			}
		}
	}`
	res, err = i.client.Indices.Create(i.name, i.client.Indices.Create.WithBody(strings.NewReader(mapping)))
	if err != nil {
		return fmt.Errorf("创建索引 '%s' 失败: %w", i.name, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		log.Errorf("创建索引 '%s' 时 Elasticsearch 返回错误: %s", i.name, res.String())
		return errors.New("创建索引时 Elasticsearch 返回错误")
	}
	log.Infof("索引 '%s' 创建成功", i.name)
	return nil
}

// IndexDocument 将一份已解释文档写入索引。
func (i *Index) IndexDocument(ctx context.Context, doc model.ExplainedDocument) error {
	docBytes, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      i.name,
		DocumentID: doc.DocID,
		Body:       bytes.NewReader(docBytes),
		Refresh:    "true",
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		log.Errorf("索引文档到 Elasticsearch 出错: %s", res.String())
		return errors.New("failed to index document")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score     float64                 `json:"_score"`
			Source    model.ExplainedDocument `json:"_source"`
			Highlight map[string][]string     `json:"highlight"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 在某个用户的文档中做全文检索。
func (i *Index) Search(ctx context.Context, userID uint, query string, size int) ([]model.SearchResponseDTO, error) {
	body := map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": map[string]interface{}{
					"multi_match": map[string]interface{}{
						"query":  query,
						"fields": []string{"text_content", "explanation", "file_name^2"},
					},
				},
				"filter": map[string]interface{}{
					"term": map[string]interface{}{"user_id": userID},
				},
			},
		},
		"highlight": map[string]interface{}{
			"fields": map[string]interface{}{
				"text_content": map[string]interface{}{"fragment_size": snippetLen, "number_of_fragments": 1},
			},
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	res, err := i.client.Search(
		i.client.Search.WithContext(ctx),
		i.client.Search.WithIndex(i.name),
		i.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search returned error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	results := make([]model.SearchResponseDTO, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		snippet := ""
		if frags := h.Highlight["text_content"]; len(frags) > 0 {
			snippet = frags[0]
		} else {
			snippet = firstRunes(h.Source.TextContent, snippetLen)
		}
		results = append(results, model.SearchResponseDTO{
			DocID:       h.Source.DocID,
			FileName:    h.Source.FileName,
			Snippet:     snippet,
			Explanation: h.Source.Explanation,
			Score:       h.Score,
			CreatedAt:   model.LocalTime(h.Source.CreatedAt),
		})
	}
	return results, nil
}

func firstRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
