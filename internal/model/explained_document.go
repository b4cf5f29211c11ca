package model

import "time"

// ExplainedDocument 代表存储在 Elasticsearch 中的一份已解释文档。
type ExplainedDocument struct {
	DocID       string    `json:"doc_id"`
	UserID      uint      `json:"user_id"`
	FileName    string    `json:"file_name"`
	TextContent string    `json:"text_content"`
	Explanation string    `json:"explanation"`
	ObjectName  string    `json:"object_name,omitempty"` // 归档到 MinIO 的对象名，未归档时为空
	CreatedAt   time.Time `json:"created_at"`
}

// SearchResponseDTO 定义了返回给前端的检索结果结构。
type SearchResponseDTO struct {
	DocID       string    `json:"docId"`
	FileName    string    `json:"fileName"`
	Snippet     string    `json:"snippet"`
	Explanation string    `json:"explanation"`
	Score       float64   `json:"score"`
	CreatedAt   LocalTime `json:"createdAt"`
}
