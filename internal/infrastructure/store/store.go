package store

import (
	"context"
	"encoding/json"
	"errors"
)

// ErrNotFound 文件不存在
var ErrNotFound = errors.New("store: document not found")

// Op 查詢運算子
type Op string

const (
	OpEqual        Op = "=="
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
)

// Where 單一過濾條件
type Where struct {
	Field string
	Op    Op
	Value interface{}
}

// Query 集合查詢條件
type Query struct {
	Where   []Where
	OrderBy string
	Desc    bool
	Limit   int
}

// Document 儲存的 JSON 文件
type Document struct {
	ID   string
	Data []byte
}

// Decode 將文件內容解析到結構體
func (d Document) Decode(v interface{}) error {
	return json.Unmarshal(d.Data, v)
}

// DocumentStore 文件儲存介面
// 對應外部文件庫的 collection/query 語意，引擎只透過此介面存取資料
type DocumentStore interface {
	// Get 讀取單一文件，不存在時回傳 ErrNotFound
	Get(ctx context.Context, collection, id string) (*Document, error)

	// GetCollection 依查詢條件讀取集合
	GetCollection(ctx context.Context, collection string, q Query) ([]Document, error)

	// Set 寫入文件；merge 為 true 時只覆寫頂層出現的欄位
	Set(ctx context.Context, collection, id string, data interface{}, merge bool) error

	// Add 寫入文件並自動產生 ID
	Add(ctx context.Context, collection string, data interface{}) (string, error)

	// Delete 刪除文件
	Delete(ctx context.Context, collection, id string) error

	// Close 釋放底層資源
	Close() error
}
