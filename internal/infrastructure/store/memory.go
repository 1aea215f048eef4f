package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"meal-plan-personalizer/internal/pkg/common"
)

// MemoryStore 記憶體文件儲存
// 供測試與開發環境使用，行為與 badger 後端一致
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string][]byte
}

// NewMemoryStore 創建記憶體儲存
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string][]byte),
	}
}

// Get 讀取單一文件
func (s *MemoryStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs, ok := s.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	data, ok := docs[id]
	if !ok {
		return nil, ErrNotFound
	}

	cp := make([]byte, len(data))
	copy(cp, data)
	return &Document{ID: id, Data: cp}, nil
}

// GetCollection 依查詢條件讀取集合
func (s *MemoryStore) GetCollection(ctx context.Context, collection string, q Query) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]Document, 0, len(s.collections[collection]))
	for id, data := range s.collections[collection] {
		cp := make([]byte, len(data))
		copy(cp, data)
		docs = append(docs, Document{ID: id, Data: cp})
	}

	return applyQuery(docs, q), nil
}

// Set 寫入文件
func (s *MemoryStore) Set(ctx context.Context, collection, id string, data interface{}, merge bool) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		s.collections[collection] = docs
	}

	if merge {
		if existing, ok := docs[id]; ok {
			merged, err := mergeDocuments(existing, payload)
			if err != nil {
				return fmt.Errorf("failed to merge document: %w", err)
			}
			docs[id] = merged
			return nil
		}
	}

	docs[id] = payload
	return nil
}

// Add 寫入文件並自動產生 ID
func (s *MemoryStore) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	id := common.GenerateUUID()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Delete 刪除文件
func (s *MemoryStore) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if docs, ok := s.collections[collection]; ok {
		delete(docs, id)
	}
	return nil
}

// Close 釋放資源
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = make(map[string]map[string][]byte)
	return nil
}
