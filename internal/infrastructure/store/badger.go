package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	badger "github.com/dgraph-io/badger/v4"

	"meal-plan-personalizer/internal/pkg/common"

	"go.uber.org/zap"
)

// BadgerStore badger 後端文件儲存
// 文件以 JSON 形式存放在 collection/id 鍵下，查詢以前綴掃描配合記憶體過濾
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore 開啟 badger 儲存
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}

	common.LogInfo("文件儲存已開啟",
		zap.String("backend", "badger"),
		zap.String("path", path),
	)

	return &BadgerStore{db: db}, nil
}

func documentKey(collection, id string) []byte {
	return []byte(collection + "/" + id)
}

func collectionPrefix(collection string) []byte {
	return []byte(collection + "/")
}

// Get 讀取單一文件
func (s *BadgerStore) Get(ctx context.Context, collection, id string) (*Document, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(documentKey(collection, id))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &Document{ID: id, Data: data}, nil
}

// GetCollection 依查詢條件讀取集合
func (s *BadgerStore) GetCollection(ctx context.Context, collection string, q Query) ([]Document, error) {
	prefix := collectionPrefix(collection)
	var docs []Document

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			data, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			id := strings.TrimPrefix(string(item.Key()), string(prefix))
			docs = append(docs, Document{ID: id, Data: data})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan collection: %w", err)
	}

	return applyQuery(docs, q), nil
}

// Set 寫入文件
func (s *BadgerStore) Set(ctx context.Context, collection, id string, data interface{}, merge bool) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	key := documentKey(collection, id)
	return s.db.Update(func(txn *badger.Txn) error {
		if merge {
			item, err := txn.Get(key)
			if err == nil {
				existing, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				merged, err := mergeDocuments(existing, payload)
				if err != nil {
					return err
				}
				return txn.Set(key, merged)
			}
			if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}
		return txn.Set(key, payload)
	})
}

// Add 寫入文件並自動產生 ID
func (s *BadgerStore) Add(ctx context.Context, collection string, data interface{}) (string, error) {
	id := common.GenerateUUID()
	if err := s.Set(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

// Delete 刪除文件
func (s *BadgerStore) Delete(ctx context.Context, collection, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(documentKey(collection, id))
	})
}

// Close 關閉儲存
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
