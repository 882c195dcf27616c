package agentctx

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// ErrObjectNotFound 对象不存在
var ErrObjectNotFound = errors.New("object not found")

// Object 对象存储中的一个对象
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// ObjectStorage is the blob storage capability (uploaded files, exports).
type ObjectStorage interface {
	Put(ctx context.Context, obj Object) error
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]string, error)
}

// MemoryStorage 进程内对象存储
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]Object
}

var _ ObjectStorage = (*MemoryStorage)(nil)

// NewMemoryStorage creates an empty storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string]Object)}
}

func (s *MemoryStorage) Put(_ context.Context, obj Object) error {
	if obj.Key == "" {
		return errors.New("object key is required")
	}
	obj.Data = append([]byte(nil), obj.Data...)
	s.mu.Lock()
	s.objects[obj.Key] = obj
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) Get(_ context.Context, key string) (*Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	obj.Data = append([]byte(nil), obj.Data...)
	return &obj, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) List(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0)
	for k := range s.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
