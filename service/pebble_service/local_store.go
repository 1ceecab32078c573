package pebble_service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"display-push-service/models"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
)

var (
	keyDeviceID     = []byte("device_id")
	keyLastEndpoint = []byte("last_endpoint")
	keyQueue        = []byte("queue")
)

// LocalStore 客户端本地持久化：设备 ID、最近的服务端地址、离线发送队列
type LocalStore struct {
	collectionMgr *CollectionManager
	mu            sync.Mutex
	path          string
}

func NewLocalStore(config *Config) *LocalStore {
	if config == nil {
		config = DefaultConfig()
	}
	return &LocalStore{
		path:          config.DBPath,
		collectionMgr: NewCollectionManager(config.DBPath),
	}
}

func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.Printf("🛑 正在关闭本地 Pebble 数据库: %s", s.path)
	return s.collectionMgr.CloseAll()
}

// DeviceID returns the persisted device id, generating and storing one on first run.
func (s *LocalStore) DeviceID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.collectionMgr.GetCollection(CollectionIdentity)
	if err != nil {
		return "", err
	}
	id, err := getString(db, keyDeviceID)
	if err != nil {
		return "", fmt.Errorf("读取设备ID失败: %w", err)
	}
	if id != "" {
		return id, nil
	}

	id = uuid.NewString()
	if err := db.Set(keyDeviceID, []byte(id), pebble.Sync); err != nil {
		return "", fmt.Errorf("保存设备ID失败: %w", err)
	}
	log.Printf("🆔 首次运行，生成设备ID: %s", id)
	return id, nil
}

func (s *LocalStore) LastEndpoint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.collectionMgr.GetCollection(CollectionIdentity)
	if err != nil {
		return "", err
	}
	return getString(db, keyLastEndpoint)
}

func (s *LocalStore) SetLastEndpoint(endpoint string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.collectionMgr.GetCollection(CollectionIdentity)
	if err != nil {
		return err
	}
	if err := db.Set(keyLastEndpoint, []byte(endpoint), pebble.Sync); err != nil {
		return fmt.Errorf("保存服务端地址失败: %w", err)
	}
	return nil
}

// LoadQueue 读取离线队列，不存在时返回空列表
func (s *LocalStore) LoadQueue() ([]models.QueuedSendRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.collectionMgr.GetCollection(CollectionSendQueue)
	if err != nil {
		return nil, err
	}
	value, closer, err := db.Get(keyQueue)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return []models.QueuedSendRequest{}, nil
		}
		return nil, fmt.Errorf("读取离线队列失败: %w", err)
	}
	defer closer.Close()

	var items []models.QueuedSendRequest
	if err := json.Unmarshal(value, &items); err != nil {
		return nil, fmt.Errorf("反序列化离线队列失败: %w", err)
	}
	return items, nil
}

// SaveQueue 整体覆盖写入，保持队列顺序
func (s *LocalStore) SaveQueue(items []models.QueuedSendRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	db, err := s.collectionMgr.GetCollection(CollectionSendQueue)
	if err != nil {
		return err
	}
	if items == nil {
		items = []models.QueuedSendRequest{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("序列化离线队列失败: %w", err)
	}
	if err := db.Set(keyQueue, data, pebble.Sync); err != nil {
		return fmt.Errorf("保存离线队列失败: %w", err)
	}
	return nil
}

func (s *LocalStore) ListCollections() []string {
	return s.collectionMgr.ListCollections()
}

func getString(db *pebble.DB, key []byte) (string, error) {
	value, closer, err := db.Get(key)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	defer closer.Close()
	return string(value), nil
}
