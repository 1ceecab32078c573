package pebble_service

import (
	"fmt"
	"log"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
)

const (
	CollectionIdentity  = "identity"   // 设备身份与最近一次连接的服务端地址
	CollectionSendQueue = "send_queue" // 离线发送队列
)

// Config Pebble 配置
type Config struct {
	DBPath string `yaml:"db_path" json:"db_path"` // 数据库文件路径
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		DBPath: "./data/local_pebble",
	}
}

// CollectionManager 集合管理器，每个集合一个独立的 pebble 实例
type CollectionManager struct {
	mu          sync.RWMutex
	collections map[string]*pebble.DB
	basePath    string
}

// NewCollectionManager 创建集合管理器
func NewCollectionManager(basePath string) *CollectionManager {
	return &CollectionManager{
		collections: make(map[string]*pebble.DB),
		basePath:    basePath,
	}
}

// GetCollection 获取指定集合的数据库实例，首次访问时打开
func (cm *CollectionManager) GetCollection(collectionName string) (*pebble.DB, error) {
	cm.mu.RLock()
	if db, exists := cm.collections[collectionName]; exists {
		cm.mu.RUnlock()
		return db, nil
	}
	cm.mu.RUnlock()

	cm.mu.Lock()
	defer cm.mu.Unlock()

	// 双重检查，防止并发创建
	if db, exists := cm.collections[collectionName]; exists {
		return db, nil
	}

	dbPath := filepath.Join(cm.basePath, collectionName)

	// 本地状态很小，缓存和内存表按客户端规模配置
	cache := pebble.NewCache(4 << 20)
	defer cache.Unref()
	opts := &pebble.Options{
		Cache:              cache,
		FormatMajorVersion: pebble.FormatNewest,
		MaxOpenFiles:       256,
		MemTableSize:       4 << 20,
	}

	db, err := pebble.Open(dbPath, opts)
	if err != nil {
		return nil, fmt.Errorf("打开集合 %s 的数据库失败: %w", collectionName, err)
	}

	cm.collections[collectionName] = db
	log.Printf("✅ 集合 %s 数据库初始化成功: %s", collectionName, dbPath)

	return db, nil
}

// CloseAll 关闭所有集合的数据库
func (cm *CollectionManager) CloseAll() error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	var errs []string
	for collectionName, db := range cm.collections {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Sprintf("关闭集合 %s 失败: %v", collectionName, err))
		}
	}

	cm.collections = make(map[string]*pebble.DB)

	if len(errs) > 0 {
		return fmt.Errorf("关闭数据库时发生错误: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ListCollections 列出所有已打开的集合
func (cm *CollectionManager) ListCollections() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	collections := make([]string, 0, len(cm.collections))
	for name := range cm.collections {
		collections = append(collections, name)
	}
	sort.Strings(collections)
	return collections
}
