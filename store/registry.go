package store

import (
	"fmt"
	"sync"

	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/modelgate/modelgate/auth"
	"github.com/modelgate/modelgate/config"
)

// Factory builds a token store from configuration.
type Factory func(cfg *config.Config) (auth.TokenStore, error)

// DialectorOpener returns a gorm dialector for a DSN.
type DialectorOpener = func(string) gorm.Dialector

var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	dialectors = make(map[string]DialectorOpener)
)

// RegisterBackend adds a store backend under a name usable as the
// configured store_backend.
func RegisterBackend(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// RegisterDialector adds a SQL dialect for the gorm backend, selected by
// the configured db_type.
func RegisterDialector(name string, opener DialectorOpener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	dialectors[name] = opener
}

func init() {
	RegisterBackend("file", func(cfg *config.Config) (auth.TokenStore, error) {
		return NewFileStore(cfg.AuthDir)
	})
	RegisterBackend("gorm", openGorm)
	RegisterBackend("redis", func(cfg *config.Config) (auth.TokenStore, error) {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return NewRedisStore(client), nil
	})

	RegisterDialector("sqlite", sqlite.Open)
	RegisterDialector("postgres", postgres.Open)
	RegisterDialector("mysql", mysql.Open)
}

// Open builds the token store named by cfg.StoreBackend.
func Open(cfg *config.Config) (auth.TokenStore, error) {
	registryMu.RLock()
	factory, ok := backends[cfg.StoreBackend]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown backend %q", cfg.StoreBackend)
	}
	return factory(cfg)
}

func openGorm(cfg *config.Config) (auth.TokenStore, error) {
	registryMu.RLock()
	opener, ok := dialectors[cfg.DBType]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: unknown db type %q", cfg.DBType)
	}

	db, err := gorm.Open(opener(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return NewGormStore(db)
}
