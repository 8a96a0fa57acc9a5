package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/francopicc/ameba/app/models"
	"github.com/francopicc/ameba/internal/pkg/env"
	"github.com/francopicc/ameba/internal/pkg/logger"
)

const maxRetries = 5
const retryDelay = 5 * time.Second

// DB is nil when DB_DRIVER=memory.
var DB *gorm.DB

func GetDB() *gorm.DB {
	return DB
}

// UsesMemory reports whether the in-memory store was selected.
func UsesMemory() bool {
	return env.GetEnv("DB_DRIVER", "mysql") == "memory"
}

func DSN() string {
	// "user:pass@tcp(127.0.0.1:3306)/dbname?charset=utf8mb4&parseTime=True&loc=Local"
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		env.GetEnv("DB_USER", ""),
		env.GetEnv("DB_PASSWORD", ""),
		env.GetEnv("DB_HOST", "127.0.0.1"),
		env.GetEnv("DB_PORT", "3306"),
		env.GetEnv("DB_NAME", ""),
	)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
		// duplicate keys surface as gorm.ErrDuplicatedKey
		TranslateError: true,
	}
}

func SetupDatabase() {
	if UsesMemory() {
		logger.L().Warn("DB_DRIVER=memory: data is kept in process memory only")
		return
	}

	var err error
	for i := 0; i < maxRetries; i++ {
		DB, err = gorm.Open(mysql.New(mysql.Config{
			DSN:                       DSN(),
			DefaultStringSize:         256,
			DisableDatetimePrecision:  true,
			DontSupportRenameIndex:    true,
			DontSupportRenameColumn:   true,
			SkipInitializeWithVersion: false,
		}), gormConfig())
		if err == nil {
			if env.IsDev() {
				// migrations/ is authoritative in production
				err = DB.AutoMigrate(
					&models.Identity{},
					&models.ProviderAccount{},
					&models.Client{},
					&models.Product{},
					&models.Payment{},
					&models.Terminal{},
				)
				if err != nil {
					logger.L().Error("auto migration failed", zap.Error(err))
				}
			}
			return
		}

		logger.L().Warn("failed to connect to database",
			zap.Int("attempt", i+1), zap.Int("max_attempts", maxRetries), zap.Error(err))
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}

	if err != nil {
		panic(err)
	}
}
