package migration

import (
	"go.uber.org/zap"

	"github.com/Kirito034/DataVita/config"
)

// NewMigratorFromConfig 由元数据库配置创建迁移器
func NewMigratorFromConfig(cfg config.DatabaseConfig, logger *zap.Logger) (*DefaultMigrator, error) {
	dbType, err := ParseDatabaseType(cfg.Driver)
	if err != nil {
		return nil, err
	}
	url := BuildDatabaseURL(dbType, cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password, cfg.SSLMode)
	return NewMigrator(&Config{
		DatabaseType: dbType,
		DatabaseURL:  url,
	}, logger)
}
