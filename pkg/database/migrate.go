package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// migrationsTable 迁移版本表名，与业务表区分
const migrationsTable = "osm_schema_migrations"

// RunMigrations 执行数据库迁移
// 自动检测当前版本并应用所有未执行的迁移；dirty 状态直接返回错误，需人工介入
func RunMigrations(db *sql.DB, logger *zap.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("加载迁移文件失败: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("创建迁移驱动失败: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("初始化迁移实例失败: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("执行迁移失败: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("读取迁移版本失败: %w", err)
	}
	if dirty {
		return fmt.Errorf("数据库迁移处于 dirty 状态 (version=%d)，请人工修复", version)
	}

	logger.Info("数据库迁移完成", zap.Uint("version", version))
	return nil
}
