package database

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/models"
)

// DB is the global database instance
var DB *gorm.DB

// DBType stores the current database type for use in other functions
var DBType string

// Models lists every table the recommender owns, in migration order
func Models() []interface{} {
	return []interface{}{
		&models.Track{},
		&models.Collection{},
		&models.CollectionTrack{},
		&models.SearchCache{},
		&models.QuotaTracker{},
		&models.RecommendationRun{},
	}
}

// InitDB opens the configured database, tunes the pool and migrates the schema
func InitDB(cfg config.Database) (*gorm.DB, error) {
	DBType = cfg.Type

	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}
	if cfg.LogQueries {
		gormCfg.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var db *gorm.DB
	var err error

	if cfg.Type == "sqlite" {
		db, err = initSQLite(cfg, gormCfg)
	} else {
		db, err = initMySQL(cfg, gormCfg)
	}
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Type == "sqlite" {
		// SQLite: allow a small pool for read concurrency
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxLifetime(time.Hour)

		sqlDB.Exec("PRAGMA foreign_keys = ON")
		sqlDB.Exec("PRAGMA journal_mode = WAL")
		sqlDB.Exec("PRAGMA synchronous = NORMAL")
		sqlDB.Exec("PRAGMA cache_size = -64000")
		sqlDB.Exec("PRAGMA busy_timeout = 5000")

		var integrityResult string
		sqlDB.QueryRow("PRAGMA integrity_check").Scan(&integrityResult)
		if integrityResult != "ok" {
			logger.Warn("Database integrity check failed", logger.String("result", integrityResult))
		}
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	DB = db
	logger.Info("Database connected", logger.String("type", cfg.Type))

	return db, nil
}

// Migrate creates or updates every recommender table
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	// Supports the needing-sync scan
	migrator := db.Migrator()
	if !migrator.HasIndex(&models.Collection{}, "idx_collections_sync_state") {
		if err := db.Exec(`CREATE INDEX idx_collections_sync_state ON collections(sync_complete, last_synced_at)`).Error; err != nil {
			logger.Warn("Could not create collections sync index", logger.ErrorField(err))
		}
	}

	return nil
}

func initSQLite(cfg config.Database, gormCfg *gorm.Config) (*gorm.DB, error) {
	dbPath := cfg.Path
	if dbPath == "" {
		dbPath = "data/cratedig.db"
	}

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("Opening SQLite database", logger.String("path", dbPath))
	db, err := gorm.Open(sqlite.Open(dbPath), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SQLite database: %w", err)
	}

	return db, nil
}

// MySQLDSN builds the connection string from DATABASE_URL or the individual DB_* settings
func MySQLDSN(cfg config.Database) (string, error) {
	if cfg.URL != "" {
		return cfg.URL, nil
	}

	missingVars := []string{}
	if cfg.User == "" {
		missingVars = append(missingVars, "DB_USER")
	}
	if cfg.Password == "" {
		missingVars = append(missingVars, "DB_PASS")
	}
	if cfg.Host == "" {
		missingVars = append(missingVars, "DB_HOST")
	}
	if cfg.Port == "" {
		missingVars = append(missingVars, "DB_PORT")
	}
	if cfg.Name == "" {
		missingVars = append(missingVars, "DB_NAME")
	}

	if len(missingVars) > 0 {
		return "", fmt.Errorf("missing required environment variables: %s. Either set DATABASE_URL or all of: DB_USER, DB_PASS, DB_HOST, DB_PORT, DB_NAME", strings.Join(missingVars, ", "))
	}

	return cfg.User + ":" + cfg.Password + "@tcp(" + cfg.Host + ":" + cfg.Port + ")/" + cfg.Name + "?parseTime=true&allowNativePasswords=true", nil
}

func initMySQL(cfg config.Database, gormCfg *gorm.Config) (*gorm.DB, error) {
	dsn, err := MySQLDSN(cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("Opening MySQL database connection")
	db, err := gorm.Open(mysql.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	return db, nil
}

// ShutdownDB performs a clean shutdown of the database connection
func ShutdownDB() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("error getting database connection: %w", err)
	}

	// Checkpoint WAL before closing (SQLite only)
	if DBType == "sqlite" {
		sqlDB.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("error closing database connection: %w", err)
	}

	logger.Info("Database connection closed")
	return nil
}
