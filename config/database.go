package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// InitDatabase connects using the loaded configuration and migrates the given models.
// It terminates the process when the database is unreachable.
func InitDatabase(modelDefs ...interface{}) *gorm.DB {
	if db != nil {
		return db
	}

	var err error
	db, err = Open(Get())
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	if err := Migrate(db, modelDefs...); err != nil {
		log.Fatalf("schema migration failed: %v", err)
	}
	return db
}

// Open builds a gorm handle for the configured driver, tunes the pool and pings the server.
func Open(c AppConfig) (*gorm.DB, error) {
	dialector, err := dialectorFor(c)
	if err != nil {
		return nil, err
	}

	// Slow-sql threshold raised to keep info-level logs quiet
	gLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             2 * time.Second,
			LogLevel:                  toGormLogLevel(c.LogLevel),
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                                   gLogger,
		DisableForeignKeyConstraintWhenMigrating: true,
		TranslateError:                           true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	if c.DBDriver == "sqlite" {
		// a single writer avoids "database is locked" under concurrent requests
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetMaxOpenConns(20)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
		sqlDB.SetConnMaxIdleTime(10 * time.Minute)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return conn, nil
}

func dialectorFor(c AppConfig) (gorm.Dialector, error) {
	switch strings.ToLower(c.DBDriver) {
	case "", "mysql":
		dsn := c.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
				c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
		}
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := c.DatabaseURI
		if dsn == "" {
			dsn = fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
		}
		return postgres.Open(dsn), nil
	case "sqlite":
		dsn := c.DatabaseURI
		if dsn == "" {
			dsn = c.DBName + ".db"
		}
		return sqlite.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", c.DBDriver)
	}
}

// Migrate creates missing tables and adds missing columns. Existing columns and indexes are never altered.
func Migrate(conn *gorm.DB, modelDefs ...interface{}) error {
	m := conn.Migrator()
	for _, model := range modelDefs {
		if !m.HasTable(model) {
			if err := conn.AutoMigrate(model); err != nil {
				return fmt.Errorf("auto migration failed for %T: %w", model, err)
			}
			continue
		}
		stmt := &gorm.Statement{DB: conn}
		if err := stmt.Parse(model); err != nil {
			return fmt.Errorf("parse %T: %w", model, err)
		}
		for _, field := range stmt.Schema.Fields {
			if field.DBName == "" || m.HasColumn(model, field.DBName) {
				continue
			}
			if err := m.AddColumn(model, field.Name); err != nil {
				log.Printf("failed to add %s.%s column: %v", stmt.Schema.Table, field.DBName, err)
			}
		}
	}
	return nil
}

// toGormLogLevel maps application LogLevel to GORM's logger level.
func toGormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		// GORM 'Info' shows SQL; use with caution
		return logger.Info
	case "info", "", "warn":
		return logger.Warn
	case "error":
		return logger.Error
	case "silent":
		return logger.Silent
	default:
		return logger.Warn
	}
}
