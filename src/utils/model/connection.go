package model

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rentledger/syncer/src/utils/config"
	l "github.com/rentledger/syncer/src/utils/logger"
	"github.com/rentledger/syncer/src/utils/model/sql_migrations"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func dsn(dbConfig *config.Database, username, password, applicationName string) (out string, cleanup func(), err error) {
	log := l.NewSublogger("db")
	cleanup = func() {}

	out = fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=rental/%s",
		dbConfig.Host,
		dbConfig.Port,
		username,
		password,
		dbConfig.Name,
		dbConfig.SslMode,
		applicationName,
	)

	if dbConfig.ClientKey == "" || dbConfig.ClientCert == "" || dbConfig.CaCert == "" {
		return
	}

	log.Info("Using SSL certificates from variables")

	// Drivers need the certificates as files
	var files []string
	cleanup = func() {
		for _, f := range files {
			os.Remove(f)
		}
	}
	write := func(pattern, content string) (name string, err error) {
		f, err := os.CreateTemp("", pattern)
		if err != nil {
			return
		}
		defer f.Close()
		files = append(files, f.Name())
		_, err = f.WriteString(content)
		return f.Name(), err
	}

	keyFile, err := write("key.pem", dbConfig.ClientKey)
	if err != nil {
		return
	}
	certFile, err := write("cert.pem", dbConfig.ClientCert)
	if err != nil {
		return
	}
	caFile, err := write("ca.pem", dbConfig.CaCert)
	if err != nil {
		return
	}

	out += fmt.Sprintf(" sslcert=%s sslkey=%s sslrootcert=%s", certFile, keyFile, caFile)
	return
}

func Connect(ctx context.Context, dbConfig *config.Database, username, password, applicationName string) (self *gorm.DB, err error) {
	log := l.NewSublogger("db")

	logger := logger.New(log,
		logger.Config{
			SlowThreshold:             500 * time.Millisecond, // Slow SQL threshold
			LogLevel:                  logger.Error,           // Log level
			IgnoreRecordNotFoundError: true,                   // Ignore ErrRecordNotFound error for logger
			Colorful:                  false,                  // Disable color
		},
	)

	connStr, cleanup, err := dsn(dbConfig, username, password, applicationName)
	defer cleanup()
	if err != nil {
		return
	}

	self, err = gorm.Open(postgres.Open(connStr), &gorm.Config{Logger: logger})
	if err != nil {
		return
	}

	db, err := self.DB()
	if err != nil {
		return
	}

	db.SetMaxOpenConns(dbConfig.MaxOpenConns)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxIdleTime(dbConfig.ConnMaxIdleTime)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	err = ping(ctx, dbConfig, db)
	return
}

func NewConnection(ctx context.Context, config *config.Config, applicationName string) (self *gorm.DB, err error) {
	err = Migrate(ctx, config)
	if err != nil {
		return
	}

	return Connect(ctx, &config.Database, config.Database.User, config.Database.Password, applicationName)
}

// Applies embedded migrations using the migration user. Credentials are cleared afterwards.
func Migrate(ctx context.Context, config *config.Config) (err error) {
	log := l.NewSublogger("db-migrate")

	if config.Database.MigrationUser == "" || config.Database.MigrationPassword == "" {
		log.Info("Migration user not set, skipping migrations")
		return
	}

	connStr, cleanup, err := dsn(&config.Database, config.Database.MigrationUser, config.Database.MigrationPassword, "migration")
	defer cleanup()
	if err != nil {
		return
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return
	}
	defer db.Close()

	err = ping(ctx, &config.Database, db)
	if err != nil {
		return
	}

	n, err := MigrateDB(db)
	if err != nil {
		return
	}

	log.WithField("num", n).Info("Applied migrations")

	config.Database.MigrationUser = ""
	config.Database.MigrationPassword = ""

	return
}

func MigrateDB(db *sql.DB) (n int, err error) {
	migrations := &migrate.HttpFileSystemMigrationSource{
		FileSystem: http.FS(sql_migrations.FS),
	}
	return migrate.Exec(db, "postgres", migrations, migrate.Up)
}

func ping(ctx context.Context, dbConfig *config.Database, db *sql.DB) (err error) {
	if dbConfig.PingTimeout < 0 {
		// Ping disabled
		return nil
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbConfig.PingTimeout)
	defer cancel()

	return db.PingContext(dbCtx)
}
