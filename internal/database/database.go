package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/storefront/internal/models"
)

// OrderSequenceName keys the counter row used for order numbers.
const OrderSequenceName = "orders"

// Connect opens the database, creating it first when the server allows, and
// runs migrations. The caller owns the returned handle and must Close it.
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	if err := ensureDatabase(dsn); err != nil {
		return nil, fmt.Errorf("ensure database: %w", err)
	}

	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := Migrate(conn); err != nil {
		return nil, fmt.Errorf("database migration: %w", err)
	}

	return conn, nil
}

// Close releases the underlying connection pool.
func Close(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate creates or updates every table and makes sure the order counter
// row exists.
func Migrate(conn *gorm.DB) error {
	migrations := []interface{}{
		&models.User{},
		&models.UserCart{},
		&models.UserPurchase{},
		&models.Subscriber{},
		&models.Category{},
		&models.Discount{},
		&models.Product{},
		&models.Review{},
		&models.SearchHistory{},
		&models.Favorite{},
		&models.DeliveryZone{},
		&models.DeliveryPoint{},
		&models.ProductDeliveryTime{},
		&models.Order{},
		&models.OrderItem{},
		&models.OrderSequence{},
	}

	for _, migration := range migrations {
		if err := conn.AutoMigrate(migration); err != nil {
			return err
		}
	}

	seq := models.OrderSequence{Name: OrderSequenceName}
	return conn.Where(models.OrderSequence{Name: OrderSequenceName}).FirstOrCreate(&seq).Error
}

func ensureDatabase(dsn string) error {
	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return err
	}

	dbName := strings.TrimPrefix(parsed.Path, "/")
	if dbName == "" {
		return nil
	}

	parsed.Path = "/postgres"
	masterDSN := parsed.String()

	sqlDB, err := sql.Open("postgres", masterDSN)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return err
	}

	var exists bool
	if err := sqlDB.QueryRow("SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return err
	}

	if exists {
		return nil
	}

	slog.Info("creating database", "name", dbName)
	_, err = sqlDB.Exec("CREATE DATABASE " + pq.QuoteIdentifier(dbName))
	return err
}
