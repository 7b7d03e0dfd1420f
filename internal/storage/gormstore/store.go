// ==============================================
// File: internal/storage/gormstore/store.go
// ==============================================
package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/rovshanmuradov/memecurve/internal/storage"
	"github.com/rovshanmuradov/memecurve/internal/storage/models"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options описывает подключение к базе.
type Options struct {
	Driver     string
	DSN        string
	MaxRetries int
	RetryDelay time.Duration
}

// gormStorage реализует интерфейс Storage
type gormStorage struct {
	db     *gorm.DB
	driver string
	logger *zap.Logger
}

// Open подключается к базе, повторяя попытки с экспоненциальной задержкой.
func Open(ctx context.Context, opts Options, zapLogger *zap.Logger) (storage.Storage, error) {
	var dialector gorm.Dialector
	switch opts.Driver {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite:
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", opts.Driver)
	}

	logger := zapLogger.Named("storage")
	cfg := &gorm.Config{
		Logger: newGormLogger(logger.Named("gorm")),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		TranslateError:                           true,
	}

	policy := backoff.NewExponentialBackOff()
	if opts.RetryDelay > 0 {
		policy.InitialInterval = opts.RetryDelay
		policy.MaxInterval = opts.RetryDelay * 10
	}
	tries := uint(1)
	if opts.MaxRetries > 0 {
		tries = uint(opts.MaxRetries)
	}
	notify := func(err error, d time.Duration) {
		logger.Warn("Database not ready, retrying", zap.Error(err), zap.Duration("backoff", d))
	}

	db, err := backoff.Retry(ctx, func() (*gorm.DB, error) {
		db, err := gorm.Open(dialector, cfg)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, err
		}
		return db, nil
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(tries), backoff.WithNotify(notify))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	// Настройка пула соединений
	if opts.Driver == DriverSQLite {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &gormStorage{db: db, driver: opts.Driver, logger: logger}, nil
}

// RunMigrations использует GORM AutoMigrate. На postgres миграции
// сериализуются advisory lock.
func (s *gormStorage) RunMigrations(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if s.driver == DriverPostgres {
		var lockObtained bool
		if err := db.Raw("SELECT pg_try_advisory_lock(101)").Scan(&lockObtained).Error; err != nil {
			return fmt.Errorf("failed to acquire migration lock: %w", err)
		}
		if !lockObtained {
			return fmt.Errorf("another migration is in progress")
		}
		defer db.Exec("SELECT pg_advisory_unlock(101)")
	}

	if err := db.AutoMigrate(&models.Curve{}, &models.Trade{}, &models.FeeClaim{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func (s *gormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *gormStorage) SaveCurve(ctx context.Context, c *models.Curve) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "base_reserve_real", "token_reserve_real", "total_fees", "graduated", "graduated_at", "updated_at"}),
	}).Create(c).Error
}

func (s *gormStorage) UpdateCurve(ctx context.Context, address string, fields map[string]interface{}) error {
	res := s.db.WithContext(ctx).Model(&models.Curve{}).Where("address = ?", address).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("curve %s: %w", address, gorm.ErrRecordNotFound)
	}
	return nil
}

func (s *gormStorage) GetCurve(ctx context.Context, address string) (*models.Curve, error) {
	var c models.Curve
	err := s.db.WithContext(ctx).Where("address = ?", address).First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *gormStorage) ListCurves(ctx context.Context) ([]*models.Curve, error) {
	var out []*models.Curve
	err := s.db.WithContext(ctx).Order("curve_index asc").Find(&out).Error
	return out, err
}

func (s *gormStorage) SaveTrade(ctx context.Context, t *models.Trade) error {
	err := s.db.WithContext(ctx).Create(t).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil
	}
	return err
}

func (s *gormStorage) ListTrades(ctx context.Context, curveAddress string, limit, offset int) ([]*models.Trade, error) {
	var out []*models.Trade
	err := s.db.WithContext(ctx).
		Where("curve_address = ?", curveAddress).
		Order("executed_at desc, id desc").
		Limit(limit).
		Offset(offset).
		Find(&out).Error
	return out, err
}

func (s *gormStorage) SaveClaims(ctx context.Context, claims []*models.FeeClaim) error {
	if len(claims) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&claims).Error
}

func (s *gormStorage) ListClaims(ctx context.Context, claimant string) ([]*models.FeeClaim, error) {
	var out []*models.FeeClaim
	err := s.db.WithContext(ctx).Where("claimant = ?", claimant).Order("id asc").Find(&out).Error
	return out, err
}
