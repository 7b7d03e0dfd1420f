// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/rovshanmuradov/memecurve/internal/storage/models"
)

// Storage определяет интерфейс проекции состояния в базу.
// База никогда не является источником истины для движка.
type Storage interface {
	// Кривые
	SaveCurve(ctx context.Context, c *models.Curve) error
	UpdateCurve(ctx context.Context, address string, fields map[string]interface{}) error
	GetCurve(ctx context.Context, address string) (*models.Curve, error)
	ListCurves(ctx context.Context) ([]*models.Curve, error)

	// Сделки
	SaveTrade(ctx context.Context, t *models.Trade) error
	ListTrades(ctx context.Context, curveAddress string, limit, offset int) ([]*models.Trade, error)

	// Комиссии
	SaveClaims(ctx context.Context, claims []*models.FeeClaim) error
	ListClaims(ctx context.Context, claimant string) ([]*models.FeeClaim, error)

	// Миграции
	RunMigrations(ctx context.Context) error
	Close() error
}
