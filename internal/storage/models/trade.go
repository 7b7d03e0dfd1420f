package models

import "time"

// Trade is a settled buy, sell or redemption.
type Trade struct {
	BaseModel
	EventID      string    `gorm:"uniqueIndex;not null;type:varchar(36)"`
	CurveAddress string    `gorm:"index;not null;type:varchar(44)"`
	CurveIndex   uint64    `gorm:"index;not null"`
	Side         string    `gorm:"not null;type:varchar(10)"`
	Trader       string    `gorm:"index;not null;type:varchar(44)"`
	Referrer     string    `gorm:"type:varchar(44)"`
	BaseAmount   string    `gorm:"not null;type:varchar(80)"`
	TokenAmount  string    `gorm:"not null;type:varchar(80)"`
	Fee          string    `gorm:"type:varchar(80)"`
	Price        string    `gorm:"type:varchar(80)"`
	ExecutedAt   time.Time `gorm:"index;not null"`
}

// FeeClaim is one curve's share of a fee claim.
type FeeClaim struct {
	BaseModel
	EventID      string    `gorm:"index;not null;type:varchar(36)"`
	Claimant     string    `gorm:"index;not null;type:varchar(44)"`
	CurveAddress string    `gorm:"index;not null;type:varchar(44)"`
	Amount       string    `gorm:"not null;type:varchar(80)"`
	ClaimedAt    time.Time `gorm:"not null"`
}
