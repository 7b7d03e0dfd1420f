package models

import "time"

// Curve is the persisted projection of a curve. Amounts are decimal strings
// of raw 18-decimal units.
type Curve struct {
	BaseModel
	CurveIndex       uint64 `gorm:"uniqueIndex;not null"`
	Address          string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Mint             string `gorm:"uniqueIndex;not null;type:varchar(44)"`
	Name             string `gorm:"not null;type:varchar(100)"`
	Symbol           string `gorm:"index;not null;type:varchar(20)"`
	URI              string `gorm:"type:text"`
	Creator          string `gorm:"index;not null;type:varchar(44)"`
	Status           string `gorm:"type:text"`
	BaseReserveReal  string `gorm:"not null;type:varchar(80)"`
	TokenReserveReal string `gorm:"type:varchar(80)"`
	TotalFees        string `gorm:"type:varchar(80);default:'0'"`
	Graduated        bool   `gorm:"default:false"`
	GraduatedAt      *time.Time
}
