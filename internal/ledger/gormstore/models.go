package gormstore

import "time"

type Account struct {
	ID           int64  `gorm:"primaryKey"`
	Username     string `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

type Transaction struct {
	ID          int64     `gorm:"primaryKey"`
	OwnerID     int64     `gorm:"index:idx_transactions_owner_date,priority:1;not null"`
	Owner       Account   `gorm:"constraint:OnDelete:CASCADE;foreignKey:OwnerID"`
	Type        string    `gorm:"size:20;index;not null"`
	Category    string    `gorm:"size:50;not null"`
	AmountCents int64     `gorm:"not null;check:amount_cents > 0"`
	Description string    `gorm:"size:500;not null;default:''"`
	Date        time.Time `gorm:"type:date;index:idx_transactions_owner_date,priority:2;not null"`
	IsRecurring bool      `gorm:"not null;default:false"`
	Household   string    `gorm:"size:10;not null;default:'single'"`
	BatchID     string    `gorm:"size:36;index;not null;default:''"`
	CreatedAt   time.Time
}
