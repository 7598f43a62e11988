package history

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TradeRow is the persisted form of one position event.
type TradeRow struct {
	ID          uint   `gorm:"primaryKey"`
	Action      string `gorm:"index"`
	Symbol      string `gorm:"index"`
	Side        string
	Size        float64
	SpotEntry   float64
	SpotExit    float64
	FutEntry    float64
	FutExit     float64
	EntryTime   string
	ExitTime    string
	SpotPnL     float64
	FutPnL      float64
	NetPnL      float64
	HoldMinutes float64
	CreatedAt   time.Time
}

// TableName keeps the table name stable across gorm naming strategy changes.
func (TradeRow) TableName() string { return "trade_events" }

// PostgresSink writes closed trades to a trades table.
type PostgresSink struct {
	db *gorm.DB
}

// NewPostgresSink opens the database and migrates the trades table.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.AutoMigrate(&TradeRow{}); err != nil {
		return nil, fmt.Errorf("migrate trades table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Write inserts the event.
func (s *PostgresSink) Write(ctx context.Context, ev Event) error {
	res := ev.Trade
	row := TradeRow{
		Action:      string(ev.Action),
		Symbol:      res.Symbol,
		Side:        string(res.Side),
		Size:        res.Size,
		SpotEntry:   res.SpotEntry,
		SpotExit:    res.SpotExit,
		FutEntry:    res.FutEntry,
		FutExit:     res.FutExit,
		EntryTime:   res.EntryTime,
		ExitTime:    res.ExitTime,
		SpotPnL:     res.SpotPnL,
		FutPnL:      res.FutPnL,
		NetPnL:      res.NetPnL,
		HoldMinutes: res.HoldMinutes,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}
