// Package storage persists wheel state snapshots to SQLite or PostgreSQL so
// a run can be restored and replayed from any saved tick.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pthm-cable/mudtrack/sim"
)

// ErrNoSnapshots is returned when the store holds no saved ticks.
var ErrNoSnapshots = errors.New("no snapshots stored")

// WheelSnapshot is one wheel's state at one tick. The queryable columns
// duplicate fields of State for ad-hoc inspection.
type WheelSnapshot struct {
	ID        uint   `gorm:"primaryKey"`
	Tick      int64  `gorm:"uniqueIndex:idx_tick_wheel"`
	VehicleID uint32 `gorm:"uniqueIndex:idx_tick_wheel"`
	Wheel     int    `gorm:"uniqueIndex:idx_tick_wheel"`

	Grounded  bool
	Surface   string
	Condition string
	SlipRatio float64
	Pressure  float64
	TreadWear float64

	State     datatypes.JSON
	CreatedAt time.Time
}

// Store is a gorm-backed snapshot store.
type Store struct {
	db *gorm.DB
}

// Open opens the snapshot store at path. A postgres:// URL or a key=value
// DSN containing host= connects to PostgreSQL; anything else is a SQLite
// file. An empty path or ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	gcfg := &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		CreateBatchSize:        2000,
		Logger:                 logger.Default.LogMode(logger.Silent),
	}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgres(path) {
		db, err = openPostgres(path, gcfg)
	} else {
		db, err = openSQLite(path, gcfg)
	}
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&WheelSnapshot{}); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	slog.Info("snapshot store opened", "dialect", db.Dialector.Name(), "path", redact(path))
	return &Store{db: db}, nil
}

func isPostgres(path string) bool {
	return strings.HasPrefix(path, "postgres://") ||
		strings.HasPrefix(path, "postgresql://") ||
		strings.Contains(path, "host=")
}

func openPostgres(dsn string, gcfg *gorm.Config) (*gorm.DB, error) {
	gcfg.PrepareStmt = false
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), gcfg)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Exec("SELECT 1").Error; err != nil {
		closeDB(db)
		return nil, fmt.Errorf("testing postgres connection: %w", err)
	}
	return db, nil
}

func openSQLite(path string, gcfg *gorm.Config) (*gorm.DB, error) {
	memory := path == "" || path == ":memory:"
	dsn := path
	if memory {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), gcfg)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", path, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sql interface: %w", err)
	}
	if memory {
		// Every new connection would see its own empty database
		sqlDB.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA user_version = 1;",
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
		"PRAGMA temp_store = MEMORY;",
	}
	if memory {
		pragmas[1] = "PRAGMA journal_mode = MEMORY;"
	}
	for _, pragma := range pragmas {
		if err := db.Exec(pragma).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("setting %s: %w", pragma, err)
		}
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
}

// redact drops the password from a postgres URL before logging it.
func redact(path string) string {
	u, err := url.Parse(path)
	if err != nil || u.User == nil {
		return path
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Save writes every wheel's state at tick, replacing anything saved for
// that tick before.
func (s *Store) Save(tick int64, states []sim.WheelState) error {
	rows := make([]WheelSnapshot, len(states))
	for i := range states {
		st := &states[i]
		data, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("encoding vehicle %d wheel %d: %w", st.VehicleID, st.Index, err)
		}
		rec := &st.Record
		rows[i] = WheelSnapshot{
			Tick:      tick,
			VehicleID: st.VehicleID,
			Wheel:     st.Index,
			Grounded:  rec.Output.Grounded,
			Surface:   rec.Slip.LastSurface.String(),
			Condition: rec.Tire.Condition.String(),
			SlipRatio: rec.Slip.SlipRatio,
			Pressure:  rec.Tire.Pressure,
			TreadWear: rec.Tire.TreadWear,
			State:     datatypes.JSON(data),
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tick = ?", tick).Delete(&WheelSnapshot{}).Error; err != nil {
			return fmt.Errorf("clearing tick %d: %w", tick, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("saving tick %d: %w", tick, err)
		}
		return nil
	})
}

// Load returns the wheel states saved at tick, ordered by vehicle and wheel.
func (s *Store) Load(tick int64) ([]sim.WheelState, error) {
	var rows []WheelSnapshot
	err := s.db.Where("tick = ?", tick).Order("vehicle_id, wheel").Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("loading tick %d: %w", tick, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("tick %d: %w", tick, ErrNoSnapshots)
	}

	states := make([]sim.WheelState, len(rows))
	for i, row := range rows {
		if err := json.Unmarshal(row.State, &states[i]); err != nil {
			return nil, fmt.Errorf("decoding vehicle %d wheel %d at tick %d: %w", row.VehicleID, row.Wheel, tick, err)
		}
	}
	return states, nil
}

// Ticks returns every saved tick in ascending order.
func (s *Store) Ticks() ([]int64, error) {
	var ticks []int64
	err := s.db.Model(&WheelSnapshot{}).Distinct("tick").Order("tick").Pluck("tick", &ticks).Error
	if err != nil {
		return nil, fmt.Errorf("listing ticks: %w", err)
	}
	return ticks, nil
}

// Latest returns the most recent saved tick.
func (s *Store) Latest() (int64, error) {
	ticks, err := s.Ticks()
	if err != nil {
		return 0, err
	}
	if len(ticks) == 0 {
		return 0, ErrNoSnapshots
	}
	return ticks[len(ticks)-1], nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
