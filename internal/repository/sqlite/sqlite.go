// Package sqlite implements the user, event and booking stores on an
// embedded SQLite database through gorm. All transactions share a single
// connection, which serialises them.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Shivanand-hulikatti/event-booking/internal/model"
)

// driverName is go-sqlite3 with lower() replaced by a Unicode-aware fold;
// the built-in one only folds ASCII.
const driverName = "sqlite3_unicode"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("lower", strings.ToLower, true)
		},
	})
}

type userRow struct {
	ID           string    `gorm:"primaryKey;size:36"`
	Username     string    `gorm:"uniqueIndex;size:64;not null"`
	Email        string    `gorm:"uniqueIndex;size:254;not null"`
	PasswordHash string    `gorm:"size:256;not null"`
	Role         string    `gorm:"size:16;not null;default:user"`
	CreatedAt    time.Time `gorm:"not null"`
}

func (userRow) TableName() string { return "users" }

type eventRow struct {
	ID          string    `gorm:"primaryKey;size:36"`
	Title       string    `gorm:"uniqueIndex;size:128;not null"`
	Description string    `gorm:"size:256;not null"`
	StartsAt    time.Time `gorm:"index;not null"`
	Location    string    `gorm:"size:64;not null"`
	TotalSeats  int       `gorm:"not null;check:total_seats > 0"`
	SeatsLeft   int       `gorm:"not null;check:seats_left >= 0 AND seats_left <= total_seats"`
	CreatedBy   string    `gorm:"size:64;not null"`
	CreatedAt   time.Time `gorm:"not null"`
}

func (eventRow) TableName() string { return "events" }

type bookingRow struct {
	ID        string    `gorm:"primaryKey;size:36"`
	UserID    string    `gorm:"size:36;not null;uniqueIndex:idx_bookings_user_event"`
	EventID   string    `gorm:"size:36;not null;uniqueIndex:idx_bookings_user_event;index"`
	CreatedAt time.Time `gorm:"not null"`
	User      userRow   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Event     eventRow  `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (bookingRow) TableName() string { return "bookings" }

// Open connects to the SQLite database at path (":memory:" for an in-memory
// database), enables foreign keys and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	dsn := path
	if path == ":memory:" {
		dsn = "file::memory:"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_foreign_keys=on&_busy_timeout=5000"

	db, err := gorm.Open(gormsqlite.New(gormsqlite.Config{DriverName: driverName, DSN: dsn}), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite handle: %w", err)
	}
	// One connection: it keeps an in-memory database alive and serialises
	// every transaction.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := db.AutoMigrate(&userRow{}, &eventRow{}, &bookingRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return db, nil
}

// Options bounds every transaction the stores run.
type Options struct {
	TxTimeout time.Duration
}

type txRunner struct {
	db      *gorm.DB
	timeout time.Duration
}

func newTxRunner(db *gorm.DB, opts Options) txRunner {
	if opts.TxTimeout <= 0 {
		opts.TxTimeout = 5 * time.Second
	}
	return txRunner{db: db, timeout: opts.TxTimeout}
}

// run commits when fn returns nil and rolls back otherwise.
//
// The transaction is begun on a context without cancellation: database/sql
// discards the connection of a transaction whose context ends, and with a
// single connection that would drop an in-memory database. Statements run
// under ctx, so a cancelled caller fails at its next statement and the
// transaction rolls back on a live connection.
func (r txRunner) run(ctx context.Context, fn func(tx *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tx := r.db.WithContext(context.WithoutCancel(ctx)).Begin()
	if tx.Error != nil {
		return classify(fmt.Errorf("begin transaction: %w", tx.Error))
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx.WithContext(ctx)); err != nil {
		return classify(err)
	}
	if err := ctx.Err(); err != nil {
		return classify(err)
	}
	if err := tx.Commit().Error; err != nil {
		return classify(fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

func (r txRunner) query(ctx context.Context, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return classify(fn(r.db.WithContext(ctx)))
}

// classify maps busy/locked database errors and timeouts onto
// model.ErrTransient.
func classify(err error) error {
	if err == nil || model.Kind(err) != nil {
		return err
	}
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		switch sqErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", model.ErrTransient, err)
		case sqlite3.ErrConstraint:
			if sqErr.ExtendedCode == sqlite3.ErrConstraintCheck {
				return fmt.Errorf("%w: %w", model.ErrInvariantViolation, err)
			}
		}
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}
