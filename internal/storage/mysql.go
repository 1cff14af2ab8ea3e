package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"

	"ticket-gate/internal/config"
	"ticket-gate/internal/logger"
	"ticket-gate/internal/models"
)

const errDuplicateEntry = 1062

type MySQLStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	sqldb, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewMySQLStoreWithDB(sqldb, log)

	if err := store.initTables(ctx); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		store.db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

// NewMySQLStoreWithDB wraps an already opened connection pool without
// pinging it or creating tables.
func NewMySQLStoreWithDB(sqldb *sql.DB, log *logger.Logger) *MySQLStore {
	return &MySQLStore{
		db:  bun.NewDB(sqldb, mysqldialect.New()),
		log: log,
	}
}

// Schema is the reservations table definition, shared with cmd/migrate.
const Schema = `
CREATE TABLE IF NOT EXISTS reservations (
    reservation_id CHAR(36) PRIMARY KEY,
    ticket_code VARCHAR(32) NOT NULL,
    full_name VARCHAR(255) NOT NULL,
    email VARCHAR(255) NOT NULL,
    phone VARCHAR(64) NOT NULL,
    guests VARCHAR(32) NOT NULL,
    group_type VARCHAR(64) NOT NULL,
    ticket_type VARCHAR(32) NOT NULL,
    payment_method VARCHAR(64) NOT NULL,
    payment_reference VARCHAR(255) NOT NULL,
    payment_amount BIGINT NOT NULL,
    check_in_url VARCHAR(512) NOT NULL,
    qr_code_data_url MEDIUMTEXT NOT NULL,
    qr_payload JSON NULL,
    status VARCHAR(32) NOT NULL DEFAULT 'paid_pending_review',
    scanned_at TIMESTAMP(3) NULL DEFAULT NULL,
    scan_count INT NOT NULL DEFAULT 0,
    created_at TIMESTAMP(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    UNIQUE KEY uq_ticket_code (ticket_code),
    INDEX idx_status (status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;
`

func (s *MySQLStore) initTables(ctx context.Context) error {
	s.log.LogDatabase("MIGRATE", "mysql", "Creating reservations table if not exists")

	if _, err := s.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to create reservations table: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "mysql", "Reservations table ready")
	return nil
}

func (s *MySQLStore) SaveReservation(ctx context.Context, reservation *models.Reservation) error {
	s.log.LogDatabase("INSERT", "reservations", fmt.Sprintf("Saving reservation %s", reservation.TicketCode))

	if _, err := s.db.NewInsert().Model(reservation).Exec(ctx); err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry {
			s.log.Warn("DATABASE", fmt.Sprintf("Ticket code %s already taken", reservation.TicketCode))
			return ErrDuplicateTicketCode
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save reservation %s: %s", reservation.TicketCode, err.Error()))
		return fmt.Errorf("failed to save reservation: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "reservations", fmt.Sprintf("Reservation %s saved successfully", reservation.TicketCode))
	return nil
}

func (s *MySQLStore) GetReservationByTicketCode(ctx context.Context, ticketCode string) (*models.Reservation, error) {
	s.log.LogDatabase("SELECT", "reservations", fmt.Sprintf("Fetching reservation %s", ticketCode))

	reservation := new(models.Reservation)
	err := s.db.NewSelect().
		Model(reservation).
		Where("ticket_code = ?", ticketCode).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.LogDatabase("NOT_FOUND", "reservations", fmt.Sprintf("Reservation %s not found", ticketCode))
			return nil, ErrNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get reservation %s: %s", ticketCode, err.Error()))
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	return reservation, nil
}

// MarkCheckedIn relies on the WHERE clause, not on a prior read: of any
// number of concurrent scans exactly one sees a row affected.
func (s *MySQLStore) MarkCheckedIn(ctx context.Context, reservationID string, scannedAt time.Time) error {
	s.log.LogDatabase("UPDATE", "reservations", fmt.Sprintf("Checking in reservation %s", reservationID))

	res, err := s.db.NewUpdate().
		Model((*models.Reservation)(nil)).
		Set("status = ?", models.StatusCheckedIn).
		Set("scanned_at = ?", scannedAt.UTC()).
		Set("scan_count = ?", 1).
		Where("reservation_id = ?", reservationID).
		Where("status = ?", models.StatusPendingReview).
		Where("scanned_at IS NULL").
		Where("scan_count = 0").
		Exec(ctx)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to check in reservation %s: %s", reservationID, err.Error()))
		return fmt.Errorf("failed to check in reservation: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		exists, err := s.db.NewSelect().
			Model((*models.Reservation)(nil)).
			Where("reservation_id = ?", reservationID).
			Exists(ctx)
		if err != nil {
			return fmt.Errorf("failed to check reservation: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		s.log.LogDatabase("CONFLICT", "reservations", fmt.Sprintf("Reservation %s was already checked in", reservationID))
		return ErrAlreadyCheckedIn
	}

	s.log.LogDatabase("SUCCESS", "reservations", fmt.Sprintf("Reservation %s checked in", reservationID))
	return nil
}

func (s *MySQLStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}
