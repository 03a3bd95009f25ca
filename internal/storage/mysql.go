package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"payfast-gateway/internal/apperr"
	"payfast-gateway/internal/config"
	"payfast-gateway/internal/logger"
	"payfast-gateway/internal/models"
)

// Schema creates the payment ledger and the notification audit log.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS payments (
        reference VARCHAR(255) PRIMARY KEY,
        gateway_payment_id VARCHAR(64) NOT NULL DEFAULT '',
        status VARCHAR(20) NOT NULL,
        amount DECIMAL(12,2) NOT NULL,
        description VARCHAR(255) NOT NULL DEFAULT '',
        customer_name VARCHAR(200) NOT NULL DEFAULT '',
        customer_email VARCHAR(255) NOT NULL DEFAULT '',
        customer_phone VARCHAR(64) NOT NULL DEFAULT '',
        item_count INT NOT NULL DEFAULT 0,
        environment VARCHAR(16) NOT NULL DEFAULT '',
        created_at DATETIME(3) NOT NULL,
        updated_at DATETIME(3) NOT NULL,
        INDEX idx_gateway_payment_id (gateway_payment_id),
        INDEX idx_status (status),
        INDEX idx_created_at (created_at)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
	`CREATE TABLE IF NOT EXISTS payment_notifications (
        id CHAR(36) PRIMARY KEY,
        pf_payment_id VARCHAR(64) NOT NULL DEFAULT '',
        reference VARCHAR(255) NOT NULL DEFAULT '',
        status VARCHAR(20) NOT NULL DEFAULT '',
        outcome VARCHAR(40) NOT NULL,
        payload TEXT NOT NULL,
        received_at DATETIME(3) NOT NULL,
        INDEX idx_reference (reference),
        INDEX idx_pf_payment_id (pf_payment_id)
    ) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci`,
}

const paymentColumns = `reference, gateway_payment_id, status, amount, description,
        customer_name, customer_email, customer_phone, item_count, environment, created_at, updated_at`

type MySQLStore struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// DSN builds the driver connection string for cfg.
func DSN(cfg config.DatabaseConfig) string {
	dsn := mysql.NewConfig()
	dsn.User = cfg.Username
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = cfg.Host + ":" + cfg.Port
	dsn.DBName = cfg.Database
	dsn.ParseTime = true
	dsn.Loc = time.UTC
	dsn.Params = map[string]string{"charset": "utf8mb4"}
	return dsn.FormatDSN()
}

// NewMySQLStore connects, configures the pool and creates missing tables.
func NewMySQLStore(cfg config.DatabaseConfig, log *logger.Logger) (*MySQLStore, error) {
	log.LogDatabase("CONNECT", "mysql", fmt.Sprintf("Connecting to MySQL at %s:%s", cfg.Host, cfg.Port))

	db, err := sql.Open("mysql", DSN(cfg))
	if err != nil {
		log.Error("DATABASE", "Failed to open MySQL connection: "+err.Error())
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		log.Error("DATABASE", "Failed to ping MySQL: "+err.Error())
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := NewMySQLStoreFromDB(db, log)
	if err := store.Migrate(ctx); err != nil {
		log.Error("DATABASE", "Failed to initialize tables: "+err.Error())
		db.Close()
		return nil, fmt.Errorf("failed to initialize tables: %w", err)
	}

	log.LogDatabase("SUCCESS", "mysql", "MySQL connection established and tables initialized")
	return store, nil
}

// NewMySQLStoreFromDB wraps an open handle without touching the schema.
func NewMySQLStoreFromDB(db *sql.DB, log *logger.Logger) *MySQLStore {
	return &MySQLStore{db: db, log: log, now: time.Now}
}

func (s *MySQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	s.log.LogDatabase("MIGRATE", "mysql", "Payment tables ready")
	return nil
}

func (s *MySQLStore) SavePayment(ctx context.Context, payment *models.Payment) error {
	s.log.LogDatabase("INSERT", "mysql", fmt.Sprintf("Saving payment %s", payment.Reference))

	createdAt := payment.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now().UTC()
	}

	query := `INSERT IGNORE INTO payments (` + paymentColumns + `)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		payment.Reference, payment.GatewayPaymentID, payment.Status, payment.Amount, payment.Description,
		payment.Customer.Name, payment.Customer.Email, payment.Customer.Phone,
		payment.ItemCount, payment.Environment, createdAt, createdAt,
	)
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save payment %s: %s", payment.Reference, err.Error()))
		return fmt.Errorf("failed to save payment: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "mysql", fmt.Sprintf("Payment %s saved", payment.Reference))
	return nil
}

func (s *MySQLStore) GetPayment(ctx context.Context, reference string) (*models.Payment, error) {
	s.log.LogDatabase("SELECT", "mysql", fmt.Sprintf("Fetching payment %s", reference))
	return s.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE reference = ?`, reference)
}

func (s *MySQLStore) GetPaymentByGatewayID(ctx context.Context, gatewayPaymentID string) (*models.Payment, error) {
	s.log.LogDatabase("SELECT", "mysql", fmt.Sprintf("Fetching payment for gateway id %s", gatewayPaymentID))
	return s.getPayment(ctx, `SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = ? LIMIT 1`, gatewayPaymentID)
}

func (s *MySQLStore) getPayment(ctx context.Context, query, arg string) (*models.Payment, error) {
	payment := &models.Payment{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&payment.Reference, &payment.GatewayPaymentID, &payment.Status, &payment.Amount, &payment.Description,
		&payment.Customer.Name, &payment.Customer.Email, &payment.Customer.Phone,
		&payment.ItemCount, &payment.Environment, &payment.CreatedAt, &payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.log.LogDatabase("NOT_FOUND", "mysql", fmt.Sprintf("Payment %s not found", arg))
			return nil, apperr.ErrPaymentNotFound
		}
		s.log.Error("DATABASE", fmt.Sprintf("Failed to get payment %s: %s", arg, err.Error()))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

// UpdatePaymentStatus locks the ledger row so concurrent deliveries of the
// same transition apply it once.
func (s *MySQLStore) UpdatePaymentStatus(ctx context.Context, update models.StatusUpdate) (applied bool, err error) {
	s.log.LogDatabase("UPDATE", "mysql", fmt.Sprintf("Setting payment %s to %s", update.Reference, update.Status))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().UTC()

	var current models.PaymentStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM payments WHERE reference = ? FOR UPDATE`, update.Reference).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = tx.ExecContext(ctx, `INSERT INTO payments (`+paymentColumns+`)
    VALUES (?, ?, ?, ?, '', '', ?, '', 0, '', ?, ?)`,
			update.Reference, update.GatewayPaymentID, update.Status, update.AmountGross, update.CustomerEmail, now, now)
		if err != nil {
			return false, fmt.Errorf("failed to insert payment: %w", err)
		}

	case err != nil:
		return false, fmt.Errorf("failed to lock payment: %w", err)

	case current == update.Status:
		err = tx.Commit()
		if err != nil {
			return false, fmt.Errorf("failed to commit: %w", err)
		}
		s.log.LogDatabase("NOOP", "mysql", fmt.Sprintf("Payment %s already %s", update.Reference, update.Status))
		return false, nil

	default:
		_, err = tx.ExecContext(ctx, `UPDATE payments SET status = ?, gateway_payment_id = ?, updated_at = ? WHERE reference = ?`,
			update.Status, update.GatewayPaymentID, now, update.Reference)
		if err != nil {
			return false, fmt.Errorf("failed to update payment: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit: %w", err)
	}

	s.log.LogDatabase("SUCCESS", "mysql", fmt.Sprintf("Payment %s is now %s", update.Reference, update.Status))
	return true, nil
}

func (s *MySQLStore) SaveNotification(ctx context.Context, record *models.NotificationRecord) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO payment_notifications
    (id, pf_payment_id, reference, status, outcome, payload, received_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.PaymentID, record.Reference, record.Status, record.Outcome, record.Payload, record.ReceivedAt.UTC())
	if err != nil {
		s.log.Error("DATABASE", fmt.Sprintf("Failed to save notification %s: %s", record.ID, err.Error()))
		return fmt.Errorf("failed to save notification: %w", err)
	}
	return nil
}

func (s *MySQLStore) ListNotifications(ctx context.Context, reference string, limit int) ([]*models.NotificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, pf_payment_id, reference, status, outcome, payload, received_at
    FROM payment_notifications WHERE reference = ? ORDER BY received_at DESC LIMIT ?`, reference, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	var records []*models.NotificationRecord
	for rows.Next() {
		r := &models.NotificationRecord{}
		if err := rows.Scan(&r.ID, &r.PaymentID, &r.Reference, &r.Status, &r.Outcome, &r.Payload, &r.ReceivedAt); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return records, nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	s.log.LogDatabase("CLOSE", "mysql", "Closing MySQL connection")
	return s.db.Close()
}
