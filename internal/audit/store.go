package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/smartblur/smartblur/internal/config"
	"github.com/smartblur/smartblur/internal/logger"
	"go.uber.org/zap"
)

// Store writes redaction activity to PostgreSQL so operators can see what
// the service detected and exported. It records categories and counts only,
// never the recognized text itself. A nil *Store is valid and records
// nothing.
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// Event is one row of redaction activity
type Event struct {
	ID          int64     `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	ImageName   string    `db:"image_name" json:"image_name"`
	Action      string    `db:"action" json:"action"`
	Category    string    `db:"category" json:"category,omitempty"`
	RegionCount int       `db:"region_count" json:"region_count"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Actions recorded by the service
const (
	ActionUpload     = "upload"
	ActionAutoDetect = "auto_detect"
	ActionToggle     = "toggle"
	ActionBlurAll    = "blur_all_sensitive"
	ActionUnblurAll  = "unblur_all"
	ActionReset      = "reset_auto_detect"
	ActionExport     = "export"
)

const schema = `
CREATE TABLE IF NOT EXISTS redaction_events (
	id           BIGSERIAL PRIMARY KEY,
	session_id   TEXT NOT NULL,
	image_name   TEXT NOT NULL,
	action       TEXT NOT NULL,
	category     TEXT NOT NULL DEFAULT '',
	region_count INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewStore connects to PostgreSQL and ensures the events table exists
func NewStore(cfg config.AuditConfig, log *logger.Logger) (*Store, error) {
	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	store := &Store{
		db:     db,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure audit schema: %w", err)
	}

	log.Info("Audit store initialized",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return store, nil
}

// Record writes one event. Failures are logged, not propagated: auditing
// must never break an interaction.
func (s *Store) Record(ctx context.Context, event Event) {
	if s == nil {
		return
	}

	query := `
		INSERT INTO redaction_events (session_id, image_name, action, category, region_count)
		VALUES ($1, $2, $3, $4, $5)`

	if _, err := s.db.ExecContext(ctx, query,
		event.SessionID,
		event.ImageName,
		event.Action,
		event.Category,
		event.RegionCount,
	); err != nil {
		s.logger.Error("Failed to record audit event",
			zap.Error(err),
			zap.String("action", event.Action),
		)
	}
}

// Recent returns the latest events, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]Event, error) {
	if s == nil {
		return nil, nil
	}

	var events []Event
	query := `
		SELECT id, session_id, image_name, action, category, region_count, created_at
		FROM redaction_events
		ORDER BY created_at DESC
		LIMIT $1`

	if err := s.db.SelectContext(ctx, &events, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	return events, nil
}

// Close releases the database connection pool
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// maskDatabaseURL hides credentials in log output
func maskDatabaseURL(url string) string {
	if at := strings.LastIndex(url, "@"); at != -1 {
		if scheme := strings.Index(url, "://"); scheme != -1 {
			return url[:scheme+3] + "***" + url[at:]
		}
	}
	return url
}
