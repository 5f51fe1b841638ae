package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/xaenox/command-center/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	DBName      string
	SSLMode     string
	UseInMemory bool
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %v", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %v", err)
	}

	storage := &PostgresStorage{db: db}

	// Initialize database schema
	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %v", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %v", err)
	}

	_, err = s.db.Exec(string(migrationSQL))
	if err != nil {
		return fmt.Errorf("error executing migrations: %v", err)
	}

	return nil
}

func (s *PostgresStorage) CreateThread(ctx context.Context, thread *models.Thread) error {
	query := `
		INSERT INTO chat_threads (id, agent_id, title, pinned)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		thread.ID,
		thread.AgentID,
		thread.Title,
		thread.Pinned,
	).Scan(&thread.CreatedAt, &thread.UpdatedAt)

	if err != nil {
		return fmt.Errorf("error creating thread: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetThread(ctx context.Context, id string) (*models.Thread, error) {
	query := `
		SELECT id, agent_id, title, pinned, created_at, updated_at
		FROM chat_threads
		WHERE id = $1`

	thread := &models.Thread{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&thread.ID,
		&thread.AgentID,
		&thread.Title,
		&thread.Pinned,
		&thread.CreatedAt,
		&thread.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying thread: %v", err)
	}

	return thread, nil
}

func (s *PostgresStorage) ListThreads(ctx context.Context, agentID string) ([]*models.Thread, error) {
	query := `
		SELECT id, agent_id, title, pinned, created_at, updated_at
		FROM chat_threads
		WHERE agent_id = $1
		ORDER BY pinned DESC, updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, agentID)
	if err != nil {
		return nil, fmt.Errorf("error querying threads: %v", err)
	}
	defer rows.Close()

	var threads []*models.Thread
	for rows.Next() {
		thread := &models.Thread{}
		err := rows.Scan(
			&thread.ID,
			&thread.AgentID,
			&thread.Title,
			&thread.Pinned,
			&thread.CreatedAt,
			&thread.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning thread: %v", err)
		}
		threads = append(threads, thread)
	}

	return threads, rows.Err()
}

func (s *PostgresStorage) RenameThread(ctx context.Context, id, title string) error {
	return s.updateThread(ctx, `UPDATE chat_threads SET title = $1, updated_at = $2 WHERE id = $3`, title, id)
}

func (s *PostgresStorage) SetThreadPinned(ctx context.Context, id string, pinned bool) error {
	return s.updateThread(ctx, `UPDATE chat_threads SET pinned = $1, updated_at = $2 WHERE id = $3`, pinned, id)
}

func (s *PostgresStorage) updateThread(ctx context.Context, query string, value interface{}, id string) error {
	result, err := s.db.ExecContext(ctx, query, value, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error updating thread: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %v", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) TouchThread(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chat_threads SET updated_at = $1 WHERE id = $2`, time.Now(), id)
	if err != nil {
		return fmt.Errorf("error touching thread: %v", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteThread(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_threads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("error deleting thread: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	metadata, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("error marshaling metadata: %v", err)
	}

	var threadID sql.NullString
	if msg.ThreadID != "" {
		threadID = sql.NullString{String: msg.ThreadID, Valid: true}
	}

	query := `
		INSERT INTO chat_messages (id, thread_id, agent_name, content, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at`

	err = s.db.QueryRowContext(ctx, query,
		msg.ID,
		threadID,
		msg.AgentName,
		msg.Content,
		metadata,
	).Scan(&msg.CreatedAt)

	if err != nil {
		return fmt.Errorf("error saving message: %v", err)
	}

	return nil
}

func (s *PostgresStorage) GetThreadMessages(ctx context.Context, threadID string) ([]*models.Message, error) {
	query := `
		SELECT id, thread_id, agent_name, content, metadata, created_at
		FROM chat_messages
		WHERE thread_id = $1
		ORDER BY created_at ASC`

	rows, err := s.db.QueryContext(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %v", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		var tid sql.NullString
		var metadata []byte
		err := rows.Scan(
			&msg.ID,
			&tid,
			&msg.AgentName,
			&msg.Content,
			&metadata,
			&msg.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %v", err)
		}
		msg.ThreadID = tid.String
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("error unmarshaling metadata: %v", err)
			}
		}
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

func (s *PostgresStorage) CountThreadMessages(ctx context.Context, threadID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE thread_id = $1`, threadID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("error counting messages: %v", err)
	}
	return count, nil
}

func (s *PostgresStorage) ClearThreadMessages(ctx context.Context, threadID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chat_messages WHERE thread_id = $1`, threadID)
	if err != nil {
		return fmt.Errorf("error clearing messages: %v", err)
	}
	return nil
}

func (s *PostgresStorage) SaveUpload(ctx context.Context, upload *models.FileUpload) error {
	query := `
		INSERT INTO file_uploads (id, filename, storage_path, content_type, size_bytes, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		upload.ID,
		upload.Filename,
		upload.StoragePath,
		upload.ContentType,
		upload.SizeBytes,
		upload.UploadedBy,
	).Scan(&upload.CreatedAt)

	if err != nil {
		return fmt.Errorf("error saving upload: %v", err)
	}

	return nil
}

func (s *PostgresStorage) Stats(ctx context.Context) (models.StoreStats, error) {
	var stats models.StoreStats
	query := `
		SELECT
			(SELECT COUNT(*) FROM chat_threads),
			(SELECT COUNT(*) FROM chat_messages),
			(SELECT COUNT(*) FROM file_uploads)`

	err := s.db.QueryRowContext(ctx, query).Scan(&stats.Threads, &stats.Messages, &stats.Uploads)
	if err != nil {
		return stats, fmt.Errorf("error querying stats: %v", err)
	}
	return stats, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
