package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"kchat/internal/migrations"
	"kchat/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the persistent store behind the chat API: messages per room,
// push subscriptions, and notification fan-out logs.
type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := newEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertMessage persists a message and returns nothing; the caller supplies
// the server-assigned ID and timestamp.
func (d *Database) InsertMessage(ctx context.Context, msg *models.Message) error {
	encryptedBody, err := d.encryptor.Encrypt(msg.Body)
	if err != nil {
		return fmt.Errorf("failed to encrypt message body: %w", err)
	}

	query := `
		INSERT INTO messages (id, room_id, author_id, body, attachment_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = d.db.ExecContext(ctx, query,
		msg.ID,
		msg.RoomID,
		msg.AuthorID,
		encryptedBody,
		msg.AttachmentURL,
		msg.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}

	return nil
}

// ListMessagesAfter returns all messages in a room strictly newer than the
// given watermark, ascending by creation time. This is the incremental poll
// query: a zero watermark returns the full room history.
func (d *Database) ListMessagesAfter(ctx context.Context, roomID string, after time.Time) ([]models.Message, error) {
	query := `
		SELECT id, room_id, author_id, body, attachment_url, created_at
		FROM messages
		WHERE room_id = ? AND created_at > ?
		ORDER BY created_at ASC
	`

	rows, err := d.db.QueryContext(ctx, query, roomID, after.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ID, &msg.RoomID, &msg.AuthorID, &msg.Body, &msg.AttachmentURL, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		decrypted, err := d.encryptor.Decrypt(msg.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt message body: %w", err)
		}
		msg.Body = decrypted
		msg.CreatedAt = msg.CreatedAt.UTC()

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// SavePushSubscription registers a push endpoint, replacing any existing row
// for the same endpoint so re-subscribes are idempotent.
func (d *Database) SavePushSubscription(ctx context.Context, sub *models.PushSubscription) error {
	query := `
		INSERT INTO push_subscriptions (id, user_id, endpoint, p256dh_key, auth_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(endpoint) DO UPDATE SET
			user_id = excluded.user_id,
			p256dh_key = excluded.p256dh_key,
			auth_key = excluded.auth_key
	`

	_, err := d.db.ExecContext(ctx, query,
		sub.ID, sub.UserID, sub.Endpoint, sub.P256dhKey, sub.AuthKey, sub.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}

	return nil
}

// GetPushSubscriptions returns all registered push endpoints for a user.
func (d *Database) GetPushSubscriptions(ctx context.Context, userID string) ([]models.PushSubscription, error) {
	query := `
		SELECT id, user_id, endpoint, p256dh_key, auth_key, created_at
		FROM push_subscriptions
		WHERE user_id = ?
		ORDER BY created_at ASC
	`

	rows, err := d.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.PushSubscription
	for rows.Next() {
		var sub models.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate push subscriptions: %w", err)
	}

	return subs, nil
}

// DeletePushSubscription removes a single push endpoint, typically after the
// push service reports it gone (404/410).
func (d *Database) DeletePushSubscription(ctx context.Context, id string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}

// CreateNotificationLog inserts a pending fan-out log entry.
func (d *Database) CreateNotificationLog(ctx context.Context, log *models.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, user_id, title, body, status, sent_count, failed_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := d.db.ExecContext(ctx, query,
		log.ID, log.UserID, log.Title, log.Body, log.Status, log.SentCount, log.FailedCount, log.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create notification log: %w", err)
	}

	return nil
}

// UpdateNotificationLog records the final outcome of a fan-out.
func (d *Database) UpdateNotificationLog(ctx context.Context, id string, status models.NotificationStatus, sentCount, failedCount int) error {
	query := `
		UPDATE notification_logs
		SET status = ?, sent_count = ?, failed_count = ?
		WHERE id = ?
	`

	result, err := d.db.ExecContext(ctx, query, status, sentCount, failedCount, id)
	if err != nil {
		return fmt.Errorf("failed to update notification log: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check notification log update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("notification log not found: %s", id)
	}

	return nil
}
