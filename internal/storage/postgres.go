package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/xaenox/support-bot/internal/models"
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
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := &PostgresStorage{db: db}

	if err := storage.initializeSchema(); err != nil {
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, is_blocked, request_count, created_at
		FROM users
		WHERE telegram_id = $1`

	user := &models.User{}
	err := s.db.QueryRowContext(ctx, query, telegramID).Scan(
		&user.ID,
		&user.TelegramID,
		&user.Username,
		&user.FirstName,
		&user.LastName,
		&user.IsBlocked,
		&user.RequestCount,
		&user.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting user by telegram id: %w", err)
	}

	return user, nil
}

func (s *PostgresStorage) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (telegram_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_blocked, request_count, created_at`

	err := s.db.QueryRowContext(ctx, query,
		user.TelegramID,
		user.Username,
		user.FirstName,
		user.LastName,
	).Scan(&user.ID, &user.IsBlocked, &user.RequestCount, &user.CreatedAt)
	if err != nil {
		return fmt.Errorf("error creating user: %w", err)
	}

	return nil
}

func (s *PostgresStorage) IncrementRequestCount(ctx context.Context, userID int64) error {
	query := `UPDATE users SET request_count = request_count + 1 WHERE id = $1`

	if _, err := s.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error incrementing request count: %w", err)
	}

	return nil
}

func (s *PostgresStorage) SetUserBlocked(ctx context.Context, userID int64, blocked bool) error {
	query := `UPDATE users SET is_blocked = $1 WHERE id = $2`

	if _, err := s.db.ExecContext(ctx, query, blocked, userID); err != nil {
		return fmt.Errorf("error updating user block status: %w", err)
	}

	return nil
}

func (s *PostgresStorage) ListUsers(ctx context.Context) ([]*models.User, error) {
	query := `
		SELECT id, telegram_id, username, first_name, last_name, is_blocked, request_count, created_at
		FROM users
		ORDER BY created_at DESC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user := &models.User{}
		err := rows.Scan(
			&user.ID,
			&user.TelegramID,
			&user.Username,
			&user.FirstName,
			&user.LastName,
			&user.IsBlocked,
			&user.RequestCount,
			&user.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (s *PostgresStorage) SaveMessage(ctx context.Context, msg *models.Message) error {
	query := `
		INSERT INTO messages (id, user_id, message_text, is_from_bot)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		msg.ID,
		msg.UserID,
		msg.Text,
		msg.FromBot,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("error saving message: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetRecentMessages(ctx context.Context, userID int64, limit int) ([]*models.Message, error) {
	query := `
		SELECT id, user_id, message_text, is_from_bot, created_at
		FROM messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("error querying messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		msg := &models.Message{}
		err := rows.Scan(&msg.ID, &msg.UserID, &msg.Text, &msg.FromBot, &msg.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("error scanning message: %w", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error reading messages: %w", err)
	}

	// Newest-first from the query; callers need chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

func (s *PostgresStorage) ClearMessages(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("error clearing messages: %w", err)
	}
	return nil
}

func (s *PostgresStorage) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	query := `
		INSERT INTO tickets (user_id, status, priority, issue_type, description)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		ticket.UserID,
		ticket.Status,
		ticket.Priority,
		ticket.IssueType,
		ticket.Description,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error creating ticket: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetTicket(ctx context.Context, id int64) (*models.Ticket, error) {
	query := `
		SELECT id, user_id, status, priority, issue_type, description, created_at, updated_at
		FROM tickets
		WHERE id = $1`

	ticket := &models.Ticket{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&ticket.ID,
		&ticket.UserID,
		&ticket.Status,
		&ticket.Priority,
		&ticket.IssueType,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error getting ticket: %w", err)
	}

	return ticket, nil
}

func (s *PostgresStorage) ListTickets(ctx context.Context) ([]*models.Ticket, error) {
	query := `
		SELECT id, user_id, status, priority, issue_type, description, created_at, updated_at
		FROM tickets
		ORDER BY created_at DESC`

	return s.queryTickets(ctx, query)
}

func (s *PostgresStorage) ListUserTickets(ctx context.Context, userID int64) ([]*models.Ticket, error) {
	query := `
		SELECT id, user_id, status, priority, issue_type, description, created_at, updated_at
		FROM tickets
		WHERE user_id = $1
		ORDER BY created_at DESC`

	return s.queryTickets(ctx, query, userID)
}

func (s *PostgresStorage) queryTickets(ctx context.Context, query string, args ...any) ([]*models.Ticket, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying tickets: %w", err)
	}
	defer rows.Close()

	var tickets []*models.Ticket
	for rows.Next() {
		ticket := &models.Ticket{}
		err := rows.Scan(
			&ticket.ID,
			&ticket.UserID,
			&ticket.Status,
			&ticket.Priority,
			&ticket.IssueType,
			&ticket.Description,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning ticket: %w", err)
		}
		tickets = append(tickets, ticket)
	}

	return tickets, rows.Err()
}

func (s *PostgresStorage) UpdateTicketStatus(ctx context.Context, id int64, status models.TicketStatus) error {
	query := `UPDATE tickets SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("error updating ticket status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) ListFaqs(ctx context.Context) ([]*models.FaqEntry, error) {
	query := `
		SELECT id, question, answer, keywords, category, created_at, updated_at
		FROM faqs
		ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error querying faqs: %w", err)
	}
	defer rows.Close()

	var faqs []*models.FaqEntry
	for rows.Next() {
		faq := &models.FaqEntry{}
		err := rows.Scan(
			&faq.ID,
			&faq.Question,
			&faq.Answer,
			&faq.Keywords,
			&faq.Category,
			&faq.CreatedAt,
			&faq.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning faq: %w", err)
		}
		faqs = append(faqs, faq)
	}

	return faqs, rows.Err()
}

func (s *PostgresStorage) AddFaq(ctx context.Context, faq *models.FaqEntry) error {
	query := `
		INSERT INTO faqs (question, answer, keywords, category)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		faq.Question,
		faq.Answer,
		faq.Keywords,
		faq.Category,
	).Scan(&faq.ID, &faq.CreatedAt, &faq.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error adding faq: %w", err)
	}

	return nil
}

func (s *PostgresStorage) UpdateFaq(ctx context.Context, faq *models.FaqEntry) error {
	query := `
		UPDATE faqs
		SET question = $1, answer = $2, keywords = $3, category = $4, updated_at = NOW()
		WHERE id = $5`

	result, err := s.db.ExecContext(ctx, query,
		faq.Question,
		faq.Answer,
		faq.Keywords,
		faq.Category,
		faq.ID,
	)
	if err != nil {
		return fmt.Errorf("error updating faq: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}

func (s *PostgresStorage) DeleteFaq(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM faqs WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("error deleting faq: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("error getting rows affected: %w", err)
	}

	return affected > 0, nil
}

func (s *PostgresStorage) GetStats(ctx context.Context) (*models.Stats, error) {
	stats := &models.Stats{}

	query := `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COALESCE(SUM(request_count), 0) FROM users),
			(SELECT COUNT(*) FROM messages),
			(SELECT COUNT(*) FROM faqs),
			(SELECT COUNT(*) FROM tickets),
			(SELECT COUNT(*) FROM tickets WHERE status = $1),
			(SELECT COUNT(*) FROM tickets WHERE status = $2),
			(SELECT COUNT(*) FROM tickets WHERE status = $3),
			(SELECT COUNT(*) FROM tickets WHERE status = $4),
			(SELECT MAX(created_at) FROM messages)`

	var last sql.NullTime
	err := s.db.QueryRowContext(ctx, query,
		models.TicketStatusNew,
		models.TicketStatusInProgress,
		models.TicketStatusResolved,
		models.TicketStatusClosed,
	).Scan(
		&stats.Users,
		&stats.TotalRequests,
		&stats.Messages,
		&stats.Faqs,
		&stats.TicketsTotal,
		&stats.TicketsNew,
		&stats.TicketsInProgress,
		&stats.TicketsResolved,
		&stats.TicketsClosed,
		&last,
	)
	if err != nil {
		return nil, fmt.Errorf("error getting stats: %w", err)
	}
	if last.Valid {
		stats.LastActivity = &last.Time
	}

	return stats, nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
