package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bodari/config"
	"bodari/internal/models"
	"bodari/pkg/apperr"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

const uniqueViolation = "23505"

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// translateErr maps driver errors onto the error taxonomy. key describes
// the row for DuplicateKey details.
func translateErr(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound(resource)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return apperr.DuplicateKey(resource, key, err)
	}
	return fmt.Errorf("%s: %w", resource, err)
}

// SaveUser creates the user or refreshes chat id and username.
func (db *PostgresDB) SaveUser(ctx context.Context, user *models.User) error {
	query := `
        INSERT INTO users (telegram_id, chat_id, username)
        VALUES ($1, $2, $3)
        ON CONFLICT (telegram_id) DO UPDATE
        SET chat_id = $2, username = $3, updated_at = NOW()
        RETURNING id, created_at, updated_at
    `

	err := db.pool.QueryRow(ctx, query, user.TelegramID, user.ChatID, user.Username).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	return translateErr(err, "user", fmt.Sprintf("telegram_id=%d", user.TelegramID))
}

func (db *PostgresDB) GetUserByTelegramID(ctx context.Context, telegramID int64) (*models.User, error) {
	query := `
        SELECT id, telegram_id, chat_id, username, created_at, updated_at
        FROM users
        WHERE telegram_id = $1
    `

	var user models.User
	err := db.pool.QueryRow(ctx, query, telegramID).Scan(
		&user.ID, &user.TelegramID, &user.ChatID, &user.Username,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err, "user", "")
	}
	return &user, nil
}

func (db *PostgresDB) GetUser(ctx context.Context, id int64) (*models.User, error) {
	query := `
        SELECT id, telegram_id, chat_id, username, created_at, updated_at
        FROM users
        WHERE id = $1
    `

	var user models.User
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.TelegramID, &user.ChatID, &user.Username,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		return nil, translateErr(err, "user", "")
	}
	return &user, nil
}

// CreateProfile fails with DuplicateKey when the user already has one.
func (db *PostgresDB) CreateProfile(ctx context.Context, p *models.UserProfile) error {
	query := `
        INSERT INTO user_profiles (
            user_id, name, date_of_birth, gender, height_cm, weight_kg,
            activity_level, goal, timeline_weeks, dietary_restrictions
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING created_at
    `

	restrictions := p.DietaryRestrictions
	if restrictions == nil {
		restrictions = []string{}
	}
	err := db.pool.QueryRow(ctx, query,
		p.UserID, p.Name, p.DateOfBirth, string(p.Gender), p.HeightCM, p.WeightKG,
		string(p.ActivityLevel), string(p.Goal), p.TimelineWeeks, restrictions,
	).Scan(&p.CreatedAt)
	return translateErr(err, "profile", fmt.Sprintf("user_id=%d", p.UserID))
}

func (db *PostgresDB) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	query := `
        SELECT user_id, name, date_of_birth, gender, height_cm, weight_kg,
               activity_level, goal, timeline_weeks, dietary_restrictions, created_at
        FROM user_profiles
        WHERE user_id = $1
    `

	var (
		p                      models.UserProfile
		gender, activity, goal string
	)
	err := db.pool.QueryRow(ctx, query, userID).Scan(
		&p.UserID, &p.Name, &p.DateOfBirth, &gender, &p.HeightCM, &p.WeightKG,
		&activity, &goal, &p.TimelineWeeks, &p.DietaryRestrictions, &p.CreatedAt,
	)
	if err != nil {
		return nil, translateErr(err, "profile", "")
	}
	p.Gender = models.Gender(gender)
	p.ActivityLevel = models.ActivityLevel(activity)
	p.Goal = models.Goal(goal)
	return &p, nil
}
