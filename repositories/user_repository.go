package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/lib/pq"
)

var ErrUserNotFound = errors.New("user not found")

// UserRepository reads the users table owned by the auth service. Only elo is written here.
type UserRepository interface {
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error)
	// LockForUpdate блокирует строки пользователей до конца транзакции.
	// Rows are locked in ascending id order, so two transactions over the same users cannot deadlock.
	LockForUpdate(ctx context.Context, exec SQLExecutor, ids ...int) (map[int]*models.User, error)
	UpdateElo(ctx context.Context, exec SQLExecutor, id int, elo int) error
}

type postgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.User, error) {
	query := `SELECT id, nickname, elo, avatar_key FROM users WHERE id = $1`

	user := &models.User{}
	var avatarKey sql.NullString
	err := getExecutor(r.db, exec).QueryRowContext(ctx, query, id).Scan(&user.ID, &user.Nickname, &user.Elo, &avatarKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user by id %d: %w", id, err)
	}
	if avatarKey.Valid {
		user.AvatarKey = &avatarKey.String
	}
	return user, nil
}

func (r *postgresUserRepository) LockForUpdate(ctx context.Context, exec SQLExecutor, ids ...int) (map[int]*models.User, error) {
	query := `SELECT id, nickname, elo, avatar_key FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE`

	rows, err := getExecutor(r.db, exec).QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to lock users %v: %w", ids, err)
	}
	defer rows.Close()

	users := make(map[int]*models.User, len(ids))
	for rows.Next() {
		user := &models.User{}
		var avatarKey sql.NullString
		if scanErr := rows.Scan(&user.ID, &user.Nickname, &user.Elo, &avatarKey); scanErr != nil {
			return nil, fmt.Errorf("failed to scan locked user row: %w", scanErr)
		}
		if avatarKey.Valid {
			user.AvatarKey = &avatarKey.String
		}
		users[user.ID] = user
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during locked user rows iteration: %w", err)
	}
	for _, id := range ids {
		if _, ok := users[id]; !ok {
			return nil, ErrUserNotFound
		}
	}
	return users, nil
}

func (r *postgresUserRepository) UpdateElo(ctx context.Context, exec SQLExecutor, id int, elo int) error {
	query := `UPDATE users SET elo = $1 WHERE id = $2`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, elo, id)
	if err != nil {
		return fmt.Errorf("failed to update elo for user %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrUserNotFound)
}
