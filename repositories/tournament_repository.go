package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/lib/pq"
)

var (
	ErrTournamentNotFound         = errors.New("tournament not found")
	ErrTournamentStatusConflict   = errors.New("tournament status changed concurrently")
	ErrTournamentPlayerNotFound   = errors.New("tournament player not found")
	ErrTournamentPlayerConflict   = errors.New("user is already registered for this tournament")
	ErrTournamentPlayerUserReject = errors.New("tournament player references an unknown user")
)

type ListTournamentsFilter struct {
	Status           *models.TournamentStatus
	ExcludeCompleted bool
	Limit            int
	Offset           int
}

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	ListByUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error)
	MarkStarted(ctx context.Context, exec SQLExecutor, id int, startedAt time.Time) error
	MarkCompleted(ctx context.Context, exec SQLExecutor, id int, championID int, completedAt time.Time) error

	AddPlayer(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error
	RemovePlayer(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error
	ListPlayers(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error)
	SetPlacements(ctx context.Context, exec SQLExecutor, tournamentID, championID int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `
	t.id, t.name, t.status, t.player_count, t.champion_id, t.created_at, t.started_at, t.completed_at,
	(SELECT COUNT(*) FROM tournament_players tp WHERE tp.tournament_id = t.id) AS registered_count`

func scanTournament(row interface{ Scan(dest ...interface{}) error }, t *models.Tournament) error {
	var championID sql.NullInt64
	var startedAt, completedAt sql.NullTime
	if err := row.Scan(
		&t.ID, &t.Name, &t.Status, &t.PlayerCount, &championID, &t.CreatedAt, &startedAt, &completedAt,
		&t.RegisteredCount,
	); err != nil {
		return err
	}
	if championID.Valid {
		id := int(championID.Int64)
		t.ChampionID = &id
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	query := `
		INSERT INTO tournaments (name, status, player_count)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := getExecutor(r.db, exec).QueryRowContext(ctx, query, t.Name, t.Status, t.PlayerCount).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	query := `SELECT` + tournamentColumns + ` FROM tournaments t WHERE t.id = $1`

	t := &models.Tournament{}
	if err := scanTournament(getExecutor(r.db, exec).QueryRowContext(ctx, query, id), t); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament by id %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	var queryBuilder strings.Builder
	queryBuilder.WriteString(`SELECT` + tournamentColumns + ` FROM tournaments t WHERE 1=1`)

	args := []interface{}{}
	argID := 1

	if filter.Status != nil {
		queryBuilder.WriteString(fmt.Sprintf(" AND t.status = $%d", argID))
		args = append(args, *filter.Status)
		argID++
	}
	if filter.ExcludeCompleted {
		queryBuilder.WriteString(fmt.Sprintf(" AND t.status <> $%d", argID))
		args = append(args, models.StatusCompleted)
		argID++
	}

	queryBuilder.WriteString(" ORDER BY t.created_at DESC, t.id DESC")

	if filter.Limit > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" LIMIT $%d", argID))
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		queryBuilder.WriteString(fmt.Sprintf(" OFFSET $%d", argID))
		args = append(args, filter.Offset)
	}

	return r.queryTournaments(ctx, queryBuilder.String(), args...)
}

func (r *postgresTournamentRepository) ListByUser(ctx context.Context, userID, limit, offset int) ([]models.Tournament, error) {
	query := `SELECT` + tournamentColumns + `
		FROM tournaments t
		JOIN tournament_players me ON me.tournament_id = t.id AND me.user_id = $1
		ORDER BY t.created_at DESC, t.id DESC
		LIMIT $2 OFFSET $3`
	return r.queryTournaments(ctx, query, userID, limit, offset)
}

func (r *postgresTournamentRepository) queryTournaments(ctx context.Context, query string, args ...interface{}) ([]models.Tournament, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments: %w", err)
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration: %w", err)
	}
	return tournaments, nil
}

// MarkStarted only succeeds from registering, so a lost race surfaces as ErrTournamentStatusConflict.
func (r *postgresTournamentRepository) MarkStarted(ctx context.Context, exec SQLExecutor, id int, startedAt time.Time) error {
	query := `UPDATE tournaments SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, models.StatusInProgress, startedAt, id, models.StatusRegistering)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d started: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusConflict)
}

func (r *postgresTournamentRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int, championID int, completedAt time.Time) error {
	query := `UPDATE tournaments SET status = $1, completed_at = $2, champion_id = $3 WHERE id = $4 AND status = $5`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, models.StatusCompleted, completedAt, championID, id, models.StatusInProgress)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d completed: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusConflict)
}

func (r *postgresTournamentRepository) AddPlayer(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error {
	query := `INSERT INTO tournament_players (tournament_id, user_id) VALUES ($1, $2)`
	_, err := getExecutor(r.db, exec).ExecContext(ctx, query, tournamentID, userID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505": // unique_violation
				return ErrTournamentPlayerConflict
			case "23503": // foreign_key_violation
				if pqErr.Constraint == "tournament_players_tournament_id_fkey" {
					return ErrTournamentNotFound
				}
				return ErrTournamentPlayerUserReject
			}
		}
		return fmt.Errorf("failed to add player %d to tournament %d: %w", userID, tournamentID, err)
	}
	return nil
}

func (r *postgresTournamentRepository) RemovePlayer(ctx context.Context, exec SQLExecutor, tournamentID, userID int) error {
	query := `DELETE FROM tournament_players WHERE tournament_id = $1 AND user_id = $2`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, tournamentID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove player %d from tournament %d: %w", userID, tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}

func (r *postgresTournamentRepository) ListPlayers(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	query := `
		SELECT tp.tournament_id, tp.user_id, tp.placement, tp.joined_at, u.nickname, u.elo, u.avatar_key
		FROM tournament_players tp
		JOIN users u ON u.id = tp.user_id
		WHERE tp.tournament_id = $1
		ORDER BY tp.joined_at ASC, tp.user_id ASC`

	rows, err := getExecutor(r.db, exec).QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	players := make([]*models.TournamentPlayer, 0)
	for rows.Next() {
		p := &models.TournamentPlayer{}
		var placement sql.NullInt64
		var avatarKey sql.NullString
		if scanErr := rows.Scan(&p.TournamentID, &p.UserID, &placement, &p.JoinedAt, &p.Nickname, &p.Elo, &avatarKey); scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament player row: %w", scanErr)
		}
		if placement.Valid {
			v := int(placement.Int64)
			p.Placement = &v
		}
		if avatarKey.Valid {
			p.AvatarKey = &avatarKey.String
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament player rows iteration: %w", err)
	}
	return players, nil
}

// SetPlacements ставит 1 чемпиону и 2 всем остальным участникам.
func (r *postgresTournamentRepository) SetPlacements(ctx context.Context, exec SQLExecutor, tournamentID, championID int) error {
	query := `
		UPDATE tournament_players
		SET placement = CASE WHEN user_id = $2 THEN $3 ELSE $4 END
		WHERE tournament_id = $1`
	result, err := getExecutor(r.db, exec).ExecContext(ctx, query, tournamentID, championID, models.ChampionPlacement, models.RunnerUpPlacement)
	if err != nil {
		return fmt.Errorf("failed to set placements for tournament %d: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentPlayerNotFound)
}
