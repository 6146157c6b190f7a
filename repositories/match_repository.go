package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/pong-tournaments/models"
	"github.com/lib/pq"
)

var (
	ErrMatchNotFound          = errors.New("match not found")
	ErrMatchAlreadyCompleted  = errors.New("match already completed")
	ErrMatchPlayerInvalid     = errors.New("match player references an unknown user")
	ErrMatchTournamentUnknown = errors.New("match references an unknown tournament")
)

// MatchResultRecord is the single result write applied to a pending match.
type MatchResultRecord struct {
	MatchID        int
	WinnerID       int
	LoserID        int
	WinnerEloAfter int
	LoserEloAfter  int
	WinnerGoals    *int
	LoserGoals     *int
	CompletedAt    time.Time
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetForUpdate locks the match row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error)
	RecordResult(ctx context.Context, exec SQLExecutor, rec MatchResultRecord) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	executor := getExecutor(r.db, exec)

	query := `
		INSERT INTO matches (tournament_id, round, match_type, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, match.TournamentID, match.Round, match.MatchType, match.Status).
		Scan(&match.ID, &match.CreatedAt)
	if err != nil {
		return r.handleMatchError(err, "create match")
	}

	playerQuery := `
		INSERT INTO match_players (match_id, user_id, slot, elo_before)
		VALUES ($1, $2, $3, $4)`

	for _, p := range match.Players {
		p.MatchID = match.ID
		if _, err = executor.ExecContext(ctx, playerQuery, p.MatchID, p.UserID, p.Slot, p.EloBefore); err != nil {
			return r.handleMatchError(err, fmt.Sprintf("add player %d to match %d", p.UserID, match.ID))
		}
	}
	return nil
}

func (r *postgresMatchRepository) handleMatchError(err error, op string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" { // foreign_key_violation
		if pqErr.Constraint == "matches_tournament_id_fkey" {
			return ErrMatchTournamentUnknown
		}
		return ErrMatchPlayerInvalid
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

const matchColumns = `m.id, m.tournament_id, m.round, m.match_type, m.status, m.winner_goals, m.loser_goals, m.created_at, m.completed_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }, m *models.Match) error {
	var tournamentID, winnerGoals, loserGoals sql.NullInt64
	var completedAt sql.NullTime
	if err := row.Scan(&m.ID, &tournamentID, &m.Round, &m.MatchType, &m.Status, &winnerGoals, &loserGoals, &m.CreatedAt, &completedAt); err != nil {
		return err
	}
	m.TournamentID = nullIntPtr(tournamentID)
	m.WinnerGoals = nullIntPtr(winnerGoals)
	m.LoserGoals = nullIntPtr(loserGoals)
	if completedAt.Valid {
		m.CompletedAt = &completedAt.Time
	}
	return nil
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getMatch(ctx, getExecutor(r.db, exec), `SELECT `+matchColumns+` FROM matches m WHERE m.id = $1`, id)
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.getMatch(ctx, getExecutor(r.db, exec), `SELECT `+matchColumns+` FROM matches m WHERE m.id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) getMatch(ctx context.Context, executor SQLExecutor, query string, id int) (*models.Match, error) {
	match := &models.Match{}
	if err := scanMatch(executor.QueryRowContext(ctx, query, id), match); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match by id %d: %w", id, err)
	}

	players, err := r.listPlayers(ctx, executor, `WHERE mp.match_id = $1`, id)
	if err != nil {
		return nil, err
	}
	match.Players = players
	return match, nil
}

func (r *postgresMatchRepository) listPlayers(ctx context.Context, executor SQLExecutor, where string, arg int) ([]*models.MatchPlayer, error) {
	query := `
		SELECT mp.match_id, mp.user_id, mp.slot, mp.elo_before, mp.elo_after, mp.score, u.nickname, u.elo, u.avatar_key
		FROM match_players mp
		JOIN users u ON u.id = mp.user_id
		` + where + `
		ORDER BY mp.match_id ASC, mp.slot ASC`

	rows, err := executor.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query match players: %w", err)
	}
	defer rows.Close()

	players := make([]*models.MatchPlayer, 0, 2)
	for rows.Next() {
		p := &models.MatchPlayer{}
		var eloAfter, score sql.NullInt64
		var avatarKey sql.NullString
		if scanErr := rows.Scan(&p.MatchID, &p.UserID, &p.Slot, &p.EloBefore, &eloAfter, &score, &p.Nickname, &p.Rating, &avatarKey); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match player row: %w", scanErr)
		}
		p.EloAfter = nullIntPtr(eloAfter)
		p.Score = nullIntPtr(score)
		if avatarKey.Valid {
			p.AvatarKey = &avatarKey.String
		}
		players = append(players, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match player rows iteration: %w", err)
	}
	return players, nil
}

// ListByTournament returns the bracket ordered by round and then by id, which is the pairing emission order.
func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.Match, error) {
	executor := getExecutor(r.db, exec)

	query := `SELECT ` + matchColumns + `
		FROM matches m
		WHERE m.tournament_id = $1 AND m.match_type = $2
		ORDER BY m.round ASC, m.id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID, models.MatchTypeTournament)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	byID := make(map[int]*models.Match)
	for rows.Next() {
		m := &models.Match{}
		if scanErr := scanMatch(rows, m); scanErr != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", scanErr)
		}
		m.Players = make([]*models.MatchPlayer, 0, 2)
		matches = append(matches, m)
		byID[m.ID] = m
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during match rows iteration: %w", err)
	}
	rows.Close()

	if len(matches) == 0 {
		return matches, nil
	}

	players, err := r.listPlayers(ctx, executor,
		`JOIN matches m ON m.id = mp.match_id WHERE m.tournament_id = $1`, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, p := range players {
		if m, ok := byID[p.MatchID]; ok {
			m.Players = append(m.Players, p)
		}
	}
	return matches, nil
}

// RecordResult writes the outcome exactly once; a match that is no longer pending yields ErrMatchAlreadyCompleted.
func (r *postgresMatchRepository) RecordResult(ctx context.Context, exec SQLExecutor, rec MatchResultRecord) error {
	executor := getExecutor(r.db, exec)

	query := `
		UPDATE matches
		SET status = $1, completed_at = $2, winner_goals = $3, loser_goals = $4
		WHERE id = $5 AND status = $6`
	result, err := executor.ExecContext(ctx, query,
		models.MatchStatusCompleted, rec.CompletedAt, rec.WinnerGoals, rec.LoserGoals, rec.MatchID, models.MatchStatusPending)
	if err != nil {
		return fmt.Errorf("failed to complete match %d: %w", rec.MatchID, err)
	}
	if err = checkAffectedRows(result, ErrMatchAlreadyCompleted); err != nil {
		return err
	}

	playerQuery := `UPDATE match_players SET elo_after = $1, score = $2 WHERE match_id = $3 AND user_id = $4`
	updates := []struct {
		userID, eloAfter, score int
	}{
		{rec.WinnerID, rec.WinnerEloAfter, models.ScoreWin},
		{rec.LoserID, rec.LoserEloAfter, models.ScoreLoss},
	}
	for _, u := range updates {
		result, err = executor.ExecContext(ctx, playerQuery, u.eloAfter, u.score, rec.MatchID, u.userID)
		if err != nil {
			return fmt.Errorf("failed to write result for player %d in match %d: %w", u.userID, rec.MatchID, err)
		}
		if err = checkAffectedRows(result, ErrMatchNotFound); err != nil {
			return err
		}
	}
	return nil
}
