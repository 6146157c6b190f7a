package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/Dosada05/pong-tournaments/brackets"
	"github.com/Dosada05/pong-tournaments/models"
	"github.com/Dosada05/pong-tournaments/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memStore is an in-memory stand-in for the tournament tables.
type memStore struct {
	mu          sync.Mutex
	users       map[int]*models.User
	tournaments map[int]*models.Tournament
	players     map[int][]*models.TournamentPlayer
	matches     map[int]*models.Match
	nextID      int
	clock       time.Time
}

func newMemStore() *memStore {
	return &memStore{
		users:       make(map[int]*models.User),
		tournaments: make(map[int]*models.Tournament),
		players:     make(map[int][]*models.TournamentPlayer),
		matches:     make(map[int]*models.Match),
		clock:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) addUser(id int, nickname string, elo int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &models.User{ID: id, Nickname: nickname, Elo: elo}
}

func (s *memStore) elo(id int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[id].Elo
}

func (s *memStore) id() int {
	s.nextID++
	return s.nextID
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func copyMatch(m *models.Match) *models.Match {
	c := *m
	c.Players = make([]*models.MatchPlayer, 0, len(m.Players))
	for _, p := range m.Players {
		pc := *p
		c.Players = append(c.Players, &pc)
	}
	return &c
}

type memTournamentRepo struct{ s *memStore }

func (r *memTournamentRepo) Create(_ context.Context, _ repositories.SQLExecutor, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t.ID = r.s.id()
	t.CreatedAt = r.s.tick()
	c := *t
	r.s.tournaments[t.ID] = &c
	return nil
}

func (r *memTournamentRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	c.RegisteredCount = len(r.s.players[id])
	return &c, nil
}

func (r *memTournamentRepo) List(_ context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.ExcludeCompleted && t.Status == models.StatusCompleted {
			continue
		}
		c := *t
		c.RegisteredCount = len(r.s.players[t.ID])
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, filter.Limit, filter.Offset), nil
}

func page(in []models.Tournament, limit, offset int) []models.Tournament {
	if offset >= len(in) {
		return []models.Tournament{}
	}
	in = in[offset:]
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}

func (r *memTournamentRepo) ListByUser(_ context.Context, userID, limit, offset int) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tournament, 0)
	for id, players := range r.s.players {
		for _, p := range players {
			if p.UserID == userID {
				c := *r.s.tournaments[id]
				c.RegisteredCount = len(players)
				out = append(out, c)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, limit, offset), nil
}

func (r *memTournamentRepo) MarkStarted(_ context.Context, _ repositories.SQLExecutor, id int, startedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.Status != models.StatusRegistering {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = models.StatusInProgress
	t.StartedAt = &startedAt
	return nil
}

func (r *memTournamentRepo) MarkCompleted(_ context.Context, _ repositories.SQLExecutor, id int, championID int, completedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tournaments[id]
	if !ok || t.Status != models.StatusInProgress {
		return repositories.ErrTournamentStatusConflict
	}
	t.Status = models.StatusCompleted
	t.CompletedAt = &completedAt
	t.ChampionID = &championID
	return nil
}

func (r *memTournamentRepo) AddPlayer(_ context.Context, _ repositories.SQLExecutor, tournamentID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[tournamentID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	if _, ok := r.s.users[userID]; !ok {
		return repositories.ErrTournamentPlayerUserReject
	}
	for _, p := range r.s.players[tournamentID] {
		if p.UserID == userID {
			return repositories.ErrTournamentPlayerConflict
		}
	}
	r.s.players[tournamentID] = append(r.s.players[tournamentID], &models.TournamentPlayer{
		TournamentID: tournamentID,
		UserID:       userID,
		JoinedAt:     r.s.tick(),
	})
	return nil
}

func (r *memTournamentRepo) RemovePlayer(_ context.Context, _ repositories.SQLExecutor, tournamentID, userID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	players := r.s.players[tournamentID]
	for i, p := range players {
		if p.UserID == userID {
			r.s.players[tournamentID] = append(players[:i:i], players[i+1:]...)
			return nil
		}
	}
	return repositories.ErrTournamentPlayerNotFound
}

func (r *memTournamentRepo) ListPlayers(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.TournamentPlayer, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.TournamentPlayer, 0, len(r.s.players[tournamentID]))
	for _, p := range r.s.players[tournamentID] {
		c := *p
		u := r.s.users[p.UserID]
		c.Nickname, c.Elo, c.AvatarKey = u.Nickname, u.Elo, u.AvatarKey
		out = append(out, &c)
	}
	return out, nil
}

func (r *memTournamentRepo) SetPlacements(_ context.Context, _ repositories.SQLExecutor, tournamentID, championID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	players := r.s.players[tournamentID]
	if len(players) == 0 {
		return repositories.ErrTournamentPlayerNotFound
	}
	for _, p := range players {
		placement := models.RunnerUpPlacement
		if p.UserID == championID {
			placement = models.ChampionPlacement
		}
		p.Placement = &placement
	}
	return nil
}

func (r *memTournamentRepo) placement(tournamentID, userID int) *int {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.players[tournamentID] {
		if p.UserID == userID {
			return p.Placement
		}
	}
	return nil
}

type memMatchRepo struct {
	s *memStore
	// getByIDErr, when set, fails plain reads to simulate a storage outage.
	getByIDErr error
	// createErr fails the next Create only.
	createErr error
}

func (r *memMatchRepo) Create(_ context.Context, _ repositories.SQLExecutor, match *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.createErr; err != nil {
		r.createErr = nil
		return err
	}
	match.ID = r.s.id()
	match.CreatedAt = r.s.tick()
	for _, p := range match.Players {
		p.MatchID = match.ID
	}
	r.s.matches[match.ID] = copyMatch(match)
	return nil
}

func (r *memMatchRepo) withProfiles(m *models.Match) *models.Match {
	c := copyMatch(m)
	for _, p := range c.Players {
		if u, ok := r.s.users[p.UserID]; ok {
			p.Nickname, p.Rating, p.AvatarKey = u.Nickname, u.Elo, u.AvatarKey
		}
	}
	return c
}

func (r *memMatchRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.getByIDErr != nil {
		return nil, r.getByIDErr
	}
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return r.withProfiles(m), nil
}

func (r *memMatchRepo) GetForUpdate(_ context.Context, _ repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return r.withProfiles(m), nil
}

func (r *memMatchRepo) ListByTournament(_ context.Context, _ repositories.SQLExecutor, tournamentID int) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.TournamentID != nil && *m.TournamentID == tournamentID && m.MatchType == models.MatchTypeTournament {
			out = append(out, r.withProfiles(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *memMatchRepo) RecordResult(_ context.Context, _ repositories.SQLExecutor, rec repositories.MatchResultRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[rec.MatchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if m.Status != models.MatchStatusPending {
		return repositories.ErrMatchAlreadyCompleted
	}
	m.Status = models.MatchStatusCompleted
	completedAt := rec.CompletedAt
	m.CompletedAt = &completedAt
	m.WinnerGoals, m.LoserGoals = rec.WinnerGoals, rec.LoserGoals
	for _, p := range m.Players {
		score, after := models.ScoreLoss, rec.LoserEloAfter
		if p.UserID == rec.WinnerID {
			score, after = models.ScoreWin, rec.WinnerEloAfter
		}
		p.Score, p.EloAfter = &score, &after
	}
	return nil
}

// insertMatch puts a raw match into the store, bypassing the service.
func (r *memMatchRepo) insertMatch(m *models.Match) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	for _, p := range m.Players {
		p.MatchID = m.ID
	}
	r.s.matches[m.ID] = copyMatch(m)
}

type memUserRepo struct {
	s *memStore
	// locked records every LockForUpdate call in the order rows were locked.
	locked [][]int
}

func (r *memUserRepo) GetByID(_ context.Context, _ repositories.SQLExecutor, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r *memUserRepo) LockForUpdate(_ context.Context, _ repositories.SQLExecutor, ids ...int) (map[int]*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	order := append([]int(nil), ids...)
	sort.Ints(order)
	r.locked = append(r.locked, order)
	users := make(map[int]*models.User, len(ids))
	for _, id := range order {
		u, ok := r.s.users[id]
		if !ok {
			return nil, repositories.ErrUserNotFound
		}
		c := *u
		users[id] = &c
	}
	return users, nil
}

func (r *memUserRepo) UpdateElo(_ context.Context, _ repositories.SQLExecutor, id int, elo int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.Elo = elo
	return nil
}

type memTxManager struct{}

func (memTxManager) WithinTx(_ context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// fixture wires the real services over the in-memory store.
type fixture struct {
	store       *memStore
	tRepo       *memTournamentRepo
	mRepo       *memMatchRepo
	uRepo       *memUserRepo
	results     MatchResultService
	tournaments TournamentService
}

// identityOrder keeps the roster in registration order, so pairings are predictable.
func identityOrder(n int) int { return n - 1 }

func newFixture() *fixture {
	store := newMemStore()
	f := &fixture{
		store: store,
		tRepo: &memTournamentRepo{s: store},
		mRepo: &memMatchRepo{s: store},
		uRepo: &memUserRepo{s: store},
	}
	logger := testLogger()
	f.results = NewMatchResultService(memTxManager{}, f.mRepo, f.uRepo, EloRating(DefaultTournamentKFactor), logger)
	f.tournaments = NewTournamentService(
		memTxManager{}, f.tRepo, f.mRepo, f.uRepo, f.results,
		brackets.NewSingleEliminationGeneratorWithSource(identityOrder),
		nil, logger,
	)
	return f
}

// seedUsers adds users 1..n named p1..pn with the given ratings (default 1000).
func (f *fixture) seedUsers(n int, elos ...int) {
	for i := 1; i <= n; i++ {
		elo := 1000
		if i-1 < len(elos) {
			elo = elos[i-1]
		}
		f.store.addUser(i, "p"+string(rune('0'+i)), elo)
	}
}

// recordingNotifier captures every event instead of writing to sockets.
type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
	rooms  map[string]map[int]struct{}
}

type sentEvent struct {
	To      int
	Type    string
	Payload any
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{rooms: make(map[string]map[int]struct{})}
}

func (n *recordingNotifier) Send(clientID int, eventType string, payload any) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{To: clientID, Type: eventType, Payload: payload})
	return true
}

func (n *recordingNotifier) SendToMany(clientIDs []int, eventType string, payload any) {
	for _, id := range clientIDs {
		n.Send(id, eventType, payload)
	}
}

func (n *recordingNotifier) SendToRoom(roomID string, eventType string, payload any, exclude ...int) {
	n.mu.Lock()
	members := make([]int, 0)
	for id := range n.rooms[roomID] {
		members = append(members, id)
	}
	n.mu.Unlock()
	sort.Ints(members)
	for _, id := range members {
		skip := false
		for _, ex := range exclude {
			skip = skip || ex == id
		}
		if !skip {
			n.Send(id, eventType, payload)
		}
	}
}

func (n *recordingNotifier) JoinRoom(roomID string, clientID int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.rooms[roomID] == nil {
		n.rooms[roomID] = make(map[int]struct{})
	}
	n.rooms[roomID][clientID] = struct{}{}
}

func (n *recordingNotifier) of(eventType string) []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]sentEvent, 0)
	for _, e := range n.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func (n *recordingNotifier) recipients(eventType string) []int {
	ids := make([]int, 0)
	for _, e := range n.of(eventType) {
		ids = append(ids, e.To)
	}
	sort.Ints(ids)
	return ids
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}

// manualScheduler keeps scheduled tasks until the test runs them.
type manualScheduler struct {
	mu    sync.Mutex
	tasks map[string][]scheduledTask
}

type scheduledTask struct {
	delay time.Duration
	fn    func()
}

func newManualScheduler() *manualScheduler {
	return &manualScheduler{tasks: make(map[string][]scheduledTask)}
}

func (m *manualScheduler) ScheduleOnce(tag string, delay time.Duration, fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[tag] = append(m.tasks[tag], scheduledTask{delay: delay, fn: fn})
	return nil
}

func (m *manualScheduler) Cancel(tag string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, tag)
}

func (m *manualScheduler) Shutdown() error { return nil }

func (m *manualScheduler) pending(tag string) []scheduledTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]scheduledTask(nil), m.tasks[tag]...)
}

// runAll executes and forgets every task scheduled under tag.
func (m *manualScheduler) runAll(tag string) int {
	m.mu.Lock()
	tasks := m.tasks[tag]
	delete(m.tasks, tag)
	m.mu.Unlock()
	for _, t := range tasks {
		t.fn()
	}
	return len(tasks)
}
