package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// ── Profiles ──

func (s *PostgresStore) CreateProfile(ctx context.Context, p Profile) (Profile, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO profiles (name, password_hash, profession, bio, avatar)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, p.Name, p.PasswordHash, p.Profession, p.Bio, p.Avatar).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("insert profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) GetProfileByName(ctx context.Context, name string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, password_hash, profession, bio, avatar, created_at
		FROM profiles
		WHERE name=$1
	`, name).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Profession, &p.Bio, &p.Avatar, &p.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetProfileByID(ctx context.Context, id int64) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, password_hash, profession, bio, avatar, created_at
		FROM profiles
		WHERE id=$1
	`, id).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Profession, &p.Bio, &p.Avatar, &p.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) ListProfiles(ctx context.Context) ([]Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, password_hash, profession, bio, avatar, created_at
		FROM profiles
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	items := make([]Profile, 0)
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Profession, &p.Bio, &p.Avatar, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return items, nil
}

// UpdateProfile applies a partial update. The name is immutable and not part of
// the patch. Returns sql.ErrNoRows if the profile does not exist.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id int64, patch ProfilePatch) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		UPDATE profiles
		SET profession=COALESCE($2, profession),
			bio=COALESCE($3, bio),
			avatar=COALESCE($4, avatar)
		WHERE id=$1
		RETURNING id, name, password_hash, profession, bio, avatar, created_at
	`, id, patch.Profession, patch.Bio, patch.Avatar).Scan(&p.ID, &p.Name, &p.PasswordHash, &p.Profession, &p.Bio, &p.Avatar, &p.CreatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

// ── Todos ──

func (s *PostgresStore) ListTodos(ctx context.Context, profileID int64, date *time.Time) ([]Todo, error) {
	query := `
		SELECT id, profile_id, text, is_completed, date
		FROM todos
		WHERE profile_id=$1
		ORDER BY id
	`
	args := []any{profileID}
	if date != nil {
		query = `
			SELECT id, profile_id, text, is_completed, date
			FROM todos
			WHERE profile_id=$1 AND date=$2
			ORDER BY id
		`
		args = append(args, *date)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	defer rows.Close()

	items := make([]Todo, 0)
	for rows.Next() {
		var t Todo
		if err := rows.Scan(&t.ID, &t.ProfileID, &t.Text, &t.IsCompleted, &t.Date); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate todos: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTodo(ctx context.Context, t Todo) (Todo, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO todos (profile_id, text, is_completed, date)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, t.ProfileID, t.Text, t.IsCompleted, t.Date).Scan(&t.ID)
	if err != nil {
		return Todo{}, fmt.Errorf("insert todo: %w", err)
	}
	return t, nil
}

// UpdateTodo applies a partial update scoped to the owner. A todo belonging to
// another profile is indistinguishable from a missing one: both return
// sql.ErrNoRows.
func (s *PostgresStore) UpdateTodo(ctx context.Context, profileID, todoID int64, patch TodoPatch) (Todo, error) {
	var t Todo
	err := s.db.QueryRowContext(ctx, `
		UPDATE todos
		SET text=COALESCE($3, text),
			is_completed=COALESCE($4, is_completed)
		WHERE id=$1 AND profile_id=$2
		RETURNING id, profile_id, text, is_completed, date
	`, todoID, profileID, patch.Text, patch.IsCompleted).Scan(&t.ID, &t.ProfileID, &t.Text, &t.IsCompleted, &t.Date)
	if err != nil {
		return Todo{}, err
	}
	return t, nil
}

func (s *PostgresStore) DeleteTodo(ctx context.Context, profileID, todoID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM todos WHERE id=$1 AND profile_id=$2 RETURNING id
	`, todoID, profileID).Scan(&id)
	return err
}

// ── Notes ──

func (s *PostgresStore) ListNotes(ctx context.Context, profileID int64) ([]Note, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, profile_id, title, body, created_at, updated_at
		FROM notes
		WHERE profile_id=$1
		ORDER BY updated_at DESC, id DESC
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	items := make([]Note, 0)
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.ProfileID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		items = append(items, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateNote(ctx context.Context, n Note) (Note, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO notes (profile_id, title, body)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`, n.ProfileID, n.Title, n.Body).Scan(&n.ID, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Note{}, fmt.Errorf("insert note: %w", err)
	}
	return n, nil
}

// UpdateNote bumps updated_at on every successful mutation; created_at never
// changes. Owner scoping as with todos.
func (s *PostgresStore) UpdateNote(ctx context.Context, profileID, noteID int64, patch NotePatch) (Note, error) {
	var n Note
	err := s.db.QueryRowContext(ctx, `
		UPDATE notes
		SET title=COALESCE($3, title),
			body=COALESCE($4, body),
			updated_at=NOW()
		WHERE id=$1 AND profile_id=$2
		RETURNING id, profile_id, title, body, created_at, updated_at
	`, noteID, profileID, patch.Title, patch.Body).Scan(&n.ID, &n.ProfileID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

func (s *PostgresStore) DeleteNote(ctx context.Context, profileID, noteID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx, `
		DELETE FROM notes WHERE id=$1 AND profile_id=$2 RETURNING id
	`, noteID, profileID).Scan(&id)
	return err
}

// ── Messages ──

func (s *PostgresStore) CreateMessage(ctx context.Context, m Message) (Message, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, receiver_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, m.SenderID, m.ReceiverID, m.Text).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}
	return m, nil
}

// ListConversation returns both directions of the (a, b) exchange ordered by
// creation time ascending, id as a tiebreaker so the order is deterministic.
func (s *PostgresStore) ListConversation(ctx context.Context, a, b int64) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, text, created_at
		FROM messages
		WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
		ORDER BY created_at, id
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("list conversation: %w", err)
	}
	defer rows.Close()

	items := make([]Message, 0)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Text, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return items, nil
}

// ── Tracks ──

func (s *PostgresStore) ListTracks(ctx context.Context) ([]Track, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, artist, filename, duration_seconds
		FROM tracks
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	defer rows.Close()

	items := make([]Track, 0)
	for rows.Next() {
		var t Track
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Filename, &t.DurationSeconds); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) CreateTrack(ctx context.Context, t Track) (Track, error) {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO tracks (title, artist, filename, duration_seconds)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, t.Title, t.Artist, t.Filename, t.DurationSeconds).Scan(&t.ID)
	if err != nil {
		return Track{}, fmt.Errorf("insert track: %w", err)
	}
	return t, nil
}
