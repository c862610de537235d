package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"haven/api/internal/authpw"
	"haven/api/internal/identity"
	"haven/api/internal/media"
	"haven/api/internal/relay"
	"haven/api/internal/store"
)

const dateLayout = "2006-01-02"

type dataStore interface {
	Ping(context.Context) error
	GetProfileByName(context.Context, string) (store.Profile, error)
	GetProfileByID(context.Context, int64) (store.Profile, error)
	CreateProfile(context.Context, store.Profile) (store.Profile, error)
	UpdateProfile(context.Context, int64, store.ProfilePatch) (store.Profile, error)
	ListProfiles(context.Context) ([]store.Profile, error)
	ListTodos(context.Context, int64, *time.Time) ([]store.Todo, error)
	CreateTodo(context.Context, store.Todo) (store.Todo, error)
	UpdateTodo(context.Context, int64, int64, store.TodoPatch) (store.Todo, error)
	DeleteTodo(context.Context, int64, int64) error
	ListNotes(context.Context, int64) ([]store.Note, error)
	CreateNote(context.Context, store.Note) (store.Note, error)
	UpdateNote(context.Context, int64, int64, store.NotePatch) (store.Note, error)
	DeleteNote(context.Context, int64, int64) error
	CreateMessage(context.Context, store.Message) (store.Message, error)
	ListConversation(context.Context, int64, int64) ([]store.Message, error)
	ListTracks(context.Context) ([]store.Track, error)
	CreateTrack(context.Context, store.Track) (store.Track, error)
}

type relayClient interface {
	Relay(ctx context.Context, message, apiKey string) (string, error)
}

type Service struct {
	store    dataStore
	auth     *authpw.Service
	resolver identity.Resolver
	relay    relayClient
	media    media.Store
}

func New(st dataStore, resolver identity.Resolver, relay relayClient, mediaStore media.Store) *Service {
	return &Service{
		store:    st,
		auth:     authpw.NewService(st),
		resolver: resolver,
		relay:    relay,
		media:    mediaStore,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Status() map[string]any {
	return map[string]any{"status": "running", "service": "Haven Backend"}
}

// ResolveIdentity maps request headers to a caller profile; nil means
// anonymous. See the identity package for the trust model.
func (s *Service) ResolveIdentity(ctx context.Context, headers http.Header) (*store.Profile, error) {
	return s.resolver.Resolve(ctx, headers)
}

// ── Accounts ──

type SignUpInput struct {
	Name       string `json:"name"`
	Password   string `json:"password"`
	Profession string `json:"profession"`
	Bio        string `json:"bio"`
	Avatar     string `json:"avatar"`
}

func (s *Service) SignUp(ctx context.Context, input SignUpInput) (map[string]any, error) {
	if strings.TrimSpace(input.Name) == "" || input.Password == "" {
		return nil, domainError(http.StatusBadRequest, "Name and password required")
	}

	profile, err := s.auth.SignUp(ctx, authpw.SignUpRequest{
		Name:       strings.TrimSpace(input.Name),
		Password:   input.Password,
		Profession: input.Profession,
		Bio:        input.Bio,
		Avatar:     input.Avatar,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrNameTaken) {
			return nil, domainError(http.StatusBadRequest, "User already exists")
		}
		return nil, err
	}

	return map[string]any{"message": "Signup successful", "user": profileJSON(profile)}, nil
}

func (s *Service) SignIn(ctx context.Context, name, password string) (map[string]any, error) {
	if strings.TrimSpace(name) == "" || password == "" {
		return nil, domainError(http.StatusBadRequest, "Name and password required")
	}

	profile, err := s.auth.SignIn(ctx, strings.TrimSpace(name), password)
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return nil, domainError(http.StatusUnauthorized, "Invalid credentials")
		}
		return nil, err
	}

	return map[string]any{"message": "Login successful", "user": profileJSON(profile)}, nil
}

// ── Profiles ──

func (s *Service) GetProfile(ctx context.Context, name string) (map[string]any, error) {
	if strings.TrimSpace(name) == "" {
		return nil, domainError(http.StatusBadRequest, "Name parameter required")
	}
	profile, err := s.store.GetProfileByName(ctx, strings.TrimSpace(name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "User not found")
		}
		return nil, err
	}
	return profileJSON(profile), nil
}

type UpdateProfileInput struct {
	Name       string  `json:"name"`
	Profession *string `json:"profession"`
	Bio        *string `json:"bio"`
	Avatar     *string `json:"avatar"`
}

// UpdateProfile mutates the caller's own profile. Identity comes from the
// resolver like every other mutating endpoint; a body name, if sent, must
// match the caller since names are immutable.
func (s *Service) UpdateProfile(ctx context.Context, caller *store.Profile, input UpdateProfileInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}
	if name := strings.TrimSpace(input.Name); name != "" && name != caller.Name {
		return nil, domainError(http.StatusBadRequest, "Name cannot be changed")
	}

	profile, err := s.store.UpdateProfile(ctx, caller.ID, store.ProfilePatch{
		Profession: input.Profession,
		Bio:        input.Bio,
		Avatar:     input.Avatar,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "User not found")
		}
		return nil, err
	}

	return map[string]any{"message": "Profile updated", "user": profileJSON(profile)}, nil
}

// ListUsers returns every profile except the caller's.
func (s *Service) ListUsers(ctx context.Context, caller *store.Profile) ([]map[string]any, error) {
	profiles, err := s.store.ListProfiles(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(profiles))
	for _, p := range profiles {
		if caller != nil && p.ID == caller.ID {
			continue
		}
		items = append(items, profileJSON(p))
	}
	return items, nil
}

// ── Todos ──

func (s *Service) ListTodos(ctx context.Context, caller *store.Profile, dateParam string) ([]map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	var date *time.Time
	if dateParam != "" {
		parsed, err := time.Parse(dateLayout, dateParam)
		if err != nil {
			return nil, domainError(http.StatusBadRequest, "Invalid date format, expected YYYY-MM-DD")
		}
		date = &parsed
	}

	todos, err := s.store.ListTodos(ctx, caller.ID, date)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(todos))
	for _, t := range todos {
		items = append(items, todoJSON(t))
	}
	return items, nil
}

type CreateTodoInput struct {
	Text string `json:"text"`
	Date string `json:"date"`
}

func (s *Service) CreateTodo(ctx context.Context, caller *store.Profile, input CreateTodoInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}
	if input.Text == "" || input.Date == "" {
		return nil, domainError(http.StatusBadRequest, "Text and date required")
	}
	date, err := time.Parse(dateLayout, input.Date)
	if err != nil {
		return nil, domainError(http.StatusBadRequest, "Invalid date format, expected YYYY-MM-DD")
	}

	todo, err := s.store.CreateTodo(ctx, store.Todo{
		ProfileID: caller.ID,
		Text:      input.Text,
		Date:      date,
	})
	if err != nil {
		return nil, err
	}
	return todoJSON(todo), nil
}

type UpdateTodoInput struct {
	Text        *string `json:"text"`
	IsCompleted *bool   `json:"is_completed"`
}

func (s *Service) UpdateTodo(ctx context.Context, caller *store.Profile, todoID int64, input UpdateTodoInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	todo, err := s.store.UpdateTodo(ctx, caller.ID, todoID, store.TodoPatch{
		Text:        input.Text,
		IsCompleted: input.IsCompleted,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "Todo not found")
		}
		return nil, err
	}
	return todoJSON(todo), nil
}

func (s *Service) DeleteTodo(ctx context.Context, caller *store.Profile, todoID int64) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := s.store.DeleteTodo(ctx, caller.ID, todoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "Todo not found")
		}
		return nil, err
	}
	return map[string]any{"message": "Todo deleted"}, nil
}

// ── Notes ──

func (s *Service) ListNotes(ctx context.Context, caller *store.Profile) ([]map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	notes, err := s.store.ListNotes(ctx, caller.ID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(notes))
	for _, n := range notes {
		items = append(items, noteJSON(n))
	}
	return items, nil
}

type CreateNoteInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (s *Service) CreateNote(ctx context.Context, caller *store.Profile, input CreateNoteInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}
	if input.Title == "" {
		return nil, domainError(http.StatusBadRequest, "Title required")
	}

	note, err := s.store.CreateNote(ctx, store.Note{
		ProfileID: caller.ID,
		Title:     input.Title,
		Body:      input.Body,
	})
	if err != nil {
		return nil, err
	}
	return noteJSON(note), nil
}

type UpdateNoteInput struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

func (s *Service) UpdateNote(ctx context.Context, caller *store.Profile, noteID int64, input UpdateNoteInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	note, err := s.store.UpdateNote(ctx, caller.ID, noteID, store.NotePatch{
		Title: input.Title,
		Body:  input.Body,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "Note not found")
		}
		return nil, err
	}
	return noteJSON(note), nil
}

func (s *Service) DeleteNote(ctx context.Context, caller *store.Profile, noteID int64) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}

	if err := s.store.DeleteNote(ctx, caller.ID, noteID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusNotFound, "Note not found")
		}
		return nil, err
	}
	return map[string]any{"message": "Note deleted"}, nil
}

// ── Messages ──

type SendMessageInput struct {
	ReceiverID int64  `json:"receiver_id"`
	Text       string `json:"text"`
}

func (s *Service) SendMessage(ctx context.Context, caller *store.Profile, input SendMessageInput) (map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}
	if input.ReceiverID == 0 || input.Text == "" {
		return nil, domainError(http.StatusBadRequest, "Receiver and text required")
	}

	if _, err := s.store.GetProfileByID(ctx, input.ReceiverID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domainError(http.StatusBadRequest, "Receiver not found")
		}
		return nil, err
	}

	message, err := s.store.CreateMessage(ctx, store.Message{
		SenderID:   caller.ID,
		ReceiverID: input.ReceiverID,
		Text:       input.Text,
	})
	if err != nil {
		return nil, err
	}
	return messageJSON(message), nil
}

// MessageHistory returns the bidirectional conversation between the caller
// and partner, oldest first. Either participant sees the identical list.
func (s *Service) MessageHistory(ctx context.Context, caller *store.Profile, partnerID int64) ([]map[string]any, error) {
	if caller == nil {
		return nil, domainError(http.StatusUnauthorized, "User not authenticated")
	}
	if partnerID == 0 {
		return nil, domainError(http.StatusBadRequest, "partner_id parameter required")
	}

	messages, err := s.store.ListConversation(ctx, caller.ID, partnerID)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(messages))
	for _, m := range messages {
		items = append(items, messageJSON(m))
	}
	return items, nil
}

// ── Music ──

func (s *Service) ListTracks(ctx context.Context) ([]map[string]any, error) {
	tracks, err := s.store.ListTracks(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]map[string]any, 0, len(tracks))
	for _, t := range tracks {
		items = append(items, trackJSON(t))
	}
	return items, nil
}

type CreateTrackInput struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	Filename string `json:"filename"`
	Duration int    `json:"duration"`
}

// CreateTrack is intentionally open: tracks are global and carry no owner,
// unlike every other entity.
func (s *Service) CreateTrack(ctx context.Context, input CreateTrackInput) (map[string]any, error) {
	if input.Title == "" || input.Filename == "" {
		return nil, domainError(http.StatusBadRequest, "Title and filename required")
	}

	track, err := s.store.CreateTrack(ctx, store.Track{
		Title:           input.Title,
		Artist:          input.Artist,
		Filename:        input.Filename,
		DurationSeconds: input.Duration,
	})
	if err != nil {
		return nil, err
	}
	return trackJSON(track), nil
}

func (s *Service) OpenTrackFile(ctx context.Context, filename string) (media.Object, error) {
	obj, err := s.media.Open(ctx, filename)
	if err != nil {
		if errors.Is(err, media.ErrNotFound) {
			return nil, domainError(http.StatusNotFound, "File not found")
		}
		return nil, err
	}
	return obj, nil
}

// ── Chat ──

func (s *Service) Chat(ctx context.Context, message, apiKey string) (map[string]any, error) {
	if message == "" || apiKey == "" {
		return nil, domainError(http.StatusBadRequest, "Message and apiKey required")
	}

	reply, err := s.relay.Relay(ctx, message, apiKey)
	if err != nil {
		var upstream *relay.UpstreamError
		if errors.As(err, &upstream) {
			detail := strings.TrimSpace(upstream.Body)
			if detail == "" {
				detail = "AI service error"
			}
			return nil, domainError(upstream.StatusCode, detail)
		}
		if errors.Is(err, relay.ErrBadReply) {
			return nil, domainError(http.StatusInternalServerError, "Malformed response from AI service")
		}
		return nil, fmt.Errorf("relay chat: %w", err)
	}

	return map[string]any{"reply": reply}, nil
}

// ── JSON shapes ──

func profileJSON(p store.Profile) map[string]any {
	return map[string]any{
		"id":         p.ID,
		"name":       p.Name,
		"profession": p.Profession,
		"bio":        p.Bio,
		"avatar":     p.Avatar,
	}
}

func todoJSON(t store.Todo) map[string]any {
	return map[string]any{
		"id":           t.ID,
		"text":         t.Text,
		"is_completed": t.IsCompleted,
		"date":         t.Date.Format(dateLayout),
	}
}

func noteJSON(n store.Note) map[string]any {
	return map[string]any{
		"id":         n.ID,
		"title":      n.Title,
		"body":       n.Body,
		"created_at": n.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at": n.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func messageJSON(m store.Message) map[string]any {
	return map[string]any{
		"id":          m.ID,
		"sender_id":   m.SenderID,
		"receiver_id": m.ReceiverID,
		"text":        m.Text,
		"created_at":  m.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func trackJSON(t store.Track) map[string]any {
	return map[string]any{
		"id":       t.ID,
		"title":    t.Title,
		"artist":   t.Artist,
		"filename": t.Filename,
		"duration": t.DurationSeconds,
	}
}
