package app

import (
	"context"
	"database/sql"
	"time"

	"haven/api/internal/authpw"
	"haven/api/internal/identity"
	"haven/api/internal/media"
	"haven/api/internal/store"

	"github.com/spf13/afero"
)

// fakeStore implements dataStore with per-method function fields. Methods
// without an override fall back to empty-database behavior.
type fakeStore struct {
	pingFn             func(context.Context) error
	getProfileByNameFn func(context.Context, string) (store.Profile, error)
	getProfileByIDFn   func(context.Context, int64) (store.Profile, error)
	createProfileFn    func(context.Context, store.Profile) (store.Profile, error)
	updateProfileFn    func(context.Context, int64, store.ProfilePatch) (store.Profile, error)
	listProfilesFn     func(context.Context) ([]store.Profile, error)
	listTodosFn        func(context.Context, int64, *time.Time) ([]store.Todo, error)
	createTodoFn       func(context.Context, store.Todo) (store.Todo, error)
	updateTodoFn       func(context.Context, int64, int64, store.TodoPatch) (store.Todo, error)
	deleteTodoFn       func(context.Context, int64, int64) error
	listNotesFn        func(context.Context, int64) ([]store.Note, error)
	createNoteFn       func(context.Context, store.Note) (store.Note, error)
	updateNoteFn       func(context.Context, int64, int64, store.NotePatch) (store.Note, error)
	deleteNoteFn       func(context.Context, int64, int64) error
	createMessageFn    func(context.Context, store.Message) (store.Message, error)
	listConversationFn func(context.Context, int64, int64) ([]store.Message, error)
	listTracksFn       func(context.Context) ([]store.Track, error)
	createTrackFn      func(context.Context, store.Track) (store.Track, error)
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) GetProfileByName(ctx context.Context, name string) (store.Profile, error) {
	if f.getProfileByNameFn != nil {
		return f.getProfileByNameFn(ctx, name)
	}
	return store.Profile{}, sql.ErrNoRows
}

func (f *fakeStore) GetProfileByID(ctx context.Context, id int64) (store.Profile, error) {
	if f.getProfileByIDFn != nil {
		return f.getProfileByIDFn(ctx, id)
	}
	return store.Profile{}, sql.ErrNoRows
}

func (f *fakeStore) CreateProfile(ctx context.Context, p store.Profile) (store.Profile, error) {
	if f.createProfileFn != nil {
		return f.createProfileFn(ctx, p)
	}
	p.ID = 1
	return p, nil
}

func (f *fakeStore) UpdateProfile(ctx context.Context, id int64, patch store.ProfilePatch) (store.Profile, error) {
	if f.updateProfileFn != nil {
		return f.updateProfileFn(ctx, id, patch)
	}
	return store.Profile{}, sql.ErrNoRows
}

func (f *fakeStore) ListProfiles(ctx context.Context) ([]store.Profile, error) {
	if f.listProfilesFn != nil {
		return f.listProfilesFn(ctx)
	}
	return []store.Profile{}, nil
}

func (f *fakeStore) ListTodos(ctx context.Context, profileID int64, date *time.Time) ([]store.Todo, error) {
	if f.listTodosFn != nil {
		return f.listTodosFn(ctx, profileID, date)
	}
	return []store.Todo{}, nil
}

func (f *fakeStore) CreateTodo(ctx context.Context, t store.Todo) (store.Todo, error) {
	if f.createTodoFn != nil {
		return f.createTodoFn(ctx, t)
	}
	t.ID = 1
	return t, nil
}

func (f *fakeStore) UpdateTodo(ctx context.Context, profileID, todoID int64, patch store.TodoPatch) (store.Todo, error) {
	if f.updateTodoFn != nil {
		return f.updateTodoFn(ctx, profileID, todoID, patch)
	}
	return store.Todo{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteTodo(ctx context.Context, profileID, todoID int64) error {
	if f.deleteTodoFn != nil {
		return f.deleteTodoFn(ctx, profileID, todoID)
	}
	return sql.ErrNoRows
}

func (f *fakeStore) ListNotes(ctx context.Context, profileID int64) ([]store.Note, error) {
	if f.listNotesFn != nil {
		return f.listNotesFn(ctx, profileID)
	}
	return []store.Note{}, nil
}

func (f *fakeStore) CreateNote(ctx context.Context, n store.Note) (store.Note, error) {
	if f.createNoteFn != nil {
		return f.createNoteFn(ctx, n)
	}
	n.ID = 1
	now := time.Now()
	n.CreatedAt = now
	n.UpdatedAt = now
	return n, nil
}

func (f *fakeStore) UpdateNote(ctx context.Context, profileID, noteID int64, patch store.NotePatch) (store.Note, error) {
	if f.updateNoteFn != nil {
		return f.updateNoteFn(ctx, profileID, noteID, patch)
	}
	return store.Note{}, sql.ErrNoRows
}

func (f *fakeStore) DeleteNote(ctx context.Context, profileID, noteID int64) error {
	if f.deleteNoteFn != nil {
		return f.deleteNoteFn(ctx, profileID, noteID)
	}
	return sql.ErrNoRows
}

func (f *fakeStore) CreateMessage(ctx context.Context, m store.Message) (store.Message, error) {
	if f.createMessageFn != nil {
		return f.createMessageFn(ctx, m)
	}
	m.ID = 1
	m.CreatedAt = time.Now()
	return m, nil
}

func (f *fakeStore) ListConversation(ctx context.Context, a, b int64) ([]store.Message, error) {
	if f.listConversationFn != nil {
		return f.listConversationFn(ctx, a, b)
	}
	return []store.Message{}, nil
}

func (f *fakeStore) ListTracks(ctx context.Context) ([]store.Track, error) {
	if f.listTracksFn != nil {
		return f.listTracksFn(ctx)
	}
	return []store.Track{}, nil
}

func (f *fakeStore) CreateTrack(ctx context.Context, t store.Track) (store.Track, error) {
	if f.createTrackFn != nil {
		return f.createTrackFn(ctx, t)
	}
	t.ID = 1
	return t, nil
}

type fakeRelay struct {
	relayFn func(ctx context.Context, message, apiKey string) (string, error)
}

func (f *fakeRelay) Relay(ctx context.Context, message, apiKey string) (string, error) {
	if f.relayFn != nil {
		return f.relayFn(ctx, message, apiKey)
	}
	return "", nil
}

func newTestService(fs *fakeStore) *Service {
	return &Service{
		store:    fs,
		auth:     authpw.NewService(fs),
		resolver: identity.NewHeaderResolver(identity.DefaultHeader, fs),
		relay:    &fakeRelay{},
		media:    media.NewLocalFs(afero.NewMemMapFs()),
	}
}

// profileDirectory wires a fakeStore to a fixed set of profiles so the
// identity header resolves against them.
func profileDirectory(profiles ...store.Profile) *fakeStore {
	byName := make(map[string]store.Profile, len(profiles))
	byID := make(map[int64]store.Profile, len(profiles))
	for _, p := range profiles {
		byName[p.Name] = p
		byID[p.ID] = p
	}
	return &fakeStore{
		getProfileByNameFn: func(_ context.Context, name string) (store.Profile, error) {
			if p, ok := byName[name]; ok {
				return p, nil
			}
			return store.Profile{}, sql.ErrNoRows
		},
		getProfileByIDFn: func(_ context.Context, id int64) (store.Profile, error) {
			if p, ok := byID[id]; ok {
				return p, nil
			}
			return store.Profile{}, sql.ErrNoRows
		},
	}
}
