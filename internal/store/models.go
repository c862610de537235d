package store

import "time"

type Profile struct {
	ID           int64
	Name         string
	PasswordHash string
	Profession   string
	Bio          string
	Avatar       string
	CreatedAt    time.Time
}

type Todo struct {
	ID          int64
	ProfileID   int64
	Text        string
	IsCompleted bool
	Date        time.Time
}

type Note struct {
	ID        int64
	ProfileID int64
	Title     string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Message struct {
	ID         int64
	SenderID   int64
	ReceiverID int64
	Text       string
	CreatedAt  time.Time
}

type Track struct {
	ID              int64
	Title           string
	Artist          string
	Filename        string
	DurationSeconds int
}

// Patch types carry partial updates; nil fields are left unchanged.

type ProfilePatch struct {
	Profession *string
	Bio        *string
	Avatar     *string
}

type TodoPatch struct {
	Text        *string
	IsCompleted *bool
}

type NotePatch struct {
	Title *string
	Body  *string
}
