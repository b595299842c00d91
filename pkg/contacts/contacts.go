package contacts

import (
	"context"
	"time"
)

type Contact struct {
	DisplayName string
	Email       string
}

// Directory is the remote address book of one user.
type Directory interface {
	ListConnections(ctx context.Context) ([]Contact, error)
	// SearchDirectory searches the organization directory. An empty query lists all of it.
	SearchDirectory(ctx context.Context, query string) ([]Contact, error)
}

// DirectorySource builds a Directory authorized as the user bound to ctx.
type DirectorySource interface {
	Directory(ctx context.Context) (Directory, error)
}

// RecentAttendeesRepository keeps the addresses a user already invited, used when the directory is unreachable.
type RecentAttendeesRepository interface {
	AddAttendees(ctx context.Context, userId int, emails []string, usedAt time.Time) error
	ListAttendees(ctx context.Context, userId int) ([]string, error)
}
