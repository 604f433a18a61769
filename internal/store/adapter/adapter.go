// Package adapter declares the interface a database backend must implement
// to serve the storage engine in internal/store. Only one adapter is
// configured per running server (spec.md §4.B: "a single logical connection
// pool").
package adapter

import (
	"time"

	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// Adapter is implemented once per supported database backend.
type Adapter interface {
	// Open connects to and configures the backend. dsn is backend-specific.
	Open(dsn string) error
	// Close releases the connection pool.
	Close() error
	// IsOpen reports whether the adapter is ready for use.
	IsOpen() bool
	// CreateSchema creates tables if they do not already exist.
	CreateSchema() error

	// Users

	UserCreate(u *t.User) error
	UserGetByID(id int64) (*t.User, error)
	UserGetByUsername(username string) (*t.User, error)
	UserUpdateOnlineStatus(id int64, online bool, ip string, port int) error
	UserUpdateLastActivity(id int64, when time.Time) error

	// Sessions (persistent)

	SessionCreate(s *t.Session) error
	SessionGet(sessionID string) (*t.Session, error)
	SessionTouch(sessionID string, when time.Time) error
	SessionInvalidate(sessionID string) error
	SessionExpireIdle(olderThan time.Time) (int, error)

	// Contacts

	ContactAdd(c *t.Contact) error
	ContactList(owner int64) ([]t.Contact, error)
	ContactUpdate(owner, contact int64, update ContactUpdate) error
	ContactRemove(owner, contact int64) error

	// Groups

	GroupCreate(g *t.Group, creator int64) error
	GroupGet(groupID string) (*t.Group, error)
	GroupListForUser(user int64) ([]t.Group, error)
	MemberAdd(m *t.GroupMember) error // insert-or-ignore, idempotent
	MemberList(groupID string) ([]t.GroupMember, error)
	MemberIsJoined(groupID string, user int64) (bool, error)

	// Messages

	DirectMessageSave(m *t.DirectMessage) (int64, error)
	GroupMessageSave(m *t.GroupMessage) (int64, error)
	FetchHistory(q t.HistoryQuery) ([]t.HistoryRow, error)

	// Backup (opaque pass-through, no retrieval API per spec.md §9)

	BackupSave(b *t.BackupBlob) error

	// Blocks

	BlockAdd(b *t.BlockedUser) error
	BlockRemove(owner, blocked int64) error
	BlockIsBlocked(owner, blocked int64) (bool, error)
}

// ContactUpdate carries the optional fields of an update_contact request.
// A nil pointer field means "leave unchanged".
type ContactUpdate struct {
	Alias      *string
	GroupLabel *string
	Notes      *string
	Favorite   *bool
}
