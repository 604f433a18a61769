// Package store is the facade over the configured storage adapter. It owns
// all persistent rows (spec.md §3 "Ownership") and is the only package that
// imports a concrete adapter implementation; callers (handlers, auth,
// directory) only ever see the typed operations below, never a *sql.DB.
//
// The pattern mirrors the teacher's store.Users/store.Topics singleton
// facade: a single configured adapter, package-level typed accessors, and
// invariants enforced here rather than left to callers.
package store

import (
	"strconv"
	"strings"
	"time"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/adapter"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

var adp adapter.Adapter

// SetAdapter registers the single backend used for the lifetime of the
// process. Must be called once before any handler runs.
func SetAdapter(a adapter.Adapter) {
	adp = a
}

// Open opens the registered adapter against dsn and ensures its schema
// exists.
func Open(dsn string) error {
	if err := adp.Open(dsn); err != nil {
		return err
	}
	return adp.CreateSchema()
}

// Close releases the adapter's connection pool.
func Close() error {
	if adp == nil {
		return nil
	}
	return adp.Close()
}

// --- Users -------------------------------------------------------------

type usersFacade struct{}

// Users is the package-level handle for user operations.
var Users usersFacade

// Create inserts a new user row. Returns a Kind=KindConflict *Error when
// username or email already exists.
func (usersFacade) Create(u *t.User) error {
	if strings.ContainsAny(u.Username, " \t\r\n") {
		return NewError(KindConstraint, wrapSentinel(ErrConflict, "username contains whitespace"))
	}
	return adp.UserCreate(u)
}

// GetByID returns nil, nil if the user does not exist (never an error for
// the not-found case, matching the fetch_history resolution contract's
// tolerance for missing rows).
func (usersFacade) GetByID(id int64) (*t.User, error) {
	return adp.UserGetByID(id)
}

// GetByUsername resolves a user by their unique username.
func (usersFacade) GetByUsername(username string) (*t.User, error) {
	return adp.UserGetByUsername(username)
}

// ResolveTarget resolves a get_history / text_message "target" string to a
// user id: numeric strings are treated as ids directly, everything else is
// looked up by username. Returns (0, false) if not found — the caller
// decides whether that is an error or an empty result (spec.md §4.B).
func (usersFacade) ResolveTarget(target string) (int64, bool) {
	if id, err := strconv.ParseInt(target, 10, 64); err == nil {
		if u, _ := adp.UserGetByID(id); u != nil {
			return id, true
		}
		return 0, false
	}
	u, err := adp.UserGetByUsername(target)
	if err != nil || u == nil {
		return 0, false
	}
	return u.UserID, true
}

// SetOnline updates the online flag and last-seen endpoint.
func (usersFacade) SetOnline(id int64, online bool, ip string, port int) error {
	return adp.UserUpdateOnlineStatus(id, online, ip, port)
}

// Touch updates last_activity for the user.
func (usersFacade) Touch(id int64, when time.Time) error {
	return adp.UserUpdateLastActivity(id, when)
}

// --- Sessions (persistent) ---------------------------------------------

type sessionsFacade struct{}

// Sessions is the package-level handle for persistent session rows.
var Sessions sessionsFacade

// Create inserts a new session row, issued at login.
func (sessionsFacade) Create(s *t.Session) error {
	return adp.SessionCreate(s)
}

// Get loads a session by its opaque id.
func (sessionsFacade) Get(sessionID string) (*t.Session, error) {
	return adp.SessionGet(sessionID)
}

// Touch bumps last_activity, extending the idle TTL window.
func (sessionsFacade) Touch(sessionID string, when time.Time) error {
	return adp.SessionTouch(sessionID, when)
}

// Invalidate marks a session inactive (logout).
func (sessionsFacade) Invalidate(sessionID string) error {
	return adp.SessionInvalidate(sessionID)
}

// ExpireIdle invalidates every session whose last_activity is older than
// the cutoff, returning the count affected. Used by the supervisor's
// periodic cleanup job.
func (sessionsFacade) ExpireIdle(olderThan time.Time) (int, error) {
	return adp.SessionExpireIdle(olderThan)
}

// --- Contacts ------------------------------------------------------------

type contactsFacade struct{}

// Contacts is the package-level handle for contact-book CRUD.
var Contacts contactsFacade

// Add inserts a contact row. Self-reference is rejected here so every
// adapter gets the invariant for free.
func (contactsFacade) Add(c *t.Contact) error {
	if c.OwnerUserID == c.ContactUserID {
		return NewError(KindConstraint, wrapSentinel(ErrConflict, "self-reference forbidden"))
	}
	return adp.ContactAdd(c)
}

// List returns every contact row owned by the given user.
func (contactsFacade) List(owner int64) ([]t.Contact, error) {
	return adp.ContactList(owner)
}

// Update applies a partial update to a single contact row.
func (contactsFacade) Update(owner, contact int64, update adapter.ContactUpdate) error {
	return adp.ContactUpdate(owner, contact, update)
}

// Remove deletes a single contact row.
func (contactsFacade) Remove(owner, contact int64) error {
	return adp.ContactRemove(owner, contact)
}

// --- Groups ---------------------------------------------------------------

type groupsFacade struct{}

// Groups is the package-level handle for group and membership operations.
var Groups groupsFacade

// Create inserts a group row and the creator's owner membership.
func (groupsFacade) Create(g *t.Group) error {
	if err := adp.GroupCreate(g, g.CreatorUserID); err != nil {
		return err
	}
	return adp.MemberAdd(&t.GroupMember{
		GroupID:  g.GroupID,
		UserID:   g.CreatorUserID,
		JoinedAt: t.TimeNow(),
		Role:     t.RoleOwner,
	})
}

// Get loads a group by id, nil if it does not exist.
func (groupsFacade) Get(groupID string) (*t.Group, error) {
	return adp.GroupGet(groupID)
}

// ListForUser returns every group the user belongs to.
func (groupsFacade) ListForUser(user int64) ([]t.Group, error) {
	return adp.GroupListForUser(user)
}

// Join inserts a membership row idempotently (insert-or-ignore).
func (groupsFacade) Join(groupID string, user int64, role t.GroupRole) error {
	return adp.MemberAdd(&t.GroupMember{
		GroupID:  groupID,
		UserID:   user,
		JoinedAt: t.TimeNow(),
		Role:     role,
	})
}

// Members returns the membership list for a group.
func (groupsFacade) Members(groupID string) ([]t.GroupMember, error) {
	return adp.MemberList(groupID)
}

// IsMember reports whether the user already belongs to the group.
func (groupsFacade) IsMember(groupID string, user int64) (bool, error) {
	return adp.MemberIsJoined(groupID, user)
}

// --- Messages ---------------------------------------------------------

type messagesFacade struct{}

// Messages is the package-level handle for message persistence and
// history retrieval.
var Messages messagesFacade

// SaveDirect persists a single direct message, returning its assigned id.
func (messagesFacade) SaveDirect(m *t.DirectMessage) (int64, error) {
	return adp.DirectMessageSave(m)
}

// SaveGroup persists a single group message, returning its assigned id.
func (messagesFacade) SaveGroup(m *t.GroupMessage) (int64, error) {
	return adp.GroupMessageSave(m)
}

// FetchHistory resolves the query's Target (username or group_id) and
// returns rows ordered newest-first. Per spec.md §4.B, an unresolvable
// target yields an empty slice, never an error.
func (messagesFacade) FetchHistory(q t.HistoryQuery) ([]t.HistoryRow, error) {
	if q.ChatType == t.ChatSingle {
		if id, ok := Users.ResolveTarget(q.Target); ok {
			q.Target = strconv.FormatInt(id, 10)
		} else {
			return nil, nil
		}
	}
	return adp.FetchHistory(q)
}

// --- Backup -------------------------------------------------------------

type backupFacade struct{}

// Backup is the package-level handle for the opaque backup pass-through.
var Backup backupFacade

// Save stores the blob against (owner, dest). There is no retrieval path
// (spec.md §9 Open Questions).
func (backupFacade) Save(b *t.BackupBlob) error {
	return adp.BackupSave(b)
}

// --- Blocks -------------------------------------------------------------

type blocksFacade struct{}

// Blocks is the package-level handle for the sender-blocking list consulted
// by direct-message delivery (spec.md §4.E "blocked" error kind).
var Blocks blocksFacade

// Add records that owner has blocked blocked, idempotently.
func (blocksFacade) Add(owner, blocked int64) error {
	return adp.BlockAdd(&t.BlockedUser{OwnerUserID: owner, BlockedUserID: blocked, BlockedAt: t.TimeNow()})
}

// Remove lifts a block.
func (blocksFacade) Remove(owner, blocked int64) error {
	return adp.BlockRemove(owner, blocked)
}

// IsBlocked reports whether owner has blocked blocked.
func (blocksFacade) IsBlocked(owner, blocked int64) (bool, error) {
	return adp.BlockIsBlocked(owner, blocked)
}
