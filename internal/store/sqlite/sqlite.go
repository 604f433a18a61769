// Package sqlite implements internal/store/adapter.Adapter over
// modernc.org/sqlite (pure Go, no cgo) via jmoiron/sqlx, grounded on the
// teacher's jmoiron/sqlx dependency and on ashureev-shsh-labs's use of
// modernc.org/sqlite for an equally small persistent service.
package sqlite

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/adapter"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

const (
	kindConflict = store.KindConflict
	kindNotFound = store.KindNotFound
	kindIO       = store.KindIO
)

// storeErr classifies a backend failure, wrapping the package sentinels so
// store.IsConflict / store.IsNotFound work via errors.Is regardless of
// which adapter produced the error.
func storeErr(kind store.Kind, msg string) *store.Error {
	switch kind {
	case kindConflict:
		return store.Conflict(msg)
	case kindNotFound:
		return store.NotFound(msg)
	default:
		return store.NewError(kind, errors.New(msg))
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS users (
	user_id       INTEGER PRIMARY KEY,
	username      TEXT NOT NULL UNIQUE,
	email         TEXT NOT NULL UNIQUE,
	password_hash BLOB NOT NULL,
	salt          BLOB NOT NULL,
	public_key    TEXT NOT NULL DEFAULT '',
	created_at    DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	online_flag   INTEGER NOT NULL DEFAULT 0,
	last_ip       TEXT NOT NULL DEFAULT '',
	last_port     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS friendships (
	-- reserved, unused: see spec.md §6 "friendships (reserved)"
	id INTEGER PRIMARY KEY
);

CREATE TABLE IF NOT EXISTS contacts (
	owner_user_id   INTEGER NOT NULL,
	contact_user_id INTEGER NOT NULL,
	alias           TEXT NOT NULL DEFAULT '',
	group_label     TEXT NOT NULL DEFAULT '',
	notes           TEXT NOT NULL DEFAULT '',
	favorite_flag   INTEGER NOT NULL DEFAULT 0,
	added_at        DATETIME NOT NULL,
	PRIMARY KEY (owner_user_id, contact_user_id)
);

CREATE TABLE IF NOT EXISTS groups (
	group_id        TEXT PRIMARY KEY,
	group_name      TEXT NOT NULL,
	creator_user_id INTEGER NOT NULL,
	created_at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id  TEXT NOT NULL,
	user_id   INTEGER NOT NULL,
	joined_at DATETIME NOT NULL,
	role      TEXT NOT NULL DEFAULT 'member',
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	message_id   INTEGER PRIMARY KEY,
	sender_id    INTEGER NOT NULL,
	receiver_id  INTEGER NOT NULL,
	content      BLOB NOT NULL,
	content_type TEXT NOT NULL,
	encrypted    INTEGER NOT NULL DEFAULT 0,
	timestamp    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(sender_id, receiver_id, timestamp);

CREATE TABLE IF NOT EXISTS group_messages (
	message_id   INTEGER PRIMARY KEY,
	group_id     TEXT NOT NULL,
	sender_id    INTEGER NOT NULL,
	content      BLOB NOT NULL,
	content_type TEXT NOT NULL,
	encrypted    INTEGER NOT NULL DEFAULT 0,
	timestamp    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_group_messages_group ON group_messages(group_id, timestamp);

CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	user_id       INTEGER NOT NULL,
	created_at    DATETIME NOT NULL,
	last_activity DATETIME NOT NULL,
	active        INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS backups (
	owner_user_id INTEGER NOT NULL,
	dest_id       TEXT NOT NULL,
	blob          BLOB NOT NULL,
	stored_at     DATETIME NOT NULL,
	PRIMARY KEY (owner_user_id, dest_id)
);

CREATE TABLE IF NOT EXISTS blocks (
	owner_user_id   INTEGER NOT NULL,
	blocked_user_id INTEGER NOT NULL,
	blocked_at      DATETIME NOT NULL,
	PRIMARY KEY (owner_user_id, blocked_user_id)
);
`

// Adapter is the modernc.org/sqlite-backed adapter.Adapter.
type Adapter struct {
	db *sqlx.DB
}

// New constructs an unopened adapter.
func New() *Adapter {
	return &Adapter{}
}

var _ adapter.Adapter = (*Adapter)(nil)

// Open connects to the sqlite database at path dsn (a filesystem path or
// ":memory:").
func (a *Adapter) Open(dsn string) error {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return err
	}
	db.SetMaxOpenConns(1) // matches spec.md §4.B/§5: single logical connection pool
	a.db = db
	return a.db.Ping()
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	if a.db == nil {
		return nil
	}
	return a.db.Close()
}

// IsOpen reports whether the adapter is ready for use.
func (a *Adapter) IsOpen() bool {
	return a.db != nil
}

// CreateSchema creates all tables if they do not already exist.
func (a *Adapter) CreateSchema() error {
	_, err := a.db.Exec(schema)
	return err
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(strings.ToLower(err.Error()), "unique")
}

// --- Users ---------------------------------------------------------------

func (a *Adapter) UserCreate(u *t.User) error {
	var res sql.Result
	var err error
	if u.UserID != 0 {
		// Caller pre-assigned a stable id (e.g. via idgen.Generator).
		res, err = a.db.Exec(`INSERT INTO users
			(user_id, username, email, password_hash, salt, public_key, created_at, last_activity, online_flag, last_ip, last_port)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0, '', 0)`,
			u.UserID, u.Username, u.Email, u.PasswordHash, u.Salt, u.PublicKey, u.CreatedAt, u.LastActivity)
	} else {
		res, err = a.db.Exec(`INSERT INTO users
			(username, email, password_hash, salt, public_key, created_at, last_activity, online_flag, last_ip, last_port)
			VALUES (?, ?, ?, ?, ?, ?, ?, 0, '', 0)`,
			u.Username, u.Email, u.PasswordHash, u.Salt, u.PublicKey, u.CreatedAt, u.LastActivity)
	}
	if isUniqueViolation(err) {
		return storeErr(kindConflict, "username or email exists")
	}
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	if u.UserID == 0 {
		id, err := res.LastInsertId()
		if err != nil {
			return storeErr(kindIO, err.Error())
		}
		u.UserID = id
	}
	return nil
}

func (a *Adapter) UserGetByID(id int64) (*t.User, error) {
	return a.userGet("user_id = ?", id)
}

func (a *Adapter) UserGetByUsername(username string) (*t.User, error) {
	return a.userGet("username = ?", username)
}

func (a *Adapter) userGet(where string, arg interface{}) (*t.User, error) {
	var row struct {
		UserID       int64     `db:"user_id"`
		Username     string    `db:"username"`
		Email        string    `db:"email"`
		PasswordHash []byte    `db:"password_hash"`
		Salt         []byte    `db:"salt"`
		PublicKey    string    `db:"public_key"`
		CreatedAt    time.Time `db:"created_at"`
		LastActivity time.Time `db:"last_activity"`
		OnlineFlag   bool      `db:"online_flag"`
		LastIP       string    `db:"last_ip"`
		LastPort     int       `db:"last_port"`
	}
	err := a.db.Get(&row, "SELECT * FROM users WHERE "+where, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	return &t.User{
		UserID: row.UserID, Username: row.Username, Email: row.Email,
		PasswordHash: row.PasswordHash, Salt: row.Salt, PublicKey: row.PublicKey,
		CreatedAt: row.CreatedAt, LastActivity: row.LastActivity, Online: row.OnlineFlag,
		LastIP: row.LastIP, LastPort: row.LastPort,
	}, nil
}

func (a *Adapter) UserUpdateOnlineStatus(id int64, online bool, ip string, port int) error {
	_, err := a.db.Exec(`UPDATE users SET online_flag=?, last_ip=?, last_port=? WHERE user_id=?`,
		online, ip, port, id)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) UserUpdateLastActivity(id int64, when time.Time) error {
	_, err := a.db.Exec(`UPDATE users SET last_activity=? WHERE user_id=?`, when, id)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

// --- Sessions --------------------------------------------------------------

func (a *Adapter) SessionCreate(s *t.Session) error {
	_, err := a.db.Exec(`INSERT INTO sessions (session_id, user_id, created_at, last_activity, active)
		VALUES (?, ?, ?, ?, 1)`, s.SessionID, s.UserID, s.CreatedAt, s.LastActivity)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) SessionGet(sessionID string) (*t.Session, error) {
	var row struct {
		SessionID    string    `db:"session_id"`
		UserID       int64     `db:"user_id"`
		CreatedAt    time.Time `db:"created_at"`
		LastActivity time.Time `db:"last_activity"`
		Active       bool      `db:"active"`
	}
	err := a.db.Get(&row, `SELECT * FROM sessions WHERE session_id=?`, sessionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	return &t.Session{SessionID: row.SessionID, UserID: row.UserID, CreatedAt: row.CreatedAt,
		LastActivity: row.LastActivity, Active: row.Active}, nil
}

func (a *Adapter) SessionTouch(sessionID string, when time.Time) error {
	_, err := a.db.Exec(`UPDATE sessions SET last_activity=? WHERE session_id=?`, when, sessionID)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) SessionInvalidate(sessionID string) error {
	_, err := a.db.Exec(`UPDATE sessions SET active=0 WHERE session_id=?`, sessionID)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) SessionExpireIdle(olderThan time.Time) (int, error) {
	res, err := a.db.Exec(`UPDATE sessions SET active=0 WHERE active=1 AND last_activity < ?`, olderThan)
	if err != nil {
		return 0, storeErr(kindIO, err.Error())
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// --- Contacts --------------------------------------------------------------

func (a *Adapter) ContactAdd(c *t.Contact) error {
	_, err := a.db.Exec(`INSERT INTO contacts
		(owner_user_id, contact_user_id, alias, group_label, notes, favorite_flag, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.OwnerUserID, c.ContactUserID, c.Alias, c.GroupLabel, c.Notes, c.Favorite, c.AddedAt)
	if isUniqueViolation(err) {
		return storeErr(kindConflict, "contact already exists")
	}
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) ContactList(owner int64) ([]t.Contact, error) {
	var rows []struct {
		OwnerUserID   int64     `db:"owner_user_id"`
		ContactUserID int64     `db:"contact_user_id"`
		Alias         string    `db:"alias"`
		GroupLabel    string    `db:"group_label"`
		Notes         string    `db:"notes"`
		FavoriteFlag  bool      `db:"favorite_flag"`
		AddedAt       time.Time `db:"added_at"`
	}
	if err := a.db.Select(&rows, `SELECT * FROM contacts WHERE owner_user_id=? ORDER BY added_at`, owner); err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	out := make([]t.Contact, 0, len(rows))
	for _, r := range rows {
		out = append(out, t.Contact{
			OwnerUserID: r.OwnerUserID, ContactUserID: r.ContactUserID, Alias: r.Alias,
			GroupLabel: r.GroupLabel, Notes: r.Notes, Favorite: r.FavoriteFlag, AddedAt: r.AddedAt,
		})
	}
	return out, nil
}

func (a *Adapter) ContactUpdate(owner, contact int64, update adapter.ContactUpdate) error {
	sets := []string{}
	args := []interface{}{}
	if update.Alias != nil {
		sets = append(sets, "alias=?")
		args = append(args, *update.Alias)
	}
	if update.GroupLabel != nil {
		sets = append(sets, "group_label=?")
		args = append(args, *update.GroupLabel)
	}
	if update.Notes != nil {
		sets = append(sets, "notes=?")
		args = append(args, *update.Notes)
	}
	if update.Favorite != nil {
		sets = append(sets, "favorite_flag=?")
		args = append(args, *update.Favorite)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, owner, contact)
	q := "UPDATE contacts SET " + strings.Join(sets, ", ") + " WHERE owner_user_id=? AND contact_user_id=?"
	res, err := a.db.Exec(q, args...)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeErr(kindNotFound, "contact not found")
	}
	return nil
}

func (a *Adapter) ContactRemove(owner, contact int64) error {
	res, err := a.db.Exec(`DELETE FROM contacts WHERE owner_user_id=? AND contact_user_id=?`, owner, contact)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeErr(kindNotFound, "contact not found")
	}
	return nil
}

// --- Groups ------------------------------------------------------------

func (a *Adapter) GroupCreate(g *t.Group, creator int64) error {
	_, err := a.db.Exec(`INSERT INTO groups (group_id, group_name, creator_user_id, created_at)
		VALUES (?, ?, ?, ?)`, g.GroupID, g.GroupName, creator, g.CreatedAt)
	if isUniqueViolation(err) {
		return storeErr(kindConflict, "group_id exists")
	}
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) GroupGet(groupID string) (*t.Group, error) {
	var row struct {
		GroupID       string    `db:"group_id"`
		GroupName     string    `db:"group_name"`
		CreatorUserID int64     `db:"creator_user_id"`
		CreatedAt     time.Time `db:"created_at"`
	}
	err := a.db.Get(&row, `SELECT * FROM groups WHERE group_id=?`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	return &t.Group{GroupID: row.GroupID, GroupName: row.GroupName,
		CreatorUserID: row.CreatorUserID, CreatedAt: row.CreatedAt}, nil
}

func (a *Adapter) GroupListForUser(user int64) ([]t.Group, error) {
	var rows []struct {
		GroupID       string    `db:"group_id"`
		GroupName     string    `db:"group_name"`
		CreatorUserID int64     `db:"creator_user_id"`
		CreatedAt     time.Time `db:"created_at"`
	}
	q := `SELECT g.* FROM groups g JOIN group_members m ON m.group_id = g.group_id WHERE m.user_id=?`
	if err := a.db.Select(&rows, q, user); err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	out := make([]t.Group, 0, len(rows))
	for _, r := range rows {
		out = append(out, t.Group{GroupID: r.GroupID, GroupName: r.GroupName,
			CreatorUserID: r.CreatorUserID, CreatedAt: r.CreatedAt})
	}
	return out, nil
}

func (a *Adapter) MemberAdd(m *t.GroupMember) error {
	_, err := a.db.Exec(`INSERT OR IGNORE INTO group_members (group_id, user_id, joined_at, role)
		VALUES (?, ?, ?, ?)`, m.GroupID, m.UserID, m.JoinedAt, string(m.Role))
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) MemberList(groupID string) ([]t.GroupMember, error) {
	var rows []struct {
		GroupID  string    `db:"group_id"`
		UserID   int64     `db:"user_id"`
		JoinedAt time.Time `db:"joined_at"`
		Role     string    `db:"role"`
	}
	if err := a.db.Select(&rows, `SELECT * FROM group_members WHERE group_id=?`, groupID); err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	out := make([]t.GroupMember, 0, len(rows))
	for _, r := range rows {
		out = append(out, t.GroupMember{GroupID: r.GroupID, UserID: r.UserID,
			JoinedAt: r.JoinedAt, Role: t.GroupRole(r.Role)})
	}
	return out, nil
}

func (a *Adapter) MemberIsJoined(groupID string, user int64) (bool, error) {
	var n int
	err := a.db.Get(&n, `SELECT COUNT(*) FROM group_members WHERE group_id=? AND user_id=?`, groupID, user)
	if err != nil {
		return false, storeErr(kindIO, err.Error())
	}
	return n > 0, nil
}

// --- Messages ------------------------------------------------------------

func (a *Adapter) DirectMessageSave(m *t.DirectMessage) (int64, error) {
	res, err := a.db.Exec(`INSERT INTO messages (sender_id, receiver_id, content, content_type, encrypted, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`, m.SenderID, m.ReceiverID, m.Content, string(m.ContentType), m.Encrypted, m.Timestamp)
	if err != nil {
		return 0, storeErr(kindIO, err.Error())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr(kindIO, err.Error())
	}
	return id, nil
}

func (a *Adapter) GroupMessageSave(m *t.GroupMessage) (int64, error) {
	res, err := a.db.Exec(`INSERT INTO group_messages (group_id, sender_id, content, content_type, encrypted, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`, m.GroupID, m.SenderID, m.Content, string(m.ContentType), m.Encrypted, m.Timestamp)
	if err != nil {
		return 0, storeErr(kindIO, err.Error())
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, storeErr(kindIO, err.Error())
	}
	return id, nil
}

func (a *Adapter) FetchHistory(q t.HistoryQuery) ([]t.HistoryRow, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}
	var args []interface{}
	var where []string
	var table, targetCol string

	if q.ChatType == t.ChatGroup {
		table = "group_messages"
		targetCol = "group_id"
		where = append(where, targetCol+" = ?")
		args = append(args, q.Target)
	} else {
		table = "messages"
		targetID, ok := parseInt64(q.Target)
		if !ok {
			return nil, nil
		}
		where = append(where, "((sender_id=? AND receiver_id=?) OR (sender_id=? AND receiver_id=?))")
		args = append(args, q.Viewer, targetID, targetID, q.Viewer)
	}
	if q.Since != nil {
		where = append(where, "timestamp >= ?")
		args = append(args, *q.Since)
	}
	if q.Until != nil {
		where = append(where, "timestamp <= ?")
		args = append(args, *q.Until)
	}

	query := "SELECT message_id, sender_id, content, content_type, encrypted, timestamp FROM " + table +
		" WHERE " + strings.Join(where, " AND ") +
		" ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, q.Offset)

	var rows []struct {
		MessageID   int64     `db:"message_id"`
		SenderID    int64     `db:"sender_id"`
		Content     []byte    `db:"content"`
		ContentType string    `db:"content_type"`
		Encrypted   bool      `db:"encrypted"`
		Timestamp   time.Time `db:"timestamp"`
	}
	if err := a.db.Select(&rows, query, args...); err != nil {
		return nil, storeErr(kindIO, err.Error())
	}
	out := make([]t.HistoryRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, t.HistoryRow{
			MessageID: r.MessageID, SenderID: r.SenderID, Content: r.Content,
			ContentType: t.ContentType(r.ContentType), Encrypted: r.Encrypted, Timestamp: r.Timestamp,
		})
	}
	return out, nil
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(s, 10, 64)
	return n, err == nil
}

// --- Backup -------------------------------------------------------------

func (a *Adapter) BackupSave(b *t.BackupBlob) error {
	_, err := a.db.Exec(`INSERT INTO backups (owner_user_id, dest_id, blob, stored_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(owner_user_id, dest_id) DO UPDATE SET blob=excluded.blob, stored_at=excluded.stored_at`,
		b.OwnerUserID, b.DestID, b.Blob, b.StoredAt)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

// --- Blocks ---------------------------------------------------------------

func (a *Adapter) BlockAdd(b *t.BlockedUser) error {
	_, err := a.db.Exec(`INSERT OR IGNORE INTO blocks (owner_user_id, blocked_user_id, blocked_at)
		VALUES (?, ?, ?)`, b.OwnerUserID, b.BlockedUserID, b.BlockedAt)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	return nil
}

func (a *Adapter) BlockRemove(owner, blocked int64) error {
	res, err := a.db.Exec(`DELETE FROM blocks WHERE owner_user_id=? AND blocked_user_id=?`, owner, blocked)
	if err != nil {
		return storeErr(kindIO, err.Error())
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return storeErr(kindNotFound, "block not found")
	}
	return nil
}

func (a *Adapter) BlockIsBlocked(owner, blocked int64) (bool, error) {
	var n int
	err := a.db.Get(&n, `SELECT COUNT(*) FROM blocks WHERE owner_user_id=? AND blocked_user_id=?`, owner, blocked)
	if err != nil {
		return false, storeErr(kindIO, err.Error())
	}
	return n > 0, nil
}
