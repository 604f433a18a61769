// Package types defines the persistent and wire-adjacent data model shared
// by the storage engine, the directory, and the message handlers.
package types

import "time"

// ContentType enumerates the payload kinds carried by direct and group
// messages.
type ContentType string

// Recognized content types.
const (
	ContentText           ContentType = "text"
	ContentVoice          ContentType = "voice"
	ContentFile           ContentType = "file"
	ContentPicture        ContentType = "picture"
	ContentSteganography  ContentType = "steganography"
)

// EncryptionScheme enumerates the encryption tag carried on a message
// envelope's data.encryption field.
type EncryptionScheme string

// Recognized encryption schemes.
const (
	EncryptionNone   EncryptionScheme = "none"
	EncryptionAESGCM EncryptionScheme = "aes_gcm"
	EncryptionRSA    EncryptionScheme = "rsa"
	EncryptionHybrid EncryptionScheme = "hybrid"
)

// GroupRole enumerates membership roles in a group.
type GroupRole string

// Recognized group roles.
const (
	RoleMember GroupRole = "member"
	RoleOwner  GroupRole = "owner"
)

// User is the persistent account record. UserID is server-assigned and
// immutable once created; Username is globally unique and case-sensitive.
type User struct {
	UserID        int64
	Username      string
	Email         string
	PasswordHash  []byte
	Salt          []byte
	PublicKey     string // PEM, may be empty
	CreatedAt     time.Time
	LastActivity  time.Time
	Online        bool
	LastIP        string
	LastPort      int
}

// Session is the persistent, token-bearing login record. Distinct from a
// live connection: a session may host zero or more concurrently connected
// sockets.
type Session struct {
	SessionID    string // opaque token, not the HMAC token itself
	UserID       int64
	CreatedAt    time.Time
	LastActivity time.Time
	Active       bool
}

// Contact is a row in the owner's address book.
type Contact struct {
	OwnerUserID   int64
	ContactUserID int64
	Alias         string
	GroupLabel    string
	Notes         string
	Favorite      bool
	AddedAt       time.Time
}

// Group is a client-chosen, globally unique chat room.
type Group struct {
	GroupID       string
	GroupName     string
	CreatorUserID int64
	CreatedAt     time.Time
}

// GroupMember is a single (group, user) membership row.
type GroupMember struct {
	GroupID  string
	UserID   int64
	JoinedAt time.Time
	Role     GroupRole
}

// DirectMessage is a single user-to-user message row.
type DirectMessage struct {
	MessageID  int64
	SenderID   int64
	ReceiverID int64
	Content    []byte // raw bytes; wire representation is base64
	ContentType ContentType
	Encrypted  bool
	Timestamp  time.Time
}

// GroupMessage is a single message posted to a group.
type GroupMessage struct {
	MessageID   int64
	GroupID     string
	SenderID    int64
	Content     []byte
	ContentType ContentType
	Encrypted   bool
	Timestamp   time.Time
}

// ChatType distinguishes a history query target.
type ChatType string

// Recognized chat types for get_history.
const (
	ChatSingle ChatType = "single"
	ChatGroup  ChatType = "group"
)

// HistoryRow is a single entry returned by fetch_history, normalized across
// direct and group messages so handlers don't need to know which table it
// came from.
type HistoryRow struct {
	MessageID   int64
	SenderID    int64
	Content     []byte
	ContentType ContentType
	Encrypted   bool
	Timestamp   time.Time
}

// HistoryQuery bundles fetch_history's parameters.
type HistoryQuery struct {
	ChatType ChatType
	// Target is a username (single) or group_id (group), pre-resolution.
	Target string
	Viewer int64
	Since  *time.Time
	Until  *time.Time
	Limit  int
	Offset int
}

// EndpointHint is a memory-only record of where a user's client last said
// it could be reached directly, refreshed by heartbeat/alive frames.
type EndpointHint struct {
	UserID        int64
	IP            string
	Port          int
	LastHeartbeat time.Time
}

// BlockedUser is a single (owner, blocked) row: owner has blocked blocked
// from delivering direct messages to them (spec.md §4.E "blocked" error
// kind, §9 storage location left to the implementer).
type BlockedUser struct {
	OwnerUserID   int64
	BlockedUserID int64
	BlockedAt     time.Time
}

// BackupBlob is an opaque pass-through blob stored against (owner, dest).
// There is no retrieval API: see spec.md §4.E "backup" and §9 Open
// Questions.
type BackupBlob struct {
	OwnerUserID int64
	DestID      string
	Blob        []byte
	StoredAt    time.Time
}

// TimeNow returns the current time truncated to millisecond precision, the
// resolution persisted by the storage engine and carried on the wire.
func TimeNow() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
