// Package proto implements the wire envelope and frame codec of spec.md
// §4.A: a length-prefixed frame carrying a JSON envelope, optionally
// zlib-compressed, with a flat tag-keyed message model (generalizing the
// teacher's topic-oriented MsgClient*/MsgServer* struct family in
// datamodel.go into this spec's single Envelope type).
package proto

import "time"

// Tag is the authoritative enumeration of envelope "type" values.
type Tag string

// Client-originated tags.
const (
	TagRegister      Tag = "register"
	TagLogin         Tag = "login"
	TagLogout        Tag = "logout"
	TagGetDirectory  Tag = "get_directory"
	TagGetHistory    Tag = "get_history"
	TagGetPublicKey  Tag = "get_public_key"
	TagAlive         Tag = "alive"
	TagBackup        Tag = "backup"
	TagMessage       Tag = "message"
	TagVoice         Tag = "voice"
	TagFile          Tag = "file"
	TagPicture       Tag = "picture"
	TagTextMessage   Tag = "text_message"
	TagGroupMessage  Tag = "group_message"
	TagStegoMessage  Tag = "stego_message"
	TagVoiceMessage  Tag = "voice_message"
	TagCreateGroup   Tag = "create_group"
	TagHeartbeat     Tag = "heartbeat"
	TagAddContact    Tag = "add_contact"
	TagGetContacts   Tag = "get_contacts"
	TagUpdateContact Tag = "update_contact"
	TagRemoveContact Tag = "remove_contact"
	TagGetGroups     Tag = "get_groups"
	TagJoinGroup     Tag = "join_group"
)

// Server-originated tags.
const (
	TagHistoryResponse     Tag = "history_response"
	TagDirectoryResponse   Tag = "directory_response"
	TagPublicKeyResponse   Tag = "public_key_response"
	TagError               Tag = "error"
	TagSystemNotification  Tag = "system_notification"
	TagForwardedMessage    Tag = "forwarded_message"
)

// ResponseTag builds the "<tag>_response" server tag for a given request tag.
func ResponseTag(req Tag) Tag {
	return Tag(string(req) + "_response")
}

// clientTags is the set of tags a client may legally send; anything else is
// protocol_malformed (spec.md §4.A Validation).
var clientTags = map[Tag]bool{
	TagRegister: true, TagLogin: true, TagLogout: true, TagGetDirectory: true,
	TagGetHistory: true, TagGetPublicKey: true, TagAlive: true, TagBackup: true,
	TagMessage: true, TagVoice: true, TagFile: true, TagPicture: true,
	TagTextMessage: true, TagGroupMessage: true, TagStegoMessage: true,
	TagVoiceMessage: true, TagCreateGroup: true, TagHeartbeat: true,
	TagAddContact: true, TagGetContacts: true, TagUpdateContact: true,
	TagRemoveContact: true, TagGetGroups: true, TagJoinGroup: true,
}

// IsClientTag reports whether tag is a known client-originated tag.
func IsClientTag(tag Tag) bool {
	return clientTags[tag]
}

// Encryption enumerates the data.encryption field.
type Encryption string

// Recognized encryption tags.
const (
	EncryptionNone   Encryption = "none"
	EncryptionAESGCM Encryption = "aes_gcm"
	EncryptionRSA    Encryption = "rsa"
	EncryptionHybrid Encryption = "hybrid"
)

// FileInfo carries optional file-transfer metadata inside Data.
type FileInfo struct {
	Name string `json:"name,omitempty"`
	Size int64  `json:"size,omitempty"`
	MIME string `json:"mime,omitempty"`
}

// VoiceParams carries optional voice-payload metadata inside Data.
type VoiceParams struct {
	Codec      string `json:"codec,omitempty"`
	DurationMS int    `json:"duration_ms,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

// Data is the payload carried by message-bearing envelopes.
type Data struct {
	Content     string       `json:"content,omitempty"` // base64
	ContentType string       `json:"content_type,omitempty"`
	Encryption  Encryption   `json:"encryption,omitempty"`
	Signature   string       `json:"signature,omitempty"` // hex
	FileInfo    *FileInfo    `json:"file_info,omitempty"`
	VoiceParams *VoiceParams `json:"voice_params,omitempty"`
}

// Envelope is the single wire message shape for every tag in both
// directions, per spec.md §4.A.
type Envelope struct {
	Type      Tag                    `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Sender    string                 `json:"sender,omitempty"`
	Recipient string                 `json:"recipient,omitempty"`
	GroupID   string                 `json:"group_id,omitempty"`
	Data      *Data                  `json:"data,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`

	// FromServer flags a forwarded_message / response envelope, never set
	// by clients.
	FromServer bool `json:"from_server,omitempty"`

	// Response-only fields.
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// NewError builds an {type:"error"} envelope (spec.md §6).
func NewError(message string) *Envelope {
	return &Envelope{Type: TagError, Timestamp: time.Now().UTC(), Message: message}
}

// NewResponse builds a "<tag>_response" envelope.
func NewResponse(req Tag, success bool, message string) *Envelope {
	return &Envelope{Type: ResponseTag(req), Timestamp: time.Now().UTC(), Success: success, Message: message}
}

// NewSystemNotification builds a system-originated notice, used for the
// welcome frame and shutdown broadcasts (spec.md §6, §4.G).
func NewSystemNotification(message string) *Envelope {
	return &Envelope{Type: TagSystemNotification, Timestamp: time.Now().UTC(), Message: message}
}
