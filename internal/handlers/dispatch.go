package handlers

import "github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"

// Table is a static tag→handler map, per Design Notes §9 ("The router
// looks up a handler from a static table keyed by tag enum; no reflection
// required").
type Table map[proto.Tag]HandlerFunc

// NewTable builds the full dispatch table for every tag in spec.md §4.A's
// authoritative enumeration.
func NewTable() Table {
	return Table{
		proto.TagRegister: Register,
		proto.TagLogin:    Login,
		proto.TagLogout:   Logout,

		proto.TagTextMessage:  TextMessage,
		proto.TagStegoMessage: StegoMessage,
		proto.TagVoiceMessage: VoiceMessage,
		proto.TagVoice:        VoiceMessage, // alias, same semantics as voice_message
		proto.TagFile:         FileMessage,
		proto.TagPicture:      PictureMessage,
		proto.TagMessage:      TextMessage, // generic alias, same semantics as text_message

		proto.TagGroupMessage: GroupMessage,
		proto.TagCreateGroup:  CreateGroup,
		proto.TagJoinGroup:    JoinGroup,
		proto.TagGetGroups:    GetGroups,

		proto.TagGetHistory: GetHistory,

		proto.TagGetContacts:   GetContacts,
		proto.TagAddContact:    AddContact,
		proto.TagUpdateContact: UpdateContact,
		proto.TagRemoveContact: RemoveContact,

		proto.TagGetDirectory: GetDirectory,
		proto.TagGetPublicKey: GetPublicKey,

		proto.TagAlive:     Alive,
		proto.TagHeartbeat: Alive,

		proto.TagBackup: Backup,
	}
}

// acceptedBeforeAuth is the tag allow-list for the Accepted state (spec.md
// §4.F: "only register, login, heartbeat, alive are accepted").
var acceptedBeforeAuth = map[proto.Tag]bool{
	proto.TagRegister:  true,
	proto.TagLogin:     true,
	proto.TagHeartbeat: true,
	proto.TagAlive:     true,
}

// AllowedBeforeAuth reports whether tag may be dispatched on a connection
// that has not yet authenticated.
func AllowedBeforeAuth(tag proto.Tag) bool {
	return acceptedBeforeAuth[tag]
}
