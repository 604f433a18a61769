package handlers

import (
	"encoding/base64"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// contentTypeFor maps a request tag to the persisted ContentType, since
// text_message/stego_message/voice_message/file/picture all share the same
// handler shape and differ only in this classification (spec.md §4.A).
func contentTypeFor(tag proto.Tag) t.ContentType {
	switch tag {
	case proto.TagStegoMessage:
		return t.ContentSteganography
	case proto.TagVoiceMessage, proto.TagVoice:
		return t.ContentVoice
	case proto.TagFile:
		return t.ContentFile
	case proto.TagPicture:
		return t.ContentPicture
	default:
		return t.ContentText
	}
}

// deliverDirect is the shared body for every direct (non-group) message
// handler: persist the message, then forward it verbatim to every live
// session of the recipient, if any (spec.md §4.E fan-out contract).
func deliverDirect(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	if env.Recipient == "" || env.Data == nil || env.Data.Content == "" {
		return fail(env.Type, "protocol_malformed")
	}
	content, err := base64.StdEncoding.DecodeString(env.Data.Content)
	if err != nil {
		return fail(env.Type, "protocol_malformed")
	}

	recipientID, ok := store.Users.ResolveTarget(env.Recipient)
	if !ok {
		return fail(env.Type, "unknown_recipient")
	}
	blocked, err := store.Blocks.IsBlocked(recipientID, ctx.Conn.UserID())
	if err != nil {
		return fail(env.Type, "server_error")
	}
	if blocked {
		return fail(env.Type, "blocked")
	}

	m := &t.DirectMessage{
		SenderID:    ctx.Conn.UserID(),
		ReceiverID:  recipientID,
		Content:     content,
		ContentType: contentTypeFor(env.Type),
		Encrypted:   env.Data.Encryption != "" && env.Data.Encryption != proto.EncryptionNone,
		Timestamp:   ctx.Now,
	}
	if _, err := store.Messages.SaveDirect(m); err != nil {
		return fail(env.Type, "server_error")
	}

	resp := proto.NewResponse(env.Type, true, "")

	var fanOut []FanOutTarget
	if ctx.Dir.IsOnline(env.Recipient) {
		forwarded := &proto.Envelope{
			Type:       proto.TagForwardedMessage,
			Timestamp:  ctx.Now,
			Sender:     ctx.Conn.Username(),
			Recipient:  env.Recipient,
			Data:       env.Data,
			FromServer: true,
		}
		fanOut = append(fanOut, FanOutTarget{Username: env.Recipient, Envelope: forwarded})
	}

	return &Result{Response: resp, FanOut: fanOut}, nil
}

// TextMessage implements spec.md §4.E "text_message"/"message".
func TextMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	return deliverDirect(ctx, env)
}

// StegoMessage implements spec.md §4.E "stego_message".
func StegoMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	return deliverDirect(ctx, env)
}

// VoiceMessage implements spec.md §4.E "voice_message"/"voice".
func VoiceMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	return deliverDirect(ctx, env)
}

// FileMessage implements spec.md §4.E "file".
func FileMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	return deliverDirect(ctx, env)
}

// PictureMessage implements spec.md §4.E "picture".
func PictureMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	return deliverDirect(ctx, env)
}

// GroupMessage implements spec.md §4.E "group_message": persist once,
// fan out to every member currently online except the sender.
func GroupMessage(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	if env.GroupID == "" || env.Data == nil || env.Data.Content == "" {
		return fail(env.Type, "protocol_malformed")
	}
	content, err := base64.StdEncoding.DecodeString(env.Data.Content)
	if err != nil {
		return fail(env.Type, "protocol_malformed")
	}

	// Sending to a group_id with no prior create_group auto-creates it with
	// the sender as sole member (spec.md §8 example 4 "Group auto-create").
	g, err := store.Groups.Get(env.GroupID)
	if err != nil {
		return fail(env.Type, "server_error")
	}
	if g == nil {
		if err := store.Groups.Create(&t.Group{
			GroupID:       env.GroupID,
			CreatorUserID: ctx.Conn.UserID(),
			CreatedAt:     ctx.Now,
		}); err != nil && !store.IsConflict(err) {
			return fail(env.Type, "server_error")
		}
	} else {
		isMember, err := store.Groups.IsMember(env.GroupID, ctx.Conn.UserID())
		if err != nil {
			return fail(env.Type, "server_error")
		}
		if !isMember {
			if err := store.Groups.Join(env.GroupID, ctx.Conn.UserID(), t.RoleMember); err != nil {
				return fail(env.Type, "server_error")
			}
		}
	}

	m := &t.GroupMessage{
		GroupID:     env.GroupID,
		SenderID:    ctx.Conn.UserID(),
		Content:     content,
		ContentType: contentTypeFor(env.Type),
		Encrypted:   env.Data.Encryption != "" && env.Data.Encryption != proto.EncryptionNone,
		Timestamp:   ctx.Now,
	}
	if _, err := store.Messages.SaveGroup(m); err != nil {
		return fail(env.Type, "server_error")
	}

	members, err := store.Groups.Members(env.GroupID)
	if err != nil {
		return fail(env.Type, "server_error")
	}

	resp := proto.NewResponse(env.Type, true, "")

	var fanOut []FanOutTarget
	for _, member := range members {
		if member.UserID == ctx.Conn.UserID() {
			continue
		}
		u, err := store.Users.GetByID(member.UserID)
		if err != nil || u == nil || !ctx.Dir.IsOnline(u.Username) {
			continue
		}
		forwarded := &proto.Envelope{
			Type:       proto.TagForwardedMessage,
			Timestamp:  ctx.Now,
			Sender:     ctx.Conn.Username(),
			GroupID:    env.GroupID,
			Data:       env.Data,
			FromServer: true,
		}
		fanOut = append(fanOut, FanOutTarget{Username: u.Username, Envelope: forwarded})
	}

	return &Result{Response: resp, FanOut: fanOut}, nil
}
