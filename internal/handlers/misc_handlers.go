package handlers

import (
	"encoding/base64"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// GetDirectory implements spec.md §4.E "get_directory": a read-only list of
// currently online usernames.
func GetDirectory(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	contacts, err := store.Contacts.List(ctx.Conn.UserID())
	if err != nil {
		return fail(env.Type, "server_error")
	}

	online := make([]string, 0, len(contacts))
	for _, c := range contacts {
		u, err := store.Users.GetByID(c.ContactUserID)
		if err != nil || u == nil {
			continue
		}
		if ctx.Dir.IsOnline(u.Username) {
			online = append(online, u.Username)
		}
	}

	resp := &proto.Envelope{Type: proto.TagDirectoryResponse, Timestamp: ctx.Now, Success: true}
	resp.Metadata = map[string]interface{}{"online": online}
	return simpleResult(resp)
}

// GetPublicKey implements spec.md §4.E "get_public_key": a read-only lookup
// of a single user's registered public key.
func GetPublicKey(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	username, _ := env.Metadata["username"].(string)
	if username == "" {
		return fail(env.Type, "protocol_malformed")
	}
	u, err := store.Users.GetByUsername(username)
	if err != nil || u == nil {
		return fail(env.Type, "unknown_user")
	}

	resp := &proto.Envelope{Type: proto.TagPublicKeyResponse, Timestamp: ctx.Now, Success: true}
	resp.Metadata = map[string]interface{}{"username": u.Username, "public_key": u.PublicKey}
	return simpleResult(resp)
}

// Alive implements spec.md §4.E "alive / heartbeat": refreshes
// last_activity and, if an endpoint hint is carried, updates it.
func Alive(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	_ = store.Users.Touch(ctx.Conn.UserID(), ctx.Now)

	ip, _ := env.Metadata["ip"].(string)
	port, _ := env.Metadata["port"].(float64)
	if ip != "" {
		ctx.Dir.UpdateEndpoint(ctx.Conn.UserID(), ip, int(port))
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}

// Backup implements spec.md §4.E "backup": an opaque pass-through blob
// stored against (user_id, dest_id); there is no retrieval path.
func Backup(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	destID, _ := env.Metadata["dest_id"].(string)
	blobB64, _ := env.Metadata["blob"].(string)
	if destID == "" || blobB64 == "" {
		return fail(env.Type, "protocol_malformed")
	}
	blob, err := base64.StdEncoding.DecodeString(blobB64)
	if err != nil {
		return fail(env.Type, "protocol_malformed")
	}

	b := &t.BackupBlob{
		OwnerUserID: ctx.Conn.UserID(),
		DestID:      destID,
		Blob:        blob,
		StoredAt:    ctx.Now,
	}
	if err := store.Backup.Save(b); err != nil {
		return fail(env.Type, "server_error")
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}
