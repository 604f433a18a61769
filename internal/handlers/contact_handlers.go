package handlers

import (
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/adapter"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// GetContacts implements spec.md §4.E "get_contacts".
func GetContacts(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	contacts, err := store.Contacts.List(ctx.Conn.UserID())
	if err != nil {
		return fail(env.Type, "server_error")
	}

	items := make([]map[string]interface{}, 0, len(contacts))
	for _, c := range contacts {
		items = append(items, map[string]interface{}{
			"contact_user_id": c.ContactUserID,
			"alias":           c.Alias,
			"group_label":     c.GroupLabel,
			"notes":           c.Notes,
			"favorite":        c.Favorite,
		})
	}

	resp := proto.NewResponse(env.Type, true, "")
	resp.Metadata = map[string]interface{}{"contacts": items}
	return simpleResult(resp)
}

// AddContact implements spec.md §4.E "add_contact": resolves the target by
// username and rejects contact_user_not_found.
func AddContact(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	username, _ := env.Metadata["username"].(string)
	if username == "" {
		return fail(env.Type, "protocol_malformed")
	}
	target, err := store.Users.GetByUsername(username)
	if err != nil || target == nil {
		return fail(env.Type, "contact_user_not_found")
	}

	alias, _ := env.Metadata["alias"].(string)
	groupLabel, _ := env.Metadata["group_label"].(string)
	notes, _ := env.Metadata["notes"].(string)
	favorite, _ := env.Metadata["favorite"].(bool)

	c := &t.Contact{
		OwnerUserID:   ctx.Conn.UserID(),
		ContactUserID: target.UserID,
		Alias:         alias,
		GroupLabel:    groupLabel,
		Notes:         notes,
		Favorite:      favorite,
		AddedAt:       ctx.Now,
	}
	if err := store.Contacts.Add(c); err != nil {
		if store.IsConflict(err) {
			return fail(env.Type, "already a contact")
		}
		return fail(env.Type, "server_error")
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}

// UpdateContact implements spec.md §4.E "update_contact": applies a partial
// update to one existing contact row.
func UpdateContact(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	contactID, ok := env.Metadata["contact_user_id"].(float64)
	if !ok {
		return fail(env.Type, "protocol_malformed")
	}

	var update adapter.ContactUpdate
	if v, ok := env.Metadata["alias"].(string); ok {
		update.Alias = &v
	}
	if v, ok := env.Metadata["group_label"].(string); ok {
		update.GroupLabel = &v
	}
	if v, ok := env.Metadata["notes"].(string); ok {
		update.Notes = &v
	}
	if v, ok := env.Metadata["favorite"].(bool); ok {
		update.Favorite = &v
	}

	if err := store.Contacts.Update(ctx.Conn.UserID(), int64(contactID), update); err != nil {
		if store.IsNotFound(err) {
			return fail(env.Type, "contact_user_not_found")
		}
		return fail(env.Type, "server_error")
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}

// RemoveContact implements spec.md §4.E "remove_contact".
func RemoveContact(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	contactID, ok := env.Metadata["contact_user_id"].(float64)
	if !ok {
		return fail(env.Type, "protocol_malformed")
	}
	if err := store.Contacts.Remove(ctx.Conn.UserID(), int64(contactID)); err != nil {
		if store.IsNotFound(err) {
			return fail(env.Type, "contact_user_not_found")
		}
		return fail(env.Type, "server_error")
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}
