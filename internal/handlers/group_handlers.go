package handlers

import (
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// CreateGroup implements spec.md §4.E "create_group": the caller becomes
// the group's owner (store.Groups.Create enforces this).
func CreateGroup(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	groupID, _ := env.Metadata["group_id"].(string)
	groupName, _ := env.Metadata["group_name"].(string)
	if groupID == "" {
		return fail(env.Type, "protocol_malformed")
	}

	g := &t.Group{
		GroupID:       groupID,
		GroupName:     groupName,
		CreatorUserID: ctx.Conn.UserID(),
		CreatedAt:     ctx.Now,
	}
	if err := store.Groups.Create(g); err != nil {
		if store.IsConflict(err) {
			return fail(env.Type, "group_id exists")
		}
		return fail(env.Type, "server_error")
	}

	resp := proto.NewResponse(env.Type, true, "")
	resp.Metadata = map[string]interface{}{"group_id": g.GroupID}
	return simpleResult(resp)
}

// JoinGroup implements spec.md §4.E "join_group": idempotent membership
// insert, ordinary member role.
func JoinGroup(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	groupID, _ := env.Metadata["group_id"].(string)
	if groupID == "" {
		return fail(env.Type, "protocol_malformed")
	}
	if g, err := store.Groups.Get(groupID); err != nil || g == nil {
		return fail(env.Type, "unknown_group")
	}
	isMember, err := store.Groups.IsMember(groupID, ctx.Conn.UserID())
	if err != nil {
		return fail(env.Type, "server_error")
	}
	if isMember {
		return fail(env.Type, "already_member")
	}
	if err := store.Groups.Join(groupID, ctx.Conn.UserID(), t.RoleMember); err != nil {
		return fail(env.Type, "server_error")
	}
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}

// GetGroups implements spec.md §4.E "get_groups": every group the caller
// currently belongs to.
func GetGroups(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	groups, err := store.Groups.ListForUser(ctx.Conn.UserID())
	if err != nil {
		return fail(env.Type, "server_error")
	}

	items := make([]map[string]interface{}, 0, len(groups))
	for _, g := range groups {
		items = append(items, map[string]interface{}{
			"group_id":   g.GroupID,
			"group_name": g.GroupName,
		})
	}

	resp := proto.NewResponse(env.Type, true, "")
	resp.Metadata = map[string]interface{}{"groups": items}
	return simpleResult(resp)
}
