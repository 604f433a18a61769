package handlers

import (
	"testing"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
)

func TestCreateGroupRejectsDuplicateGroupID(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "gcreator1", "correct-password-1")

	env := &proto.Envelope{
		Type:     proto.TagCreateGroup,
		Metadata: map[string]interface{}{"group_id": "dup-group", "group_name": "Dup"},
	}
	if res, err := CreateGroup(ctx, env); err != nil || !res.Response.Success {
		t.Fatalf("first CreateGroup: res=%+v err=%v", res, err)
	}
	res, err := CreateGroup(ctx, env)
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected a duplicate group_id to be rejected")
	}
	if res.Response.Message != "group_id exists" {
		t.Fatalf("expected \"group_id exists\", got %q", res.Response.Message)
	}
}

func TestJoinGroupRejectsUnknownGroup(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "gjoiner1", "correct-password-1")

	res, err := JoinGroup(ctx, &proto.Envelope{Type: proto.TagJoinGroup, GroupID: "nonexistent"})
	if err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected JoinGroup against an unknown group to fail")
	}
}

func TestJoinGroupRejectsExistingMember(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "gjoiner3", "correct-password-1")

	createEnv := &proto.Envelope{
		Type:     proto.TagCreateGroup,
		Metadata: map[string]interface{}{"group_id": "already-group", "group_name": "Already"},
	}
	if res, err := CreateGroup(ctx, createEnv); err != nil || !res.Response.Success {
		t.Fatalf("CreateGroup: res=%+v err=%v", res, err)
	}

	joinEnv := &proto.Envelope{Type: proto.TagJoinGroup, Metadata: map[string]interface{}{"group_id": "already-group"}}
	res, err := JoinGroup(ctx, joinEnv)
	if err != nil {
		t.Fatalf("JoinGroup: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected the group's creator re-joining to be rejected")
	}
	if res.Response.Message != "already_member" {
		t.Fatalf("expected \"already_member\", got %q", res.Response.Message)
	}
}

func TestJoinGroupThenGetGroupsListsIt(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "gowner2", "correct-password-1")

	createEnv := &proto.Envelope{
		Type:     proto.TagCreateGroup,
		Metadata: map[string]interface{}{"group_id": "joinable-group", "group_name": "Joinable"},
	}
	if res, err := CreateGroup(ctx, createEnv); err != nil || !res.Response.Success {
		t.Fatalf("CreateGroup: res=%+v err=%v", res, err)
	}

	joiner := &fakeConn{connID: "conn-joiner", dir: ctx.Dir}
	if err := ctx.Dir.RegisterConnection(&directory.Conn{ConnID: joiner.connID, RemoteIP: "198.51.100.20"}); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}
	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "gjoiner2", "password": "correct-password-1"},
	}
	if _, err := Register(ctx, regEnv); err != nil {
		t.Fatalf("Register(gjoiner2): %v", err)
	}

	joinerCtx := *ctx
	joinerCtx.Conn = joiner
	joinerCtx.Binder = joiner
	loginEnv := &proto.Envelope{
		Type:     proto.TagLogin,
		Metadata: map[string]interface{}{"username": "gjoiner2", "password": "correct-password-1"},
	}
	if res, err := Login(&joinerCtx, loginEnv); err != nil || !res.Response.Success {
		t.Fatalf("Login(gjoiner2): res=%+v err=%v", res, err)
	}

	joinEnv := &proto.Envelope{Type: proto.TagJoinGroup, Metadata: map[string]interface{}{"group_id": "joinable-group"}}
	if res, err := JoinGroup(&joinerCtx, joinEnv); err != nil || !res.Response.Success {
		t.Fatalf("JoinGroup: res=%+v err=%v", res, err)
	}

	res, err := GetGroups(&joinerCtx, &proto.Envelope{Type: proto.TagGetGroups})
	if err != nil {
		t.Fatalf("GetGroups: %v", err)
	}
	groups, _ := res.Response.Metadata["groups"].([]map[string]interface{})
	if len(groups) != 1 || groups[0]["group_id"] != "joinable-group" {
		t.Fatalf("unexpected groups list: %+v", groups)
	}
}
