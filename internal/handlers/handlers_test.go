package handlers

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/auth"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/directory"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/sqlite"
)

// fakeConn is a minimal ConnInfo/Binder double standing in for the
// router's Session, so handlers can be exercised without a live
// transport (the router package already covers the real Session wiring).
type fakeConn struct {
	connID   string
	userID   int64
	username string
	authed   bool
	remote   string
	dir      *directory.Directory
}

func (f *fakeConn) ConnID() string         { return f.connID }
func (f *fakeConn) UserID() int64          { return f.userID }
func (f *fakeConn) Username() string       { return f.username }
func (f *fakeConn) IsAuthenticated() bool  { return f.authed }
func (f *fakeConn) RemoteAddr() string     { return f.remote }

func (f *fakeConn) Bind(userID int64, username string) error {
	if err := f.dir.AuthenticateConnection(f.connID, userID, username); err != nil {
		return err
	}
	f.userID = userID
	f.username = username
	f.authed = true
	return nil
}

func (f *fakeConn) Unbind() {
	f.authed = false
}

func newTestHarness(t *testing.T) (*Context, *fakeConn) {
	t.Helper()
	store.SetAdapter(&sqlite.Adapter{})
	dsn := filepath.Join(t.TempDir(), "handlers.db")
	if err := store.Open(dsn); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dir := directory.New(directory.Policy{})
	conn := &fakeConn{connID: "conn-1", remote: "198.51.100.1:1234", dir: dir}
	if err := dir.RegisterConnection(&directory.Conn{ConnID: conn.connID, RemoteIP: "198.51.100.1"}); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}

	ctx := &Context{
		Conn:             conn,
		Binder:           conn,
		Dir:              dir,
		Tokens:           auth.NewTokenIssuer([]byte("test-secret")),
		Policy:           auth.DefaultRegisterPolicy,
		Login:            auth.NewFailedLoginTracker(5, time.Minute),
		PBKDF2Iterations: auth.MinIterations,
		Now:              time.Now().UTC(),
	}
	return ctx, conn
}

func registerAndLogin(t *testing.T, ctx *Context, conn *fakeConn, username, password string) {
	t.Helper()
	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": username, "password": password},
	}
	res, err := Register(ctx, regEnv)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("Register failed: %s", res.Response.Message)
	}

	loginEnv := &proto.Envelope{
		Type:     proto.TagLogin,
		Metadata: map[string]interface{}{"username": username, "password": password},
	}
	res, err = Login(ctx, loginEnv)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("Login failed: %s", res.Response.Message)
	}
	if !conn.authed {
		t.Fatal("expected the connection to be authenticated after login")
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	ctx, _ := newTestHarness(t)
	env := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "alice", "password": "hunter2password"},
	}
	if res, err := Register(ctx, env); err != nil || !res.Response.Success {
		t.Fatalf("expected the first registration to succeed: res=%+v err=%v", res, err)
	}
	res, err := Register(ctx, env)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected the second registration with the same username to fail")
	}
	if res.Response.Message != "username exists" {
		t.Fatalf("expected \"username exists\", got %q", res.Response.Message)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	ctx, _ := newTestHarness(t)
	registerAndLogin(t, ctx, &fakeConn{}, "bob", "correct-password-1")

	env := &proto.Envelope{
		Type:     proto.TagLogin,
		Metadata: map[string]interface{}{"username": "bob", "password": "wrong-password"},
	}
	res, err := Login(ctx, env)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected login with the wrong password to fail")
	}
}

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	ctx, _ := newTestHarness(t)
	registerAndLogin(t, ctx, &fakeConn{}, "carol", "correct-password-1")

	badEnv := &proto.Envelope{
		Type:     proto.TagLogin,
		Metadata: map[string]interface{}{"username": "carol", "password": "wrong"},
	}
	for i := 0; i < 5; i++ {
		if _, err := Login(ctx, badEnv); err != nil {
			t.Fatalf("Login attempt %d: %v", i, err)
		}
	}
	res, err := Login(ctx, badEnv)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Response.Message != "quota" {
		t.Fatalf("expected lockout message \"quota\", got %q", res.Response.Message)
	}
}

func TestLogoutRequiresAuthentication(t *testing.T) {
	ctx, _ := newTestHarness(t)
	res, err := Logout(ctx, &proto.Envelope{Type: proto.TagLogout})
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected Logout to fail for an unauthenticated connection")
	}
}

func TestLogoutUnbindsConnection(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "dave", "correct-password-1")

	res, err := Logout(ctx, &proto.Envelope{Type: proto.TagLogout})
	if err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("Logout failed: %s", res.Response.Message)
	}
	if conn.authed {
		t.Fatal("expected the connection to be unbound after logout")
	}
}

func TestTextMessageFansOutOnlyWhenRecipientOnline(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "sender1", "correct-password-1")

	// recipient exists but has no live connection yet
	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "receiver1", "password": "correct-password-1"},
	}
	if _, err := Register(ctx, regEnv); err != nil {
		t.Fatalf("Register(receiver1): %v", err)
	}

	msgEnv := &proto.Envelope{
		Type:      proto.TagTextMessage,
		Recipient: "receiver1",
		Data:      &proto.Data{Content: "aGVsbG8="},
	}
	res, err := TextMessage(ctx, msgEnv)
	if err != nil {
		t.Fatalf("TextMessage: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("TextMessage failed: %s", res.Response.Message)
	}
	if len(res.FanOut) != 0 {
		t.Fatalf("expected no fan-out while the recipient is offline, got %d", len(res.FanOut))
	}

	// bring the recipient online and resend
	if err := ctx.Dir.RegisterConnection(&directory.Conn{ConnID: "conn-2", RemoteIP: "198.51.100.2"}); err != nil {
		t.Fatalf("RegisterConnection(conn-2): %v", err)
	}
	u, err := store.Users.GetByUsername("receiver1")
	if err != nil || u == nil {
		t.Fatalf("GetByUsername(receiver1): u=%+v err=%v", u, err)
	}
	if err := ctx.Dir.AuthenticateConnection("conn-2", u.UserID, "receiver1"); err != nil {
		t.Fatalf("AuthenticateConnection(conn-2): %v", err)
	}

	res, err = TextMessage(ctx, msgEnv)
	if err != nil {
		t.Fatalf("TextMessage (online): %v", err)
	}
	if len(res.FanOut) != 1 {
		t.Fatalf("expected exactly one fan-out target once the recipient is online, got %d", len(res.FanOut))
	}
	if res.FanOut[0].Username != "receiver1" {
		t.Fatalf("unexpected fan-out target: %+v", res.FanOut[0])
	}
}

func TestTextMessageRejectsUnknownRecipient(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "sender2", "correct-password-1")

	msgEnv := &proto.Envelope{
		Type:      proto.TagTextMessage,
		Recipient: "ghost",
		Data:      &proto.Data{Content: "aGVsbG8="},
	}
	res, err := TextMessage(ctx, msgEnv)
	if err != nil {
		t.Fatalf("TextMessage: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected TextMessage to an unknown recipient to fail")
	}
	if res.Response.Message != "unknown_recipient" {
		t.Fatalf("expected \"unknown_recipient\", got %q", res.Response.Message)
	}
}

func TestGroupMessageAutoCreatesGroupWithSenderAsOwner(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "creator1", "correct-password-1")

	env := &proto.Envelope{
		Type:    proto.TagGroupMessage,
		GroupID: "brand-new-group",
		Data:    &proto.Data{Content: "aGVsbG8="},
	}
	res, err := GroupMessage(ctx, env)
	if err != nil {
		t.Fatalf("GroupMessage: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("GroupMessage failed: %s", res.Response.Message)
	}

	isMember, err := store.Groups.IsMember("brand-new-group", conn.UserID())
	if err != nil || !isMember {
		t.Fatalf("expected the sender to be auto-enrolled as a member: isMember=%v err=%v", isMember, err)
	}
}

func TestTextMessageRejectsWhenRecipientHasBlockedSender(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "sender3", "correct-password-1")

	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "blocker1", "password": "correct-password-1"},
	}
	if _, err := Register(ctx, regEnv); err != nil {
		t.Fatalf("Register(blocker1): %v", err)
	}
	blocker, err := store.Users.GetByUsername("blocker1")
	if err != nil || blocker == nil {
		t.Fatalf("GetByUsername(blocker1): %+v %v", blocker, err)
	}
	if err := store.Blocks.Add(blocker.UserID, conn.UserID()); err != nil {
		t.Fatalf("Blocks.Add: %v", err)
	}

	msgEnv := &proto.Envelope{
		Type:      proto.TagTextMessage,
		Recipient: "blocker1",
		Data:      &proto.Data{Content: "aGVsbG8="},
	}
	res, err := TextMessage(ctx, msgEnv)
	if err != nil {
		t.Fatalf("TextMessage: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected TextMessage to a blocker to fail")
	}
	if res.Response.Message != "blocked" {
		t.Fatalf("expected \"blocked\", got %q", res.Response.Message)
	}
}

func TestGroupMessageAutoJoinsNonMemberOfExistingGroup(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "owner1", "correct-password-1")

	createEnv := &proto.Envelope{
		Type:     proto.TagCreateGroup,
		Metadata: map[string]interface{}{"group_id": "closed-group", "group_name": "Closed"},
	}
	if res, err := CreateGroup(ctx, createEnv); err != nil || !res.Response.Success {
		t.Fatalf("CreateGroup: res=%+v err=%v", res, err)
	}

	outsider := &fakeConn{connID: "conn-outsider", dir: ctx.Dir, authed: true}
	if err := ctx.Dir.RegisterConnection(&directory.Conn{ConnID: outsider.connID, RemoteIP: "198.51.100.9"}); err != nil {
		t.Fatalf("RegisterConnection: %v", err)
	}
	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "outsider1", "password": "correct-password-1"},
	}
	if _, err := Register(ctx, regEnv); err != nil {
		t.Fatalf("Register(outsider1): %v", err)
	}
	u, err := store.Users.GetByUsername("outsider1")
	if err != nil || u == nil {
		t.Fatalf("GetByUsername(outsider1): %+v %v", u, err)
	}
	outsider.userID = u.UserID
	outsider.username = u.Username

	outsiderCtx := *ctx
	outsiderCtx.Conn = outsider
	outsiderCtx.Binder = outsider

	msgEnv := &proto.Envelope{
		Type:    proto.TagGroupMessage,
		GroupID: "closed-group",
		Data:    &proto.Data{Content: "aGVsbG8="},
	}
	res, err := GroupMessage(&outsiderCtx, msgEnv)
	if err != nil {
		t.Fatalf("GroupMessage: %v", err)
	}
	if !res.Response.Success {
		t.Fatalf("expected a non-member posting to an existing group to auto-join and succeed: %s", res.Response.Message)
	}

	isMember, err := store.Groups.IsMember("closed-group", u.UserID)
	if err != nil || !isMember {
		t.Fatalf("expected the sender to be auto-joined as a member: isMember=%v err=%v", isMember, err)
	}
}

func TestAddContactRejectsUnknownUsername(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "addcontact1", "correct-password-1")

	env := &proto.Envelope{
		Type:     proto.TagAddContact,
		Metadata: map[string]interface{}{"username": "ghost"},
	}
	res, err := AddContact(ctx, env)
	if err != nil {
		t.Fatalf("AddContact: %v", err)
	}
	if res.Response.Success {
		t.Fatal("expected AddContact with an unknown username to fail")
	}
	if res.Response.Message != "contact_user_not_found" {
		t.Fatalf("expected \"contact_user_not_found\", got %q", res.Response.Message)
	}
}

func TestAddContactThenGetContactsRoundTrip(t *testing.T) {
	ctx, conn := newTestHarness(t)
	registerAndLogin(t, ctx, conn, "owner9", "correct-password-1")

	regEnv := &proto.Envelope{
		Type:     proto.TagRegister,
		Metadata: map[string]interface{}{"username": "friend9", "password": "correct-password-1"},
	}
	if _, err := Register(ctx, regEnv); err != nil {
		t.Fatalf("Register(friend9): %v", err)
	}

	addEnv := &proto.Envelope{
		Type:     proto.TagAddContact,
		Metadata: map[string]interface{}{"username": "friend9", "alias": "Bestie"},
	}
	if res, err := AddContact(ctx, addEnv); err != nil || !res.Response.Success {
		t.Fatalf("AddContact: res=%+v err=%v", res, err)
	}

	res, err := GetContacts(ctx, &proto.Envelope{Type: proto.TagGetContacts})
	if err != nil {
		t.Fatalf("GetContacts: %v", err)
	}
	contacts, _ := res.Response.Metadata["contacts"].([]map[string]interface{})
	if len(contacts) != 1 || contacts[0]["alias"] != "Bestie" {
		t.Fatalf("unexpected contacts: %+v", contacts)
	}
}

func TestUnauthenticatedHandlersRejectEveryProtectedTag(t *testing.T) {
	ctx, _ := newTestHarness(t)
	tests := []struct {
		name string
		fn   HandlerFunc
		env  *proto.Envelope
	}{
		{"get_contacts", GetContacts, &proto.Envelope{Type: proto.TagGetContacts}},
		{"get_groups", GetGroups, &proto.Envelope{Type: proto.TagGetGroups}},
		{"get_directory", GetDirectory, &proto.Envelope{Type: proto.TagGetDirectory}},
		{"alive", Alive, &proto.Envelope{Type: proto.TagAlive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.fn(ctx, tt.env)
			if err != nil {
				t.Fatalf("%s: %v", tt.name, err)
			}
			if res.Response.Success {
				t.Fatalf("%s: expected rejection for an unauthenticated connection", tt.name)
			}
		})
	}
}
