package store_test

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/sqlite"
	t2 "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

func newTestStore(t *testing.T) {
	t.Helper()
	store.SetAdapter(&sqlite.Adapter{})
	dsn := filepath.Join(t.TempDir(), "facade.db")
	if err := store.Open(dsn); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestUsersCreateRejectsWhitespaceUsername(t *testing.T) {
	newTestStore(t)
	err := store.Users.Create(&t2.User{
		Username: "has space", Email: "a@example.com",
		PasswordHash: []byte("x"), Salt: []byte("y"),
		CreatedAt: t2.TimeNow(), LastActivity: t2.TimeNow(),
	})
	if !store.IsConflict(err) {
		t.Fatalf("expected a conflict-classified error for a whitespace username, got %v", err)
	}
}

func TestResolveTargetByUsernameAndByID(t *testing.T) {
	newTestStore(t)
	u := &t2.User{
		Username: "targetuser", Email: "t@example.com",
		PasswordHash: []byte("x"), Salt: []byte("y"),
		CreatedAt: t2.TimeNow(), LastActivity: t2.TimeNow(),
	}
	if err := store.Users.Create(u); err != nil {
		t.Fatalf("Users.Create: %v", err)
	}

	if id, ok := store.Users.ResolveTarget("targetuser"); !ok || id != u.UserID {
		t.Fatalf("ResolveTarget by username: id=%d ok=%v", id, ok)
	}
	if id, ok := store.Users.ResolveTarget(strconv.FormatInt(u.UserID, 10)); !ok || id != u.UserID {
		t.Fatalf("ResolveTarget by id: id=%d ok=%v", id, ok)
	}
	if _, ok := store.Users.ResolveTarget("nobody"); ok {
		t.Fatal("ResolveTarget should report false for an unknown username")
	}
}

func TestContactsAddRejectsSelfReference(t *testing.T) {
	newTestStore(t)
	u := &t2.User{
		Username: "loner", Email: "loner@example.com",
		PasswordHash: []byte("x"), Salt: []byte("y"),
		CreatedAt: t2.TimeNow(), LastActivity: t2.TimeNow(),
	}
	if err := store.Users.Create(u); err != nil {
		t.Fatalf("Users.Create: %v", err)
	}
	err := store.Contacts.Add(&t2.Contact{OwnerUserID: u.UserID, ContactUserID: u.UserID, AddedAt: t2.TimeNow()})
	if !store.IsConflict(err) {
		t.Fatalf("expected a conflict for a self-referential contact, got %v", err)
	}
}

func TestGroupsCreateAlsoAddsCreatorAsOwnerMember(t *testing.T) {
	newTestStore(t)
	owner := &t2.User{
		Username: "groupowner", Email: "go@example.com",
		PasswordHash: []byte("x"), Salt: []byte("y"),
		CreatedAt: t2.TimeNow(), LastActivity: t2.TimeNow(),
	}
	if err := store.Users.Create(owner); err != nil {
		t.Fatalf("Users.Create: %v", err)
	}

	g := &t2.Group{GroupID: "facade-g1", GroupName: "Facade Group", CreatorUserID: owner.UserID, CreatedAt: t2.TimeNow()}
	if err := store.Groups.Create(g); err != nil {
		t.Fatalf("Groups.Create: %v", err)
	}

	isMember, err := store.Groups.IsMember("facade-g1", owner.UserID)
	if err != nil || !isMember {
		t.Fatalf("expected the creator to already be a member: isMember=%v err=%v", isMember, err)
	}

	members, err := store.Groups.Members("facade-g1")
	if err != nil || len(members) != 1 || members[0].Role != t2.RoleOwner {
		t.Fatalf("unexpected members after group creation: %+v err=%v", members, err)
	}
}

func TestMessagesFetchHistoryUnresolvableTargetReturnsEmptyNotError(t *testing.T) {
	newTestStore(t)
	rows, err := store.Messages.FetchHistory(t2.HistoryQuery{ChatType: t2.ChatSingle, Target: "nonexistent-user"})
	if err != nil {
		t.Fatalf("expected no error for an unresolvable target, got %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows, got %d", len(rows))
	}
}
