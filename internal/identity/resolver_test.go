package identity

import (
	"context"
	"fmt"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/jayleedotnetfullstack-dev/MarketGemini/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.User{}, &models.UserIdentity{}, &models.Session{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func TestResolve_CreatesUserAndIdentity(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	user, err := r.Resolve(context.Background(), Info{
		Provider:    "google",
		ProviderSub: "sub-123",
		Email:       "a@example.com",
		DisplayName: "Alice",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if user.ExternalID != "google:sub-123" {
		t.Fatalf("external_id = %q", user.ExternalID)
	}
	if user.Email == nil || *user.Email != "a@example.com" {
		t.Fatalf("email not set: %v", user.Email)
	}

	var count int64
	db.Model(&models.UserIdentity{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 identity row, got %d", count)
	}
}

func TestResolve_IsIdempotent(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	info := Info{Provider: "google", ProviderSub: "sub-123", Email: "a@example.com"}

	first, err := r.Resolve(context.Background(), info)
	if err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	second, err := r.Resolve(context.Background(), info)
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same user, got %s and %s", first.ID, second.ID)
	}

	var users, idents int64
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.UserIdentity{}).Count(&idents)
	if users != 1 || idents != 1 {
		t.Fatalf("expected 1 user / 1 identity, got %d / %d", users, idents)
	}
}

func TestResolve_LinksSecondProviderByEmail(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	google, err := r.Resolve(context.Background(), Info{
		Provider: "google", ProviderSub: "g-1", Email: "a@example.com",
	})
	if err != nil {
		t.Fatalf("google resolve: %v", err)
	}

	apple, err := r.Resolve(context.Background(), Info{
		Provider: "apple", ProviderSub: "ap-1", Email: "a@example.com",
	})
	if err != nil {
		t.Fatalf("apple resolve: %v", err)
	}

	if google.ID != apple.ID {
		t.Fatalf("same email must map to one user, got %s and %s", google.ID, apple.ID)
	}

	var idents int64
	db.Model(&models.UserIdentity{}).Where("user_id = ?", google.ID).Count(&idents)
	if idents != 2 {
		t.Fatalf("expected 2 identities on the user, got %d", idents)
	}
}

func TestResolve_BackfillsOnlyEmptyFields(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	_, err := r.Resolve(context.Background(), Info{
		Provider: "google", ProviderSub: "g-1", Email: "first@example.com",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	user, err := r.Resolve(context.Background(), Info{
		Provider: "google", ProviderSub: "g-1", Email: "second@example.com",
	})
	if err != nil {
		t.Fatalf("resolve again: %v", err)
	}
	if user.Email == nil || *user.Email != "first@example.com" {
		t.Fatalf("email must not be overwritten: %v", user.Email)
	}
}

func TestResolve_RejectsEmptyIdentity(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	if _, err := r.Resolve(context.Background(), Info{Provider: "google"}); err == nil {
		t.Fatal("expected error for missing provider_sub")
	}
	if _, err := r.Resolve(context.Background(), Info{ProviderSub: "x"}); err == nil {
		t.Fatal("expected error for missing provider")
	}
}

func TestResolveSession_Upserts(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	user, err := r.Resolve(context.Background(), Info{Provider: "local", ProviderSub: "dev-user-1"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	first, err := r.ResolveSession(context.Background(), user.ID, "sess-abc")
	if err != nil {
		t.Fatalf("first session: %v", err)
	}
	if first.Title != "Session sess-abc" {
		t.Fatalf("title = %q", first.Title)
	}

	second, err := r.ResolveSession(context.Background(), user.ID, "sess-abc")
	if err != nil {
		t.Fatalf("second session: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same session row, got %s and %s", first.ID, second.ID)
	}
	if second.LastSeenAt.Before(first.LastSeenAt) {
		t.Fatal("last_seen_at must not go backwards")
	}

	var count int64
	db.Model(&models.Session{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 session row, got %d", count)
	}
}

func TestPrimaryIdentity_NilWhenNone(t *testing.T) {
	db := openTestDB(t)
	r := NewResolver(db)

	ui, err := r.PrimaryIdentity(context.Background(), "no-such-user")
	if err != nil {
		t.Fatalf("primary identity: %v", err)
	}
	if ui != nil {
		t.Fatalf("expected nil identity, got %+v", ui)
	}
}
