package notificationstore_test

import (
	"testing"

	notificationstore "github.com/dalemusser/paytrack/internal/app/store/notifications"
	"github.com/dalemusser/paytrack/internal/domain/models"
	"github.com/dalemusser/paytrack/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_CreateMany_FanOut(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	err := store.CreateMany(ctx, []models.Notification{
		{UserID: a, Title: "New Payment Received", Message: "one", Type: models.NotifyPayment},
		{UserID: b, Title: "New Payment Received", Message: "one", Type: models.NotifyPayment},
	})
	if err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}

	for _, uid := range []primitive.ObjectID{a, b} {
		n, err := store.CountUnread(ctx, uid)
		if err != nil {
			t.Fatalf("CountUnread failed: %v", err)
		}
		if n != 1 {
			t.Errorf("unread for %v: got %d, want 1", uid, n)
		}
	}

	// Empty fan-out is a no-op, not an error.
	if err := store.CreateMany(ctx, nil); err != nil {
		t.Errorf("CreateMany with no recipients failed: %v", err)
	}
}

func TestStore_MarkRead_ScopedToOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	created, err := store.Create(ctx, models.Notification{
		UserID:  owner,
		Title:   "Payment Approved",
		Message: "Your payment has been approved.",
		Type:    models.NotifyPayment,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	// Someone else cannot mark it read.
	matched, err := store.MarkRead(ctx, created.ID, stranger)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if matched != 0 {
		t.Errorf("matched: got %d, want 0 for non-owner", matched)
	}

	matched, err = store.MarkRead(ctx, created.ID, owner)
	if err != nil {
		t.Fatalf("MarkRead failed: %v", err)
	}
	if matched != 1 {
		t.Errorf("matched: got %d, want 1 for owner", matched)
	}

	n, err := store.CountUnread(ctx, owner)
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if n != 0 {
		t.Errorf("unread: got %d, want 0", n)
	}
}

func TestStore_MarkAllRead(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()
	other := primitive.NewObjectID()

	err := store.CreateMany(ctx, []models.Notification{
		{UserID: user, Title: "a", Message: "a", Type: models.NotifyOther},
		{UserID: user, Title: "b", Message: "b", Type: models.NotifyOther},
		{UserID: other, Title: "c", Message: "c", Type: models.NotifyOther},
	})
	if err != nil {
		t.Fatalf("CreateMany failed: %v", err)
	}

	updated, err := store.MarkAllRead(ctx, user)
	if err != nil {
		t.Fatalf("MarkAllRead failed: %v", err)
	}
	if updated != 2 {
		t.Errorf("updated: got %d, want 2", updated)
	}

	n, err := store.CountUnread(ctx, other)
	if err != nil {
		t.Fatalf("CountUnread failed: %v", err)
	}
	if n != 1 {
		t.Errorf("other user's unread: got %d, want 1", n)
	}
}

func TestStore_ListForUser_MostRecentFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := primitive.NewObjectID()

	var last models.Notification
	for _, title := range []string{"first", "second", "third"} {
		n, err := store.Create(ctx, models.Notification{
			UserID:  user,
			Title:   title,
			Message: title,
			Type:    models.NotifyOther,
		})
		if err != nil {
			t.Fatalf("Create %s failed: %v", title, err)
		}
		last = n
	}

	got, err := store.ListForUser(ctx, user, 2, 0)
	if err != nil {
		t.Fatalf("ListForUser failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d notifications, want 2", len(got))
	}
	if got[0].ID != last.ID {
		t.Errorf("expected the most recent notification first, got %q", got[0].Title)
	}
}

func TestStore_Delete_ScopedToOwner(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := notificationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := primitive.NewObjectID()
	created, err := store.Create(ctx, models.Notification{
		UserID:  owner,
		Title:   "t",
		Message: "m",
		Type:    models.NotifyOther,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	deleted, err := store.Delete(ctx, created.ID, primitive.NewObjectID())
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 0 {
		t.Errorf("deleted: got %d, want 0 for non-owner", deleted)
	}

	deleted, err = store.Delete(ctx, created.ID, owner)
	if err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted: got %d, want 1 for owner", deleted)
	}
}
