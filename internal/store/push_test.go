package store

import "testing"

func TestPushSubscriptionUpsert(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPushStore(db)
	u, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")

	sub, err := ps.CreateSubscription(u.ID, fam.ID, "https://push.example.com/sub1", "p1", "a1", "Phone")
	if err != nil {
		t.Fatalf("create subscription: %v", err)
	}
	if sub.ID == 0 {
		t.Error("expected non-zero ID")
	}

	again, err := ps.CreateSubscription(u.ID, fam.ID, "https://push.example.com/sub1", "p2", "a2", "Phone 2")
	if err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}
	if again.ID != sub.ID {
		t.Errorf("id = %d, want %d (same endpoint)", again.ID, sub.ID)
	}
	if again.P256dhKey != "p2" {
		t.Errorf("p256dh = %q, want %q", again.P256dhKey, "p2")
	}

	subs, _ := ps.ListByUser(u.ID)
	if len(subs) != 1 {
		t.Errorf("len(subs) = %d, want 1", len(subs))
	}
}

func TestPushListRecipientsExcludesSender(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPushStore(db)
	us := NewUserStore(db)
	owner, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")
	other, _ := us.Create("other@example.com", "Other", "hash")

	ps.CreateSubscription(owner.ID, fam.ID, "https://push.example.com/owner", "p", "a", "")
	ps.CreateSubscription(other.ID, fam.ID, "https://push.example.com/other", "p", "a", "")

	subs, err := ps.ListRecipients(fam.ID, owner.ID)
	if err != nil {
		t.Fatalf("list recipients: %v", err)
	}
	if len(subs) != 1 || subs[0].UserID != other.ID {
		t.Errorf("recipients = %+v, want only other user", subs)
	}
}

func TestPushDeleteSubscription(t *testing.T) {
	db := setupTestDB(t)
	ps := NewPushStore(db)
	u, fam, _ := seedFamily(t, db, "owner@example.com", "Smiths")

	sub, _ := ps.CreateSubscription(u.ID, fam.ID, "https://push.example.com/x", "p", "a", "")

	ok, err := ps.DeleteSubscription(sub.ID, u.ID+1)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if ok {
		t.Error("must not delete another user's subscription")
	}

	ok, _ = ps.DeleteSubscription(sub.ID, u.ID)
	if !ok {
		t.Error("expected delete to succeed for owner")
	}
}
