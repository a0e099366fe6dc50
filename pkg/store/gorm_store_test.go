package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"receiptai/pkg/domain"
)

func newTestStore(t *testing.T) *GormStore {
	t.Helper()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "data", "store.db")
	s, err := NewGormStore(dsn)
	if err != nil {
		t.Fatalf("new gorm store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenDialectorRejectsEmptyDSN(t *testing.T) {
	if _, _, err := openDialector("  "); err == nil {
		t.Fatalf("expected error for empty dsn")
	}
	if _, _, err := openDialector("sqlite://"); err == nil {
		t.Fatalf("expected error for sqlite dsn without path")
	}
	if _, isSQLite, err := openDialector("postgres://u:p@localhost:5432/db"); err != nil || isSQLite {
		t.Fatalf("postgres dsn: isSQLite=%v err=%v", isSQLite, err)
	}
}

func TestResolveUserCreatesOnceAndDefaultsBlank(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve alice: %v", err)
	}
	second, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve alice again: %v", err)
	}
	if first.ID == 0 || first.ID != second.ID {
		t.Fatalf("user ids = %d, %d, want same non-zero", first.ID, second.ID)
	}
	padded, err := s.ResolveUser(ctx, " alice")
	if err != nil {
		t.Fatalf("resolve padded alice: %v", err)
	}
	if padded.ID == first.ID || padded.Username != " alice" {
		t.Fatalf("padded username = %q id=%d, want a distinct user", padded.Username, padded.ID)
	}

	def, err := s.ResolveUser(ctx, "")
	if err != nil {
		t.Fatalf("resolve blank: %v", err)
	}
	if def.Username != domain.DefaultUsername {
		t.Fatalf("blank username = %q, want %q", def.Username, domain.DefaultUsername)
	}
	if def.ID == first.ID {
		t.Fatalf("default user shares id with alice")
	}

	if _, ok, err := s.FindUser(ctx, "bob"); err != nil || ok {
		t.Fatalf("find bob: ok=%v err=%v", ok, err)
	}
}

func TestResolveUserConcurrentFirstSighting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const workers = 8
	ids := make([]int64, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user, err := s.ResolveUser(ctx, "carol")
			ids[i], errs[i] = user.ID, err
		}(i)
	}
	wg.Wait()
	for i := range ids {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Fatalf("worker %d id = %d, want %d", i, ids[i], ids[0])
		}
	}
}

func TestSessionRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if err := s.CreateSession(ctx, domain.Session{ID: "sess-1", UserID: user.ID}); err != nil {
		t.Fatalf("create session: %v", err)
	}
	got, ok, err := s.GetSession(ctx, "sess-1")
	if err != nil || !ok {
		t.Fatalf("get session: ok=%v err=%v", ok, err)
	}
	if got.UserID != user.ID {
		t.Fatalf("session user = %d, want %d", got.UserID, user.ID)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("expected created_at to be set")
	}
	if _, ok, err := s.GetSession(ctx, "missing"); err != nil || ok {
		t.Fatalf("get missing: ok=%v err=%v", ok, err)
	}
	if err := s.CreateSession(ctx, domain.Session{ID: "sess-1", UserID: user.ID}); err == nil {
		t.Fatalf("expected duplicate session id to fail")
	}
	sessions, err := s.ListSessions(ctx, user.ID)
	if err != nil || len(sessions) != 1 {
		t.Fatalf("list sessions: %v err=%v", sessions, err)
	}
}

func TestListRecentMessagesNewestFirstWithLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for turn := 1; turn <= 4; turn++ {
		err := s.AppendMessages(ctx,
			domain.Message{SessionID: "sess", Sender: domain.SenderUser, Text: fmt.Sprintf("q%d", turn)},
			domain.Message{SessionID: "sess", Sender: domain.SenderAI, Text: fmt.Sprintf("a%d", turn)},
		)
		if err != nil {
			t.Fatalf("append turn %d: %v", turn, err)
		}
	}
	if err := s.AppendMessages(ctx, domain.Message{SessionID: "other", Sender: domain.SenderUser, Text: "elsewhere"}); err != nil {
		t.Fatalf("append other: %v", err)
	}

	recent, err := s.ListRecentMessages(ctx, "sess", 5)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	want := []string{"a4", "q4", "a3", "q3", "a2"}
	if len(recent) != len(want) {
		t.Fatalf("recent len = %d, want %d", len(recent), len(want))
	}
	for i, msg := range recent {
		if msg.Text != want[i] {
			t.Fatalf("recent[%d] = %q, want %q", i, msg.Text, want[i])
		}
	}

	all, err := s.ListSessionMessages(ctx, "sess", 0)
	if err != nil {
		t.Fatalf("list session: %v", err)
	}
	if len(all) != 8 || all[0].Text != "q1" || all[7].Text != "a4" {
		t.Fatalf("unexpected chronological transcript: %+v", all)
	}

	none, err := s.ListRecentMessages(ctx, "sess", 0)
	if err != nil || len(none) != 0 {
		t.Fatalf("limit 0: len=%d err=%v", len(none), err)
	}
}

func TestListSessionMessagesLimitKeepsNewest(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	for turn := 1; turn <= 2; turn++ {
		err := s.AppendMessages(ctx,
			domain.Message{SessionID: "sess", Sender: domain.SenderUser, Text: fmt.Sprintf("q%d", turn)},
			domain.Message{SessionID: "sess", Sender: domain.SenderAI, Text: fmt.Sprintf("a%d", turn)},
		)
		if err != nil {
			t.Fatalf("append turn %d: %v", turn, err)
		}
	}

	got, err := s.ListSessionMessages(ctx, "sess", 2)
	if err != nil {
		t.Fatalf("list session: %v", err)
	}
	if len(got) != 2 || got[0].Text != "q2" || got[1].Text != "a2" {
		t.Fatalf("limit 2 = %+v, want q2 then a2", got)
	}

	got, err = s.ListSessionMessages(ctx, "sess", 10)
	if err != nil {
		t.Fatalf("list session: %v", err)
	}
	want := []string{"q1", "a1", "q2", "a2"}
	if len(got) != len(want) {
		t.Fatalf("limit 10 len = %d, want %d", len(got), len(want))
	}
	for i, msg := range got {
		if msg.Text != want[i] {
			t.Fatalf("limit 10 [%d] = %q, want %q", i, msg.Text, want[i])
		}
	}
}

func TestListSessionsBreaksTimestampTies(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	user, err := s.ResolveUser(ctx, "alice")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, id := range []string{"sess-a", "sess-c", "sess-b"} {
		if err := s.CreateSession(ctx, domain.Session{ID: id, UserID: user.ID, CreatedAt: at}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	sessions, err := s.ListSessions(ctx, user.ID)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	want := []string{"sess-c", "sess-b", "sess-a"}
	if len(sessions) != len(want) {
		t.Fatalf("sessions len = %d, want %d", len(sessions), len(want))
	}
	for i, sess := range sessions {
		if sess.ID != want[i] {
			t.Fatalf("sessions[%d] = %s, want %s", i, sess.ID, want[i])
		}
	}
}

func TestReceiptsNewestFirstPerUser(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	alice, _ := s.ResolveUser(ctx, "alice")
	bob, _ := s.ResolveUser(ctx, "bob")

	for _, text := range []string{"coffee 3.50", "bread 2.00"} {
		if _, err := s.CreateReceipt(ctx, domain.Receipt{UserID: alice.ID, Text: text}); err != nil {
			t.Fatalf("create receipt: %v", err)
		}
	}
	created, err := s.CreateReceipt(ctx, domain.Receipt{
		UserID:   bob.ID,
		Text:     "milk 1.20",
		ImageKey: "receipts/2/x.png",
		Metadata: map[string]string{"filename": "x.png"},
	})
	if err != nil {
		t.Fatalf("create bob receipt: %v", err)
	}
	if created.ID == 0 || !created.HasImage {
		t.Fatalf("unexpected created receipt: %+v", created)
	}

	got, err := s.ListReceipts(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list receipts: %v", err)
	}
	if len(got) != 2 || got[0].Text != "bread 2.00" || got[1].Text != "coffee 3.50" {
		t.Fatalf("alice receipts = %+v", got)
	}

	fetched, ok, err := s.GetReceipt(ctx, created.ID)
	if err != nil || !ok {
		t.Fatalf("get receipt: ok=%v err=%v", ok, err)
	}
	if fetched.Metadata["filename"] != "x.png" || fetched.ImageKey != "receipts/2/x.png" {
		t.Fatalf("fetched receipt = %+v", fetched)
	}
	if _, ok, err := s.GetReceipt(ctx, 9999); err != nil || ok {
		t.Fatalf("get missing receipt: ok=%v err=%v", ok, err)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
