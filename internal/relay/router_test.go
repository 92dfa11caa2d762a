package relay

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"relaybot/internal/storage"
	kit "relaybot/internal/transport"
	logx "relaybot/pkg/logx"
)

type sentText struct {
	to   kit.ChatTarget
	text string
	opt  *kit.SendOptions
}

type copiedMsg struct {
	to  kit.ChatTarget
	src kit.MessageRef
}

// fakeAdapter records outbound calls; failSend makes every call to the
// given chat fail.
type fakeAdapter struct {
	mu       sync.Mutex
	texts    []sentText
	copies   []copiedMsg
	albums   []kit.ChatTarget
	failSend map[int64]bool
	nextID   int
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{failSend: make(map[int64]bool)}
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) Username() string                               { return "testbot" }

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to.ChatID] {
		return kit.MessageRef{}, errors.New("forbidden")
	}
	f.texts = append(f.texts, sentText{to: to, text: text, opt: opt})
	f.nextID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) CopyMessage(_ context.Context, to kit.ChatTarget, src kit.MessageRef, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to.ChatID] {
		return kit.MessageRef{}, errors.New("forbidden")
	}
	f.copies = append(f.copies, copiedMsg{to: to, src: src})
	f.nextID++
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.nextID}, nil
}

func (f *fakeAdapter) SendAlbum(_ context.Context, to kit.ChatTarget, _ []kit.AlbumItem, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend[to.ChatID] {
		return errors.New("forbidden")
	}
	f.albums = append(f.albums, to)
	return nil
}

func (f *fakeAdapter) DeleteMessage(context.Context, kit.MessageRef) error   { return nil }
func (f *fakeAdapter) AnswerCallback(context.Context, string, string) error { return nil }

func (f *fakeAdapter) textsTo(chatID int64) []sentText {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []sentText
	for _, s := range f.texts {
		if s.to.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// fakeDirectory is a fixed roster view.
type fakeDirectory struct {
	admins  []int64
	blocked map[int64]bool
}

func (d *fakeDirectory) Admins() []int64        { return d.admins }
func (d *fakeDirectory) IsBlocked(id int64) bool { return d.blocked[id] }

// auditStore records AppendAudit calls and stubs the rest of the
// persistence API.
type auditStore struct {
	mu      sync.Mutex
	entries []storage.AuditEntry
}

func (s *auditStore) AppendAudit(_ context.Context, e storage.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *auditStore) UpsertUser(context.Context, storage.UserRecord) error { return nil }
func (s *auditStore) GetUser(context.Context, int64) (storage.UserRecord, bool, error) {
	return storage.UserRecord{}, false, nil
}
func (s *auditStore) ListUserIDs(context.Context) ([]int64, error)          { return nil, nil }
func (s *auditStore) CountUsers(context.Context) (int, error)               { return 0, nil }
func (s *auditStore) UpsertGroup(context.Context, storage.GroupRecord) error { return nil }
func (s *auditStore) ListGroups(context.Context) ([]storage.GroupRecord, error) {
	return nil, nil
}
func (s *auditStore) ListGroupIDs(context.Context) ([]int64, error)     { return nil, nil }
func (s *auditStore) SetAdmin(context.Context, int64, bool) error       { return nil }
func (s *auditStore) ListAdminIDs(context.Context) ([]int64, error)     { return nil, nil }
func (s *auditStore) SetBlocked(context.Context, int64, bool) error     { return nil }
func (s *auditStore) ListBlockedIDs(context.Context) ([]int64, error)   { return nil, nil }
func (s *auditStore) GetRule(context.Context, string, string) (string, error) { return "", nil }
func (s *auditStore) SetRule(context.Context, string, string, string) error   { return nil }
func (s *auditStore) PruneAudit(context.Context, time.Time) (int64, error)    { return 0, nil }
func (s *auditStore) Close() error                                            { return nil }

func TestRelayFansOutToAllAdmins(t *testing.T) {
	ad := newFakeAdapter()
	audit := &auditStore{}
	r := NewRouter(ad, &fakeDirectory{admins: []int64{100, 200}}, audit, logx.Nop())

	src := kit.MessageRef{ChatID: 7, MessageID: 42}
	res := r.Relay(context.Background(), &Envelope{
		SourceUserID:   7,
		SourceUsername: "alice",
		SourceFullName: "Alice",
		Kind:           KindBots,
		CopyFrom:       &src,
		Summary:        "need a bot",
	})

	if res.Outcome != OutcomeDelivered {
		t.Fatalf("outcome = %v, want delivered", res.Outcome)
	}
	if res.Delivered != 2 || res.Failed != 0 {
		t.Fatalf("result = %+v, want Delivered=2", res)
	}
	for _, adminID := range []int64{100, 200} {
		texts := ad.textsTo(adminID)
		if len(texts) != 1 {
			t.Fatalf("admin %d got %d headers, want 1", adminID, len(texts))
		}
		if !strings.Contains(texts[0].text, "ID: <code>7</code>") {
			t.Fatalf("header missing source id: %q", texts[0].text)
		}
		if texts[0].opt == nil || len(texts[0].opt.Keyboard) == 0 ||
			texts[0].opt.Keyboard[0][0].Data != ReplyToken(7) {
			t.Fatalf("header keyboard missing reply token for admin %d", adminID)
		}
	}
	if len(ad.copies) != 2 {
		t.Fatalf("payload copied %d times, want 2", len(ad.copies))
	}
	if len(audit.entries) != 1 || audit.entries[0].Direction != storage.AuditUserToAdmin {
		t.Fatalf("audit entries = %+v, want one user_to_admin", audit.entries)
	}
}

func TestRelayOneAdminFailureDoesNotAbort(t *testing.T) {
	ad := newFakeAdapter()
	ad.failSend[100] = true
	r := NewRouter(ad, &fakeDirectory{admins: []int64{100, 200}}, &auditStore{}, logx.Nop())

	src := kit.MessageRef{ChatID: 7, MessageID: 42}
	res := r.Relay(context.Background(), &Envelope{SourceUserID: 7, CopyFrom: &src})

	if res.Outcome != OutcomeDelivered || res.Delivered != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v, want Delivered=1 Failed=1", res)
	}
	if len(ad.textsTo(200)) != 1 {
		t.Fatalf("surviving admin got no header")
	}
}

func TestRelayBlockedSource(t *testing.T) {
	ad := newFakeAdapter()
	audit := &auditStore{}
	r := NewRouter(ad, &fakeDirectory{admins: []int64{100}, blocked: map[int64]bool{7: true}}, audit, logx.Nop())

	res := r.Relay(context.Background(), &Envelope{SourceUserID: 7})
	if res.Outcome != OutcomeBlocked {
		t.Fatalf("outcome = %v, want blocked", res.Outcome)
	}
	if len(ad.texts) != 0 || len(ad.copies) != 0 {
		t.Fatalf("blocked source still reached admins")
	}
}

func TestRelayEmptyRoster(t *testing.T) {
	ad := newFakeAdapter()
	r := NewRouter(ad, &fakeDirectory{}, &auditStore{}, logx.Nop())

	res := r.Relay(context.Background(), &Envelope{SourceUserID: 7})
	if res.Outcome != OutcomeNoAdmins {
		t.Fatalf("outcome = %v, want no admins", res.Outcome)
	}
}

func TestRelayAlbumPayload(t *testing.T) {
	ad := newFakeAdapter()
	r := NewRouter(ad, &fakeDirectory{admins: []int64{100}}, &auditStore{}, logx.Nop())

	res := r.Relay(context.Background(), &Envelope{
		SourceUserID: 7,
		Album: []kit.AlbumItem{
			{Kind: kit.MediaPhoto, FileID: "f1"},
			{Kind: kit.MediaPhoto, FileID: "f2"},
		},
		AlbumCaption: "two photos",
	})

	if res.Delivered != 1 {
		t.Fatalf("result = %+v, want Delivered=1", res)
	}
	if len(ad.albums) != 1 || ad.albums[0].ChatID != 100 {
		t.Fatalf("albums sent = %+v, want one to admin 100", ad.albums)
	}
	if len(ad.copies) != 0 {
		t.Fatalf("album envelope also copied a message")
	}
}

func TestReplyBack(t *testing.T) {
	ad := newFakeAdapter()
	audit := &auditStore{}
	r := NewRouter(ad, &fakeDirectory{admins: []int64{100}}, audit, logx.Nop())

	src := kit.MessageRef{ChatID: 100, MessageID: 9}
	if ok := r.ReplyBack(context.Background(), 100, 7, src, "answer"); !ok {
		t.Fatal("ReplyBack = false, want true")
	}
	if len(ad.copies) != 1 || ad.copies[0].to.ChatID != 7 {
		t.Fatalf("copies = %+v, want one to user 7", ad.copies)
	}
	if len(audit.entries) != 1 || audit.entries[0].Direction != storage.AuditAdminToUser {
		t.Fatalf("audit entries = %+v", audit.entries)
	}

	ad.failSend[7] = true
	if ok := r.ReplyBack(context.Background(), 100, 7, src, "answer"); ok {
		t.Fatal("ReplyBack = true on transport failure, want false")
	}
}

func TestReplyTokenRoundTrip(t *testing.T) {
	for _, id := range []int64{1, 42, 9007199254740993} {
		got, ok := ParseReplyToken(ReplyToken(id))
		if !ok || got != id {
			t.Fatalf("round trip for %d: got %d, ok=%v", id, got, ok)
		}
	}
	for _, bad := range []string{"", "reply|", "reply|abc", "reply|0", "sec|bots", "main|menu"} {
		if _, ok := ParseReplyToken(bad); ok {
			t.Fatalf("ParseReplyToken(%q) accepted", bad)
		}
	}
}
