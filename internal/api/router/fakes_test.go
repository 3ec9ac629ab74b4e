package router

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/api/domain"
	"github.com/cuongbtq/jobmatch-be/internal/api/handler"
	"github.com/cuongbtq/jobmatch-be/internal/api/model"
	"github.com/cuongbtq/jobmatch-be/internal/api/storage"
	"github.com/cuongbtq/jobmatch-be/internal/auth"
	"github.com/cuongbtq/jobmatch-be/internal/billing"
	"github.com/cuongbtq/jobmatch-be/internal/geocode"
	"github.com/cuongbtq/jobmatch-be/internal/i18n"
	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/cuongbtq/jobmatch-be/internal/ratelimit"
	"github.com/cuongbtq/jobmatch-be/shared/logger"
)

const (
	workerID   = "11111111-1111-4111-8111-111111111111"
	factoryID  = "22222222-2222-4222-8222-222222222222"
	adminID    = "33333333-3333-4333-8333-333333333333"
	strangerID = "44444444-4444-4444-8444-444444444444"
	newcomerID = "66666666-6666-4666-8666-666666666666"
	jobID      = "55555555-5555-4555-8555-555555555555"
	convID     = "77777777-7777-4777-8777-777777777777"
)

var t0 = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fakeVerifier struct{}

func (fakeVerifier) Verify(token string) (*auth.Claims, error) {
	subjects := map[string]string{
		"worker-token":   workerID,
		"factory-token":  factoryID,
		"admin-token":    adminID,
		"stranger-token": strangerID,
		"newcomer-token": newcomerID,
	}
	sub, ok := subjects[token]
	if !ok {
		return nil, errors.New("bad token")
	}
	return &auth.Claims{Subject: sub, Email: sub + "@example.vn"}, nil
}

type fakeStore struct {
	mu         sync.Mutex
	jobs       []model.NearbyJob
	workers    []model.NearbyWorker
	nearbyErr  error
	nearbyArgs []float64
	saved      map[string]bool
	users      []model.Profile
	lastFilter storage.UserFilter
	roleErr    error
}

var roles = map[string]auth.Role{
	workerID:   auth.RoleWorker,
	factoryID:  auth.RoleFactory,
	adminID:    auth.RoleAdmin,
	strangerID: auth.RoleWorker,
}

func (s *fakeStore) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	role, ok := roles[userID]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &model.Profile{ID: userID, Email: userID + "@example.vn", FullName: "Nguyễn Văn A", Role: string(role), CreatedAt: t0}, nil
}

func (s *fakeStore) LookupRole(ctx context.Context, userID string) (auth.Role, error) {
	if s.roleErr != nil {
		return "", s.roleErr
	}
	role, ok := roles[userID]
	if !ok {
		return "", auth.ErrNoRole
	}
	return role, nil
}

func (s *fakeStore) NearbyJobs(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearbyArgs = []float64{lat, lng, radiusKm}
	return s.jobs, s.nearbyErr
}

func (s *fakeStore) NearbyWorkers(ctx context.Context, lat, lng, radiusKm float64) ([]model.NearbyWorker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearbyArgs = []float64{lat, lng, radiusKm}
	return s.workers, s.nearbyErr
}

func (s *fakeStore) ToggleSavedJob(ctx context.Context, worker, job string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saved == nil {
		s.saved = map[string]bool{}
	}
	key := worker + "/" + job
	s.saved[key] = !s.saved[key]
	return s.saved[key], nil
}

func (s *fakeStore) ListSavedJobs(ctx context.Context, worker string) ([]model.SavedJob, error) {
	lo := 5_000_000.0
	return []model.SavedJob{{JobID: jobID, Title: "Công nhân may", SalaryMin: &lo, SavedAt: t0}}, nil
}

func (s *fakeStore) CountUsersByRole(ctx context.Context) ([]model.RoleCount, error) {
	return []model.RoleCount{{Role: "admin", Count: 1}, {Role: "worker", Count: 40}}, nil
}

func (s *fakeStore) ListUsers(ctx context.Context, filter storage.UserFilter) ([]model.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFilter = filter
	return s.users, nil
}

type fakeMessages struct {
	mu       sync.Mutex
	convs    map[string]*messaging.Conversation
	messages []messaging.Message
	hasMore  bool
	created  []string
	lookups  int
}

func newFakeMessages() *fakeMessages {
	return &fakeMessages{
		convs: map[string]*messaging.Conversation{
			convID: {ID: convID, WorkerID: workerID, FactoryID: factoryID, CreatedAt: t0},
		},
	}
}

func (m *fakeMessages) ListMessages(ctx context.Context, conversationID string, cursor *messaging.Cursor, order messaging.Order, limit int) (messaging.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order == messaging.Asc {
		return m.pageAfter(cursor, limit), nil
	}
	return messaging.Page{Messages: slices.Clone(m.messages), HasMore: m.hasMore}, nil
}

// pageAfter pages forward the way Store does: strictly after cursor in
// (created_at, id) order
func (m *fakeMessages) pageAfter(cursor *messaging.Cursor, limit int) messaging.Page {
	sorted := slices.Clone(m.messages)
	slices.SortFunc(sorted, func(a, b messaging.Message) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	var out []messaging.Message
	for _, msg := range sorted {
		if cursor != nil {
			if c := msg.CreatedAt.Compare(cursor.CreatedAt); c < 0 || (c == 0 && msg.ID <= cursor.ID) {
				continue
			}
		}
		out = append(out, msg)
	}

	page := messaging.Page{HasMore: len(out) > limit}
	if page.HasMore {
		out = out[:limit]
	}
	page.Messages = out
	return page
}

func (m *fakeMessages) store(msg messaging.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
}

func (m *fakeMessages) CreateMessage(ctx context.Context, conversationID, senderID, body string) (*messaging.Message, error) {
	if body == "   " {
		return nil, messaging.ErrEmptyBody
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	msg := messaging.Message{ID: "new-msg", ConversationID: conversationID, SenderID: senderID, Body: body, CreatedAt: t0.Add(time.Hour)}
	m.messages = append(m.messages, msg)
	return &msg, nil
}

func (m *fakeMessages) MarkRead(ctx context.Context, conversationID, readerID string) (int64, error) {
	return 3, nil
}

func (m *fakeMessages) GetConversation(ctx context.Context, id string) (*messaging.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	conv, ok := m.convs[id]
	if !ok {
		return nil, messaging.ErrConversationNotFound
	}
	return conv, nil
}

func (m *fakeMessages) GetOrCreateConversation(ctx context.Context, worker, factory string, job *string) (*messaging.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, worker+"/"+factory)
	return &messaging.Conversation{ID: "conv-new", WorkerID: worker, FactoryID: factory, JobID: job, CreatedAt: t0}, true, nil
}

func (m *fakeMessages) ListConversations(ctx context.Context, userID string) ([]messaging.ConversationSummary, error) {
	return []messaging.ConversationSummary{{Conversation: *m.convs[convID], WorkerName: "Lan", FactoryName: "May Việt Tiến", UnreadCount: 2}}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	events   []messaging.Event
	attempts int
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, body []byte, contentType string) error {
	p.mu.Lock()
	p.attempts++
	err := p.err
	p.mu.Unlock()
	if err != nil {
		return err
	}

	var ev messaging.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

type fakeProvider struct {
	err error
}

func (p fakeProvider) ExchangeCode(ctx context.Context, code, verifier string) (*auth.Session, error) {
	if p.err != nil {
		return nil, p.err
	}
	users := map[string]string{"worker-code": workerID, "new-code": newcomerID}
	return &auth.Session{AccessToken: "at-" + code, RefreshToken: "rt", ExpiresIn: 3600, User: auth.SessionUser{ID: users[code]}}, nil
}

type fakeBilling struct {
	planID string
}

func (b *fakeBilling) CreateCheckout(ctx context.Context, factory, email, planID string) (string, error) {
	if planID == "missing" {
		return "", billing.ErrPlanNotFound
	}
	b.planID = planID
	return "https://checkout.stripe.com/c/pay/cs_test_1", nil
}

func (b *fakeBilling) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if signature != "good" {
		return billing.ErrInvalidSignature
	}
	return nil
}

type fakePlans struct {
	subErr error
}

func (fakePlans) ListActivePlans(ctx context.Context) ([]billing.Plan, error) {
	return []billing.Plan{{ID: "pro", Name: "Chuyên nghiệp", Price: 990000, Currency: "VND", IsActive: true}}, nil
}

func (p fakePlans) GetSubscription(ctx context.Context, factory string) (*billing.Subscription, error) {
	if p.subErr != nil {
		return nil, p.subErr
	}
	if factory != factoryID {
		return nil, billing.ErrSubscriptionNotFound
	}
	return &billing.Subscription{FactoryID: factory, PlanID: "pro", Status: billing.StatusActive, UpdatedAt: t0}, nil
}

type fakeDB struct{ err error }

func (d fakeDB) HealthCheck(ctx context.Context) error { return d.err }

type testEnv struct {
	deps      *handler.Dependencies
	store     *fakeStore
	messages  *fakeMessages
	publisher *recordingPublisher
	hub       *messaging.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	log := logger.NewDiscard()

	limiter := ratelimit.NewMemoryLimiter(log, time.Minute)
	t.Cleanup(limiter.Stop)

	env := &testEnv{
		store:     &fakeStore{},
		messages:  newFakeMessages(),
		publisher: &recordingPublisher{},
		hub:       messaging.NewHub(log, 0),
	}
	env.deps = &handler.Dependencies{
		Logger:            log,
		Translator:        i18n.MustNew(),
		DB:                fakeDB{},
		Storage:           env.store,
		Messages:          env.messages,
		Hub:               env.hub,
		Publisher:         env.publisher,
		Geocoder:          geocode.NewClient(geocode.Config{BaseURL: "http://127.0.0.1:1"}, log),
		Provider:          fakeProvider{},
		Verifier:          fakeVerifier{},
		Billing:           &fakeBilling{},
		Plans:             fakePlans{},
		Limiter:           limiter,
		RateLimitMax:      30,
		RateLimitWindow:   time.Minute,
		HeartbeatInterval: time.Hour,
	}
	return env
}
