package service

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// --- in-memory stores ---

type fakeBookings struct {
	mu        sync.Mutex
	items     map[string]models.Booking
	createErr error
	updateFn  func(b *models.Booking) error
}

func newFakeBookings() *fakeBookings {
	return &fakeBookings{items: map[string]models.Booking{}}
}

func (f *fakeBookings) Create(ctx context.Context, b *models.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.ID] = *b
	return nil
}

func (f *fakeBookings) Update(ctx context.Context, b *models.Booking) error {
	if f.updateFn != nil {
		if err := f.updateFn(b); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[b.ID] = *b
	return nil
}

func (f *fakeBookings) FindByID(ctx context.Context, id string) (*models.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &b, nil
}

func (f *fakeBookings) CountActive(ctx context.Context, queueID, date string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, b := range f.items {
		if b.QueueID == queueID && b.Date == date && b.Status != models.StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (f *fakeBookings) FindByQueueAndDate(ctx context.Context, queueID, date string, status *models.BookingStatus) ([]models.Booking, error) {
	return f.filter(func(b models.Booking) bool {
		return b.QueueID == queueID && b.Date == date && (status == nil || b.Status == *status)
	}), nil
}

func (f *fakeBookings) FindByCommerceDateStatus(ctx context.Context, commerceID, date string, status models.BookingStatus) ([]models.Booking, error) {
	return f.filter(func(b models.Booking) bool {
		return b.CommerceID == commerceID && b.Date == date && b.Status == status
	}), nil
}

func (f *fakeBookings) FindPendingBefore(ctx context.Context, commerceID, date string, createdBefore time.Time) ([]models.Booking, error) {
	return f.filter(func(b models.Booking) bool {
		return b.CommerceID == commerceID && b.Status == models.StatusPending && b.Date < date && b.CreatedAt.Before(createdBefore)
	}), nil
}

func (f *fakeBookings) filter(keep func(models.Booking) bool) []models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Booking
	for _, b := range f.items {
		if keep(b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

func (f *fakeBookings) put(b models.Booking) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	f.items[b.ID] = b
}

func (f *fakeBookings) get(id string) models.Booking {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items[id]
}

type fakeQueues struct {
	items map[string]models.Queue
}

func (f *fakeQueues) FindByID(ctx context.Context, id string) (*models.Queue, error) {
	q, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &q, nil
}

func (f *fakeQueues) Upsert(ctx context.Context, q *models.Queue) error {
	f.items[q.ID] = *q
	return nil
}

type fakeCommerces struct {
	items map[string]models.Commerce
}

func (f *fakeCommerces) FindByID(ctx context.Context, id string) (*models.Commerce, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (f *fakeCommerces) FindActive(ctx context.Context) ([]models.Commerce, error) {
	var out []models.Commerce
	for _, c := range f.items {
		if c.Active {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCommerces) Upsert(ctx context.Context, c *models.Commerce) error {
	f.items[c.ID] = *c
	return nil
}

type fakeClients struct {
	mu    sync.Mutex
	items map[string]models.Client
}

func (f *fakeClients) FindByID(ctx context.Context, id string) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.items[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &c, nil
}

func (f *fakeClients) FindByContact(ctx context.Context, commerceID, email, idNumber string) (*models.Client, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.items {
		if c.CommerceID != commerceID {
			continue
		}
		if (email != "" && c.Email == email) || (idNumber != "" && c.IDNumber == idNumber) {
			return &c, nil
		}
	}
	return nil, nil
}

func (f *fakeClients) Save(ctx context.Context, c *models.Client) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[c.ID] = *c
	return nil
}

// fakeLedger mirrors the postgres ledger semantics over a slice.
type fakeLedger struct {
	mu        sync.Mutex
	usages    []models.BlockUsage
	claimErr  error
	editErr   error
	deleteErr error
}

func (f *fakeLedger) GetTakenBlocksByDate(ctx context.Context, queueID, date string) ([]models.BlockUsage, error) {
	return f.where(func(u models.BlockUsage) bool { return u.QueueID == queueID && u.Date == date }), nil
}

func (f *fakeLedger) ClaimBlocks(ctx context.Context, usages []models.BlockUsage) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range usages {
		if u.ID == "" {
			u.ID = uuid.NewString()
		}
		f.usages = append(f.usages, u)
	}
	return nil
}

func (f *fakeLedger) BindSession(ctx context.Context, queueID, date, sessionID, bookingID string) ([]models.BlockUsage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var bound []models.BlockUsage
	for i, u := range f.usages {
		if u.QueueID != queueID || u.Date != date {
			continue
		}
		if u.BookingID == "" && u.SessionID == sessionID {
			f.usages[i].BookingID = bookingID
			f.usages[i].ExpiresAt = nil
			bound = append(bound, f.usages[i])
		} else if u.BookingID == bookingID {
			bound = append(bound, u)
		}
	}
	return bound, nil
}

func (f *fakeLedger) DeleteTakenBlocksByDate(ctx context.Context, queueID, date, bookingID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.remove(func(u models.BlockUsage) bool {
		return u.QueueID == queueID && u.Date == date && u.BookingID == bookingID
	})
	return nil
}

func (f *fakeLedger) DeleteSessionHolds(ctx context.Context, queueID, date, sessionID string) error {
	f.remove(func(u models.BlockUsage) bool {
		return u.QueueID == queueID && u.Date == date && u.SessionID == sessionID && u.BookingID == ""
	})
	return nil
}

func (f *fakeLedger) EditHourAndDateTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newDate string, newBlock *models.Block) error {
	if f.editErr != nil {
		return f.editErr
	}
	var sessionID string
	for _, u := range f.where(func(u models.BlockUsage) bool { return u.BookingID == bookingID }) {
		sessionID = u.SessionID
	}
	f.remove(func(u models.BlockUsage) bool {
		return u.QueueID == queueID && u.Date == date && u.BookingID == bookingID
	})
	return f.ClaimBlocks(ctx, models.UsagesFor(queueID, newDate, newBlock, sessionID, bookingID))
}

func (f *fakeLedger) EditQueueTakenBlocksByDate(ctx context.Context, queueID, date, bookingID, newQueueID string) error {
	if f.editErr != nil {
		return f.editErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, u := range f.usages {
		if u.QueueID == queueID && u.Date == date && u.BookingID == bookingID {
			f.usages[i].QueueID = newQueueID
		}
	}
	return nil
}

func (f *fakeLedger) where(keep func(models.BlockUsage) bool) []models.BlockUsage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BlockUsage
	for _, u := range f.usages {
		if keep(u) {
			out = append(out, u)
		}
	}
	return out
}

func (f *fakeLedger) remove(drop func(models.BlockUsage) bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.usages[:0]
	for _, u := range f.usages {
		if !drop(u) {
			kept = append(kept, u)
		}
	}
	f.usages = kept
}

// --- collaborator mocks ---

type mockNotifier struct {
	mu        sync.Mutex
	emails    []BookingNotification
	whatsapps []BookingNotification
	emailErr  error
}

func (m *mockNotifier) SendBookingEmail(ctx context.Context, n BookingNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emails = append(m.emails, n)
	return m.emailErr
}

func (m *mockNotifier) SendBookingWhatsapp(ctx context.Context, n BookingNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.whatsapps = append(m.whatsapps, n)
	return nil
}

type mockEvents struct {
	mu        sync.Mutex
	published []string
	publishFn func(routingKey string) error
}

func (m *mockEvents) Publish(ctx context.Context, routingKey string, payload any) error {
	m.mu.Lock()
	m.published = append(m.published, routingKey)
	m.mu.Unlock()
	if m.publishFn != nil {
		return m.publishFn(routingKey)
	}
	return nil
}

type mockAttentions struct {
	createFn func(ctx context.Context, b *models.Booking) (*models.Attention, error)
	calls    int
}

func (m *mockAttentions) CreateAttention(ctx context.Context, b *models.Booking) (*models.Attention, error) {
	m.calls++
	if m.createFn != nil {
		return m.createFn(ctx, b)
	}
	return &models.Attention{ID: "att-" + b.ID, BookingID: b.ID, Number: b.Number}, nil
}

type mockPackages struct {
	paid     map[string]bool
	attached map[string][]string
	detached []string
}

func newMockPackages() *mockPackages {
	return &mockPackages{paid: map[string]bool{}, attached: map[string][]string{}}
}

func (m *mockPackages) IsPaid(ctx context.Context, packageID string) (bool, error) {
	paid, ok := m.paid[packageID]
	if !ok {
		return false, gorm.ErrRecordNotFound
	}
	return paid, nil
}

func (m *mockPackages) MarkPaid(ctx context.Context, packageID string) error {
	m.paid[packageID] = true
	return nil
}

func (m *mockPackages) AttachBooking(ctx context.Context, packageID, bookingID string) error {
	m.attached[packageID] = append(m.attached[packageID], bookingID)
	return nil
}

func (m *mockPackages) DetachBooking(ctx context.Context, packageID, bookingID string) error {
	m.detached = append(m.detached, bookingID)
	return nil
}

type mockIncomes struct {
	recorded []models.Income
}

func (m *mockIncomes) RecordIncome(ctx context.Context, income models.Income) error {
	m.recorded = append(m.recorded, income)
	return nil
}

type mockTelemedicine struct {
	cancelFn func(sessionID string) error
	cancels  []string
}

func (m *mockTelemedicine) CancelSession(ctx context.Context, sessionID string) error {
	m.cancels = append(m.cancels, sessionID)
	if m.cancelFn != nil {
		return m.cancelFn(sessionID)
	}
	return nil
}

type mockWaitlist struct {
	calls int
}

func (m *mockWaitlist) NotifyAvailability(ctx context.Context, queueID, date string, block *models.Block) error {
	m.calls++
	return nil
}

type mockConsent struct {
	calls int
}

func (m *mockConsent) RequestConsent(ctx context.Context, b *models.Booking, c *models.Client) error {
	m.calls++
	return nil
}

// --- environment ---

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

const (
	today    = "2026-10-18"
	tomorrow = "2026-10-19"
)

type testEnv struct {
	bookings     *fakeBookings
	queues       *fakeQueues
	commerces    *fakeCommerces
	clients      *fakeClients
	ledger       *fakeLedger
	notifier     *mockNotifier
	events       *mockEvents
	attentions   *mockAttentions
	packages     *mockPackages
	incomes      *mockIncomes
	telemedicine *mockTelemedicine
	waitlist     *mockWaitlist
	consent      *mockConsent

	booking   BookingService
	lifecycle LifecycleService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		bookings: newFakeBookings(),
		queues: &fakeQueues{items: map[string]models.Queue{
			"q-block":  {ID: "q-block", CommerceID: "c1", Name: "Dental", Type: models.QueueTypeStandard, Limit: 5, Active: true, Available: true},
			"q-shared": {ID: "q-shared", CommerceID: "c1", Name: "Lab", Type: models.QueueTypeService, Limit: 10, Active: true, Available: true, ServiceInfo: models.ServiceInfo{BlockLimit: 2}},
			"q-select": {ID: "q-select", CommerceID: "c1", Name: "Front desk", Type: models.QueueTypeSelectService, Limit: 5, Active: true, Available: true},
			"q-other":  {ID: "q-other", CommerceID: "c1", Name: "Dental 2", Type: models.QueueTypeStandard, Limit: 5, Active: true, Available: true},
			"q-closed": {ID: "q-closed", CommerceID: "c1", Name: "Closed", Limit: 5, Active: true, Available: false},
		}},
		commerces: &fakeCommerces{items: map[string]models.Commerce{
			"c1": {ID: "c1", Name: "Clinic", Timezone: "UTC", Active: true, Features: []models.Feature{
				{Name: models.FeatureBookingConfirm, Active: true},
			}},
		}},
		clients:      &fakeClients{items: map[string]models.Client{}},
		ledger:       &fakeLedger{},
		notifier:     &mockNotifier{},
		events:       &mockEvents{},
		attentions:   &mockAttentions{},
		packages:     newMockPackages(),
		incomes:      &mockIncomes{},
		telemedicine: &mockTelemedicine{},
		waitlist:     &mockWaitlist{},
		consent:      &mockConsent{},
	}
	deps := Deps{
		Bookings:     env.bookings,
		Queues:       env.queues,
		Commerces:    env.commerces,
		Clients:      env.clients,
		Ledger:       env.ledger,
		Notifier:     env.notifier,
		Events:       env.events,
		Attentions:   env.attentions,
		Packages:     env.packages,
		Incomes:      env.incomes,
		Telemedicine: env.telemedicine,
		Waitlist:     env.waitlist,
		Consent:      env.consent,
	}
	clock := WithClock(func() time.Time { return testNow })
	env.booking = NewBookingService(deps, clock)
	env.lifecycle = NewLifecycleService(deps, clock)
	return env
}

func single(number int, from, to string) *models.Block {
	return models.NewSingleBlock(models.TimeBlock{Number: number, HourFrom: from, HourTo: to})
}
