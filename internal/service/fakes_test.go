package service

import (
	"context"
	"regexp"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Brownie44l1/attendance/internal/i18n"
	"github.com/Brownie44l1/attendance/internal/logger"
	"github.com/Brownie44l1/attendance/internal/messaging"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// ==============================================
// IN-MEMORY STORE
// ==============================================

// fakeStore implements every repository interface with the same guarded
// write semantics as the SQL repositories.
type fakeStore struct {
	mu          sync.Mutex
	sessions    map[string]*models.VerificationSession
	otps        []*models.OneTimeCode
	logs        []models.VerificationLog
	employees   map[string]*models.Employee
	orgs        map[string]*models.Organization
	records     map[string]*models.AttendanceRecord
	breaks      []*models.BreakInterval
	adjustments []models.SalaryAdjustment
	joins       []*models.JoinRequest
	leaves      []*models.LeaveRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions:  map[string]*models.VerificationSession{},
		employees: map[string]*models.Employee{},
		orgs:      map[string]*models.Organization{},
		records:   map[string]*models.AttendanceRecord{},
	}
}

// sessions

func (f *fakeStore) Create(_ context.Context, s *models.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[s.Token]; ok {
		return repository.ErrDuplicate
	}
	cp := *s
	f.sessions[s.Token] = &cp
	return nil
}

func (f *fakeStore) GetLive(_ context.Context, token string, purpose models.SessionPurpose) (*models.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.Purpose != purpose || s.CompletedAt != nil {
		return nil, repository.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) MarkBiometricVerified(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.CompletedAt != nil || s.BiometricVerifiedAt != nil {
		return repository.ErrStale
	}
	s.BiometricVerifiedAt = &at
	return nil
}

func (f *fakeStore) MarkCompleted(_ context.Context, token string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.CompletedAt != nil {
		return repository.ErrStale
	}
	s.CompletedAt = &at
	return nil
}

func (f *fakeStore) CompleteRegistration(_ context.Context, token, employeeID, credentialID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[token]
	if !ok || s.Purpose != models.PurposeRegistration || s.CompletedAt != nil {
		return repository.ErrStale
	}
	emp, ok := f.employees[employeeID]
	if !ok {
		return repository.ErrNotFound
	}
	s.CompletedAt = &at
	cred := credentialID
	emp.CredentialID = &cred
	emp.CredentialRegisteredAt = &at
	return nil
}

func (f *fakeStore) LogVerification(_ context.Context, entry *models.VerificationLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

// one-time codes

func (f *fakeStore) CreateOTP(_ context.Context, otp *models.OneTimeCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if otp.ID == "" {
		otp.ID = uuid.NewString()
	}
	cp := *otp
	f.otps = append(f.otps, &cp)
	return nil
}

func (f *fakeStore) GetLatestUnused(_ context.Context, token string) (*models.OneTimeCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.otps) - 1; i >= 0; i-- {
		if o := f.otps[i]; o.SessionToken == token && o.UsedAt == nil {
			cp := *o
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) findOTP(id string) *models.OneTimeCode {
	for _, o := range f.otps {
		if o.ID == id {
			return o
		}
	}
	return nil
}

func (f *fakeStore) RegisterFailedAttempt(_ context.Context, id string, maxAttempts int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.findOTP(id)
	if o == nil || o.UsedAt != nil || o.Attempts >= maxAttempts {
		return 0, repository.ErrStale
	}
	o.Attempts++
	return o.Attempts, nil
}

func (f *fakeStore) MarkUsed(_ context.Context, id string, at time.Time, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o := f.findOTP(id)
	if o == nil || o.UsedAt != nil || o.Attempts >= maxAttempts {
		return repository.ErrStale
	}
	o.UsedAt = &at
	return nil
}

// employees and organizations

func (f *fakeStore) GetEmployee(_ context.Context, id string) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.employees[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeStore) GetByChatID(_ context.Context, orgID string, chatID int64) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.OrganizationID == orgID && e.IsActive && e.ChatID != nil && *e.ChatID == chatID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) BindChatByPhone(_ context.Context, orgID, phone string, chatID int64) (*models.Employee, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.employees {
		if e.OrganizationID == orgID && e.Phone == phone && e.IsActive && (e.ChatID == nil || *e.ChatID == chatID) {
			id := chatID
			e.ChatID = &id
			cp := *e
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetOrganization(_ context.Context, id string) (*models.Organization, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orgs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

// attendance

func (f *fakeStore) CreateCheckIn(_ context.Context, rec *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.EmployeeID == rec.EmployeeID && r.Date == rec.Date {
			return repository.ErrDuplicate
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.CreatedAt = rec.CheckInTime
	rec.UpdatedAt = rec.CheckInTime
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeStore) GetByDate(_ context.Context, employeeID, date string) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.records {
		if r.EmployeeID == employeeID && r.Date == date {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) GetLatestOpen(_ context.Context, employeeID string) (*models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var open []*models.AttendanceRecord
	for _, r := range f.records {
		if r.EmployeeID == employeeID && r.CheckOutTime == nil &&
			(r.Status == models.StatusCheckedIn || r.Status == models.StatusOnBreak) {
			open = append(open, r)
		}
	}
	if len(open) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Date > open[j].Date })
	cp := *open[0]
	return &cp, nil
}

func (f *fakeStore) ListBreaks(_ context.Context, attendanceID string) ([]models.BreakInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.BreakInterval
	for _, b := range f.breaks {
		if b.AttendanceID == attendanceID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeStore) StartBreak(_ context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[attendanceID]
	if !ok || r.Status != models.StatusCheckedIn || r.CheckOutTime != nil {
		return nil, repository.ErrStale
	}
	r.Status = models.StatusOnBreak
	b := &models.BreakInterval{ID: uuid.NewString(), AttendanceID: attendanceID, StartTime: at}
	f.breaks = append(f.breaks, b)
	cp := *b
	return &cp, nil
}

func (f *fakeStore) closeBreak(attendanceID string, at time.Time) *models.BreakInterval {
	for _, b := range f.breaks {
		if b.AttendanceID == attendanceID && b.EndTime == nil {
			end := at
			d := models.WholeMinutes(b.StartTime, at)
			b.EndTime = &end
			b.DurationMinutes = &d
			return b
		}
	}
	return nil
}

func (f *fakeStore) EndBreak(_ context.Context, attendanceID string, at time.Time) (*models.BreakInterval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[attendanceID]
	if !ok || r.Status != models.StatusOnBreak || r.CheckOutTime != nil {
		return nil, repository.ErrStale
	}
	b := f.closeBreak(attendanceID, at)
	if b == nil {
		return nil, repository.ErrNotFound
	}
	r.Status = models.StatusCheckedIn
	cp := *b
	return &cp, nil
}

func (f *fakeStore) CheckOut(_ context.Context, attendanceID string, at time.Time, adj *models.SalaryAdjustment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[attendanceID]
	if !ok || r.CheckOutTime != nil || (r.Status != models.StatusCheckedIn && r.Status != models.StatusOnBreak) {
		return repository.ErrStale
	}
	if r.Status == models.StatusOnBreak {
		f.closeBreak(attendanceID, at)
	}
	out := at
	r.CheckOutTime = &out
	r.Status = models.StatusCheckedOut
	if adj != nil {
		if adj.ID == "" {
			adj.ID = uuid.NewString()
		}
		f.adjustments = append(f.adjustments, *adj)
	}
	return nil
}

// join and leave requests

func (f *fakeStore) CreateJoinRequest(_ context.Context, jr *models.JoinRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, j := range f.joins {
		if j.OrganizationID == jr.OrganizationID && j.ChatID == jr.ChatID && j.Status == models.RequestStatusPending {
			return repository.ErrDuplicate
		}
	}
	if jr.ID == "" {
		jr.ID = uuid.NewString()
	}
	cp := *jr
	f.joins = append(f.joins, &cp)
	return nil
}

func (f *fakeStore) GetLatestJoinRequest(_ context.Context, orgID string, chatID int64) (*models.JoinRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.joins) - 1; i >= 0; i-- {
		if j := f.joins[i]; j.OrganizationID == orgID && j.ChatID == chatID {
			cp := *j
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) CreateLeaveRequest(_ context.Context, lr *models.LeaveRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if lr.ID == "" {
		lr.ID = uuid.NewString()
	}
	cp := *lr
	f.leaves = append(f.leaves, &cp)
	return nil
}

func (f *fakeStore) recordCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// ==============================================
// FAKE MESSAGING
// ==============================================

type sentMessage struct {
	ChatID   int64
	Text     string
	Keyboard *tgbotapi.InlineKeyboardMarkup
}

type fakeGateway struct {
	mu       sync.Mutex
	sent     []sentMessage
	answered []string
	failSend bool
}

func (g *fakeGateway) SendMessage(_ context.Context, chatID int64, text string, kb *tgbotapi.InlineKeyboardMarkup) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSend {
		return errDeliveryFailed
	}
	g.sent = append(g.sent, sentMessage{ChatID: chatID, Text: text, Keyboard: kb})
	return nil
}

func (g *fakeGateway) AnswerCallback(_ context.Context, callbackID, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.answered = append(g.answered, callbackID)
	return nil
}

func (g *fakeGateway) SetWebhook(context.Context, string, string) error { return nil }

func (g *fakeGateway) last(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	require.NotEmpty(t, g.sent, "no message sent")
	return g.sent[len(g.sent)-1]
}

func (g *fakeGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.sent)
}

var errDeliveryFailed = &deliveryError{}

type deliveryError struct{}

func (*deliveryError) Error() string { return "telegram unreachable" }

type fakeProvider struct {
	gw *fakeGateway
}

func (p *fakeProvider) ForOrganization(org *models.Organization) (messaging.Gateway, error) {
	if !org.HasMessagingChannel() {
		return nil, models.ErrChannelUnavailable
	}
	return p.gw, nil
}

var otpPattern = regexp.MustCompile(`<b>(\d{6})</b>`)

func (g *fakeGateway) lastOTP(t *testing.T) string {
	t.Helper()
	m := otpPattern.FindStringSubmatch(g.last(t).Text)
	require.Len(t, m, 2, "no code in message")
	return m[1]
}

// ==============================================
// CLOCK AND THROTTLE
// ==============================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memoryThrottle struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (m *memoryThrottle) Allow(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen == nil {
		m.seen = map[string]bool{}
	}
	if m.seen[key] {
		return false, nil
	}
	m.seen[key] = true
	return true, nil
}

// ==============================================
// HARNESS
// ==============================================

const testChatID int64 = 4242

type harness struct {
	store        *fakeStore
	gw           *fakeGateway
	clock        *fakeClock
	org          *models.Organization
	emp          *models.Employee
	sessions     *SessionService
	registration *RegistrationService
	attendance   *AttendanceService
	completion   *CompletionService
	otp          *OTPService
	bot          *BotService
}

// newHarness starts the clock at 09:00 in Asia/Riyadh (06:00 UTC).
func newHarness(t *testing.T) *harness {
	t.Helper()
	store := newFakeStore()
	gw := &fakeGateway{}
	clock := &fakeClock{now: time.Date(2025, 3, 2, 6, 0, 0, 0, time.UTC)}
	log := logger.Discard()

	org := &models.Organization{ID: "org-1", Name: "Acme", Timezone: "Asia/Riyadh", BotToken: "tok", Language: "en"}
	chat := testChatID
	emp := &models.Employee{
		ID:             "emp-1",
		OrganizationID: org.ID,
		FullName:       "Sara Ali",
		Phone:          "+966500000001",
		ChatID:         &chat,
		WorkStartTime:  "09:00",
		IsFreelancer:   true,
		HourlyRate:     decimal.NewFromInt(100),
		IsActive:       true,
	}
	store.orgs[org.ID] = org
	store.employees[emp.ID] = emp

	tr, err := i18n.New("en")
	require.NoError(t, err)

	provider := &fakeProvider{gw: gw}
	notifier := NewNotifier(provider, tr, log)
	sessions := NewSessionService(store, store, clock.Now, log)
	attendance := NewAttendanceService(store, clock.Now, log)
	registration := NewRegistrationService(sessions, store, store, notifier, clock.Now, log)
	completion := NewCompletionService(sessions, store, store, attendance, notifier, NewTranslatedNextSteps(tr), clock.Now, log)
	otp := NewOTPService(sessions, store, store, completion, provider, notifier, &memoryThrottle{}, 0, clock.Now, log)
	bot := NewBotService(store, store, attendance, registration, provider, notifier, "https://hr.example.com", clock.Now, log)

	return &harness{
		store:        store,
		gw:           gw,
		clock:        clock,
		org:          org,
		emp:          emp,
		sessions:     sessions,
		registration: registration,
		attendance:   attendance,
		completion:   completion,
		otp:          otp,
		bot:          bot,
	}
}

func (h *harness) authSession(t *testing.T, kind models.RequestKind, level int) *models.VerificationSession {
	t.Helper()
	s, err := h.sessions.Initiate(context.Background(), h.org.ID, CreateSessionParams{
		Purpose:       models.PurposeAuthentication,
		EmployeeID:    h.emp.ID,
		RequestKind:   kind,
		RequiredLevel: level,
	})
	require.NoError(t, err)
	return s
}

func (h *harness) registerCredential(t *testing.T, cred string) {
	t.Helper()
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	h.store.employees[h.emp.ID].CredentialID = &cred
}
