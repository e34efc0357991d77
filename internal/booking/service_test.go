package booking

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openvax/vaxbook/internal/domain"
	"github.com/openvax/vaxbook/internal/metrics"
)

// fakeLedger backs both repository interfaces in memory, serializing every
// mutation behind one mutex the way the database serializes them behind
// the slot row lock.
type fakeLedger struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	slots    map[uuid.UUID]*domain.TimeSlot
	bookings map[int64]*domain.Booking
	nextID   int64
}

func newFakeLedger(clock clockwork.Clock) *fakeLedger {
	return &fakeLedger{
		clock:    clock,
		slots:    make(map[uuid.UUID]*domain.TimeSlot),
		bookings: make(map[int64]*domain.Booking),
		nextID:   1,
	}
}

func (f *fakeLedger) addSlot(centerID uuid.UUID, date, tm string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	f.slots[id] = &domain.TimeSlot{ID: id, CenterID: centerID, Date: date, Time: tm, Active: true}
	return id
}

// slot returns a copy for assertions.
func (f *fakeLedger) slot(id uuid.UUID) domain.TimeSlot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.slots[id]
}

func (f *fakeLedger) TryHold(_ context.Context, slotID, userID uuid.UUID, ttl time.Duration) (time.Time, *domain.SlotRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok {
		return time.Time{}, nil, domain.ErrSlotNotFound
	}
	now := f.clock.Now().UTC()
	if !slot.Claimable(userID, now) {
		return time.Time{}, nil, domain.ErrSlotUnavailable
	}
	var displaced *domain.SlotRef
	for _, other := range f.slots {
		if other.ID != slotID && other.ReservedBy != nil && *other.ReservedBy == userID {
			other.TempReserved = false
			other.ReservedBy = nil
			other.ReservedUntil = nil
			displaced = &domain.SlotRef{CenterID: other.CenterID, Date: other.Date}
		}
	}
	deadline := now.Add(ttl)
	slot.TempReserved = true
	slot.ReservedBy = &userID
	slot.ReservedUntil = &deadline
	return deadline, displaced, nil
}

func (f *fakeLedger) Release(_ context.Context, slotID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok || slot.ReservedBy == nil || *slot.ReservedBy != userID {
		return domain.ErrNotHeldByYou
	}
	slot.TempReserved = false
	slot.ReservedBy = nil
	slot.ReservedUntil = nil
	return nil
}

func (f *fakeLedger) Query(_ context.Context, centerID uuid.UUID, date string, userID uuid.UUID) ([]domain.SlotView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.clock.Now().UTC()
	var views []domain.SlotView
	for _, s := range f.slots {
		if s.CenterID != centerID || s.Date != date || !s.Claimable(userID, now) {
			continue
		}
		held := s.TempReserved && s.ReservedBy != nil && *s.ReservedBy == userID &&
			s.ReservedUntil != nil && s.ReservedUntil.After(now)
		views = append(views, domain.SlotView{ID: s.ID, Time: s.Time, IsHeldByMe: held})
	}
	return views, nil
}

func (f *fakeLedger) GetByID(_ context.Context, slotID uuid.UUID) (*domain.TimeSlot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[slotID]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (f *fakeLedger) Create(_ context.Context, req domain.CreateBookingRequest, code string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	slot, ok := f.slots[req.SlotID]
	if !ok {
		return nil, domain.ErrSlotNotFound
	}
	now := f.clock.Now().UTC()
	if !slot.Claimable(req.UserID, now) {
		return nil, domain.ErrSlotUnavailable
	}
	slot.Booked = true
	slot.BookedBy = &req.UserID
	slot.TempReserved = false
	slot.ReservedBy = nil
	slot.ReservedUntil = nil

	b := &domain.Booking{
		ID:            f.nextID,
		Code:          code,
		UserID:        req.UserID,
		PatientName:   req.PatientName,
		GuardianName:  req.GuardianName,
		VaccineName:   req.VaccineName,
		DoseNumber:    req.DoseNumber,
		CenterID:      slot.CenterID,
		SlotID:        slot.ID,
		SlotDate:      slot.Date,
		SlotTime:      slot.Time,
		Status:        domain.BookingPending,
		PaymentStatus: domain.PaymentUnpaid,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	f.nextID++
	f.bookings[b.ID] = b
	return copyBooking(b), nil
}

func copyBooking(b *domain.Booking) *domain.Booking {
	cp := *b
	return &cp
}

func (f *fakeLedger) GetByID2(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	return copyBooking(b), nil
}

func (f *fakeLedger) GetByCode(_ context.Context, code string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.Code == code {
			return copyBooking(b), nil
		}
	}
	return nil, domain.ErrBookingNotFound
}

func (f *fakeLedger) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Booking
	for _, b := range f.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeLedger) CheckIn(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	b.Status = domain.BookingConfirmed
	return copyBooking(b), nil
}

func (f *fakeLedger) Complete(_ context.Context, id int64, batchNumber string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	b.Status = domain.BookingCompleted
	b.PaymentStatus = domain.PaymentPaid
	b.BatchNumber = batchNumber
	return copyBooking(b), nil
}

func (f *fakeLedger) MarkNoShow(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	b.Status = domain.BookingNoShow
	f.freeSlotLocked(b.SlotID)
	return copyBooking(b), nil
}

func (f *fakeLedger) Cancel(_ context.Context, id int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[id]
	if !ok {
		return nil, domain.ErrBookingNotFound
	}
	if b.Status.Terminal() {
		return nil, domain.ErrAlreadyTerminal
	}
	b.Status = domain.BookingCancelled
	b.PaymentStatus = domain.PaymentRefunded
	f.freeSlotLocked(b.SlotID)
	return copyBooking(b), nil
}

func (f *fakeLedger) freeSlotLocked(slotID uuid.UUID) {
	if slot, ok := f.slots[slotID]; ok {
		slot.Booked = false
		slot.BookedBy = nil
		slot.TempReserved = false
		slot.ReservedBy = nil
		slot.ReservedUntil = nil
	}
}

// ledgerBookings adapts the combined fake to domain.BookingRepository,
// resolving the GetByID name clash with the slot side.
type ledgerBookings struct{ *fakeLedger }

func (l ledgerBookings) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	return l.fakeLedger.GetByID2(ctx, id)
}

// fakeNotifications stores rows in memory.
type fakeNotifications struct {
	mu   sync.Mutex
	rows []domain.Notification
}

func (f *fakeNotifications) Create(_ context.Context, n domain.Notification) (*domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n.ID = uuid.New()
	f.rows = append(f.rows, n)
	return &n, nil
}

func (f *fakeNotifications) ListByUser(_ context.Context, userID uuid.UUID, _ int) ([]domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Notification
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeNotifications) MarkRead(_ context.Context, id, userID uuid.UUID) error { return nil }

func (f *fakeNotifications) titles(userID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, n := range f.rows {
		if n.UserID == userID {
			out = append(out, n.Title)
		}
	}
	return out
}

// recordingNotifier captures every fan-out call.
type recordingNotifier struct {
	mu          sync.Mutex
	userFrames  map[uuid.UUID][]domain.Frame
	staffFrames map[uuid.UUID][]domain.Frame
	slotUpdates []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		userFrames:  make(map[uuid.UUID][]domain.Frame),
		staffFrames: make(map[uuid.UUID][]domain.Frame),
	}
}

func (r *recordingNotifier) Notify(userID uuid.UUID, frame domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.userFrames[userID] = append(r.userFrames[userID], frame)
}

func (r *recordingNotifier) BroadcastToStaff(centerID uuid.UUID, frame domain.Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staffFrames[centerID] = append(r.staffFrames[centerID], frame)
}

func (r *recordingNotifier) BroadcastSlotUpdate(centerID uuid.UUID, date string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.slotUpdates = append(r.slotUpdates, centerID.String()+"/"+date)
}

func (r *recordingNotifier) Kick(uuid.UUID) {}

func (r *recordingNotifier) userFrameTypes(userID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, f := range r.userFrames[userID] {
		out = append(out, f.Type)
	}
	return out
}

func (r *recordingNotifier) staffFrameTypes(centerID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, f := range r.staffFrames[centerID] {
		out = append(out, f.Type)
	}
	return out
}

type recordingEvents struct {
	mu   sync.Mutex
	keys []string
}

func (r *recordingEvents) Publish(_ context.Context, routingKey string, _ any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys = append(r.keys, routingKey)
	return nil
}

func (r *recordingEvents) published() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.keys...)
}

type serviceFixture struct {
	svc       *Service
	ledger    *fakeLedger
	notifs    *fakeNotifications
	notifier  *recordingNotifier
	events    *recordingEvents
	clock     clockwork.FakeClock
	centerID  uuid.UUID
	slotID    uuid.UUID
	patientID uuid.UUID
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ledger := newFakeLedger(clock)
	notifs := &fakeNotifications{}
	notifier := newRecordingNotifier()
	events := &recordingEvents{}

	centerID := uuid.New()
	// The slot sits two days out, comfortably beyond the 24h window.
	slotID := ledger.addSlot(centerID, "2026-03-12", "10:00")

	svc := NewService(ledgerBookings{ledger}, ledger, notifs, notifier, events, clock,
		10*time.Minute, 24*time.Hour)

	return &serviceFixture{
		svc:       svc,
		ledger:    ledger,
		notifs:    notifs,
		notifier:  notifier,
		events:    events,
		clock:     clock,
		centerID:  centerID,
		slotID:    slotID,
		patientID: uuid.New(),
	}
}

func (fx *serviceFixture) createRequest() domain.CreateBookingRequest {
	return domain.CreateBookingRequest{
		UserID:      fx.patientID,
		SlotID:      fx.slotID,
		PatientName: "Linh Tran",
		VaccineName: "MMR",
		DoseNumber:  1,
	}
}

func TestService_CreateBooksAndFansOut(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(booking.Code, codePrefix))
	assert.Len(t, booking.Code, len(codePrefix)+codeLength)
	assert.Equal(t, domain.BookingPending, booking.Status)
	assert.Equal(t, "2026-03-12", booking.SlotDate)

	// Durable notification row plus a live frame carrying it.
	assert.Equal(t, []string{"Booking created"}, fx.notifs.titles(fx.patientID))
	assert.Equal(t, []string{domain.FrameNewNotification}, fx.notifier.userFrameTypes(fx.patientID))
	assert.Equal(t, []string{domain.FrameBookingCreated}, fx.notifier.staffFrameTypes(fx.centerID))
	assert.Equal(t, []string{fx.centerID.String() + "/2026-03-12"}, fx.notifier.slotUpdates)
	assert.Equal(t, []string{"booking.created"}, fx.events.published())
}

func TestService_CreateUniqueCodes(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	seen := make(map[string]bool)
	for range 50 {
		slotID := fx.ledger.addSlot(fx.centerID, "2026-03-12", "11:00")
		req := fx.createRequest()
		req.SlotID = slotID
		req.UserID = uuid.New()
		b, err := fx.svc.Create(ctx, req)
		require.NoError(t, err)
		assert.False(t, seen[b.Code], "duplicate code %s", b.Code)
		seen[b.Code] = true
	}
}

func TestService_CreateRespectsForeignHold(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	rival := uuid.New()

	_, err := fx.svc.Hold(ctx, fx.slotID, rival)
	require.NoError(t, err)

	_, err = fx.svc.Create(ctx, fx.createRequest())
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// Once the hold lapses, the slot is claimable again without anyone
	// releasing it.
	fx.clock.Advance(11 * time.Minute)
	_, err = fx.svc.Create(ctx, fx.createRequest())
	assert.NoError(t, err)
}

func TestService_HolderConvertsOwnHold(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Hold(ctx, fx.slotID, fx.patientID)
	require.NoError(t, err)

	// A rival cannot book past the active hold.
	rivalReq := fx.createRequest()
	rivalReq.UserID = uuid.New()
	_, err = fx.svc.Create(ctx, rivalReq)
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// The holder converts the hold into a pending booking.
	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)
	assert.Equal(t, domain.BookingPending, booking.Status)

	slot := fx.ledger.slot(fx.slotID)
	assert.True(t, slot.Booked)
	assert.False(t, slot.TempReserved)
}

func TestService_HoldSignalsDisplacedSlot(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	nextDay := fx.ledger.addSlot(fx.centerID, "2026-03-13", "09:00")

	_, err := fx.svc.Hold(ctx, fx.slotID, fx.patientID)
	require.NoError(t, err)

	// Switching days drops the first hold, so viewers of both days must
	// hear that availability changed.
	_, err = fx.svc.Hold(ctx, nextDay, fx.patientID)
	require.NoError(t, err)

	want := []string{
		fx.centerID.String() + "/2026-03-12",
		fx.centerID.String() + "/2026-03-13",
		fx.centerID.String() + "/2026-03-12",
	}
	assert.Equal(t, want, fx.notifier.slotUpdates)
}

func TestService_HoldIsExclusiveAndSingle(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()
	second := fx.ledger.addSlot(fx.centerID, "2026-03-12", "10:30")

	deadline, err := fx.svc.Hold(ctx, fx.slotID, fx.patientID)
	require.NoError(t, err)
	assert.Equal(t, fx.clock.Now().UTC().Add(10*time.Minute), deadline)

	// A rival cannot take the held slot.
	_, err = fx.svc.Hold(ctx, fx.slotID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	// Holding a second slot silently drops the first.
	_, err = fx.svc.Hold(ctx, second, fx.patientID)
	require.NoError(t, err)
	_, err = fx.svc.Hold(ctx, fx.slotID, uuid.New())
	assert.NoError(t, err)
}

func TestService_ReleaseRequiresOwnership(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	_, err := fx.svc.Hold(ctx, fx.slotID, fx.patientID)
	require.NoError(t, err)

	err = fx.svc.Release(ctx, fx.slotID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotHeldByYou)

	// The released count belongs to the repository; the service must not
	// add a second increment on top.
	before := testutil.ToFloat64(metrics.SlotHolds.WithLabelValues("released"))
	require.NoError(t, fx.svc.Release(ctx, fx.slotID, fx.patientID))
	assert.Equal(t, before, testutil.ToFloat64(metrics.SlotHolds.WithLabelValues("released")))

	// Released means claimable by anyone.
	_, err = fx.svc.Hold(ctx, fx.slotID, uuid.New())
	assert.NoError(t, err)
}

func TestService_ConcurrentCreateSingleWinner(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	const rivals = 8
	results := make(chan error, rivals)
	var wg sync.WaitGroup
	for i := 0; i < rivals; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := fx.createRequest()
			req.UserID = uuid.New()
			_, err := fx.svc.Create(ctx, req)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, losses int
	for err := range results {
		switch {
		case err == nil:
			wins++
		default:
			assert.ErrorIs(t, err, domain.ErrSlotUnavailable)
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, rivals-1, losses)
}

func TestService_CheckInFlow(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	confirmed, err := fx.svc.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, confirmed.Status)

	// Idempotent re-confirm.
	again, err := fx.svc.CheckIn(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, again.Status)

	assert.Contains(t, fx.notifier.userFrameTypes(fx.patientID), domain.FrameCheckedIn)
	assert.Contains(t, fx.events.published(), "booking.checked_in")
}

func TestService_CompleteRecordsBatchAndPayment(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	done, err := fx.svc.Complete(ctx, booking.ID, "BATCH-2026-001")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, done.Status)
	assert.Equal(t, domain.PaymentPaid, done.PaymentStatus)
	assert.Equal(t, "BATCH-2026-001", done.BatchNumber)

	// Terminal afterwards.
	_, err = fx.svc.CheckIn(ctx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)
	_, err = fx.svc.MarkNoShow(ctx, booking.ID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	assert.Contains(t, fx.notifier.userFrameTypes(fx.patientID), domain.FrameInjectionCompleted)
	assert.Contains(t, fx.events.published(), "booking.completed")
}

func TestService_NoShowFreesSlot(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	missed, err := fx.svc.MarkNoShow(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingNoShow, missed.Status)

	// The slot is bookable again by someone else.
	req := fx.createRequest()
	req.UserID = uuid.New()
	_, err = fx.svc.Create(ctx, req)
	assert.NoError(t, err)

	assert.Contains(t, fx.notifier.userFrameTypes(fx.patientID), domain.FrameMarkedNoShow)
	assert.Contains(t, fx.events.published(), "booking.no_show")
}

func TestService_CancelOwnershipAndWindow(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	// Only the owner may cancel.
	_, err = fx.svc.Cancel(ctx, booking.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotBookingOwner)

	// Exactly 24h before the start already counts as closed; the window
	// requires strictly more. Slot starts 2026-03-12 10:00.
	fx.clock.Advance(25 * time.Hour)
	_, err = fx.svc.Cancel(ctx, booking.ID, fx.patientID)
	assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)

	// And well inside the window.
	fx.clock.Advance(13 * time.Hour)
	_, err = fx.svc.Cancel(ctx, booking.ID, fx.patientID)
	assert.ErrorIs(t, err, domain.ErrCancellationWindowClosed)
}

func TestService_CancelRefundsAndFrees(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	cancelled, err := fx.svc.Cancel(ctx, booking.ID, fx.patientID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, cancelled.Status)
	assert.Equal(t, domain.PaymentRefunded, cancelled.PaymentStatus)

	// Cancelling again hits the terminal guard.
	_, err = fx.svc.Cancel(ctx, booking.ID, fx.patientID)
	assert.ErrorIs(t, err, domain.ErrAlreadyTerminal)

	// Slot returned to the pool.
	req := fx.createRequest()
	req.UserID = uuid.New()
	_, err = fx.svc.Create(ctx, req)
	assert.NoError(t, err)

	assert.Contains(t, fx.events.published(), "booking.cancelled")
}

func TestService_ListForUser(t *testing.T) {
	fx := newServiceFixture(t)
	ctx := context.Background()

	booking, err := fx.svc.Create(ctx, fx.createRequest())
	require.NoError(t, err)

	list, err := fx.svc.ListForUser(ctx, fx.patientID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, booking.ID, list[0].ID)

	byCode, err := fx.svc.GetByCode(ctx, booking.Code)
	require.NoError(t, err)
	assert.Equal(t, booking.ID, byCode.ID)

	other, err := fx.svc.ListForUser(ctx, uuid.New())
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestService_WorksWithoutOptionalDependencies(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC))
	ledger := newFakeLedger(clock)
	centerID := uuid.New()
	slotID := ledger.addSlot(centerID, "2026-03-12", "10:00")

	svc := NewService(ledgerBookings{ledger}, ledger, nil, nil, nil, clock,
		10*time.Minute, 24*time.Hour)

	booking, err := svc.Create(context.Background(), domain.CreateBookingRequest{
		UserID:      uuid.New(),
		SlotID:      slotID,
		PatientName: "Linh Tran",
		VaccineName: "MMR",
		DoseNumber:  1,
	})
	require.NoError(t, err)
	_, err = svc.CheckIn(context.Background(), booking.ID)
	assert.NoError(t, err)
}
