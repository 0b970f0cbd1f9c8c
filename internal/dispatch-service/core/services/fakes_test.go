package services

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"sync"
	"testing"
	"time"

	messagebrokerdto "haul-dispatch/internal/dispatch-service/core/domain/message_broker_dto"
	"haul-dispatch/internal/dispatch-service/core/domain/model"
	"haul-dispatch/internal/dispatch-service/core/myerrors"
	"haul-dispatch/internal/dispatch-service/core/ports"
	"haul-dispatch/internal/mylogger"

	amqp "github.com/rabbitmq/amqp091-go"
)

// memJobs holds jobs in memory and honours the same conditional-write
// contract as the database repository.
type memJobs struct {
	mu   sync.Mutex
	rows map[string]model.Job
}

func newMemJobs() *memJobs {
	return &memJobs{rows: map[string]model.Job{}}
}

func (m *memJobs) Create(_ context.Context, job model.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job.PaymentReference != "" {
		for _, j := range m.rows {
			if j.PaymentReference == job.PaymentReference {
				return myerrors.ErrDuplicatePayment
			}
		}
	}
	m.rows[job.ID] = job
	return nil
}

func (m *memJobs) Get(_ context.Context, id string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[id]
	if !ok {
		return model.Job{}, myerrors.NotFound("job", id)
	}
	return j, nil
}

func (m *memJobs) GetByTrackingToken(_ context.Context, token string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.rows {
		if j.TrackingToken == token {
			return j, nil
		}
	}
	return model.Job{}, myerrors.NotFound("job", token)
}

func (m *memJobs) GetByPaymentReference(_ context.Context, ref string) (model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, j := range m.rows {
		if j.PaymentReference == ref {
			return j, nil
		}
	}
	return model.Job{}, myerrors.NotFound("payment", ref)
}

func (m *memJobs) Claim(_ context.Context, id, driverId string, at time.Time) (model.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[id]
	if !ok || j.Status != model.JobPending || j.AssignedDriverId != nil {
		return model.Job{}, false, nil
	}
	d := driverId
	j.AssignedDriverId = &d
	j.Status = model.JobAssigned
	j.UpdatedAt = at
	m.rows[id] = j
	return j, true, nil
}

func (m *memJobs) Transition(_ context.Context, t ports.JobTransition) (ports.TransitionResult, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.rows[t.JobID]
	if !ok || !slices.Contains(t.From, j.Status) {
		return ports.TransitionResult{}, false, nil
	}
	if t.Driver != nil && !j.AssignedTo(*t.Driver) {
		return ports.TransitionResult{}, false, nil
	}
	if t.Customer != nil && j.Customer.ID != *t.Customer {
		return ports.TransitionResult{}, false, nil
	}

	res := ports.TransitionResult{PreviousStatus: j.Status, PreviousDriver: j.AssignedDriverId}
	j.Status = t.To
	j.UpdatedAt = t.At
	if t.ClearDriver {
		j.AssignedDriverId = nil
	}
	if t.CompletedAt != nil {
		j.CompletedAt = t.CompletedAt
	}
	if t.CancelledAt != nil {
		j.CancelledAt = t.CancelledAt
		j.CancelReason = t.CancelReason
	}
	if t.PayoutPercent != nil {
		p := j.BilledTotal.Percent(*t.PayoutPercent)
		j.DriverPayout = &p
		j.PayoutVersion = t.PayoutVersion
	}
	m.rows[t.JobID] = j
	res.Job = j
	return res, true, nil
}

// ListAvailable follows the SQL: radius and ordering before the limit.
func (m *memJobs) ListAvailable(_ context.Context, q ports.AvailableQuery) ([]model.AvailableJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AvailableJob
	for _, j := range m.rows {
		if j.Status != model.JobPending || j.AssignedDriverId != nil || !slices.Contains(q.Capabilities, j.ServiceType) {
			continue
		}
		row := model.AvailableJob{Job: j}
		if q.Near != nil {
			km := roundKm(haversineKm(*q.Near, j.Pickup.Location))
			if q.RadiusKm > 0 && km > q.RadiusKm {
				continue
			}
			row.DistanceKm = &km
		}
		out = append(out, row)
	}
	slices.SortFunc(out, func(a, b model.AvailableJob) int {
		if a.DistanceKm != nil && b.DistanceKm != nil {
			if c := cmp.Compare(*a.DistanceKm, *b.DistanceKm); c != 0 {
				return c
			}
		}
		return b.Job.CreatedAt.Compare(a.Job.CreatedAt)
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *memJobs) ListActiveByDriver(_ context.Context, driverId string) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Job
	for _, j := range m.rows {
		if j.AssignedTo(driverId) && (j.Status == model.JobAssigned || j.Status == model.JobInProgress) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (m *memJobs) put(j model.Job) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[j.ID] = j
}

type memDrivers struct {
	mu   sync.Mutex
	rows map[string]model.Driver
}

func newMemDrivers(ds ...model.Driver) *memDrivers {
	m := &memDrivers{rows: map[string]model.Driver{}}
	for _, d := range ds {
		m.rows[d.ID] = d
	}
	return m
}

func (m *memDrivers) Create(_ context.Context, d model.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[d.ID]; ok {
		return myerrors.NewValidation("driver_id", "already registered")
	}
	m.rows[d.ID] = d
	return nil
}

func (m *memDrivers) Get(_ context.Context, id string) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return model.Driver{}, myerrors.NotFound("driver", id)
	}
	return d, nil
}

func (m *memDrivers) update(id string, fn func(*model.Driver)) (model.Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.rows[id]
	if !ok {
		return model.Driver{}, myerrors.NotFound("driver", id)
	}
	fn(&d)
	m.rows[id] = d
	return d, nil
}

func (m *memDrivers) SetApproval(_ context.Context, id string, s model.ApprovalStatus) (model.Driver, error) {
	return m.update(id, func(d *model.Driver) { d.ApprovalStatus = s })
}

func (m *memDrivers) SetOnline(_ context.Context, id string, online bool, loc *model.Location) (model.Driver, error) {
	return m.update(id, func(d *model.Driver) {
		d.IsOnline = online
		if loc != nil {
			d.Location = loc
		}
	})
}

func (m *memDrivers) UpdateLocation(_ context.Context, id string, loc model.Location) (model.Driver, error) {
	return m.update(id, func(d *model.Driver) { d.Location = &loc })
}

// memEvents keeps a per-channel sequence like the event_channels table.
type memEvents struct {
	mu      sync.Mutex
	byChan  map[string][]model.Event
	failing int
}

func newMemEvents() *memEvents {
	return &memEvents{byChan: map[string][]model.Event{}}
}

func (m *memEvents) Append(_ context.Context, channel, eventType string, payload json.RawMessage) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing > 0 {
		m.failing--
		return model.Event{}, myerrors.ErrDBConnect
	}
	ev := model.Event{
		ID:        int64(len(m.byChan[channel]) + 1),
		Channel:   channel,
		Type:      eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	m.byChan[channel] = append(m.byChan[channel], ev)
	return ev, nil
}

func (m *memEvents) Read(_ context.Context, channel string, since int64, limit int) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Event
	for _, ev := range m.byChan[channel] {
		if ev.ID > since {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memEvents) Prune(_ context.Context, olderThan time.Time) (int64, error) {
	return 0, nil
}

func (m *memEvents) types(channel string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.byChan[channel] {
		out = append(out, ev.Type)
	}
	return out
}

type memExtensions struct {
	mu   sync.Mutex
	rows map[string]model.TimeExtension
	jobs *memJobs
}

func (m *memExtensions) Create(_ context.Context, ext model.TimeExtension) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.rows {
		if e.JobID == ext.JobID && e.Status == model.ExtensionPending {
			return myerrors.ErrExtensionPending
		}
	}
	m.rows[ext.ID] = ext
	return nil
}

func (m *memExtensions) Get(_ context.Context, id string) (model.TimeExtension, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok {
		return model.TimeExtension{}, myerrors.NotFound("extension", id)
	}
	return e, nil
}

func (m *memExtensions) Resolve(ctx context.Context, id string, status model.ExtensionStatus, at time.Time) (model.TimeExtension, model.Job, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.rows[id]
	if !ok || e.Status != model.ExtensionPending {
		return model.TimeExtension{}, model.Job{}, false, nil
	}
	job, err := m.jobs.Get(ctx, e.JobID)
	if err != nil {
		return model.TimeExtension{}, model.Job{}, false, err
	}
	if status == model.ExtensionApproved {
		if job.Status != model.JobInProgress {
			return model.TimeExtension{}, model.Job{}, false, nil
		}
		job.BilledTotal += e.AdditionalCost
		m.jobs.put(job)
	}
	e.Status = status
	e.ResolvedAt = &at
	m.rows[id] = e
	return e, job, true, nil
}

// chanNotifier wakes subscribers of a channel on every Notify.
type chanNotifier struct {
	mu   sync.Mutex
	subs map[string][]chan struct{}
}

func (n *chanNotifier) Notify(_ context.Context, channel string, _ int64) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.subs[channel] {
		select {
		case c <- struct{}{}:
		default:
		}
	}
	return nil
}

func (n *chanNotifier) Subscribe(_ context.Context, channel string) (<-chan struct{}, func(), error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.subs == nil {
		n.subs = map[string][]chan struct{}{}
	}
	c := make(chan struct{}, 1)
	n.subs[channel] = append(n.subs[channel], c)
	return c, func() {}, nil
}

type recordingBroker struct {
	mu      sync.Mutex
	payouts []messagebrokerdto.PayoutFinalize
	events  []model.Event
}

func (b *recordingBroker) Close() error  { return nil }
func (b *recordingBroker) IsAlive() bool { return true }

func (b *recordingBroker) PublishEvent(_ context.Context, ev model.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
	return nil
}

func (b *recordingBroker) PublishPayout(_ context.Context, msg messagebrokerdto.PayoutFinalize) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.payouts = append(b.payouts, msg)
	return nil
}

func (b *recordingBroker) Consume(context.Context, string, string) (<-chan amqp.Delivery, error) {
	return nil, nil
}

// harness wires every service over the in-memory fakes.
type harness struct {
	jobs       *memJobs
	drivers    *memDrivers
	events     *memEvents
	extensions *memExtensions
	broker     *recordingBroker
	notifier   *chanNotifier

	feed      *FeedService
	jobSvc    *JobService
	matching  *MatchingService
	extSvc    *ExtensionService
	driverSvc *DriverService
	now       time.Time
}

func newHarness(t *testing.T, drivers ...model.Driver) *harness {
	t.Helper()
	log := mylogger.Discard()
	h := &harness{
		jobs:     newMemJobs(),
		drivers:  newMemDrivers(drivers...),
		events:   newMemEvents(),
		broker:   &recordingBroker{},
		notifier: &chanNotifier{},
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	h.extensions = &memExtensions{rows: map[string]model.TimeExtension{}, jobs: h.jobs}
	clock := func() time.Time { return h.now }

	h.feed = NewFeedService(log, h.events, h.jobs, h.notifier, h.broker, FeedOptions{
		PageSize:      200,
		RetryInterval: 10 * time.Millisecond,
		MaxWait:       200 * time.Millisecond,
	})
	claims := NewClaimCoordinator(log, h.jobs, h.drivers)
	claims.clock = clock
	h.jobSvc = NewJobService(log, h.jobs, h.drivers, claims, h.feed, h.broker, PayoutPolicy{Percent: 60, Version: "v1"})
	h.jobSvc.clock = clock
	h.matching = NewMatchingService(log, h.jobs, h.drivers, MatchingOptions{Limit: 50})
	h.extSvc = NewExtensionService(log, h.jobs, h.extensions, h.feed)
	h.extSvc.clock = clock
	h.driverSvc = NewDriverService(log, h.drivers, h.jobs, h.feed)
	h.driverSvc.clock = clock
	return h
}

func approvedDriver(id string, caps ...model.ServiceType) model.Driver {
	if len(caps) == 0 {
		caps = []model.ServiceType{model.HaulAway, model.LaborOnly}
	}
	return model.Driver{
		ID:             id,
		Name:           "Driver " + id,
		ApprovalStatus: model.DriverApproved,
		IsOnline:       true,
		Capabilities:   caps,
		Vehicle:        model.Vehicle{Make: "Ford", Model: "F-150", Plate: "HD-" + id},
	}
}
