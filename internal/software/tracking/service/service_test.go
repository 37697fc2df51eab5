package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"testing"
	"time"

	"bus-track/internal/domain/assignment"
	"bus-track/internal/domain/bus"
	"bus-track/internal/domain/geo"
	"bus-track/internal/general/config"
	"bus-track/internal/general/contracts"
	"bus-track/internal/general/logger"
	"bus-track/internal/general/rabbitmq"
	"bus-track/internal/ports"
)

// passTx runs the function directly; repo fakes below keep their own state.
type passTx struct{}

func (passTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// assignmentStub answers FindActive with a fixed result.
type assignmentStub struct {
	matches []assignment.Assignment
	err     error
}

func (s *assignmentStub) FindActive(_ context.Context, _, _ string, _ time.Time) ([]assignment.Assignment, error) {
	return s.matches, s.err
}

// busStore is an in-memory BusRepository. MarkStale and NearbyOnlineCandidates
// implement the same contracts as the SQL repo: demotion only fires while the
// observed last_update_at is still current, and near candidates leave ordered
// by distance before the limit cuts.
type busStore struct {
	mu      sync.Mutex
	records map[string]*bus.Bus

	candidates []bus.Bus
	nearLimit  int

	sampleWrites int
	toggleWrites int
}

func newBusStore() *busStore {
	return &busStore{records: make(map[string]*bus.Bus)}
}

func (s *busStore) UpsertToggle(_ context.Context, in ports.ToggleWrite) (*bus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.toggleWrites++

	b := &bus.Bus{
		BusID:        in.BusID,
		RouteID:      in.RouteID,
		DriverID:     in.DriverID,
		Online:       in.Online,
		LastUpdateAt: in.Now,
		Status:       bus.StatusInactive,
	}
	if in.Online {
		t := in.Now
		b.LastOnlineAt = &t
		b.Status = bus.StatusIdle
	}
	s.records[in.BusID] = b
	cp := *b
	return &cp, nil
}

func (s *busStore) UpsertSample(_ context.Context, in ports.SampleWrite) (*bus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sampleWrites++

	t := in.Now
	b := &bus.Bus{
		BusID:        in.BusID,
		RouteID:      in.RouteID,
		DriverID:     in.DriverID,
		Online:       true,
		Location:     &bus.Location{Lng: in.Lng, Lat: in.Lat},
		SpeedKmh:     in.SpeedKmh,
		HeadingDeg:   bus.NormalizeHeading(in.HeadingDeg),
		LastOnlineAt: &t,
		LastUpdateAt: in.Now,
		Status:       bus.DeriveStatus(in.SpeedKmh),
	}
	s.records[in.BusID] = b
	cp := *b
	return &cp, nil
}

func (s *busStore) MarkStale(_ context.Context, busID string, staleAt time.Time) (*bus.Bus, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.records[busID]
	if !ok {
		return nil, false, ports.ErrNotFound
	}
	if b.Online && b.LastUpdateAt.Equal(staleAt) {
		b.Online = false
		b.Status = bus.StatusInactive
		t := staleAt
		b.LastOnlineAt = &t
		cp := *b
		return &cp, true, nil
	}
	cp := *b
	return &cp, false, nil
}

func (s *busStore) Get(_ context.Context, busID string) (*bus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.records[busID]
	if !ok {
		return nil, ports.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *busStore) ListOnlineByRoute(context.Context, string) ([]bus.Bus, error) { return nil, nil }
func (s *busStore) ListOnline(context.Context) ([]bus.Bus, error)               { return nil, nil }
func (s *busStore) ListStaleCandidates(context.Context, time.Time) ([]bus.Bus, error) {
	return nil, nil
}
func (s *busStore) List(context.Context, ports.BusListFilter) ([]bus.Bus, error) { return nil, nil }

func (s *busStore) NearbyOnlineCandidates(_ context.Context, lng, lat, _ float64, limit int) ([]bus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nearLimit = limit

	dist := func(b *bus.Bus) float64 {
		if b.Location == nil {
			return math.Inf(1)
		}
		return geo.HaversineMeters(lng, lat, b.Location.Lng, b.Location.Lat)
	}

	out := append([]bus.Bus(nil), s.candidates...)
	sort.Slice(out, func(i, j int) bool {
		di, dj := dist(&out[i]), dist(&out[j])
		if di != dj {
			return di < dj
		}
		return out[i].BusID < out[j].BusID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ ports.BusRepository = (*busStore)(nil)

// recordingBus captures published change-stream events.
type recordingBus struct {
	mu        sync.Mutex
	published []contracts.BusChangedMessage
}

func (r *recordingBus) PublishJSON(_ context.Context, _, _ string, msg any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := msg.(contracts.BusChangedMessage); ok {
		r.published = append(r.published, m)
	}
	return nil
}

func (r *recordingBus) ConsumeInstanceQueue(context.Context, string, string, rabbitmq.Handler) error {
	return nil
}

func (r *recordingBus) events() []contracts.BusChangedMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]contracts.BusChangedMessage(nil), r.published...)
}

func newTestService(buses *busStore, asg *assignmentStub, pub *recordingBus) *trackingService {
	cfg := &config.Config{}
	cfg.Near.RadiusMaxM = 50000
	return &trackingService{
		logger:   logger.New("test"),
		cfg:      cfg,
		uow:      passTx{},
		buses:    buses,
		mq:       pub,
		hostname: "test",
		assignments: asg,
		throttle:    newThrottleRegistry(0, 0),
		etaState:    newETASpeedState(0.3),
	}
}

func activeShift(driverID, busID, routeID string, now time.Time) assignment.Assignment {
	return assignment.Assignment{
		ID:         "A1",
		DriverID:   driverID,
		BusID:      busID,
		RouteID:    routeID,
		ShiftStart: now.Add(-time.Hour),
		ShiftEnd:   now.Add(time.Hour),
		Status:     assignment.StatusActive,
		Active:     true,
	}
}

func TestMoveWithoutActiveAssignment(t *testing.T) {
	buses := newBusStore()
	pub := &recordingBus{}
	svc := newTestService(buses, &assignmentStub{}, pub)

	_, err := svc.Move(context.Background(), ports.MoveInput{
		DriverID: "drv-1", BusID: "B1", Lng: 13.4, Lat: 52.5, SpeedKmh: 20, HeadingDeg: 90,
	})
	if !errors.Is(err, assignment.ErrNoActiveAssignment) {
		t.Fatalf("err = %v, want ErrNoActiveAssignment", err)
	}
	if buses.sampleWrites != 0 {
		t.Fatalf("sample writes = %d, want 0", buses.sampleWrites)
	}
	if n := len(pub.events()); n != 0 {
		t.Fatalf("published events = %d, want 0", n)
	}
}

func TestToggleOnlinePublishesStatusChange(t *testing.T) {
	buses := newBusStore()
	pub := &recordingBus{}
	now := time.Now().UTC()
	svc := newTestService(buses, &assignmentStub{matches: []assignment.Assignment{
		activeShift("drv-1", "B1", "R1", now),
	}}, pub)

	res, err := svc.Toggle(context.Background(), ports.ToggleInput{DriverID: "drv-1", BusID: "B1", Online: true})
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if !res.Online || res.BusID != "B1" || res.RouteID != "R1" {
		t.Fatalf("result = %+v", res)
	}

	events := pub.events()
	if len(events) != 1 || events[0].Kind != contracts.ChangeKindStatus {
		t.Fatalf("events = %+v, want one %q change", events, contracts.ChangeKindStatus)
	}
}

// latDeg returns the latitude offset putting a point roughly meters north of
// the equator origin used by the near tests.
func latDeg(meters float64) float64 {
	return meters / 111194.9
}

func TestNearOrdersByDistanceWithIDTiebreak(t *testing.T) {
	buses := newBusStore()
	now := time.Now().UTC()
	loc := func(m float64) *bus.Location { return &bus.Location{Lng: 0, Lat: latDeg(m)} }
	buses.candidates = []bus.Bus{
		{BusID: "B-far", RouteID: "R1", Online: true, Location: loc(890), LastUpdateAt: now},
		{BusID: "B-tie-b", RouteID: "R1", Online: true, Location: loc(222), LastUpdateAt: now},
		{BusID: "B-tie-a", RouteID: "R1", Online: true, Location: loc(222), LastUpdateAt: now},
		{BusID: "B-out", RouteID: "R1", Online: true, Location: loc(2200), LastUpdateAt: now},
		{BusID: "B-noloc", RouteID: "R1", Online: true, LastUpdateAt: now},
	}
	svc := newTestService(buses, &assignmentStub{}, &recordingBus{})

	out, err := svc.Near(context.Background(), ports.NearInput{Lng: 0, Lat: 0, RadiusM: 1000})
	if err != nil {
		t.Fatalf("Near: %v", err)
	}

	wantIDs := []string{"B-tie-a", "B-tie-b", "B-far"}
	if len(out) != len(wantIDs) {
		t.Fatalf("got %d results, want %d: %+v", len(out), len(wantIDs), out)
	}
	for i, want := range wantIDs {
		if out[i].BusID != want {
			t.Fatalf("result[%d] = %s, want %s", i, out[i].BusID, want)
		}
	}
	for i := 1; i < len(out); i++ {
		if out[i].DistanceMeters < out[i-1].DistanceMeters {
			t.Fatalf("distances not ascending: %v then %v", out[i-1].DistanceMeters, out[i].DistanceMeters)
		}
	}
}

func TestNearKeepsNearestUnderCandidatePressure(t *testing.T) {
	buses := newBusStore()
	now := time.Now().UTC()

	// many in-radius buses whose ids all sort before "z-nearest"; an id-ordered
	// candidate cut would drop the closest bus entirely
	for i := 0; i < 219; i++ {
		buses.candidates = append(buses.candidates, bus.Bus{
			BusID:        fmt.Sprintf("bus-%03d", i),
			RouteID:      "R1",
			Online:       true,
			Location:     &bus.Location{Lng: 0, Lat: latDeg(445 + float64(i))},
			LastUpdateAt: now,
		})
	}
	buses.candidates = append(buses.candidates, bus.Bus{
		BusID:        "z-nearest",
		RouteID:      "R1",
		Online:       true,
		Location:     &bus.Location{Lng: 0, Lat: latDeg(1)},
		LastUpdateAt: now,
	})
	svc := newTestService(buses, &assignmentStub{}, &recordingBus{})

	out, err := svc.Near(context.Background(), ports.NearInput{Lng: 0, Lat: 0, RadiusM: 1000})
	if err != nil {
		t.Fatalf("Near: %v", err)
	}
	if buses.nearLimit != nearMaxResults*4 {
		t.Fatalf("candidate limit = %d, want %d", buses.nearLimit, nearMaxResults*4)
	}
	if len(out) != nearMaxResults {
		t.Fatalf("got %d results, want %d", len(out), nearMaxResults)
	}
	if out[0].BusID != "z-nearest" {
		t.Fatalf("first result = %s at %.0f m, want z-nearest", out[0].BusID, out[0].DistanceMeters)
	}
}

func TestNearRejectsBadRadius(t *testing.T) {
	svc := newTestService(newBusStore(), &assignmentStub{}, &recordingBus{})
	for _, r := range []float64{0, -5, 50001} {
		if _, err := svc.Near(context.Background(), ports.NearInput{RadiusM: r}); !errors.Is(err, geo.ErrBadRange) {
			t.Fatalf("radius %v: err = %v, want ErrBadRange", r, err)
		}
	}
}

func TestStaleDemotionSkipsFreshBus(t *testing.T) {
	buses := newBusStore()
	pub := &recordingBus{}
	svc := newTestService(buses, &assignmentStub{}, pub)

	scanned := time.Date(2026, 8, 24, 11, 0, 0, 0, time.UTC)
	fresh := scanned.Add(2 * time.Minute)
	buses.records["B1"] = &bus.Bus{BusID: "B1", RouteID: "R1", Online: true, LastUpdateAt: fresh, Status: bus.StatusMoving}

	// the candidate carries the pre-scan last_update_at; a sample landed since
	svc.demoteStale(context.Background(), &bus.Bus{BusID: "B1", Online: true, LastUpdateAt: scanned})

	if b := buses.records["B1"]; !b.Online {
		t.Fatal("bus demoted despite a fresher sample")
	}
	if n := len(pub.events()); n != 0 {
		t.Fatalf("published events = %d, want 0", n)
	}
}

func TestStaleDemotionIdempotent(t *testing.T) {
	buses := newBusStore()
	pub := &recordingBus{}
	svc := newTestService(buses, &assignmentStub{}, pub)

	seen := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	buses.records["B2"] = &bus.Bus{BusID: "B2", RouteID: "R1", Online: true, LastUpdateAt: seen, Status: bus.StatusStopped}
	candidate := &bus.Bus{BusID: "B2", Online: true, LastUpdateAt: seen}

	svc.demoteStale(context.Background(), candidate)
	svc.demoteStale(context.Background(), candidate)

	b := buses.records["B2"]
	if b.Online || b.Status != bus.StatusInactive {
		t.Fatalf("bus = %+v, want offline INACTIVE", b)
	}
	if b.LastOnlineAt == nil || !b.LastOnlineAt.Equal(seen) {
		t.Fatalf("last_online_at = %v, want pinned to %v", b.LastOnlineAt, seen)
	}

	events := pub.events()
	if len(events) != 1 {
		t.Fatalf("published events = %d, want exactly 1", len(events))
	}
	if events[0].Kind != contracts.ChangeKindStale || events[0].Reason != contracts.ReasonStaleTimeout {
		t.Fatalf("event = %+v, want stale/stale_timeout", events[0])
	}
}
