package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"fieldservice_backend/internal/dayplans/repository"
	"fieldservice_backend/internal/dayplans/transport"
	"fieldservice_backend/internal/events"
	"fieldservice_backend/internal/jobs"
	"fieldservice_backend/internal/routing"
	"fieldservice_backend/platform/apperr"
	"fieldservice_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeRepo is an in-memory PlanRepository with the same cap semantics as
// the SQL implementation. The mutex serializes capped inserts the way the
// FOR UPDATE row lock does, and keeps the fake safe for concurrent callers.
type fakeRepo struct {
	mu     sync.Mutex
	plans  map[uuid.UUID]*repository.DayPlan
	events map[uuid.UUID][]repository.ScheduleEvent
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		plans:  make(map[uuid.UUID]*repository.DayPlan),
		events: make(map[uuid.UUID][]repository.ScheduleEvent),
	}
}

func (f *fakeRepo) Create(_ context.Context, plan *repository.DayPlan, planEvents []repository.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	copied := *plan
	f.plans[plan.ID] = &copied
	f.events[plan.ID] = append([]repository.ScheduleEvent{}, planEvents...)
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID, _ uuid.UUID) (*repository.DayPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	plan, ok := f.plans[id]
	if !ok {
		return nil, apperr.NotFound("day plan not found")
	}
	copied := *plan
	return &copied, nil
}

func (f *fakeRepo) ListByDate(_ context.Context, _ uuid.UUID, date time.Time, technicianID *uuid.UUID) ([]repository.DayPlan, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	result := make([]repository.DayPlan, 0)
	for _, plan := range f.plans {
		if !plan.PlanDate.Equal(date) {
			continue
		}
		if technicianID != nil && plan.TechnicianID != *technicianID {
			continue
		}
		result = append(result, *plan)
	}
	return result, nil
}

func (f *fakeRepo) ListEvents(_ context.Context, dayPlanID uuid.UUID, _ uuid.UUID) ([]repository.ScheduleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	evts := append([]repository.ScheduleEvent{}, f.events[dayPlanID]...)
	for i := 0; i < len(evts); i++ {
		for j := i + 1; j < len(evts); j++ {
			if evts[j].SequenceOrder < evts[i].SequenceOrder {
				evts[i], evts[j] = evts[j], evts[i]
			}
		}
	}
	return evts, nil
}

func (f *fakeRepo) GetEvent(_ context.Context, dayPlanID, eventID uuid.UUID, _ uuid.UUID) (*repository.ScheduleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, event := range f.events[dayPlanID] {
		if event.ID == eventID {
			copied := event
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("schedule event not found")
}

func (f *fakeRepo) AddJobEventCapped(_ context.Context, event *repository.ScheduleEvent, maxJobs int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.plans[event.DayPlanID]; !ok {
		return apperr.NotFound("day plan not found")
	}
	active := 0
	for _, existing := range f.events[event.DayPlanID] {
		if existing.EventType == "job" && existing.Status != "cancelled" {
			active++
		}
	}
	if active >= maxJobs {
		return apperr.CapacityExceeded(fmt.Sprintf("maximum of %d jobs per technician per day", maxJobs))
	}
	f.events[event.DayPlanID] = append(f.events[event.DayPlanID], *event)
	return nil
}

func (f *fakeRepo) AddEvent(_ context.Context, event *repository.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events[event.DayPlanID] = append(f.events[event.DayPlanID], *event)
	return nil
}

func (f *fakeRepo) UpdateStatus(_ context.Context, id uuid.UUID, _ uuid.UUID, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	plan, ok := f.plans[id]
	if !ok {
		return apperr.NotFound("day plan not found")
	}
	plan.Status = status
	return nil
}

func (f *fakeRepo) UpdateRouteData(_ context.Context, id uuid.UUID, _ uuid.UUID, routeData []byte, miles float64, minutes int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	plan, ok := f.plans[id]
	if !ok {
		return apperr.NotFound("day plan not found")
	}
	plan.RouteData = routeData
	plan.TotalDistanceMiles = &miles
	plan.EstimatedDurationMinutes = &minutes
	return nil
}

func (f *fakeRepo) ApplySequences(_ context.Context, dayPlanID uuid.UUID, _ uuid.UUID, updates []repository.SequenceUpdate, newEvents []repository.ScheduleEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Pending breaks from earlier runs are discarded, matching the SQL delete.
	evts := make([]repository.ScheduleEvent, 0, len(f.events[dayPlanID]))
	for _, event := range f.events[dayPlanID] {
		if event.EventType == "break" && event.Status == "pending" {
			continue
		}
		evts = append(evts, event)
	}
	for _, update := range updates {
		found := false
		for i := range evts {
			if evts[i].ID == update.EventID {
				evts[i].SequenceOrder = update.SequenceOrder
				found = true
			}
		}
		if !found {
			return apperr.NotFound("schedule event not found")
		}
	}
	f.events[dayPlanID] = append(evts, newEvents...)
	return nil
}

func (f *fakeRepo) CompleteEvent(_ context.Context, dayPlanID, eventID uuid.UUID, _ uuid.UUID) (*repository.ScheduleEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	evts := f.events[dayPlanID]
	for i := range evts {
		if evts[i].ID == eventID && evts[i].Status == "pending" {
			evts[i].Status = "completed"
			copied := evts[i]
			return &copied, nil
		}
	}
	return nil, apperr.NotFound("pending schedule event not found")
}

// fakeJobs serves geocoded jobs around Philadelphia.
type fakeJobs struct {
	jobs map[uuid.UUID]jobs.Job
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{jobs: make(map[uuid.UUID]jobs.Job)}
}

func (f *fakeJobs) add(lat, lng float64, durationMin int) uuid.UUID {
	id := uuid.New()
	f.jobs[id] = jobs.Job{
		ID:          id,
		Address:     "123 Test St",
		Latitude:    &lat,
		Longitude:   &lng,
		DurationMin: durationMin,
	}
	return id
}

func (f *fakeJobs) GetByID(_ context.Context, id uuid.UUID, _ uuid.UUID) (*jobs.Job, error) {
	job, ok := f.jobs[id]
	if !ok {
		return nil, apperr.NotFound("job not found")
	}
	return &job, nil
}

func (f *fakeJobs) GetLocations(_ context.Context, ids []uuid.UUID, _ uuid.UUID) (map[uuid.UUID]jobs.Location, error) {
	result := make(map[uuid.UUID]jobs.Location)
	for _, id := range ids {
		job, ok := f.jobs[id]
		if !ok || job.Latitude == nil {
			continue
		}
		result[id] = jobs.Location{JobID: id, Address: job.Address, Latitude: *job.Latitude, Longitude: *job.Longitude}
	}
	return result, nil
}

// offlineOptimizer forces the heuristic path.
type offlineOptimizer struct{}

func (offlineOptimizer) Enabled() bool            { return false }
func (offlineOptimizer) AverageSpeedMph() float64 { return 30 }
func (offlineOptimizer) Optimize(context.Context, routing.Request) (*routing.Result, error) {
	return nil, apperr.RouteOptimization("should not be called", nil)
}

// recordingBus captures published events synchronously.
type recordingBus struct {
	published []events.Event
}

func (b *recordingBus) Publish(_ context.Context, event events.Event) {
	b.published = append(b.published, event)
}

func (b *recordingBus) PublishSync(_ context.Context, event events.Event) error {
	b.published = append(b.published, event)
	return nil
}

func (b *recordingBus) Subscribe(string, events.Handler) {}

type recordingReoptimizer struct {
	calls int
}

func (r *recordingReoptimizer) EnqueueReoptimize(context.Context, uuid.UUID, uuid.UUID) error {
	r.calls++
	return nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo, *fakeJobs, *recordingBus) {
	t.Helper()
	repo := newFakeRepo()
	jobStore := newFakeJobs()
	bus := &recordingBus{}
	svc := New(repo, jobStore, offlineOptimizer{}, bus, logger.New("development"))
	return svc, repo, jobStore, bus
}

func TestCreateRejectsTooManyInitialStops(t *testing.T) {
	svc, _, jobStore, _ := newTestService(t)

	stops := make([]transport.InitialStop, 0, 7)
	for i := 0; i < 7; i++ {
		stops = append(stops, transport.InitialStop{JobID: jobStore.add(40.0, -75.0, 60)})
	}

	_, err := svc.Create(context.Background(), uuid.New(), uuid.New(), transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: stops,
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error for 7 initial stops, got %v", err)
	}
}

func TestJobCapAcrossCreateAndAddEvent(t *testing.T) {
	svc, _, jobStore, _ := newTestService(t)
	tenantID := uuid.New()

	stops := make([]transport.InitialStop, 0, 3)
	for i := 0; i < 3; i++ {
		stops = append(stops, transport.InitialStop{JobID: jobStore.add(40.0+float64(i)*0.01, -75.0, 60)})
	}

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: stops,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Three more job events fill the plan to the cap of six.
	for i := 0; i < 3; i++ {
		jobID := jobStore.add(40.1+float64(i)*0.01, -75.1, 45)
		if _, err := svc.AddEvent(context.Background(), plan.ID, tenantID, transport.AddEventRequest{
			JobID:     &jobID,
			EventType: transport.EventTypeJob,
		}); err != nil {
			t.Fatalf("AddEvent %d returned error: %v", i+4, err)
		}
	}

	seventh := jobStore.add(40.2, -75.2, 45)
	_, err = svc.AddEvent(context.Background(), plan.ID, tenantID, transport.AddEventRequest{
		JobID:     &seventh,
		EventType: transport.EventTypeJob,
	})
	if !apperr.Is(err, apperr.KindCapacityExceeded) {
		t.Fatalf("expected capacity error on 7th job, got %v", err)
	}

	// Breaks are not subject to the cap.
	if _, err := svc.AddEvent(context.Background(), plan.ID, tenantID, transport.AddEventRequest{
		EventType:   transport.EventTypeBreak,
		DurationMin: 30,
	}); err != nil {
		t.Fatalf("break event should bypass the job cap, got %v", err)
	}
}

func TestUpdateStatusForwardOnly(t *testing.T) {
	svc, _, _, bus := newTestService(t)
	tenantID := uuid.New()

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	// Skipping published is not allowed.
	_, err = svc.UpdateStatus(context.Background(), plan.ID, tenantID, uuid.New(), transport.UpdateStatusRequest{
		Status: transport.StatusInProgress,
	})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition for draft -> in_progress, got %v", err)
	}

	for _, status := range []transport.DayPlanStatus{
		transport.StatusPublished, transport.StatusInProgress, transport.StatusCompleted,
	} {
		resp, err := svc.UpdateStatus(context.Background(), plan.ID, tenantID, uuid.New(), transport.UpdateStatusRequest{Status: status})
		if err != nil {
			t.Fatalf("transition to %s returned error: %v", status, err)
		}
		if resp.Status != status {
			t.Fatalf("expected status %s, got %s", status, resp.Status)
		}
	}

	// Completed is terminal.
	_, err = svc.UpdateStatus(context.Background(), plan.ID, tenantID, uuid.New(), transport.UpdateStatusRequest{
		Status: transport.StatusDraft,
	})
	if !apperr.Is(err, apperr.KindInvalidTransition) {
		t.Fatalf("expected invalid transition from completed, got %v", err)
	}

	statusEvents := 0
	for _, published := range bus.published {
		if published.EventName() == "dayplans.status.changed" {
			statusEvents++
		}
	}
	if statusEvents != 3 {
		t.Fatalf("expected 3 status change events, got %d", statusEvents)
	}
}

func TestOptimizeRouteKeepsCompletedStopsFixed(t *testing.T) {
	svc, repo, jobStore, bus := newTestService(t)
	tenantID := uuid.New()

	stops := []transport.InitialStop{
		{JobID: jobStore.add(40.00, -75.00, 60)},
		{JobID: jobStore.add(40.30, -75.00, 60)},
		{JobID: jobStore.add(40.10, -75.00, 60)},
	}

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: stops,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	firstEventID := plan.Events[0].ID
	if _, err := svc.CompleteEvent(context.Background(), plan.ID, firstEventID, tenantID); err != nil {
		t.Fatalf("CompleteEvent returned error: %v", err)
	}

	resp, err := svc.OptimizeRoute(context.Background(), plan.ID, tenantID, transport.OptimizeRouteRequest{
		Trigger:         transport.TriggerJobCompleted,
		CurrentLocation: &transport.GeoPoint{Latitude: 40.00, Longitude: -75.00},
	})
	if err != nil {
		t.Fatalf("OptimizeRoute returned error: %v", err)
	}

	completed, _ := repo.GetEvent(context.Background(), plan.ID, firstEventID, tenantID)
	if completed.SequenceOrder != 1 {
		t.Fatalf("completed stop moved: sequence %d", completed.SequenceOrder)
	}

	if resp.RouteData == nil {
		t.Fatal("expected route data on response")
	}
	if resp.RouteData.OptimizationMethod != routing.MethodOffline {
		t.Fatalf("expected offline method, got %q", resp.RouteData.OptimizationMethod)
	}
	if resp.RouteData.ReOptimizedAt == nil || resp.RouteData.Trigger != transport.TriggerJobCompleted {
		t.Fatal("expected reOptimizedAt and trigger recorded for job_completed run")
	}
	// Only the two pending stops are in the optimized route.
	if len(resp.RouteData.Stops) != 2 {
		t.Fatalf("expected 2 optimized stops, got %d", len(resp.RouteData.Stops))
	}

	// The nearer pending stop (40.10) comes before the farther (40.30)
	// when anchored at 40.00.
	planEvents, _ := repo.ListEvents(context.Background(), plan.ID, tenantID)
	var seq2, seq3 *repository.ScheduleEvent
	for i := range planEvents {
		switch planEvents[i].SequenceOrder {
		case 2:
			seq2 = &planEvents[i]
		case 3:
			seq3 = &planEvents[i]
		}
	}
	if seq2 == nil || seq3 == nil {
		t.Fatal("expected resequenced pending events at positions 2 and 3")
	}
	if *seq2.LocationLat != 40.10 || *seq3.LocationLat != 40.30 {
		t.Fatalf("expected nearest-first ordering, got %.2f then %.2f", *seq2.LocationLat, *seq3.LocationLat)
	}

	optimized := false
	for _, published := range bus.published {
		if published.EventName() == "dayplans.route.optimized" {
			optimized = true
		}
	}
	if !optimized {
		t.Fatal("expected RouteOptimized event")
	}
}

func TestOptimizeRouteInsertsBreakAfterFourHours(t *testing.T) {
	svc, repo, jobStore, _ := newTestService(t)
	tenantID := uuid.New()

	// Three 150-minute jobs: cumulative work passes 240 minutes after the
	// second stop, so one break lands between stops two and three.
	stops := []transport.InitialStop{
		{JobID: jobStore.add(40.00, -75.00, 150), DurationMin: 150},
		{JobID: jobStore.add(40.05, -75.00, 150), DurationMin: 150},
		{JobID: jobStore.add(40.10, -75.00, 150), DurationMin: 150},
	}

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: stops,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	_, err = svc.OptimizeRoute(context.Background(), plan.ID, tenantID, transport.OptimizeRouteRequest{
		IncludeBreaks: true,
	})
	if err != nil {
		t.Fatalf("OptimizeRoute returned error: %v", err)
	}

	planEvents, _ := repo.ListEvents(context.Background(), plan.ID, tenantID)
	breakCount := 0
	breakSeq := 0
	for _, event := range planEvents {
		if event.EventType == "break" {
			breakCount++
			breakSeq = event.SequenceOrder
			if event.DurationMin != breakDurationMinutes {
				t.Fatalf("expected %d minute break, got %d", breakDurationMinutes, event.DurationMin)
			}
		}
	}
	if breakCount != 1 {
		t.Fatalf("expected exactly 1 break, got %d", breakCount)
	}
	if breakSeq != 3 {
		t.Fatalf("expected break at sequence 3 (after second job), got %d", breakSeq)
	}
}

func TestOptimizeRouteRepeatedRunsReplaceBreaks(t *testing.T) {
	svc, repo, jobStore, _ := newTestService(t)
	tenantID := uuid.New()

	stops := []transport.InitialStop{
		{JobID: jobStore.add(40.00, -75.00, 150), DurationMin: 150},
		{JobID: jobStore.add(40.05, -75.00, 150), DurationMin: 150},
		{JobID: jobStore.add(40.10, -75.00, 150), DurationMin: 150},
	}

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: stops,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for run := 0; run < 2; run++ {
		if _, err := svc.OptimizeRoute(context.Background(), plan.ID, tenantID, transport.OptimizeRouteRequest{
			IncludeBreaks: true,
		}); err != nil {
			t.Fatalf("OptimizeRoute run %d returned error: %v", run+1, err)
		}
	}

	planEvents, _ := repo.ListEvents(context.Background(), plan.ID, tenantID)
	breakCount := 0
	seen := make(map[int]bool)
	for _, event := range planEvents {
		if event.EventType == "break" {
			breakCount++
		}
		if seen[event.SequenceOrder] {
			t.Fatalf("duplicate sequence order %d after repeated optimization", event.SequenceOrder)
		}
		seen[event.SequenceOrder] = true
	}
	if breakCount != 1 {
		t.Fatalf("expected 1 break after two optimize runs, got %d", breakCount)
	}
}

func TestJobCapHoldsUnderConcurrentAdds(t *testing.T) {
	svc, repo, jobStore, _ := newTestService(t)
	tenantID := uuid.New()

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	const attempts = 20
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		jobID := jobStore.add(40.0+float64(i)*0.01, -75.0, 45)
		wg.Add(1)
		go func(jobID uuid.UUID) {
			defer wg.Done()
			_, err := svc.AddEvent(context.Background(), plan.ID, tenantID, transport.AddEventRequest{
				JobID:     &jobID,
				EventType: transport.EventTypeJob,
			})
			results <- err
		}(jobID)
	}
	wg.Wait()
	close(results)

	accepted, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case apperr.Is(err, apperr.KindCapacityExceeded):
			rejected++
		default:
			t.Fatalf("unexpected error from concurrent AddEvent: %v", err)
		}
	}
	if accepted != MaxJobsPerDay || rejected != attempts-MaxJobsPerDay {
		t.Fatalf("expected %d accepted and %d rejected, got %d/%d", MaxJobsPerDay, attempts-MaxJobsPerDay, accepted, rejected)
	}

	planEvents, _ := repo.ListEvents(context.Background(), plan.ID, tenantID)
	jobCount := 0
	for _, event := range planEvents {
		if event.EventType == "job" && event.Status != "cancelled" {
			jobCount++
		}
	}
	if jobCount != MaxJobsPerDay {
		t.Fatalf("expected exactly %d job events, got %d", MaxJobsPerDay, jobCount)
	}
}

func TestCompleteEventEnqueuesReoptimization(t *testing.T) {
	svc, _, jobStore, bus := newTestService(t)
	tenantID := uuid.New()
	reopt := &recordingReoptimizer{}
	svc.SetReoptimizer(reopt)

	plan, err := svc.Create(context.Background(), uuid.New(), tenantID, transport.CreateDayPlanRequest{
		TechnicianID: uuid.New(),
		PlanDate:     "2026-03-02",
		InitialStops: []transport.InitialStop{{JobID: jobStore.add(40.0, -75.0, 60)}},
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	resp, err := svc.CompleteEvent(context.Background(), plan.ID, plan.Events[0].ID, tenantID)
	if err != nil {
		t.Fatalf("CompleteEvent returned error: %v", err)
	}
	if resp.Status != transport.EventStatusCompleted {
		t.Fatalf("expected completed status, got %s", resp.Status)
	}
	if reopt.calls != 1 {
		t.Fatalf("expected 1 reoptimize enqueue, got %d", reopt.calls)
	}

	found := false
	for _, published := range bus.published {
		if published.EventName() == "dayplans.stop.completed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected JobStopCompleted event")
	}

	// Completing the same event twice fails.
	if _, err := svc.CompleteEvent(context.Background(), plan.ID, plan.Events[0].ID, tenantID); err == nil {
		t.Fatal("expected error completing an already-completed event")
	}
}

func TestCanTransitionTable(t *testing.T) {
	cases := []struct {
		from, to transport.DayPlanStatus
		want     bool
	}{
		{transport.StatusDraft, transport.StatusPublished, true},
		{transport.StatusPublished, transport.StatusInProgress, true},
		{transport.StatusInProgress, transport.StatusCompleted, true},
		{transport.StatusDraft, transport.StatusInProgress, false},
		{transport.StatusDraft, transport.StatusCompleted, false},
		{transport.StatusPublished, transport.StatusDraft, false},
		{transport.StatusCompleted, transport.StatusInProgress, false},
		{transport.StatusCompleted, transport.StatusDraft, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestBreakPositions(t *testing.T) {
	// The threshold only trips past 240, and a break after the final stop
	// is pointless, so three 120s produce none.
	positions := breakPositions([]int{120, 120, 120}, 240)
	if len(positions) != 0 {
		t.Fatalf("expected no breaks for 120/120/120, got %v", positions)
	}

	// 180+120 = 300 exceeds 240 after the second stop.
	positions = breakPositions([]int{180, 120, 60}, 240)
	if len(positions) != 1 || positions[0] != 1 {
		t.Fatalf("expected break after index 1, got %v", positions)
	}

	// No break when under threshold.
	positions = breakPositions([]int{60, 60, 60}, 240)
	if len(positions) != 0 {
		t.Fatalf("expected no breaks, got %v", positions)
	}

	// Counter resets after each break.
	positions = breakPositions([]int{180, 120, 180, 120, 30}, 240)
	if len(positions) != 2 || positions[0] != 1 || positions[1] != 3 {
		t.Fatalf("expected breaks after indices 1 and 3, got %v", positions)
	}
}
