package journey

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type pair struct{ user, journey uuid.UUID }

// fakeStore is an in-memory Store. Gates, when set, block the matching call
// until closed or until the call's context ends.
type fakeStore struct {
	mu          sync.Mutex
	journeys    map[uuid.UUID]*types.Journey
	progress    map[pair]*types.UserJourneyProgress
	completions []*types.StepCompletion
	profiles    map[uuid.UUID]int

	journeyErr    error
	completionErr error
	progressErr   error
	repairErr     error
	profileErr    error

	journeyGate    chan struct{}
	completionGate chan struct{}
	// journeyHeldGate blocks a journey read after it has taken its snapshot.
	journeyHeldGate chan struct{}

	journeyCalls    atomic.Int32
	progressGets    atomic.Int32
	progressCreates atomic.Int32
	completionLists atomic.Int32
	repairCalls     atomic.Int32
	deleteCalls     atomic.Int32
	resetCalls      atomic.Int32
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		journeys: map[uuid.UUID]*types.Journey{},
		progress: map[pair]*types.UserJourneyProgress{},
		profiles: map[uuid.UUID]int{},
	}
}

func (f *fakeStore) Store() Store {
	return Store{Journeys: f, Progress: f, Completions: f, Profiles: f, Procedures: f}
}

func (f *fakeStore) totalCalls() int32 {
	return f.journeyCalls.Load() + f.progressGets.Load() + f.progressCreates.Load() +
		f.completionLists.Load() + f.repairCalls.Load()
}

func wait(dbc dbctx.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-dbc.Ctx.Done():
		return dbc.Ctx.Err()
	}
}

// addJourney stores an active journey with one step per name, in order,
// worth 10, 20, 30... points.
func (f *fakeStore) addJourney(names ...string) (*types.Journey, []*types.Step) {
	j := &types.Journey{ID: uuid.New(), Name: "Parcours", NameEn: "Tour", IsActive: true}
	steps := make([]*types.Step, 0, len(names))
	for i, name := range names {
		s := &types.Step{
			ID:            uuid.New(),
			Name:          name,
			PointsAwarded: 10 * (i + 1),
			Images:        datatypes.JSON([]byte(`["img.jpg"]`)),
		}
		steps = append(steps, s)
		j.Steps = append(j.Steps, &types.JourneyStep{ID: uuid.New(), JourneyID: j.ID, StepID: s.ID, StepOrder: i + 1, Step: s})
	}
	f.mu.Lock()
	f.journeys[j.ID] = j
	f.mu.Unlock()
	return j, steps
}

func (f *fakeStore) complete(userID, journeyID, stepID uuid.UUID, points int) *types.StepCompletion {
	row := &types.StepCompletion{ID: uuid.New(), UserID: userID, JourneyID: journeyID, StepID: stepID, PointsEarned: points, CompletedAt: time.Now()}
	f.mu.Lock()
	f.completions = append(f.completions, row)
	f.mu.Unlock()
	return row
}

func (f *fakeStore) setProgress(userID, journeyID uuid.UUID, currentOrder int, quizIndices ...int) *types.UserJourneyProgress {
	entries := make([]map[string]any, 0, len(quizIndices))
	for _, i := range quizIndices {
		entries = append(entries, map[string]any{"stepIndex": i, "answer": "x"})
	}
	raw, _ := json.Marshal(entries)
	p := &types.UserJourneyProgress{ID: uuid.New(), UserID: userID, JourneyID: journeyID, CurrentStepOrder: currentOrder, QuizResponses: raw}
	f.mu.Lock()
	f.progress[pair{userID, journeyID}] = p
	f.mu.Unlock()
	return p
}

func (f *fakeStore) GetActiveWithSteps(dbc dbctx.Context, journeyID uuid.UUID) (*types.Journey, error) {
	f.journeyCalls.Add(1)
	if err := wait(dbc, f.journeyGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	if f.journeyErr != nil {
		f.mu.Unlock()
		return nil, f.journeyErr
	}
	j, ok := f.journeys[journeyID]
	if !ok || !j.IsActive {
		f.mu.Unlock()
		return nil, pkgerrors.ErrNotFound
	}
	snapshot := *j
	held := f.journeyHeldGate
	f.mu.Unlock()
	if err := wait(dbc, held); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

func (f *fakeStore) IsActive(dbc dbctx.Context, journeyID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.journeyErr != nil {
		return false, f.journeyErr
	}
	j, ok := f.journeys[journeyID]
	return ok && j.IsActive, nil
}

func (f *fakeStore) Get(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error) {
	f.progressGets.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	p := f.progress[pair{userID, journeyID}]
	if p == nil {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreateIfAbsent(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error) {
	f.progressCreates.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return nil, f.progressErr
	}
	k := pair{userID, journeyID}
	if f.progress[k] == nil {
		f.progress[k] = &types.UserJourneyProgress{ID: uuid.New(), UserID: userID, JourneyID: journeyID, CurrentStepOrder: 1, QuizResponses: datatypes.JSON([]byte("[]"))}
	}
	cp := *f.progress[k]
	return &cp, nil
}

func (f *fakeStore) MarkAcquired(dbc dbctx.Context, userID, journeyID uuid.UUID, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return false, f.progressErr
	}
	p := f.progress[pair{userID, journeyID}]
	if p == nil || !p.IsCompleted {
		return false, nil
	}
	p.AcquiredAt = &at
	return true, nil
}

func (f *fakeStore) ListByUserJourney(dbc dbctx.Context, userID, journeyID uuid.UUID) ([]*types.StepCompletion, error) {
	f.completionLists.Add(1)
	if err := wait(dbc, f.completionGate); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completionErr != nil {
		return nil, f.completionErr
	}
	var out []*types.StepCompletion
	for _, c := range f.completions {
		if c.UserID == userID && c.JourneyID == journeyID {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByUserSteps(dbc dbctx.Context, userID uuid.UUID, stepIDs []uuid.UUID) ([]*types.StepCompletion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completionErr != nil {
		return nil, f.completionErr
	}
	want := map[uuid.UUID]bool{}
	for _, id := range stepIDs {
		want[id] = true
	}
	var out []*types.StepCompletion
	for _, c := range f.completions {
		if c.UserID == userID && want[c.StepID] {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) SumPointsByUser(dbc dbctx.Context, userID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, c := range f.completions {
		if c.UserID == userID {
			total += c.PointsEarned
		}
	}
	return total, nil
}

func (f *fakeStore) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drop := map[uuid.UUID]bool{}
	for _, id := range ids {
		drop[id] = true
	}
	kept := f.completions[:0]
	var n int64
	for _, c := range f.completions {
		if drop[c.ID] {
			n++
			continue
		}
		kept = append(kept, c)
	}
	f.completions = kept
	return n, nil
}

func (f *fakeStore) SetTotalPoints(dbc dbctx.Context, userID uuid.UUID, total int, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.profileErr != nil {
		return f.profileErr
	}
	f.profiles[userID] = total
	return nil
}

// RepairJourneyData rebuilds quiz responses from completions, like the
// database routine.
func (f *fakeStore) RepairJourneyData(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.RepairResult, error) {
	f.repairCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repairErr != nil {
		return types.RepairResult{}, f.repairErr
	}
	j := f.journeys[journeyID]
	if j == nil {
		return types.RepairResult{Error: "journey not found"}, nil
	}
	idx := indexSteps(orderedSteps(j))
	seen := map[int]bool{}
	for _, c := range f.completions {
		if c.UserID != userID || c.JourneyID != journeyID {
			continue
		}
		if i, ok := idx[c.StepID]; ok {
			seen[i] = true
		}
	}
	indices := sortedKeys(seen)
	sort.Ints(indices)
	entries := make([]map[string]any, 0, len(indices))
	for _, i := range indices {
		entries = append(entries, map[string]any{"stepIndex": i})
	}
	raw, _ := json.Marshal(entries)
	k := pair{userID, journeyID}
	if f.progress[k] == nil {
		f.progress[k] = &types.UserJourneyProgress{ID: uuid.New(), UserID: userID, JourneyID: journeyID, CurrentStepOrder: 1}
	}
	f.progress[k].QuizResponses = raw
	return types.RepairResult{Success: true, StepsProcessed: len(indices)}, nil
}

func (f *fakeStore) DeleteUserJourneyCompletely(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.DeleteResult, error) {
	f.deleteCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.repairErr != nil {
		return types.DeleteResult{}, f.repairErr
	}
	res := types.DeleteResult{Success: true}
	kept := f.completions[:0]
	for _, c := range f.completions {
		if c.UserID == userID && c.JourneyID == journeyID {
			res.DeletedSteps++
			res.PointsRemoved += c.PointsEarned
			continue
		}
		kept = append(kept, c)
	}
	f.completions = kept
	if _, ok := f.progress[pair{userID, journeyID}]; ok {
		delete(f.progress, pair{userID, journeyID})
		res.DeletedProgress = 1
	}
	return res, nil
}

func (f *fakeStore) ResetJourneyForReplay(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.ResetResult, error) {
	f.resetCalls.Add(1)
	del, err := f.DeleteUserJourneyCompletely(dbc, userID, journeyID)
	if err != nil {
		return types.ResetResult{}, err
	}
	p, _ := f.CreateIfAbsent(dbc, userID, journeyID)
	return types.ResetResult{Success: del.Success, DeletedSteps: del.DeletedSteps, PointsRemoved: del.PointsRemoved, ProgressID: p.ID}, nil
}

var errBackend = fmt.Errorf("backend down")

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testLogger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}
