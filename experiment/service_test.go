// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package experiment

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/bestworst/scaling"
	"github.com/danielhkuo/bestworst/store"
	"github.com/danielhkuo/bestworst/testutil"
)

func newTestService(t *testing.T) (*Service, *sql.DB) {
	t.Helper()
	conn := testutil.SetupTestDB(t)
	return NewService(store.New(conn), Config{Alpha: 0.1, Ridge: 0.01, FitTimeout: 5 * time.Second}), conn
}

func scoresOf(values []scaling.RankedStimulus) map[scaling.StimulusID]float64 {
	out := make(map[scaling.StimulusID]float64, len(values))
	for _, v := range values {
		out[v.ID] = v.Score
	}
	return out
}

// failingStore fails every AppendResult.
type failingStore struct {
	Store
}

func (failingStore) AppendResult(context.Context, scaling.TrialResult) (bool, error) {
	return false, fmt.Errorf("%w: connection refused", scaling.ErrStoreUnavailable)
}

func TestCreateSequence(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 10)

	created, err := svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "strings", Name: "pilot", Repeats: 3, SetSize: 4, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), created.Seed)
	assert.Equal(t, len(created.Design.Trials), created.Info.NTrials)

	counts := make(map[scaling.StimulusID]int)
	for _, set := range created.Design.Trials {
		assert.Len(t, set, 4)
		for _, id := range set {
			counts[id]++
		}
	}
	for _, id := range created.Design.Leftover {
		counts[id]++
	}
	for _, id := range ids {
		assert.Equal(t, 3, counts[id], "stimulus %d", id)
	}

	view, err := svc.Trials(ctx, created.Info.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, created.Design.Trials, view.Design.Trials)
	for _, id := range created.Design.Stimuli() {
		assert.Contains(t, view.AudioMap, id)
	}

	// Same seed, same design
	again, err := svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "strings", Repeats: 3, SetSize: 4, Seed: 42})
	require.NoError(t, err)
	assert.Equal(t, created.Design.Trials, again.Design.Trials)
	assert.NotEqual(t, created.Info.SequenceID, again.Info.SequenceID)
}

func TestCreateSequence_DrawsSeed(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	testutil.SeedResources(t, conn, "strings", 6)
	svc := NewService(store.New(conn), Config{Seed: func() uint64 { return 7 }})

	created, err := svc.CreateSequence(context.Background(), CreateSequenceParams{GroupKey: "strings", Repeats: 1, SetSize: 3})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), created.Seed)
	assert.Equal(t, "strings-7", created.Info.SequenceName)
}

func TestCreateSequence_Errors(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	testutil.SeedResources(t, conn, "strings", 3)

	_, err := svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "brass", Repeats: 1, SetSize: 2, Seed: 1})
	assert.ErrorIs(t, err, scaling.ErrNotFound)

	_, err = svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "strings", Repeats: 1, SetSize: 4, Seed: 1})
	assert.ErrorIs(t, err, scaling.ErrValidation)

	_, err = svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "strings", Repeats: 0, SetSize: 2, Seed: 1})
	assert.ErrorIs(t, err, scaling.ErrValidation)

	_, err = svc.CreateSequence(ctx, CreateSequenceParams{Repeats: 1, SetSize: 2, Seed: 1})
	assert.ErrorIs(t, err, scaling.ErrValidation)

	_, err = svc.Trials(ctx, 99)
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestSubmit_UpdatesOnlineValues(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	res, err := svc.Submit(ctx, Submission{
		ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0,
		Best: ids[0], Worst: ids[2], ResourcesInTrial: []scaling.StimulusID{ids[2], ids[1], ids[0]},
	})
	require.NoError(t, err)
	assert.False(t, res.Duplicate)
	require.Len(t, res.Values, 3)
	assert.Equal(t, ids[0], res.Values[0].ID)

	scores := scoresOf(res.Values)
	assert.InDelta(t, 0.2, scores[ids[0]], 1e-12)
	assert.InDelta(t, 0.0, scores[ids[1]], 1e-12)
	assert.InDelta(t, -0.2, scores[ids[2]], 1e-12)
}

func TestSubmit_BestEqualsWorstRejected(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	_, err := svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0, Best: ids[1], Worst: ids[1]})
	require.ErrorIs(t, err, scaling.ErrValidation)

	p, values, err := svc.StartSession(ctx, "alice", seqID)
	require.NoError(t, err)
	for _, v := range values {
		assert.Zero(t, v.Score)
	}

	results, err := store.New(conn).ListResults(ctx, p.ID, seqID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSubmit_Validation(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 4)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids[:3]}})

	tests := []struct {
		name string
		sub  Submission
		want error
	}{
		{"missing participant", Submission{SequenceID: seqID, Best: ids[0], Worst: ids[1]}, scaling.ErrValidation},
		{"trial out of range", Submission{ParticipantName: "a", SequenceID: seqID, TrialIndex: 1, Best: ids[0], Worst: ids[1]}, scaling.ErrValidation},
		{"negative trial", Submission{ParticipantName: "a", SequenceID: seqID, TrialIndex: -1, Best: ids[0], Worst: ids[1]}, scaling.ErrValidation},
		{"best not in set", Submission{ParticipantName: "a", SequenceID: seqID, Best: ids[3], Worst: ids[1]}, scaling.ErrValidation},
		{"resources mismatch", Submission{ParticipantName: "a", SequenceID: seqID, Best: ids[0], Worst: ids[1], ResourcesInTrial: ids}, scaling.ErrValidation},
		{"unknown sequence", Submission{ParticipantName: "a", SequenceID: 99, Best: ids[0], Worst: ids[1]}, scaling.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Submit(ctx, tt.sub)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestSubmit_IdempotentRetry(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	sub := Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]}
	first, err := svc.Submit(ctx, sub)
	require.NoError(t, err)

	retry, err := svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.True(t, retry.Duplicate)
	assert.Equal(t, first.Values, retry.Values)

	results, err := store.New(conn).ListResults(ctx, first.Participant.ID, seqID)
	require.NoError(t, err)
	assert.Len(t, results, 1)

	// Same trial, different answer
	sub.Best, sub.Worst = ids[1], ids[0]
	_, err = svc.Submit(ctx, sub)
	assert.ErrorIs(t, err, scaling.ErrValidation)
}

func TestSubmit_FailedAppendLeavesStateUntouched(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	svc := NewService(failingStore{store.New(conn)}, Config{Alpha: 0.1})
	_, err := svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]})
	require.ErrorIs(t, err, scaling.ErrStoreUnavailable)

	_, values, err := svc.Values(ctx, "alice", seqID)
	require.NoError(t, err)
	for _, v := range values {
		assert.Zero(t, v.Score, "stimulus %d", v.ID)
	}
}

func TestValues_ReplayedAfterRestart(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 4)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{
		{ids[0], ids[1], ids[2]},
		{ids[1], ids[2], ids[3]},
		{ids[0], ids[2], ids[3]},
	}})

	answers := [][2]int{{0, 2}, {1, 3}, {0, 3}}
	var last SubmitResult
	for trial, a := range answers {
		var err error
		last, err = svc.Submit(ctx, Submission{
			ParticipantName: "alice", SequenceID: seqID, TrialIndex: trial,
			Best: ids[a[0]], Worst: ids[a[1]],
		})
		require.NoError(t, err)
	}

	restarted := NewService(store.New(conn), Config{Alpha: 0.1})
	_, values, err := restarted.Values(ctx, "alice", seqID)
	require.NoError(t, err)

	want := scoresOf(last.Values)
	for id, score := range scoresOf(values) {
		assert.InDelta(t, want[id], score, 1e-12, "stimulus %d", id)
	}

	_, _, err = restarted.Values(ctx, "bob", seqID)
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestSubmit_ConcurrentParticipants(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 12)

	// Disjoint trials, so the final values do not depend on arrival order
	design := scaling.TrialDesign{Trials: []scaling.TrialSet{ids[0:3], ids[3:6], ids[6:9], ids[9:12]}}
	seqID := testutil.CreateTestSequence(t, conn, "strings", design)

	const participants = 6
	var wg sync.WaitGroup
	errs := make(chan error, participants*len(design.Trials))
	for p := 0; p < participants; p++ {
		for trial, set := range design.Trials {
			wg.Add(1)
			go func(name string, trial int, set scaling.TrialSet) {
				defer wg.Done()
				_, err := svc.Submit(ctx, Submission{
					ParticipantName: name, SequenceID: seqID, TrialIndex: trial,
					Best: set[0], Worst: set[2],
				})
				if err != nil {
					errs <- err
				}
			}(fmt.Sprintf("participant-%d", p), trial, set)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("submit failed: %v", err)
	}

	for p := 0; p < participants; p++ {
		_, values, err := svc.Values(ctx, fmt.Sprintf("participant-%d", p), seqID)
		require.NoError(t, err)
		scores := scoresOf(values)
		for _, set := range design.Trials {
			assert.InDelta(t, 0.2, scores[set[0]], 1e-12)
			assert.InDelta(t, 0.0, scores[set[1]], 1e-12)
			assert.InDelta(t, -0.2, scores[set[2]], 1e-12)
		}
	}
}

func TestSubmit_ConcurrentRetriesAppliedOnce(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	var wg sync.WaitGroup
	var mu sync.Mutex
	duplicates := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]})
			if err != nil {
				t.Errorf("submit failed: %v", err)
				return
			}
			if res.Duplicate {
				mu.Lock()
				duplicates++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 9, duplicates)
	_, values, err := svc.Values(ctx, "alice", seqID)
	require.NoError(t, err)
	assert.InDelta(t, 0.2, scoresOf(values)[ids[0]], 1e-12)
}

func TestFinalize(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)

	var trials []scaling.TrialSet
	for round := 0; round < 3; round++ {
		trials = append(trials,
			scaling.TrialSet{ids[0], ids[1]},
			scaling.TrialSet{ids[1], ids[2]},
			scaling.TrialSet{ids[0], ids[2]})
	}
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: trials})

	_, err := svc.Finalize(ctx, "alice", seqID)
	assert.ErrorIs(t, err, scaling.ErrNotFound)

	for trial, set := range trials {
		// Lower id always wins
		_, err := svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: trial, Best: set[0], Worst: set[1]})
		require.NoError(t, err)
	}
	require.Equal(t, 1, svc.sessions.len())

	final, err := svc.Finalize(ctx, "alice", seqID)
	require.NoError(t, err)
	require.Len(t, final.Ranking.Stimuli, 3)
	for i, rs := range final.Ranking.Stimuli {
		assert.Equal(t, ids[i], rs.ID)
		assert.Equal(t, i+1, rs.Rank)
	}
	assert.Greater(t, final.Ranking.Stimuli[0].Score, final.Ranking.Stimuli[1].Score)
	assert.Greater(t, final.Ranking.Stimuli[1].Score, final.Ranking.Stimuli[2].Score)
	assert.Equal(t, 9, final.Ranking.Observations)
	assert.Equal(t, "stimulus_01.wav", final.Resources[ids[0]].Filename)
	assert.NotEmpty(t, final.Summary)
	assert.Zero(t, svc.sessions.len())

	scores, err := store.New(conn).ListFinalScores(ctx, final.Participant.ID, seqID)
	require.NoError(t, err)
	require.Len(t, scores, 3)
	assert.Equal(t, ids[0], scores[0].ResourceID)

	// Online values survive the end of the session
	_, values, err := svc.Values(ctx, "alice", seqID)
	require.NoError(t, err)
	assert.Equal(t, ids[0], values[0].ID)
}

func TestFinalize_InsufficientData(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	_, _, err := svc.StartSession(ctx, "alice", seqID)
	require.NoError(t, err)

	_, err = svc.Finalize(ctx, "alice", seqID)
	assert.ErrorIs(t, err, scaling.ErrInsufficientData)

	// The middle stimulus is never picked and is left out of the ranking
	_, err = svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]})
	require.NoError(t, err)
	final, err := svc.Finalize(ctx, "alice", seqID)
	require.NoError(t, err)
	require.Len(t, final.Ranking.Stimuli, 2)
	assert.Equal(t, ids[0], final.Ranking.Stimuli[0].ID)
	assert.Equal(t, ids[2], final.Ranking.Stimuli[1].ID)
}

func TestFinalize_FiveItemSets(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()
	testutil.SeedResources(t, conn, "strings", 20)

	for seed := uint64(1); seed <= 5; seed++ {
		created, err := svc.CreateSequence(ctx, CreateSequenceParams{GroupKey: "strings", Repeats: 3, SetSize: 5, Seed: seed})
		require.NoError(t, err)
		seqID := created.Info.SequenceID
		name := fmt.Sprintf("participant-%d", seed)

		// Consistent listener: highest id best, lowest id worst
		picked := make(map[scaling.StimulusID]bool)
		for trial, set := range created.Design.Trials {
			best, worst := set[0], set[0]
			for _, id := range set {
				best = max(best, id)
				worst = min(worst, id)
			}
			picked[best], picked[worst] = true, true
			_, err := svc.Submit(ctx, Submission{ParticipantName: name, SequenceID: seqID, TrialIndex: trial, Best: best, Worst: worst})
			require.NoError(t, err)
		}

		final, err := svc.Finalize(ctx, name, seqID)
		require.NoError(t, err, "seed %d", seed)
		assert.Equal(t, len(created.Design.Trials), final.Ranking.Observations)
		require.Len(t, final.Ranking.Stimuli, len(picked))
		for i, rs := range final.Ranking.Stimuli {
			assert.True(t, picked[rs.ID], "stimulus %d ranked without being picked", rs.ID)
			assert.Equal(t, i+1, rs.Rank)
		}
	}
}

// gate holds the first caller until released.
type gate struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGate() *gate {
	return &gate{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gate) pass() {
	first := false
	g.once.Do(func() {
		first = true
		close(g.entered)
	})
	if first {
		<-g.release
	}
}

// gatedStore pauses the first armed ListResults and the first append of
// one trial index.
type gatedStore struct {
	Store
	armed      atomic.Bool
	listGate   *gate
	appendGate *gate
	gatedTrial int
}

func (g *gatedStore) ListResults(ctx context.Context, participantID string, sequenceID int64) ([]scaling.TrialResult, error) {
	if g.armed.Load() {
		g.listGate.pass()
	}
	return g.Store.ListResults(ctx, participantID, sequenceID)
}

func (g *gatedStore) AppendResult(ctx context.Context, r scaling.TrialResult) (bool, error) {
	if r.TrialIndex == g.gatedTrial {
		g.appendGate.pass()
	}
	return g.Store.AppendResult(ctx, r)
}

func TestFinalize_ConcurrentSubmitsKeepOnlineValues(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids, ids, ids}})

	gs := &gatedStore{Store: store.New(conn), listGate: newGate(), appendGate: newGate(), gatedTrial: 1}
	svc := NewService(gs, Config{Alpha: 0.1, Ridge: 0.01, FitTimeout: 5 * time.Second})

	submit := func(trial int, best, worst scaling.StimulusID) error {
		_, err := svc.Submit(ctx, Submission{ParticipantName: "alice", SequenceID: seqID, TrialIndex: trial, Best: best, Worst: worst})
		return err
	}
	require.NoError(t, submit(0, ids[0], ids[2]))
	gs.armed.Store(true)

	errs := make(chan error, 3)

	// Finalize pauses while reading its snapshot
	go func() {
		_, err := svc.Finalize(ctx, "alice", seqID)
		errs <- err
	}()
	<-gs.listGate.entered

	// Trial 1 queues behind the snapshot, then pauses inside its append
	go func() { errs <- submit(1, ids[1], ids[2]) }()
	time.Sleep(20 * time.Millisecond)
	close(gs.listGate.release)
	<-gs.appendGate.entered

	// Trial 2 arrives while trial 1 is still being written
	go func() { errs <- submit(2, ids[2], ids[0]) }()
	time.Sleep(20 * time.Millisecond)
	close(gs.appendGate.release)

	for i := 0; i < 3; i++ {
		require.NoError(t, <-errs)
	}

	_, live, err := svc.Values(ctx, "alice", seqID)
	require.NoError(t, err)

	replayed := NewService(store.New(conn), Config{Alpha: 0.1})
	_, want, err := replayed.Values(ctx, "alice", seqID)
	require.NoError(t, err)

	wantScores := scoresOf(want)
	for id, score := range scoresOf(live) {
		assert.InDelta(t, wantScores[id], score, 1e-12, "stimulus %d", id)
	}
	assert.Equal(t, 1, svc.sessions.len())
}

func TestEvictIdle(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})

	svc := NewService(store.New(conn), Config{Alpha: 0.1, SessionIdle: 30 * time.Minute})
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.sessions.now = func() time.Time { return clock }

	for _, name := range []string{"alice", "bob"} {
		_, err := svc.Submit(ctx, Submission{ParticipantName: name, SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]})
		require.NoError(t, err)
	}

	clock = clock.Add(10 * time.Minute)
	_, _, err := svc.Values(ctx, "bob", seqID)
	require.NoError(t, err)

	clock = clock.Add(25 * time.Minute)
	assert.Equal(t, 1, svc.EvictIdle())
	assert.Equal(t, 1, svc.sessions.len())
	assert.Zero(t, svc.EvictIdle())

	// Evicted values come back from the log
	_, values, err := svc.Values(ctx, "alice", seqID)
	require.NoError(t, err)
	scores := scoresOf(values)
	assert.InDelta(t, 0.2, scores[ids[0]], 1e-12)
	assert.InDelta(t, -0.2, scores[ids[2]], 1e-12)
	assert.Equal(t, 2, svc.sessions.len())
}

func TestRegistry_AcquireAfterEvict(t *testing.T) {
	r := newRegistry()
	key := sessionKey{participantID: "p1", sequenceID: 1}

	first := r.acquire(key)
	got := make(chan *session)
	go func() {
		s := r.acquire(key)
		s.mu.Unlock()
		got <- s
	}()

	time.Sleep(10 * time.Millisecond)
	r.evict(key, first)
	first.mu.Unlock()

	second := <-got
	assert.NotSame(t, first, second)
	assert.True(t, first.closed)
	assert.False(t, second.closed)
	assert.Equal(t, 1, r.len())
}
