// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielhkuo/bestworst/models"
	"github.com/danielhkuo/bestworst/scaling"
	"github.com/danielhkuo/bestworst/store"
	"github.com/danielhkuo/bestworst/testutil"
)

func TestAddResource_Idempotent(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	r := models.Resource{FolderPath: "strings", Filename: "a.wav", URI: "gs://bucket/strings/a.wav"}
	id, added, err := s.AddResource(ctx, r)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, scaling.StimulusID(1), id)

	again, added, err := s.AddResource(ctx, r)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, id, again)

	other, added, err := s.AddResource(ctx, models.Resource{FolderPath: "strings", Filename: "b.wav", URI: "b"})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, scaling.StimulusID(2), other)
}

func TestListStimulusIDs_ByGroup(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	s := store.New(conn)
	ctx := context.Background()

	strings := testutil.SeedResources(t, conn, "strings", 3)
	testutil.SeedResources(t, conn, "brass", 2)

	ids, err := s.ListStimulusIDs(ctx, "strings")
	require.NoError(t, err)
	assert.Equal(t, strings, ids)

	ids, err = s.ListStimulusIDs(ctx, "woodwinds")
	require.NoError(t, err)
	assert.Empty(t, ids)

	all, err := s.ListResources(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestResolvePath(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	s := store.New(conn)
	ids := testutil.SeedResources(t, conn, "strings", 1)

	uri, err := s.ResolvePath(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Equal(t, "strings/stimulus_01.wav", uri)

	_, err = s.ResolvePath(context.Background(), 999)
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestCreateSequence_LoadDesignRoundTrip(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	s := store.New(conn)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 6)

	design := scaling.TrialDesign{Trials: []scaling.TrialSet{
		{ids[3], ids[0], ids[5]},
		{ids[1], ids[4], ids[2]},
		{ids[5], ids[2], ids[0]},
	}}

	info, err := s.CreateSequence(ctx, models.SequenceInfo{SequenceName: "pilot", GroupKey: "strings", SetSize: 3}, design)
	require.NoError(t, err)
	assert.Equal(t, int64(1), info.SequenceID)
	assert.Equal(t, 3, info.NTrials)

	loaded, err := s.LoadDesign(ctx, info.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, design.Trials, loaded.Trials)

	stored, err := s.GetSequenceInfo(ctx, info.SequenceID)
	require.NoError(t, err)
	assert.Equal(t, "pilot", stored.SequenceName)
	assert.Equal(t, 3, stored.SetSize)

	second, err := s.CreateSequence(ctx, models.SequenceInfo{SequenceName: "main", GroupKey: "strings", SetSize: 3}, design)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.SequenceID)

	list, err := s.ListSequences(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(2), list[0].SequenceID)

	resources, err := s.SequenceResources(ctx, info.SequenceID)
	require.NoError(t, err)
	assert.Len(t, resources, 6)
}

func TestLoadDesign_UnknownSequence(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))

	_, err := s.LoadDesign(context.Background(), 42)
	assert.ErrorIs(t, err, scaling.ErrNotFound)

	_, err = s.GetSequenceInfo(context.Background(), 42)
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestCreateSequence_UnknownStimulusRollsBack(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	design := scaling.TrialDesign{Trials: []scaling.TrialSet{{100, 101}}}
	_, err := s.CreateSequence(ctx, models.SequenceInfo{SequenceName: "bad", GroupKey: "x", SetSize: 2}, design)
	require.ErrorIs(t, err, scaling.ErrStoreUnavailable)

	list, err := s.ListSequences(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestGetOrCreateParticipant(t *testing.T) {
	s := store.New(testutil.SetupTestDB(t))
	ctx := context.Background()

	p, err := s.GetOrCreateParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "alice", p.Name)

	again, err := s.GetOrCreateParticipant(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, p.ID, again.ID)

	_, err = s.FindParticipant(ctx, "bob")
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestAppendResult_DuplicateNotInserted(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	s := store.New(conn)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})
	p, err := s.GetOrCreateParticipant(ctx, "alice")
	require.NoError(t, err)

	r := scaling.TrialResult{ParticipantID: p.ID, SequenceID: seqID, TrialIndex: 0, Best: ids[0], Worst: ids[2]}
	inserted, err := s.AppendResult(ctx, r)
	require.NoError(t, err)
	assert.True(t, inserted)

	r.Best, r.Worst = ids[1], ids[0]
	inserted, err = s.AppendResult(ctx, r)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := s.GetResult(ctx, p.ID, seqID, 0)
	require.NoError(t, err)
	assert.Equal(t, ids[0], got.Best)
	assert.Equal(t, ids[2], got.Worst)

	_, err = s.GetResult(ctx, p.ID, seqID, 1)
	assert.ErrorIs(t, err, scaling.ErrNotFound)
}

func TestListResults_ArrivalOrder(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 4)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{
		{ids[0], ids[1]}, {ids[2], ids[3]}, {ids[0], ids[3]},
	}})

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := base
	s := store.New(conn).WithClock(func() time.Time { return clock })
	p, err := s.GetOrCreateParticipant(ctx, "alice")
	require.NoError(t, err)

	// Trials answered out of order
	for i, trial := range []int{2, 0, 1} {
		clock = base.Add(time.Duration(i) * time.Second)
		_, err := s.AppendResult(ctx, scaling.TrialResult{
			ParticipantID: p.ID, SequenceID: seqID, TrialIndex: trial,
			Best: ids[0], Worst: ids[3],
		})
		require.NoError(t, err)
	}

	results, err := s.ListResults(ctx, p.ID, seqID)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, 2, results[0].TrialIndex)
	assert.Equal(t, 0, results[1].TrialIndex)
	assert.Equal(t, 1, results[2].TrialIndex)
}

func TestSaveFinalScores_Replaces(t *testing.T) {
	conn := testutil.SetupTestDB(t)
	s := store.New(conn)
	ctx := context.Background()
	ids := testutil.SeedResources(t, conn, "strings", 3)
	seqID := testutil.CreateTestSequence(t, conn, "strings", scaling.TrialDesign{Trials: []scaling.TrialSet{ids}})
	p, err := s.GetOrCreateParticipant(ctx, "alice")
	require.NoError(t, err)

	first := scaling.FinalRanking{Stimuli: []scaling.RankedStimulus{
		{ID: ids[0], Score: 2, Rank: 1},
		{ID: ids[1], Score: 1, Rank: 2},
		{ID: ids[2], Score: 0, Rank: 3},
	}}
	_, err = s.SaveFinalScores(ctx, p.ID, seqID, first)
	require.NoError(t, err)

	second := scaling.FinalRanking{Stimuli: []scaling.RankedStimulus{
		{ID: ids[2], Score: 1.5, Rank: 1},
		{ID: ids[0], Score: 0, Rank: 2},
	}}
	_, err = s.SaveFinalScores(ctx, p.ID, seqID, second)
	require.NoError(t, err)

	scores, err := s.ListFinalScores(ctx, p.ID, seqID)
	require.NoError(t, err)
	require.Len(t, scores, 2)
	assert.Equal(t, ids[2], scores[0].ResourceID)
	assert.InDelta(t, 1.5, scores[0].FinalScore, 1e-12)
	assert.Equal(t, 2, scores[1].RankPosition)
}
