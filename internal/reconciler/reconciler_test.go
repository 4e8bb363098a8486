package reconciler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/sports"
)

type fakeManager struct {
	nextID     int
	channels   map[string]ChannelSpec
	epgLinks   map[string]string
	downstream []ManagerChannel

	creates, updates, deletes int
}

func newFakeManager() *fakeManager {
	return &fakeManager{channels: map[string]ChannelSpec{}, epgLinks: map[string]string{}}
}

func (f *fakeManager) CreateChannel(ctx context.Context, spec ChannelSpec) (string, error) {
	f.nextID++
	id := fmt.Sprintf("mgr-%d", f.nextID)
	f.channels[id] = spec
	f.creates++
	return id, nil
}

func (f *fakeManager) UpdateChannel(ctx context.Context, id string, spec ChannelSpec) error {
	f.channels[id] = spec
	f.updates++
	return nil
}

func (f *fakeManager) DeleteChannel(ctx context.Context, id string) error {
	delete(f.channels, id)
	f.deletes++
	return nil
}

func (f *fakeManager) SetChannelEPG(ctx context.Context, id, guideChannelID string) error {
	f.epgLinks[id] = guideChannelID
	return nil
}

func (f *fakeManager) ListChannels(ctx context.Context) ([]ManagerChannel, error) {
	return f.downstream, nil
}

type memStore struct {
	rows map[string]ManagedChannel
}

func newMemStore() *memStore { return &memStore{rows: map[string]ManagedChannel{}} }

func (s *memStore) ManagedChannels() ([]ManagedChannel, error) {
	out := make([]ManagedChannel, 0, len(s.rows))
	for _, mc := range s.rows {
		out = append(out, mc)
	}
	return out, nil
}

func (s *memStore) SaveManagedChannel(mc *ManagedChannel) error {
	s.rows[mc.ChannelID] = *mc
	return nil
}

func (s *memStore) DeleteManagedChannel(channelID string) error {
	delete(s.rows, channelID)
	return nil
}

func utc(y int, m time.Month, d, h, min int) time.Time {
	return time.Date(y, m, d, h, min, 0, 0, time.UTC)
}

func nflEvent(start time.Time) sports.Event {
	return sports.Event{
		ID: "401772821", League: "nfl", Sport: "football",
		ShortName: "NYG @ NE", StartTime: start, Status: sports.StatusScheduled,
		Home: sports.Team{ID: "17", Name: "New England Patriots"},
		Away: sports.Team{ID: "19", Name: "New York Giants"},
	}
}

func testConfig() Config {
	return Config{
		Timezone:     time.UTC,
		CreateTiming: CreateDayOf,
		DeletePolicy: DeleteEndOfDay,
		Durations:    map[string]time.Duration{"football": 3*time.Hour + 30*time.Minute},
		GroupSettings: map[string]GroupChannelSettings{
			"nflgrp": {ChannelGroup: "Teamarr NFL", Profile: "hd", StartNumber: 500},
		},
	}
}

func TestCreateOnDayOf(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	now := utc(2025, 12, 15, 12, 0)
	matched := []epg.MatchedEvent{{
		ChannelID: "nflgrp.401772821", GroupID: "nflgrp",
		Event: nflEvent(utc(2025, 12, 15, 18, 15)), StreamIDs: []string{"1", "2"},
	}}

	report, err := r.Reconcile(context.Background(), matched, now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 0, report.Updated)

	require.Len(t, store.rows, 1)
	mc := store.rows["nflgrp.401772821"]
	assert.Equal(t, "NYG @ NE", mc.Name)
	assert.Equal(t, 500, mc.Number)
	assert.Equal(t, "New England Patriots", mc.HomeTeam)
	require.NotNil(t, mc.ScheduledDeleteAt)
	assert.Equal(t, utc(2025, 12, 15, 23, 59).Add(59*time.Second), *mc.ScheduledDeleteAt)

	assert.Equal(t, ChannelSpec{
		Name: "NYG @ NE", Number: 500, Group: "Teamarr NFL", Profile: "hd",
		StreamIDs: []string{"1", "2"},
	}, mgr.channels[mc.ManagerID])
	assert.Equal(t, "nflgrp.401772821", mgr.epgLinks[mc.ManagerID])
}

func TestCreateTimingGatesEarlyEvents(t *testing.T) {
	now := utc(2025, 12, 15, 12, 0)
	cases := []struct {
		timing CreateTiming
		start  time.Time
		want   bool
	}{
		{CreateDayOf, utc(2025, 12, 15, 23, 0), true},
		{CreateDayOf, utc(2025, 12, 16, 1, 0), false},
		{CreateDayBefore, utc(2025, 12, 16, 1, 0), true},
		{CreateDayBefore, utc(2025, 12, 17, 1, 0), false},
		{CreateTwoDaysBefore, utc(2025, 12, 17, 1, 0), true},
		{CreateWeekBefore, utc(2025, 12, 22, 1, 0), true},
		{CreateWeekBefore, utc(2025, 12, 23, 1, 0), false},
	}
	for _, tc := range cases {
		cfg := testConfig()
		cfg.CreateTiming = tc.timing
		r := New(newFakeManager(), newMemStore(), cfg, zerolog.Nop())
		assert.Equal(t, tc.want, r.creationDue(tc.start, now), "%s start %s", tc.timing, tc.start)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	now := utc(2025, 12, 15, 12, 0)
	matched := []epg.MatchedEvent{{
		ChannelID: "nflgrp.401772821", GroupID: "nflgrp",
		Event: nflEvent(utc(2025, 12, 15, 18, 15)), StreamIDs: []string{"1"},
	}}

	_, err := r.Reconcile(context.Background(), matched, now)
	require.NoError(t, err)
	report, err := r.Reconcile(context.Background(), matched, now)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Created)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 0, report.Deleted)
	assert.Equal(t, 1, mgr.creates)
	assert.Equal(t, 0, mgr.updates)
}

func TestSyncPushesDriftAndRescheduledStart(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	now := utc(2025, 12, 15, 12, 0)
	matched := []epg.MatchedEvent{{
		ChannelID: "nflgrp.401772821", GroupID: "nflgrp",
		Event: nflEvent(utc(2025, 12, 15, 18, 15)), StreamIDs: []string{"1"},
	}}
	_, err := r.Reconcile(context.Background(), matched, now)
	require.NoError(t, err)

	// The event slips to the next day and gains a stream.
	matched[0].Event.StartTime = utc(2025, 12, 16, 18, 15)
	matched[0].StreamIDs = []string{"1", "2"}

	report, err := r.Reconcile(context.Background(), matched, now)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, mgr.updates)

	mc := store.rows["nflgrp.401772821"]
	assert.Equal(t, utc(2025, 12, 16, 18, 15), mc.EventStart)
	require.NotNil(t, mc.ScheduledDeleteAt)
	assert.Equal(t, utc(2025, 12, 16, 23, 59).Add(59*time.Second), *mc.ScheduledDeleteAt)
	assert.Equal(t, []string{"1", "2"}, mc.StreamIDs)
}

func TestDeleteWhenDue(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	due := utc(2025, 12, 14, 23, 59)
	store.rows["nflgrp.old"] = ManagedChannel{
		ChannelID: "nflgrp.old", GroupID: "nflgrp", ManagerID: "mgr-9",
		ScheduledDeleteAt: &due, DeletePolicy: DeleteEndOfDay,
	}
	mgr.channels["mgr-9"] = ChannelSpec{Name: "old"}

	report, err := r.Reconcile(context.Background(), nil, utc(2025, 12, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deleted)
	assert.Empty(t, store.rows)
	assert.NotContains(t, mgr.channels, "mgr-9")
}

func TestDeleteSkipsManualAndFuture(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	future := utc(2025, 12, 20, 0, 0)
	store.rows["nflgrp.manual"] = ManagedChannel{
		ChannelID: "nflgrp.manual", GroupID: "nflgrp", ManagerID: "mgr-1",
		DeletePolicy: DeleteManual,
	}
	store.rows["nflgrp.future"] = ManagedChannel{
		ChannelID: "nflgrp.future", GroupID: "nflgrp", ManagerID: "mgr-2",
		ScheduledDeleteAt: &future, DeletePolicy: DeleteEndOfDay,
	}

	report, err := r.Reconcile(context.Background(), nil, utc(2025, 12, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Deleted)
	assert.Len(t, store.rows, 2)
}

func TestDeleteAtPolicies(t *testing.T) {
	ev := nflEvent(utc(2025, 12, 15, 21, 0)) // ends 00:30 next day

	cases := []struct {
		policy DeletePolicy
		want   *time.Time
	}{
		{DeleteStreamRemoved, timePtr(utc(2025, 12, 16, 0, 30))},
		{DeleteEndOfDay, timePtr(utc(2025, 12, 16, 23, 59).Add(59 * time.Second))},
		{DeleteEndOfNextDay, timePtr(utc(2025, 12, 17, 23, 59).Add(59 * time.Second))},
		{DeleteManual, nil},
	}
	for _, tc := range cases {
		cfg := testConfig()
		cfg.DeletePolicy = tc.policy
		r := New(newFakeManager(), newMemStore(), cfg, zerolog.Nop())
		got := r.deleteAt(&ev)
		if tc.want == nil {
			assert.Nil(t, got, string(tc.policy))
		} else {
			require.NotNil(t, got, string(tc.policy))
			assert.Equal(t, *tc.want, *got, string(tc.policy))
		}
	}
}

func timePtr(t time.Time) *time.Time { return &t }

func TestAuditReportsOrphansAndDuplicates(t *testing.T) {
	mgr := newFakeManager()
	store := newMemStore()
	r := New(mgr, store, testConfig(), zerolog.Nop())

	store.rows["nflgrp.a"] = ManagedChannel{ChannelID: "nflgrp.a", GroupID: "nflgrp", ManagerID: "mgr-1", DeletePolicy: DeleteManual}
	store.rows["nflgrp.b"] = ManagedChannel{ChannelID: "nflgrp.b", GroupID: "nflgrp", ManagerID: "mgr-1", DeletePolicy: DeleteManual}
	mgr.downstream = []ManagerChannel{
		{ID: "mgr-1", Name: "owned", Group: "Teamarr NFL"},
		{ID: "mgr-7", Name: "stray sports feed", Group: "Teamarr NFL"},
		{ID: "mgr-8", Name: "unrelated movie channel", Group: "Movies"},
	}

	report, err := r.Reconcile(context.Background(), nil, utc(2025, 12, 15, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []string{"stray sports feed"}, report.Orphans)
	assert.Equal(t, []string{"nflgrp.a+nflgrp.b"}, report.Duplicates)
}

func TestNextNumberSkipsUsed(t *testing.T) {
	store := newMemStore()
	store.rows["nflgrp.a"] = ManagedChannel{ChannelID: "nflgrp.a", GroupID: "nflgrp", Number: 500}
	store.rows["nflgrp.b"] = ManagedChannel{ChannelID: "nflgrp.b", GroupID: "nflgrp", Number: 501}
	store.rows["other.c"] = ManagedChannel{ChannelID: "other.c", GroupID: "other", Number: 502}

	r := New(newFakeManager(), store, testConfig(), zerolog.Nop())
	assert.Equal(t, 502, r.nextNumber("nflgrp"))
	assert.Equal(t, 0, r.nextNumber("other"))
}
