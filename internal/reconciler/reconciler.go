// Package reconciler owns the lifecycle of downstream manager channels that
// back matched events. It decides when a channel is created relative to the
// event start, keeps the scheduled deletion time current, enforces the
// group's channel settings, and reports orphans and duplicates.
package reconciler

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/sports"
)

// CreateTiming says how far ahead of the event start a channel appears.
type CreateTiming string

const (
	CreateDayOf         CreateTiming = "day_of"
	CreateDayBefore     CreateTiming = "day_before"
	CreateTwoDaysBefore CreateTiming = "2_days_before"
	CreateWeekBefore    CreateTiming = "week_before"
)

// DeletePolicy says when a channel disappears after its event ends.
type DeletePolicy string

const (
	DeleteStreamRemoved DeletePolicy = "stream_removed"
	DeleteEndOfDay      DeletePolicy = "end_of_day"
	DeleteEndOfNextDay  DeletePolicy = "end_of_next_day"
	DeleteManual        DeletePolicy = "manual"
)

// ManagedChannel is the persisted record of one downstream channel we own.
type ManagedChannel struct {
	ChannelID string // guide channel key, unique
	GroupID   string
	EventID   string
	ManagerID string // id in the downstream manager

	Name     string
	Number   int
	HomeTeam string
	AwayTeam string

	StreamIDs []string

	CreatedAt         time.Time
	EventStart        time.Time
	ScheduledDeleteAt *time.Time // nil means manual
	DeletePolicy      DeletePolicy
}

// ChannelSpec is what the manager facade needs to create or correct a
// channel.
type ChannelSpec struct {
	Name      string
	Number    int
	Group     string
	Profile   string
	StreamIDs []string
	LogoURL   string
}

// ManagerChannel is one channel as the downstream manager reports it.
type ManagerChannel struct {
	ID      string
	Name    string
	Number  int
	Group   string
	Profile string
}

// Manager is the slice of the IPTV manager facade the reconciler drives.
type Manager interface {
	CreateChannel(ctx context.Context, spec ChannelSpec) (string, error)
	UpdateChannel(ctx context.Context, id string, spec ChannelSpec) error
	DeleteChannel(ctx context.Context, id string) error
	SetChannelEPG(ctx context.Context, id, guideChannelID string) error
	ListChannels(ctx context.Context) ([]ManagerChannel, error)
}

// Store persists the managed-channel set.
type Store interface {
	ManagedChannels() ([]ManagedChannel, error)
	SaveManagedChannel(mc *ManagedChannel) error
	DeleteManagedChannel(channelID string) error
}

// GroupChannelSettings is the downstream shape a group's channels take.
type GroupChannelSettings struct {
	ChannelGroup string
	Profile      string
	StartNumber  int
}

// Config is the lifecycle policy applied to every group.
type Config struct {
	Timezone     *time.Location
	CreateTiming CreateTiming
	DeletePolicy DeletePolicy
	Durations    map[string]time.Duration

	// GroupSettings keys on event-group id; missing groups fall back to
	// zero settings (manager defaults).
	GroupSettings map[string]GroupChannelSettings
}

// Reconciler implements the channel_lifecycle phase.
type Reconciler struct {
	manager Manager
	store   Store
	cfg     Config
	log     zerolog.Logger

	now func() time.Time
}

func New(manager Manager, store Store, cfg Config, log zerolog.Logger) *Reconciler {
	if cfg.Timezone == nil {
		cfg.Timezone = time.UTC
	}
	if cfg.CreateTiming == "" {
		cfg.CreateTiming = CreateDayOf
	}
	if cfg.DeletePolicy == "" {
		cfg.DeletePolicy = DeleteEndOfDay
	}
	return &Reconciler{
		manager: manager,
		store:   store,
		cfg:     cfg,
		log:     log.With().Str("component", "reconciler").Logger(),
		now:     time.Now,
	}
}

// Reconcile applies the lifecycle rules for one run. It is idempotent: a
// second call with the same matched set and clock performs no writes.
func (r *Reconciler) Reconcile(ctx context.Context, matched []epg.MatchedEvent, now time.Time) (epg.ReconcileReport, error) {
	var report epg.ReconcileReport

	existing, err := r.store.ManagedChannels()
	if err != nil {
		return report, fmt.Errorf("load managed channels: %w", err)
	}
	byChannel := make(map[string]*ManagedChannel, len(existing))
	for i := range existing {
		byChannel[existing[i].ChannelID] = &existing[i]
	}

	matchedSet := make(map[string]bool, len(matched))
	for i := range matched {
		me := &matched[i]
		matchedSet[me.ChannelID] = true

		mc, ok := byChannel[me.ChannelID]
		if !ok {
			if !r.creationDue(me.Event.StartTime, now) {
				continue
			}
			created, err := r.create(ctx, me, now)
			if err != nil {
				return report, err
			}
			byChannel[me.ChannelID] = created
			report.Created++
			continue
		}
		if r.sync(ctx, me, mc) {
			report.Updated++
		}
	}

	// Channels whose event left the matched set: delete once due.
	for _, mc := range sortedChannels(byChannel) {
		if matchedSet[mc.ChannelID] {
			continue
		}
		if mc.DeletePolicy == DeleteManual || mc.ScheduledDeleteAt == nil {
			continue
		}
		if now.Before(*mc.ScheduledDeleteAt) {
			continue
		}
		if err := r.manager.DeleteChannel(ctx, mc.ManagerID); err != nil {
			r.log.Warn().Err(err).Str("channel", mc.ChannelID).Msg("deleting downstream channel failed")
			continue
		}
		if err := r.store.DeleteManagedChannel(mc.ChannelID); err != nil {
			return report, fmt.Errorf("delete managed channel %s: %w", mc.ChannelID, err)
		}
		delete(byChannel, mc.ChannelID)
		report.Deleted++
		r.log.Info().Str("channel", mc.ChannelID).Msg("expired channel deleted")
	}

	orphans, duplicates, err := r.audit(ctx, byChannel)
	if err != nil {
		r.log.Warn().Err(err).Msg("downstream audit skipped")
	} else {
		report.Orphans = orphans
		report.Duplicates = duplicates
	}
	return report, nil
}

func (r *Reconciler) create(ctx context.Context, me *epg.MatchedEvent, now time.Time) (*ManagedChannel, error) {
	spec := r.desiredSpec(me, r.nextNumber(me.GroupID))
	id, err := r.manager.CreateChannel(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("create channel %s: %w", me.ChannelID, err)
	}
	if err := r.manager.SetChannelEPG(ctx, id, me.ChannelID); err != nil {
		r.log.Warn().Err(err).Str("channel", me.ChannelID).Msg("linking guide to new channel failed")
	}

	mc := &ManagedChannel{
		ChannelID:    me.ChannelID,
		GroupID:      me.GroupID,
		EventID:      me.Event.ID,
		ManagerID:    id,
		Name:         spec.Name,
		Number:       spec.Number,
		HomeTeam:     me.Event.Home.Name,
		AwayTeam:     me.Event.Away.Name,
		StreamIDs:    me.StreamIDs,
		CreatedAt:    now,
		EventStart:   me.Event.StartTime,
		DeletePolicy: r.cfg.DeletePolicy,
	}
	mc.ScheduledDeleteAt = r.deleteAt(&me.Event)
	if err := r.store.SaveManagedChannel(mc); err != nil {
		return nil, fmt.Errorf("save managed channel %s: %w", me.ChannelID, err)
	}
	r.log.Info().Str("channel", mc.ChannelID).Str("event", mc.EventID).Msg("channel created")
	return mc, nil
}

// sync pushes drift back to the stored configuration and refreshes the
// scheduled deletion time. Returns true when anything was written.
func (r *Reconciler) sync(ctx context.Context, me *epg.MatchedEvent, mc *ManagedChannel) bool {
	dirty := false

	spec := r.desiredSpec(me, mc.Number)
	if spec.Name != mc.Name || !sameStrings(me.StreamIDs, mc.StreamIDs) {
		if err := r.manager.UpdateChannel(ctx, mc.ManagerID, spec); err != nil {
			r.log.Warn().Err(err).Str("channel", mc.ChannelID).Msg("settings sync failed")
			return false
		}
		mc.Name = spec.Name
		mc.StreamIDs = me.StreamIDs
		dirty = true
	}

	want := r.deleteAt(&me.Event)
	if !sameTime(want, mc.ScheduledDeleteAt) || !me.Event.StartTime.Equal(mc.EventStart) {
		mc.ScheduledDeleteAt = want
		mc.EventStart = me.Event.StartTime
		dirty = true
	}

	if dirty {
		if err := r.store.SaveManagedChannel(mc); err != nil {
			r.log.Warn().Err(err).Str("channel", mc.ChannelID).Msg("persisting channel sync failed")
		}
	}
	return dirty
}

// audit compares the downstream channel list against the managed set.
func (r *Reconciler) audit(ctx context.Context, owned map[string]*ManagedChannel) (orphans, duplicates []string, err error) {
	downstream, err := r.manager.ListChannels(ctx)
	if err != nil {
		return nil, nil, err
	}

	ownedGroups := make(map[string]bool)
	for _, gs := range r.cfg.GroupSettings {
		if gs.ChannelGroup != "" {
			ownedGroups[gs.ChannelGroup] = true
		}
	}
	byManagerID := make(map[string]bool, len(owned))
	seen := make(map[string]string, len(owned))
	for _, mc := range sortedChannels(owned) {
		byManagerID[mc.ManagerID] = true
		if prev, ok := seen[mc.ManagerID]; ok {
			duplicates = append(duplicates, prev+"+"+mc.ChannelID)
		}
		seen[mc.ManagerID] = mc.ChannelID
	}

	for _, ch := range downstream {
		if byManagerID[ch.ID] {
			continue
		}
		// Only channels inside a group we manage count as orphans.
		if ownedGroups[ch.Group] {
			orphans = append(orphans, ch.Name)
		}
	}
	sort.Strings(orphans)
	sort.Strings(duplicates)
	return orphans, duplicates, nil
}

func (r *Reconciler) desiredSpec(me *epg.MatchedEvent, number int) ChannelSpec {
	gs := r.cfg.GroupSettings[me.GroupID]
	name := me.Event.ShortName
	if name == "" {
		name = me.Event.Away.Name + " at " + me.Event.Home.Name
	}
	if me.Segment != "" {
		name += " (" + string(me.Segment) + ")"
	}
	return ChannelSpec{
		Name:      name,
		Number:    number,
		Group:     gs.ChannelGroup,
		Profile:   gs.Profile,
		StreamIDs: me.StreamIDs,
		LogoURL:   me.Event.Home.LogoURL,
	}
}

// nextNumber hands out the lowest free number at or above the group's start
// number.
func (r *Reconciler) nextNumber(groupID string) int {
	start := r.cfg.GroupSettings[groupID].StartNumber
	if start <= 0 {
		return 0
	}
	existing, err := r.store.ManagedChannels()
	if err != nil {
		return start
	}
	used := make(map[int]bool, len(existing))
	for _, mc := range existing {
		if mc.GroupID == groupID {
			used[mc.Number] = true
		}
	}
	n := start
	for used[n] {
		n++
	}
	return n
}

// creationDue says whether the create timing window has opened, comparing
// local calendar days in the configured timezone.
func (r *Reconciler) creationDue(eventStart, now time.Time) bool {
	var lead int
	switch r.cfg.CreateTiming {
	case CreateDayBefore:
		lead = 1
	case CreateTwoDaysBefore:
		lead = 2
	case CreateWeekBefore:
		lead = 7
	default:
		lead = 0
	}
	today := dayOf(now, r.cfg.Timezone)
	opens := dayOf(eventStart, r.cfg.Timezone).AddDate(0, 0, -lead)
	return !today.Before(opens)
}

// deleteAt computes the scheduled deletion time for an event under the
// configured policy. Manual returns nil.
func (r *Reconciler) deleteAt(ev *sports.Event) *time.Time {
	if r.cfg.DeletePolicy == DeleteManual {
		return nil
	}
	end := ev.StartTime.Add(r.sportDuration(ev.Sport))
	var at time.Time
	switch r.cfg.DeletePolicy {
	case DeleteEndOfDay:
		at = endOfDay(end, r.cfg.Timezone)
	case DeleteEndOfNextDay:
		at = endOfDay(end.AddDate(0, 0, 1), r.cfg.Timezone)
	default: // stream_removed: due as soon as the event is over
		at = end
	}
	return &at
}

func (r *Reconciler) sportDuration(sport string) time.Duration {
	if d, ok := r.cfg.Durations[sport]; ok && d > 0 {
		return d
	}
	return sports.DefaultDuration(sport)
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	lt := t.In(loc)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 23, 59, 59, 0, loc)
}

func sortedChannels(m map[string]*ManagedChannel) []*ManagedChannel {
	out := make([]*ManagedChannel, 0, len(m))
	for _, mc := range m {
		out = append(out, mc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
