package epg

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/teamarr/teamarr/internal/matcher"
	"github.com/teamarr/teamarr/internal/metrics"
	"github.com/teamarr/teamarr/internal/provider"
	"github.com/teamarr/teamarr/internal/sports"
	"github.com/teamarr/teamarr/internal/template"
)

// ErrAlreadyRunning rejects a second concurrent generation.
var ErrAlreadyRunning = errors.New("epg: a generation run is already in progress")

// channelConcurrency bounds the per-channel fan-out in phase 1.
const channelConcurrency = 4

// DataService is the slice of the data service the orchestrator needs.
type DataService interface {
	BeginGeneration(gen uint64)
	ResetProviderStats()
	ProviderStats() map[string]provider.Stats
	TeamSchedule(ctx context.Context, teamID, league string, daysAhead int) ([]sports.Event, error)
	Event(ctx context.Context, eventID, league string) (*sports.Event, error)
	TeamStats(ctx context.Context, teamID, league string) (*sports.TeamStats, error)
}

// StreamMatcher is the matcher surface phase 2 consumes.
type StreamMatcher interface {
	Match(ctx context.Context, stream matcher.Stream, group matcher.Group, generation uint64) (matcher.Result, error)
	CacheSize() int
}

// StreamSource supplies a group's current raw stream list, from the IPTV
// manager or the group's direct M3U URL.
type StreamSource interface {
	Streams(ctx context.Context, group *EventGroup) ([]matcher.Stream, error)
}

// Store is the persistence surface a run needs.
type Store interface {
	NextGeneration() (uint64, error)
	TeamChannels() ([]TeamChannel, error)
	EventGroups() ([]EventGroup, error)
	SaveRunRecord(rec *RunRecord) error
}

// MatchedEvent is one phase-2 outcome handed to the reconciler.
type MatchedEvent struct {
	ChannelID string
	GroupID   string
	Event     sports.Event
	Segment   matcher.Segment
	StreamIDs []string
}

// ReconcileReport is the lifecycle summary folded into the RunRecord.
type ReconcileReport struct {
	Created    int
	Updated    int
	Deleted    int
	Orphans    []string
	Duplicates []string
}

// Reconciler is phase 3: it owns downstream channel lifecycle.
type Reconciler interface {
	Reconcile(ctx context.Context, matched []MatchedEvent, now time.Time) (ReconcileReport, error)
}

// CacheFlusher persists and purges the matcher's fingerprint cache in
// phase 4.
type CacheFlusher interface {
	FlushCache(store matcher.FingerprintStore, generation uint64) error
}

// Orchestrator runs the four-phase generation pipeline. One instance per
// process; at most one run in flight.
type Orchestrator struct {
	data       DataService
	match      StreamMatcher
	streams    StreamSource
	store      Store
	fpStore    matcher.FingerprintStore
	reconciler Reconciler
	log        zerolog.Logger

	running atomic.Bool
	abort   atomic.Pointer[context.CancelFunc]

	now func() time.Time
}

// New wires an orchestrator. reconciler and streams may be nil when the
// deployment has no event groups.
func New(data DataService, match StreamMatcher, streams StreamSource, store Store, fpStore matcher.FingerprintStore, reconciler Reconciler, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		data:       data,
		match:      match,
		streams:    streams,
		store:      store,
		fpStore:    fpStore,
		reconciler: reconciler,
		log:        log.With().Str("component", "epg").Logger(),
		now:        time.Now,
	}
}

// Abort cancels the in-flight run, if any.
func (o *Orchestrator) Abort() {
	if cancel := o.abort.Load(); cancel != nil {
		(*cancel)()
	}
}

// Running reports whether a run is in flight.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Run executes one full generation. It fails fast with ErrAlreadyRunning
// when a run is in flight. The returned record is also persisted; a non-nil
// error accompanies status failed or aborted.
func (o *Orchestrator) Run(ctx context.Context, settings Settings, sink ProgressSink) (*RunRecord, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	o.abort.Store(&cancel)
	defer o.abort.Store(nil)

	if sink == nil {
		sink = NopProgress
	}
	applyDefaults(&settings)

	// Incrementing the generation is the first act of a run.
	gen, err := o.store.NextGeneration()
	if err != nil {
		return nil, fmt.Errorf("next generation: %w", err)
	}
	o.data.BeginGeneration(gen)
	o.data.ResetProviderStats()

	rec := &RunRecord{
		Generation:     gen,
		StartedAt:      o.now().UTC(),
		Status:         StatusSuccess,
		NoMatchReasons: make(map[string]int),
	}
	o.log.Info().Uint64("generation", gen).Msg("generation run started")

	doc, runErr := o.runPhases(ctx, &settings, rec, sink)

	rec.FinishedAt = o.now().UTC()
	rec.ProviderStats = o.data.ProviderStats()
	// Stats were reset at run start, so each run adds its own delta.
	for name, ps := range rec.ProviderStats {
		metrics.ProviderRequests.WithLabelValues(name).Add(float64(ps.Requests))
		metrics.ProviderRetries.WithLabelValues(name).Add(float64(ps.Retries))
		metrics.ProviderRateWaits.WithLabelValues(name, "preemptive").Add(float64(ps.PreemptiveWaits))
		metrics.ProviderRateWaits.WithLabelValues(name, "reactive").Add(float64(ps.ReactiveWaits))
	}
	if o.match != nil {
		rec.FingerprintEntries = o.match.CacheSize()
	}
	switch {
	case runErr == nil:
		rec.Status = StatusSuccess
	case errors.Is(runErr, context.Canceled):
		rec.Status = StatusAborted
		rec.Error = "aborted"
	default:
		rec.Status = StatusFailed
		rec.Error = runErr.Error()
	}
	if doc != nil {
		rec.Channels = len(doc.Channels)
		rec.Programmes = len(doc.Programmes)
	}

	if err := o.store.SaveRunRecord(rec); err != nil {
		o.log.Error().Err(err).Msg("persisting run record failed")
	}
	metrics.RunsTotal.WithLabelValues(string(rec.Status)).Inc()
	metrics.RunDuration.Observe(rec.Duration().Seconds())

	ev := o.log.Info().
		Uint64("generation", gen).
		Str("status", string(rec.Status)).
		Int("channels", rec.Channels).
		Int("programmes", rec.Programmes).
		Dur("elapsed", rec.Duration())
	if rec.Error != "" {
		ev = ev.Str("error", rec.Error)
	}
	ev.Msg("generation run finished")
	return rec, runErr
}

func (o *Orchestrator) runPhases(ctx context.Context, s *Settings, rec *RunRecord, sink ProgressSink) (*Document, error) {
	doc := &Document{}

	// Phase 1: team channels.
	if err := o.phaseTeams(ctx, s, rec, sink, doc); err != nil {
		return doc, err
	}

	// Phase 2: event groups.
	matched, err := o.phaseEvents(ctx, s, rec, sink, doc)
	if err != nil {
		return doc, err
	}

	// Phase 3: channel lifecycle.
	if o.reconciler != nil {
		emit(sink, PhaseLifecycle, 0, 1, "")
		report, err := o.reconciler.Reconcile(ctx, matched, o.now())
		if err != nil {
			return doc, fmt.Errorf("reconcile: %w", err)
		}
		rec.Orphans = report.Orphans
		rec.Duplicates = report.Duplicates
		emit(sink, PhaseLifecycle, 1, 1, "")
	}

	// Phase 4: emission and persistence.
	emit(sink, PhasePersistence, 0, 2, "xmltv")
	if err := doc.Validate(); err != nil {
		return doc, fmt.Errorf("validate guide: %w", err)
	}
	if s.OutputPath != "" {
		if err := doc.WriteFile(s.OutputPath); err != nil {
			return doc, fmt.Errorf("write guide: %w", err)
		}
		metrics.ChannelsEmitted.Set(float64(len(doc.Channels)))
		metrics.ProgrammesEmitted.Set(float64(len(doc.Programmes)))
	}
	emit(sink, PhasePersistence, 1, 2, "match_cache")
	if flusher, ok := o.match.(CacheFlusher); ok && o.fpStore != nil {
		if err := flusher.FlushCache(o.fpStore, rec.Generation); err != nil {
			o.log.Warn().Err(err).Msg("flushing match cache failed")
		}
	}
	emit(sink, PhasePersistence, 2, 2, "")
	return doc, ctx.Err()
}

// epgWindow derives the run's emission window. The start keeps the most
// recent game still inside its sport duration, so in-progress games stay in
// the guide; otherwise it is the last top-of-hour before now.
func (o *Orchestrator) epgWindow(s *Settings, schedule []sports.Event, chOverride time.Duration) (time.Time, time.Time) {
	now := o.now().UTC()
	start := now.Truncate(time.Hour)
	lookback := time.Duration(s.LookbackHours) * time.Hour
	for _, ev := range schedule {
		if ev.StartTime.After(now) || now.Sub(ev.StartTime) > lookback {
			continue
		}
		dur := effectiveDuration(chOverride, ev.Sport, s)
		if ev.StartTime.Add(dur).After(now) && ev.StartTime.Before(start) {
			start = ev.StartTime
		}
	}
	return start, now.AddDate(0, 0, s.OutputDaysAhead)
}

func applyDefaults(s *Settings) {
	if s.Timezone == nil {
		s.Timezone = time.UTC
	}
	if s.OutputDaysAhead <= 0 {
		s.OutputDaysAhead = 14
	}
	if s.ScheduleDaysAhead <= 0 {
		s.ScheduleDaysAhead = 30
	}
	if s.MatchDaysAhead <= 0 {
		s.MatchDaysAhead = 7
	}
	if s.LookbackHours <= 0 {
		s.LookbackHours = 6
	}
	if s.MaxProgramHours <= 0 {
		s.MaxProgramHours = 6
	}
	if s.PostgameMaxHours <= 0 {
		s.PostgameMaxHours = 6
	}
	if s.PregameMinHours <= 0 {
		s.PregameMinHours = 1
	}
	if s.MidnightMode == "" {
		s.MidnightMode = MidnightPostgame
	}
}

// channelResult collects one channel's output for deterministic assembly.
type channelResult struct {
	channel    Channel
	programmes []Programme
	unresolved []string
}

func (o *Orchestrator) phaseTeams(ctx context.Context, s *Settings, rec *RunRecord, sink ProgressSink, doc *Document) error {
	channels, err := o.store.TeamChannels()
	if err != nil {
		return fmt.Errorf("load team channels: %w", err)
	}
	if len(channels) == 0 {
		return nil
	}

	results := make([]*channelResult, len(channels))
	var done atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(channelConcurrency)
	for i := range channels {
		i := i
		g.Go(func() error {
			res, err := o.buildTeamChannel(gctx, s, rec.Generation, &channels[i])
			if err != nil {
				return err
			}
			results[i] = res
			emit(sink, PhaseTeams, int(done.Add(1)), len(channels), channels[i].Team.Name)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Collection order is the stored channel order, not completion order.
	for _, res := range results {
		if res == nil {
			continue
		}
		doc.Channels = append(doc.Channels, res.channel)
		doc.Programmes = append(doc.Programmes, res.programmes...)
		rec.UnresolvedVariables = mergeSorted(rec.UnresolvedVariables, res.unresolved)
	}
	return nil
}

func (o *Orchestrator) buildTeamChannel(ctx context.Context, s *Settings, gen uint64, tc *TeamChannel) (*channelResult, error) {
	schedule, err := o.data.TeamSchedule(ctx, tc.Team.ID, tc.League, s.ScheduleDaysAhead)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		o.log.Warn().Err(err).Str("team", tc.Team.Name).Msg("team schedule unavailable; channel gets idle filler")
		schedule = nil
	}
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].StartTime.Before(schedule[j].StartTime) })

	stats, err := o.data.TeamStats(ctx, tc.Team.ID, tc.League)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		stats = nil
	}

	windowStart, windowEnd := o.epgWindow(s, schedule, tc.DurationOverride)

	res := &channelResult{channel: Channel{
		ID:          tc.ChannelID,
		DisplayName: tc.Team.Name,
		IconURL:     tc.Team.LogoURL,
	}}

	var slots []gameSlot
	for i := range schedule {
		ev := &schedule[i]
		dur := effectiveDuration(tc.DurationOverride, ev.Sport, s)
		start, stop := ev.StartTime, ev.StartTime.Add(dur)
		if !stop.After(windowStart) || !start.Before(windowEnd) {
			continue
		}
		slots = append(slots, gameSlot{Event: ev, Start: start, Stop: stop})
	}

	oppMemo := make(map[string]*sports.TeamStats)
	for i, slot := range slots {
		tctx := &template.Context{
			FocalTeam: tc.Team,
			Event:     slot.Event,
			Stats:     stats,
			Now:       o.now(),
			Timezone:  s.Timezone,
		}
		if opp, _ := slot.Event.Opponent(tc.Team.ID); opp.ID != "" {
			ts, err := o.opponentStats(ctx, oppMemo, opp.ID, tc.League)
			if err != nil {
				return nil, err
			}
			tctx.OppStats = ts
		}
		if i+1 < len(slots) {
			tctx.NextEvent = slots[i+1].Event
		}
		if i > 0 {
			tctx.LastEvent = slots[i-1].Event
		}
		p := o.renderGame(tc.ChannelID, &tc.Template, tctx, slot, gen, s)
		res.programmes = append(res.programmes, p.prog)
		res.unresolved = mergeSorted(res.unresolved, p.unresolved)
	}

	for _, iv := range planFiller(slots, windowStart, windowEnd, s) {
		p := o.renderFiller(tc.ChannelID, tc.Team, &tc.Template, iv, stats, s)
		res.programmes = append(res.programmes, p.prog)
		res.unresolved = mergeSorted(res.unresolved, p.unresolved)
	}
	return res, nil
}

// opponentStats memoizes opponent stat lookups within one channel. A fetch
// failure degrades to nil; conditions that need the stats simply don't match.
func (o *Orchestrator) opponentStats(ctx context.Context, memo map[string]*sports.TeamStats, teamID, league string) (*sports.TeamStats, error) {
	if ts, ok := memo[teamID]; ok {
		return ts, nil
	}
	ts, err := o.data.TeamStats(ctx, teamID, league)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		ts = nil
	}
	memo[teamID] = ts
	return ts, nil
}

type rendered struct {
	prog       Programme
	unresolved []string
}

func (o *Orchestrator) renderGame(channelID string, tpl *TemplateConfig, tctx *template.Context, slot gameSlot, gen uint64, s *Settings) rendered {
	var unresolved []string
	render := func(tmpl string) string {
		out, miss := template.Render(tmpl, tctx)
		unresolved = mergeSorted(unresolved, miss)
		return out
	}

	title := tpl.Title
	if title == "" {
		title = "{away_team} at {home_team}"
	}
	desc := ""
	if rule, ok := template.ChooseRule(tpl.Rules, tctx, template.RuleSeed(gen, channelID)); ok {
		desc = render(rule.Template)
	}

	ev := slot.Event
	return rendered{
		prog: Programme{
			ChannelID:   channelID,
			Start:       slot.Start,
			Stop:        slot.Stop,
			Title:       render(title),
			Subtitle:    render(tpl.Subtitle),
			Description: desc,
			Categories:  categoriesFor(ev.Sport),
			Kind:        KindGame,
			Live:        s.MarkLiveNew && ev.Status == sports.StatusInProgress,
			New:         s.MarkLiveNew && ev.Status == sports.StatusScheduled,
		},
		unresolved: unresolved,
	}
}

func (o *Orchestrator) renderFiller(channelID string, team sports.Team, tpl *TemplateConfig, iv fillerInterval, stats *sports.TeamStats, s *Settings) rendered {
	tctx := &template.Context{
		FocalTeam: team,
		Stats:     stats,
		NextEvent: iv.Next,
		LastEvent: iv.Prev,
		Now:       o.now(),
		Timezone:  s.Timezone,
	}
	var tmpl string
	switch iv.Kind {
	case KindPregame:
		tctx.Event = iv.Next
		tmpl = tpl.PregameTitle
		if tmpl == "" {
			tmpl = "Up Next: {matchup}"
		}
	case KindPostgame:
		tctx.Event = iv.Prev
		tmpl = tpl.PostgameTitle
		if tmpl == "" {
			tmpl = "Postgame: {matchup}"
		}
	default:
		tctx.Event = iv.Next
		if tctx.Event == nil {
			tctx.Event = iv.Prev
		}
		tmpl = tpl.IdleTitle
		if tmpl == "" {
			tmpl = team.Name
		}
	}

	title, unresolved := template.Render(tmpl, tctx)
	if title == "" {
		title = team.Name
	}
	return rendered{
		prog: Programme{
			ChannelID: channelID,
			Start:     iv.Start,
			Stop:      iv.Stop,
			Title:     title,
			Kind:      iv.Kind,
		},
		unresolved: unresolved,
	}
}

func (o *Orchestrator) phaseEvents(ctx context.Context, s *Settings, rec *RunRecord, sink ProgressSink, doc *Document) ([]MatchedEvent, error) {
	if o.streams == nil || o.match == nil {
		return nil, nil
	}
	groups, err := o.store.EventGroups()
	if err != nil {
		return nil, fmt.Errorf("load event groups: %w", err)
	}

	var matched []MatchedEvent
	for gi := range groups {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		group := &groups[gi]
		emit(sink, PhaseEvents, gi, len(groups), group.Name)

		gm, err := o.processGroup(ctx, s, rec, group)
		if err != nil {
			return nil, err
		}
		matched = append(matched, gm...)
	}
	emit(sink, PhaseEvents, len(groups), len(groups), "")

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ChannelID < matched[j].ChannelID })
	for _, me := range matched {
		prog, ch, unresolved := o.renderEventChannel(ctx, s, rec.Generation, &me, groupByID(groups, me.GroupID))
		doc.Channels = append(doc.Channels, ch)
		doc.Programmes = append(doc.Programmes, prog...)
		rec.UnresolvedVariables = mergeSorted(rec.UnresolvedVariables, unresolved)
	}
	return matched, nil
}

func (o *Orchestrator) processGroup(ctx context.Context, s *Settings, rec *RunRecord, group *EventGroup) ([]MatchedEvent, error) {
	streams, err := o.streams.Streams(ctx, group)
	if err != nil {
		o.log.Warn().Err(err).Str("group", group.Name).Msg("stream list unavailable; skipping group")
		return nil, nil
	}
	include, exclude, err := compileGroupFilters(group)
	if err != nil {
		o.log.Warn().Err(err).Str("group", group.Name).Msg("invalid group regex; skipping group")
		return nil, nil
	}

	mgroup := matcher.Group{ID: group.ID, Leagues: group.Leagues, IncludeFinal: group.IncludeFinal}
	byEvent := make(map[string]*MatchedEvent)
	var order []string

	for i := range streams {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		st := streams[i]
		if include != nil && !include.MatchString(st.Name) {
			continue
		}
		if exclude != nil && exclude.MatchString(st.Name) {
			continue
		}
		rec.StreamsSeen++

		res, err := o.match.Match(ctx, st, mgroup, rec.Generation)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			o.log.Warn().Err(err).Str("stream", st.Name).Msg("match attempt failed")
			continue
		}
		if !res.Matched {
			rec.NoMatchReasons[string(res.Reason)]++
			continue
		}
		rec.StreamsMatched++

		key := eventChannelKey(group.ID, res.EventID, res.Segment, exceptionTag(group, st.Name))
		if group.Duplicates == DuplicateSeparate {
			key = key + "." + st.StreamID
		}
		me, ok := byEvent[key]
		if !ok {
			ev, err := o.data.Event(ctx, res.EventID, res.League)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				o.log.Warn().Err(err).Str("event", res.EventID).Msg("event enrichment failed")
				continue
			}
			if ev == nil {
				rec.NoMatchReasons[string(matcher.ReasonNoEventFound)]++
				continue
			}
			me = &MatchedEvent{ChannelID: key, GroupID: group.ID, Event: *ev, Segment: res.Segment}
			byEvent[key] = me
			order = append(order, key)
		} else if group.Duplicates == DuplicateIgnore {
			continue
		}
		me.StreamIDs = append(me.StreamIDs, st.StreamID)
	}

	out := make([]MatchedEvent, 0, len(order))
	for _, key := range order {
		out = append(out, *byEvent[key])
	}
	return out, nil
}

func (o *Orchestrator) renderEventChannel(ctx context.Context, s *Settings, gen uint64, me *MatchedEvent, group *EventGroup) ([]Programme, Channel, []string) {
	ev := me.Event
	dur := effectiveDuration(0, ev.Sport, s)
	start, stop := eventWindow(&ev, string(me.Segment), dur)

	focal := ev.Home
	if focal.Name == "" {
		focal = ev.Away
	}
	tctx := &template.Context{
		FocalTeam: focal,
		Event:     &ev,
		Now:       o.now(),
		Timezone:  s.Timezone,
	}
	// Single-event leagues carry no team ids; both fetches are skipped there.
	memo := make(map[string]*sports.TeamStats)
	if focal.ID != "" {
		tctx.Stats, _ = o.opponentStats(ctx, memo, focal.ID, ev.League)
	}
	if opp, _ := ev.Opponent(focal.ID); opp.ID != "" {
		tctx.OppStats, _ = o.opponentStats(ctx, memo, opp.ID, ev.League)
	}

	var tpl TemplateConfig
	if group != nil {
		tpl = group.Template
	}
	var unresolved []string
	render := func(tmpl string) string {
		out, miss := template.Render(tmpl, tctx)
		unresolved = mergeSorted(unresolved, miss)
		return out
	}

	title := tpl.Title
	if title == "" {
		title = "{matchup}"
	}
	desc := ""
	if rule, ok := template.ChooseRule(tpl.Rules, tctx, template.RuleSeed(gen, me.ChannelID)); ok {
		desc = render(rule.Template)
	}

	name := render(title)
	if name == "" {
		name = ev.ShortName
	}
	prog := Programme{
		ChannelID:   me.ChannelID,
		Start:       start,
		Stop:        stop,
		Title:       name,
		Subtitle:    render(tpl.Subtitle),
		Description: desc,
		Categories:  categoriesFor(ev.Sport),
		Kind:        KindGame,
		Live:        s.MarkLiveNew && ev.Status == sports.StatusInProgress,
		New:         s.MarkLiveNew && ev.Status == sports.StatusScheduled,
	}

	progs := []Programme{prog}
	if tpl.EnableFiller {
		slot := gameSlot{Event: &ev, Start: start, Stop: stop}
		for _, iv := range planFiller([]gameSlot{slot}, start.Add(-hoursDur(s.PregameMinHours)), stop.Add(hoursDur(s.PostgameMaxHours)), s) {
			f := o.renderFiller(me.ChannelID, focal, &tpl, iv, nil, s)
			progs = append(progs, f.prog)
			unresolved = mergeSorted(unresolved, f.unresolved)
		}
	}

	return progs, Channel{ID: me.ChannelID, DisplayName: name, IconURL: focal.LogoURL}, unresolved
}

func compileGroupFilters(group *EventGroup) (include, exclude *regexp.Regexp, err error) {
	if group.IncludeRegex != "" {
		if include, err = regexp.Compile(group.IncludeRegex); err != nil {
			return nil, nil, err
		}
	}
	if group.ExcludeRegex != "" {
		if exclude, err = regexp.Compile(group.ExcludeRegex); err != nil {
			return nil, nil, err
		}
	}
	return include, exclude, nil
}

// exceptionTag separates streams matching a group's exception keyword into
// their own channel key, so "spanish feed" streams get a distinct channel.
func exceptionTag(group *EventGroup, name string) string {
	lower := strings.ToLower(name)
	for _, kw := range group.ExceptionKeywords {
		if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
			return strings.ToLower(kw)
		}
	}
	return ""
}

func eventChannelKey(groupID, eventID string, segment matcher.Segment, tag string) string {
	key := groupID + "." + eventID
	if segment != matcher.SegmentNone {
		key += "." + string(segment)
	}
	if tag != "" {
		key += "." + strings.ReplaceAll(tag, " ", "-")
	}
	return key
}

func groupByID(groups []EventGroup, id string) *EventGroup {
	for i := range groups {
		if groups[i].ID == id {
			return &groups[i]
		}
	}
	return nil
}

func categoriesFor(sport string) []string {
	if sport == "" {
		return []string{"Sports"}
	}
	return []string{"Sports", strings.ToUpper(sport[:1]) + sport[1:]}
}

// mergeSorted accumulates unresolved placeholder names, deduplicated and
// sorted for stable run records.
func mergeSorted(into, add []string) []string {
	if len(add) == 0 {
		return into
	}
	seen := make(map[string]bool, len(into)+len(add))
	for _, s := range into {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			into = append(into, s)
		}
	}
	sort.Strings(into)
	return into
}
