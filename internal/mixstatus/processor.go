package mixstatus

import (
	"sync"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/status"
	mapset "github.com/deckarep/golang-set/v2"
)

// trackState is the per-device bookkeeping: last DeckState, a flag recording
// that the deck has started playing (no first-play timestamp is kept), and
// the pending promotion and interrupt timers (the interrupt timer stands in
// for a "may-stop-since" timestamp, since promotion/demotion both need to
// react the instant tolerance is exceeded rather than on the next incoming
// packet).
type trackState struct {
	last            status.DeckState
	hasPlayingSince bool
	promoteTimer    Timer
	interruptTimer  Timer
}

// Processor is the mix-status state machine (spec.md §4.4).
type Processor struct {
	cfg   Config
	clock Clock

	mu     sync.Mutex
	tracks map[device.ID]*trackState
	live   mapset.Set[device.ID]

	isSetActive  bool
	setEndTimer  Timer

	listenersMu   sync.Mutex
	onSetStarted  []func()
	onNowPlaying  []func(status.DeckState)
	onStopped     []func(device.ID)
	onSetEnded    []func()
}

// NewProcessor builds a Processor with cfg. A nil clock uses real time.
func NewProcessor(cfg Config, clock Clock) *Processor {
	if clock == nil {
		clock = realClock{}
	}
	return &Processor{
		cfg:    cfg,
		clock:  clock,
		tracks: make(map[device.ID]*trackState),
		live:   mapset.NewThreadUnsafeSet[device.ID](),
	}
}

func (p *Processor) OnSetStarted(fn func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.onSetStarted = append(p.onSetStarted, fn)
}

func (p *Processor) OnNowPlaying(fn func(status.DeckState)) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.onNowPlaying = append(p.onNowPlaying, fn)
}

func (p *Processor) OnStopped(fn func(device.ID)) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.onStopped = append(p.onStopped, fn)
}

func (p *Processor) OnSetEnded(fn func()) {
	p.listenersMu.Lock()
	defer p.listenersMu.Unlock()
	p.onSetEnded = append(p.onSetEnded, fn)
}

// IsSetActive reports whether a setStarted has fired with no setEnded
// since.
func (p *Processor) IsSetActive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isSetActive
}

// LiveDevices returns a snapshot of the currently-live device ids.
func (p *Processor) LiveDevices() []device.ID {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]device.ID, 0, p.live.Cardinality())
	for id := range p.live.Iter() {
		out = append(out, id)
	}
	return out
}

// Feed processes one DeckState from the status emitter (spec.md §4.4).
func (p *Processor) Feed(state status.DeckState) {
	var events []func()
	p.mu.Lock()
	p.feedLocked(state, &events)
	p.mu.Unlock()
	p.dispatch(events)
}

func (p *Processor) dispatch(events []func()) {
	for _, fn := range events {
		fn()
	}
}

func (p *Processor) trackFor(id device.ID) *trackState {
	t, ok := p.tracks[id]
	if !ok {
		t = &trackState{}
		p.tracks[id] = t
	}
	return t
}

func isHardStop(ps status.PlayState) bool {
	return ps == status.PlayStateCued || ps == status.PlayStateEnded || ps == status.PlayStateLoading
}

func (p *Processor) feedLocked(state status.DeckState, events *[]func()) {
	id := state.DeviceID
	t := p.trackFor(id)
	t.last = state
	wasLive := p.live.Contains(id)

	onAir := state.IsOnAir || !p.cfg.HasOnAirCapabilities

	if p.cfg.Mode == FollowsMaster {
		p.handleFollowsMaster(id, state, wasLive, events)
		return
	}

	playing := state.PlayState.IsPlaying()
	eligible := playing && onAir

	switch {
	case eligible:
		p.cancelInterruptTimer(t)
		if !t.hasPlayingSince {
			t.hasPlayingSince = true
			if p.live.Cardinality() == 0 {
				// Rule (iii): nobody else is playing on-air.
				p.promote(id, state, events)
				return
			}
			p.maybeSchedulePromote(id, t, state)
		} else if !wasLive && t.promoteTimer == nil {
			p.maybeSchedulePromote(id, t, state)
		}
	case isHardStop(state.PlayState):
		p.resetContinuity(t)
		if wasLive {
			p.stop(id, events)
		}
	default: // paused or off-air
		if wasLive || t.hasPlayingSince {
			p.startInterruptTimer(id, t, state)
		}
	}
}

func (p *Processor) maybeSchedulePromote(id device.ID, t *trackState, state status.DeckState) {
	bpm, ok := state.BPM()
	if !ok {
		return
	}
	d := requiredDuration(p.cfg.BeatsUntilReported, bpm, state.SliderPitch)
	t.promoteTimer = p.clock.AfterFunc(d, func() { p.onPromoteTimerFired(id) })
}

func (p *Processor) onPromoteTimerFired(id device.ID) {
	var events []func()
	p.mu.Lock()
	t, ok := p.tracks[id]
	if ok {
		t.promoteTimer = nil
		state := t.last
		onAir := state.IsOnAir || !p.cfg.HasOnAirCapabilities
		eligible := t.hasPlayingSince && state.PlayState.IsPlaying() && onAir
		gatedBySilence := (p.cfg.Mode == WaitsForSilence || p.cfg.ReportRequiresSilence) && p.live.Cardinality() > 0
		if eligible && !gatedBySilence {
			p.promote(id, state, &events)
		}
	}
	p.mu.Unlock()
	p.dispatch(events)
}

func (p *Processor) startInterruptTimer(id device.ID, t *trackState, state status.DeckState) {
	if t.interruptTimer != nil {
		return
	}
	bpm, ok := state.BPM()
	if !ok {
		bpm = 120
	}
	d := requiredDuration(p.cfg.AllowedInterruptBeats, bpm, state.SliderPitch)
	t.interruptTimer = p.clock.AfterFunc(d, func() { p.onInterruptTimerFired(id) })
}

func (p *Processor) onInterruptTimerFired(id device.ID) {
	var events []func()
	p.mu.Lock()
	t, ok := p.tracks[id]
	if ok {
		t.interruptTimer = nil
		state := t.last
		onAir := state.IsOnAir || !p.cfg.HasOnAirCapabilities
		stillEligible := state.PlayState.IsPlaying() && onAir
		if !stillEligible {
			wasLive := p.live.Contains(id)
			p.resetContinuity(t)
			if wasLive {
				p.stop(id, &events)
			}
		}
	}
	p.mu.Unlock()
	p.dispatch(events)
}

func (p *Processor) cancelInterruptTimer(t *trackState) {
	if t.interruptTimer != nil {
		t.interruptTimer.Stop()
		t.interruptTimer = nil
	}
}

func (p *Processor) resetContinuity(t *trackState) {
	t.hasPlayingSince = false
	if t.promoteTimer != nil {
		t.promoteTimer.Stop()
		t.promoteTimer = nil
	}
	p.cancelInterruptTimer(t)
}

func (p *Processor) handleFollowsMaster(id device.ID, state status.DeckState, wasLive bool, events *[]func()) {
	if state.IsMaster && !wasLive {
		p.promote(id, state, events)
	} else if !state.IsMaster && wasLive {
		p.stop(id, events)
	}
}

// promote moves id into the live set, firing setStarted (if this is the
// first promotion of a new set) and nowPlaying. Idempotent (spec.md §4.4).
func (p *Processor) promote(id device.ID, state status.DeckState, events *[]func()) {
	if p.live.Contains(id) {
		return
	}
	p.live.Add(id)
	p.cancelSetEndTimer()

	if !p.isSetActive {
		p.isSetActive = true
		p.snapshotSetStarted(events)
	}
	p.snapshotNowPlaying(state, events)
}

// stop removes id from the live set, fires stopped, and promotes an on-air
// playing candidate if one exists (spec.md §4.4 rule ii); see
// promoteNextCandidate for which one.
func (p *Processor) stop(id device.ID, events *[]func()) {
	if !p.live.Contains(id) {
		return
	}
	p.live.Remove(id)
	p.snapshotStopped(id, events)
	p.promoteNextCandidate(id, events)
	p.maybeScheduleSetEnd(events)
}

func (p *Processor) promoteNextCandidate(excluding device.ID, events *[]func()) {
	var bestID device.ID
	var best *trackState
	found := false
	for id, t := range p.tracks {
		if id == excluding || p.live.Contains(id) {
			continue
		}
		if !t.hasPlayingSince || !t.last.PlayState.IsPlaying() {
			continue
		}
		onAir := t.last.IsOnAir || !p.cfg.HasOnAirCapabilities
		if !onAir {
			continue
		}
		if !found {
			bestID, best, found = id, t, true
			continue
		}
		// The lowest device id among eligible candidates wins; how long
		// each candidate has been playing is not compared.
		if id < bestID {
			bestID, best = id, t
		}
	}
	if found {
		p.promote(bestID, best.last, events)
	}
}

func (p *Processor) maybeScheduleSetEnd(events *[]func()) {
	if !p.isSetActive || p.setEndTimer != nil {
		return
	}
	for id := range p.live.Iter() {
		t := p.tracks[id]
		onAir := t.last.IsOnAir || !p.cfg.HasOnAirCapabilities
		if t.last.PlayState.IsPlaying() && onAir {
			return
		}
	}
	p.setEndTimer = p.clock.AfterFunc(p.cfg.TimeBetweenSets, p.onSetEndTimerFired)
}

func (p *Processor) onSetEndTimerFired() {
	var events []func()
	p.mu.Lock()
	p.setEndTimer = nil
	stillSilent := true
	for id := range p.live.Iter() {
		t := p.tracks[id]
		onAir := t.last.IsOnAir || !p.cfg.HasOnAirCapabilities
		if t.last.PlayState.IsPlaying() && onAir {
			stillSilent = false
			break
		}
	}
	if p.isSetActive && stillSilent {
		p.isSetActive = false
		p.live.Clear()
		p.snapshotSetEnded(&events)
	}
	p.mu.Unlock()
	p.dispatch(events)
}

func (p *Processor) cancelSetEndTimer() {
	if p.setEndTimer != nil {
		p.setEndTimer.Stop()
		p.setEndTimer = nil
	}
}

func (p *Processor) snapshotSetStarted(events *[]func()) {
	p.listenersMu.Lock()
	var fns []func()
	fns = append(fns, p.onSetStarted...)
	p.listenersMu.Unlock()
	*events = append(*events, func() {
		for _, fn := range fns {
			fn()
		}
	})
}

func (p *Processor) snapshotNowPlaying(state status.DeckState, events *[]func()) {
	p.listenersMu.Lock()
	var fns []func(status.DeckState)
	fns = append(fns, p.onNowPlaying...)
	p.listenersMu.Unlock()
	*events = append(*events, func() {
		for _, fn := range fns {
			fn(state)
		}
	})
}

func (p *Processor) snapshotStopped(id device.ID, events *[]func()) {
	p.listenersMu.Lock()
	var fns []func(device.ID)
	fns = append(fns, p.onStopped...)
	p.listenersMu.Unlock()
	*events = append(*events, func() {
		for _, fn := range fns {
			fn(id)
		}
	})
}

func (p *Processor) snapshotSetEnded(events *[]func()) {
	p.listenersMu.Lock()
	var fns []func()
	fns = append(fns, p.onSetEnded...)
	p.listenersMu.Unlock()
	*events = append(*events, func() {
		for _, fn := range fns {
			fn()
		}
	})
}
