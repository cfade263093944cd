// Package detect turns per-joint deviations into discrete error events.
// Each (joint, error type) pair runs its own small state machine so the
// persistence-gating logic stays auditable in isolation.
package detect

import (
	"sort"

	"github.com/ozkurt/formsense/internal/domain/deviation"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
)

// State is a machine's position in the Idle/Pending/Confirmed lifecycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateConfirmed
)

// String returns the lifecycle state name.
func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// Severity grades a breach against the warning and critical thresholds.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityCritical
)

// String returns the severity name used in logs and metrics labels.
func (s Severity) String() string {
	if s == SeverityCritical {
		return "critical"
	}
	return "warning"
}

// Event is one detected movement fault. ResolvedMS is zero while the
// fault is still present.
type Event struct {
	ErrorType       thresholds.ErrorType
	Joint           pose.JointKey
	Severity        Severity
	FirstDetectedMS uint64
	ConfirmedMS     uint64
	ResolvedMS      uint64
	PeakDeviation   float64
}

type machineKey struct {
	joint     pose.JointKey
	errorType thresholds.ErrorType
}

// machine holds the lifecycle state for one (joint, error type) pair.
type machine struct {
	state    State
	severity Severity
	sinceMS  uint64
	peak     float64
	// historyIdx points at this machine's open entry in the detector
	// history while Confirmed.
	historyIdx int
}

const defaultConfidenceFloor = 0.3

// Detector evaluates deviation frames against a threshold table. One
// instance belongs to exactly one session and is not safe for
// concurrent use.
type Detector struct {
	table           *thresholds.Table
	confidenceFloor float64
	stateHook       func(joint pose.JointKey, errorType thresholds.ErrorType, from, to State)

	machines map[machineKey]*machine
	history  []Event
}

// Option applies a configuration option to the Detector.
type Option func(*Detector)

// WithConfidenceFloor sets the alignment confidence below which no new
// Pending states are opened.
func WithConfidenceFloor(floor float64) Option {
	return func(d *Detector) {
		if floor >= 0 && floor <= 1 {
			d.confidenceFloor = floor
		}
	}
}

// WithStateHook registers a callback invoked on every lifecycle
// transition, for diagnostics counters.
func WithStateHook(hook func(joint pose.JointKey, errorType thresholds.ErrorType, from, to State)) Option {
	return func(d *Detector) {
		d.stateHook = hook
	}
}

// New creates a detector over a frozen threshold table.
func New(table *thresholds.Table, opts ...Option) (*Detector, error) {
	if table == nil {
		return nil, ErrNilTable
	}

	d := &Detector{
		table:           table,
		confidenceFloor: defaultConfidenceFloor,
		machines:        make(map[machineKey]*machine, table.Len()),
	}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	for _, spec := range table.Specs() {
		d.machines[machineKey{joint: spec.Joint, errorType: spec.ErrorType}] = &machine{historyIdx: -1}
	}
	return d, nil
}

// Observe advances every state machine with one deviation frame and
// returns the currently Confirmed events. A single clean measurement
// clears a pending or confirmed fault immediately; a missing
// measurement leaves the machine untouched.
func (d *Detector) Observe(frame *deviation.Frame) []Event {
	suppressed := frame.AlignConfidence < d.confidenceFloor
	now := frame.TimestampMS

	for _, spec := range d.table.Specs() {
		key := machineKey{joint: spec.Joint, errorType: spec.ErrorType}
		m := d.machines[key]

		v, measured := frame.Value(spec.Joint)
		if !measured {
			// No data is not a clean frame; hold state until the joint
			// is measurable again.
			continue
		}

		if v.Degrees < spec.WarningValue {
			d.clear(spec.Joint, spec.ErrorType, m, now)
			continue
		}

		severity := SeverityWarning
		if v.Degrees >= spec.CriticalValue {
			severity = SeverityCritical
		}

		switch m.state {
		case StateIdle:
			if suppressed {
				continue
			}
			m.state = StatePending
			m.sinceMS = now
			m.severity = severity
			m.peak = v.Degrees
			d.notify(spec.Joint, spec.ErrorType, StateIdle, StatePending)

		case StatePending:
			m.observeBreach(severity, v.Degrees)
			if now-m.sinceMS >= spec.PersistenceMS {
				m.state = StateConfirmed
				m.historyIdx = len(d.history)
				d.history = append(d.history, Event{
					ErrorType:       spec.ErrorType,
					Joint:           spec.Joint,
					Severity:        m.severity,
					FirstDetectedMS: m.sinceMS,
					ConfirmedMS:     m.sinceMS + spec.PersistenceMS,
					PeakDeviation:   m.peak,
				})
				d.notify(spec.Joint, spec.ErrorType, StatePending, StateConfirmed)
			}

		case StateConfirmed:
			m.observeBreach(severity, v.Degrees)
			h := &d.history[m.historyIdx]
			h.Severity = m.severity
			h.PeakDeviation = m.peak
		}
	}

	return d.Confirmed()
}

// observeBreach folds one more breaching measurement into the machine.
// Severity only upgrades while the fault is active.
func (m *machine) observeBreach(severity Severity, deg float64) {
	if severity > m.severity {
		m.severity = severity
	}
	if deg > m.peak {
		m.peak = deg
	}
}

// notify invokes the state hook when one is registered.
func (d *Detector) notify(joint pose.JointKey, errorType thresholds.ErrorType, from, to State) {
	if d.stateHook != nil {
		d.stateHook(joint, errorType, from, to)
	}
}

// clear drops a machine back to Idle, closing its history entry if the
// fault had been confirmed.
func (d *Detector) clear(joint pose.JointKey, errorType thresholds.ErrorType, m *machine, now uint64) {
	if m.state == StateConfirmed && m.historyIdx >= 0 {
		d.history[m.historyIdx].ResolvedMS = now
	}
	if m.state != StateIdle {
		d.notify(joint, errorType, m.state, StateIdle)
	}
	m.state = StateIdle
	m.sinceMS = 0
	m.peak = 0
	m.severity = SeverityWarning
	m.historyIdx = -1
}

// Confirmed returns the currently active confirmed events in a stable
// joint-then-type order.
func (d *Detector) Confirmed() []Event {
	var out []Event
	for _, m := range d.machines {
		if m.state == StateConfirmed && m.historyIdx >= 0 {
			out = append(out, d.history[m.historyIdx])
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Joint != out[j].Joint {
			return out[i].Joint < out[j].Joint
		}
		return out[i].ErrorType < out[j].ErrorType
	})
	return out
}

// History returns every event that reached Confirmed during the
// session, resolved or not, in confirmation order.
func (d *Detector) History() []Event {
	out := make([]Event, len(d.history))
	copy(out, d.history)
	return out
}

// HistoryLen is the number of events that have reached Confirmed.
func (d *Detector) HistoryLen() int {
	return len(d.history)
}

// State reports the lifecycle state of one (joint, error type) machine.
func (d *Detector) State(joint pose.JointKey, errorType thresholds.ErrorType) State {
	m, ok := d.machines[machineKey{joint: joint, errorType: errorType}]
	if !ok {
		return StateIdle
	}
	return m.state
}

// Reset clears pending state. With keepConfirmed the history and
// active confirmed events survive for end-of-session reporting,
// matching a tracking-loss reset; without it everything is discarded.
func (d *Detector) Reset(keepConfirmed bool) {
	for _, m := range d.machines {
		if keepConfirmed && m.state == StateConfirmed {
			continue
		}
		m.state = StateIdle
		m.sinceMS = 0
		m.peak = 0
		m.severity = SeverityWarning
		m.historyIdx = -1
	}
	if !keepConfirmed {
		d.history = d.history[:0]
	}
}
