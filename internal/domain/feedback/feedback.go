// Package feedback ranks concurrent confirmed faults into the short
// actionable list a coaching surface can present. Ranking is a pure
// function of the event set, recomputed on every detector tick.
package feedback

import (
	"fmt"
	"sort"

	"github.com/ozkurt/formsense/internal/domain/detect"
	"github.com/ozkurt/formsense/internal/domain/pose"
	"github.com/ozkurt/formsense/internal/domain/thresholds"
)

// MaxItems bounds the feedback list; more than this overwhelms a
// subject mid-exercise.
const MaxItems = 3

// Scoring constants.
const (
	primaryJointBoost = 10.0
	weightWarning     = 1.0
	weightCritical    = 2.0

	// Long-standing faults earn a small bonus so established problems
	// outrank fresh ones of equal risk.
	persistenceBonusPerSecond = 0.1
	persistenceBonusCap       = 1.0

	defaultRiskWeight = 1.0
)

// defaultRiskWeights orders error types by injury risk. Knee valgus
// dominates because of its association with ACL injury.
var defaultRiskWeights = map[thresholds.ErrorType]float64{
	thresholds.ErrorKneeValgus:        3.0,
	thresholds.ErrorTrunkLean:         2.5,
	thresholds.ErrorHipShift:          2.0,
	thresholds.ErrorAnkleCollapse:     2.0,
	thresholds.ErrorShoulderShrug:     1.5,
	thresholds.ErrorElbowFlare:        1.2,
	thresholds.ErrorInsufficientDepth: 1.0,
}

// Item is one ranked feedback entry.
type Item struct {
	ErrorType     thresholds.ErrorType
	Joint         pose.JointKey
	PriorityScore float64
	MessageKey    string
}

// Prioritizer ranks confirmed events. It holds only configuration, no
// per-tick state, so the same input always produces the same output.
type Prioritizer struct {
	primaryJoint pose.JointKey
	hasPrimary   bool
	riskWeights  map[thresholds.ErrorType]float64
}

// Option applies a configuration option to the Prioritizer.
type Option func(*Prioritizer)

// WithPrimaryJoint boosts faults on the joint the exercise is about.
func WithPrimaryJoint(key pose.JointKey) Option {
	return func(p *Prioritizer) {
		if key.Valid() {
			p.primaryJoint = key
			p.hasPrimary = true
		}
	}
}

// WithRiskWeight overrides the injury-risk weight for one error type.
func WithRiskWeight(errorType thresholds.ErrorType, weight float64) Option {
	return func(p *Prioritizer) {
		if weight > 0 {
			p.riskWeights[errorType] = weight
		}
	}
}

// New creates a prioritizer with the default risk weights.
func New(opts ...Option) *Prioritizer {
	p := &Prioritizer{
		riskWeights: make(map[thresholds.ErrorType]float64, len(defaultRiskWeights)),
	}
	for errorType, weight := range defaultRiskWeights {
		p.riskWeights[errorType] = weight
	}

	// Apply all options
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Prioritize scores the confirmed events as of nowMS and returns at
// most MaxItems entries, highest priority first. Ties go to the event
// confirmed earliest.
func (p *Prioritizer) Prioritize(nowMS uint64, events []detect.Event) []Item {
	if len(events) == 0 {
		return nil
	}

	type scored struct {
		item  Item
		event detect.Event
	}
	ranked := make([]scored, 0, len(events))
	for _, e := range events {
		ranked = append(ranked, scored{
			item: Item{
				ErrorType:     e.ErrorType,
				Joint:         e.Joint,
				PriorityScore: p.score(nowMS, e),
				MessageKey:    messageKey(e),
			},
			event: e,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].item.PriorityScore != ranked[j].item.PriorityScore {
			return ranked[i].item.PriorityScore > ranked[j].item.PriorityScore
		}
		if ranked[i].event.ConfirmedMS != ranked[j].event.ConfirmedMS {
			return ranked[i].event.ConfirmedMS < ranked[j].event.ConfirmedMS
		}
		if ranked[i].item.Joint != ranked[j].item.Joint {
			return ranked[i].item.Joint < ranked[j].item.Joint
		}
		return ranked[i].item.ErrorType < ranked[j].item.ErrorType
	})

	n := len(ranked)
	if n > MaxItems {
		n = MaxItems
	}
	out := make([]Item, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].item
	}
	return out
}

func (p *Prioritizer) score(nowMS uint64, e detect.Event) float64 {
	risk, ok := p.riskWeights[e.ErrorType]
	if !ok {
		risk = defaultRiskWeight
	}
	if p.hasPrimary && e.Joint == p.primaryJoint {
		risk *= primaryJointBoost
	}

	severity := weightWarning
	if e.Severity == detect.SeverityCritical {
		severity = weightCritical
	}

	bonus := 0.0
	if nowMS > e.ConfirmedMS {
		bonus = float64(nowMS-e.ConfirmedMS) / 1000 * persistenceBonusPerSecond
		if bonus > persistenceBonusCap {
			bonus = persistenceBonusCap
		}
	}

	return risk + severity + bonus
}

// messageKey is the stable lookup key a presentation layer translates
// into user-facing text.
func messageKey(e detect.Event) string {
	return fmt.Sprintf("%s.%s", e.ErrorType, e.Joint)
}
