// Package penalty computes cancellation and no-show penalties.  Everything
// here is pure: no clock, no storage.
package penalty

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/hotel-reservation-engine/internal/model"
)

// Rule labels recorded on the reservation.
const (
	RuleNonRefundable = "non_refundable"
	RuleWaived        = "waived"
)

// Result is the penalty decision and the trail that produced it.
type Result struct {
	Policy             model.CancellationPolicy `json:"policy"`
	HoursBeforeCheckin float64                  `json:"hours_before_checkin"`
	Percent            int64                    `json:"percent"`
	PenaltyAmount      decimal.Decimal          `json:"penalty_amount"`
	RefundAmount       decimal.Decimal          `json:"refund_amount"`
	RuleApplied        string                   `json:"rule_applied"`
	WaivedBy           string                   `json:"waived_by,omitempty"`
}

// tier applies when the notice given is strictly greater than above.  A
// notice falling exactly on a boundary therefore lands in the next, closer
// tier.
type tier struct {
	above   time.Duration
	percent int64
	rule    string
}

const anyNotice = time.Duration(math.MinInt64)

var tiers = map[model.CancellationPolicy][]tier{
	model.PolicyFlexible: {
		{above: 24 * time.Hour, percent: 0, rule: ">24h"},
		{above: anyNotice, percent: 50, rule: "<24h"},
	},
	model.PolicyModerate: {
		{above: 48 * time.Hour, percent: 0, rule: ">48h"},
		{above: 24 * time.Hour, percent: 30, rule: "24-48h"},
		{above: anyNotice, percent: 70, rule: "<24h"},
	},
	model.PolicyRigid: {
		{above: 48 * time.Hour, percent: 20, rule: ">48h"},
		{above: 24 * time.Hour, percent: 60, rule: "24-48h"},
		{above: anyNotice, percent: 90, rule: "<24h"},
	},
	model.PolicyNonRefundable: {
		{above: anyNotice, percent: 100, rule: RuleNonRefundable},
	},
}

// Compute maps a policy, the current time, the expected check-in and the
// booking amount to a penalty.  Unknown policies fall back to the strictest
// table so a bad value never produces a free cancellation.
func Compute(policy model.CancellationPolicy, now, checkinExpected time.Time, amount decimal.Decimal) Result {
	notice := checkinExpected.Sub(now)
	table, ok := tiers[policy]
	if !ok {
		policy = model.PolicyNonRefundable
		table = tiers[policy]
	}
	t := table[len(table)-1]
	for _, candidate := range table {
		if notice > candidate.above {
			t = candidate
			break
		}
	}
	penalty := amount.Mul(decimal.NewFromInt(t.percent)).Div(decimal.NewFromInt(100)).Round(2)
	return Result{
		Policy:             policy,
		HoursBeforeCheckin: math.Round(notice.Hours()*100) / 100,
		Percent:            t.percent,
		PenaltyAmount:      penalty,
		RefundAmount:       amount.Round(2).Sub(penalty),
		RuleApplied:        t.rule,
	}
}

// ForNoShow returns the policy used to charge a no-show: RIGID, unless the
// configured policy is already NON_REFUNDABLE.
func ForNoShow(configured model.CancellationPolicy) model.CancellationPolicy {
	if configured == model.PolicyNonRefundable {
		return configured
	}
	return model.PolicyRigid
}

// Waive turns r into a forced zero-penalty decision attributed to actorID.
func Waive(r Result, amount decimal.Decimal, actorID string) Result {
	r.Percent = 0
	r.PenaltyAmount = decimal.Zero
	r.RefundAmount = amount.Round(2)
	r.RuleApplied = RuleWaived
	r.WaivedBy = actorID
	return r
}
