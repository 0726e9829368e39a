package model

import "framely/internal/domain"

// PlanType identifies a campaign visibility plan.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanWeek       PlanType = "week"
	PlanMonth      PlanType = "month"
	PlanThreeMonth PlanType = "3month"
	PlanSixMonth   PlanType = "6month"
	PlanYear       PlanType = "year"
)

// planDays is the visibility duration each plan buys. The free grant runs 30
// days like the month plan but is grantable once per user.
var planDays = map[PlanType]int{
	PlanFree:       30,
	PlanWeek:       7,
	PlanMonth:      30,
	PlanThreeMonth: 90,
	PlanSixMonth:   180,
	PlanYear:       365,
}

// planPriceINR is the list price in whole rupees. The free plan has no price.
var planPriceINR = map[PlanType]int64{
	PlanWeek:       49,
	PlanMonth:      149,
	PlanThreeMonth: 399,
	PlanSixMonth:   699,
	PlanYear:       1199,
}

func (p PlanType) Valid() bool {
	_, ok := planDays[p]
	return ok
}

func (p PlanType) Paid() bool { return p.Valid() && p != PlanFree }

// Days returns the plan duration in days, or an error for unknown plans.
func (p PlanType) Days() (int, error) {
	d, ok := planDays[p]
	if !ok {
		return 0, domain.ErrInvalidArgument
	}
	return d, nil
}

// PriceINR returns the list price of a paid plan.
func (p PlanType) PriceINR() (int64, error) {
	v, ok := planPriceINR[p]
	if !ok {
		return 0, domain.ErrNotPaidPlan
	}
	return v, nil
}
