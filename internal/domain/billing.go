package domain

import (
	"fmt"
	"math"
	"time"
)

const minutesPerDay = 24 * 60

// BillingConfig holds the tariff. It is loaded once and never mutated.
type BillingConfig struct {
	FreeMinutes  int     `json:"free_minutes"`
	StageMinutes int     `json:"stage_minutes"`
	StagePrice   float64 `json:"stage_price"`
	DailyCap     float64 `json:"daily_cap"`
}

// Validate reports ErrConfig for a nil or unusable tariff.
func (c *BillingConfig) Validate() error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: billing parameters not loaded", ErrConfig)
	case c.StageMinutes <= 0:
		return fmt.Errorf("%w: stage_minutes must be positive, got %d", ErrConfig, c.StageMinutes)
	case c.FreeMinutes < 0:
		return fmt.Errorf("%w: free_minutes must not be negative", ErrConfig)
	case c.StagePrice < 0 || c.DailyCap < 0:
		return fmt.Errorf("%w: prices must not be negative", ErrConfig)
	}
	return nil
}

// Charge is the outcome of billing one interval.
type Charge struct {
	Fee          float64
	TotalSeconds int64
	Duration     string
}

// ComputeFee bills the interval [start, end] against cfg. Negative
// intervals are treated as zero length.
func ComputeFee(start, end time.Time, cfg *BillingConfig) (Charge, error) {
	if err := cfg.Validate(); err != nil {
		return Charge{}, err
	}

	secs := math.Round(end.Sub(start).Seconds())
	if secs < 0 {
		secs = 0
	}
	total := int64(secs)

	minutes := (total + 59) / 60
	chargeable := minutes - int64(cfg.FreeMinutes)
	if chargeable < 0 {
		chargeable = 0
	}

	days := chargeable / minutesPerDay
	remainder := chargeable % minutesPerDay
	stage := int64(cfg.StageMinutes)
	stages := (remainder + stage - 1) / stage

	return Charge{
		Fee:          float64(days)*cfg.DailyCap + float64(stages)*cfg.StagePrice,
		TotalSeconds: total,
		Duration:     FormatDuration(total),
	}, nil
}

// FormatDuration renders seconds as HH:MM:SS. Hours do not wrap at 24.
func FormatDuration(secs int64) string {
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs%3600/60, secs%60)
}

// ChargeStay bills the current stay of an inside vehicle up to end.
//
// A valid monthly pass makes the stay free. A pass that expired during the
// stay bills only the time after max(entry, expiry), and lapsed reports
// that the pass is used up. Duration always spans the whole stay.
func ChargeStay(v *Vehicle, end time.Time, cfg *BillingConfig) (c Charge, lapsed bool, err error) {
	if err := cfg.Validate(); err != nil {
		return Charge{}, false, err
	}
	if v == nil || !v.IsInside || v.EntryTime == nil {
		return Charge{}, false, ErrNotInside
	}

	entry := v.EntryTime.Time
	stay, err := ComputeFee(entry, end, cfg)
	if err != nil {
		return Charge{}, false, err
	}
	if !v.IsMonthly || v.MonthlyExpiry == nil {
		return stay, false, nil
	}

	expiry := v.MonthlyExpiry.Time
	if !end.After(expiry) {
		stay.Fee = 0
		return stay, false, nil
	}

	start := entry
	if expiry.After(start) {
		start = expiry
	}
	billed, err := ComputeFee(start, end, cfg)
	if err != nil {
		return Charge{}, false, err
	}
	stay.Fee = billed.Fee
	return stay, true, nil
}
