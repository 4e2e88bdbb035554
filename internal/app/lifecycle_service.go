package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"parkgate/internal/domain"
	"parkgate/internal/events"
)

const day = 24 * time.Hour

// maxPassDays is the longest grant whose span fits in a time.Duration.
const maxPassDays = int(math.MaxInt64 / int64(day))

// EntryResult is returned by a successful entry.
type EntryResult struct {
	Message string `json:"message"`
}

// ExitResult is returned by a successful exit.
type ExitResult struct {
	Fee      float64 `json:"fee"`
	Duration string  `json:"parking_duration"`
	Message  string  `json:"message"`
}

// DurationResult is the current charge for a parked vehicle.
type DurationResult struct {
	Fee      float64 `json:"fee"`
	Duration string  `json:"parking_duration"`
}

// MonthlyResult is returned when a monthly pass is granted or extended.
type MonthlyResult struct {
	Expiry  domain.Timestamp `json:"monthly_expiry"`
	Message string           `json:"message"`
}

// LifecycleService drives a vehicle through entry, exit, monthly passes and
// the blacklist. Every operation is a single ledger critical section.
type LifecycleService struct {
	ledger  domain.VehicleLedger
	billing *domain.BillingConfig
	events  events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

// NewLifecycleService creates a LifecycleService. A nil billing config makes
// exit and duration queries fail with domain.ErrConfig.
func NewLifecycleService(ledger domain.VehicleLedger, billing *domain.BillingConfig, pub events.Publisher, logger *slog.Logger) *LifecycleService {
	if pub == nil {
		pub = &events.NoopPublisher{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LifecycleService{
		ledger:  ledger,
		billing: billing,
		events:  pub,
		logger:  logger.With("component", "lifecycle"),
		now:     time.Now,
	}
}

// Entry admits a vehicle. Blacklisting is checked before presence.
func (s *LifecycleService) Entry(ctx context.Context, plate string, at time.Time) (EntryResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return EntryResult{}, err
	}
	ts := domain.NewTimestamp(at)

	err = s.ledger.WithVehicle(ctx, plate, func(v *domain.Vehicle, found bool) (bool, error) {
		if v.IsBlacklisted {
			return false, domain.ErrBlacklisted
		}
		if v.IsInside {
			return false, domain.ErrAlreadyInside
		}
		v.IsInside = true
		v.EntryTime = &ts
		v.HistoryEntries = append(v.HistoryEntries, ts)
		return true, nil
	})
	if err != nil {
		s.failed(ctx, "entry", plate, err)
		return EntryResult{}, err
	}

	s.logger.Info("vehicle entered", "plate", plate, "time", ts.String(), "actor", actorOf(ctx))
	s.publish(ctx, events.TopicVehicleEntered, events.VehicleEntered{Plate: plate, Time: ts.String(), Actor: actorOf(ctx)})
	return EntryResult{Message: "Entry successful"}, nil
}

// Exit bills and releases a parked vehicle. A monthly pass that lapsed
// during the stay is cleared.
func (s *LifecycleService) Exit(ctx context.Context, plate string, at time.Time) (ExitResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return ExitResult{}, err
	}
	if err := s.billing.Validate(); err != nil {
		s.failed(ctx, "exit", plate, err)
		return ExitResult{}, err
	}
	ts := domain.NewTimestamp(at)

	var charge domain.Charge
	err = s.ledger.WithVehicle(ctx, plate, func(v *domain.Vehicle, found bool) (bool, error) {
		if !found {
			return false, domain.ErrNotFound
		}
		if !v.IsInside {
			return false, domain.ErrNotInside
		}
		c, lapsed, err := domain.ChargeStay(v, ts.Time, s.billing)
		if err != nil {
			return false, err
		}
		charge = c
		if lapsed {
			v.IsMonthly = false
		}
		v.IsInside = false
		v.EntryTime = nil
		v.HistoryExits = append(v.HistoryExits, ts)
		return true, nil
	})
	if err != nil {
		s.failed(ctx, "exit", plate, err)
		return ExitResult{}, err
	}

	s.logger.Info("vehicle exited", "plate", plate, "time", ts.String(),
		"fee", charge.Fee, "duration", charge.Duration, "actor", actorOf(ctx))
	s.publish(ctx, events.TopicVehicleExited, events.VehicleExited{
		Plate: plate, Time: ts.String(), Fee: charge.Fee, Duration: charge.Duration, Actor: actorOf(ctx),
	})
	return ExitResult{Fee: charge.Fee, Duration: charge.Duration, Message: "Exit successful"}, nil
}

// QueryDuration reports what the vehicle would pay if it left at at.
func (s *LifecycleService) QueryDuration(ctx context.Context, plate string, at time.Time) (DurationResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return DurationResult{}, err
	}
	if err := s.billing.Validate(); err != nil {
		return DurationResult{}, err
	}

	v, err := s.ledger.ReadVehicle(ctx, plate)
	if err != nil {
		return DurationResult{}, err
	}
	if v == nil {
		return DurationResult{}, domain.ErrNotFound
	}
	c, _, err := domain.ChargeStay(v, domain.NewTimestamp(at).Time, s.billing)
	if err != nil {
		return DurationResult{}, err
	}
	return DurationResult{Fee: c.Fee, Duration: c.Duration}, nil
}

// GrantMonthly adds days to the vehicle's pass, extending an unexpired pass
// from its current expiry and otherwise from now.
func (s *LifecycleService) GrantMonthly(ctx context.Context, plate string, days int) (MonthlyResult, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return MonthlyResult{}, err
	}
	if days <= 0 {
		return MonthlyResult{}, fmt.Errorf("%w: days must be positive, got %d", domain.ErrInvalidInput, days)
	}
	if days > maxPassDays {
		return MonthlyResult{}, fmt.Errorf("%w: days must be at most %d, got %d", domain.ErrInvalidInput, maxPassDays, days)
	}
	now := s.now()

	var expiry domain.Timestamp
	err = s.ledger.WithVehicle(ctx, plate, func(v *domain.Vehicle, found bool) (bool, error) {
		base := now
		if v.MonthlyExpiry != nil && v.MonthlyExpiry.After(now) {
			base = v.MonthlyExpiry.Time
		}
		expiry = domain.NewTimestamp(base.Add(time.Duration(days) * day))
		v.MonthlyExpiry = &expiry
		v.IsMonthly = true
		return true, nil
	})
	if err != nil {
		s.failed(ctx, "monthly", plate, err)
		return MonthlyResult{}, err
	}

	s.logger.Info("monthly pass granted", "plate", plate, "days", days, "expiry", expiry.String(), "actor", actorOf(ctx))
	s.publish(ctx, events.TopicMonthlyGranted, events.MonthlyGranted{Plate: plate, Expiry: expiry.String(), Actor: actorOf(ctx)})
	return MonthlyResult{Expiry: expiry, Message: "Monthly pass valid until " + expiry.String()}, nil
}

// Blacklist bars a plate from entering.
func (s *LifecycleService) Blacklist(ctx context.Context, plate string) (string, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return "", err
	}
	err = s.ledger.WithVehicle(ctx, plate, func(v *domain.Vehicle, found bool) (bool, error) {
		if v.IsBlacklisted {
			return false, domain.ErrAlreadyBlacklisted
		}
		v.IsBlacklisted = true
		return true, nil
	})
	if err != nil {
		s.failed(ctx, "blacklist", plate, err)
		return "", err
	}

	s.logger.Info("vehicle blacklisted", "plate", plate, "actor", actorOf(ctx))
	s.publish(ctx, events.TopicVehicleBlacklisted, events.BlacklistChanged{Plate: plate, Actor: actorOf(ctx)})
	return "Vehicle blacklisted", nil
}

// Unblacklist lifts a blacklist entry.
func (s *LifecycleService) Unblacklist(ctx context.Context, plate string) (string, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return "", err
	}
	err = s.ledger.WithVehicle(ctx, plate, func(v *domain.Vehicle, found bool) (bool, error) {
		if !found {
			return false, domain.ErrNotFound
		}
		if !v.IsBlacklisted {
			return false, domain.ErrNotBlacklisted
		}
		v.IsBlacklisted = false
		return true, nil
	})
	if err != nil {
		s.failed(ctx, "unblacklist", plate, err)
		return "", err
	}

	s.logger.Info("vehicle removed from blacklist", "plate", plate, "actor", actorOf(ctx))
	s.publish(ctx, events.TopicVehicleUnblacklisted, events.BlacklistChanged{Plate: plate, Actor: actorOf(ctx)})
	return "Vehicle removed from blacklist", nil
}

func (s *LifecycleService) publish(ctx context.Context, topic string, event any) {
	if err := s.events.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publish event failed", "topic", topic, "error", err)
	}
}

func (s *LifecycleService) failed(ctx context.Context, op, plate string, err error) {
	s.logger.Info("operation rejected", "op", op, "plate", plate, "actor", actorOf(ctx), "error", err)
}

func normalizePlate(plate string) (string, error) {
	plate = strings.TrimSpace(plate)
	if plate == "" {
		return "", fmt.Errorf("%w: license plate is required", domain.ErrInvalidInput)
	}
	return plate, nil
}
