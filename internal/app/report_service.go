package app

import (
	"context"
	"time"

	"parkgate/internal/domain"
)

// ReportService answers read-only questions about the vehicle collection.
type ReportService struct {
	ledger  domain.VehicleLedger
	billing *domain.BillingConfig
}

// NewReportService creates a ReportService backed by the given ledger.
func NewReportService(ledger domain.VehicleLedger, billing *domain.BillingConfig) *ReportService {
	return &ReportService{ledger: ledger, billing: billing}
}

// VehicleReport is a stored record plus the running charge when the
// vehicle is inside.
type VehicleReport struct {
	domain.Vehicle
	Duration string   `json:"duration,omitempty"`
	Fee      *float64 `json:"fee,omitempty"`
}

// ListPlates returns every known plate in lexical order.
func (s *ReportService) ListPlates(ctx context.Context) ([]string, error) {
	vs, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return vs.Plates(nil), nil
}

// ListInside returns the plates currently parked, in lexical order.
func (s *ReportService) ListInside(ctx context.Context) ([]string, error) {
	vs, err := s.ledger.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return vs.Plates(func(v domain.Vehicle) bool { return v.IsInside }), nil
}

// Lookup returns the record for plate, billed up to at when inside.
func (s *ReportService) Lookup(ctx context.Context, plate string, at time.Time) (*VehicleReport, error) {
	plate, err := normalizePlate(plate)
	if err != nil {
		return nil, err
	}
	v, err := s.ledger.ReadVehicle(ctx, plate)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, domain.ErrNotFound
	}

	report := &VehicleReport{Vehicle: *v}
	if !v.IsInside {
		return report, nil
	}
	c, _, err := domain.ChargeStay(v, domain.NewTimestamp(at).Time, s.billing)
	if err != nil {
		return nil, err
	}
	report.Duration = c.Duration
	report.Fee = &c.Fee
	return report, nil
}
