package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Vehicle is the persisted record for one license plate.
type Vehicle struct {
	Plate          string      `json:"license_plate"`
	IsInside       bool        `json:"is_inside"`
	IsMonthly      bool        `json:"is_monthly"`
	IsBlacklisted  bool        `json:"is_blacklisted"`
	EntryTime      *Timestamp  `json:"entry_time,omitempty"`
	MonthlyExpiry  *Timestamp  `json:"monthly_expiry,omitempty"`
	HistoryEntries []Timestamp `json:"history_entries"`
	HistoryExits   []Timestamp `json:"history_exits"`
}

// NewVehicle returns the implicit state of a plate with no record.
func NewVehicle(plate string) Vehicle {
	return Vehicle{
		Plate:          plate,
		HistoryEntries: []Timestamp{},
		HistoryExits:   []Timestamp{},
	}
}

// Clone returns a deep copy of v.
func (v Vehicle) Clone() Vehicle {
	c := v
	if v.EntryTime != nil {
		t := *v.EntryTime
		c.EntryTime = &t
	}
	if v.MonthlyExpiry != nil {
		t := *v.MonthlyExpiry
		c.MonthlyExpiry = &t
	}
	c.HistoryEntries = append([]Timestamp{}, v.HistoryEntries...)
	c.HistoryExits = append([]Timestamp{}, v.HistoryExits...)
	return c
}

// VehicleFunc mutates the record for one plate inside a ledger critical
// section. found is false when the plate has no record and v holds the
// implicit absent state. Returning commit=false or a non-nil error leaves
// the collection untouched.
type VehicleFunc func(v *Vehicle, found bool) (commit bool, err error)

// VehicleLedger is the port for the vehicle collection. Every method holds
// one critical section over the whole collection for its duration.
type VehicleLedger interface {
	// WithVehicle loads the collection, runs fn on the plate's record and
	// persists the whole collection if fn commits.
	WithVehicle(ctx context.Context, plate string, fn VehicleFunc) error
	// ReadVehicle returns a copy of the record, or nil when absent.
	ReadVehicle(ctx context.Context, plate string) (*Vehicle, error)
	// Snapshot returns a copy of the whole collection.
	Snapshot(ctx context.Context) (Vehicles, error)
}

// Vehicles is the whole collection keyed by plate.
type Vehicles map[string]Vehicle

// DecodeVehicles parses a stored collection. Empty input is an empty
// collection.
func DecodeVehicles(data []byte) (Vehicles, error) {
	vs := Vehicles{}
	if len(bytes.TrimSpace(data)) == 0 {
		return vs, nil
	}
	if err := json.Unmarshal(data, &vs); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	if vs == nil {
		vs = Vehicles{}
	}
	for plate, v := range vs {
		if v.Plate == "" {
			v.Plate = plate
		}
		if v.HistoryEntries == nil {
			v.HistoryEntries = []Timestamp{}
		}
		if v.HistoryExits == nil {
			v.HistoryExits = []Timestamp{}
		}
		vs[plate] = v
	}
	return vs, nil
}

// Encode renders the collection with four-space indentation.
func (vs Vehicles) Encode() ([]byte, error) {
	if vs == nil {
		vs = Vehicles{}
	}
	data, err := json.MarshalIndent(vs, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode vehicles: %w", err)
	}
	return data, nil
}

// Apply runs fn against a copy of the plate's record and stores the copy
// back when fn commits. It reports whether the collection changed.
func (vs Vehicles) Apply(plate string, fn VehicleFunc) (bool, error) {
	cur, found := vs[plate]
	v := NewVehicle(plate)
	if found {
		v = cur.Clone()
	}

	commit, err := fn(&v, found)
	if err != nil || !commit {
		return false, err
	}

	v.Plate = plate
	vs[plate] = v
	return true, nil
}

// Lookup returns a copy of the plate's record, or nil when absent.
func (vs Vehicles) Lookup(plate string) *Vehicle {
	v, ok := vs[plate]
	if !ok {
		return nil
	}
	c := v.Clone()
	return &c
}

// Clone deep-copies the collection.
func (vs Vehicles) Clone() Vehicles {
	out := make(Vehicles, len(vs))
	for k, v := range vs {
		out[k] = v.Clone()
	}
	return out
}

// Plates returns all plates in lexical order, filtered by keep when non-nil.
func (vs Vehicles) Plates(keep func(Vehicle) bool) []string {
	plates := make([]string, 0, len(vs))
	for plate, v := range vs {
		if keep == nil || keep(v) {
			plates = append(plates, plate)
		}
	}
	sort.Strings(plates)
	return plates
}
