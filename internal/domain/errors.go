package domain

import "errors"

var (
	// ErrNotFound indicates that no record exists for the plate.
	ErrNotFound = errors.New("vehicle not found")
	// ErrAlreadyInside indicates an entry for a vehicle that has not exited.
	ErrAlreadyInside = errors.New("vehicle already inside")
	// ErrNotInside indicates an exit or query for a vehicle that is not parked.
	ErrNotInside = errors.New("vehicle not inside")
	// ErrBlacklisted indicates an entry attempt by a blacklisted vehicle.
	ErrBlacklisted = errors.New("blacklisted vehicle")
	// ErrAlreadyBlacklisted indicates the vehicle is already on the blacklist.
	ErrAlreadyBlacklisted = errors.New("vehicle already blacklisted")
	// ErrNotBlacklisted indicates the vehicle is not on the blacklist.
	ErrNotBlacklisted = errors.New("vehicle not blacklisted")
	// ErrConfig indicates missing or malformed billing parameters.
	ErrConfig = errors.New("billing configuration error")
	// ErrStorage indicates that the collection could not be persisted.
	ErrStorage = errors.New("storage error")
	// ErrInvalidInput indicates a malformed argument such as an empty plate.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserExists indicates a username collision on create.
	ErrUserExists = errors.New("user already exists")
)
