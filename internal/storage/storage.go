// Package storage holds what the JSON document store and the SQL backend
// share: failure sentinels, the update policy and the gorm connection setup.
package storage

import (
	"errors"
	"fmt"

	"github.com/frahmantamala/employee-onboarding/internal"
)

var (
	// ErrIO reports that the backing file or database could not be read or written.
	ErrIO       = errors.New("storage: io failure")
	// ErrParse reports a backing document that is not valid JSON for its record type.
	ErrParse    = errors.New("storage: malformed document")
	// ErrConflict reports a write rejected by a uniqueness constraint.
	ErrConflict = errors.New("storage: unique constraint violated")
)

// UpdateMode decides what Update does with an identifier that is not stored.
type UpdateMode string

const (
	UpdateStrict UpdateMode = internal.UpdateModeStrict
	UpdateUpsert UpdateMode = internal.UpdateModeUpsert
)

func ParseUpdateMode(s string) (UpdateMode, error) {
	switch UpdateMode(s) {
	case "", UpdateStrict:
		return UpdateStrict, nil
	case UpdateUpsert:
		return UpdateUpsert, nil
	}
	return "", fmt.Errorf("unknown update mode %q", s)
}

// ToAppError translates storage failures into the API error taxonomy.
// Errors it does not recognise are returned unchanged.
func ToAppError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrParse):
		return internal.ErrStorageParse.WithCause(err)
	case errors.Is(err, ErrConflict):
		return internal.ErrStorageConflict.WithCause(err)
	case errors.Is(err, ErrIO):
		return internal.ErrStorageIO.WithCause(err)
	}
	return err
}
