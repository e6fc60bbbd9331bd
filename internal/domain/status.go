// Package domain contains the core entities of the symptom anamnesis engine:
// symptom definitions, the four-valued symptom status and the combination
// rules that govern how evidence about a symptom accumulates.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// SymptomStatus is the knowledge state about one symptom for one patient.
// The integer values are the codes used in numeric record vectors.
type SymptomStatus int

const (
	YES      SymptomStatus = 1
	NO       SymptomStatus = 2
	NO_INFO  SymptomStatus = 3
	CONFUSED SymptomStatus = 4
)

// AllStatuses lists the statuses in code order.
var AllStatuses = []SymptomStatus{YES, NO, NO_INFO, CONFUSED}

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidStatus = errors.New("invalid symptom status")
)

// IsValid reports whether s is one of the four defined statuses.
func (s SymptomStatus) IsValid() bool {
	switch s {
	case YES, NO, NO_INFO, CONFUSED:
		return true
	default:
		return false
	}
}

// String returns the upper-case status name.
func (s SymptomStatus) String() string {
	switch s {
	case YES:
		return "YES"
	case NO:
		return "NO"
	case NO_INFO:
		return "NO_INFO"
	case CONFUSED:
		return "CONFUSED"
	default:
		return fmt.Sprintf("SymptomStatus(%d)", int(s))
	}
}

// Code returns the numeric vector code of the status.
func (s SymptomStatus) Code() int {
	return int(s)
}

// IsDefinite reports whether the status is an explicit YES or NO.
func (s SymptomStatus) IsDefinite() bool {
	return s == YES || s == NO
}

// ParseSymptomStatus parses a status name, case-insensitively.
func ParseSymptomStatus(v string) (SymptomStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "YES":
		return YES, nil
	case "NO":
		return NO, nil
	case "NO_INFO":
		return NO_INFO, nil
	case "CONFUSED":
		return CONFUSED, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidStatus, v)
	}
}

// StatusFromCode converts a numeric vector code back to a status.
func StatusFromCode(code int) (SymptomStatus, error) {
	s := SymptomStatus(code)
	if !s.IsValid() {
		return 0, fmt.Errorf("%w: code %d", ErrInvalidStatus, code)
	}
	return s, nil
}

// MarshalText encodes the status by name.
func (s SymptomStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStatus, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *SymptomStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseSymptomStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// CombineEntity folds one extracted mention into the current status of its
// symptom. A mention that contradicts a definite status yields CONFUSED,
// and CONFUSED is absorbing.
func CombineEntity(old SymptomStatus, negated bool) SymptomStatus {
	switch old {
	case YES:
		if negated {
			return CONFUSED
		}
		return YES
	case NO:
		if negated {
			return NO
		}
		return CONFUSED
	case NO_INFO:
		if negated {
			return NO
		}
		return YES
	default:
		return CONFUSED
	}
}

// CombineRecords merges the status of a symptom in a newer record into the
// status held by an older one. The operation is not commutative: a definite
// old status wins over a new CONFUSED, while an old CONFUSED is replaced by
// any informative new status.
func CombineRecords(old, new SymptomStatus) SymptomStatus {
	if (old == YES && new == NO) || (old == NO && new == YES) {
		return CONFUSED
	}
	if (old == NO_INFO || old == CONFUSED) && new != NO_INFO {
		return new
	}
	return old
}
