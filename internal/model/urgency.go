package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// UrgencyLevel is ordered: UrgencyLow < UrgencyModerate < UrgencyUrgent < UrgencyEmergency.
type UrgencyLevel int

const (
	UrgencyLow UrgencyLevel = iota
	UrgencyModerate
	UrgencyUrgent
	UrgencyEmergency
)

var urgencyNames = [...]string{"low", "moderate", "urgent", "emergency"}

func (u UrgencyLevel) String() string {
	if u < UrgencyLow || u > UrgencyEmergency {
		return fmt.Sprintf("UrgencyLevel(%d)", int(u))
	}
	return urgencyNames[u]
}

func ParseUrgency(s string) (UrgencyLevel, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range urgencyNames {
		if name == s {
			return UrgencyLevel(i), nil
		}
	}
	return UrgencyLow, fmt.Errorf("unknown urgency level %q", s)
}

func (u UrgencyLevel) MarshalText() ([]byte, error) {
	if u < UrgencyLow || u > UrgencyEmergency {
		return nil, fmt.Errorf("invalid urgency level %d", int(u))
	}
	return []byte(u.String()), nil
}

func (u *UrgencyLevel) UnmarshalText(text []byte) error {
	level, err := ParseUrgency(string(text))
	if err != nil {
		return err
	}
	*u = level
	return nil
}

func (u UrgencyLevel) MarshalJSON() ([]byte, error) {
	text, err := u.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

func (u *UrgencyLevel) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	return u.UnmarshalText([]byte(s))
}

// MaxUrgency returns the highest of the given levels, or UrgencyLow for none.
func MaxUrgency(levels ...UrgencyLevel) UrgencyLevel {
	max := UrgencyLow
	for _, l := range levels {
		if l > max {
			max = l
		}
	}
	return max
}
