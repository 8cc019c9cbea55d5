package enums

import (
	"fmt"
	"strings"
)

// Perspective selects the reviewer persona for video analysis.
type Perspective string

const (
	PerspectiveDirector Perspective = "director"
	PerspectiveEditor   Perspective = "editor"
	PerspectiveAudience Perspective = "audience"
	PerspectiveCritic   Perspective = "critic"
)

var validPerspectives = []Perspective{
	PerspectiveDirector,
	PerspectiveEditor,
	PerspectiveAudience,
	PerspectiveCritic,
}

func (p Perspective) String() string {
	return string(p)
}

func (p Perspective) IsValid() bool {
	for _, candidate := range validPerspectives {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePerspective defaults to director when value is empty.
func ParsePerspective(value string) (Perspective, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return PerspectiveDirector, nil
	}
	for _, candidate := range validPerspectives {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid perspective %q", value)
}

// Harshness selects the tone of the critique.
type Harshness string

const (
	HarshnessGentle   Harshness = "gentle"
	HarshnessBalanced Harshness = "balanced"
	HarshnessHonest   Harshness = "honest"
	HarshnessHarsh    Harshness = "harsh"
	HarshnessBrutal   Harshness = "brutal"
)

var validHarshness = []Harshness{
	HarshnessGentle,
	HarshnessBalanced,
	HarshnessHonest,
	HarshnessHarsh,
	HarshnessBrutal,
}

func (h Harshness) String() string {
	return string(h)
}

func (h Harshness) IsValid() bool {
	for _, candidate := range validHarshness {
		if candidate == h {
			return true
		}
	}
	return false
}

// ParseHarshness defaults to balanced when value is empty.
func ParseHarshness(value string) (Harshness, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return HarshnessBalanced, nil
	}
	for _, candidate := range validHarshness {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid harshness %q", value)
}
