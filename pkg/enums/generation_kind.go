package enums

import "fmt"

// GenerationKind identifies the operation a caller asked for.
type GenerationKind string

const (
	GenerationKindImage         GenerationKind = "image"
	GenerationKindText          GenerationKind = "text"
	GenerationKindVideoAnalysis GenerationKind = "video-analysis"
)

var validGenerationKinds = []GenerationKind{
	GenerationKindImage,
	GenerationKindText,
	GenerationKindVideoAnalysis,
}

func (k GenerationKind) String() string {
	return string(k)
}

func (k GenerationKind) IsValid() bool {
	for _, candidate := range validGenerationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// Persisted reports whether results of this kind are stored as creations.
func (k GenerationKind) Persisted() bool {
	return k == GenerationKindImage || k == GenerationKindVideoAnalysis
}

func ParseGenerationKind(value string) (GenerationKind, error) {
	for _, candidate := range validGenerationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid generation kind %q", value)
}
