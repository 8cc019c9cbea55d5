package generation

import (
	"strings"

	"github.com/sandgallery/sandgallery-backend/internal/providers"
	"github.com/sandgallery/sandgallery-backend/pkg/enums"
)

const (
	CostText          = 1
	CostImage         = 1
	CostImagePro      = 2
	CostImageOpenAI   = 4
	CostVideoAnalysis = 10

	proMarker = "pro"
)

// Cost is the number of credits charged before a request reaches a provider.
// provider must already be resolved for image requests.
func Cost(kind enums.GenerationKind, provider, model string) int {
	switch kind {
	case enums.GenerationKindText:
		return CostText
	case enums.GenerationKindVideoAnalysis:
		return CostVideoAnalysis
	}
	if strings.EqualFold(provider, providers.ProviderOpenAI) {
		return CostImageOpenAI
	}
	if hasProMarker(model) {
		return CostImagePro
	}
	return CostImage
}

// hasProMarker matches "pro" as a whole name segment, so flux-1.1-pro and
// nano-banana-pro qualify while flux-improved does not.
func hasProMarker(model string) bool {
	segments := strings.FieldsFunc(strings.ToLower(model), func(r rune) bool {
		switch r {
		case '-', '/', '.', '_', ':':
			return true
		}
		return false
	})
	for _, segment := range segments {
		if segment == proMarker {
			return true
		}
	}
	return false
}
