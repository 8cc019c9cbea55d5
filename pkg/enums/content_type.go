package enums

import "fmt"

// ContentType names one of the gallery content documents.
type ContentType string

const (
	ContentTypeGames ContentType = "games"
	ContentTypeTools ContentType = "tools"
)

// ContentTypes lists every gallery document in bootstrap order.
var ContentTypes = []ContentType{
	ContentTypeGames,
	ContentTypeTools,
}

func (c ContentType) String() string {
	return string(c)
}

func (c ContentType) IsValid() bool {
	for _, candidate := range ContentTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

func ParseContentType(value string) (ContentType, error) {
	for _, candidate := range ContentTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content type %q", value)
}
