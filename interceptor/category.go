package interceptor

import "strings"

// Category is the coarse resource bucket a response is accounted under.
type Category string

const (
	CategoryImage      Category = "image"
	CategoryScript     Category = "script"
	CategoryStylesheet Category = "stylesheet"
	CategoryOther      Category = "other"
)

// Categories lists every category in reporting order.
var Categories = []Category{CategoryImage, CategoryScript, CategoryStylesheet, CategoryOther}

// Classify maps a raw browser resource type to its Category.
//
// The lookup is case-insensitive so CDP spellings ("Image") and puppeteer
// spellings ("image") agree. Anything that is not an image, script or
// stylesheet (documents, fonts, xhr, media, redirects, "") is CategoryOther.
func Classify(resourceType string) Category {
	switch strings.ToLower(strings.TrimSpace(resourceType)) {
	case "image":
		return CategoryImage
	case "script":
		return CategoryScript
	case "stylesheet":
		return CategoryStylesheet
	default:
		return CategoryOther
	}
}
