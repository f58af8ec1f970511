package image

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

var errParentRef = errors.New("must not contain \"..\"")

var segmentRules = []validation.Rule{
	validation.Required.Error("must not be empty"),
	validation.Match(segmentPattern).Error("must only contain ASCII letters, digits, '-', '_' or '.'"),
	validation.By(noParentRef),
}

func noParentRef(value interface{}) error {
	s, _ := value.(string)

	if strings.Contains(s, "..") {
		return errParentRef
	}

	return nil
}

// ValidateSegment checks that name can be used as one component of an image path.
// '%' and '\' are rejected by the character allow-list.
func ValidateSegment(name string) error {
	return validation.Validate(name, segmentRules...)
}

func IsValidSegment(name string) bool {
	return ValidateSegment(name) == nil
}
