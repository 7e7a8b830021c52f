package validator

import (
	"net/url"
)

// ValidateTargetURL accepts absolute http/https URLs only.
func ValidateTargetURL(target string) bool {
	if target == "" {
		return false
	}

	u, err := url.Parse(target)
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
