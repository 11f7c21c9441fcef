package credentials

import (
	"strings"
)

// RequiredTokenScopes are the classic PAT scopes needed for full management
// of an organization.
var RequiredTokenScopes = []string{
	"admin:org",
	"admin:org_hook",
	"delete_repo",
	"repo",
	"workflow",
}

// ValidateTokenScopes checks a X-OAuth-Scopes header value against the
// required scopes and returns the missing ones. Fine-grained tokens send an
// empty header and cannot be checked this way.
func ValidateTokenScopes(header string) []string {
	granted := make(map[string]bool)
	for _, scope := range strings.Split(header, ",") {
		scope = strings.TrimSpace(scope)
		if scope != "" {
			granted[scope] = true
		}
	}
	if len(granted) == 0 {
		return nil
	}

	var missing []string
	for _, required := range RequiredTokenScopes {
		if !granted[required] {
			missing = append(missing, required)
		}
	}
	return missing
}
