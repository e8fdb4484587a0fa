//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"fmt"
	"os/user"
)

// DetectRequester returns the OS username, used as the requester identity
// when the CLI has no explicit one.
func DetectRequester() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("current user: %w", err)
	}

	return currentUser.Username, nil
}

// RequesterOrCurrent returns requester, or the OS username when it is empty.
func RequesterOrCurrent(requester string) (string, error) {
	if requester != "" {
		return requester, nil
	}

	return DetectRequester()
}
