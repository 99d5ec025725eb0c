package odoogate

import (
	"fmt"
	"regexp"
	"strings"
)

// Input limits for the login payload. Usernames follow the address-length
// convention; passwords are bounded only to cap request work.
const (
	maxUsernameLength = 254
	maxPasswordLength = 128
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// validateLoginRequest checks the login payload shape before any upstream
// call. It never inspects credential correctness, only well-formedness.
func validateLoginRequest(req *loginRequest) error {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	if len(username) > maxUsernameLength {
		return fmt.Errorf("username exceeds %d characters", maxUsernameLength)
	}
	if !emailPattern.MatchString(username) {
		return fmt.Errorf("username is not a valid email address")
	}

	if req.Password == "" {
		return fmt.Errorf("password is required")
	}
	if len(req.Password) > maxPasswordLength {
		return fmt.Errorf("password exceeds %d characters", maxPasswordLength)
	}

	return nil
}
