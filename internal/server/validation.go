package server

import "regexp"

var (
	usernameRe  = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
	hasNumberRe = regexp.MustCompile(`[0-9]`)
	hasLetterRe = regexp.MustCompile(`[a-zA-Z]`)
)

// validateUsername checks username requirements for newly created users.
func validateUsername(username string) (bool, string) {
	if len(username) < 3 {
		return false, "username must be at least 3 characters long"
	}
	if len(username) > 50 {
		return false, "username must be less than 50 characters"
	}
	if !usernameRe.MatchString(username) {
		return false, "username can only contain letters, numbers, and underscores"
	}
	return true, ""
}

// validatePassword checks password strength requirements.
func validatePassword(password string) (bool, string) {
	if len(password) < 8 {
		return false, "password must be at least 8 characters long"
	}
	if len(password) > 128 {
		return false, "password must be less than 128 characters"
	}
	if !hasNumberRe.MatchString(password) || !hasLetterRe.MatchString(password) {
		return false, "password must contain both letters and numbers"
	}
	return true, ""
}
