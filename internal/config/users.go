package config

import (
	"fmt"
	"slices"
	"strings"
)

// UserDirectory maps a login username to the username it reports as in the
// analytics snapshot. Logins without an entry report as themselves.
type UserDirectory struct {
	m map[string]string
}

// ParseUserDirectory reads "login=analytics" pairs separated by commas,
// e.g. "admin=lydia,marco=marco.rossi". Login keys are lower-cased to match
// signup usernames. Blank input yields the identity mapping.
func ParseUserDirectory(s string) (UserDirectory, error) {
	d := UserDirectory{m: map[string]string{}}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		login, target, ok := strings.Cut(pair, "=")
		login, target = strings.ToLower(strings.TrimSpace(login)), strings.TrimSpace(target)
		if !ok || login == "" || target == "" {
			return UserDirectory{}, fmt.Errorf("invalid ANALYTICS_USER_MAP entry '%s': want login=analytics_user", pair)
		}
		if _, dup := d.m[login]; dup {
			return UserDirectory{}, fmt.Errorf("duplicate ANALYTICS_USER_MAP entry for '%s'", login)
		}
		d.m[login] = target
	}
	return d, nil
}

// AnalyticsUser resolves the analytics username for a login. Logins match
// case-insensitively.
func (d UserDirectory) AnalyticsUser(login string) string {
	if target, ok := d.m[strings.ToLower(login)]; ok {
		return target
	}
	return login
}

// MissingTargets returns the mapped analytics usernames absent from known,
// sorted and without duplicates.
func (d UserDirectory) MissingTargets(known []string) []string {
	var missing []string
	for _, target := range d.m {
		if !slices.Contains(known, target) && !slices.Contains(missing, target) {
			missing = append(missing, target)
		}
	}
	slices.Sort(missing)
	return missing
}

// UserDirectory returns the parsed mapping. Call after Validate.
func (c *Config) UserDirectory() UserDirectory {
	d, _ := ParseUserDirectory(c.AnalyticsUserMap)
	return d
}
