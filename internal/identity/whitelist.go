// Package identity implements the access-control whitelist applied before
// a user's hub is ever created. The hub itself never calls an identity
// provider; this is a pure function over an already-fetched profile.
package identity

// Profile is the subset of an identity-provider profile the whitelist
// checks against.
type Profile struct {
	UserID string
	Org    string
	Teams  []string
}

// WhitelistConfig names the allowed orgs, users, and teams. An empty list
// for a given dimension means that dimension is not restricted.
type WhitelistConfig struct {
	AllowedOrgs  []string
	AllowedUsers []string
	AllowedTeams []string
}

// Allow reports whether profile passes the whitelist. A dimension with no
// configured entries is not checked; a profile matching any configured,
// non-empty dimension is allowed. If every dimension is empty, Allow
// returns true (no restriction configured).
func Allow(profile Profile, cfg WhitelistConfig) bool {
	if len(cfg.AllowedOrgs) == 0 && len(cfg.AllowedUsers) == 0 && len(cfg.AllowedTeams) == 0 {
		return true
	}

	if contains(cfg.AllowedUsers, profile.UserID) {
		return true
	}
	if contains(cfg.AllowedOrgs, profile.Org) {
		return true
	}
	for _, team := range profile.Teams {
		if contains(cfg.AllowedTeams, team) {
			return true
		}
	}
	return false
}

func contains(list []string, v string) bool {
	if v == "" {
		return false
	}
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
