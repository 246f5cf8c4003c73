package identity_test

import (
	"testing"

	"github.com/filipexyz/orchestrator/internal/identity"
)

func TestAllow(t *testing.T) {
	cases := []struct {
		name    string
		profile identity.Profile
		cfg     identity.WhitelistConfig
		want    bool
	}{
		{
			name:    "no restrictions configured",
			profile: identity.Profile{UserID: "u1"},
			cfg:     identity.WhitelistConfig{},
			want:    true,
		},
		{
			name:    "user allowed",
			profile: identity.Profile{UserID: "u1"},
			cfg:     identity.WhitelistConfig{AllowedUsers: []string{"u1"}},
			want:    true,
		},
		{
			name:    "user not in list",
			profile: identity.Profile{UserID: "u2"},
			cfg:     identity.WhitelistConfig{AllowedUsers: []string{"u1"}},
			want:    false,
		},
		{
			name:    "org allowed",
			profile: identity.Profile{UserID: "u2", Org: "acme"},
			cfg:     identity.WhitelistConfig{AllowedOrgs: []string{"acme"}},
			want:    true,
		},
		{
			name:    "team allowed",
			profile: identity.Profile{UserID: "u2", Teams: []string{"platform"}},
			cfg:     identity.WhitelistConfig{AllowedTeams: []string{"platform"}},
			want:    true,
		},
		{
			name:    "none match",
			profile: identity.Profile{UserID: "u2", Org: "other", Teams: []string{"eng"}},
			cfg:     identity.WhitelistConfig{AllowedOrgs: []string{"acme"}, AllowedTeams: []string{"platform"}},
			want:    false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := identity.Allow(tc.profile, tc.cfg); got != tc.want {
				t.Errorf("Allow() = %v, want %v", got, tc.want)
			}
		})
	}
}
