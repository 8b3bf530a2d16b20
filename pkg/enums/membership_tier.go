package enums

import "fmt"

// MembershipTier drives the loyalty earn rate.
type MembershipTier string

const (
	MembershipTierClassic  MembershipTier = "classic"
	MembershipTierGold     MembershipTier = "gold"
	MembershipTierPlatinum MembershipTier = "platinum"
)

var validMembershipTiers = []MembershipTier{
	MembershipTierClassic,
	MembershipTierGold,
	MembershipTierPlatinum,
}

func (m MembershipTier) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MembershipTier.
func (m MembershipTier) IsValid() bool {
	for _, candidate := range validMembershipTiers {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMembershipTier converts raw input into a MembershipTier.
func ParseMembershipTier(value string) (MembershipTier, error) {
	for _, candidate := range validMembershipTiers {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid membership tier %q", value)
}
