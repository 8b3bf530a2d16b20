package enums

import "fmt"

// PointTransactionType labels rows in the append-only points ledger.
type PointTransactionType string

const (
	PointTransactionEarned   PointTransactionType = "earned"
	PointTransactionRedeemed PointTransactionType = "redeemed"
)

var validPointTransactionTypes = []PointTransactionType{
	PointTransactionEarned,
	PointTransactionRedeemed,
}

func (p PointTransactionType) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PointTransactionType.
func (p PointTransactionType) IsValid() bool {
	for _, candidate := range validPointTransactionTypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePointTransactionType converts raw input into a PointTransactionType.
func ParsePointTransactionType(value string) (PointTransactionType, error) {
	for _, candidate := range validPointTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid point transaction type %q", value)
}
