package services

import "github.com/dmitrijs2005/bucketvault/internal/common"

// UnlimitedBuckets disables the per-user bucket quota.
const UnlimitedBuckets = common.UnlimitedBuckets

// CheckQuota fails with *common.QuotaExceededError when a user already
// holding current connections may not add another under limit.
func CheckQuota(current, limit int) error {
	if limit == UnlimitedBuckets {
		return nil
	}
	if current >= limit {
		return &common.QuotaExceededError{Current: current, Max: limit}
	}
	return nil
}

// DefaultDecision says how a new connection affects the default flag.
type DefaultDecision struct {
	MakeDefault bool
	ClearOthers bool
}

// DecideDefault evaluates the default-bucket rule for a user who already
// has existing connections:
//
//	existing == 0            -> default, nothing to clear
//	existing > 0, requested  -> default, clear the others first
//	existing > 0, !requested -> not default
func DecideDefault(existing int, requested bool) DefaultDecision {
	switch {
	case existing == 0:
		return DefaultDecision{MakeDefault: true}
	case requested:
		return DefaultDecision{MakeDefault: true, ClearOthers: true}
	default:
		return DefaultDecision{}
	}
}
