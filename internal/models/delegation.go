package models

import "math/big"

type EventKind string

const (
	KindDelegate   EventKind = "delegate"
	KindRedelegate EventKind = "redelegate"
)

// DelegationEvent is a decoded stake delegation taken from a stream frame or a
// backfill record. StakeMotes is kept as a big.Int since amounts can exceed 64 bits.
type DelegationEvent struct {
	Delegator  string
	Validator  string
	StakeMotes *big.Int
	Kind       EventKind
}

// RewardJob is one unit of work for the reward pipeline. StakeCSPR is the
// integer CSPR amount (motes / 10^9). Jobs are not persisted.
type RewardJob struct {
	Delegator string
	StakeCSPR *big.Int
}
