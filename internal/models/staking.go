package models

import "time"

// StakingPool aggregates token contributions under a pool key. Invariant:
// TotalStaked always equals the sum of Participants values; the two are
// only ever incremented together, atomically. Unstaking is out of scope.
type StakingPool struct {
	ID           string           `json:"id"`
	Key          string           `json:"key"`
	Name         string           `json:"name"`
	TotalStaked  int64            `json:"total_staked"`
	Participants map[string]int64 `json:"participants"`

	Rev       int64     `json:"rev"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
