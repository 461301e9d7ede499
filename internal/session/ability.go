package session

// AbilityDelta returns the ability change for a block with the given
// number of correct answers out of size, the configured questions per
// block. An empty block scores zero and lowers ability.
func AbilityDelta(correct, size int, s Settings) int {
	var accuracy float64
	if size > 0 {
		accuracy = float64(correct) / float64(size)
	}
	switch {
	case accuracy >= s.RaiseThreshold:
		return 1
	case accuracy <= s.LowerThreshold:
		return -1
	}
	return 0
}

// UpdateAbility applies AbilityDelta to ability.
func UpdateAbility(ability, correct, size int, s Settings) int {
	return ability + AbilityDelta(correct, size, s)
}

// TargetDifficulty maps ability onto the difficulty scale.
func TargetDifficulty(ability int, s Settings) int {
	return min(max(s.BaseTarget+ability, s.MinDifficulty), s.MaxDifficulty)
}
