package itempool

// Eligible returns the items of the pool that have not been attempted.
// The result is computed fresh on every call since the attempted set grows
// between blocks.
func Eligible(pool Accessor, attempted map[string]bool) []Item {
	if len(attempted) == 0 {
		return pool.All()
	}
	return pool.Where(func(it Item) bool { return !attempted[it.ID] })
}
