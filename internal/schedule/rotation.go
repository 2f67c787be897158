package schedule

// QuestionIDs returns perDay ids in [1, poolSize] for the given day.
// Each position wraps independently, so a set can run past poolSize and
// continue from 1. When poolSize < perDay the result repeats ids.
func QuestionIDs(dayIndex, poolSize, perDay int) []int {
	if poolSize < 1 || perDay < 1 {
		return nil
	}
	if dayIndex < 1 {
		dayIndex = 1
	}
	start := ((dayIndex - 1) % poolSize) * (perDay % poolSize) % poolSize
	ids := make([]int, perDay)
	for i := 0; i < perDay; i++ {
		ids[i] = (start+i)%poolSize + 1
	}
	return ids
}

// Rotation holds the pool dimensions used by QuestionIDs.
type Rotation struct {
	PoolSize int
	PerDay   int
}

func (r Rotation) QuestionIDs(dayIndex int) []int {
	return QuestionIDs(dayIndex, r.PoolSize, r.PerDay)
}
