package utils

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func Max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Paginate normalizes a 1-based page number and a page size into an offset
// and limit, clamping the limit into [1, maxLimit].
func Paginate(page, limit, maxLimit int) (offset int, size int) {
	if page < 1 {
		page = 1
	}
	size = Max(1, Min(limit, maxLimit))
	return (page - 1) * size, size
}
