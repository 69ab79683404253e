package utils

// CalculateTotalPages rounds up; an empty result has zero pages.
func CalculateTotalPages(total int64, perPage int) int {
	if perPage < 1 || total < 1 {
		return 0
	}
	return int((total + int64(perPage) - 1) / int64(perPage))
}

// CalculateOffset converts a 1-based page into a row offset.
func CalculateOffset(page, perPage int) int {
	if page < 1 || perPage < 1 {
		return 0
	}
	return (page - 1) * perPage
}
