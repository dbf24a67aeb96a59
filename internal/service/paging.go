package service

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampPageSize(size int) int {
	if size <= 0 {
		return defaultPageSize
	}
	if size > maxPageSize {
		return maxPageSize
	}
	return size
}
