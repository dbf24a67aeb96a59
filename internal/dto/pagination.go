package dto

// PaginationMeta describes pagination details for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta derives the page count from total and pageSize.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total, TotalPages: 1}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}

// Warning reports a non fatal condition next to a result.
type Warning struct {
	Item        string `json:"item"`
	ItemID      uint   `json:"itemid"`
	WarningCode string `json:"warningcode"`
	Message     string `json:"message"`
}
