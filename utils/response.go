package utils

import "github.com/gin-gonic/gin"

// FieldError names an invalid request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Pagination is the listing envelope shared by every paginated endpoint.
// The total is emitted under a resource specific key such as totalPosts.
type Pagination struct {
	CurrentPage int
	TotalPages  int
	Total       int64
	TotalKey    string
	HasNext     bool
	HasPrev     bool
}

// NewPagination derives page metadata from page, pageSize and total.
func NewPagination(page, pageSize int, total int64, totalKey string) Pagination {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return Pagination{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		TotalKey:    totalKey,
		HasNext:     page < totalPages,
		HasPrev:     page > 1,
	}
}

// H renders the pagination object.
func (p Pagination) H() gin.H {
	return gin.H{
		"currentPage": p.CurrentPage,
		"totalPages":  p.TotalPages,
		p.TotalKey:    p.Total,
		"hasNext":     p.HasNext,
		"hasPrev":     p.HasPrev,
	}
}

// Respond writes {message, ...payload} with the given status code. An empty message is omitted.
func Respond(ctx *gin.Context, status int, message string, payload gin.H) {
	body := gin.H{}
	if message != "" {
		body["message"] = message
	}
	for k, v := range payload {
		body[k] = v
	}
	ctx.JSON(status, body)
}

// Error writes an error body, attaching field errors when present.
func Error(ctx *gin.Context, status int, message string, fields ...FieldError) {
	body := gin.H{"message": message}
	if len(fields) > 0 {
		body["errors"] = fields
	}
	ctx.JSON(status, body)
}
