package response

// Response represents a standard API response format
type Response struct {
	Status     string      `json:"status"`      // "success" or "error"
	StatusCode int         `json:"status_code"` // HTTP status code
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// ListResponse is the envelope of paginated list endpoints
type ListResponse struct {
	Status int         `json:"status"`
	Data   interface{} `json:"data"`
	Total  int64       `json:"total"`
	Page   int         `json:"page"`
	Limit  int         `json:"limit"`
	Pages  int         `json:"pages"`
}

// Success returns a standard success response wrapping the data
func Success(statusCode int, data interface{}) Response {
	return Response{
		Status:     "success",
		StatusCode: statusCode,
		Data:       data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(statusCode int, err string) Response {
	return Response{
		Status:     "error",
		StatusCode: statusCode,
		Error:      err,
	}
}

// List wraps one page of rows. pages is at least 1 so an empty result still renders a pager.
func List(statusCode int, data interface{}, total int64, page, limit int) ListResponse {
	pages := 1
	if limit > 0 && total > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return ListResponse{
		Status: statusCode,
		Data:   data,
		Total:  total,
		Page:   page,
		Limit:  limit,
		Pages:  pages,
	}
}
