package dto

// Response is the envelope of every JSON body the service writes
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail describes one rejected request field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta describes the page a list response holds
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// DefaultPageSize applies when a list request names none
const DefaultPageSize = 20

func OK(data any) Response {
	return Response{Success: true, Data: data}
}

// Page wraps one page of a list. Non-positive page and size fall back to
// the first page of DefaultPageSize.
func Page(items any, total int64, page, size int) Response {
	if size <= 0 {
		size = DefaultPageSize
	}
	page = max(page, 1)
	pages := int((total + int64(size) - 1) / int64(size))
	return Response{
		Success: true,
		Data:    items,
		Meta:    &Meta{Total: total, Page: page, PageSize: size, TotalPages: pages},
	}
}

// Fail is an error body; requestID may be empty outside a request
func Fail(code, message, requestID string) Response {
	return Response{Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID}}
}

// Invalid is the 400 body for rejected fields
func Invalid(requestID string, details []ValidationDetail) Response {
	resp := Fail(ErrCodeValidation, "Request validation failed", requestID)
	resp.Error.Details = details
	return resp
}
