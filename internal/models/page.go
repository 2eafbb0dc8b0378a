package models

// Result codes carried in the PageResult envelope
const (
	CodeOK             = 0
	CodeInvalidRequest = 400
	CodeNotFound       = 404
	CodeRateLimited    = 429
	CodeInternal       = 500
)

// Envelope messages
const (
	MessageOK     = "OK"
	MessageNoMore = "No more data!"
)

// RecordsPerPage is the fixed page size of the order sequence
const RecordsPerPage = 100

// PageItems is the result body of a page fetch
type PageItems struct {
	NextPage   bool    `json:"nextPage"`
	ResultSize int     `json:"resultSize"`
	Items      []Order `json:"items"`
}

// PageResult is the response envelope of the order data service
type PageResult struct {
	Error   int       `json:"error"`
	Message string    `json:"message"`
	Result  PageItems `json:"result"`
}

// OK reports whether the envelope carries a successful result
func (r *PageResult) OK() bool {
	return r != nil && r.Error == CodeOK
}

// NewPageResult builds a successful envelope for one page
func NewPageResult(items []Order, nextPage bool) *PageResult {
	if items == nil {
		items = []Order{}
	}
	message := MessageOK
	if !nextPage {
		message = MessageNoMore
	}
	return &PageResult{
		Error:   CodeOK,
		Message: message,
		Result: PageItems{
			NextPage:   nextPage,
			ResultSize: len(items),
			Items:      items,
		},
	}
}

// NewErrorResult builds a failed envelope
func NewErrorResult(code int, message string) *PageResult {
	return &PageResult{
		Error:   code,
		Message: message,
		Result:  PageItems{Items: []Order{}},
	}
}

// ClampPage maps missing or non-positive page numbers to the first page
func ClampPage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// HasNextPage reports whether records exist beyond the given page
func HasNextPage(page int, total int64) bool {
	return int64(RecordsPerPage)*int64(page) < total
}
