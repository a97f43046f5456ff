package vocapi

// Response is the envelope every VOC backend endpoint answers with.
type Response[T any] struct {
	Success       bool       `json:"success"`
	Data          T          `json:"data"`
	Error         *ErrorBody `json:"error,omitempty"`
	Page          int        `json:"page,omitempty"`
	Size          int        `json:"size,omitempty"`
	TotalElements int64      `json:"totalElements,omitempty"`
	TotalPages    int        `json:"totalPages,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes used by the backend in ErrorBody.Code.
const (
	CodeInvalidStatusTransition = "INVALID_STATUS_TRANSITION"
	CodeVOCNotFound             = "VOC_NOT_FOUND"
	CodeConflict                = "CONFLICT"
	CodeInvalidInput            = "INVALID_INPUT"
	CodeUnauthorized            = "UNAUTHORIZED"
	CodeInternalError           = "INTERNAL_ERROR"
)

func OK[T any](data T) Response[T] {
	return Response[T]{Success: true, Data: data}
}

func Fail(code, message string) Response[any] {
	return Response[any]{Error: &ErrorBody{Code: code, Message: message}}
}
