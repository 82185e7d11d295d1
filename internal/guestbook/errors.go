package guestbook

import (
	"errors"
	"fmt"
	"net/http"
)

// Caller-facing messages. These are written verbatim into the JSON error body.
const (
	MsgRequired         = "作者和内容不能为空"
	MsgTooLong          = "留言内容不能超过500字"
	MsgBadRequestBody   = "请求体格式错误"
	MsgMisconfigured    = "服务器配置错误"
	MsgUpstreamAuth     = "GitHub认证失败，请检查令牌权限"
	MsgSubmitFailed     = "提交留言失败"
	MsgSubmitted        = "留言提交成功"
	MsgMethodNotAllowed = "Method not allowed"
	MsgInternal         = "Internal Server Error"
)

// Kind classifies a submission failure. Each kind maps to one HTTP status.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindMethodNotAllowed
	KindConfiguration
	KindUpstreamAuth
	KindUpstream
	KindUpstreamWrite
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindConfiguration:
		return "configuration"
	case KindUpstreamAuth:
		return "upstream_auth"
	case KindUpstream:
		return "upstream"
	case KindUpstreamWrite:
		return "upstream_write"
	default:
		return "unknown"
	}
}

// HTTPStatus is the response status for a failure of this kind.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified submission failure. Msg is safe to show the caller.
// Status and Body describe the upstream response when there was one; they
// are for logs only.
type Error struct {
	Kind   Kind
	Msg    string
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the caller-facing message for err. Unclassified errors
// never leak their text.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return MsgInternal
}

// Invalid builds a KindValidation error.
func Invalid(msg string) *Error {
	return &Error{Kind: KindValidation, Msg: msg}
}
