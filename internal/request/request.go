package request

import (
	"net/textproto"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// CRLF 回车换行，HTTP 报文的行分隔符
const CRLF = "\r\n"

var (
	ErrMalformedRequestLine = errors.New("malformed request line")
	ErrMalformedHeader      = errors.New("malformed header")
	ErrUnsupportedMethod    = errors.New("unsupported method")
)

// Method HTTP 请求方法
type Method string

const (
	MethodGet     Method = "GET"
	MethodPost    Method = "POST"
	MethodPut     Method = "PUT"
	MethodPatch   Method = "PATCH"
	MethodDelete  Method = "DELETE"
	MethodOptions Method = "OPTIONS"
	MethodHead    Method = "HEAD"
)

// ParseMethod 大小写敏感地匹配请求方法
func ParseMethod(text string) (Method, error) {
	switch m := Method(text); m {
	case MethodGet, MethodPost, MethodPut, MethodPatch, MethodDelete, MethodOptions, MethodHead:
		return m, nil
	}
	return "", errors.Wrapf(ErrUnsupportedMethod, "%q", text)
}

func (m Method) String() string { return string(m) }

// Request 表示一个已解析的 HTTP 请求。
// 除 Params 外构造后不再修改，Params 在路由分发时填充一次。
type Request struct {
	Method   Method
	Path     string
	Protocol string // 例如 "HTTP"
	Version  string // 例如 "1.1"
	Query    map[string]string
	Headers  map[string]string
	Params   map[string]string
	Body     string
	Host     string // 为空表示没有 Host

	Logger zerolog.Logger
}

// Parse 把一次读取到的原始报文解析为 Request
func Parse(raw string) (*Request, error) {
	lines := strings.Split(raw, CRLF)

	method, target, protocol, version, err := parseRequestLine(lines[0])
	if err != nil {
		return nil, err
	}

	req := &Request{
		Method:   method,
		Protocol: protocol,
		Version:  version,
		Query:    make(map[string]string),
		Headers:  make(map[string]string),
		Params:   make(map[string]string),
		Logger:   zerolog.Nop(),
	}

	var absHost string
	req.Path, absHost = parseTarget(target, req.Query)

	// 读取请求头，直到空行
	i := 1
	for ; i < len(lines) && lines[i] != ""; i++ {
		name, value, ok := strings.Cut(lines[i], ": ")
		if !ok || name == "" {
			return nil, errors.Wrapf(ErrMalformedHeader, "%q", lines[i])
		}
		req.Headers[textproto.CanonicalMIMEHeaderKey(name)] = value
	}

	// 空行之后的一行就是整个 body
	if i+1 < len(lines) {
		req.Body = lines[i+1]
	}

	req.Host = req.Headers["Host"]
	if absHost != "" {
		req.Host = absHost
	}
	return req, nil
}

func parseRequestLine(line string) (Method, string, string, string, error) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return "", "", "", "", errors.Wrapf(ErrMalformedRequestLine, "%q", line)
	}
	method, err := ParseMethod(parts[0])
	if err != nil {
		return "", "", "", "", err
	}
	protocol, version, ok := strings.Cut(parts[2], "/")
	if !ok {
		return "", "", "", "", errors.Wrapf(ErrMalformedRequestLine, "protocol %q", parts[2])
	}
	return method, parts[1], protocol, version, nil
}

// parseTarget 拆分 path 与 query，absolute-form 时返回其中的 host
func parseTarget(target string, query map[string]string) (path, host string) {
	path, rawQuery, _ := strings.Cut(target, "?")

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		if u, err := url.Parse(path); err == nil {
			host = u.Host
			// 与 origin-form 一样保留未解码的 path
			path = u.EscapedPath()
			if path == "" {
				path = "/"
			}
		}
	}

	if rawQuery != "" {
		for _, pair := range strings.Split(rawQuery, "&") {
			kv := strings.Split(pair, "=")
			if len(kv) != 2 {
				continue
			}
			query[kv[0]] = kv[1]
		}
	}
	return path, host
}

// Header 按规范化后的名字读取请求头
func (r *Request) Header(name string) string {
	return r.Headers[textproto.CanonicalMIMEHeaderKey(name)]
}

func (r *Request) Param(name string) (string, bool) {
	v, ok := r.Params[name]
	return v, ok
}

func (r *Request) QueryValue(name string) (string, bool) {
	v, ok := r.Query[name]
	return v, ok
}

// AcceptsEncoding 判断 Accept-Encoding 中是否包含 token（逗号分隔，去掉空白）
func (r *Request) AcceptsEncoding(token string) bool {
	enc := r.Header("Accept-Encoding")
	if enc == "" {
		return false
	}
	for _, c := range strings.Split(enc, ",") {
		if strings.TrimSpace(c) == token {
			return true
		}
	}
	return false
}
