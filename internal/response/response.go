package response

import (
	"bytes"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/HnustLzh2/http-server/internal/request"
)

const crlf = "\r\n"

// Status 支持的响应状态码
type Status int

const (
	StatusOK                  Status = 200
	StatusCreated             Status = 201
	StatusBadRequest          Status = 400
	StatusNotFound            Status = 404
	StatusInternalServerError Status = 500
)

// Line 返回状态行中 "200 OK" 这一部分
func (s Status) Line() string {
	switch s {
	case StatusOK:
		return "200 OK"
	case StatusCreated:
		return "201 Created"
	case StatusBadRequest:
		return "400 Bad Request"
	case StatusNotFound:
		return "404 Not Found"
	case StatusInternalServerError:
		return "500 Internal Server Error"
	default:
		return strconv.Itoa(int(s))
	}
}

// ContentType 响应体类型
type ContentType string

const (
	TextPlain   ContentType = "text/plain"
	JSON        ContentType = "application/json"
	OctetStream ContentType = "application/octet-stream"
	URLEncoded  ContentType = "application/x-www-form-urlencoded"
	Multipart   ContentType = "multipart/form-data"
)

// Response 由 handler 修改，最后序列化写回连接
type Response struct {
	Status   Status
	Protocol string
	Version  string

	headers map[string]string
	body    []byte
}

// New 创建一个 200 OK、空 body 的响应
func New(protocol, version string) *Response {
	return &Response{
		Status:   StatusOK,
		Protocol: protocol,
		Version:  version,
		headers: map[string]string{
			"Content-Length": "0",
			"Content-Type":   string(TextPlain),
		},
	}
}

// For 使用请求的协议和版本创建响应
func For(req *request.Request) *Response {
	return New(req.Protocol, req.Version)
}

func (r *Response) SetStatus(s Status) { r.Status = s }

// SetBody 替换 body 并重新计算 Content-Length，contentType 为空时使用 text/plain
func (r *Response) SetBody(body []byte, contentType ContentType) {
	r.body = body
	r.SetHeader("Content-Length", strconv.Itoa(len(body)))
	if contentType == "" {
		contentType = TextPlain
	}
	r.SetHeader("Content-Type", string(contentType))
}

func (r *Response) SetBodyString(body string, contentType ContentType) {
	r.SetBody([]byte(body), contentType)
}

// SetJSON 把 v 编码为 JSON 作为 body
func (r *Response) SetJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode json body")
	}
	r.SetBody(b, JSON)
	return nil
}

// SetHeader 直接覆盖，不支持多值
func (r *Response) SetHeader(name, value string) {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[name] = value
}

func (r *Response) Header(name string) string {
	return r.headers[name]
}

// Headers 返回头部的副本
func (r *Response) Headers() map[string]string {
	out := make(map[string]string, len(r.headers))
	for k, v := range r.headers {
		out[k] = v
	}
	return out
}

func (r *Response) Body() []byte { return r.body }

// Serialize 生成完整的响应报文。Content-Length 在这里按当前 body 重新计算。
func (r *Response) Serialize() []byte {
	r.SetHeader("Content-Length", strconv.Itoa(len(r.body)))

	names := make([]string, 0, len(r.headers))
	for name := range r.headers {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	buf.WriteString(r.Protocol + "/" + r.Version + " " + r.Status.Line() + crlf)
	for _, name := range names {
		buf.WriteString(name + ": " + r.headers[name] + crlf)
	}
	buf.WriteString(crlf)
	buf.Write(r.body)
	return buf.Bytes()
}

// WriteTo 序列化后写入 w
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(r.Serialize())
	return int64(n), errors.Wrap(err, "write response")
}
