package main

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/HnustLzh2/http-server/internal/request"
	"github.com/HnustLzh2/http-server/internal/response"
)

// message JSON 错误体，例如 {"message":"File not found: a.txt"}
type message struct {
	Message string `json:"message"`
}

// handlers 内置路由的处理函数，baseDir 是 --directory 传入的目录
type handlers struct {
	baseDir string
}

// 根路径：返回 Hello, World!
func (h *handlers) root(req *request.Request) (*response.Response, error) {
	res := response.For(req)
	res.SetBodyString("Hello, World!", "")
	return res, nil
}

// /user-agent：把 User-Agent 原样返回
func (h *handlers) userAgent(req *request.Request, res *response.Response) error {
	res.SetBodyString(req.Header("User-Agent"), "")
	return nil
}

// /echo/:content
func (h *handlers) echo(req *request.Request, res *response.Response) error {
	content, ok := req.Param("content")
	if !ok {
		res.SetStatus(response.StatusBadRequest)
		return res.SetJSON(message{"Param content is required"})
	}
	res.SetBodyString(content, "")
	return nil
}

// GET /files/:filename 读文件。filename 不做任何校验，目录穿越由外层负责。
func (h *handlers) readFile(req *request.Request, res *response.Response) error {
	filename, ok := req.Param("filename")
	if !ok {
		res.SetStatus(response.StatusBadRequest)
		return res.SetJSON(message{"Param filename is required"})
	}

	content, err := os.ReadFile(filepath.Join(h.baseDir, filename))
	switch {
	case err == nil:
		res.SetBody(content, response.OctetStream)
		return nil
	case errors.Is(err, os.ErrNotExist):
		res.SetStatus(response.StatusNotFound)
		return res.SetJSON(message{"File not found: " + filename})
	default:
		req.Logger.Error().Err(err).Str("file", filename).Msg("读文件失败")
		res.SetStatus(response.StatusInternalServerError)
		return res.SetJSON(message{"Internal Server Error"})
	}
}

// POST /files/:filename 把请求体写入文件
func (h *handlers) writeFile(req *request.Request, res *response.Response) error {
	filename, ok := req.Param("filename")
	if !ok {
		res.SetStatus(response.StatusBadRequest)
		return res.SetJSON(message{"Param filename is required"})
	}

	if err := os.WriteFile(filepath.Join(h.baseDir, filename), []byte(req.Body), 0o644); err != nil {
		req.Logger.Error().Err(err).Str("file", filename).Msg("写文件失败")
		res.SetStatus(response.StatusInternalServerError)
		return res.SetJSON(message{"Internal Server Error"})
	}
	res.SetStatus(response.StatusCreated)
	return nil
}
