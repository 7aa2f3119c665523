package main

import (
	"github.com/HnustLzh2/http-server/internal/router"
)

// registerRoutes 注册所有路由。
// 参数只能占据一整段，例如 "/files/:filename"，不支持 "/files/a-:name"。
func registerRoutes(r *router.Router, baseDir string) {
	h := &handlers{baseDir: baseDir}

	// 根路径 "/"，使用返回新响应的写法
	r.Get("/", router.Returning(h.root))
	r.Get("/user-agent", h.userAgent)
	r.Get("/echo/:content", h.echo)
	// /files/:filename 同时支持读和写
	r.Get("/files/:filename", h.readFile)
	r.Post("/files/:filename", h.writeFile)
}
