// Package router 实现按路径片段组织的前缀树路由，支持 :name 形式的参数。
//
// 参数值不是按树的深度取出，而是记录 pattern 中 ':' 所在的字符下标，
// 请求到来时从实际 path 的同一位置开始取到下一个 '/' 为止。
// 只有当参数之前的字面片段在 pattern 与 path 中长度一致时结果才正确，
// 本路由支持的 pattern 形状（参数只占整段）满足这一点。
package router

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/HnustLzh2/http-server/internal/request"
	"github.com/HnustLzh2/http-server/internal/response"
)

const (
	wildcard = "*"
	rootKey  = "/"
)

var paramPattern = regexp.MustCompile(`:([a-z0-9_]+)`)

// HandlerFunc 路由处理函数：读取请求，修改响应，可能返回错误
type HandlerFunc func(req *request.Request, res *response.Response) error

// Returning 把 "返回一个新响应" 形式的处理函数适配为 HandlerFunc
func Returning(fn func(req *request.Request) (*response.Response, error)) HandlerFunc {
	return func(req *request.Request, res *response.Response) error {
		out, err := fn(req)
		if err != nil {
			return err
		}
		if out != nil {
			*res = *out
		}
		return nil
	}
}

// Offsets 参数名 -> 参数值在 path 中开始的字符下标
type Offsets map[string]int

// Extract 在实际请求 path 上按下标取出每个参数的值
func (o Offsets) Extract(path string) map[string]string {
	params := make(map[string]string, len(o))
	if len(o) == 0 {
		return params
	}
	runes := []rune(path)
	for name, pos := range o {
		if pos < 0 || pos > len(runes) {
			params[name] = ""
			continue
		}
		end := pos
		for end < len(runes) && runes[end] != '/' {
			end++
		}
		params[name] = string(runes[pos:end])
	}
	return params
}

type node struct {
	mu       sync.RWMutex
	children map[string]*node
	handlers map[request.Method]HandlerFunc
	params   Offsets
}

func newNode() *node {
	return &node{
		children: make(map[string]*node),
		handlers: make(map[request.Method]HandlerFunc),
		params:   make(Offsets),
	}
}

// child 返回 key 对应的子节点，不存在时创建
func (n *node) child(key string) *node {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.children[key]
	if !ok {
		c = newNode()
		n.children[key] = c
	}
	return c
}

// match 优先字面匹配，其次通配
func (n *node) match(segment string) *node {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if c, ok := n.children[segment]; ok {
		return c
	}
	return n.children[wildcard]
}

func (n *node) offsets() Offsets {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make(Offsets, len(n.params))
	for k, v := range n.params {
		out[k] = v
	}
	return out
}

// Route 一条已注册的路由
type Route struct {
	Method  request.Method
	Pattern string
}

// Router 持有前缀树的根节点。注册与查询可以并发进行，每个节点各自加读写锁。
type Router struct {
	root *node

	mu     sync.Mutex
	routes map[Route]struct{}
}

// New 创建一个空路由器
func New() *Router {
	return &Router{
		root:   newNode(),
		routes: make(map[Route]struct{}),
	}
}

// Define 注册 method + pattern，同一 method 和 pattern 重复注册时后者覆盖前者
func (r *Router) Define(method request.Method, pattern string, handler HandlerFunc) {
	offsets := make(Offsets)
	for _, loc := range paramPattern.FindAllStringSubmatchIndex(pattern, -1) {
		name := pattern[loc[2]:loc[3]]
		offsets[name] = utf8.RuneCountInString(pattern[:loc[0]])
	}
	normalized := paramPattern.ReplaceAllString(pattern, wildcard)

	current := r.root
	for _, segment := range strings.Split(normalized, "/") {
		if segment == "" {
			segment = rootKey
		}
		current = current.child(segment)
	}

	current.mu.Lock()
	for name, pos := range offsets {
		current.params[name] = pos
	}
	current.handlers[method] = handler
	current.mu.Unlock()

	r.mu.Lock()
	r.routes[Route{Method: method, Pattern: normalized}] = struct{}{}
	r.mu.Unlock()
}

// Resolve 查找 method + path 对应的 handler。
// 中途无法匹配时返回 nil 和已到达最深节点上的参数下标，调用方应把 nil 当作未找到。
func (r *Router) Resolve(method request.Method, path string) (HandlerFunc, Offsets) {
	current := r.root
	for _, segment := range strings.Split(path, "/") {
		if segment == "" {
			segment = rootKey
		}
		next := current.match(segment)
		if next == nil {
			return nil, current.offsets()
		}
		current = next
	}

	current.mu.RLock()
	handler := current.handlers[method]
	current.mu.RUnlock()
	return handler, current.offsets()
}

// Routes 按 pattern、method 排序返回所有已注册路由
func (r *Router) Routes() []Route {
	r.mu.Lock()
	out := make([]Route, 0, len(r.routes))
	for rt := range r.routes {
		out = append(out, rt)
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pattern != out[j].Pattern {
			return out[i].Pattern < out[j].Pattern
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func (r *Router) Get(pattern string, h HandlerFunc) { r.Define(request.MethodGet, pattern, h) }
func (r *Router) Post(pattern string, h HandlerFunc) { r.Define(request.MethodPost, pattern, h) }
func (r *Router) Put(pattern string, h HandlerFunc) { r.Define(request.MethodPut, pattern, h) }
func (r *Router) Patch(pattern string, h HandlerFunc) { r.Define(request.MethodPatch, pattern, h) }
func (r *Router) Delete(pattern string, h HandlerFunc) { r.Define(request.MethodDelete, pattern, h) }
func (r *Router) Options(pattern string, h HandlerFunc) { r.Define(request.MethodOptions, pattern, h) }
func (r *Router) Head(pattern string, h HandlerFunc) { r.Define(request.MethodHead, pattern, h) }
