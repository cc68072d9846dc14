package http_server

import (
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// RouteRegisterFunc 把路由挂到 router 上; 容器用来解析 controller 组件。
type RouteRegisterFunc func(r chi.Router, c *core.Container) error

var (
	registryMu sync.RWMutex
	registrars []RouteRegisterFunc
)

// RegisterRoutes 登记一组路由, 由 controller 的 init() 调用, 服务启动时统一挂载。
func RegisterRoutes(fn RouteRegisterFunc) {
	if fn == nil {
		return
	}
	registryMu.Lock()
	registrars = append(registrars, fn)
	registryMu.Unlock()
}

func snapshot() []RouteRegisterFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()
	cp := make([]RouteRegisterFunc, len(registrars))
	copy(cp, registrars)
	return cp
}
