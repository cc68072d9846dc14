package api

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/grand-thief-cash/tvaccess/internal/application"
	"github.com/grand-thief-cash/tvaccess/internal/application/components/http_server"
	"github.com/grand-thief-cash/tvaccess/internal/application/core"
	bizConsts "github.com/grand-thief-cash/tvaccess/internal/consts"
)

// Version is stamped by the build; see cmd/tvaccess-server.
var Version = "dev"

type MetaController struct {
	*core.BaseComponent
}

func NewMetaController() *MetaController {
	return &MetaController{BaseComponent: core.NewBaseComponent(bizConsts.COMP_CTRL_META)}
}

func init() {
	http_server.RegisterRoutes(func(r chi.Router, c *core.Container) error {
		comp, err := c.Resolve(bizConsts.COMP_CTRL_META)
		if err != nil {
			return err
		}
		ctrl, ok := comp.(*MetaController)
		if !ok {
			return fmt.Errorf("meta_ctrl type assertion failed")
		}
		r.Get("/api/v1/meta", ctrl.getMeta)
		r.Get("/api/v1/meta/health", ctrl.componentHealth(c))
		return nil
	})
}

// componentHealth 逐个跑组件健康检查。有组件挂了整体 503, 探针可以直接打这里。
func (c *MetaController) componentHealth(container *core.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := map[string]string{}
		healthy := true
		for name, comp := range container.ListRegistered() {
			if err := comp.HealthCheck(); err != nil {
				status[name] = err.Error()
				healthy = false
				continue
			}
			status[name] = "ok"
		}
		code := http.StatusOK
		if !healthy {
			code = http.StatusServiceUnavailable
		}
		writeJSONStatus(w, code, map[string]any{"healthy": healthy, "components": status})
	}
}

// getMeta 返回版本与已配置的网关客户端名，便于运维核对 provider.client_name。
func (c *MetaController) getMeta(w http.ResponseWriter, r *http.Request) {
	var names []string
	if cfg := application.GetApp().GetConfig(); cfg != nil && cfg.HTTPClient != nil {
		for k := range cfg.HTTPClient.Clients {
			if k == "default" {
				continue
			}
			names = append(names, k)
		}
	}
	sort.Strings(names)
	writeJSON(w, map[string]any{
		"version": Version,
		"clients": names,
	})
}
