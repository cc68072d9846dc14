package registry

import (
	"log"
	"sync"

	"github.com/grand-thief-cash/tvaccess/internal/application/core"
)

// 运行期依赖补丁: 业务包在 init() 里声明 "target 还要依赖 deps", 组件全部注册完、
// 生命周期排序之前统一打进去。只影响 start/stop 顺序, 不影响 builder 构建顺序。
var (
	depPatchMu sync.Mutex
	depPatches = map[string][]string{}
)

// ExtendRuntimeDependencies 给已注册组件追加运行期依赖。必须在 BuildAndRegisterAll
// 之前调用; 目标组件没注册时在应用阶段告警跳过, 不算错误。
func ExtendRuntimeDependencies(target string, deps ...string) {
	if target == "" || len(deps) == 0 {
		return
	}
	depPatchMu.Lock()
	defer depPatchMu.Unlock()
	depPatches[target] = append(depPatches[target], deps...)
}

type depExtender interface{ AddDependencies(...string) }

// applyRuntimeDepExtensions 把声明过的补丁写进组件。重名由 AddDependencies 去重。
func applyRuntimeDepExtensions(c *core.Container) {
	depPatchMu.Lock()
	defer depPatchMu.Unlock()
	for target, extra := range depPatches {
		comp, err := c.Resolve(target)
		if err != nil {
			log.Printf("registry: dependency patch target %s not registered, skipped", target)
			continue
		}
		ext, ok := comp.(depExtender)
		if !ok {
			log.Printf("registry: component %s cannot take extra dependencies, patch skipped", target)
			continue
		}
		ext.AddDependencies(extra...)
		log.Printf("registry: %s runtime deps += %v", target, extra)
	}
	// 防止二次 BuildAndRegisterAll 重复打补丁
	depPatches = map[string][]string{}
}
