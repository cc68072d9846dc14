package prometheus

import "sync"

var (
	globalMu        sync.RWMutex
	globalComponent *Component
)

func registerGlobal(c *Component) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalComponent = c
}

// C 返回全局注册的组件; 未启用时为 nil, 调用方按 nil 降级为不采集。
func C() *Component {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalComponent
}
