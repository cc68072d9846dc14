// hooks/default.go
package hooks

import (
	"context"
	"log"
	"os"
	"runtime"
)

// 全局钩子管理器, App 的 LifecycleManager 挂在它上面
var globalHookManager = NewManager()

func init() {
	// 进程基本信息在任何组件之前打一行, 排障时先看这里
	err := RegisterHook("runtime_info", BeforeStart, func(ctx context.Context) error {
		log.Printf("starting pid=%d go=%s gomaxprocs=%d", os.Getpid(), runtime.Version(), runtime.GOMAXPROCS(0))
		return nil
	}, 100)
	if err != nil {
		log.Printf("register runtime_info hook: %v", err)
	}
}

// RegisterHook 向全局钩子管理器注册钩子
func RegisterHook(name string, phase Phase, function HookFunc, priority int) error {
	return globalHookManager.Register(&Hook{
		Name:     name,
		Phase:    phase,
		Function: function,
		Priority: priority,
	})
}

func GetGlobalHookManager() *Manager {
	return globalHookManager
}
