//go:build windows

package core

import (
	"context"
	"log"
	"sync"
	"syscall"
	"time"
)

// 控制台事件码, 对应 HandlerRoutine 的 dwCtrlType。
const (
	ctrlCEvent        = 0
	ctrlBreakEvent    = 1
	ctrlCloseEvent    = 2
	ctrlLogoffEvent   = 5
	ctrlShutdownEvent = 6
)

var ctrlOnce sync.Once

// InstallWindowsCtrlHandler 把控制台关闭/注销/关机事件折算成一次 cancel,
// 服务窗口被直接关掉时也能走优雅关停而不是被系统掐死。
func InstallWindowsCtrlHandler(cancel context.CancelFunc, timeout time.Duration) {
	handler := func(event uint32) uintptr {
		switch event {
		case ctrlCEvent, ctrlBreakEvent, ctrlCloseEvent, ctrlLogoffEvent, ctrlShutdownEvent:
			ctrlOnce.Do(func() {
				log.Printf("console control event %d, initiating graceful shutdown (timeout %s)", event, timeout)
				cancel()
			})
			return 1 // 已处理, 系统不再走默认路径
		}
		return 0
	}

	proc := syscall.NewLazyDLL("kernel32.dll").NewProc("SetConsoleCtrlHandler")
	if ret, _, err := proc.Call(syscall.NewCallback(handler), 1); ret == 0 {
		log.Printf("SetConsoleCtrlHandler registration failed: %v", err)
	}
}
