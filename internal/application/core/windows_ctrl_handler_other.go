//go:build !windows

package core

import (
	"context"
	"time"
)

// InstallWindowsCtrlHandler 在非 Windows 平台是空操作。调用方用 runtime.GOOS
// 做运行期判断, 符号本身得在所有平台可见才能编译。
func InstallWindowsCtrlHandler(context.CancelFunc, time.Duration) {}
