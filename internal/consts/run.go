package consts

// RunStatus 表示批量运行的状态枚举，防止魔法字符串。
type RunStatus string

const (
	RunPending   RunStatus = "PENDING"   // 已接收，等待执行
	RunRunning   RunStatus = "RUNNING"   // 正在执行
	RunCompleted RunStatus = "COMPLETED" // 全部操作已结束
	RunFailed    RunStatus = "FAILED"    // 因内部错误中止
)

const (
	DEFAULT_JSON_ARR = "[]"
)
