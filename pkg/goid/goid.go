package goid

import (
	"runtime"

	"go.uber.org/zap"
)

// GetGID 获取当前 goroutine 的 ID，栈信息形如 "goroutine 123 [running]:\n"
func GetGID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	var id uint64
	for i := len("goroutine "); i < len(b); i++ {
		c := b[i]
		if c < '0' || c > '9' {
			break
		}
		id = id*10 + uint64(c-'0')
	}
	return id
}

// Field 以 zap 字段形式返回当前 goroutine ID
func Field() zap.Field {
	return zap.Uint64("goid", GetGID())
}
