package cache

import "sync"

type sharedState struct {
	once sync.Once
	svc  *Service
	err  error
}

var shared = &sharedState{}

// Shared 返回进程级共享的 Service。首次调用时执行 build 构造，之后的调用忽略 build
// 并返回同一结果（包括构造失败的错误）。
func Shared(build func() (*Service, error)) (*Service, error) {
	state := shared
	state.once.Do(func() {
		state.svc, state.err = build()
	})
	return state.svc, state.err
}
