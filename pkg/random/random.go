// Package random 把引擎需要的随机性隔离在一个可注入的接口后面。
// 衰减引擎的生死判定和对战的暴击/闪避判定都只通过Source取随机数，
// 测试时注入固定序列即可获得完全确定的回放。
package random

import (
	"crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"
)

// Source 是引擎使用的随机数来源。
// 实现必须是并发安全的，或由调用方保证串行使用。
type Source interface {
	// Float64 返回[0.0, 1.0)区间内的随机数。
	Float64() float64
	// Intn 返回[0, n)区间内的随机整数。n必须为正数。
	Intn(n int) int
}

// lockedSource 包装math/rand.Rand并加锁，得到一个并发安全的Source。
type lockedSource struct {
	mu sync.Mutex
	r  *mathrand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

func (s *lockedSource) Intn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Intn(n)
}

// NewSeeded 用给定的种子创建一个确定性的Source。
// 相同的种子产生相同的序列，用于测试和对战回放。
func NewSeeded(seed int64) Source {
	return &lockedSource{r: mathrand.New(mathrand.NewSource(seed))}
}

// NewSecure 用crypto/rand生成的种子创建一个Source。
// 这是服务器运行时的默认来源。如果无法读取系统熵源，
// 说明运行环境已严重异常，直接panic（配置级致命错误，不是游戏错误）。
func NewSecure() Source {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("无法从系统熵源生成随机种子: " + err.Error())
	}
	seed := int64(binary.BigEndian.Uint64(b[:]))
	return NewSeeded(seed)
}
