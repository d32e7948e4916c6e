package lifecycle

import (
	"testing"
	"time"
)

func TestNewServiceHandleRejectsDuplicate(t *testing.T) {
	m := NewManager()
	if _, err := m.NewServiceHandle("worker"); err != nil {
		t.Fatalf("首次注册返回错误: %v", err)
	}
	if _, err := m.NewServiceHandle("worker"); err == nil {
		t.Fatalf("重复注册应返回错误")
	}
}

func TestShutdownClosesDoneChannel(t *testing.T) {
	m := NewManager()
	handle, _ := m.NewServiceHandle("worker")

	select {
	case <-handle.Done():
		t.Fatalf("停机前Done不应关闭")
	default:
	}

	m.Shutdown()

	select {
	case <-handle.Done():
	case <-time.After(time.Second):
		t.Fatalf("停机后Done应已关闭")
	}
}

func TestWaitWithTimeoutReportsStragglers(t *testing.T) {
	m := NewManager()
	m.NewServiceHandle("straggler")

	remaining := m.WaitWithTimeout(50 * time.Millisecond)
	if len(remaining) != 1 || remaining[0] != "straggler" {
		t.Fatalf("超时后应报告未退出的服务，实际 %v", remaining)
	}
}

func TestWaitWithTimeoutAfterClose(t *testing.T) {
	m := NewManager()
	handle, _ := m.NewServiceHandle("worker")
	handle.Close()

	remaining := m.WaitWithTimeout(time.Second)
	if len(remaining) != 0 {
		t.Fatalf("服务退出后不应有剩余，实际 %v", remaining)
	}

	// Close 可重入
	handle.Close()
}

func TestSleepInterruptedByShutdown(t *testing.T) {
	m := NewManager()
	handle, _ := m.NewServiceHandle("sleeper")

	go func() {
		time.Sleep(20 * time.Millisecond)
		m.Shutdown()
	}()

	start := time.Now()
	err := handle.Sleep(5 * time.Second)
	if err == nil {
		t.Fatalf("停机应打断休眠并返回错误")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("休眠未被及时打断，耗时 %v", time.Since(start))
	}
}

func TestSleepCompletesNormally(t *testing.T) {
	m := NewManager()
	handle, _ := m.NewServiceHandle("sleeper")

	if err := handle.Sleep(10 * time.Millisecond); err != nil {
		t.Fatalf("正常休眠不应返回错误: %v", err)
	}
}
