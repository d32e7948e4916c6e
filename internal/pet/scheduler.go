package pet

import (
	"fmt"
	"sync"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/metadata"
	"github.com/MoyuArc/pet-arena-backend/pkg/lifecycle"
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
)

// StartDecayScheduler 启动后台Goroutine定期对所有存活宠物执行属性衰减。
// 每轮扫描按上次扫描时间推算整小时数，停机期间积累的衰减会在下一轮补齐。
func StartDecayScheduler(handle *lifecycle.Handle, rng random.Source) {
	defer handle.Close()
	fmt.Println("宠物衰减调度器已启动。")

	for {
		if err := handle.Sleep(tuning.DecayInterval); err != nil {
			fmt.Println("衰减调度器: 休眠被中断，正在关闭...")
			return
		}

		if err := RunDecaySweep(rng); err != nil {
			fmt.Printf("衰减调度器错误: %v\n", err)
		}
	}
}

// RunDecaySweep 执行一轮完整的衰减扫描。
// 包括三个阶段: 唤醒到点的宠物、应用衰减、被动回血。
func RunDecaySweep(rng random.Source) error {
	now := time.Now()

	lastSweep, err := metadata.GetLastDecaySweepAt(database.DB)
	if err != nil {
		return fmt.Errorf("无法读取上次扫描时间: %w", err)
	}

	hours := 1
	checkpoint := now
	if !lastSweep.IsZero() {
		elapsed := int(now.Sub(lastSweep).Hours())
		if elapsed < 1 {
			// 不足一个整小时，等下一轮
			return nil
		}
		hours = elapsed
		// 检查点只前进折算过的整小时数，零头留到下一轮继续累计
		checkpoint = lastSweep.Add(time.Duration(hours) * time.Hour)
	}

	wakeSleepersDue(now)

	ids, err := ListLivePetIDs()
	if err != nil {
		return fmt.Errorf("无法列出存活宠物: %w", err)
	}

	var processed, terminal int64
	var mu sync.Mutex

	// 固定大小的工作池并行处理，单只宠物内部仍然串行
	jobs := make(chan uint)
	var wg sync.WaitGroup
	workers := tuning.DecayWorkers
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				becameTerminal, err := decayOnePet(id, hours, rng)
				if err != nil {
					fmt.Printf("衰减调度器警告: 处理宠物 %d 失败: %v\n", id, err)
					continue
				}
				mu.Lock()
				processed++
				if becameTerminal {
					terminal++
				}
				mu.Unlock()
			}
		}()
	}
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	if err := metadata.SetLastDecaySweepAt(database.DB, checkpoint); err != nil {
		return fmt.Errorf("无法记录扫描时间: %w", err)
	}

	fmt.Printf("衰减调度器: 本轮处理 %d 只宠物 (折算 %d 小时)，其中 %d 只进入终局状态。\n", processed, hours, terminal)
	return nil
}

// decayOnePet 在宠物锁内对单只宠物执行衰减和被动回血
func decayOnePet(petID uint, hours int, rng random.Source) (becameTerminal bool, err error) {
	LockPet(petID)
	defer UnlockPet(petID)

	p, err := GetPetByID(petID)
	if err != nil {
		return false, err
	}

	changes, err := p.ApplyDecay(hours, rng)
	if err != nil {
		// 持有锁之前刚好进入终局状态，不算错误
		return false, nil
	}
	p.PassiveHeal()

	if err := SavePet(p); err != nil {
		return false, err
	}
	UpdateMatchmakingEntry(p)
	PushNotifications(p, changes)
	return !p.IsAlive(), nil
}

// wakeSleepersDue 唤醒所有睡眠时间已到的宠物
func wakeSleepersDue(now time.Time) {
	ids, err := ListSleepersDueIDs(now)
	if err != nil {
		fmt.Printf("衰减调度器警告: 无法列出待唤醒宠物: %v\n", err)
		return
	}

	for _, id := range ids {
		func() {
			LockPet(id)
			defer UnlockPet(id)

			p, err := GetPetByID(id)
			if err != nil {
				return
			}
			// 持有锁之后重新确认，照料操作可能已经唤醒过
			if p.Status != StatusSleeping || p.SleepUntil == nil || p.SleepUntil.After(now) {
				return
			}
			if err := p.WakeUp(); err != nil {
				return
			}
			if err := SavePet(p); err != nil {
				fmt.Printf("衰减调度器警告: 唤醒宠物 %d 失败: %v\n", id, err)
				return
			}
			UpdateMatchmakingEntry(p)
		}()
	}
}
