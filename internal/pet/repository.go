package pet

import (
	"fmt"
	"sync"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
	"github.com/MoyuArc/pet-arena-backend/pkg/tree"
)

// --- 单只宠物的串行化锁 ---

// petLocks 为每只宠物维护一把互斥锁。
// 对同一只宠物的照料操作和衰减扫描必须串行执行，
// 不同宠物之间允许并发。
var petLocks sync.Map // map[uint]*sync.Mutex

// LockPet 获取指定宠物的互斥锁
func LockPet(petID uint) {
	lock, _ := petLocks.LoadOrStore(petID, &sync.Mutex{})
	lock.(*sync.Mutex).Lock()
}

// UnlockPet 释放指定宠物的互斥锁
func UnlockPet(petID uint) {
	lock, ok := petLocks.Load(petID)
	if !ok {
		return
	}
	lock.(*sync.Mutex).Unlock()
}

// --- SQLite 访问 ---

// GetPetByID 按主键读取一只宠物
func GetPetByID(petID uint) (*Pet, error) {
	var p Pet
	if err := database.DB.First(&p, petID).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetPetsByOwner 读取某个账户名下的全部宠物
func GetPetsByOwner(ownerUUID string) ([]Pet, error) {
	var pets []Pet
	if err := database.DB.Where("owner_uuid = ?", ownerUUID).Order("id asc").Find(&pets).Error; err != nil {
		return nil, err
	}
	return pets, nil
}

// CountLivingPetsByOwner 统计某个账户名下未死亡且未出走的宠物数量
func CountLivingPetsByOwner(ownerUUID string) (int64, error) {
	var count int64
	err := database.DB.Model(&Pet{}).
		Where("owner_uuid = ? AND status NOT IN ?", ownerUUID, []Status{StatusDeceased, StatusRunaway}).
		Count(&count).Error
	return count, err
}

// CreatePet 持久化一只新宠物
func CreatePet(p *Pet) error {
	return database.DB.Create(p).Error
}

// SavePet 持久化宠物的全部字段。SQLite短暂锁住时做有限重试。
func SavePet(p *Pet) error {
	var err error
	for i := 0; i < 3; i++ {
		err = database.DB.Save(p).Error
		if err == nil || !database.IsRetryableError(err) {
			return err
		}
		time.Sleep(time.Duration(i+1) * 50 * time.Millisecond)
	}
	return err
}

// ListLivePetIDs 列出所有需要参与衰减扫描的宠物ID
func ListLivePetIDs() ([]uint, error) {
	var ids []uint
	err := database.DB.Model(&Pet{}).
		Where("status NOT IN ?", []Status{StatusDeceased, StatusRunaway}).
		Pluck("id", &ids).Error
	return ids, err
}

// ListSleepersDueIDs 列出睡眠时间已到、应该被唤醒的宠物ID
func ListSleepersDueIDs(now time.Time) ([]uint, error) {
	var ids []uint
	err := database.DB.Model(&Pet{}).
		Where("status = ? AND sleep_until IS NOT NULL AND sleep_until <= ?", StatusSleeping, now).
		Pluck("id", &ids).Error
	return ids, err
}

// ListBattleReady 列出当前满足参战条件的宠物。
// 数据库条件只做粗过滤，精确判定仍以CanBattle为准。
func ListBattleReady() ([]Pet, error) {
	var pets []Pet
	err := database.DB.
		Where("status NOT IN ? AND energy >= ? AND health >= ?",
			[]Status{StatusDeceased, StatusRunaway, StatusSleeping}, 20, 30).
		Order("id asc").Find(&pets).Error
	return pets, err
}

// --- 匹配索引 ---
// 内存中的加权抽样索引，权重随参战场次递减，让新宠物更容易被抽中。

const initialIndexCapacity = 64

// matchmakingIndex 维护可参战宠物的权重线段树
type matchmakingIndex struct {
	mu sync.RWMutex

	idToSlot map[uint]int
	slotToID []uint
	owners   []string

	weightsTree *tree.SegmentTree
	capacity    int
}

var globalIndex = newMatchmakingIndex(initialIndexCapacity)

func newMatchmakingIndex(capacity int) *matchmakingIndex {
	t, _ := tree.NewSegmentTree(capacity)
	return &matchmakingIndex{
		idToSlot:    make(map[uint]int, capacity),
		slotToID:    make([]uint, 0, capacity),
		owners:      make([]string, 0, capacity),
		weightsTree: t,
		capacity:    capacity,
	}
}

// matchWeight 计算宠物的抽样权重: 1 / (场次 + 5)
func matchWeight(battlesFought int) float64 {
	return 1.0 / float64(battlesFought+5)
}

// RebuildMatchmakingIndex 用给定的宠物集合重建整个索引
func RebuildMatchmakingIndex(pets []Pet) {
	capacity := initialIndexCapacity
	for capacity < len(pets) {
		capacity *= 2
	}

	fresh := newMatchmakingIndex(capacity)
	weights := make([]float64, capacity)
	for i, p := range pets {
		fresh.idToSlot[p.ID] = i
		fresh.slotToID = append(fresh.slotToID, p.ID)
		fresh.owners = append(fresh.owners, p.OwnerUUID)
		weights[i] = matchWeight(p.BattlesFought)
	}
	_ = fresh.weightsTree.Rebuild(weights)

	globalIndex.mu.Lock()
	defer globalIndex.mu.Unlock()
	globalIndex.idToSlot = fresh.idToSlot
	globalIndex.slotToID = fresh.slotToID
	globalIndex.owners = fresh.owners
	globalIndex.weightsTree = fresh.weightsTree
	globalIndex.capacity = fresh.capacity
}

// UpdateMatchmakingEntry 根据宠物的最新状态更新索引。
// 宠物失去参战资格时权重归零，恢复资格时重新插入。
func UpdateMatchmakingEntry(p *Pet) {
	globalIndex.mu.Lock()
	defer globalIndex.mu.Unlock()

	slot, exists := globalIndex.idToSlot[p.ID]
	if !p.CanBattle() {
		if exists {
			_ = globalIndex.weightsTree.Update(slot, 0)
		}
		return
	}

	if !exists {
		slot = len(globalIndex.slotToID)
		if slot >= globalIndex.capacity {
			// 容量不足时倍增重建
			growMatchmakingIndexLocked()
		}
		globalIndex.idToSlot[p.ID] = slot
		globalIndex.slotToID = append(globalIndex.slotToID, p.ID)
		globalIndex.owners = append(globalIndex.owners, p.OwnerUUID)
	}
	_ = globalIndex.weightsTree.Update(slot, matchWeight(p.BattlesFought))
}

// growMatchmakingIndexLocked 把线段树容量翻倍并迁移现有权重。
// 调用者必须持有写锁。
func growMatchmakingIndexLocked() {
	oldTree := globalIndex.weightsTree
	newCapacity := globalIndex.capacity * 2

	weights := make([]float64, newCapacity)
	for i := range globalIndex.slotToID {
		w, err := oldTree.Query(i)
		if err == nil {
			weights[i] = w
		}
	}

	newTree, _ := tree.NewSegmentTree(newCapacity)
	_ = newTree.Rebuild(weights)
	globalIndex.weightsTree = newTree
	globalIndex.capacity = newCapacity
}

// PickOpponent 按权重随机抽取一只不属于指定账户的可参战宠物。
// 抽不到时返回0。
func PickOpponent(excludeOwner string, excludePetID uint, rng random.Source) (uint, error) {
	globalIndex.mu.RLock()
	defer globalIndex.mu.RUnlock()

	total := globalIndex.weightsTree.TotalSum()
	if total <= 0 {
		return 0, nil
	}

	// 有限次重抽来避开自己的宠物，失败后退化为线性扫描
	for attempt := 0; attempt < 16; attempt++ {
		slot, err := globalIndex.weightsTree.Find(rng.Float64() * total)
		if err != nil {
			return 0, fmt.Errorf("匹配抽样失败: %w", err)
		}
		if slot >= len(globalIndex.slotToID) {
			continue
		}
		candidateID := globalIndex.slotToID[slot]
		if candidateID != excludePetID && globalIndex.owners[slot] != excludeOwner {
			return candidateID, nil
		}
	}

	for slot, id := range globalIndex.slotToID {
		w, err := globalIndex.weightsTree.Query(slot)
		if err != nil || w <= 0 {
			continue
		}
		if id != excludePetID && globalIndex.owners[slot] != excludeOwner {
			return id, nil
		}
	}
	return 0, nil
}
