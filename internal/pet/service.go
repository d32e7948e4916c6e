package pet

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// --- 输入校验 ---

var validSpecies = map[Species]bool{
	SpeciesCat: true, SpeciesDog: true, SpeciesRabbit: true,
	SpeciesFox: true, SpeciesDragon: true, SpeciesUnicorn: true,
	SpeciesPhoenix: true, SpeciesRobot: true, SpeciesSlime: true,
}

var validRarities = map[Rarity]bool{
	RarityCommon: true, RarityUncommon: true, RarityRare: true,
	RarityEpic: true, RarityLegendary: true, RarityMythic: true,
}

var validPersonalities = map[Personality]bool{
	PersonalityPlayful: true, PersonalityLazy: true, PersonalityAggressive: true,
	PersonalityAffectionate: true, PersonalityMysterious: true, PersonalityBrave: true,
	PersonalityClever: true, PersonalityGreedy: true,
}

// ErrPetNotFound 表示宠物不存在或不属于请求者
var ErrPetNotFound = errors.New("宠物不存在")

// ErrPetLimitReached 表示账户名下的宠物数量已达上限
var ErrPetLimitReached = errors.New("宠物数量已达上限")

// --- 生命周期操作 ---

// AdoptPet 为账户领养一只新宠物。
// 同一账户名下存活宠物的数量受配置上限约束。
func AdoptPet(ownerUUID, name string, species Species, rarity Rarity, personality Personality) (*Pet, error) {
	if name == "" || len(name) > 32 {
		return nil, fmt.Errorf("宠物名字长度必须在1到32之间")
	}
	if !validSpecies[species] {
		return nil, fmt.Errorf("未知的物种: %s", species)
	}
	if rarity == "" {
		rarity = RarityCommon
	} else if !validRarities[rarity] {
		return nil, fmt.Errorf("未知的稀有度: %s", rarity)
	}
	if personality == "" {
		personality = PersonalityPlayful
	} else if !validPersonalities[personality] {
		return nil, fmt.Errorf("未知的性格: %s", personality)
	}

	count, err := CountLivingPetsByOwner(ownerUUID)
	if err != nil {
		return nil, fmt.Errorf("无法统计账户宠物数量: %w", err)
	}
	if count >= int64(tuning.MaxPerAccount) {
		return nil, ErrPetLimitReached
	}

	p := NewPet(ownerUUID, name, species, rarity, personality)
	if err := CreatePet(p); err != nil {
		return nil, fmt.Errorf("无法创建宠物: %w", err)
	}
	UpdateMatchmakingEntry(p)
	return p, nil
}

// ListPets 返回账户名下的全部宠物
func ListPets(ownerUUID string) ([]Pet, error) {
	return GetPetsByOwner(ownerUUID)
}

// GetOwnedPet 读取一只宠物并校验归属。
// 宠物不存在和不属于请求者对外表现一致，避免泄露他人宠物ID。
func GetOwnedPet(ownerUUID string, petID uint) (*Pet, error) {
	p, err := GetPetByID(petID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPetNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.OwnerUUID != ownerUUID {
		return nil, ErrPetNotFound
	}
	return p, nil
}

// RenamePet 修改宠物的名字和收藏标记
func RenamePet(ownerUUID string, petID uint, name *string, isFavorite *bool) (*Pet, error) {
	LockPet(petID)
	defer UnlockPet(petID)

	p, err := GetOwnedPet(ownerUUID, petID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		if *name == "" || len(*name) > 32 {
			return nil, fmt.Errorf("宠物名字长度必须在1到32之间")
		}
		p.Name = *name
	}
	if isFavorite != nil {
		p.IsFavorite = *isFavorite
	}
	if err := SavePet(p); err != nil {
		return nil, fmt.Errorf("无法保存宠物: %w", err)
	}
	return p, nil
}

// --- 照料操作 ---
// 每个操作都在宠物锁内完成读取、状态变更和持久化，
// 保证与衰减扫描和战斗结算的串行化。

type careAction func(p *Pet) ([]StatusChange, error)

// withPet 是照料操作的公共骨架
func withPet(ownerUUID string, petID uint, action careAction) (*Pet, []StatusChange, error) {
	LockPet(petID)
	defer UnlockPet(petID)

	p, err := GetOwnedPet(ownerUUID, petID)
	if err != nil {
		return nil, nil, err
	}

	changes, err := action(p)
	if err != nil {
		return nil, nil, err
	}

	if err := SavePet(p); err != nil {
		return nil, nil, fmt.Errorf("无法保存宠物: %w", err)
	}
	UpdateMatchmakingEntry(p)
	PushNotifications(p, changes)
	return p, changes, nil
}

// FeedPet 喂食
func FeedPet(ownerUUID string, petID uint) (*Pet, []StatusChange, error) {
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		return p.Feed()
	})
}

// PlayWithPet 玩耍
func PlayWithPet(ownerUUID string, petID uint) (*Pet, []StatusChange, error) {
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		return p.Play()
	})
}

// CaressPet 抚摸
func CaressPet(ownerUUID string, petID uint) (*Pet, []StatusChange, error) {
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		return nil, p.Caress()
	})
}

// PutPetToSleep 让宠物睡眠指定小时数
func PutPetToSleep(ownerUUID string, petID uint, hours int) (*Pet, []StatusChange, error) {
	if hours <= 0 || hours > 24 {
		return nil, nil, fmt.Errorf("睡眠时长必须在1到24小时之间")
	}
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		return nil, p.Sleep(hours)
	})
}

// WakePet 手动唤醒宠物
func WakePet(ownerUUID string, petID uint) (*Pet, []StatusChange, error) {
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		if err := p.WakeUp(); err != nil {
			return nil, err
		}
		return []StatusChange{ChangeWokeUp}, nil
	})
}

// HealPet 治疗
func HealPet(ownerUUID string, petID uint) (*Pet, []StatusChange, error) {
	return withPet(ownerUUID, petID, func(p *Pet) ([]StatusChange, error) {
		return nil, p.Heal()
	})
}

// --- 战斗模块的入口 ---
// 战斗结算在自己的锁序下修改宠物，这里提供不依赖HTTP归属检查的原语。

// GrantBattleRewards 在宠物锁内发放战斗经验并更新场次。
// 由战斗结算器调用。
func GrantBattleRewards(petID uint, experience int) error {
	LockPet(petID)
	defer UnlockPet(petID)

	p, err := GetPetByID(petID)
	if err != nil {
		return err
	}
	if !p.IsAlive() {
		return gameerr.ErrAlreadyTerminal
	}

	changes := p.AddExperience(experience)
	p.BattlesFought++

	if err := SavePet(p); err != nil {
		return err
	}
	UpdateMatchmakingEntry(p)
	PushNotifications(p, changes)
	return nil
}
