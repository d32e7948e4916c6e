package pet

import (
	"math"
	"time"

	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
)

// --- 枚举类型 ---

// Species 是宠物的物种
type Species string

const (
	SpeciesCat     Species = "cat"
	SpeciesDog     Species = "dog"
	SpeciesRabbit  Species = "rabbit"
	SpeciesFox     Species = "fox"
	SpeciesDragon  Species = "dragon"
	SpeciesUnicorn Species = "unicorn"
	SpeciesPhoenix Species = "phoenix"
	SpeciesRobot   Species = "robot"
	SpeciesSlime   Species = "slime"
)

// Rarity 是宠物的稀有度，决定升级时的属性成长
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

// statGrowthMap 定义了每个稀有度升级时单项属性的成长点数
var statGrowthMap = map[Rarity]int{
	RarityCommon:    1,
	RarityUncommon:  1,
	RarityRare:      2,
	RarityEpic:      2,
	RarityLegendary: 3,
	RarityMythic:    4,
}

// Personality 是宠物的性格，会影响衰减速率和互动效果
type Personality string

const (
	PersonalityPlayful      Personality = "playful"
	PersonalityLazy         Personality = "lazy"
	PersonalityAggressive   Personality = "aggressive"
	PersonalityAffectionate Personality = "affectionate"
	PersonalityMysterious   Personality = "mysterious"
	PersonalityBrave        Personality = "brave"
	PersonalityClever       Personality = "clever"
	PersonalityGreedy       Personality = "greedy"
)

// EvolutionStage 是宠物的进化阶段
type EvolutionStage string

const (
	StageBaby   EvolutionStage = "baby"
	StageChild  EvolutionStage = "child"
	StageTeen   EvolutionStage = "teen"
	StageAdult  EvolutionStage = "adult"
	StageElite  EvolutionStage = "elite"
	StageMaster EvolutionStage = "master"
)

// stageRank 定义了进化阶段的先后顺序。
// 进化只能单向推进，绝不会因比较字符串字面值而回退。
var stageRank = map[EvolutionStage]int{
	StageBaby:   0,
	StageChild:  1,
	StageTeen:   2,
	StageAdult:  3,
	StageElite:  4,
	StageMaster: 5,
}

// evolutionThresholds 按等级从高到低排列的进化门槛
var evolutionThresholds = []struct {
	Level int
	Stage EvolutionStage
}{
	{200, StageMaster},
	{100, StageElite},
	{50, StageAdult},
	{25, StageTeen},
	{10, StageChild},
}

// Status 是宠物的当前状态
type Status string

const (
	StatusActive    Status = "active"
	StatusSleeping  Status = "sleeping"
	StatusSick      Status = "sick"
	StatusDepressed Status = "depressed"
	StatusRunaway   Status = "runaway"
	StatusDeceased  Status = "deceased"
	StatusInStorage Status = "in_storage"
)

// StatusChange 是衰减或互动过程中产生的状态变化事件，
// 会通过通知队列推送给宠物的主人。
type StatusChange string

const (
	ChangeHungry         StatusChange = "hungry"
	ChangeCriticalHunger StatusChange = "critical_hunger"
	ChangeDepressed      StatusChange = "depressed"
	ChangeSick           StatusChange = "sick"
	ChangeRunaway        StatusChange = "runaway"
	ChangeDeceased       StatusChange = "deceased"
	ChangeLeveledUp      StatusChange = "leveled_up"
	ChangeEvolved        StatusChange = "evolved"
	ChangeWokeUp         StatusChange = "woke_up"
)

// --- 数值常量 ---

const (
	// 状态阈值 (0-100)
	hungryThreshold         = 50
	criticalHungerThreshold = 20
	depressionThreshold     = 20
	sicknessHealthThreshold = 30
	recoveryHealthThreshold = 50
	starvationThreshold     = 10

	// 衰减中的附加效应
	healthPenaltyPerHour = 5
	energyDrainPerHour   = 2
	runawayChance        = 0.5

	// 互动效果
	feedValue         = 20
	playFunValue      = 15
	playEnergyCost    = 10
	caressBonus       = 2
	caressBonusLoving = 3
	wakeUpEnergyBonus = 30
	healAmount        = 20

	// 互动经验奖励
	feedExperience = 5
	playExperience = 10
)

// Pet 定义了数据库中虚拟宠物的数据结构
type Pet struct {
	// gorm.Model 包含 ID, CreatedAt, UpdatedAt, DeletedAt
	gorm.Model

	// OwnerUUID 是主人账户的UUID，来自客户端Cookie
	OwnerUUID string `gorm:"index;type:varchar(36);not null" json:"owner_uuid"`

	// --- 基本信息 ---

	Name        string      `gorm:"type:varchar(32);not null" json:"name"`
	Species     Species     `gorm:"index;not null" json:"species"`
	Rarity      Rarity      `gorm:"index;not null" json:"rarity"`
	Personality Personality `gorm:"not null" json:"personality"`

	// --- 成长 ---

	Level          int            `gorm:"index;not null" json:"level"`
	Experience     int            `gorm:"not null" json:"experience"`
	EvolutionStage EvolutionStage `gorm:"not null" json:"evolution_stage"`

	// --- 生存属性 (0-100) ---

	Hunger    int `gorm:"not null" json:"hunger"`
	Happiness int `gorm:"not null" json:"happiness"`
	Health    int `gorm:"not null" json:"health"`
	Energy    int `gorm:"not null" json:"energy"`
	Hygiene   int `gorm:"not null" json:"hygiene"`

	// --- 战斗属性 ---

	Attack  int `gorm:"not null" json:"attack"`
	Defense int `gorm:"not null" json:"defense"`
	Speed   int `gorm:"not null" json:"speed"`
	MaxHP   int `gorm:"not null" json:"max_hp"`

	// BattlesFought 是参与过的总场次，用于匹配时的冷启动加权
	BattlesFought int `gorm:"not null" json:"battles_fought"`

	// --- 状态 ---

	Status     Status `gorm:"index;not null" json:"status"`
	IsFavorite bool   `gorm:"not null" json:"is_favorite"`

	// --- 计时器 ---

	SleepUntil   *time.Time `json:"sleep_until,omitempty"`
	LastFedAt    *time.Time `json:"last_fed_at,omitempty"`
	LastPlayedAt *time.Time `json:"last_played_at,omitempty"`
	LastPettedAt *time.Time `json:"last_petted_at,omitempty"`

	// BreedingCooldownUntil 由将来的繁育系统写入，当前版本只保留字段
	BreedingCooldownUntil *time.Time `json:"breeding_cooldown_until,omitempty"`

	BornAt time.Time `gorm:"not null" json:"born_at"`
}

// NewPet 以出生默认值创建一只宠物。调用者负责持久化。
func NewPet(ownerUUID, name string, species Species, rarity Rarity, personality Personality) *Pet {
	return &Pet{
		OwnerUUID:      ownerUUID,
		Name:           name,
		Species:        species,
		Rarity:         rarity,
		Personality:    personality,
		Level:          1,
		Experience:     0,
		EvolutionStage: StageBaby,
		Hunger:         80,
		Happiness:      50,
		Health:         100,
		Energy:         100,
		Hygiene:        100,
		Attack:         10,
		Defense:        10,
		Speed:          10,
		MaxHP:          100,
		Status:         StatusActive,
		BornAt:         time.Now(),
	}
}

// --- 只读属性 ---

// IsAlive 判断宠物是否还在（没有死亡或离家出走）
func (p *Pet) IsAlive() bool {
	return p.Status != StatusDeceased && p.Status != StatusRunaway
}

// CanBattle 判断宠物当前是否满足参战条件
func (p *Pet) CanBattle() bool {
	return p.IsAlive() &&
		p.Status != StatusSleeping &&
		p.Energy >= 20 &&
		p.Health >= 30
}

// ExpToNextLevel 计算升到下一级所需的经验值: 100 * level^1.5
func (p *Pet) ExpToNextLevel() int {
	return int(100 * math.Pow(float64(p.Level), 1.5))
}

// OverallCondition 计算五项生存属性的加权综合评分 (0-100)
func (p *Pet) OverallCondition() int {
	score := float64(p.Hunger)*0.25 +
		float64(p.Happiness)*0.25 +
		float64(p.Health)*0.20 +
		float64(p.Energy)*0.15 +
		float64(p.Hygiene)*0.15
	return int(score)
}

// AgeDays 计算宠物出生至今的天数
func (p *Pet) AgeDays() int {
	return int(time.Since(p.BornAt).Hours() / 24)
}

// --- 互动操作 ---
// 所有互动操作只修改内存中的字段，由service层负责加锁与持久化。

// Feed 喂食。终局状态的宠物无法再被喂食。
// 返回喂食经验可能触发的升级或进化事件。
func (p *Pet) Feed() ([]StatusChange, error) {
	if !p.IsAlive() {
		return nil, gameerr.ErrAlreadyTerminal
	}
	p.Hunger = clamp(p.Hunger + feedValue)
	now := time.Now()
	p.LastFedAt = &now
	return p.AddExperience(feedExperience), nil
}

// Play 玩耍。消耗能量并提升快乐值，能量不足时拒绝。
func (p *Pet) Play() ([]StatusChange, error) {
	if !p.IsAlive() {
		return nil, gameerr.ErrAlreadyTerminal
	}
	if p.Status == StatusSleeping {
		return nil, gameerr.ErrInvalidStateTransition
	}
	if p.Energy < playEnergyCost {
		return nil, gameerr.ErrInsufficientResource
	}
	p.Happiness = clamp(p.Happiness + playFunValue)
	p.Energy -= playEnergyCost
	now := time.Now()
	p.LastPlayedAt = &now
	return p.AddExperience(playExperience), nil
}

// Caress 抚摸。亲人性格的宠物获得更多快乐值。
func (p *Pet) Caress() error {
	if !p.IsAlive() {
		return gameerr.ErrAlreadyTerminal
	}
	bonus := caressBonus
	if p.Personality == PersonalityAffectionate {
		bonus = caressBonusLoving
	}
	p.Happiness = clamp(p.Happiness + bonus)
	now := time.Now()
	p.LastPettedAt = &now
	return nil
}

// Sleep 让宠物进入睡眠，持续指定小时数。
// 睡眠期间能量以双倍速度恢复（见ApplyDecay）。
func (p *Pet) Sleep(hours int) error {
	if !p.IsAlive() {
		return gameerr.ErrAlreadyTerminal
	}
	if p.Status == StatusSleeping {
		return gameerr.ErrInvalidStateTransition
	}
	until := time.Now().Add(time.Duration(hours) * time.Hour)
	p.Status = StatusSleeping
	p.SleepUntil = &until
	return nil
}

// WakeUp 唤醒宠物并给予一次性能量补偿。
// 只有处于睡眠状态的宠物才能被唤醒。
func (p *Pet) WakeUp() error {
	if p.Status != StatusSleeping {
		return gameerr.ErrInvalidStateTransition
	}
	p.Status = StatusActive
	p.SleepUntil = nil
	p.Energy = clamp(p.Energy + wakeUpEnergyBonus)
	return nil
}

// Heal 治疗。健康值回到阈值以上时会解除生病状态。
func (p *Pet) Heal() error {
	if !p.IsAlive() {
		return gameerr.ErrAlreadyTerminal
	}
	p.Health = clamp(p.Health + healAmount)
	if p.Health > recoveryHealthThreshold && p.Status == StatusSick {
		p.Status = StatusActive
	}
	return nil
}

// --- 成长 ---

// AddExperience 增加经验值并处理连续升级。返回本次产生的变化事件。
func (p *Pet) AddExperience(amount int) []StatusChange {
	p.Experience += amount

	var changes []StatusChange
	for p.Experience >= p.ExpToNextLevel() {
		p.Experience -= p.ExpToNextLevel()
		p.levelUp()
		changes = append(changes, ChangeLeveledUp)
		if p.checkEvolution() {
			changes = append(changes, ChangeEvolved)
		}
	}
	return changes
}

// levelUp 提升一级，按稀有度成长各项战斗属性
func (p *Pet) levelUp() {
	p.Level++

	growth := statGrowthMap[p.Rarity]
	if growth == 0 {
		growth = 1
	}
	p.Attack += growth
	p.Defense += growth
	p.Speed += growth
	p.MaxHP += growth * 2
}

// checkEvolution 检查是否达到进化门槛。进化阶段只会前进不会后退。
func (p *Pet) checkEvolution() bool {
	for _, t := range evolutionThresholds {
		if p.Level >= t.Level && stageRank[p.EvolutionStage] < stageRank[t.Stage] {
			p.EvolutionStage = t.Stage
			return true
		}
	}
	return false
}

// --- 衰减 ---

// ApplyDecay 对宠物应用指定小时数的属性衰减，返回产生的状态变化事件。
// 终局状态的宠物不再参与衰减。
// rng 用于离家出走的随机判定，由调用者注入以便测试。
func (p *Pet) ApplyDecay(hours int, rng random.Source) ([]StatusChange, error) {
	if !p.IsAlive() {
		return nil, gameerr.ErrAlreadyTerminal
	}
	if hours <= 0 {
		return nil, nil
	}

	var changes []StatusChange

	// 饥饿衰减
	p.Hunger = clampLow(p.Hunger - tuning.HungerDecayPerHour*hours)
	if p.Hunger < criticalHungerThreshold {
		changes = append(changes, ChangeCriticalHunger)
	} else if p.Hunger < hungryThreshold {
		changes = append(changes, ChangeHungry)
	}

	// 快乐衰减，按性格修正
	happinessDecay := float64(tuning.HappinessDecayPerHour * hours)
	switch p.Personality {
	case PersonalityPlayful:
		happinessDecay *= 1.2
	case PersonalityLazy:
		happinessDecay *= 0.8
	}
	p.Happiness = clampLow(p.Happiness - int(happinessDecay))
	if p.Happiness < depressionThreshold {
		p.Status = StatusDepressed
		changes = append(changes, ChangeDepressed)
	}

	// 能量: 睡眠时双倍恢复，清醒时缓慢消耗
	if p.Status == StatusSleeping {
		p.Energy = clamp(p.Energy + tuning.EnergyRecoveryPerHour*hours*2)
	} else {
		p.Energy = clampLow(p.Energy - energyDrainPerHour*hours)
	}

	// 饥饿或卫生过低开始损害健康
	if p.Hunger < starvationThreshold || p.Hygiene < starvationThreshold {
		p.Health = clampLow(p.Health - healthPenaltyPerHour*hours)
		if p.Health < sicknessHealthThreshold && p.Status != StatusSick {
			p.Status = StatusSick
			changes = append(changes, ChangeSick)
		}
	}

	// 极限状态: 饥饿和健康同时归零时，一半概率离家出走，否则死亡
	if p.Hunger == 0 && p.Health == 0 {
		if rng.Float64() < runawayChance {
			p.Status = StatusRunaway
			changes = append(changes, ChangeRunaway)
		} else {
			p.Status = StatusDeceased
			changes = append(changes, ChangeDeceased)
		}
	}

	return changes, nil
}

// PassiveHeal 对健康未满且未生病的清醒宠物缓慢回血
func (p *Pet) PassiveHeal() {
	if p.Status != StatusActive || p.Health >= 100 {
		return
	}
	p.Health = clamp(p.Health + 5)
}

// --- 工具函数 ---

func clamp(v int) int {
	if v > 100 {
		return 100
	}
	if v < 0 {
		return 0
	}
	return v
}

func clampLow(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
