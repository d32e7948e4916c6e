package battle

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/internal/pet"
)

// --- 枚举类型 ---

// Category 是对战的类别，只影响结算时的奖励和分数规则，不影响回合解算
type Category string

const (
	CategoryFriendly   Category = "friendly"
	CategoryRanked     Category = "ranked"
	CategoryWagered    Category = "wagered"
	CategoryTournament Category = "tournament"
	CategoryGuild      Category = "guild"
)

var validCategories = map[Category]bool{
	CategoryFriendly: true, CategoryRanked: true, CategoryWagered: true,
	CategoryTournament: true, CategoryGuild: true,
}

// Status 是对战会话的状态
type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusFinished  Status = "finished"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// IsTerminal 判断会话是否已进入终态
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusCancelled || s == StatusExpired
}

// MoveKind 是对战中可提交的招式类型
type MoveKind string

const (
	MoveAttack      MoveKind = "attack"
	MoveDefend      MoveKind = "defend"
	MoveHeal        MoveKind = "heal"
	MoveBuffAttack  MoveKind = "buff_attack"
	MoveBuffDefense MoveKind = "buff_defense"
	MoveBuffSpeed   MoveKind = "buff_speed"
	MoveSpecial     MoveKind = "special"
	MoveSkip        MoveKind = "skip"
)

var validMoveKinds = map[MoveKind]bool{
	MoveAttack: true, MoveDefend: true, MoveHeal: true,
	MoveBuffAttack: true, MoveBuffDefense: true, MoveBuffSpeed: true,
	MoveSpecial: true, MoveSkip: true,
}

// BuffMap 是命名修正 -> 百分比幅度的映射。
// 同名buff不叠加，后写覆盖。以JSON形式存入SQLite。
type BuffMap map[string]int

// Value 实现driver.Valuer，序列化为JSON
func (m BuffMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan 实现sql.Scanner，从JSON反序列化
func (m *BuffMap) Scan(src interface{}) error {
	if src == nil {
		*m = BuffMap{}
		return nil
	}
	var data []byte
	switch v := src.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("无法把 %T 解析为BuffMap", src)
	}
	if len(data) == 0 {
		*m = BuffMap{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// Battle 定义了数据库中对战会话的数据结构。
// 接受挑战时会把双方宠物的战斗属性快照进来，
// 之后的回合解算只依赖快照，不再读取宠物本体。
type Battle struct {
	gorm.Model

	Category Category `gorm:"index;not null" json:"category"`

	// --- 参与者 (1号位是发起者) ---

	PlayerOneUUID string `gorm:"index;type:varchar(36);not null" json:"player1_uuid"`
	PetOneID      uint   `gorm:"not null" json:"pet1_id"`
	PlayerTwoUUID string `gorm:"index;type:varchar(36);not null" json:"player2_uuid"`
	PetTwoID      uint   `gorm:"not null" json:"pet2_id"`

	// --- 双方战斗属性快照，在接受挑战时固定 ---

	PetOneAttack  int `gorm:"not null" json:"pet1_attack"`
	PetOneDefense int `gorm:"not null" json:"pet1_defense"`
	PetOneSpeed   int `gorm:"not null" json:"pet1_speed"`
	PetOneMaxHP   int `gorm:"not null" json:"pet1_max_hp"`
	PetTwoAttack  int `gorm:"not null" json:"pet2_attack"`
	PetTwoDefense int `gorm:"not null" json:"pet2_defense"`
	PetTwoSpeed   int `gorm:"not null" json:"pet2_speed"`
	PetTwoMaxHP   int `gorm:"not null" json:"pet2_max_hp"`

	// --- 会话状态 ---

	Status Status `gorm:"index;not null" json:"status"`

	// CurrentTurn 是当前行动方 (1 或 2)
	CurrentTurn  int        `gorm:"not null" json:"current_turn"`
	TurnNumber   int        `gorm:"not null" json:"turn_number"`
	TurnDeadline *time.Time `json:"turn_deadline,omitempty"`

	PetOneHP int `gorm:"not null" json:"pet1_hp"`
	PetTwoHP int `gorm:"not null" json:"pet2_hp"`

	PetOneBuffs BuffMap `gorm:"type:text" json:"pet1_buffs"`
	PetTwoBuffs BuffMap `gorm:"type:text" json:"pet2_buffs"`

	// --- 结果 ---

	WinnerUUID  *string `gorm:"type:varchar(36)" json:"winner_uuid,omitempty"`
	WinnerPetID *uint   `json:"winner_pet_id,omitempty"`

	// BetAmount 是每位玩家的下注金额，接受挑战时从双方账户托管
	BetAmount int `gorm:"not null" json:"bet_amount"`

	// Settled 标记结算器是否已经发放过奖励。结算以此保证幂等。
	Settled bool `gorm:"index;not null" json:"settled"`

	// SettlementSeq 是结算完成时分配的全局递增序号。
	// 结算顺序和对战ID顺序无关，快照检查点和重放覆盖范围都以它为准。
	// 0表示尚未结算。
	SettlementSeq uint `gorm:"index;not null" json:"settlement_seq"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// BattleMove 是对战日志中的一条已解算招式记录。
// 追加之后不再修改。
type BattleMove struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	BattleID uint `gorm:"index;not null" json:"battle_id"`

	TurnNumber int      `gorm:"not null" json:"turn_number"`
	Side       int      `gorm:"not null" json:"side"` // 1 或 2
	Kind       MoveKind `gorm:"not null" json:"kind"`

	Damage     int  `gorm:"not null" json:"damage"`
	Healing    int  `gorm:"not null" json:"healing"`
	IsCritical bool `gorm:"not null" json:"is_critical"`
	IsMiss     bool `gorm:"not null" json:"is_miss"`

	// Implicit 标记这条记录是否为超时产生的隐式跳过
	Implicit bool `gorm:"not null" json:"implicit"`

	// 招式解算后双方的HP
	PetOneHPAfter int `gorm:"not null" json:"pet1_hp_after"`
	PetTwoHPAfter int `gorm:"not null" json:"pet2_hp_after"`
}

// --- 状态机操作 ---
// 这些方法只修改内存中的字段，由service层负责加锁与持久化。

// SideOf 返回账户在会话中的位置 (1或2)，不是参与者时返回0
func (b *Battle) SideOf(accountUUID string) int {
	switch accountUUID {
	case b.PlayerOneUUID:
		return 1
	case b.PlayerTwoUUID:
		return 2
	default:
		return 0
	}
}

// Start 把会话从pending推进到active。
// 以双方宠物的当前属性填充快照，HP置满，设置首回合截止时间。
func (b *Battle) Start(petOne, petTwo *pet.Pet, turnTimeLimit time.Duration) {
	b.Status = StatusActive
	now := time.Now()
	b.StartedAt = &now

	b.PetOneAttack = petOne.Attack
	b.PetOneDefense = petOne.Defense
	b.PetOneSpeed = petOne.Speed
	b.PetOneMaxHP = petOne.MaxHP
	b.PetTwoAttack = petTwo.Attack
	b.PetTwoDefense = petTwo.Defense
	b.PetTwoSpeed = petTwo.Speed
	b.PetTwoMaxHP = petTwo.MaxHP

	b.PetOneHP = petOne.MaxHP
	b.PetTwoHP = petTwo.MaxHP

	b.CurrentTurn = 1
	b.TurnNumber = 1
	deadline := now.Add(turnTimeLimit)
	b.TurnDeadline = &deadline
}

// Finish 把会话推进到finished并记录胜者。winnerSide为0表示无胜者。
func (b *Battle) Finish(winnerSide int) {
	b.Status = StatusFinished
	now := time.Now()
	b.FinishedAt = &now
	b.TurnDeadline = nil

	switch winnerSide {
	case 1:
		b.WinnerUUID = &b.PlayerOneUUID
		b.WinnerPetID = &b.PetOneID
	case 2:
		b.WinnerUUID = &b.PlayerTwoUUID
		b.WinnerPetID = &b.PetTwoID
	}
}

// SwitchTurn 换边，回合计数加一并重置截止时间
func (b *Battle) SwitchTurn(turnTimeLimit time.Duration) {
	if b.CurrentTurn == 1 {
		b.CurrentTurn = 2
	} else {
		b.CurrentTurn = 1
	}
	b.TurnNumber++
	deadline := time.Now().Add(turnTimeLimit)
	b.TurnDeadline = &deadline
}

// SnapshotFor 返回指定位置的战斗属性快照
func (b *Battle) SnapshotFor(side int) Combatant {
	if side == 1 {
		return Combatant{Attack: b.PetOneAttack, Defense: b.PetOneDefense, Speed: b.PetOneSpeed, MaxHP: b.PetOneMaxHP}
	}
	return Combatant{Attack: b.PetTwoAttack, Defense: b.PetTwoDefense, Speed: b.PetTwoSpeed, MaxHP: b.PetTwoMaxHP}
}

// BuffsFor 返回指定位置的buff表，必要时做惰性初始化
func (b *Battle) BuffsFor(side int) BuffMap {
	if side == 1 {
		if b.PetOneBuffs == nil {
			b.PetOneBuffs = BuffMap{}
		}
		return b.PetOneBuffs
	}
	if b.PetTwoBuffs == nil {
		b.PetTwoBuffs = BuffMap{}
	}
	return b.PetTwoBuffs
}

// ApplyResult 把一次招式解算结果落到会话状态上。
// 伤害作用于对方，治疗和buff作用于行动方。
func (b *Battle) ApplyResult(actingSide int, result MoveResult) {
	if actingSide == 1 {
		b.PetTwoHP = clampHP(b.PetTwoHP-result.Damage, b.PetTwoMaxHP)
		b.PetOneHP = clampHP(b.PetOneHP+result.Healing, b.PetOneMaxHP)
	} else {
		b.PetOneHP = clampHP(b.PetOneHP-result.Damage, b.PetOneMaxHP)
		b.PetTwoHP = clampHP(b.PetTwoHP+result.Healing, b.PetTwoMaxHP)
	}

	if len(result.ProducedBuffs) > 0 {
		buffs := b.BuffsFor(actingSide)
		for name, magnitude := range result.ProducedBuffs {
			buffs[name] = magnitude
		}
	}
}

// DefendingSideHP 返回当前行动方的对手HP
func (b *Battle) DefendingSideHP() int {
	if b.CurrentTurn == 1 {
		return b.PetTwoHP
	}
	return b.PetOneHP
}

func clampHP(hp, maxHP int) int {
	if hp < 0 {
		return 0
	}
	if hp > maxHP {
		return maxHP
	}
	return hp
}
