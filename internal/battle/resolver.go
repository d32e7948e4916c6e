package battle

import (
	"github.com/MoyuArc/pet-arena-backend/pkg/random"
)

// Combatant 是回合解算所需的战斗属性快照
type Combatant struct {
	Attack  int
	Defense int
	Speed   int
	MaxHP   int
}

// MoveResult 是一次招式解算的数值结果
type MoveResult struct {
	Damage        int     `json:"damage"`
	Healing       int     `json:"healing"`
	IsCritical    bool    `json:"is_critical"`
	IsMiss        bool    `json:"is_miss"`
	ProducedBuffs BuffMap `json:"produced_buffs,omitempty"`
}

const (
	critChance     = 0.10
	critMultiplier = 1.5
	missChance     = 0.05
	buffMagnitude  = 20
)

// ResolveMove 解算一次招式。
// 纯函数：只依赖双方快照、双方buff表和注入的随机源，不触碰会话状态。
// 暴击判定在先，闪避判定在后；闪避会把伤害清零但保留暴击标记。
func ResolveMove(attacker, defender Combatant, kind MoveKind, attackerBuffs, defenderBuffs BuffMap, rng random.Source) MoveResult {
	var result MoveResult

	switch kind {
	case MoveAttack:
		baseDamage := attacker.Attack
		if magnitude, ok := attackerBuffs["attack"]; ok {
			baseDamage = baseDamage * (100 + magnitude) / 100
		}

		defense := defender.Defense
		if magnitude, ok := defenderBuffs["defense"]; ok {
			defense = defense * (100 + magnitude) / 100
		}

		damage := baseDamage - defense/4
		if damage < 1 {
			damage = 1
		}

		if rng.Float64() < critChance {
			damage = int(float64(damage) * critMultiplier)
			result.IsCritical = true
		}
		if rng.Float64() < missChance {
			damage = 0
			result.IsMiss = true
		}
		result.Damage = damage

	case MoveHeal:
		result.Healing = attacker.MaxHP / 4

	case MoveBuffAttack:
		result.ProducedBuffs = BuffMap{"attack": buffMagnitude}
	case MoveBuffDefense:
		result.ProducedBuffs = BuffMap{"defense": buffMagnitude}
	case MoveBuffSpeed:
		result.ProducedBuffs = BuffMap{"speed": buffMagnitude}

	case MoveDefend, MoveSpecial, MoveSkip:
		// 预留招式，暂无数值效果
	}

	return result
}
