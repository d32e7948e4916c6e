package battle

import "testing"

// seqSource 按给定序列返回随机值，耗尽后返回最后一个
type seqSource struct {
	values []float64
	index  int
}

func (s *seqSource) Float64() float64 {
	if s.index >= len(s.values) {
		return s.values[len(s.values)-1]
	}
	v := s.values[s.index]
	s.index++
	return v
}

func (s *seqSource) Intn(int) int { return 0 }

func baseCombatant() Combatant {
	return Combatant{Attack: 10, Defense: 10, Speed: 10, MaxHP: 100}
}

func TestResolveAttackBaseDamage(t *testing.T) {
	rng := &seqSource{values: []float64{0.9}}
	result := ResolveMove(baseCombatant(), baseCombatant(), MoveAttack, nil, nil, rng)
	// 10 - 10/4 = 8
	if result.Damage != 8 {
		t.Fatalf("基础伤害应为 8，实际 %d", result.Damage)
	}
	if result.IsCritical || result.IsMiss {
		t.Fatalf("不应出现暴击或闪避: %+v", result)
	}
}

func TestResolveAttackMinimumDamage(t *testing.T) {
	rng := &seqSource{values: []float64{0.9}}
	weak := Combatant{Attack: 1, Defense: 1, Speed: 1, MaxHP: 100}
	tank := Combatant{Attack: 1, Defense: 200, Speed: 1, MaxHP: 100}
	result := ResolveMove(weak, tank, MoveAttack, nil, nil, rng)
	if result.Damage != 1 {
		t.Fatalf("伤害下限应为 1，实际 %d", result.Damage)
	}
}

func TestResolveAttackCritical(t *testing.T) {
	// 第一次随机判暴击，第二次判闪避
	rng := &seqSource{values: []float64{0.05, 0.9}}
	result := ResolveMove(baseCombatant(), baseCombatant(), MoveAttack, nil, nil, rng)
	// int(8 * 1.5) = 12
	if result.Damage != 12 {
		t.Fatalf("暴击伤害应为 12，实际 %d", result.Damage)
	}
	if !result.IsCritical {
		t.Fatalf("应标记暴击")
	}
}

func TestResolveAttackMissAfterCritical(t *testing.T) {
	rng := &seqSource{values: []float64{0.05, 0.01}}
	result := ResolveMove(baseCombatant(), baseCombatant(), MoveAttack, nil, nil, rng)
	if result.Damage != 0 {
		t.Fatalf("闪避应把伤害清零，实际 %d", result.Damage)
	}
	if !result.IsMiss {
		t.Fatalf("应标记闪避")
	}
	if !result.IsCritical {
		t.Fatalf("闪避不应清除暴击标记")
	}
}

func TestResolveAttackWithBuffs(t *testing.T) {
	rng := &seqSource{values: []float64{0.9}}
	attackerBuffs := BuffMap{"attack": 20}
	defenderBuffs := BuffMap{"defense": 20}
	result := ResolveMove(baseCombatant(), baseCombatant(), MoveAttack, attackerBuffs, defenderBuffs, rng)
	// 攻击 10*120/100=12，防御 10*120/100=12，伤害 12 - 12/4 = 9
	if result.Damage != 9 {
		t.Fatalf("带buff的伤害应为 9，实际 %d", result.Damage)
	}
}

func TestResolveHeal(t *testing.T) {
	rng := &seqSource{values: []float64{0.9}}
	healer := Combatant{Attack: 10, Defense: 10, Speed: 10, MaxHP: 120}
	result := ResolveMove(healer, baseCombatant(), MoveHeal, nil, nil, rng)
	if result.Healing != 30 {
		t.Fatalf("治疗量应为最大HP的四分之一 (30)，实际 %d", result.Healing)
	}
	if result.Damage != 0 {
		t.Fatalf("治疗招式不应造成伤害")
	}
}

func TestResolveBuffMoves(t *testing.T) {
	rng := &seqSource{values: []float64{0.9}}
	cases := []struct {
		kind MoveKind
		name string
	}{
		{MoveBuffAttack, "attack"},
		{MoveBuffDefense, "defense"},
		{MoveBuffSpeed, "speed"},
	}
	for _, tc := range cases {
		result := ResolveMove(baseCombatant(), baseCombatant(), tc.kind, nil, nil, rng)
		if result.ProducedBuffs[tc.name] != 20 {
			t.Fatalf("%s 招式应产生幅度 20 的 %s buff，实际 %v", tc.kind, tc.name, result.ProducedBuffs)
		}
		if result.Damage != 0 || result.Healing != 0 {
			t.Fatalf("buff招式不应有伤害或治疗: %+v", result)
		}
	}
}

func TestResolveSkipHasNoEffect(t *testing.T) {
	rng := &seqSource{values: []float64{0.01}}
	result := ResolveMove(baseCombatant(), baseCombatant(), MoveSkip, nil, nil, rng)
	if result.Damage != 0 || result.Healing != 0 || len(result.ProducedBuffs) != 0 {
		t.Fatalf("跳过招式不应有任何效果: %+v", result)
	}
}
