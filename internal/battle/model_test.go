package battle

import (
	"testing"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/pet"
)

func newTestBattle() *Battle {
	return &Battle{
		Category:      CategoryFriendly,
		PlayerOneUUID: "player-one",
		PetOneID:      1,
		PlayerTwoUUID: "player-two",
		PetTwoID:      2,
		Status:        StatusPending,
	}
}

func newBattlePet(maxHP int) *pet.Pet {
	p := pet.NewPet("owner", "test", pet.SpeciesCat, pet.RarityCommon, pet.PersonalityBrave)
	p.MaxHP = maxHP
	return p
}

func TestStartSnapshotsCombatants(t *testing.T) {
	b := newTestBattle()
	petOne := newBattlePet(120)
	petOne.Attack = 15
	petTwo := newBattlePet(80)
	petTwo.Defense = 12

	b.Start(petOne, petTwo, 30*time.Second)

	if b.Status != StatusActive {
		t.Fatalf("开始后状态应为 active，实际 %s", b.Status)
	}
	if b.PetOneAttack != 15 || b.PetTwoDefense != 12 {
		t.Fatalf("快照未正确记录双方属性: %+v", b)
	}
	if b.PetOneHP != 120 || b.PetTwoHP != 80 {
		t.Fatalf("开始时HP应置满: %d/%d", b.PetOneHP, b.PetTwoHP)
	}
	if b.CurrentTurn != 1 || b.TurnNumber != 1 {
		t.Fatalf("首回合应为1号位的第1回合: %d/%d", b.CurrentTurn, b.TurnNumber)
	}
	if b.TurnDeadline == nil || !b.TurnDeadline.After(time.Now()) {
		t.Fatalf("首回合截止时间应在未来")
	}
	if b.StartedAt == nil {
		t.Fatalf("开始时间应被记录")
	}
}

func TestSwitchTurnAlternates(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)

	b.SwitchTurn(30 * time.Second)
	if b.CurrentTurn != 2 || b.TurnNumber != 2 {
		t.Fatalf("换边后应轮到2号位第2回合: %d/%d", b.CurrentTurn, b.TurnNumber)
	}
	b.SwitchTurn(30 * time.Second)
	if b.CurrentTurn != 1 || b.TurnNumber != 3 {
		t.Fatalf("再次换边后应轮到1号位第3回合: %d/%d", b.CurrentTurn, b.TurnNumber)
	}
}

func TestFinishRecordsWinner(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)
	b.Finish(2)

	if b.Status != StatusFinished {
		t.Fatalf("结束后状态应为 finished，实际 %s", b.Status)
	}
	if b.WinnerUUID == nil || *b.WinnerUUID != "player-two" {
		t.Fatalf("胜者UUID应为2号位玩家")
	}
	if b.WinnerPetID == nil || *b.WinnerPetID != 2 {
		t.Fatalf("胜者宠物ID应为2号位宠物")
	}
	if b.TurnDeadline != nil {
		t.Fatalf("结束后不应再有回合截止时间")
	}
	if b.FinishedAt == nil {
		t.Fatalf("结束时间应被记录")
	}
}

func TestFinishDrawHasNoWinner(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)
	b.Finish(0)
	if b.WinnerUUID != nil || b.WinnerPetID != nil {
		t.Fatalf("平局不应记录胜者")
	}
}

func TestSideOf(t *testing.T) {
	b := newTestBattle()
	if b.SideOf("player-one") != 1 {
		t.Fatalf("1号位玩家的位置应为 1")
	}
	if b.SideOf("player-two") != 2 {
		t.Fatalf("2号位玩家的位置应为 2")
	}
	if b.SideOf("stranger") != 0 {
		t.Fatalf("非参与者的位置应为 0")
	}
}

func TestApplyResultDamageAndClamp(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)

	b.ApplyResult(1, MoveResult{Damage: 30})
	if b.PetTwoHP != 70 {
		t.Fatalf("1号位攻击后2号位HP应为 70，实际 %d", b.PetTwoHP)
	}

	b.ApplyResult(1, MoveResult{Damage: 999})
	if b.PetTwoHP != 0 {
		t.Fatalf("HP不应低于 0，实际 %d", b.PetTwoHP)
	}
}

func TestApplyResultHealingClampsAtMax(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)

	b.PetOneHP = 90
	b.ApplyResult(1, MoveResult{Healing: 25})
	if b.PetOneHP != 100 {
		t.Fatalf("治疗不应超过最大HP，实际 %d", b.PetOneHP)
	}
}

func TestApplyResultRecordsBuffs(t *testing.T) {
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), 30*time.Second)

	b.ApplyResult(2, MoveResult{ProducedBuffs: BuffMap{"attack": 20}})
	if b.PetTwoBuffs["attack"] != 20 {
		t.Fatalf("buff应记录到行动方: %v", b.PetTwoBuffs)
	}
	if len(b.PetOneBuffs) != 0 {
		t.Fatalf("对方不应获得buff: %v", b.PetOneBuffs)
	}

	// 同名buff不叠加，后写覆盖
	b.ApplyResult(2, MoveResult{ProducedBuffs: BuffMap{"attack": 20}})
	if b.PetTwoBuffs["attack"] != 20 {
		t.Fatalf("同名buff应覆盖而非叠加: %v", b.PetTwoBuffs)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	terminal := []Status{StatusFinished, StatusCancelled, StatusExpired}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("%s 应为终态", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusActive} {
		if s.IsTerminal() {
			t.Fatalf("%s 不应为终态", s)
		}
	}
}

func TestBuffMapRoundTrip(t *testing.T) {
	original := BuffMap{"attack": 20, "defense": 20}
	value, err := original.Value()
	if err != nil {
		t.Fatalf("Value 返回错误: %v", err)
	}

	var restored BuffMap
	if err := restored.Scan(value); err != nil {
		t.Fatalf("Scan 返回错误: %v", err)
	}
	if restored["attack"] != 20 || restored["defense"] != 20 {
		t.Fatalf("序列化往返后数据不一致: %v", restored)
	}
}

func TestBuffMapScanNil(t *testing.T) {
	var m BuffMap
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) 返回错误: %v", err)
	}
	if m == nil {
		t.Fatalf("Scan(nil) 后应得到空map而非nil")
	}
}
