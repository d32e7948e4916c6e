package pet

import (
	"errors"
	"testing"
	"time"

	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// fixedSource 是一个返回固定值的随机源，用于逼出确定的分支
type fixedSource struct {
	f float64
	n int
}

func (s fixedSource) Float64() float64 { return s.f }
func (s fixedSource) Intn(int) int     { return s.n }

func newTestPet() *Pet {
	return NewPet("owner-uuid", "小白", SpeciesCat, RarityCommon, PersonalityBrave)
}

func TestNewPetDefaults(t *testing.T) {
	p := newTestPet()
	if p.Level != 1 || p.Experience != 0 {
		t.Fatalf("新宠物的等级/经验应为 1/0，实际 %d/%d", p.Level, p.Experience)
	}
	if p.Hunger != 80 || p.Happiness != 50 || p.Health != 100 || p.Energy != 100 || p.Hygiene != 100 {
		t.Fatalf("新宠物的生存属性不符合出生默认值: %+v", p)
	}
	if p.Attack != 10 || p.Defense != 10 || p.Speed != 10 || p.MaxHP != 100 {
		t.Fatalf("新宠物的战斗属性不符合出生默认值: %+v", p)
	}
	if p.Status != StatusActive || p.EvolutionStage != StageBaby {
		t.Fatalf("新宠物的状态应为 active/baby，实际 %s/%s", p.Status, p.EvolutionStage)
	}
}

func TestApplyDecayThreeHoursNoFlags(t *testing.T) {
	p := newTestPet()
	changes, err := p.ApplyDecay(3, fixedSource{f: 0.9})
	if err != nil {
		t.Fatalf("ApplyDecay 返回错误: %v", err)
	}
	if p.Hunger != 65 {
		t.Fatalf("3小时衰减后饥饿值应为 65，实际 %d", p.Hunger)
	}
	if len(changes) != 0 {
		t.Fatalf("不应产生任何状态变化事件，实际 %v", changes)
	}
}

func TestApplyDecayHungerFlags(t *testing.T) {
	p := newTestPet()
	p.Hunger = 52
	changes, _ := p.ApplyDecay(1, fixedSource{f: 0.9})
	if len(changes) != 1 || changes[0] != ChangeHungry {
		t.Fatalf("饥饿值 47 应产生 hungry 事件，实际 %v", changes)
	}

	p2 := newTestPet()
	p2.Hunger = 22
	changes, _ = p2.ApplyDecay(1, fixedSource{f: 0.9})
	if len(changes) != 1 || changes[0] != ChangeCriticalHunger {
		t.Fatalf("饥饿值 17 应产生 critical_hunger 事件，实际 %v", changes)
	}
}

func TestApplyDecayPersonalityMultiplier(t *testing.T) {
	playful := newTestPet()
	playful.Personality = PersonalityPlayful
	playful.Happiness = 100
	playful.ApplyDecay(10, fixedSource{f: 0.9})
	// 3 * 10 * 1.2 = 36
	if playful.Happiness != 64 {
		t.Fatalf("playful 宠物10小时后快乐值应为 64，实际 %d", playful.Happiness)
	}

	lazy := newTestPet()
	lazy.Personality = PersonalityLazy
	lazy.Happiness = 100
	lazy.ApplyDecay(10, fixedSource{f: 0.9})
	// 3 * 10 * 0.8 = 24
	if lazy.Happiness != 76 {
		t.Fatalf("lazy 宠物10小时后快乐值应为 76，实际 %d", lazy.Happiness)
	}
}

func TestApplyDecayDepression(t *testing.T) {
	p := newTestPet()
	p.Happiness = 20
	changes, _ := p.ApplyDecay(1, fixedSource{f: 0.9})
	if p.Status != StatusDepressed {
		t.Fatalf("快乐值跌破阈值后状态应为 depressed，实际 %s", p.Status)
	}
	found := false
	for _, c := range changes {
		if c == ChangeDepressed {
			found = true
		}
	}
	if !found {
		t.Fatalf("应产生 depressed 事件，实际 %v", changes)
	}
}

func TestApplyDecaySleepingEnergyRecovery(t *testing.T) {
	p := newTestPet()
	if err := p.Sleep(4); err != nil {
		t.Fatalf("Sleep 返回错误: %v", err)
	}
	p.Energy = 10
	p.ApplyDecay(2, fixedSource{f: 0.9})
	// 10 + 10*2*2 = 50
	if p.Energy != 50 {
		t.Fatalf("睡眠中2小时后能量应为 50，实际 %d", p.Energy)
	}

	awake := newTestPet()
	awake.Energy = 10
	awake.ApplyDecay(2, fixedSource{f: 0.9})
	if awake.Energy != 6 {
		t.Fatalf("清醒时2小时后能量应为 6，实际 %d", awake.Energy)
	}
}

func TestApplyDecaySickness(t *testing.T) {
	p := newTestPet()
	p.Hunger = 5
	p.Health = 32
	changes, _ := p.ApplyDecay(1, fixedSource{f: 0.9})
	if p.Health != 27 {
		t.Fatalf("饥饿过低时1小时应扣 5 点健康，实际健康 %d", p.Health)
	}
	if p.Status != StatusSick {
		t.Fatalf("健康跌破阈值后状态应为 sick，实际 %s", p.Status)
	}
	found := false
	for _, c := range changes {
		if c == ChangeSick {
			found = true
		}
	}
	if !found {
		t.Fatalf("应产生 sick 事件，实际 %v", changes)
	}
}

func TestApplyDecayTerminalCoinFlip(t *testing.T) {
	runaway := newTestPet()
	runaway.Hunger = 0
	runaway.Health = 5
	changes, _ := runaway.ApplyDecay(1, fixedSource{f: 0.4})
	if runaway.Status != StatusRunaway {
		t.Fatalf("随机值 0.4 应判定为离家出走，实际状态 %s", runaway.Status)
	}
	if changes[len(changes)-1] != ChangeRunaway {
		t.Fatalf("最后一个事件应为 runaway，实际 %v", changes)
	}

	deceased := newTestPet()
	deceased.Hunger = 0
	deceased.Health = 5
	changes, _ = deceased.ApplyDecay(1, fixedSource{f: 0.6})
	if deceased.Status != StatusDeceased {
		t.Fatalf("随机值 0.6 应判定为死亡，实际状态 %s", deceased.Status)
	}
	if changes[len(changes)-1] != ChangeDeceased {
		t.Fatalf("最后一个事件应为 deceased，实际 %v", changes)
	}
}

func TestApplyDecayRejectsTerminalPet(t *testing.T) {
	p := newTestPet()
	p.Status = StatusDeceased
	before := *p
	_, err := p.ApplyDecay(1, fixedSource{f: 0.9})
	if !errors.Is(err, gameerr.ErrAlreadyTerminal) {
		t.Fatalf("终局状态的宠物应拒绝衰减，实际错误 %v", err)
	}
	if *p != before {
		t.Fatalf("被拒绝的操作不应产生任何变更")
	}
}

func TestVitalsStayInRangeAfterRepeatedDecay(t *testing.T) {
	p := newTestPet()
	for i := 0; i < 50 && p.IsAlive(); i++ {
		p.ApplyDecay(3, fixedSource{f: 0.9})
		for name, v := range map[string]int{
			"hunger": p.Hunger, "happiness": p.Happiness, "health": p.Health,
			"energy": p.Energy, "hygiene": p.Hygiene,
		} {
			if v < 0 || v > 100 {
				t.Fatalf("第 %d 轮衰减后 %s 超出 [0,100]: %d", i, name, v)
			}
		}
	}
}

func TestFeedRaisesHungerAndGrantsExperience(t *testing.T) {
	p := newTestPet()
	p.Hunger = 50
	if _, err := p.Feed(); err != nil {
		t.Fatalf("Feed 返回错误: %v", err)
	}
	if p.Hunger != 70 {
		t.Fatalf("喂食后饥饿值应为 70，实际 %d", p.Hunger)
	}
	if p.Experience != 5 {
		t.Fatalf("喂食应获得 5 点经验，实际 %d", p.Experience)
	}
	if p.LastFedAt == nil {
		t.Fatalf("喂食应更新 LastFedAt")
	}

	p.Hunger = 95
	p.Feed()
	if p.Hunger != 100 {
		t.Fatalf("饥饿值不应超过 100，实际 %d", p.Hunger)
	}
}

func TestFeedRejectsTerminalPet(t *testing.T) {
	p := newTestPet()
	p.Status = StatusRunaway
	if _, err := p.Feed(); !errors.Is(err, gameerr.ErrAlreadyTerminal) {
		t.Fatalf("离家出走的宠物应拒绝喂食，实际错误 %v", err)
	}
}

func TestPlayConsumesEnergy(t *testing.T) {
	p := newTestPet()
	if _, err := p.Play(); err != nil {
		t.Fatalf("Play 返回错误: %v", err)
	}
	if p.Energy != 90 || p.Happiness != 65 {
		t.Fatalf("玩耍后能量/快乐应为 90/65，实际 %d/%d", p.Energy, p.Happiness)
	}
	if p.Experience != 10 {
		t.Fatalf("玩耍应获得 10 点经验，实际 %d", p.Experience)
	}
}

func TestPlayRejectsWhenEnergyTooLow(t *testing.T) {
	p := newTestPet()
	p.Energy = 5
	before := *p
	if _, err := p.Play(); !errors.Is(err, gameerr.ErrInsufficientResource) {
		t.Fatalf("能量不足时玩耍应被拒绝，实际错误 %v", err)
	}
	if *p != before {
		t.Fatalf("被拒绝的玩耍不应产生任何变更")
	}
}

func TestCaressPersonalityBonus(t *testing.T) {
	normal := newTestPet()
	normal.Caress()
	if normal.Happiness != 52 {
		t.Fatalf("普通性格抚摸后快乐值应为 52，实际 %d", normal.Happiness)
	}

	loving := newTestPet()
	loving.Personality = PersonalityAffectionate
	loving.Caress()
	if loving.Happiness != 53 {
		t.Fatalf("亲人性格抚摸后快乐值应为 53，实际 %d", loving.Happiness)
	}
}

func TestSleepAndWakeUp(t *testing.T) {
	p := newTestPet()
	if err := p.Sleep(4); err != nil {
		t.Fatalf("Sleep 返回错误: %v", err)
	}
	if p.Status != StatusSleeping || p.SleepUntil == nil {
		t.Fatalf("睡眠后状态应为 sleeping 且有截止时间")
	}
	if err := p.Sleep(4); !errors.Is(err, gameerr.ErrInvalidStateTransition) {
		t.Fatalf("重复睡眠应被拒绝，实际错误 %v", err)
	}

	p.Energy = 50
	if err := p.WakeUp(); err != nil {
		t.Fatalf("WakeUp 返回错误: %v", err)
	}
	if p.Status != StatusActive || p.SleepUntil != nil {
		t.Fatalf("唤醒后状态应为 active 且清除截止时间")
	}
	if p.Energy != 80 {
		t.Fatalf("唤醒应补偿 30 点能量，实际能量 %d", p.Energy)
	}

	if err := p.WakeUp(); !errors.Is(err, gameerr.ErrInvalidStateTransition) {
		t.Fatalf("清醒的宠物不能再被唤醒，实际错误 %v", err)
	}
}

func TestHealCuresSickness(t *testing.T) {
	p := newTestPet()
	p.Status = StatusSick
	p.Health = 40
	if err := p.Heal(); err != nil {
		t.Fatalf("Heal 返回错误: %v", err)
	}
	if p.Health != 60 {
		t.Fatalf("治疗后健康值应为 60，实际 %d", p.Health)
	}
	if p.Status != StatusActive {
		t.Fatalf("健康回到阈值以上后应解除生病状态，实际 %s", p.Status)
	}

	still := newTestPet()
	still.Status = StatusSick
	still.Health = 20
	still.Heal()
	if still.Status != StatusSick {
		t.Fatalf("健康仍在阈值以下时应保持生病状态，实际 %s", still.Status)
	}
}

func TestAddExperienceLevelUpAtBoundary(t *testing.T) {
	p := newTestPet()
	p.Experience = 99
	changes := p.AddExperience(1)
	if p.Level != 2 {
		t.Fatalf("经验到达 100 应升到 2 级，实际 %d", p.Level)
	}
	if p.Experience != 0 {
		t.Fatalf("升级后经验应清零，实际 %d", p.Experience)
	}
	// common 稀有度的成长为 1，MaxHP 翻倍成长
	if p.Attack != 11 || p.Defense != 11 || p.Speed != 11 || p.MaxHP != 102 {
		t.Fatalf("升级后的属性成长不正确: %+v", p)
	}
	if len(changes) != 1 || changes[0] != ChangeLeveledUp {
		t.Fatalf("应产生一次 leveled_up 事件，实际 %v", changes)
	}
}

func TestAddExperienceAggregateEquivalence(t *testing.T) {
	split := newTestPet()
	split.AddExperience(70)
	split.AddExperience(80)

	whole := newTestPet()
	whole.AddExperience(150)

	if split.Level != whole.Level || split.Experience != whole.Experience {
		t.Fatalf("分次加经验与一次加总应等价: %d/%d vs %d/%d",
			split.Level, split.Experience, whole.Level, whole.Experience)
	}
	if split.Attack != whole.Attack || split.MaxHP != whole.MaxHP {
		t.Fatalf("分次加经验与一次加总的属性成长应等价")
	}
}

func TestRarityGrowthDiffers(t *testing.T) {
	mythic := NewPet("owner", "龙王", SpeciesDragon, RarityMythic, PersonalityBrave)
	mythic.Experience = 99
	mythic.AddExperience(1)
	if mythic.Attack != 14 || mythic.MaxHP != 108 {
		t.Fatalf("mythic 稀有度升级成长应为 +4/+8，实际攻击 %d MaxHP %d", mythic.Attack, mythic.MaxHP)
	}
}

func TestEvolutionStageMonotonic(t *testing.T) {
	p := newTestPet()
	prevRank := stageRank[p.EvolutionStage]
	for p.Level < 220 {
		p.AddExperience(p.ExpToNextLevel() - p.Experience)
		rank := stageRank[p.EvolutionStage]
		if rank < prevRank {
			t.Fatalf("进化阶段在等级 %d 时回退了: %s", p.Level, p.EvolutionStage)
		}
		prevRank = rank
	}
	if p.EvolutionStage != StageMaster {
		t.Fatalf("等级 %d 时应已达到 master 阶段，实际 %s", p.Level, p.EvolutionStage)
	}
}

func TestEvolutionThresholds(t *testing.T) {
	cases := []struct {
		level int
		stage EvolutionStage
	}{
		{9, StageBaby},
		{10, StageChild},
		{25, StageTeen},
		{50, StageAdult},
		{100, StageElite},
		{200, StageMaster},
	}
	for _, tc := range cases {
		p := newTestPet()
		for p.Level < tc.level {
			p.AddExperience(p.ExpToNextLevel() - p.Experience)
		}
		if p.EvolutionStage != tc.stage {
			t.Fatalf("等级 %d 的进化阶段应为 %s，实际 %s", tc.level, tc.stage, p.EvolutionStage)
		}
	}
}

func TestCanBattleGating(t *testing.T) {
	p := newTestPet()
	if !p.CanBattle() {
		t.Fatalf("健康的宠物应可参战")
	}

	p.Energy = 19
	if p.CanBattle() {
		t.Fatalf("能量低于 20 不应可参战")
	}

	p.Energy = 100
	p.Health = 29
	if p.CanBattle() {
		t.Fatalf("健康低于 30 不应可参战")
	}

	p.Health = 100
	p.Sleep(2)
	if p.CanBattle() {
		t.Fatalf("睡眠中不应可参战")
	}

	p.WakeUp()
	p.Status = StatusDeceased
	if p.CanBattle() {
		t.Fatalf("死亡的宠物不应可参战")
	}
}

func TestOverallCondition(t *testing.T) {
	p := newTestPet()
	// 80*0.25 + 50*0.25 + 100*0.20 + 100*0.15 + 100*0.15 = 82.5
	if got := p.OverallCondition(); got != 82 {
		t.Fatalf("综合评分应为 82，实际 %d", got)
	}
}

func TestPassiveHeal(t *testing.T) {
	p := newTestPet()
	p.Health = 90
	p.PassiveHeal()
	if p.Health != 95 {
		t.Fatalf("被动回血后健康应为 95，实际 %d", p.Health)
	}

	sick := newTestPet()
	sick.Status = StatusSick
	sick.Health = 20
	sick.PassiveHeal()
	if sick.Health != 20 {
		t.Fatalf("生病的宠物不应被动回血，实际 %d", sick.Health)
	}
}

func TestSleepUntilInFuture(t *testing.T) {
	p := newTestPet()
	before := time.Now()
	p.Sleep(4)
	if p.SleepUntil.Before(before.Add(3 * time.Hour)) {
		t.Fatalf("睡眠截止时间应在约4小时后，实际 %v", p.SleepUntil)
	}
}
