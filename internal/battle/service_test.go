package battle

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// setupBattleTestDB 把全局数据库句柄换成一个独立的临时SQLite库
func setupBattleTestDB(t *testing.T) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "battles.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("无法打开测试数据库: %v", err)
	}
	database.DB = db
	if err := database.DB.AutoMigrate(&Battle{}, &BattleMove{}); err != nil {
		t.Fatalf("无法迁移测试表: %v", err)
	}
}

func createTestBattle(t *testing.T, b *Battle) *Battle {
	t.Helper()
	if err := CreateBattle(b); err != nil {
		t.Fatalf("无法创建测试对战: %v", err)
	}
	return b
}

func createActiveBattle(t *testing.T) *Battle {
	t.Helper()
	b := newTestBattle()
	b.Start(newBattlePet(100), newBattlePet(100), time.Hour)
	return createTestBattle(t, b)
}

func TestSubmitMoveRejectsPendingSession(t *testing.T) {
	setupBattleTestDB(t)
	b := createTestBattle(t, newTestBattle())

	_, _, err := SubmitMove("player-one", b.ID, MoveAttack)
	if !errors.Is(err, gameerr.ErrInvalidStateTransition) {
		t.Fatalf("对pending会话出招应返回状态迁移错误，实际 %v", err)
	}

	reloaded, err := GetBattleByID(b.ID)
	if err != nil {
		t.Fatalf("无法重新读取对战: %v", err)
	}
	if reloaded.Status != StatusPending || reloaded.TurnNumber != 0 ||
		reloaded.PetOneHP != 0 || reloaded.PetTwoHP != 0 {
		t.Fatalf("被拒绝的出招不应改动会话状态: %+v", reloaded)
	}
	moves, err := GetMovesByBattleID(b.ID)
	if err != nil {
		t.Fatalf("无法读取招式日志: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("被拒绝的出招不应留下招式记录，实际 %d 条", len(moves))
	}
}

func TestSubmitMoveRejectsOutOfTurn(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)

	_, _, err := SubmitMove("player-two", b.ID, MoveAttack)
	if !errors.Is(err, gameerr.ErrNotYourTurn) {
		t.Fatalf("非行动方出招应返回回合错误，实际 %v", err)
	}

	reloaded, err := GetBattleByID(b.ID)
	if err != nil {
		t.Fatalf("无法重新读取对战: %v", err)
	}
	if reloaded.CurrentTurn != 1 || reloaded.TurnNumber != 1 ||
		reloaded.PetOneHP != 100 || reloaded.PetTwoHP != 100 {
		t.Fatalf("被拒绝的出招不应改动会话状态: %+v", reloaded)
	}
	moves, err := GetMovesByBattleID(b.ID)
	if err != nil {
		t.Fatalf("无法读取招式日志: %v", err)
	}
	if len(moves) != 0 {
		t.Fatalf("被拒绝的出招不应留下招式记录，实际 %d 条", len(moves))
	}
}

func TestSubmitMoveRejectsNonParticipant(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)

	_, _, err := SubmitMove("stranger", b.ID, MoveAttack)
	if !errors.Is(err, gameerr.ErrNotParticipant) {
		t.Fatalf("非参与者出招应返回参与者错误，实际 %v", err)
	}

	reloaded, err := GetBattleByID(b.ID)
	if err != nil {
		t.Fatalf("无法重新读取对战: %v", err)
	}
	if reloaded.TurnNumber != 1 || reloaded.PetOneHP != 100 || reloaded.PetTwoHP != 100 {
		t.Fatalf("被拒绝的出招不应改动会话状态: %+v", reloaded)
	}
}

func TestSubmitMoveResolvesElapsedDeadlineAsSkip(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)

	past := time.Now().Add(-time.Minute)
	b.TurnDeadline = &past
	if err := SaveBattle(b); err != nil {
		t.Fatalf("无法写入过期的回合截止时间: %v", err)
	}

	// 1号位超时未行动，2号位提交时应先替1号位解算一次隐式跳过
	after, move, err := SubmitMove("player-two", b.ID, MoveBuffAttack)
	if err != nil {
		t.Fatalf("超时解算后2号位的出招应被接受: %v", err)
	}
	if move.Implicit || move.Side != 2 || move.Kind != MoveBuffAttack {
		t.Fatalf("返回的应是2号位的显式招式: %+v", move)
	}
	if after.TurnNumber != 3 || after.CurrentTurn != 1 {
		t.Fatalf("隐式跳过加显式出招后应轮到1号位第3回合: %d/%d", after.CurrentTurn, after.TurnNumber)
	}
	if after.TurnDeadline == nil || !after.TurnDeadline.After(time.Now()) {
		t.Fatalf("新回合的截止时间应被重置到未来")
	}

	moves, err := GetMovesByBattleID(b.ID)
	if err != nil {
		t.Fatalf("无法读取招式日志: %v", err)
	}
	if len(moves) != 2 {
		t.Fatalf("日志应包含隐式跳过和显式招式共2条，实际 %d 条", len(moves))
	}
	skip := moves[0]
	if !skip.Implicit || skip.Side != 1 || skip.Kind != MoveSkip || skip.TurnNumber != 1 {
		t.Fatalf("第一条记录应是1号位第1回合的隐式跳过: %+v", skip)
	}
	if skip.PetOneHPAfter != 100 || skip.PetTwoHPAfter != 100 {
		t.Fatalf("隐式跳过不应造成伤害: %+v", skip)
	}
}

func TestTerminateSessionCancelsActiveSession(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)

	terminated, err := TerminateSession(b.ID, StatusCancelled)
	if err != nil {
		t.Fatalf("终止active会话失败: %v", err)
	}
	if terminated.Status != StatusCancelled {
		t.Fatalf("终止后状态应为 cancelled，实际 %s", terminated.Status)
	}
	if terminated.TurnDeadline != nil {
		t.Fatalf("终止后不应再有回合截止时间")
	}
	if terminated.FinishedAt == nil {
		t.Fatalf("终止时间应被记录")
	}

	reloaded, err := GetBattleByID(b.ID)
	if err != nil {
		t.Fatalf("无法重新读取对战: %v", err)
	}
	if reloaded.Status != StatusCancelled {
		t.Fatalf("终止结果应已落盘，实际 %s", reloaded.Status)
	}
}

func TestTerminateSessionExpiresPendingSession(t *testing.T) {
	setupBattleTestDB(t)
	b := createTestBattle(t, newTestBattle())

	terminated, err := TerminateSession(b.ID, StatusExpired)
	if err != nil {
		t.Fatalf("终止pending会话失败: %v", err)
	}
	if terminated.Status != StatusExpired {
		t.Fatalf("终止后状态应为 expired，实际 %s", terminated.Status)
	}
}

func TestTerminateSessionRejectsTerminalSession(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)
	b.Finish(1)
	if err := SaveBattle(b); err != nil {
		t.Fatalf("无法保存已结束的对战: %v", err)
	}

	if _, err := TerminateSession(b.ID, StatusCancelled); !errors.Is(err, gameerr.ErrAlreadyTerminal) {
		t.Fatalf("已结束的会话不应再被终止，实际 %v", err)
	}
}

func TestTerminateSessionRejectsNonTerminalTarget(t *testing.T) {
	setupBattleTestDB(t)
	b := createActiveBattle(t)

	if _, err := TerminateSession(b.ID, StatusFinished); !errors.Is(err, gameerr.ErrInvalidStateTransition) {
		t.Fatalf("终止目标只能是cancelled或expired，实际 %v", err)
	}
}
