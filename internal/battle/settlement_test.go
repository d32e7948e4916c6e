package battle

import (
	"testing"
)

// createSettledCandidate 持久化一场指定ID的已结束对战
func createSettledCandidate(t *testing.T, id uint) *Battle {
	t.Helper()
	b := newTestBattle()
	b.ID = id
	b.Start(newBattlePet(100), newBattlePet(100), 0)
	b.Finish(1)
	return createTestBattle(t, b)
}

func TestMarkSettledFollowsSettlementOrder(t *testing.T) {
	setupBattleTestDB(t)
	early := createSettledCandidate(t, 5)
	late := createSettledCandidate(t, 10)

	// 高ID的对战先完成结算，低ID的对战(被长时间搁置的挑战)后完成
	if err := MarkSettled(late); err != nil {
		t.Fatalf("结算对战 %d 失败: %v", late.ID, err)
	}
	if err := MarkSettled(early); err != nil {
		t.Fatalf("结算对战 %d 失败: %v", early.ID, err)
	}

	if late.SettlementSeq != 1 {
		t.Fatalf("先结算的对战应拿到序号1，实际 %d", late.SettlementSeq)
	}
	if early.SettlementSeq != 2 {
		t.Fatalf("后结算的对战应拿到序号2，实际 %d", early.SettlementSeq)
	}
	if !early.Settled || !late.Settled {
		t.Fatalf("结算标记应已置位")
	}
}

func TestReplayRangeCoversSettlementOrderNotBattleID(t *testing.T) {
	setupBattleTestDB(t)
	early := createSettledCandidate(t, 5)
	late := createSettledCandidate(t, 10)

	// 对战10先结算并被快照覆盖，检查点记下它的结算序号
	if err := MarkSettled(late); err != nil {
		t.Fatalf("结算对战 %d 失败: %v", late.ID, err)
	}
	checkpoint := late.SettlementSeq

	// 对战5在快照之后才结算
	if err := MarkSettled(early); err != nil {
		t.Fatalf("结算对战 %d 失败: %v", early.ID, err)
	}

	replaySet, err := ListSettledAfterSeq(checkpoint)
	if err != nil {
		t.Fatalf("无法列出待重放的对战: %v", err)
	}
	if len(replaySet) != 1 {
		t.Fatalf("重放集合应只包含快照之后结算的1场对战，实际 %d 场", len(replaySet))
	}
	if replaySet[0].ID != early.ID {
		t.Fatalf("晚结算的对战 %d 应被重放，已覆盖的对战不应再出现，实际返回对战 %d", early.ID, replaySet[0].ID)
	}
}

func TestReplayRangeEmptyWhenCheckpointCurrent(t *testing.T) {
	setupBattleTestDB(t)
	b := createSettledCandidate(t, 3)
	if err := MarkSettled(b); err != nil {
		t.Fatalf("结算对战失败: %v", err)
	}

	replaySet, err := ListSettledAfterSeq(b.SettlementSeq)
	if err != nil {
		t.Fatalf("无法列出待重放的对战: %v", err)
	}
	if len(replaySet) != 0 {
		t.Fatalf("检查点已覆盖全部结算时重放集合应为空，实际 %d 场", len(replaySet))
	}
}
