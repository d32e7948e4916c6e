package battle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/database"
	"github.com/MoyuArc/pet-arena-backend/internal/platform/metadata"
	"github.com/MoyuArc/pet-arena-backend/pkg/lifecycle"
)

// 结算奖励常量
const (
	winnerExperience = 50
	loserExperience  = 10
	rankedCoinPrize  = 100
	arenaTokenPrize  = 25
)

const patrolInterval = 30 * time.Second

// settlementProcessor 是一个单一写入者，负责在对战结束后串行发放奖励。
// 对战完成的顺序和结束的顺序无关，幂等性由Battle.Settled标记保证：
// 同一场对战无论被投递多少次，奖励只会发放一次。
type settlementProcessor struct {
	battleChan    chan uint
	isShutdown    bool
	shutdownMutex sync.Mutex
}

var globalSettlementProcessor = settlementProcessor{
	battleChan: make(chan uint, 10000),
}

// EnqueueSettlement 把一场已结束的对战投递给结算器。
// 队列已满或已停机时静默放弃，巡逻器稍后会找回这场对战。
func EnqueueSettlement(battleID uint) {
	globalSettlementProcessor.shutdownMutex.Lock()
	defer globalSettlementProcessor.shutdownMutex.Unlock()
	if globalSettlementProcessor.isShutdown {
		return
	}
	select {
	case globalSettlementProcessor.battleChan <- battleID:
	default:
		fmt.Printf("警告: 结算队列已满，暂时放弃实时结算对战 %d\n", battleID)
	}
}

// StartSettlementProcessor 启动结算器的主循环和巡逻器
func StartSettlementProcessor(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	defer gracefulHandle.Close()
	defer forcefulHandle.Close()
	fmt.Println("对战结算器已启动。")

	// 启动时先找回上次运行遗留的未结算对战
	globalSettlementProcessor.requeueUnsettled()

	patrollerCtx, patrollerCancel := context.WithCancel(gracefulHandle.Ctx())
	defer patrollerCancel()
	go globalSettlementProcessor.runPatroller(patrollerCtx)

	globalSettlementProcessor.runMainLoop(gracefulHandle, forcefulHandle)
}

// runMainLoop 是结算器的主事件循环，响应两阶段停机
func (sp *settlementProcessor) runMainLoop(gracefulHandle, forcefulHandle *lifecycle.Handle) {
	for {
		select {
		case <-gracefulHandle.Done():
			fmt.Println("结算器: 收到优雅停机信号，正在处理剩余任务...")
			sp.drainQueue(forcefulHandle)
			fmt.Println("结算器: 优雅停机完成，主循环退出。")
			return
		case battleID := <-sp.battleChan:
			sp.processOne(battleID, gracefulHandle)
		}
	}
}

// drainQueue 在收到优雅停机信号后，尽力处理完channel中的剩余任务
func (sp *settlementProcessor) drainQueue(forcefulHandle *lifecycle.Handle) {
	sp.shutdownMutex.Lock()
	sp.isShutdown = true
	close(sp.battleChan)
	sp.shutdownMutex.Unlock()

	for battleID := range sp.battleChan {
		select {
		case <-forcefulHandle.Done():
			fmt.Println("结算器: 收到强制停机信号，排空队列被中断。")
			return
		default:
		}
		sp.processOne(battleID, forcefulHandle)
	}
}

// processOne 结算单场对战。Redis不可用时把任务留给巡逻器，暂停一段时间。
func (sp *settlementProcessor) processOne(battleID uint, handle *lifecycle.Handle) {
	if !database.IsRedisHealthy() {
		fmt.Println("结算器: 检测到Redis不可用或正在重建，暂停处理...")
		handle.Sleep(5 * time.Second)
		return
	}

	if err := SettleBattle(battleID); err != nil {
		fmt.Printf("结算器错误: 结算对战 %d 失败: %v\n", battleID, err)
	}
}

// runPatroller 定期从SQLite找回没能进入channel的未结算对战
func (sp *settlementProcessor) runPatroller(ctx context.Context) {
	ticker := time.NewTicker(patrolInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sp.requeueUnsettled()
		}
	}
}

// requeueUnsettled 把所有已结束但未结算的对战重新投递
func (sp *settlementProcessor) requeueUnsettled() {
	ids, err := ListUnsettledFinishedIDs(1000)
	if err != nil {
		fmt.Printf("结算器警告: 无法巡查未结算对战: %v\n", err)
		return
	}
	for _, id := range ids {
		EnqueueSettlement(id)
	}
}

// SettleBattle 对一场已结束的对战执行一次完整结算。
// 在会话锁内先确认Settled标记，保证重复投递不会重复发奖。
func SettleBattle(battleID uint) error {
	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return err
	}
	if b.Status != StatusFinished || b.Settled {
		return nil
	}

	if b.WinnerUUID == nil {
		// 没有胜者的结束局按平局处理: 退还赌注，双方记平
		if err := settleDraw(b); err != nil {
			return err
		}
	} else if err := settleVictory(b); err != nil {
		return err
	}

	if err := MarkSettled(b); err != nil {
		return fmt.Errorf("无法标记对战 %d 为已结算: %w", b.ID, err)
	}

	recordSettlementMetadata(b.SettlementSeq)
	pushResultEvent(b)
	return nil
}

// settleVictory 发放胜负双方的奖励
func settleVictory(b *Battle) error {
	winnerPetID := b.PetOneID
	loserPetID := b.PetTwoID
	if *b.WinnerUUID != b.PlayerOneUUID {
		winnerPetID = b.PetTwoID
		loserPetID = b.PetOneID
	}

	// 宠物经验。宠物此时已死亡或出走的话跳过发放，不影响账户结算。
	if err := pet.GrantBattleRewards(winnerPetID, winnerExperience); err != nil {
		fmt.Printf("结算器警告: 无法给宠物 %d 发放经验: %v\n", winnerPetID, err)
	}
	if err := pet.GrantBattleRewards(loserPetID, loserExperience); err != nil {
		fmt.Printf("结算器警告: 无法给宠物 %d 发放经验: %v\n", loserPetID, err)
	}

	return applyVictoryOutcomes(b)
}

// applyVictoryOutcomes 把一场胜负已分的对战结果落到双方账户热数据上。
// 缓存重建后的结算重放也走这里，所以不包含宠物侧的副作用。
func applyVictoryOutcomes(b *Battle) error {
	winnerUUID := *b.WinnerUUID
	loserUUID := b.PlayerOneUUID
	if winnerUUID == b.PlayerOneUUID {
		loserUUID = b.PlayerTwoUUID
	}

	winnerOutcome := account.BattleOutcome{Won: true}
	loserOutcome := account.BattleOutcome{Lost: true}

	// 赌注: 托管的彩池全部归胜者
	if b.BetAmount > 0 {
		winnerOutcome.CoinPrize += b.BetAmount * 2
	}

	// 排位: ELO分数变动加固定奖金
	if b.Category == CategoryRanked {
		winnerStats, err := account.GetStats(winnerUUID)
		if err != nil {
			return err
		}
		loserStats, err := account.GetStats(loserUUID)
		if err != nil {
			return err
		}
		if winnerStats != nil && loserStats != nil {
			newWinnerRating, newLoserRating := calculateElo(winnerStats.Rating, loserStats.Rating)
			winnerOutcome.NewRating = &newWinnerRating
			loserOutcome.NewRating = &newLoserRating
		}
		winnerOutcome.CoinPrize += rankedCoinPrize
	}

	// 锦标赛与公会对战发放竞技场代币
	if b.Category == CategoryTournament || b.Category == CategoryGuild {
		winnerOutcome.TokenPrize = arenaTokenPrize
	}

	if err := account.ApplyBattleOutcome(winnerUUID, winnerOutcome); err != nil {
		return fmt.Errorf("无法结算胜者 %s: %w", winnerUUID, err)
	}
	if err := account.ApplyBattleOutcome(loserUUID, loserOutcome); err != nil {
		return fmt.Errorf("无法结算败者 %s: %w", loserUUID, err)
	}
	return nil
}

// settleDraw 按平局结算: 退还托管的赌注，战绩双方记平
func settleDraw(b *Battle) error {
	drawOutcome := account.BattleOutcome{Draw: true, CoinPrize: b.BetAmount}
	if err := account.ApplyBattleOutcome(b.PlayerOneUUID, drawOutcome); err != nil {
		return fmt.Errorf("无法结算玩家 %s: %w", b.PlayerOneUUID, err)
	}
	if err := account.ApplyBattleOutcome(b.PlayerTwoUUID, drawOutcome); err != nil {
		return fmt.Errorf("无法结算玩家 %s: %w", b.PlayerTwoUUID, err)
	}
	return nil
}

// ReplaySettledOutcomes 把快照检查点之后已结算对战的账户侧结果
// 按结算顺序重放回Redis热数据。缓存重建时调用。
// 宠物经验直接持久化在SQLite中，不需要也不允许重放。
func ReplaySettledOutcomes(sinceSeq uint) error {
	battles, err := ListSettledAfterSeq(sinceSeq)
	if err != nil {
		return fmt.Errorf("无法列出待重放的对战: %w", err)
	}
	if len(battles) == 0 {
		return nil
	}

	for i := range battles {
		b := &battles[i]
		if b.WinnerUUID == nil {
			err = settleDraw(b)
		} else {
			err = applyVictoryOutcomes(b)
		}
		if err != nil {
			return fmt.Errorf("重放对战 %d 的结算失败: %w", b.ID, err)
		}
		recordSettlementMetadata(b.SettlementSeq)
	}

	fmt.Printf("已重放 %d 场对战的结算结果。\n", len(battles))
	return nil
}

// recordSettlementMetadata 在Redis中推进结算进度水位，供快照和重放参考。
// 水位只前进不后退，旧序号直接忽略。结算器是单一写入者，
// 启动重放也在结算器启动之前完成，这里的读改写不会竞争。
func recordSettlementMetadata(seq uint) {
	current, err := database.RDB.Get(database.Ctx, metadata.RedisLastSettledSeqKey).Uint64()
	if err == nil && uint(current) >= seq {
		return
	}
	pipe := database.RDB.Pipeline()
	pipe.Set(database.Ctx, metadata.RedisLastSettledSeqKey, seq, 0)
	pipe.Incr(database.Ctx, metadata.RedisTotalBattlesKey)
	if _, err := pipe.Exec(database.Ctx); err != nil {
		fmt.Printf("结算器警告: 无法更新结算元数据: %v\n", err)
	}
}
