package battle

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
	"github.com/MoyuArc/pet-arena-backend/pkg/token"
)

// ErrBattleNotFound 表示对战不存在或请求者无权查看
var ErrBattleNotFound = errors.New("对战不存在")

// ErrNoOpponent 表示匹配系统当前找不到可用的对手
var ErrNoOpponent = errors.New("暂时没有可匹配的对手")

// ErrInvalidTicket 表示挑战凭据缺失或签名校验失败
var ErrInvalidTicket = errors.New("挑战凭据无效")

// ChallengeTicket 是创建挑战时返回给发起者的凭据，
// 接受挑战时带回并校验，防止参数被篡改。
type ChallengeTicket struct {
	BattleID  uint   `json:"battle_id"`
	Signature string `json:"signature"`
}

// --- 挑战的创建与接受 ---

// CreateChallenge 发起一场对战挑战。
// opponentPetID为0时走匹配系统按冷门优先权重抽取对手。
// 返回pending状态的会话和接受时需要出示的凭据。
func CreateChallenge(ownerUUID string, petID uint, category Category, betAmount int, opponentPetID uint) (*Battle, *ChallengeTicket, error) {
	if !validCategories[category] {
		return nil, nil, fmt.Errorf("未知的对战类别: %s", category)
	}
	if betAmount < 0 {
		return nil, nil, fmt.Errorf("下注金额不能为负数")
	}
	if betAmount > 0 && category != CategoryWagered {
		return nil, nil, fmt.Errorf("只有wagered类别允许下注")
	}
	if category == CategoryWagered && betAmount == 0 {
		return nil, nil, fmt.Errorf("wagered类别必须下注")
	}

	challenger, err := pet.GetOwnedPet(ownerUUID, petID)
	if err != nil {
		return nil, nil, err
	}
	if !challenger.CanBattle() {
		return nil, nil, gameerr.ErrInvalidStateTransition
	}

	var opponent *pet.Pet
	if opponentPetID != 0 {
		opponent, err = pet.GetPetByID(opponentPetID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrBattleNotFound
		}
		if err != nil {
			return nil, nil, err
		}
	} else {
		candidateID, err := pet.PickOpponent(ownerUUID, petID, moduleRNG)
		if err != nil {
			return nil, nil, err
		}
		if candidateID == 0 {
			return nil, nil, ErrNoOpponent
		}
		opponent, err = pet.GetPetByID(candidateID)
		if err != nil {
			return nil, nil, err
		}
	}

	if opponent.OwnerUUID == ownerUUID {
		return nil, nil, fmt.Errorf("不能挑战自己的宠物")
	}
	if !opponent.CanBattle() {
		return nil, nil, gameerr.ErrInvalidStateTransition
	}

	b := &Battle{
		Category:      category,
		PlayerOneUUID: ownerUUID,
		PetOneID:      challenger.ID,
		PlayerTwoUUID: opponent.OwnerUUID,
		PetTwoID:      opponent.ID,
		Status:        StatusPending,
		BetAmount:     betAmount,
		PetOneBuffs:   BuffMap{},
		PetTwoBuffs:   BuffMap{},
	}
	if err := CreateBattle(b); err != nil {
		return nil, nil, fmt.Errorf("无法创建对战: %w", err)
	}

	signature, err := token.GenerateChallengeSignature(token.ChallengePayload{
		BattleID: b.ID,
		PetOneID: b.PetOneID,
		PetTwoID: b.PetTwoID,
		Category: string(b.Category),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("无法签发挑战凭据: %w", err)
	}

	return b, &ChallengeTicket{BattleID: b.ID, Signature: signature}, nil
}

// AcceptChallenge 由被挑战方接受一场pending的对战。
// 双方的下注金额在这里托管，任何一方余额不足都会拒绝并退还已扣部分。
func AcceptChallenge(accountUUID string, battleID uint, signature string) (*Battle, error) {
	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, err
	}

	if expireIfStale(b) {
		return nil, gameerr.ErrAlreadyTerminal
	}
	if b.Status != StatusPending {
		if b.Status.IsTerminal() {
			return nil, gameerr.ErrAlreadyTerminal
		}
		return nil, gameerr.ErrInvalidStateTransition
	}

	side := b.SideOf(accountUUID)
	if side == 0 {
		return nil, gameerr.ErrNotParticipant
	}
	if side != 2 {
		// 发起方不能替对方接受
		return nil, gameerr.ErrInvalidStateTransition
	}

	if !token.ValidateChallengeSignature(token.ChallengePayload{
		BattleID: b.ID,
		PetOneID: b.PetOneID,
		PetTwoID: b.PetTwoID,
		Category: string(b.Category),
	}, signature) {
		return nil, ErrInvalidTicket
	}

	petOne, err := pet.GetPetByID(b.PetOneID)
	if err != nil {
		return nil, fmt.Errorf("无法读取发起方宠物: %w", err)
	}
	petTwo, err := pet.GetPetByID(b.PetTwoID)
	if err != nil {
		return nil, fmt.Errorf("无法读取接受方宠物: %w", err)
	}
	if !petOne.CanBattle() || !petTwo.CanBattle() {
		return nil, gameerr.ErrInvalidStateTransition
	}

	// 托管双方赌注
	if b.BetAmount > 0 {
		if err := account.DebitCoins(b.PlayerOneUUID, b.BetAmount); err != nil {
			return nil, err
		}
		if err := account.DebitCoins(b.PlayerTwoUUID, b.BetAmount); err != nil {
			// 退还发起方已托管的部分
			if refundErr := account.CreditCoins(b.PlayerOneUUID, b.BetAmount); refundErr != nil {
				fmt.Printf("严重: 退还对战 %d 发起方托管金失败: %v\n", b.ID, refundErr)
			}
			return nil, err
		}
	}

	b.Start(petOne, petTwo, moduleCfg.TurnTimeLimit)
	if err := SaveBattle(b); err != nil {
		// 状态没能落盘，托管金必须退回
		if b.BetAmount > 0 {
			if refundErr := account.CreditCoins(b.PlayerOneUUID, b.BetAmount); refundErr != nil {
				fmt.Printf("严重: 退还对战 %d 发起方托管金失败: %v\n", b.ID, refundErr)
			}
			if refundErr := account.CreditCoins(b.PlayerTwoUUID, b.BetAmount); refundErr != nil {
				fmt.Printf("严重: 退还对战 %d 接受方托管金失败: %v\n", b.ID, refundErr)
			}
		}
		return nil, fmt.Errorf("无法保存对战状态: %w", err)
	}
	return b, nil
}

// --- 出招 ---

// SubmitMove 提交一次招式。
// 提交前先做超时检查：如果当前回合的截止时间已过，
// 先替未行动方解算一次隐式跳过，再处理本次提交。
func SubmitMove(accountUUID string, battleID uint, kind MoveKind) (*Battle, *BattleMove, error) {
	if !validMoveKinds[kind] {
		return nil, nil, fmt.Errorf("未知的招式类型: %s", kind)
	}

	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, nil, err
	}

	if expireIfStale(b) {
		return nil, nil, gameerr.ErrAlreadyTerminal
	}
	if err := resolveDeadlineLocked(b); err != nil {
		return nil, nil, err
	}

	if b.Status != StatusActive {
		if b.Status.IsTerminal() {
			return nil, nil, gameerr.ErrAlreadyTerminal
		}
		return nil, nil, gameerr.ErrInvalidStateTransition
	}

	side := b.SideOf(accountUUID)
	if side == 0 {
		return nil, nil, gameerr.ErrNotParticipant
	}
	if side != b.CurrentTurn {
		return nil, nil, gameerr.ErrNotYourTurn
	}

	move, err := resolveAndApplyLocked(b, side, kind, false)
	if err != nil {
		return nil, nil, err
	}
	return b, move, nil
}

// resolveAndApplyLocked 在会话锁内解算一次招式并原子落盘。
// 调用者必须已完成所有前置校验。
func resolveAndApplyLocked(b *Battle, side int, kind MoveKind, implicit bool) (*BattleMove, error) {
	defenderSide := 3 - side

	result := ResolveMove(
		b.SnapshotFor(side), b.SnapshotFor(defenderSide), kind,
		b.BuffsFor(side), b.BuffsFor(defenderSide), moduleRNG,
	)
	b.ApplyResult(side, result)

	move := &BattleMove{
		BattleID:      b.ID,
		TurnNumber:    b.TurnNumber,
		Side:          side,
		Kind:          kind,
		Damage:        result.Damage,
		Healing:       result.Healing,
		IsCritical:    result.IsCritical,
		IsMiss:        result.IsMiss,
		Implicit:      implicit,
		PetOneHPAfter: b.PetOneHP,
		PetTwoHPAfter: b.PetTwoHP,
	}

	finished := false
	if side == 1 && b.PetTwoHP == 0 {
		b.Finish(1)
		finished = true
	} else if side == 2 && b.PetOneHP == 0 {
		b.Finish(2)
		finished = true
	} else {
		b.SwitchTurn(moduleCfg.TurnTimeLimit)
	}

	if err := SaveBattleWithMove(b, move); err != nil {
		return nil, fmt.Errorf("无法保存招式结果: %w", err)
	}
	if finished {
		EnqueueSettlement(b.ID)
	}
	return move, nil
}

// resolveDeadlineLocked 做一次基于轮询的超时解算。
// 当前回合的截止时间已过时，替未行动方记录一次隐式跳过并换边。
// 每次轮询最多解算一次跳过，截止时间重置为现在起算。
func resolveDeadlineLocked(b *Battle) error {
	if b.Status != StatusActive || b.TurnDeadline == nil {
		return nil
	}
	if !time.Now().After(*b.TurnDeadline) {
		return nil
	}

	idleSide := b.CurrentTurn
	if _, err := resolveAndApplyLocked(b, idleSide, MoveSkip, true); err != nil {
		return err
	}
	return nil
}

// expireIfStale 把超过存活时间仍未被接受的挑战标记为expired。
// 返回是否发生了状态变更。此时还没有托管任何赌注，无需退款。
func expireIfStale(b *Battle) bool {
	if b.Status != StatusPending {
		return false
	}
	if time.Since(b.CreatedAt) < moduleCfg.ChallengeTTL {
		return false
	}

	b.Status = StatusExpired
	now := time.Now()
	b.FinishedAt = &now
	if err := SaveBattle(b); err != nil {
		fmt.Printf("警告: 无法把对战 %d 标记为过期: %v\n", b.ID, err)
		return false
	}
	return true
}

// --- 取消与认输 ---

// CancelChallenge 由发起方撤回一场还未被接受的挑战
func CancelChallenge(accountUUID string, battleID uint) (*Battle, error) {
	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, err
	}

	if b.Status != StatusPending {
		if b.Status.IsTerminal() {
			return nil, gameerr.ErrAlreadyTerminal
		}
		return nil, gameerr.ErrInvalidStateTransition
	}
	side := b.SideOf(accountUUID)
	if side == 0 {
		return nil, gameerr.ErrNotParticipant
	}
	if side != 1 {
		return nil, gameerr.ErrInvalidStateTransition
	}

	b.Status = StatusCancelled
	now := time.Now()
	b.FinishedAt = &now
	if err := SaveBattle(b); err != nil {
		return nil, fmt.Errorf("无法保存对战状态: %w", err)
	}
	return b, nil
}

// TerminateSession 把一场尚未结束的会话直接推进到cancelled或expired。
// 这是给运维干预和上层清理用的引擎级入口，不做参与者鉴权。
// active会话的赌注已在接受挑战时托管，终止时原路退还双方。
func TerminateSession(battleID uint, status Status) (*Battle, error) {
	if status != StatusCancelled && status != StatusExpired {
		return nil, gameerr.ErrInvalidStateTransition
	}

	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, err
	}
	if b.Status.IsTerminal() {
		return nil, gameerr.ErrAlreadyTerminal
	}

	escrowHeld := b.Status == StatusActive && b.BetAmount > 0

	b.Status = status
	now := time.Now()
	b.FinishedAt = &now
	b.TurnDeadline = nil
	if err := SaveBattle(b); err != nil {
		return nil, fmt.Errorf("无法保存对战状态: %w", err)
	}

	if escrowHeld {
		if err := account.CreditCoins(b.PlayerOneUUID, b.BetAmount); err != nil {
			fmt.Printf("严重: 终止对战 %d 后无法退还玩家 %s 的赌注: %v\n", b.ID, b.PlayerOneUUID, err)
		}
		if err := account.CreditCoins(b.PlayerTwoUUID, b.BetAmount); err != nil {
			fmt.Printf("严重: 终止对战 %d 后无法退还玩家 %s 的赌注: %v\n", b.ID, b.PlayerTwoUUID, err)
		}
	}
	return b, nil
}

// Forfeit 在active状态下主动认输，对方直接获胜并进入结算
func Forfeit(accountUUID string, battleID uint) (*Battle, error) {
	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, err
	}
	if err := resolveDeadlineLocked(b); err != nil {
		return nil, err
	}

	if b.Status != StatusActive {
		if b.Status.IsTerminal() {
			return nil, gameerr.ErrAlreadyTerminal
		}
		return nil, gameerr.ErrInvalidStateTransition
	}
	side := b.SideOf(accountUUID)
	if side == 0 {
		return nil, gameerr.ErrNotParticipant
	}

	b.Finish(3 - side)
	if err := SaveBattle(b); err != nil {
		return nil, fmt.Errorf("无法保存对战状态: %w", err)
	}
	EnqueueSettlement(b.ID)
	return b, nil
}

// --- 查询 ---

// GetBattleForAccount 读取一场对战及其招式日志。
// 读取也会先走一次超时解算，保证返回的回合状态是新鲜的。
func GetBattleForAccount(accountUUID string, battleID uint) (*Battle, []BattleMove, error) {
	LockSession(battleID)
	defer UnlockSession(battleID)

	b, err := loadBattle(battleID)
	if err != nil {
		return nil, nil, err
	}
	if b.SideOf(accountUUID) == 0 {
		return nil, nil, ErrBattleNotFound
	}

	expireIfStale(b)
	if err := resolveDeadlineLocked(b); err != nil {
		return nil, nil, err
	}

	moves, err := GetMovesByBattleID(battleID)
	if err != nil {
		return nil, nil, fmt.Errorf("无法读取对战日志: %w", err)
	}
	return b, moves, nil
}

// ListBattlesForAccount 列出账户参与的对战
func ListBattlesForAccount(accountUUID string, status Status) ([]Battle, error) {
	if status != "" {
		switch status {
		case StatusPending, StatusActive, StatusFinished, StatusCancelled, StatusExpired:
		default:
			return nil, fmt.Errorf("未知的对战状态: %s", status)
		}
	}
	return ListBattlesByAccount(accountUUID, status)
}

// loadBattle 统一把记录不存在映射为ErrBattleNotFound
func loadBattle(battleID uint) (*Battle, error) {
	b, err := GetBattleByID(battleID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBattleNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}
