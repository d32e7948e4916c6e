// Package gameerr 定义了宠物与对战引擎共享的、可恢复的业务错误分类。
// 引擎本身不负责把这些错误翻译成面向玩家的文案，这是API层的职责。
package gameerr

import "errors"

var (
	// ErrInvalidStateTransition 表示操作在当前状态下不被允许，
	// 例如给已死亡的宠物喂食，或在非active状态的对战中出招。
	ErrInvalidStateTransition = errors.New("当前状态不允许此操作")

	// ErrInsufficientResource 表示资源不足，例如体力或金币不够。
	ErrInsufficientResource = errors.New("资源不足")

	// ErrNotParticipant 表示操作者不是该对战的参与者。
	ErrNotParticipant = errors.New("不是对战的参与者")

	// ErrAlreadyTerminal 表示实体已处于终态（死亡/离家出走的宠物，
	// 或已结束/取消/过期的对战），任何变更都被拒绝。
	ErrAlreadyTerminal = errors.New("实体已处于终态")

	// ErrNotYourTurn 表示出招的参与者不是当前回合的持有者。
	// 它是ErrInvalidStateTransition的一个特化，单独区分以便前端提示。
	ErrNotYourTurn = errors.New("还没轮到你出招")
)

// IsRejection 判断一个错误是否属于可恢复的业务拒绝。
// 这些错误保证没有发生任何部分变更，调用方可以安全地将其映射为4xx响应。
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrInsufficientResource) ||
		errors.Is(err, ErrNotParticipant) ||
		errors.Is(err, ErrAlreadyTerminal) ||
		errors.Is(err, ErrNotYourTurn)
}
