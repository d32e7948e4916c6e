package battle

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/internal/pet"
	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// CreateBattleRequestBody 定义了发起挑战时请求体的JSON结构
type CreateBattleRequestBody struct {
	PetID         uint   `json:"pet_id" binding:"required"`
	Category      string `json:"category" binding:"required"`
	BetAmount     int    `json:"bet_amount"`
	OpponentPetID uint   `json:"opponent_pet_id"`
}

// AcceptBattleRequestBody 定义了接受挑战时请求体的JSON结构
type AcceptBattleRequestBody struct {
	Signature string `json:"signature" binding:"required"`
}

// MoveRequestBody 定义了出招时请求体的JSON结构
type MoveRequestBody struct {
	Kind string `json:"kind" binding:"required"`
}

// parseBattleID 从URL参数中解析对战ID
func parseBattleID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的对战ID"})
		return 0, false
	}
	return uint(id), true
}

// respondBattleError 把service层的错误映射为HTTP状态码
func respondBattleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrBattleNotFound), errors.Is(err, pet.ErrPetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrNoOpponent):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidTicket):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gameerr.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, gameerr.ErrInsufficientResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": "金币不足，无法托管赌注"})
	case errors.Is(err, gameerr.ErrNotYourTurn):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case gameerr.IsRejection(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// requireAccount 从上下文取账户UUID，缺失时直接响应401
func requireAccount(c *gin.Context) (string, bool) {
	accountUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
	}
	return accountUUID, ok
}

// HandleCreateBattle 发起一场挑战
func HandleCreateBattle(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}

	var body CreateBattleRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	b, ticket, err := CreateChallenge(accountUUID, body.PetID, Category(body.Category), body.BetAmount, body.OpponentPetID)
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"battle": b, "ticket": ticket})
}

// HandleAcceptBattle 接受一场挑战
func HandleAcceptBattle(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}
	battleID, ok := parseBattleID(c)
	if !ok {
		return
	}

	var body AcceptBattleRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	b, err := AcceptChallenge(accountUUID, battleID, body.Signature)
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": b})
}

// HandleSubmitMove 提交一次招式
func HandleSubmitMove(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}
	battleID, ok := parseBattleID(c)
	if !ok {
		return
	}

	var body MoveRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	b, move, err := SubmitMove(accountUUID, battleID, MoveKind(body.Kind))
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": b, "move": move})
}

// HandleCancelBattle 撤回一场未被接受的挑战
func HandleCancelBattle(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}
	battleID, ok := parseBattleID(c)
	if !ok {
		return
	}

	b, err := CancelChallenge(accountUUID, battleID)
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": b})
}

// HandleForfeitBattle 在对战中认输
func HandleForfeitBattle(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}
	battleID, ok := parseBattleID(c)
	if !ok {
		return
	}

	b, err := Forfeit(accountUUID, battleID)
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": b})
}

// HandleGetBattle 返回一场对战及其完整日志
func HandleGetBattle(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}
	battleID, ok := parseBattleID(c)
	if !ok {
		return
	}

	b, moves, err := GetBattleForAccount(accountUUID, battleID)
	if err != nil {
		respondBattleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"battle": b, "moves": moves})
}

// HandleListBattles 列出当前账户参与的对战，可用status查询参数过滤
func HandleListBattles(c *gin.Context) {
	accountUUID, ok := requireAccount(c)
	if !ok {
		return
	}

	battles, err := ListBattlesForAccount(accountUUID, Status(c.Query("status")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"battles": battles})
}
