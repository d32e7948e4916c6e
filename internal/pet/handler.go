package pet

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/MoyuArc/pet-arena-backend/internal/account"
	"github.com/MoyuArc/pet-arena-backend/pkg/gameerr"
)

// AdoptRequestBody 定义了领养宠物时请求体的JSON结构
type AdoptRequestBody struct {
	Name        string `json:"name" binding:"required"`
	Species     string `json:"species" binding:"required"`
	Rarity      string `json:"rarity"`
	Personality string `json:"personality"`
}

// UpdateRequestBody 定义了修改宠物信息时请求体的JSON结构
type UpdateRequestBody struct {
	Name       *string `json:"name"`
	IsFavorite *bool   `json:"is_favorite"`
}

// SleepRequestBody 定义了让宠物睡眠时请求体的JSON结构
type SleepRequestBody struct {
	Hours int `json:"hours"`
}

// petView 是宠物的API响应结构，在持久化字段之外附带派生属性
type petView struct {
	Pet
	ExpToNextLevel   int  `json:"exp_to_next_level"`
	OverallCondition int  `json:"overall_condition"`
	AgeDays          int  `json:"age_days"`
	IsAlive          bool `json:"is_alive"`
	CanBattle        bool `json:"can_battle"`
}

func newPetView(p *Pet) petView {
	return petView{
		Pet:              *p,
		ExpToNextLevel:   p.ExpToNextLevel(),
		OverallCondition: p.OverallCondition(),
		AgeDays:          p.AgeDays(),
		IsAlive:          p.IsAlive(),
		CanBattle:        p.CanBattle(),
	}
}

// parsePetID 从URL参数中解析宠物ID
func parsePetID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的宠物ID"})
		return 0, false
	}
	return uint(id), true
}

// respondServiceError 把service层的错误映射为HTTP状态码
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrPetNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrPetLimitReached):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, gameerr.ErrInsufficientResource):
		c.JSON(http.StatusBadRequest, gin.H{"error": "资源不足，无法执行该操作"})
	case errors.Is(err, gameerr.ErrAlreadyTerminal):
		c.JSON(http.StatusConflict, gin.H{"error": "宠物已处于终局状态"})
	case errors.Is(err, gameerr.ErrInvalidStateTransition):
		c.JSON(http.StatusConflict, gin.H{"error": "宠物当前状态不允许该操作"})
	case gameerr.IsRejection(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// HandleAdoptPet 处理领养新宠物的请求
func HandleAdoptPet(c *gin.Context) {
	ownerUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}

	var body AdoptRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	p, err := AdoptPet(ownerUUID, body.Name, Species(body.Species), Rarity(body.Rarity), Personality(body.Personality))
	if err != nil {
		if errors.Is(err, ErrPetLimitReached) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		} else {
			c.JSON(http.StatusBadRequest, gin.H{"error": "领养失败: " + err.Error()})
		}
		return
	}
	c.JSON(http.StatusCreated, newPetView(p))
}

// HandleListPets 返回当前用户的全部宠物
func HandleListPets(c *gin.Context) {
	ownerUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}

	pets, err := ListPets(ownerUUID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "无法读取宠物列表: " + err.Error()})
		return
	}

	views := make([]petView, 0, len(pets))
	for i := range pets {
		views = append(views, newPetView(&pets[i]))
	}
	c.JSON(http.StatusOK, gin.H{"pets": views})
}

// HandleGetPet 返回单只宠物的详情
func HandleGetPet(c *gin.Context) {
	ownerUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}
	petID, ok := parsePetID(c)
	if !ok {
		return
	}

	p, err := GetOwnedPet(ownerUUID, petID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPetView(p))
}

// HandleUpdatePet 修改宠物的名字或收藏标记
func HandleUpdatePet(c *gin.Context) {
	ownerUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}
	petID, ok := parsePetID(c)
	if !ok {
		return
	}

	var body UpdateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
		return
	}

	p, err := RenamePet(ownerUUID, petID, body.Name, body.IsFavorite)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPetView(p))
}

// careHandler 生成标准照料操作的gin处理函数
func careHandler(action func(ownerUUID string, petID uint) (*Pet, []StatusChange, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		ownerUUID, ok := account.UUIDFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
			return
		}
		petID, ok := parsePetID(c)
		if !ok {
			return
		}

		p, changes, err := action(ownerUUID, petID)
		if err != nil {
			respondServiceError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"pet": newPetView(p), "changes": changes})
	}
}

// HandleFeedPet 喂食
var HandleFeedPet = careHandler(FeedPet)

// HandlePlayWithPet 玩耍
var HandlePlayWithPet = careHandler(PlayWithPet)

// HandleCaressPet 抚摸
var HandleCaressPet = careHandler(CaressPet)

// HandleHealPet 治疗
var HandleHealPet = careHandler(HealPet)

// HandleWakePet 手动唤醒
var HandleWakePet = careHandler(WakePet)

// HandleSleepPet 让宠物睡眠，默认4小时
func HandleSleepPet(c *gin.Context) {
	ownerUUID, ok := account.UUIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "无法识别用户身份"})
		return
	}
	petID, ok := parsePetID(c)
	if !ok {
		return
	}

	body := SleepRequestBody{Hours: 4}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求格式错误: " + err.Error()})
			return
		}
	}

	p, _, err := PutPetToSleep(ownerUUID, petID, body.Hours)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pet": newPetView(p), "sleep_until": p.SleepUntil})
}
