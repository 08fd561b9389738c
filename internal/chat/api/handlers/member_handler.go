package handlers

import (
	"time"

	"direct_chat_service/internal/chat/app"
	"direct_chat_service/pkg/logger"
	"direct_chat_service/pkg/middlewares"
	token "direct_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// MaxAvatarSize upload limit for POST /api/users/avatar
const MaxAvatarSize = 5 << 20

// MemberHandler 处理用户相关的 HTTP 请求
type MemberHandler struct {
	memberUC app.MemberUseCase
}

// NewMemberHandler 创建新的 MemberHandler
func NewMemberHandler(memberUC app.MemberUseCase) *MemberHandler {
	return &MemberHandler{memberUC: memberUC}
}

// RegisterRequest body of POST /api/auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest body of POST /api/auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register 注册新用户
// @Summary 注册新用户
// @Description 建立帳號並直接登入
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "注册请求"
// @Success 201 {object} app.AuthResult "注册成功"
// @Failure 400 {object} map[string]string "请求错误"
// @Router /api/auth/register [post]
func (h *MemberHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}

	res, err := h.memberUC.Register(c.UserContext(), req.Name, req.Email, req.Password)
	if err != nil {
		return replyError(c, err)
	}
	setTokenCookie(c, res.Token)
	return c.Status(fiber.StatusCreated).JSON(res)
}

// Login 用户登录
// @Summary 用户登录
// @Description 用户通过邮箱和密码登录
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "用户登录信息"
// @Success 200 {object} app.AuthResult "登录成功"
// @Failure 400 {object} map[string]string "请求错误"
// @Failure 401 {object} map[string]string "登录失败"
// @Router /api/auth/login [post]
func (h *MemberHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request"})
	}
	logger.Log.Debug("Login", zap.String("email", req.Email))

	res, err := h.memberUC.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return replyError(c, err)
	}
	setTokenCookie(c, res.Token)
	return c.JSON(res)
}

// Logout 用户登出
// @Summary 用户登出
// @Description 注销用户会话
// @Tags Auth
// @Produce json
// @Success 200 {object} map[string]string "注销成功"
// @Failure 401 {object} map[string]string "未登入"
// @Router /api/auth/logout [post]
func (h *MemberHandler) Logout(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	if err := h.memberUC.Logout(c.UserContext(), id); err != nil {
		return replyError(c, err)
	}
	c.ClearCookie(middlewares.CookieToken)
	return c.JSON(fiber.Map{"message": "logout success"})
}

// Me 取得自己的資料
// @Summary Current member
// @Tags Users
// @Produce json
// @Success 200 {object} domain.MemberProfile
// @Router /api/users/me [get]
func (h *MemberHandler) Me(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	profile, err := h.memberUC.Profile(c.UserContext(), id)
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(profile)
}

// Search 以名稱或 email 搜尋
// @Summary Search members
// @Description name or email contains q, at most 10, never the caller
// @Tags Users
// @Produce json
// @Param q query string true "keyword"
// @Success 200 {array} domain.MemberProfile
// @Router /api/users/search [get]
func (h *MemberHandler) Search(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}
	profiles, err := h.memberUC.Search(c.UserContext(), id, c.Query("q"))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(profiles)
}

// UploadAvatar 上傳頭像
// @Summary Upload avatar
// @Tags Users
// @Accept multipart/form-data
// @Produce json
// @Param avatar formData file true "image"
// @Success 200 {object} domain.MemberProfile
// @Failure 400 {object} map[string]string "请求错误"
// @Failure 503 {object} map[string]string "storage disabled"
// @Router /api/users/avatar [post]
func (h *MemberHandler) UploadAvatar(c *fiber.Ctx) error {
	id, ok := middlewares.MemberID(c)
	if !ok {
		return unauthorized(c)
	}

	file, err := c.FormFile("avatar")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar file is required"})
	}
	if file.Size > MaxAvatarSize {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "avatar is too large"})
	}

	f, err := file.Open()
	if err != nil {
		return replyError(c, err)
	}
	defer f.Close()

	profile, err := h.memberUC.UploadAvatar(c.UserContext(), id, file.Filename, f, file.Size, file.Header.Get(fiber.HeaderContentType))
	if err != nil {
		return replyError(c, err)
	}
	return c.JSON(profile)
}

func setTokenCookie(c *fiber.Ctx, t string) {
	c.Cookie(&fiber.Cookie{
		Name:     middlewares.CookieToken,
		Value:    t,
		Expires:  time.Now().Add(token.TokenExpiration),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}
