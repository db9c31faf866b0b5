package auth

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bookreview/internal/session"
	"bookreview/internal/web"
	"bookreview/pkg/apperr"
)

const (
	pageLogin    = "login"
	pageRegister = "register"
)

type Handler struct {
	Service *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Service: svc}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.GET("/login", h.loginPage)
	r.POST("/login", h.login)
	r.GET("/logout", RequireLogin(), h.logout)
	r.GET("/register", h.registerPage)
	r.POST("/register", h.register)
}

func (h *Handler) loginPage(c *gin.Context) {
	if sc := session.FromGin(c); sc != nil {
		sc.ClearIdentity()
	}
	web.Page(c, http.StatusOK, pageLogin, nil)
}

func (h *Handler) login(c *gin.Context) {
	sc := session.FromGin(c)
	if sc != nil {
		sc.ClearIdentity()
	}

	u, err := h.Service.Authenticate(c.Request.Context(), c.PostForm("username"), c.PostForm("password"))
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			web.FormError(c, http.StatusBadRequest, pageLogin, apperr.Message(err, MsgInvalidCredentials))
		case errors.Is(err, apperr.ErrAuth):
			web.Logger(c).WithField("username", c.PostForm("username")).Info("login rejected")
			web.FormError(c, http.StatusUnauthorized, pageLogin, MsgInvalidCredentials)
		default:
			web.Logger(c).WithError(err).Error("login failed")
			web.InternalError(c)
		}
		return
	}

	if sc == nil {
		web.InternalError(c)
		return
	}
	if err := sc.Authenticate(c.Request.Context(), u.ID, u.Username); err != nil {
		web.Logger(c).WithError(err).Error("start session")
		web.InternalError(c)
		return
	}
	web.Logger(c).WithField("user_id", u.ID).Info("user logged in")
	web.RedirectWithFlash(c, "/search", web.FlashInfo, MsgLoginSuccessful)
}

func (h *Handler) logout(c *gin.Context) {
	sc := session.FromGin(c)
	if err := sc.Clear(c.Request.Context()); err != nil {
		web.Logger(c).WithError(err).Error("logout")
		web.InternalError(c)
		return
	}
	web.RedirectWithFlash(c, "/", web.FlashInfo, MsgLoggedOut)
}

func (h *Handler) registerPage(c *gin.Context) {
	if sc := session.FromGin(c); sc != nil {
		sc.ClearIdentity()
	}
	web.Page(c, http.StatusOK, pageRegister, nil)
}

func (h *Handler) register(c *gin.Context) {
	if sc := session.FromGin(c); sc != nil {
		sc.ClearIdentity()
	}

	_, err := h.Service.Register(
		c.Request.Context(),
		c.PostForm("username"),
		c.PostForm("password"),
		c.PostForm("confirmPassword"),
	)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrValidation):
			web.FormError(c, http.StatusBadRequest, pageRegister, apperr.Message(err, MsgNoUsername))
		case errors.Is(err, apperr.ErrDuplicate):
			web.FormError(c, http.StatusConflict, pageRegister, MsgUsernameTaken)
		default:
			web.Logger(c).WithError(err).Error("register failed")
			web.InternalError(c)
		}
		return
	}

	web.RedirectWithFlash(c, "/login", web.FlashInfo, MsgAccountCreated)
}
