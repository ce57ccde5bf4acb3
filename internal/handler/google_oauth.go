package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"earnx/config"
	"earnx/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	googleUserInfoURL  = "https://www.googleapis.com/oauth2/v2/userinfo"
	googleTokenInfoURL = "https://oauth2.googleapis.com/tokeninfo"
	oauthStateCookie   = "earnx_oauth_state"
)

type GoogleOAuthHandler struct {
	cfg     *config.Config
	authSvc *service.AuthService
	log     *logrus.Entry

	tokenInfoURL string
	httpClient   *http.Client
}

func NewGoogleOAuthHandler(cfg *config.Config, authSvc *service.AuthService, log *logrus.Logger) *GoogleOAuthHandler {
	return &GoogleOAuthHandler{
		cfg:          cfg,
		authSvc:      authSvc,
		log:          log.WithField("component", "google_oauth"),
		tokenInfoURL: googleTokenInfoURL,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (h *GoogleOAuthHandler) OAuth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.cfg.OAuth.GoogleClientID,
		ClientSecret: h.cfg.OAuth.GoogleClientSecret,
		RedirectURL:  h.cfg.OAuth.GoogleRedirectURL,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func (h *GoogleOAuthHandler) configured(c *gin.Context) bool {
	if h.cfg.OAuth.GoogleClientID == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google OAuth not configured", "code": "OAUTH_DISABLED"})
		return false
	}
	return true
}

// Redirect sends the user to the Google consent screen.
func (h *GoogleOAuthHandler) Redirect(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	state := uuid.NewString()
	c.SetCookie(oauthStateCookie, state, 600, "/", "", h.cfg.Server.Env == "production", true)
	c.Redirect(http.StatusFound, h.OAuth2Config().AuthCodeURL(state, oauth2.AccessTypeOnline))
}

// Callback exchanges code for tokens, fetches user info, creates/links user, returns JWT.
func (h *GoogleOAuthHandler) Callback(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	code := c.Query("code")
	if code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing code", "code": "VALIDATION"})
		return
	}
	if state, err := c.Cookie(oauthStateCookie); err != nil || state != c.Query("state") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid oauth state", "code": "VALIDATION"})
		return
	}
	ctx := c.Request.Context()
	conf := h.OAuth2Config()
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		h.log.WithError(err).Warn("code exchange failed")
		c.JSON(http.StatusBadRequest, gin.H{"error": "exchange failed", "code": "OAUTH_FAILED"})
		return
	}
	body, err := h.fetch(ctx, conf.Client(ctx, tok), googleUserInfoURL)
	if err != nil {
		h.log.WithError(err).Warn("userinfo fetch failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to get user info", "code": "OAUTH_FAILED"})
		return
	}
	p := service.GoogleProfile{
		ID:            gjson.GetBytes(body, "id").String(),
		Email:         gjson.GetBytes(body, "email").String(),
		Name:          gjson.GetBytes(body, "name").String(),
		AvatarURL:     gjson.GetBytes(body, "picture").String(),
		EmailVerified: gjson.GetBytes(body, "verified_email").Bool(),
	}
	h.login(c, p, "")
}

// Token accepts an ID token from a mobile Google sign-in and returns JWTs.
// referral_code only applies when a new account is created.
func (h *GoogleOAuthHandler) Token(c *gin.Context) {
	if !h.configured(c) {
		return
	}
	var req struct {
		IDToken      string `json:"id_token" binding:"required"`
		ReferralCode string `json:"referral_code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id_token required", "code": "VALIDATION"})
		return
	}
	body, err := h.fetch(c.Request.Context(), h.httpClient, h.tokenInfoURL+"?id_token="+url.QueryEscape(req.IDToken))
	if err != nil {
		h.log.WithError(err).Info("id token rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid id_token", "code": "INVALID_TOKEN"})
		return
	}
	info := gjson.ParseBytes(body)
	if aud := info.Get("aud").String(); aud != h.cfg.OAuth.GoogleClientID {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "id_token issued for another client", "code": "INVALID_TOKEN"})
		return
	}
	// tokeninfo reports email_verified as the string "true".
	p := service.GoogleProfile{
		ID:            info.Get("sub").String(),
		Email:         info.Get("email").String(),
		Name:          info.Get("name").String(),
		AvatarURL:     info.Get("picture").String(),
		EmailVerified: info.Get("email_verified").Bool(),
	}
	h.login(c, p, req.ReferralCode)
}

func (h *GoogleOAuthHandler) login(c *gin.Context, p service.GoogleProfile, referral string) {
	if p.ID == "" || p.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token payload", "code": "VALIDATION"})
		return
	}
	sess, err := h.authSvc.LoginWithGoogle(c.Request.Context(), actorFrom(c, ""), p, referral)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *GoogleOAuthHandler) fetch(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: status %d", resp.StatusCode)
	}
	return body, nil
}
