package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/zqadmin/ojadmin/internal/cache"
	"github.com/zqadmin/ojadmin/internal/metrics"
	"github.com/zqadmin/ojadmin/internal/services"
	"github.com/zqadmin/ojadmin/internal/store"
	"github.com/zqadmin/ojadmin/pkg/logger"
	"github.com/zqadmin/ojadmin/types"
	"golang.org/x/crypto/bcrypt"
)

// TokenTTL is the lifetime of issued access tokens.
const TokenTTL = 24 * time.Hour

const tokenIssuer = "ojadmin"

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	userService *services.UserService
	guard       cache.LoginGuard
	blacklist   cache.TokenBlacklist
	metrics     *metrics.Manager
	validate    *validator.Validate
	log         logger.Logger
	secret      []byte
	tokenTTL    time.Duration
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
// A nil guard disables login lockouts and a nil blacklist disables logout
// revocation.
func NewAuthHandler(
	userService *services.UserService,
	guard cache.LoginGuard,
	blacklist cache.TokenBlacklist,
	m *metrics.Manager,
	log logger.Logger,
	jwtSecret string,
) *AuthHandler {
	if guard == nil {
		guard = cache.NewLoginGuard(nil)
	}
	if blacklist == nil {
		blacklist = cache.NewTokenBlacklist(nil)
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AuthHandler{
		userService: userService,
		guard:       guard,
		blacklist:   blacklist,
		metrics:     m,
		validate:    validator.New(),
		log:         log.Named("auth"),
		secret:      []byte(jwtSecret),
		tokenTTL:    TokenTTL,
	}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, h *AuthHandler) {
	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.With(h.RequireAuth).Post("/logout", h.Logout)
	r.With(h.RequireAuth, LoadUser(h.userService)).Get("/me", h.Me)
}

// RequireAuth enforces JWT authentication, rejects revoked tokens and puts
// the token claims into the request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		claims, err := h.authenticate(r)
		if err != nil {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ojadmin"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		userID, _ := strconv.Atoi(claims.Subject)
		revoked, err := h.blacklist.Revoked(ctx, claims.ID, userID, claims.IssuedAt.Time)
		if err != nil {
			h.log.Error(ctx, "token blacklist unavailable", logger.Error(err))
			writeError(w, http.StatusServiceUnavailable, "authentication unavailable")
			return
		}
		if revoked {
			w.Header().Set("WWW-Authenticate", `Bearer realm="ojadmin", error="invalid_token"`)
			writeError(w, http.StatusUnauthorized, "token revoked")
			return
		}

		ctx = context.WithValue(ctx, contextSubjectKey, claims.Subject)
		ctx = context.WithValue(ctx, contextClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *AuthHandler) authenticate(r *http.Request) (jwt.RegisteredClaims, error) {
	raw, err := bearerToken(r)
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	return parseToken(raw, h.secret)
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := h.validate.StructCtx(r.Context(), req); err != nil {
		writeError(w, http.StatusBadRequest, "missing or invalid fields")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.userService.Create(r.Context(), types.User{
		Username:     req.Username,
		Email:        req.Email,
		Name:         req.Name,
		Role:         types.RoleUser,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, services.ErrUsernameTaken) {
			writeError(w, http.StatusConflict, "username already exists")
			return
		}
		h.log.Error(r.Context(), "create user failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// Login verifies credentials and returns a JWT. Failures are counted per
// username; once a username is over the limit, every address that keeps
// trying it is locked out for a while.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr := clientAddr(r)

	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	if wait, err := h.guard.Locked(ctx, req.Username, addr); err != nil {
		h.log.Warn(ctx, "login guard unavailable", logger.Error(err))
	} else if wait > 0 {
		writeLockout(w, wait)
		return
	}

	user, err := h.userService.GetByUsername(ctx, req.Username)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}
	if err != nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		locked, gerr := h.guard.Fail(ctx, req.Username, addr)
		if gerr != nil {
			h.log.Warn(ctx, "login guard unavailable", logger.Error(gerr))
		}
		if locked {
			h.metrics.LoginLockout()
			h.log.Warn(ctx, "client locked out after failed logins",
				logger.String("addr", addr), logger.String("username", req.Username))
			writeLockout(w, cache.LoginLockout)
			return
		}
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := h.guard.Reset(ctx, req.Username); err != nil {
		h.log.Warn(ctx, "login guard reset failed", logger.Error(err))
	}
	if !user.IsActive {
		writeError(w, http.StatusForbidden, "account disabled")
		return
	}

	token, err := issueToken(user.ID, h.secret, h.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// Logout revokes the token the request was made with.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.blacklist.Revoke(r.Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
		h.log.Error(r.Context(), "revoke token failed", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to log out")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func writeLockout(w http.ResponseWriter, wait time.Duration) {
	secs := int(wait.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	writeError(w, http.StatusTooManyRequests, "too many failed login attempts")
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token string     `json:"token"`
	User  types.User `json:"user"`
}

func issueToken(userID int, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    tokenIssuer,
		Subject:   strconv.Itoa(userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(secret)
}

func parseToken(raw string, secret []byte) (jwt.RegisteredClaims, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		return jwt.RegisteredClaims{}, err
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return jwt.RegisteredClaims{}, errors.New("token has no subject")
	}
	if claims.IssuedAt == nil {
		return jwt.RegisteredClaims{}, errors.New("token has no issue time")
	}
	return claims, nil
}

func bearerToken(r *http.Request) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("missing bearer token")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}
