// Package middleware содержит HTTP middleware сервиса магазина.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"
)

type contextKey string

const actorKey contextKey = "actor"

const (
	authCookieName = "auth_token"
	authCookieTTL  = 365 * 24 * time.Hour
)

// Роли участников системы.
const (
	RoleOwner    = "owner"
	RoleCustomer = "customer"
)

// Actor — аутентифицированный участник запроса.
type Actor struct {
	ID   string
	Role string
}

// AuthMiddleware выполняет проверку аутентификации по подписанному cookie.
// Выдача сессий остаётся за внешним сервисом аутентификации; здесь
// проверяется только подпись и извлекается идентификатор действующего лица.
type AuthMiddleware struct {
	secretKey []byte
}

// NewAuthMiddleware создаёт новый экземпляр AuthMiddleware с указанным секретным ключом.
func NewAuthMiddleware(secret string) *AuthMiddleware {
	key := []byte(secret)
	if len(key) == 0 {
		randomKey := make([]byte, 32)
		if _, err := rand.Read(randomKey); err == nil {
			key = randomKey
		} else {
			key = []byte("default-secret-key")
		}
	}

	return &AuthMiddleware{
		secretKey: key,
	}
}

// Middleware проверяет cookie авторизации и добавляет действующее лицо в контекст запроса.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(authCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		actor, ok := a.parseCookie(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), actorKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireOwner пропускает только запросы владельца магазина.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, ok := GetActorFromContext(r.Context())
		if !ok || actor.Role != RoleOwner {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetAuthCookie устанавливает cookie авторизации для указанного действующего лица.
// Выдачей сессий занимается внешний сервис аутентификации; SetAuthCookie
// фиксирует формат cookie, который тот обязан выдавать, и используется
// тестами для входа под нужной ролью.
func (a *AuthMiddleware) SetAuthCookie(w http.ResponseWriter, actor Actor) {
	value := a.sign(actor)

	cookie := &http.Cookie{
		Name:     authCookieName,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(authCookieTTL),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	http.SetCookie(w, cookie)
}

func (a *AuthMiddleware) sign(actor Actor) string {
	claims := actor.ID + "|" + actor.Role
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(claims))
	signature := mac.Sum(nil)
	return claims + "." + hex.EncodeToString(signature)
}

func (a *AuthMiddleware) parseCookie(cookieValue string) (Actor, bool) {
	dot := strings.LastIndexByte(cookieValue, '.')
	if dot < 0 {
		return Actor{}, false
	}

	claims := cookieValue[:dot]
	signature := cookieValue[dot+1:]

	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(claims))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return Actor{}, false
	}

	parts := strings.SplitN(claims, "|", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Actor{}, false
	}

	return Actor{ID: parts[0], Role: parts[1]}, true
}

// GetActorFromContext извлекает действующее лицо из контекста запроса.
func GetActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey).(Actor)
	return actor, ok
}
