package middlewares

import (
	"net/http"
	"strings"

	"github.com/Luismorlan/pagemux/apperr"
	. "github.com/Luismorlan/pagemux/utils/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIdKey is the gin context key holding the authenticated user id. The dev
// bypass reads the same name from the request header.
const UserIdKey = "sub"

// Claims are issued by the auth service. Older tokens carry the user id in
// "id", newer ones in the registered subject.
type Claims struct {
	Id   string `json:"id"`
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) UserId() string {
	if c.Id != "" {
		return c.Id
	}
	return c.Subject
}

// VerifyToken validates an HS256 token signed with secret and returns the
// user id it was issued for.
func VerifyToken(secret string, raw string) (string, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", apperr.Unauthorized("Invalid token")
	}
	if !parsed.Valid || claims.UserId() == "" {
		return "", apperr.Unauthorized("Invalid token")
	}
	return claims.UserId(), nil
}

// Authenticator binds VerifyToken to secret, for the websocket handshake.
func Authenticator(secret string) func(token string) (string, error) {
	return func(token string) (string, error) {
		return VerifyToken(secret, token)
	}
}

// JWT reads "Authorization: Bearer <token>" and stores the user id under
// UserIdKey. Missing or invalid tokens abort with 401.
func JWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			abortWithError(c, apperr.Unauthorized("No authentication token"))
			return
		}

		userId, err := VerifyToken(secret, token)
		if err != nil {
			abortWithError(c, apperr.Unauthorized("Authentication failed"))
			return
		}
		c.Set(UserIdKey, userId)
		c.Next()
	}
}

// DevAuth trusts the "sub" request header. Only for local development.
func DevAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		userId := c.GetHeader(UserIdKey)
		if userId == "" {
			abortWithError(c, apperr.Unauthorized("No authentication token"))
			return
		}
		c.Set(UserIdKey, userId)
		c.Next()
	}
}

func UserId(c *gin.Context) string {
	return c.GetString(UserIdKey)
}

// ErrorHandler renders the last error attached with c.Error as
// {"status": "error", "message": ...}.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := apperr.HTTPStatus(err)
		if status >= http.StatusInternalServerError {
			Log.WithFields(map[string]interface{}{
				"method": c.Request.Method,
				"path":   c.FullPath(),
			}).Errorln("request failed: ", err)
		}
		c.JSON(status, gin.H{"status": "error", "message": apperr.PublicMessage(err)})
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"status": "error", "message": apperr.PublicMessage(err)})
}
