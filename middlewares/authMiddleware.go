package middlewares

import (
	"net/http"

	"gymserver/accounts"
	"gymserver/auth"
	"gymserver/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const identityKey = "identity"

// AuthMiddleware はトークンを検証し、アカウントを引いてコンテキストにセットする。
// 無効なアカウントもセットする。有効かどうかの判断は各サービスが行う。
func AuthMiddleware(secret []byte, directory accounts.Directory, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := auth.TokenFromRequest(c.Request)
		if err != nil {
			abortUnauthorized(c, "Not authenticated")
			return
		}

		claims, err := auth.ParseToken(secret, tokenString)
		if err != nil {
			logger.Warn("Failed to parse token", zap.Error(err))
			abortUnauthorized(c, "Invalid token")
			return
		}

		accountID, err := uuid.Parse(claims.Subject)
		if err != nil {
			logger.Warn("Token subject is not a UUID", zap.String("subject", claims.Subject))
			abortUnauthorized(c, "Invalid token")
			return
		}

		// is_active を常に最新にするため毎回DBから引く
		identity, err := directory.FindIdentity(c.Request.Context(), accountID)
		if err != nil {
			logger.Error("Failed to look up account", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"status": models.ErrCodePersistenceFailure, "error": "Database error"})
			return
		}
		if identity == nil {
			logger.Warn("Account not found", zap.String("accountID", accountID.String()))
			abortUnauthorized(c, "Account not found")
			return
		}
		// 発行後にロールが変わったトークンは使えない
		if claims.Role != identity.Role {
			logger.Warn("Token role does not match account",
				zap.String("accountID", accountID.String()),
				zap.String("tokenRole", claims.Role),
				zap.String("accountRole", identity.Role),
			)
			abortUnauthorized(c, "Invalid token")
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"status": models.ErrCodeUnauthorized, "error": message})
}

// IdentityFromContext は AuthMiddleware がセットした主体を返す。無ければ nil。
func IdentityFromContext(c *gin.Context) *models.Identity {
	value, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := value.(*models.Identity)
	return identity
}

// SetIdentity はテストや別の認証経路から主体をセットする
func SetIdentity(c *gin.Context, identity *models.Identity) {
	c.Set(identityKey, identity)
}
