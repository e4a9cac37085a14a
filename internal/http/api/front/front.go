// Package front wires the user-facing API routes.
package front

import (
	"github.com/creatorpilot/creditledger/internal/auth"
	"github.com/creatorpilot/creditledger/internal/config"
	"github.com/creatorpilot/creditledger/internal/http/api/front/handlers"
	"github.com/creatorpilot/creditledger/internal/ledger"
	"github.com/creatorpilot/creditledger/internal/subscription"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register mounts the front API under /v0.
func Register(r *gin.Engine, db *gorm.DB, svc *ledger.Service, subs subscription.Lookup, jwtCfg config.JWTConfig) {
	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	creditHandler := handlers.NewCreditHandler(svc, subs)

	v0 := r.Group("/v0")
	v0.POST("/auth/register", authHandler.Register)
	v0.POST("/auth/login", authHandler.Login)

	credits := v0.Group("/credits", auth.Middleware(jwtCfg))
	credits.GET("", creditHandler.Balance)
	credits.POST("/deduct", creditHandler.Deduct)
	credits.POST("/purchase", creditHandler.Purchase)
	credits.GET("/transactions", creditHandler.Transactions)
}
