package api

import (
	"log"

	"github.com/Soar-Robotics/SoarchainFaucet/internal/blockchain"
	"github.com/Soar-Robotics/SoarchainFaucet/internal/faucet"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// AccountHeader carries the authenticated caller address, set by the
// wallet-auth layer in front of this service.
const AccountHeader = "X-Account"

type Handler struct {
	engine  *faucet.Engine
	clock   blockchain.Clock
	denom   string
	counter *OutcomeCounter
	logger  *log.Logger
}

func NewHandler(engine *faucet.Engine, clock blockchain.Clock, denom string, counter *OutcomeCounter, logger *log.Logger) *Handler {
	if counter == nil {
		counter = NewOutcomeCounter()
	}
	return &Handler{
		engine:  engine,
		clock:   clock,
		denom:   denom,
		counter: counter,
		logger:  logger,
	}
}

func SetupRouter(h *Handler, allowedOrigins []string) *gin.Engine {
	router := gin.Default()

	corsConfig := cors.DefaultConfig()
	if len(allowedOrigins) == 0 {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = allowedOrigins
	}
	corsConfig.AddAllowHeaders(AccountHeader)
	router.Use(cors.New(corsConfig))

	router.GET("/faucet", h.getFaucet)
	router.POST("/claim", h.claim)
	router.GET("/accounts/:address", h.getAccount)
	router.GET("/accounts/:address/claims", h.getClaims)

	admin := router.Group("/admin")
	admin.POST("/pause", h.pause)
	admin.POST("/unpause", h.unpause)
	admin.POST("/withdraw", h.withdraw)

	return router
}
