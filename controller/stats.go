package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/FahruddinZaimIbrahim/talkflow/logic"
	"github.com/FahruddinZaimIbrahim/talkflow/middleware"
)

// StatsController exposes the caller's usage ledger.
type StatsController struct {
	usageLogic *logic.UsageLogic
}

func NewStatsController(usageLogic *logic.UsageLogic) *StatsController {
	return &StatsController{usageLogic: usageLogic}
}

// Stats handles GET /chat/stats
func (c *StatsController) Stats(ctx *gin.Context) {
	stats, err := c.usageLogic.Get(middleware.UserID(ctx))
	if err != nil {
		respondError(ctx, err)
		return
	}
	respondOK(ctx, stats)
}
