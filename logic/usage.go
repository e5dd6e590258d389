package logic

import (
	"github.com/FahruddinZaimIbrahim/talkflow/dao"
	"github.com/FahruddinZaimIbrahim/talkflow/models"
)

// UsageLogic exposes the per-user usage ledger.
type UsageLogic struct {
	usageDAO *dao.UsageDAO
}

func NewUsageLogic(usageDAO *dao.UsageDAO) *UsageLogic {
	return &UsageLogic{usageDAO: usageDAO}
}

// Get retrieves the user's ledger entry, creating an empty one on first
// access.
func (l *UsageLogic) Get(userID string) (*models.UserUsageStats, error) {
	return l.usageDAO.Get(userID)
}
