package services

import (
	"context"

	"gallery-service/internal/chain"
	"gallery-service/internal/models"
)

// ViewerScene resolves the config a freshly loaded viewer should show: the stored config
// reconciled with current holdings, or the default layout.
type ViewerScene struct {
	Manager  *SceneManager
	Holdings chain.HoldingsProvider
}

func (v *ViewerScene) ViewerScene(ctx context.Context, kioskID string) (*models.SceneConfig, error) {
	items, err := v.Holdings.GetKioskItems(ctx, kioskID)
	if err != nil {
		return nil, err
	}
	cfg, _, err := v.Manager.LoadSceneConfigForHoldings(ctx, kioskID, items)
	return cfg, err
}
