package handlers

import (
	"log"
	"strings"

	"gallery-service/internal/services"

	"github.com/gofiber/fiber/v2"
)

// CacheHandler handles the holdings cache endpoints
type CacheHandler struct {
	holdings *services.HoldingsService
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(holdings *services.HoldingsService) *CacheHandler {
	return &CacheHandler{holdings: holdings}
}

// PreloadRequest represents the request body for preloading kiosks
type PreloadRequest struct {
	KioskIDs []string `json:"kioskIds"`
}

// PreloadKiosks handles POST /cache/preload to warm the holdings cache
// @Summary Preload kiosk holdings into cache
// @Description Reads the holdings of several kiosks from chain so later scene requests are served from cache
// @Tags cache
// @Accept json
// @Produce json
// @Param request body PreloadRequest true "List of kiosk IDs to preload"
// @Success 200 {object} map[string]interface{} "Preload successful"
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Failure 207 {object} map[string]interface{} "Partial success"
// @Router /cache/preload [post]
func (h *CacheHandler) PreloadKiosks(c *fiber.Ctx) error {
	log.Printf("[PRELOAD] Preloading kiosk holdings")
	var request PreloadRequest
	if err := c.BodyParser(&request); err != nil {
		log.Printf("Invalid preload request: %v", err)
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "Invalid request format",
		})
	}

	var kioskIDs []string
	seen := make(map[string]bool)
	for _, id := range request.KioskIDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		kioskIDs = append(kioskIDs, id)
	}
	if len(kioskIDs) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"message": "No kiosk IDs provided",
		})
	}

	loaded, err := h.holdings.Preload(c.UserContext(), kioskIDs)
	if err != nil {
		log.Printf("Preload completed with errors: %v", err)
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"success":   false,
			"message":   "Some kiosks failed to preload",
			"loaded":    loaded,
			"requested": len(kioskIDs),
			"error":     err.Error(),
		})
	}

	return c.JSON(fiber.Map{
		"success":   true,
		"message":   "Kiosks preloaded successfully",
		"loaded":    loaded,
		"requested": len(kioskIDs),
	})
}

// GetCacheStats handles GET /cache/stats
// @Summary Get cache statistics
// @Description Get statistics about the holdings cache
// @Tags cache
// @Produce json
// @Success 200 {object} cache.LayerStats "Cache statistics"
// @Failure 404 {object} map[string]interface{} "Cache disabled"
// @Router /cache/stats [get]
func (h *CacheHandler) GetCacheStats(c *fiber.Ctx) error {
	stats, ok := h.holdings.Stats()
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   true,
			"message": "Holdings cache is disabled",
		})
	}
	return c.JSON(stats)
}

// InvalidateKiosk handles DELETE /cache/kiosks/:kioskId to drop one kiosk's cached holdings
// @Summary Invalidate cached kiosk
// @Tags cache
// @Param kioskId path string true "Kiosk object ID"
// @Success 204 "No Content"
// @Router /cache/kiosks/{kioskId} [delete]
func (h *CacheHandler) InvalidateKiosk(c *fiber.Ctx) error {
	h.holdings.Invalidate(c.Params("kioskId"))
	return c.SendStatus(fiber.StatusNoContent)
}

// ClearCache handles POST /cache/clear to clear all cached holdings
// @Summary Clear entire cache
// @Tags cache
// @Produce json
// @Success 200 {object} map[string]interface{} "Cache cleared"
// @Failure 500 {object} map[string]interface{} "Internal server error"
// @Router /cache/clear [post]
func (h *CacheHandler) ClearCache(c *fiber.Ctx) error {
	if err := h.holdings.Clear(); err != nil {
		log.Printf("Error clearing cache: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   true,
			"message": "Failed to clear cache",
		})
	}

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Cache cleared successfully",
	})
}
