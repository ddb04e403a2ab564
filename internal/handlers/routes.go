package handlers

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the gallery API on router.
func RegisterRoutes(router fiber.Router, scenes *SceneHandler, caches *CacheHandler) {
	kiosks := router.Group("/kiosks/:kioskId")
	kiosks.Get("/items", scenes.ListItems)
	kiosks.Get("/scene", scenes.GetScene)
	kiosks.Post("/scene", scenes.CreateScene)
	kiosks.Get("/scene/stats", scenes.GetSceneStats)
	kiosks.Post("/scene/capture", scenes.CaptureScene)
	kiosks.Post("/scene/apply", scenes.ApplyScene)
	kiosks.Post("/scene/transaction", scenes.BuildSaveTransaction)
	kiosks.Post("/scene/import", scenes.ImportScene)
	kiosks.Get("/scene/history", scenes.ListHistory)
	kiosks.Get("/scene/history/:digest", scenes.GetHistory)
	kiosks.Get("/objects/:objectId/properties", scenes.GetObjectProperties)
	kiosks.Post("/objects/:objectId/transaction", scenes.BuildObjectTransaction)

	if caches != nil {
		router.Post("/cache/preload", caches.PreloadKiosks)
		router.Get("/cache/stats", caches.GetCacheStats)
		router.Delete("/cache/kiosks/:kioskId", caches.InvalidateKiosk)
		router.Post("/cache/clear", caches.ClearCache)
	}
}
