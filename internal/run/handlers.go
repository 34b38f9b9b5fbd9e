package run

import (
	"errors"

	"backend-runpulse/internal/gps"
	"backend-runpulse/internal/sensor"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, mgr *Manager, authMiddleware fiber.Handler) {
	r.Post("/", authMiddleware, func(c *fiber.Ctx) error {
		var req StartRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		userID, _ := c.Locals("user_id").(string)

		runID, err := mgr.Start(c.Context(), userID, req)
		if errors.Is(err, ErrNoLocationPermission) {
			return fiber.NewError(fiber.StatusForbidden, err.Error())
		}
		if errors.Is(err, ErrAlreadyRunning) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"run_id": runID})
	})

	r.Post("/:id/samples", authMiddleware, func(c *fiber.Ctx) error {
		var sample gps.Sample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		res, err := lc.Ingest(sample)
		if err != nil {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		return c.JSON(res)
	})

	r.Post("/:id/samples/deferred", authMiddleware, func(c *fiber.Ctx) error {
		var sample gps.Sample
		if err := c.BodyParser(&sample); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := mgr.StoreSample(c.Context(), c.Params("id"), sample); err != nil {
			if errors.Is(err, ErrUnknownRun) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/:id/pause", authMiddleware, func(c *fiber.Ctx) error {
		return transition(c, mgr, func(lc *Lifecycle) error { return lc.Pause() })
	})

	r.Post("/:id/resume", authMiddleware, func(c *fiber.Ctx) error {
		return transition(c, mgr, func(lc *Lifecycle) error { return lc.Resume() })
	})

	r.Post("/:id/end", authMiddleware, func(c *fiber.Ctx) error {
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		rec, err := lc.End(c.Context())
		if errors.Is(err, ErrFinished) || errors.Is(err, ErrNotRunning) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(rec)
	})

	r.Post("/:id/reset", authMiddleware, func(c *fiber.Ctx) error {
		if err := mgr.Reset(c.Params("id")); err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(fiber.Map{"state": StateIdle})
	})

	r.Post("/:id/appstate", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Foreground bool `json:"foreground"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		lc.SetForeground(req.Foreground)
		return c.JSON(fiber.Map{"foreground": req.Foreground})
	})

	r.Post("/:id/sensors/:source/readings", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Metric sensor.Metric `json:"metric"`
			Value  int           `json:"value"`
			NoData bool          `json:"no_data"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.Metric != sensor.MetricHeartRate && req.Metric != sensor.MetricCadence {
			return fiber.NewError(fiber.StatusBadRequest, "unknown metric")
		}
		kind := sensor.SourceKind(c.Params("source"))
		err := mgr.PushReading(c.Params("id"), kind, req.Metric, sensor.Reading{Value: req.Value, NoData: req.NoData})
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/:id/sensors/:source/calories", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			Calories float64 `json:"calories"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		kind := sensor.SourceKind(c.Params("source"))
		if err := mgr.PushCalories(c.Params("id"), kind, req.Calories); err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Post("/:id/steps", authMiddleware, func(c *fiber.Ctx) error {
		var req struct {
			TotalSteps int `json:"total_steps"`
			CadenceSpm int `json:"cadence_spm"`
		}
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := mgr.PushSteps(c.Params("id"), req.TotalSteps, req.CadenceSpm); err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.SendStatus(fiber.StatusAccepted)
	})

	r.Get("/:id/stats", func(c *fiber.Ctx) error {
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(fiber.Map{
			"stats":      lc.Stats(),
			"distance_m": lc.DistanceM(),
			"elapsed_s":  lc.Elapsed().Seconds(),
		})
	})

	r.Get("/:id/segments", func(c *fiber.Ctx) error {
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(lc.Segments())
	})

	r.Get("/:id/state", func(c *fiber.Ctx) error {
		lc, err := mgr.Lifecycle(c.Params("id"))
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, err.Error())
		}
		return c.JSON(fiber.Map{"state": lc.State()})
	})
}

func transition(c *fiber.Ctx, mgr *Manager, fn func(*Lifecycle) error) error {
	lc, err := mgr.Lifecycle(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	}
	if err := fn(lc); err != nil {
		return fiber.NewError(fiber.StatusConflict, err.Error())
	}
	return c.JSON(fiber.Map{"state": lc.State()})
}
