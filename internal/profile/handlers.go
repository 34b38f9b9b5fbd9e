package profile

import "github.com/gofiber/fiber/v2"

func RegisterRoutes(r fiber.Router, svc *Service, authMiddleware fiber.Handler) {
	r.Get("/", authMiddleware, func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		p, err := svc.Get(c.Context(), userID)
		if err != nil {
			return fiber.NewError(fiber.StatusNotFound, "no profile")
		}
		return c.JSON(p)
	})

	r.Put("/", authMiddleware, func(c *fiber.Ctx) error {
		var req Profile
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if req.WeightKg <= 0 || req.Age <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "weight_kg and age required")
		}
		req.UserID, _ = c.Locals("user_id").(string)
		p, err := svc.Upsert(c.Context(), req)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, err.Error())
		}
		return c.JSON(p)
	})
}
