package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

const ocrLimiterExpiry = 3 * time.Minute

// initOCRRoutes registers the OCR endpoints behind a per client limiter
func (c *Controller) initOCRRoutes() {
	limit := c.ocrRateLimiter()

	c.Echo.POST("/images/:id/ocr", c.OCRImage, limit)

	g := c.Echo.Group("/seed-packets")
	g.POST("/upload-and-ocr", c.UploadAndOCR, limit)
	g.POST("/ocr-temp", c.OCRPreview, limit)
	g.POST("/extract-info", c.ExtractInfo, limit)
	g.POST("/:id/ocr", c.OCRSeedPacket, limit)
	g.POST("/:id/extract-data", c.ExtractSeedPacketData, limit)
}

func (c *Controller) ocrRateLimiter() echo.MiddlewareFunc {
	perSecond := 2.0
	if c.Settings != nil && c.Settings.OCR.RateLimit > 0 {
		perSecond = c.Settings.OCR.RateLimit
	}
	burst := max(int(perSecond), 1)

	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(perSecond),
				Burst:     burst,
				ExpiresIn: ocrLimiterExpiry,
			},
		),
		IdentifierExtractor: func(ctx echo.Context) (string, error) {
			return ctx.RealIP(), nil
		},
		ErrorHandler: func(ctx echo.Context, err error) error {
			return c.HandleError(ctx, echo.NewHTTPError(http.StatusForbidden, "could not identify client"))
		},
		DenyHandler: func(ctx echo.Context, identifier string, err error) error {
			c.log.Debug("OCR request rate limited", logger.String("client", identifier))
			return c.HandleError(ctx, echo.NewHTTPError(http.StatusTooManyRequests,
				"Too many OCR requests, please wait before trying again"))
		},
	})
}

// ocrService returns the OCR service or the not configured error
func (c *Controller) ocrService() (*ocr.Service, error) {
	if c.OCR == nil {
		return nil, ocr.ErrNotConfigured
	}
	return c.OCR, nil
}

// OCRSeedPacket handles POST /seed-packets/:id/ocr
func (c *Controller) OCRSeedPacket(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	svc, err := c.ocrService()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	res, err := svc.RunForSeedPacket(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// OCRImage handles POST /images/:id/ocr
func (c *Controller) OCRImage(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	svc, err := c.ocrService()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	res, err := svc.RunForImage(ctx.Request().Context(), id)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// ExtractSeedPacketData handles POST /seed-packets/:id/extract-data. The
// extracted fields are returned, the packet itself is left unchanged.
func (c *Controller) ExtractSeedPacketData(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	var req struct {
		OCRText field `json:"ocr_text" form:"ocr_text"`
	}
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	text := fe.required("ocr_text", req.OCRText)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}

	reqCtx := ctx.Request().Context()
	if _, err := c.Store.SeedPackets.Get(reqCtx, id); err != nil {
		return c.HandleError(ctx, err)
	}
	svc, err := c.ocrService()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	ext, err := svc.Extract(reqCtx, text)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ext)
}

// ExtractInfo handles POST /seed-packets/extract-info with a JSON {"text"} body
func (c *Controller) ExtractInfo(ctx echo.Context) error {
	var req struct {
		Text field `json:"text" form:"text"`
	}
	if err := bindRequest(ctx, &req); err != nil {
		return c.HandleError(ctx, err)
	}
	fe := fieldErrors{}
	text := fe.required("text", req.Text)
	if err := fe.err(); err != nil {
		return c.HandleError(ctx, err)
	}
	svc, err := c.ocrService()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	ext, err := svc.Extract(ctx.Request().Context(), text)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, ext)
}

// UploadAndOCR handles POST /seed-packets/upload-and-ocr. The upload is kept
// as an image record and the note has no parent.
func (c *Controller) UploadAndOCR(ctx echo.Context) error {
	svc, err := c.ocrService()
	if err == nil && !svc.Configured() {
		err = ocr.ErrNotConfigured
	}
	if err != nil {
		return c.HandleError(ctx, err)
	}

	file := formImage(ctx)
	if file == nil {
		return c.HandleError(ctx, errors.ValidationError(imageField, "is required"))
	}
	saved, err := c.Files.SaveFile(file)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	res, err := svc.RunForUpload(ctx.Request().Context(), saved)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}

// OCRPreview handles POST /seed-packets/ocr-temp; nothing is stored
func (c *Controller) OCRPreview(ctx echo.Context) error {
	svc, err := c.ocrService()
	if err != nil {
		return c.HandleError(ctx, err)
	}
	file := formImage(ctx)
	if file == nil {
		return c.HandleError(ctx, errors.ValidationError(imageField, "is required"))
	}

	src, err := file.Open()
	if err != nil {
		return c.HandleError(ctx, errors.Upload(file.Filename, err))
	}
	defer func() { _ = src.Close() }()

	res, err := svc.Preview(ctx.Request().Context(), src, file.Filename,
		file.Header.Get(echo.HeaderContentType), file.Size)
	if err != nil {
		return c.HandleError(ctx, err)
	}
	return ctx.JSON(http.StatusOK, res)
}
