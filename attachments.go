// Package attachments exposes attachment uploads, metadata and derived
// image formats over HTTP.
package attachments

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/app"
	"github.com/sndcds/attachments/formats"
	"github.com/sndcds/attachments/logging"
	"github.com/sndcds/attachments/picture"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/resolver"
	"github.com/sndcds/attachments/service"
	"github.com/sndcds/attachments/storage"
)

type Attachments struct {
	Repo     repository.Repository
	Registry *formats.Registry
	Disks    *storage.Disks
	Uploader *service.Uploader
	Deleter  *service.Deleter
	Editor   *service.Editor
	Resolver *resolver.Resolver
	Selector *picture.Selector
	Logger   *zap.Logger

	// MaxUploadBytes limits request bodies of uploads, 0 means unlimited.
	MaxUploadBytes int64
	DefaultLocale  string
}

// New builds the HTTP handlers on top of a wired application.
func New(a *app.App) *Attachments {
	return &Attachments{
		Repo:           a.Repo,
		Registry:       a.Registry,
		Disks:          a.Disks,
		Uploader:       a.Uploader,
		Deleter:        a.Deleter,
		Editor:         a.Editor,
		Resolver:       a.Resolver,
		Selector:       a.Selector,
		Logger:         logging.OrNop(a.Logger).With(zap.String("component", "http")),
		MaxUploadBytes: a.Config.HTTP.MaxUploadBytes,
		DefaultLocale:  a.Config.HTTP.DefaultLocale,
	}
}

func (h *Attachments) RegisterRoutes(rg *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	group := rg.Group("/attachments", append([]gin.HandlerFunc{metricsMiddleware()}, middlewares...)...)

	group.POST("", h.postAttachment)
	group.GET("", h.listAttachments)
	group.GET("/files/:disk/*path", h.getFile)
	group.GET("/:id", h.getAttachment)
	group.GET("/:id/exif", h.getAttachmentExif)
	group.PATCH("/:id", h.patchAttachment)
	group.DELETE("/:id", h.deleteAttachment)
	group.POST("/:id/regenerate", h.regenerateAttachment)
	group.GET("/:id/formats/:format", h.getFormat)
	group.GET("/:id/picture/:format", h.getPicture)
}
