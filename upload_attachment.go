package attachments

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/api"
	"github.com/sndcds/attachments/service"
)

func (h *Attachments) postAttachment(gc *gin.Context) {
	const responseType = "upload-attachment"

	if h.MaxUploadBytes > 0 {
		if gc.Request.ContentLength > h.MaxUploadBytes {
			api.JSONError(gc, responseType, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		gc.Request.Body = http.MaxBytesReader(gc.Writer, gc.Request.Body, h.MaxUploadBytes)
	}

	fileHeader, err := gc.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.JSONError(gc, responseType, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		api.JSONError(gc, responseType, http.StatusBadRequest, "missing file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		api.JSONPayloadError(gc, responseType)
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		api.JSONPayloadError(gc, responseType)
		return
	}

	in := service.UploadInput{
		Filename:       fileHeader.Filename,
		Content:        content,
		Disk:           gc.PostForm("disk"),
		EntityType:     gc.PostForm("entity_type"),
		TranslatedName: getPostFormLocalized(gc, "translated_name"),
		Alt:            getPostFormLocalized(gc, "alt"),
		Caption:        getPostFormLocalized(gc, "caption"),
	}

	a, err := h.Uploader.Upload(gc.Request.Context(), in)
	if err != nil {
		h.writeServiceError(gc, responseType, err)
		return
	}
	api.JSONCreated(gc, responseType, h.view(a))
}
