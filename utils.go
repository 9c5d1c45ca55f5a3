package attachments

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sndcds/attachments/api"
	"github.com/sndcds/attachments/repository"
	"github.com/sndcds/attachments/service"
	"github.com/sndcds/attachments/storage"
)

type UrlParamType int

const (
	Boolean UrlParamType = iota
	Int
	String
)

type UrlQueryParam struct {
	Name  string
	Type  UrlParamType
	Exist bool
	Err   error
	Bool  bool
	Int64 int64
	Value string
}

// GetUrlQueryParam reads a query parameter. Booleans are true when the
// parameter is present unless its value is "0" or "false".
func GetUrlQueryParam(gc *gin.Context, paramName string, paramType UrlParamType) UrlQueryParam {
	value, exists := gc.GetQuery(paramName)
	p := UrlQueryParam{
		Name:  paramName,
		Type:  paramType,
		Exist: exists,
		Value: value,
	}
	if !exists {
		return p
	}
	switch paramType {
	case Boolean:
		p.Bool = value != "0" && value != "false"
	case Int:
		p.Int64, p.Err = strconv.ParseInt(value, 10, 64)
	case String:
	}
	return p
}

func (p UrlQueryParam) ValueOr(def string) string {
	if p.Exist && p.Value != "" {
		return p.Value
	}
	return def
}

func (p UrlQueryParam) IntOr(def int) int {
	if p.Exist && p.Err == nil {
		return int(p.Int64)
	}
	return def
}

// ParamUUID extracts a URL path parameter as a UUID.
// If parsing fails, it writes a 400 JSON error and returns false.
func ParamUUID(gc *gin.Context, responseType, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(gc.Param(name))
	if err != nil {
		api.JSONError(gc, responseType, http.StatusBadRequest, "invalid "+name+" parameter")
		return uuid.Nil, false
	}
	return id, true
}

// writeServiceError maps service and storage errors to responses.
func (h *Attachments) writeServiceError(gc *gin.Context, responseType string, err error) {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		api.JSONError(gc, responseType, http.StatusNotFound, "attachment not found")
	case errors.Is(err, storage.ErrUnknownDisk):
		api.JSONError(gc, responseType, http.StatusBadRequest, "unknown disk")
	case errors.Is(err, service.ErrEmptyUpload):
		api.JSONError(gc, responseType, http.StatusBadRequest, err.Error())
	case errors.Is(err, storage.ErrWrite):
		h.Logger.Error("storage write failed", zap.String("path", gc.FullPath()), zap.Error(err))
		api.JSONError(gc, responseType, http.StatusInternalServerError, "failed to store file")
	default:
		h.Logger.Error("request failed", zap.String("path", gc.FullPath()), zap.Error(err))
		api.JSONDatabaseError(gc, responseType)
	}
}
