package attachments

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sndcds/attachments/attachment"
)

// getPostFormLocalized reads fields sent as field[<locale>]=value.
func getPostFormLocalized(gc *gin.Context, field string) attachment.Localized {
	values, ok := gc.GetPostFormMap(field)
	if !ok {
		return nil
	}
	localized := make(attachment.Localized, len(values))
	for locale, value := range values {
		locale = strings.ToLower(strings.TrimSpace(locale))
		if locale == "" {
			continue
		}
		localized[locale] = strings.TrimSpace(value)
	}
	return localized
}
