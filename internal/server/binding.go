package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// bindMessages maps field name -> validation tag -> user-facing message for
// the admin surface's JSON bindings.
type bindMessages map[string]map[string]string

func (m bindMessages) resolve(err error, fallback string) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, verr := range verrs {
			fieldMsgs, ok := m[verr.Field()]
			if !ok {
				continue
			}
			if msg, ok := fieldMsgs[verr.Tag()]; ok {
				return msg
			}
		}
	}
	if fallback == "" {
		return "invalid request"
	}
	return fallback
}

func bindJSON(c *gin.Context, req any, messages bindMessages, fallback string) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": messages.resolve(err, fallback)})
	return false
}

// bindURI treats an unparseable episode ID the same as an unknown one.
func bindURI(c *gin.Context, req any) bool {
	if err := c.ShouldBindUri(req); err != nil {
		c.Status(http.StatusNotFound)
		return false
	}
	return true
}
