package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetCompany(c *gin.Context) {
	company, err := s.companySvc.GetByID(c.Request.Context(), c.GetString(contextCompanyIDKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, company)
}
