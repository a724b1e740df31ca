package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	approvaldomain "github.com/smallbiznis/expenseflow/internal/approval/domain"
)

func (s *Server) CreateApprovalRule(c *gin.Context) {
	var req approvaldomain.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	rule, err := s.approvalSvc.CreateRule(c.Request.Context(), c.GetString(contextCompanyIDKey), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, rule)
}

func (s *Server) ListApprovalRules(c *gin.Context) {
	rules, err := s.approvalSvc.ListRules(c.Request.Context(), c.GetString(contextCompanyIDKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) CreateApprovalFlow(c *gin.Context) {
	var req approvaldomain.CreateFlowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	flow, err := s.approvalSvc.CreateFlow(c.Request.Context(), c.GetString(contextCompanyIDKey), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, flow)
}

func (s *Server) ListApprovalFlows(c *gin.Context) {
	flows, err := s.approvalSvc.ListFlows(c.Request.Context(), c.GetString(contextCompanyIDKey))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"flows": flows})
}
