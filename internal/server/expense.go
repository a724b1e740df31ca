package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	expensedomain "github.com/smallbiznis/expenseflow/internal/expense/domain"
)

func (s *Server) CreateExpense(c *gin.Context) {
	var req expensedomain.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	expense, err := s.expenseSvc.Create(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, expense)
}

func (s *Server) SubmitExpense(c *gin.Context) {
	view, err := s.expenseSvc.Submit(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) DecideExpense(c *gin.Context) {
	var req expensedomain.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	view, err := s.expenseSvc.Decide(c.Request.Context(), actorFrom(c), c.Param("id"), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) GetExpense(c *gin.Context) {
	view, err := s.expenseSvc.Get(c.Request.Context(), actorFrom(c), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (s *Server) ListMyExpenses(c *gin.Context) {
	var req expensedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.expenseSvc.ListMine(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListCompanyExpenses(c *gin.Context) {
	var req expensedomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.expenseSvc.ListCompany(c.Request.Context(), actorFrom(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListTeamExpenses(c *gin.Context) {
	expenses, err := s.expenseSvc.ListTeam(c.Request.Context(), actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expenses": expenses})
}

func (s *Server) ListPendingApprovals(c *gin.Context) {
	views, err := s.expenseSvc.ListPendingApprovals(c.Request.Context(), actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"expenses": views})
}

func (s *Server) ExpenseStats(c *gin.Context) {
	stats, err := s.expenseSvc.Stats(c.Request.Context(), actorFrom(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
