package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const maxReceiptSize = 10 << 20

func (s *Server) UploadReceipt(c *gin.Context) {
	if s.receipts == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	file, err := c.FormFile("file")
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if file.Size <= 0 || file.Size > maxReceiptSize {
		AbortWithError(c, newValidationError("file", "invalid_size", "file size out of range"))
		return
	}

	reader, err := file.Open()
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer reader.Close()

	key, err := s.receipts.Upload(c.Request.Context(), c.GetString(contextCompanyIDKey), file.Filename, file.Size, reader)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"receipt_key": key})
}

func (s *Server) ReceiptURL(c *gin.Context) {
	if s.receipts == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	key := c.Query("key")
	if key == "" {
		AbortWithError(c, newValidationError("key", "required", "key is required"))
		return
	}

	url, err := s.receipts.PresignedURL(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}
