package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSONResponse defines the uniform structure for API responses.
type JSONResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Respond writes a JSON response with the given status code.
func Respond(ctx *gin.Context, status int, code int, message string, data interface{}) {
	ctx.JSON(status, JSONResponse{
		Code:    code,
		Message: message,
		Data:    data,
	})
}

// Success returns a standard success response.
func Success(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusOK, 0, "success", data)
}

// Created returns a standard success response with status 201.
func Created(ctx *gin.Context, data interface{}) {
	Respond(ctx, http.StatusCreated, 0, "success", data)
}

// Error returns a standard error response.
func Error(ctx *gin.Context, status int, code int, message string) {
	Respond(ctx, status, code, message, nil)
}

// SuccessCached writes the standard success envelope and stores it under key.
func SuccessCached(ctx *gin.Context, key string, data interface{}, ttlSeconds int) {
	resp := JSONResponse{Code: 0, Message: "success", Data: data}
	if key != "" && ttlSeconds > 0 {
		CacheSetJSON(key, resp, secondsToDuration(ttlSeconds))
	}
	ctx.JSON(http.StatusOK, resp)
}

// ServeCached replays a cached envelope. It reports whether the cache hit.
func ServeCached(ctx *gin.Context, key string) bool {
	b, ok := CacheGetBytes(key)
	if !ok {
		return false
	}
	ctx.Header("X-Cache", "HIT")
	ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
	return true
}

// Pagination builds the pagination block shared by list endpoints.
func Pagination(page, pageSize int, total int64) gin.H {
	totalPages := int64(0)
	if pageSize > 0 {
		totalPages = (total + int64(pageSize) - 1) / int64(pageSize)
	}
	return gin.H{
		"page":        page,
		"page_size":   pageSize,
		"total":       total,
		"total_pages": totalPages,
	}
}
