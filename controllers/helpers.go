package controllers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/cppla/grokshare/middleware"
	"github.com/cppla/grokshare/utils"
)

// requester describes who is calling. Handlers pass it down explicitly.
type requester struct {
	authorRef string
	isAdmin   bool
}

func requesterOf(ctx *gin.Context) requester {
	return requester{
		authorRef: utils.AuthorRef(middleware.ClientID(ctx)),
		isAdmin:   middleware.IsAdmin(ctx),
	}
}

// canModify allows admins, and authors on rows that carry their reference.
func (r requester) canModify(owner string) bool {
	if r.isAdmin {
		return true
	}
	return owner != "" && owner == r.authorRef
}

func parsePagination(pageStr, sizeStr string) (int, int) {
	page := 1
	pageSize := 10
	if p, err := strconv.Atoi(pageStr); err == nil && p > 0 {
		page = p
	}
	if s, err := strconv.Atoi(sizeStr); err == nil && s > 0 && s <= 100 {
		pageSize = s
	}
	return page, pageSize
}
