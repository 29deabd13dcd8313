package middleware

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/grokshare/models"
	"github.com/cppla/grokshare/utils"
)

// PageViewRecorder counts successful GETs per day and path for the given route templates.
func PageViewRecorder(db *gorm.DB, routes ...string) gin.HandlerFunc {
	tracked := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		tracked[r] = struct{}{}
	}
	return func(c *gin.Context) {
		c.Next()

		if c.Request.Method != http.MethodGet {
			return
		}
		if status := c.Writer.Status(); status < 200 || status >= 400 {
			return
		}
		if _, ok := tracked[c.FullPath()]; !ok {
			return
		}

		// local midnight to align with the DATE column
		now := time.Now().In(time.Local)
		day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

		err := db.WithContext(c.Request.Context()).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}, {Name: "path"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"count": gorm.Expr("count + 1"), "updated_at": now}),
		}).Create(&models.PageView{Date: day, Path: c.Request.URL.Path, Count: 1}).Error
		if err != nil {
			utils.Sugar.Debugf("page view upsert failed path=%s err=%v", c.Request.URL.Path, err)
		}
	}
}
