package utils

import (
	"github.com/kataras/iris/v12"
)

// JSONPage writes an admin listing page: the rows plus the paging window that
// produced them.
func JSONPage(ctx iris.Context, rows interface{}, page, perPage int, total int64) {
	ctx.JSON(iris.Map{
		"data":    rows,
		"page":    page,
		"perPage": perPage,
		"total":   total,
	})
}
