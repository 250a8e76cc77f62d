package handler

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/chaos-io/rembatch/model"
)

// Health 健康检查，附带进程常驻内存
func Health(version string) gin.HandlerFunc {
	proc, _ := process.NewProcess(int32(os.Getpid()))

	return func(c *gin.Context) {
		var rssMB float64
		if proc != nil {
			if info, err := proc.MemoryInfo(); err == nil && info != nil {
				rssMB = float64(info.RSS) / 1024 / 1024
			}
		}

		c.JSON(http.StatusOK, model.HealthResponse{
			Status:  "ok",
			Version: version,
			RSSMB:   rssMB,
		})
	}
}
