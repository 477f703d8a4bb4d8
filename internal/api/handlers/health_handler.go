package handlers

import (
	"net/http"

	"github.com/Chain-Proof/chainproofserver/internal/api/render"

	"gorm.io/gorm"
)

type healthResponse struct {
	Success  bool   `json:"success"`
	Status   string `json:"status"`
	Database string `json:"database"`
}

// HealthCheckHandler checks API health and the database connection
func HealthCheckHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := healthResponse{
			Success: true,
			Status:  "API is running",
		}

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.Ping()
		}
		if err != nil {
			response.Success = false
			response.Database = "Database connection failed"
			render.JSON(w, http.StatusInternalServerError, response)
			return
		}

		response.Database = "Database connection is healthy"
		render.JSON(w, http.StatusOK, response)
	}
}
