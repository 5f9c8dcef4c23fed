package main

import (
	"fmt"
	"log"
	"net/http"
	"os"

	"go.uber.org/zap"

	"github.com/mockmate/mockmate-api/api/handlers"
	"github.com/mockmate/mockmate-api/api/scheduler"
	"github.com/mockmate/mockmate-api/config"
	"github.com/mockmate/mockmate-api/databases"
)

func main() {
	a := handlers.App{}
	a.Config = *config.New()

	if err := a.Initialize(); err != nil {
		log.Fatal(err)
	}

	s := scheduler.NewScheduler(
		databases.NewSessionDatabase(a.DB()),
		databases.NewMeetingDatabase(a.DB()),
		databases.NewUserDatabase(a.DB()),
	)
	s.Start()
	defer s.Stop()

	port := os.Getenv("PORT")
	baseURL := os.Getenv("BASE_URL")
	zap.S().Infow("mockmate-api is up and running",
		"port", port,
		"url", baseURL,
	)
	log.Fatal(http.ListenAndServe(fmt.Sprintf(":%v", port), a.Router))
}
