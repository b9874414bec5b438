package handlers

import (
	"net/http"

	"github.com/zqadmin/ojadmin/routes"
)

// Menu serves the front-end route tree used to build the navigation menu.
func Menu(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, routes.All())
}
