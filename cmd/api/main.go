// Command api runs the speakwise attendance service.
//
// @title Speakwise API
// @version 1.0
// @description Event attendance API: attendee list imports, attendee verification and feedback tracking.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the organizer token.
package main

import (
	"os"

	_ "speakwise/docs"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
