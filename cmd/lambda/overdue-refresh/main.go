// Overdue Refresh Lambda entry point, scheduled daily.
package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"repayment-negotiation-engine/internal/handlers"
	"repayment-negotiation-engine/internal/utils"
)

func main() {
	// Initialize logger
	_ = utils.InitLogger("info")
	defer utils.Sync()

	// Create handler
	handler, err := handlers.NewOverdueRefreshHandler()
	if err != nil {
		panic("Failed to create handler: " + err.Error())
	}

	// Start Lambda
	lambda.Start(handler.Handle)
}
