package cleanhands_test

import (
	"context"
	"fmt"
	"log"

	cleanhands "github.com/justmg/dc-clean-hands-docker-api"
)

func Example() {
	// Create an agent (reuses the browser across episodes).
	a, err := cleanhands.NewAgent(cleanhands.WithNoSandbox())
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	// Validate one notice and capture the certificate if offered.
	res, err := a.Run(context.Background(), "L0012322733", "3283")
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Status: %s, PDF captured: %v\n", res.Status, res.PDFCaptured())
}

func Example_serverDeployment() {
	a, err := cleanhands.NewAgent(
		cleanhands.WithNoSandbox(),
		cleanhands.WithAutoDownload(),
		cleanhands.WithArtifactsDir("/var/lib/cleanhands/artifacts"),
		cleanhands.WithScreenshots(),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	res, err := a.Run(context.Background(), "L0012322733", "3283")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.JSON())
}
