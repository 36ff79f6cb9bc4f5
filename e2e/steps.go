package e2e

import (
	"github.com/cucumber/godog"

	"gpavault/e2e/steps/common"
	"gpavault/e2e/steps/gpa"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Generic requests and status assertions
	common.RegisterSteps(ctx, tc)

	// GPA record steps
	gpa.RegisterSteps(ctx, tc)
}
