// Package function registers the GPA API with the Google Cloud Functions
// Framework under the target name "gpa-api".
package function

import (
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"

	"gpavault/internal/serverless"
)

func init() {
	functions.HTTP("gpa-api", serverless.Default().ServeHTTP)
}
