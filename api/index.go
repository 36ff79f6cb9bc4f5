// Package handler is the Vercel serverless entry point. The rewrite in
// vercel.json sends /api/* here; the shared router serves /api/save-gpa and
// /api/get-gpa/{registrationNumber}.
package handler

import (
	"net/http"

	"gpavault/internal/serverless"
)

// Handler is invoked by the Vercel Go runtime for every request.
func Handler(w http.ResponseWriter, r *http.Request) {
	serverless.Default().ServeHTTP(w, r)
}
