package serverless

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gpavault/internal/platform/config"
	"gpavault/pkg/testutil"
)

func memoryConfig() (*config.Config, error) {
	return &config.Config{
		Store:  config.StoreMemory,
		Policy: "merge",
		Audit:  config.AuditConfig{Publisher: config.AuditNone},
		Log:    config.LogConfig{Level: "error"},
	}, nil
}

func TestHandlerServesUnderAPIPrefix(t *testing.T) {
	h := New(memoryConfig)

	rr := testutil.DoRequest(h, testutil.NewRawJSONRequest(t, http.MethodPost, "/api/save-gpa",
		`{"registrationNumber":"REG-1","gpas":{"sem1":3.5}}`))
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/api/get-gpa/REG-1", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertJSONContains(t, rr, "registrationNumber", "REG-1")
}

func TestHandlerBuildsAppOnce(t *testing.T) {
	calls := 0
	h := New(func() (*config.Config, error) {
		calls++
		return memoryConfig()
	})

	for range 3 {
		testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/api/get-gpa/REG-1", nil))
	}

	assert.Equal(t, 1, calls)
}

func TestHandlerRetriesFailedInitialisation(t *testing.T) {
	calls := 0
	h := New(func() (*config.Config, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("mongo unreachable")
		}
		return memoryConfig()
	})

	rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/api/get-gpa/REG-1", nil))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	assert.NotContains(t, rr.Body.String(), "mongo unreachable")

	rr = testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/api/get-gpa/REG-1", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	require.Equal(t, 2, calls)
}

func TestMetricsAreNotExposed(t *testing.T) {
	h := New(memoryConfig)

	rr := testutil.DoRequest(h, testutil.NewJSONRequest(t, http.MethodGet, "/metrics", nil))

	testutil.AssertStatus(t, rr, http.StatusNotFound)
}
