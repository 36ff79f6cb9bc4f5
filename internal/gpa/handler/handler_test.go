package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"gpavault/internal/gpa/handler/mocks"
	"gpavault/internal/gpa/models"
	"gpavault/internal/gpa/service"
	dErrors "gpavault/pkg/domain-errors"
	"gpavault/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

type GpaHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestGpaHandlerSuite(t *testing.T) {
	suite.Run(t, new(GpaHandlerSuite))
}

func (s *GpaHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.T().Cleanup(ctrl.Finish)
	s.service = mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s.router = chi.NewRouter()
	New(s.service, logger).Register(s.router)
}

func (s *GpaHandlerSuite) TestSaveGpa() {
	s.service.EXPECT().UpsertGpas(gomock.Any(), "REG-1", map[string]float64{"sem1": 3.5, "sem2": 4}).Return(nil)

	req := testutil.NewRawJSONRequest(s.T(), http.MethodPost, "/save-gpa",
		`{"registrationNumber":"REG-1","gpas":{"sem1":3.5,"sem2":4}}`)
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "message", MsgSaved)
}

func (s *GpaHandlerSuite) TestSaveGpaAcceptsEmptyMapping() {
	s.service.EXPECT().UpsertGpas(gomock.Any(), "REG-1", map[string]float64{}).Return(nil)

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/save-gpa", map[string]any{
		"registrationNumber": "REG-1",
		"gpas":               map[string]any{},
	})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *GpaHandlerSuite) TestSaveGpaRejectsMalformedInput() {
	bodies := map[string]string{
		"numeric registration number": `{"registrationNumber":12345,"gpas":{"sem1":3.5}}`,
		"null registration number":    `{"registrationNumber":null,"gpas":{"sem1":3.5}}`,
		"missing registration number": `{"gpas":{"sem1":3.5}}`,
		"missing gpas":                `{"registrationNumber":"REG-1"}`,
		"null gpas":                   `{"registrationNumber":"REG-1","gpas":null}`,
		"array gpas":                  `{"registrationNumber":"REG-1","gpas":[3.5]}`,
		"string gpas":                 `{"registrationNumber":"REG-1","gpas":"3.5"}`,
		"string gpa value":            `{"registrationNumber":"REG-1","gpas":{"sem1":"3.5"}}`,
		"boolean gpa value":           `{"registrationNumber":"REG-1","gpas":{"sem1":true}}`,
		"null gpa value":              `{"registrationNumber":"REG-1","gpas":{"sem1":null}}`,
		"not json":                    `registrationNumber=REG-1`,
		"empty body":                  ``,
		"json null":                   `null`,
	}
	for name, body := range bodies {
		s.Run(name, func() {
			req := testutil.NewRawJSONRequest(s.T(), http.MethodPost, "/save-gpa", body)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertError(s.T(), rr, http.StatusBadRequest, service.MsgInvalidInput, string(dErrors.CodeBadRequest))
		})
	}
}

func (s *GpaHandlerSuite) TestSaveGpaRejectsNonJSONContentType() {
	req := testutil.NewRawJSONRequest(s.T(), http.MethodPost, "/save-gpa", `{"registrationNumber":"REG-1","gpas":{}}`)
	req.Header.Set("Content-Type", "text/plain")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertError(s.T(), rr, http.StatusBadRequest, service.MsgInvalidInput, string(dErrors.CodeBadRequest))
}

func (s *GpaHandlerSuite) TestSaveGpaPropagatesServiceErrors() {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"invalid input", dErrors.New(dErrors.CodeBadRequest, service.MsgInvalidInput), http.StatusBadRequest, service.MsgInvalidInput},
		{"storage failure", dErrors.Wrap(errors.New("socket closed"), dErrors.CodeInternal, service.MsgSaveFailed), http.StatusInternalServerError, service.MsgSaveFailed},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.service.EXPECT().UpsertGpas(gomock.Any(), "REG-1", gomock.Any()).Return(tt.err)

			req := testutil.NewRawJSONRequest(s.T(), http.MethodPost, "/save-gpa", `{"registrationNumber":"REG-1","gpas":{"sem1":3}}`)
			rr := testutil.DoRequest(s.router, req)

			testutil.AssertStatus(s.T(), rr, tt.status)
			body := testutil.UnmarshalErrorResponse(s.T(), rr)
			s.Equal(tt.message, body["error"])
			s.NotContains(rr.Body.String(), "socket closed")
		})
	}
}

func (s *GpaHandlerSuite) TestGetGpa() {
	updated := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s.service.EXPECT().GetRecord(gomock.Any(), "REG-1").Return(&models.Record{
		RegistrationNumber: "REG-1",
		Gpas:               map[string]float64{"sem1": 3.5},
		UpdatedAt:          updated,
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/get-gpa/REG-1", nil))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	resp := testutil.UnmarshalResponse[RecordResponse](s.T(), rr)
	s.Equal("REG-1", resp.RegistrationNumber)
	s.Equal(map[string]float64{"sem1": 3.5}, resp.Gpas)
	s.Nil(resp.CreatedAt)
	s.Require().NotNil(resp.UpdatedAt)
	s.True(updated.Equal(*resp.UpdatedAt))
}

func (s *GpaHandlerSuite) TestGetGpaDecodesPathParameter() {
	s.service.EXPECT().GetRecord(gomock.Any(), "2021/CS 17").Return(&models.Record{
		RegistrationNumber: "2021/CS 17",
		Gpas:               map[string]float64{},
	}, nil)

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/get-gpa/2021%2FCS%2017", nil))

	testutil.AssertStatus(s.T(), rr, http.StatusOK)
	testutil.AssertJSONContains(s.T(), rr, "gpas", map[string]any{})
}

func (s *GpaHandlerSuite) TestGetGpaNotFound() {
	s.service.EXPECT().GetRecord(gomock.Any(), "REG-404").Return(nil, dErrors.New(dErrors.CodeNotFound, service.MsgNotFound))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/get-gpa/REG-404", nil))

	testutil.AssertError(s.T(), rr, http.StatusNotFound, service.MsgNotFound, string(dErrors.CodeNotFound))
}

func (s *GpaHandlerSuite) TestGetGpaStorageFailure() {
	s.service.EXPECT().GetRecord(gomock.Any(), "REG-1").Return(nil,
		dErrors.Wrap(context.DeadlineExceeded, dErrors.CodeInternal, service.MsgLookupFailed))

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/get-gpa/REG-1", nil))

	testutil.AssertError(s.T(), rr, http.StatusInternalServerError, service.MsgLookupFailed, string(dErrors.CodeInternal))
}
