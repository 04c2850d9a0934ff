package handler_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"civreg/internal/change/handler"
	"civreg/internal/change/handler/mocks"
	change "civreg/internal/change/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
	"civreg/pkg/requestcontext"
)

type HandlerSuite struct {
	suite.Suite

	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)

	h := handler.New(s.service, slog.New(slog.DiscardHandler))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

// do sends a request as the given client; an empty clientCode simulates a
// request that slipped past authentication.
func (s *HandlerSuite) do(method, target, body string, clientCode id.ClientCode) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if !clientCode.IsZero() {
		req = req.WithContext(requestcontext.WithClientCode(req.Context(), clientCode))
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

const createBody = `{"attributes":{"family_name":{"value":"DUPONT","certification":{"processus":"NUM1","certified_at":"2026-01-01T00:00:00Z"}}}}`

func (s *HandlerSuite) TestHandleCreate() {
	s.Run("accepted creation returns 201", func() {
		s.service.EXPECT().
			ValidateCreate(gomock.Any(), id.ClientCode("SVC-A"), gomock.Any()).
			Return(&change.ChangeResult{
				CUID:      "cuid-1",
				Status:    change.StatusOK,
				DecidedAt: time.Now(),
			}, nil)

		rec := s.do(http.MethodPost, "/identities", createBody, "SVC-A")
		s.Equal(http.StatusCreated, rec.Code)

		var body struct {
			CUID   string `json:"cuid"`
			Status string `json:"status"`
		}
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
		s.Equal("cuid-1", body.CUID)
		s.Equal("OK", body.Status)
	})

	s.Run("refused creation returns 422 with the result", func() {
		s.service.EXPECT().
			ValidateCreate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(change.Failure(change.CodeMissingPivotAttribute, "missing pivot", time.Now()), nil)

		rec := s.do(http.MethodPost, "/identities", createBody, "SVC-A")
		s.Equal(http.StatusUnprocessableEntity, rec.Code)
	})

	s.Run("engine error maps through the error writer", func() {
		s.service.EXPECT().
			ValidateCreate(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeForbidden, "nope"))

		rec := s.do(http.MethodPost, "/identities", createBody, "SVC-A")
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("missing client code is unauthorized before the engine", func() {
		rec := s.do(http.MethodPost, "/identities", createBody, "")
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("invalid body never reaches the engine", func() {
		rec := s.do(http.MethodPost, "/identities", `{"attributes":{}}`, "SVC-A")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestHandleUpdate() {
	s.service.EXPECT().
		ValidateUpdate(gomock.Any(), id.ClientCode("SVC-A"), id.CUID("cuid-1"), gomock.Any()).
		Return(&change.ChangeResult{CUID: "cuid-1", Status: change.StatusIncompleteSuccess}, nil)

	rec := s.do(http.MethodPost, "/identities/cuid-1/attributes", createBody, "SVC-A")
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestHandleMerge() {
	s.Run("merge reaches the engine with both cuids", func() {
		s.service.EXPECT().
			ValidateMerge(gomock.Any(), id.ClientCode("SVC-A"), id.CUID("cuid-1"), id.CUID("cuid-2")).
			Return(&change.MergeResult{
				PrimaryCUID:   "cuid-1",
				SecondaryCUID: "cuid-2",
				Status:        change.StatusOK,
				Conflicts:     []change.AttributeConflict{},
			}, nil)

		rec := s.do(http.MethodPost, "/identities/cuid-1/merge", `{"secondary_cuid":"cuid-2"}`, "SVC-A")
		s.Equal(http.StatusOK, rec.Code)
	})

	s.Run("missing secondary cuid is a bad request", func() {
		rec := s.do(http.MethodPost, "/identities/cuid-1/merge", `{}`, "SVC-A")
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestHandleCancelMerge() {
	s.service.EXPECT().
		CancelMerge(gomock.Any(), id.ClientCode("SVC-A"), id.CUID("cuid-2")).
		Return(nil)

	rec := s.do(http.MethodPost, "/identities/cuid-2/cancel-merge", "", "SVC-A")
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestHandleDelete() {
	s.Run("deletion returns 204", func() {
		s.service.EXPECT().
			Delete(gomock.Any(), id.ClientCode("SVC-A"), id.CUID("cuid-1")).
			Return(nil)

		rec := s.do(http.MethodDelete, "/identities/cuid-1", "", "SVC-A")
		s.Equal(http.StatusNoContent, rec.Code)
	})

	s.Run("unknown identity maps to 404", func() {
		s.service.EXPECT().
			Delete(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(dErrors.New(dErrors.CodeNotFound, "identity not found"))

		rec := s.do(http.MethodDelete, "/identities/cuid-nope", "", "SVC-A")
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestHandleDecertify() {
	s.service.EXPECT().
		Decertify(gomock.Any(), id.ClientCode("SVC-A"), id.CUID("cuid-1"), id.AttrKey("family_name")).
		Return(nil)

	rec := s.do(http.MethodPost, "/identities/cuid-1/decertify", `{"key":"family_name"}`, "SVC-A")
	s.Equal(http.StatusNoContent, rec.Code)
}

func (s *HandlerSuite) TestHandleDuplicateCheck() {
	s.service.EXPECT().
		EvaluateDuplicates(gomock.Any(), id.ClientCode("SVC-A"), gomock.Any(), id.CUID("")).
		Return([]change.Suspect{{CUID: "cuid-9", RuleID: "exact-name-birthdate", RulePriority: 1, Score: 25}}, nil)

	rec := s.do(http.MethodPost, "/duplicates/check", `{"attributes":{"family_name":{"value":"DUPONT"}}}`, "SVC-A")
	s.Equal(http.StatusOK, rec.Code)

	var body struct {
		Suspects []change.Suspect `json:"suspects"`
	}
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Require().Len(body.Suspects, 1)
	s.Equal(id.CUID("cuid-9"), body.Suspects[0].CUID)
}
