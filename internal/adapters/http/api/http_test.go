package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/admit/internal/adapters/catalog"
	"github.com/okian/admit/internal/adapters/http/api"
	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
}

// mockAdvisor returns canned answers and records the last request.
type mockAdvisor struct {
	prediction model.Prediction
	fields     []model.FieldRecommendation
	err        error
	batchErr   error
	health     service.Health
	lastProb   service.ProbabilityRequest
}

func (m *mockAdvisor) PredictProbability(_ context.Context, req service.ProbabilityRequest) (model.Prediction, error) {
	m.lastProb = req
	return m.prediction, m.err
}

func (m *mockAdvisor) RecommendFields(context.Context, service.RecommendationRequest) ([]model.FieldRecommendation, error) {
	return m.fields, m.err
}

func (m *mockAdvisor) RecommendInstitutions(context.Context, service.InstitutionRequest) ([]model.Recommendation, error) {
	return nil, m.err
}

func (m *mockAdvisor) PredictBatch(_ context.Context, items []service.ProbabilityItem) ([]service.BatchResult, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	out := make([]service.BatchResult, len(items))
	for i, it := range items {
		out[i] = service.BatchResult{ID: it.ID, Success: true, Result: m.prediction}
	}
	return out, nil
}

func (m *mockAdvisor) RecommendBatch(_ context.Context, items []service.RecommendationItem) ([]service.BatchResult, error) {
	return make([]service.BatchResult, len(items)), m.batchErr
}

func (m *mockAdvisor) Health() service.Health { return m.health }

func (m *mockAdvisor) GetStats() map[string]interface{} {
	return map[string]interface{}{"predictions": 7}
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader = http.NoBody
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	So(json.Unmarshal(w.Body.Bytes(), &out), ShouldBeNil)
	return out
}

func TestServer_Routes(t *testing.T) {
	Convey("Given a server over a mock advisor", t, func() {
		adv := &mockAdvisor{
			prediction: model.Prediction{Probability: 0.7, ExpectedScore: 27.5, SafetyBand: model.BandConsider},
			health:     service.Health{Status: service.StatusOK, FieldModel: "prior", AdmissionModel: "heuristic"},
		}
		h := api.NewServer(adv).Handler()

		Convey("When calling /healthz", func() {
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then the oracle status is reported", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["status"], ShouldEqual, "ok")
				So(body["field_model"], ShouldEqual, "prior")
			})
		})

		Convey("When the service is stopped", func() {
			adv.health = service.Health{Status: service.StatusStopped}
			w := do(h, http.MethodGet, "/healthz", "")

			Convey("Then /healthz answers 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})

		Convey("When calling /stats", func() {
			w := do(h, http.MethodGet, "/stats", "")

			Convey("Then the stats map is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["predictions"], ShouldEqual, 7.0)
			})
		})

		Convey("When calling /metrics", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")

			Convey("Then prometheus text is served", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
			})
		})

		Convey("When posting a valid probability request", func() {
			w := do(h, http.MethodPost, "/v1/probability",
				`{"institution":"BKA","field":"Computer Science","combination":"A00","score":28.5}`)

			Convey("Then the prediction is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["probability"], ShouldEqual, 0.7)
				So(body["safety_band"], ShouldEqual, "consider")
				So(adv.lastProb.Institution, ShouldEqual, "BKA")
				So(adv.lastProb.Score, ShouldEqual, 28.5)
			})

			Convey("And a request id is assigned", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldNotBeEmpty)
			})
		})

		Convey("When the caller supplies a request id", func() {
			req := httptest.NewRequest(http.MethodGet, "/healthz", http.NoBody)
			req.Header.Set(api.RequestIDHeader, "abc-123")
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			Convey("Then it is echoed back", func() {
				So(w.Header().Get(api.RequestIDHeader), ShouldEqual, "abc-123")
			})
		})

		Convey("When the body is not JSON", func() {
			w := do(h, http.MethodPost, "/v1/probability", `{"institution":`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When a required field is missing", func() {
			w := do(h, http.MethodPost, "/v1/probability", `{"field":"Law","score":20}`)

			Convey("Then 400 names the field", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeBody(w)["message"], ShouldContainSubstring, "Institution")
			})
		})

		Convey("When the score is negative", func() {
			w := do(h, http.MethodPost, "/v1/probability", `{"institution":"BKA","field":"Law","score":-1}`)

			Convey("Then 400 is returned before the advisor runs", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(adv.lastProb.Institution, ShouldBeEmpty)
			})
		})

		Convey("When a recommendation profile has too many interests", func() {
			w := do(h, http.MethodPost, "/v1/recommendations",
				`{"profile":{"scores":{"math":9},"interests":["a","b","c","d"]}}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When recommendations come back empty", func() {
			w := do(h, http.MethodPost, "/v1/recommendations", `{"profile":{"scores":{"math":9}}}`)

			Convey("Then results is an empty list", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"results":[]`)
			})
		})

		Convey("When posting a probability batch", func() {
			w := do(h, http.MethodPost, "/v1/probability/batch",
				`{"items":[{"id":"x","institution":"BKA","field":"Law","score":20},{"id":"y","institution":"BKA","field":"Law","score":-4}]}`)

			Convey("Then each item is answered in order", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				results := decodeBody(w)["results"].([]interface{})
				So(results, ShouldHaveLength, 2)
				So(results[0].(map[string]interface{})["id"], ShouldEqual, "x")
				So(results[1].(map[string]interface{})["id"], ShouldEqual, "y")
			})
		})

		Convey("When a batch envelope has no items", func() {
			w := do(h, http.MethodPost, "/v1/recommendations/batch", `{}`)

			Convey("Then 400 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a route does not exist", func() {
			w := do(h, http.MethodGet, "/v1/rankings", "")

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestServer_ErrorMapping(t *testing.T) {
	Convey("Given advisor failures of every kind", t, func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{fmt.Errorf("%w: score out of range", service.ErrValidation), http.StatusBadRequest, "bad_request"},
			{&service.NotFoundError{Entity: service.EntityInstitution, Query: "Zzyzx", Suggestions: []resolve.Suggestion{{ID: "hust", Name: "Hanoi University of Science and Technology", Similarity: 0.4}}}, http.StatusNotFound, "not_found"},
			{fmt.Errorf("%w: bundle missing", service.ErrModelUnavailable), http.StatusServiceUnavailable, "model_unavailable"},
			{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
			{errors.New("store exploded"), http.StatusInternalServerError, "internal_error"},
		}

		for _, tc := range cases {
			adv := &mockAdvisor{err: tc.err}
			h := api.NewServer(adv).Handler()
			w := do(h, http.MethodPost, "/v1/probability", `{"institution":"Zzyzx","field":"Law","score":20}`)

			Convey(fmt.Sprintf("Then %q maps to %d", tc.err, tc.status), func() {
				So(w.Code, ShouldEqual, tc.status)
				body := decodeBody(w)
				So(body["code"], ShouldEqual, tc.code)
				So(body["request_id"], ShouldNotBeEmpty)
			})
		}

		Convey("Then not-found bodies carry suggestions", func() {
			adv := &mockAdvisor{err: cases[1].err}
			w := do(api.NewServer(adv).Handler(), http.MethodPost, "/v1/probability", `{"institution":"Zzyzx","field":"Law","score":20}`)
			sugg := decodeBody(w)["suggestions"].([]interface{})
			So(sugg, ShouldHaveLength, 1)
			So(sugg[0].(map[string]interface{})["id"], ShouldEqual, "hust")
		})

		Convey("Then an oversized batch is a 400", func() {
			adv := &mockAdvisor{batchErr: fmt.Errorf("%w: too many items", service.ErrValidation)}
			w := do(api.NewServer(adv).Handler(), http.MethodPost, "/v1/probability/batch", `{"items":[]}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestServer_WithDemoCatalog(t *testing.T) {
	Convey("Given a started advisor over the demo catalog", t, func() {
		store, err := catalog.DemoStore()
		So(err, ShouldBeNil)
		svc := service.New(service.WithStore(store))
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()
		h := api.NewServer(svc).Handler()

		Convey("When predicting by catalog code", func() {
			w := do(h, http.MethodPost, "/v1/probability", `{"institution":"BKA","field":"Computer Science","combination":"A00","score":29}`)

			Convey("Then the resolved names and band are returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				body := decodeBody(w)
				So(body["institution_id"], ShouldEqual, "hust")
				So(body["expected_score"], ShouldEqual, 28.56)
				So(body["safety_band"], ShouldEqual, "consider")
			})
		})

		Convey("When the institution is unknown", func() {
			w := do(h, http.MethodPost, "/v1/probability", `{"institution":"Nowhere Academy Zzyzx","field":"Law","score":20}`)

			Convey("Then 404 is returned", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When asking for institutions of one field", func() {
			w := do(h, http.MethodPost, "/v1/institutions",
				`{"profile":{"scores":{"math":9,"physics":9,"chemistry":9,"english":8,"literature":7},"track":"science"},"field":"cs","limit":2}`)

			Convey("Then at most limit results come back", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(decodeBody(w)["results"], ShouldHaveLength, 2)
			})
		})
	})
}
