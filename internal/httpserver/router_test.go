package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"labflow/internal/handler"
	"labflow/internal/model"
	"labflow/internal/registry"
	"labflow/internal/service"
	"labflow/pkg/apperr"
)

const testSecret = "test-secret"

type fakeRegistry struct {
	warning string
}

func (f *fakeRegistry) Snapshot(ctx context.Context) (*registry.Snapshot, error) {
	return registry.NewSnapshot([]model.Stage{
		{Code: "started", Name: "Started", Order: 1, Active: true},
		{Code: "finished", Name: "Finished", Order: 2, Active: true},
	}), nil
}

func (f *fakeRegistry) Upsert(ctx context.Context, s *model.Stage) (string, error) {
	if s.Code == "" || s.Name == "" {
		return "", apperr.Validation("code", "must not be empty")
	}
	return f.warning, nil
}

type fakeJobManager struct {
	job *model.Job
}

func (f *fakeJobManager) Create(ctx context.Context, in service.CreateJobInput) (*model.Job, error) {
	return f.job, nil
}

func (f *fakeJobManager) Get(ctx context.Context, id int64) (*model.Job, error) {
	if f.job == nil || f.job.ID != id {
		return nil, apperr.NotFound("job", "unknown")
	}
	return f.job, nil
}

func (f *fakeJobManager) List(ctx context.Context, filter model.JobFilter) ([]model.Job, error) {
	if f.job == nil {
		return []model.Job{}, nil
	}
	return []model.Job{*f.job}, nil
}

func (f *fakeJobManager) Update(ctx context.Context, id int64, u model.JobUpdate) (*model.Job, error) {
	return f.job, nil
}

func (f *fakeJobManager) Deactivate(ctx context.Context, id int64) error {
	return nil
}

type fakeEngine struct {
	err        error
	lastTarget string
	lastActor  model.Actor
}

func (f *fakeEngine) Transition(ctx context.Context, jobID int64, targetCode string, actor model.Actor) (*model.Job, error) {
	f.lastTarget = targetCode
	f.lastActor = actor
	if f.err != nil {
		return nil, f.err
	}
	return &model.Job{ID: jobID, StageCode: targetCode, Active: true}, nil
}

func (f *fakeEngine) NextApplicableStage(ctx context.Context, jobID int64) (*model.Stage, error) {
	return &model.Stage{Code: "finished", Name: "Finished", Order: 2, Active: true}, nil
}

type fakeComments struct {
	trail []model.Comment
}

func (f *fakeComments) Append(ctx context.Context, jobID int64, actor model.Actor, message string, attachments []string, internal bool) (*model.Comment, error) {
	if message == "" {
		return nil, apperr.Validation("message", "must not be empty")
	}
	c := model.Comment{ID: int64(len(f.trail) + 1), JobID: jobID, AuthorID: actor.ID, Message: message, Internal: internal, CreatedAt: time.Now()}
	f.trail = append(f.trail, c)
	return &c, nil
}

func (f *fakeComments) List(ctx context.Context, jobID int64) ([]model.Comment, error) {
	return f.trail, nil
}

type testEnv struct {
	router   *Router
	engine   *fakeEngine
	comments *fakeComments
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := zap.NewNop()
	engine := &fakeEngine{}
	comments := &fakeComments{}
	jobs := &fakeJobManager{job: &model.Job{ID: 7, OrderID: 1, StageCode: "started", Active: true}}

	router := NewRouter(
		handler.NewStageHandler(&fakeRegistry{warning: "order 2 is already used"}, log),
		handler.NewJobHandler(jobs, engine, log),
		handler.NewCommentHandler(comments, log),
		testSecret,
		nil,
	)
	return &testEnv{router: router, engine: engine, comments: comments}
}

func makeToken(t *testing.T, id int64, name, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": id,
		"name":    name,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.Engine.ServeHTTP(w, req)
	return w
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/stages", "", "")
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestListStages(t *testing.T) {
	env := newTestEnv(t)
	token := makeToken(t, 1, "Mia", "doctor")

	w := env.do(t, http.MethodGet, "/stages", token, "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Stages []model.Stage `json:"stages"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Stages) != 2 || resp.Stages[0].Code != "started" {
		t.Fatalf("unexpected stages: %+v", resp.Stages)
	}
}

func TestUpsertStageRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)
	body := `{"code":"qa","name":"Quality Control","order":5}`

	w := env.do(t, http.MethodPost, "/stages", makeToken(t, 1, "Mia", "operator"), body)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", w.Code)
	}

	w = env.do(t, http.MethodPost, "/stages", makeToken(t, 2, "Ada", "admin"), body)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "warning") {
		t.Fatalf("expected the collision warning in the response: %s", w.Body.String())
	}
}

func TestPatchRoutesStageChangeToEngine(t *testing.T) {
	env := newTestEnv(t)
	token := makeToken(t, 3, "Ken", "operator")

	w := env.do(t, http.MethodPatch, "/jobs/7", token, `{"stage_code":"finished"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if env.engine.lastTarget != "finished" {
		t.Fatalf("engine not invoked with target, got %q", env.engine.lastTarget)
	}
	if env.engine.lastActor.Role != "operator" || env.engine.lastActor.ID != 3 {
		t.Fatalf("actor not propagated: %+v", env.engine.lastActor)
	}
}

func TestPatchRejectsMixedBody(t *testing.T) {
	env := newTestEnv(t)
	token := makeToken(t, 3, "Ken", "operator")

	w := env.do(t, http.MethodPatch, "/jobs/7", token, `{"stage_code":"finished","lot":"L-9"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mixed body, got %d", w.Code)
	}
}

func TestPatchFieldUpdateRequiresCapability(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPatch, "/jobs/7", makeToken(t, 1, "Doc", "doctor"), `{"lot":"L-9"}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for doctor field update, got %d", w.Code)
	}

	w = env.do(t, http.MethodPatch, "/jobs/7", makeToken(t, 3, "Ken", "operator"), `{"lot":"L-9"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator field update, got %d: %s", w.Code, w.Body.String())
	}
}

func TestErrorTaxonomyMapsToStatusCodes(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{apperr.Forbidden("no backward capability"), http.StatusForbidden},
		{apperr.Conflict("stale stage"), http.StatusConflict},
		{apperr.NotFound("stage", "ghost"), http.StatusNotFound},
		{apperr.Validation("stage_code", "empty"), http.StatusBadRequest},
	}

	for _, tc := range cases {
		env := newTestEnv(t)
		env.engine.err = tc.err
		w := env.do(t, http.MethodPatch, "/jobs/7", makeToken(t, 3, "Ken", "supervisor"), `{"stage_code":"started"}`)
		if w.Code != tc.want {
			t.Fatalf("error %v: expected %d, got %d", tc.err, tc.want, w.Code)
		}
	}
}

func TestInternalCommentsHiddenFromNonStaff(t *testing.T) {
	env := newTestEnv(t)
	operator := makeToken(t, 3, "Ken", "operator")
	doctor := makeToken(t, 1, "Doc", "doctor")

	if w := env.do(t, http.MethodPost, "/jobs/7/comments", operator, `{"message":"shade mismatch","internal":true}`); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := env.do(t, http.MethodPost, "/jobs/7/comments", doctor, `{"message":"please hurry"}`); w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Comments []model.Comment `json:"comments"`
	}

	w := env.do(t, http.MethodGet, "/jobs/7/comments", doctor, "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Comments) != 1 || resp.Comments[0].Internal {
		t.Fatalf("doctor must only see external comments: %+v", resp.Comments)
	}

	w = env.do(t, http.MethodGet, "/jobs/7/comments", operator, "")
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Comments) != 2 {
		t.Fatalf("operator should see the full trail: %+v", resp.Comments)
	}
}

func TestDoctorCannotFileInternalComment(t *testing.T) {
	env := newTestEnv(t)
	doctor := makeToken(t, 1, "Doc", "doctor")

	w := env.do(t, http.MethodPost, "/jobs/7/comments", doctor, `{"message":"note","internal":true}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}

	var resp struct {
		Comment model.Comment `json:"comment"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Comment.Internal {
		t.Fatalf("doctor comment must be downgraded to external")
	}
}

func TestNextStageSuggestion(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/jobs/7/next-stage", makeToken(t, 3, "Ken", "operator"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"finished"`) {
		t.Fatalf("expected finished suggestion: %s", w.Body.String())
	}
}
