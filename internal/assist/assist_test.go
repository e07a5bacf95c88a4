package assist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/completion"
	"github.com/zulandar/sprintyard/internal/completion/mock"
	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/quota"
	"github.com/zulandar/sprintyard/internal/testutil"
	"gorm.io/gorm"
)

const validSprintPlan = `{"sprint_goal":"Checkout","recommended_issues":[{"issue_id":1,"title":"Cart","story_points":3,"priority":"P2"}],"total_story_points":3,"capacity_utilization":7.5,"risks":[],"recommendations":["keep it small"]}`

type fixture struct {
	db       *gorm.DB
	user     *models.User
	project  *models.Project
	board    *models.Board
	recorder *activity.Recorder
}

func setup(t *testing.T) fixture {
	t.Helper()
	gdb := testutil.NewDB(t)
	u := testutil.User(t, gdb, "alice")
	p := testutil.Project(t, gdb, "SY", u)
	b := testutil.Board(t, gdb, p, "Main")
	rec := activity.NewRecorder(gdb, logging.Discard())
	t.Cleanup(rec.Wait)
	return fixture{db: gdb, user: u, project: p, board: b, recorder: rec}
}

func (f fixture) assistant(client completion.Client) *Assistant {
	cfg := config.AIConfig{Model: "test-model", MaxTokens: 4000, CreationMaxTokens: 8000, Temperature: 0.7}
	return New(f.db, logging.Discard(), client, quota.New(f.db, 50, 30), f.recorder, cfg)
}

func setQuota(t *testing.T, gdb *gorm.DB, projectID uint, used int) {
	t.Helper()
	y, m, d := time.Now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if err := gdb.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
		"ai_requests_count":      used,
		"ai_requests_reset_date": today,
	}).Error; err != nil {
		t.Fatalf("set quota: %v", err)
	}
}

func used(t *testing.T, gdb *gorm.DB, projectID uint) int {
	t.Helper()
	var p models.Project
	if err := gdb.First(&p, projectID).Error; err != nil {
		t.Fatalf("load project: %v", err)
	}
	return p.AIRequestsCount
}

func TestGenerateSprintPlan_QuotaRunsOut(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)
	setQuota(t, f.db, f.project.ID, 49)

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(validSprintPlan, nil).Times(1)
	a := f.assistant(client)

	res, err := a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{SprintGoal: "Checkout"})
	if err != nil {
		t.Fatalf("first call: %v", err)
	}
	if res.Plan == nil || res.Metadata.Degraded {
		t.Fatalf("expected parsed plan, got %+v", res.SprintPlan)
	}
	if res.Metadata.QuotaRemaining != 0 {
		t.Errorf("QuotaRemaining = %d, want 0", res.Metadata.QuotaRemaining)
	}
	if got := used(t, f.db, f.project.ID); got != 50 {
		t.Errorf("used = %d, want 50", got)
	}

	_, err = a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{SprintGoal: "Checkout"})
	if !apperr.Is(err, apperr.KindQuotaExceeded) {
		t.Fatalf("second call err = %v, want quota exceeded", err)
	}
	e, _ := apperr.As(err)
	if e.ResetDate.IsZero() {
		t.Error("quota error should carry a reset date")
	}
	f.recorder.Wait()
}

func TestGenerateSprintPlan_ClientErrorDoesNotCount(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)
	setQuota(t, f.db, f.project.ID, 10)

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("", errors.New("connection reset"))

	_, err := f.assistant(client).GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{})
	if !apperr.Is(err, apperr.KindServiceUnavailable) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
	if got := used(t, f.db, f.project.ID); got != 10 {
		t.Errorf("used = %d, want 10 (unchanged)", got)
	}
}

func TestGenerateSprintPlan_NoClient(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)
	setQuota(t, f.db, f.project.ID, 0)

	a := f.assistant(nil)
	if a.Available() {
		t.Error("Available() = true without a client")
	}
	_, err := a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{})
	if !apperr.Is(err, apperr.KindServiceUnavailable) {
		t.Fatalf("err = %v, want service unavailable", err)
	}
	if got := used(t, f.db, f.project.ID); got != 0 {
		t.Errorf("used = %d, want 0", got)
	}
}

func TestGenerateSprintPlan_MalformedReplyIsDegraded(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)
	setQuota(t, f.db, f.project.ID, 0)

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return("Sure! Here is your plan:", nil)

	res, err := f.assistant(client).GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{})
	if err != nil {
		t.Fatalf("degraded reply must not fail the call: %v", err)
	}
	if !res.Metadata.Degraded || res.ParseError == nil {
		t.Fatalf("expected degraded result, got %+v", res.Metadata)
	}
	payload, ok := res.SprintPlan.(map[string]interface{})
	if !ok || payload["raw_response"] != "Sure! Here is your plan:" {
		t.Errorf("payload = %#v", res.SprintPlan)
	}
	if got := used(t, f.db, f.project.ID); got != 1 {
		t.Errorf("used = %d, want 1 (a parse failure still counts)", got)
	}
}

func TestGenerateSprintPlan_Validation(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)
	ctrl := gomock.NewController(t)
	a := f.assistant(mock.NewMockClient(ctrl))

	duration := 90
	_, err := a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{Duration: &duration})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("long duration err = %v, want validation", err)
	}
	_, err = a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{IssueIDs: []uint{999}})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("unknown issue err = %v, want validation", err)
	}
}

func TestGenerateSprintPlan_RecordsAudit(t *testing.T) {
	f := setup(t)
	testutil.Issue(t, f.db, f.board, nil, f.user, "Cart", 3)

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(validSprintPlan, nil)

	if _, err := f.assistant(client).GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{}); err != nil {
		t.Fatalf("GenerateSprintPlan: %v", err)
	}
	f.recorder.Wait()

	entries, _, err := activity.List(f.db, f.project.ID, 1, 10)
	if err != nil {
		t.Fatalf("activity.List: %v", err)
	}
	if len(entries) != 1 || entries[0].Action != "ai_sprint_planning" {
		t.Errorf("activity = %+v", entries)
	}
}

func TestDetectScopeCreep(t *testing.T) {
	f := setup(t)
	s := testutil.Sprint(t, f.db, f.board, f.user, testutil.SprintOpts{Baseline: 8, Status: models.SprintActive})
	kept := testutil.Issue(t, f.db, f.board, s, f.user, "kept", 8)
	testutil.Issue(t, f.db, f.board, s, f.user, "added", 5)
	dropped := testutil.Issue(t, f.db, f.board, nil, f.user, "dropped", 2)

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req completion.Request) (string, error) {
		if !strings.Contains(req.Prompt, "added") {
			t.Errorf("prompt missing added issue")
		}
		return `{"scope_creep_detected":true,"creep_percentage":62.5,"severity":"high","added_issues":[],"impact_analysis":"big","recommendations":[]}`, nil
	})

	res, err := f.assistant(client).DetectScopeCreep(context.Background(), f.project.ID, f.user.ID, ScopeCreepRequest{
		SprintID:      s.ID,
		OriginalScope: []uint{kept.ID, dropped.ID},
	})
	if err != nil {
		t.Fatalf("DetectScopeCreep: %v", err)
	}
	info := res.SprintInfo
	if info.OriginalCount != 2 || info.AddedCount != 1 || info.RemovedCount != 1 {
		t.Errorf("counts = %d/%d/%d, want 2/1/1", info.OriginalCount, info.AddedCount, info.RemovedCount)
	}
	if info.CurrentPoints != 13 || info.CreepRatio != 0.625 {
		t.Errorf("points/ratio = %v/%v, want 13/0.625", info.CurrentPoints, info.CreepRatio)
	}
	if res.Analysis == nil || res.Analysis.Severity != "high" {
		t.Errorf("analysis = %+v", res.Analysis)
	}
	f.recorder.Wait()
}

func TestDetectScopeCreep_SprintOfOtherProject(t *testing.T) {
	f := setup(t)
	other := testutil.Project(t, f.db, "OT", f.user)
	ob := testutil.Board(t, f.db, other, "Other")
	s := testutil.Sprint(t, f.db, ob, f.user, testutil.SprintOpts{})
	ctrl := gomock.NewController(t)

	_, err := f.assistant(mock.NewMockClient(ctrl)).DetectScopeCreep(context.Background(), f.project.ID, f.user.ID, ScopeCreepRequest{SprintID: s.ID})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("err = %v, want not found", err)
	}
	if _, err := f.assistant(mock.NewMockClient(ctrl)).DetectScopeCreep(context.Background(), f.project.ID, f.user.ID, ScopeCreepRequest{}); !apperr.Is(err, apperr.KindValidation) {
		t.Errorf("missing sprint err = %v, want validation", err)
	}
}

func TestAssessRisks_WithHeatmap(t *testing.T) {
	f := setup(t)
	s := testutil.Sprint(t, f.db, f.board, f.user, testutil.SprintOpts{Status: models.SprintActive})
	testutil.Issue(t, f.db, f.board, s, f.user, "a", 3)
	testutil.Issue(t, f.db, f.board, nil, f.user, "b", 5)
	done := testutil.Issue(t, f.db, f.board, s, f.user, "c", 2)
	if err := f.db.Model(done).Update("status", models.StatusDone).Error; err != nil {
		t.Fatalf("mark done: %v", err)
	}

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(`{"overall_risk_level":"medium","risks":[{"title":"Overload","priority":"P1","probability":"high","impact":"medium"}],"summary":"ok"}`, nil)

	res, err := f.assistant(client).AssessRisks(context.Background(), f.project.ID, f.user.ID, RiskRequest{IncludeHeatmap: true})
	if err != nil {
		t.Fatalf("AssessRisks: %v", err)
	}
	ps := res.ProjectSummary
	if ps.ActiveSprints != 1 || ps.OpenIssues != 2 || ps.OpenPoints != 8 {
		t.Errorf("summary = %+v", ps)
	}
	if ps.StatusCounts[models.StatusToDo] != 2 || ps.StatusCounts[models.StatusDone] != 1 {
		t.Errorf("status counts = %v", ps.StatusCounts)
	}
	if len(res.HeatmapData) != 1 || res.HeatmapData[0].Count != 2 {
		t.Errorf("heatmap = %+v, want one P2/To Do cell with 2 issues", res.HeatmapData)
	}
	f.recorder.Wait()
}

func TestLargeBacklog_PromptCappedButCountsComplete(t *testing.T) {
	f := setup(t)
	ids := make([]uint, 0, 120)
	for i := 0; i < 120; i++ {
		is := testutil.Issue(t, f.db, f.board, nil, f.user, fmt.Sprintf("issue %d", i), 1)
		ids = append(ids, is.ID)
	}

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(validSprintPlan, nil)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).
		Return(`{"overall_risk_level":"low","risks":[],"summary":"ok"}`, nil)
	a := f.assistant(client)

	plan, err := a.GenerateSprintPlan(context.Background(), f.project.ID, f.user.ID, SprintPlanRequest{IssueIDs: ids})
	if err != nil {
		t.Fatalf("GenerateSprintPlan with %d ids: %v", len(ids), err)
	}
	if len(plan.InputData.Backlog) != maxPromptIssues {
		t.Errorf("prompt backlog = %d, want %d", len(plan.InputData.Backlog), maxPromptIssues)
	}

	risk, err := a.AssessRisks(context.Background(), f.project.ID, f.user.ID, RiskRequest{IncludeHeatmap: true})
	if err != nil {
		t.Fatalf("AssessRisks: %v", err)
	}
	if risk.ProjectSummary.OpenIssues != 120 || risk.ProjectSummary.OpenPoints != 120 {
		t.Errorf("summary = %+v, want 120 open issues and points", risk.ProjectSummary)
	}
	if len(risk.HeatmapData) != 1 || risk.HeatmapData[0].Count != 120 {
		t.Errorf("heatmap = %+v, want one cell of 120", risk.HeatmapData)
	}
	f.recorder.Wait()
}

func TestHeatmap_Ordering(t *testing.T) {
	p := func(v float64) *float64 { return &v }
	issues := []models.Issue{
		{Priority: "P2", Status: models.StatusBlocked, StoryPoints: p(1)},
		{Priority: "P1", Status: models.StatusInProgress, StoryPoints: p(2)},
		{Priority: "P1", Status: models.StatusToDo, StoryPoints: p(3)},
		{Priority: "P1", Status: models.StatusToDo},
	}
	got := Heatmap(issues)
	want := []HeatCell{
		{Priority: "P1", Status: models.StatusToDo, Count: 2, Points: 3},
		{Priority: "P1", Status: models.StatusInProgress, Count: 1, Points: 2},
		{Priority: "P2", Status: models.StatusBlocked, Count: 1, Points: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("cells = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("cell[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestGenerateRetrospectiveInsights(t *testing.T) {
	f := setup(t)
	s := testutil.Sprint(t, f.db, f.board, f.user, testutil.SprintOpts{Status: models.SprintCompleted, Baseline: 10})
	testutil.Issue(t, f.db, f.board, s, f.user, "a", 6)
	done := testutil.Issue(t, f.db, f.board, s, f.user, "b", 4)
	if err := f.db.Model(done).Update("status", models.StatusDone).Error; err != nil {
		t.Fatalf("mark done: %v", err)
	}

	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req completion.Request) (string, error) {
		if !strings.Contains(req.Prompt, "standups ran long") {
			t.Errorf("prompt missing team feedback")
		}
		return `{"summary":"Solid","went_well":["focus"],"needs_improvement":[],"action_items":[{"title":"Timebox standups","priority":"P3"}],"metrics_analysis":"","team_health_score":7}`, nil
	})

	res, err := f.assistant(client).GenerateRetrospectiveInsights(context.Background(), f.project.ID, f.user.ID, RetrospectiveRequest{
		SprintID:     s.ID,
		TeamFeedback: "standups ran long",
		Metrics:      map[string]float64{"velocity": 5},
	})
	if err != nil {
		t.Fatalf("GenerateRetrospectiveInsights: %v", err)
	}
	if res.SprintSummary.CompletionRate != 40 || res.SprintSummary.DonePoints != 4 {
		t.Errorf("summary = %+v", res.SprintSummary)
	}
	if res.Insights == nil || res.Insights.TeamHealthScore != 7 {
		t.Errorf("insights = %+v", res.Insights)
	}
	f.recorder.Wait()
}

func creationPlan(boardID, userID uint, priority string) string {
	return fmt.Sprintf(`{"board_id":%d,"name":"Sprint 1","goal":"Launch","start_date":"2026-10-19","end_date":"2026-10-30",
"capacity_story_points":20,"status":"Planning","created_by":%d,"issues":[
{"board_id":%d,"title":"Landing page","description":"Build it","type":"Story","status":"To Do","priority":"%s","story_points":5,"reporter_id":%d}]}`,
		boardID, userID, boardID, priority, userID)
}

func TestGenerateSprintCreationPlan(t *testing.T) {
	f := setup(t)
	ctrl := gomock.NewController(t)
	client := mock.NewMockClient(ctrl)
	client.EXPECT().Complete(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, req completion.Request) (string, error) {
		if req.MaxTokens != 8000 {
			t.Errorf("MaxTokens = %d, want the creation budget 8000", req.MaxTokens)
		}
		return creationPlan(f.board.ID, f.user.ID, "P1"), nil
	})

	res, err := f.assistant(client).GenerateSprintCreationPlan(context.Background(), f.project.ID, f.user.ID, SprintCreationRequest{
		BoardID:          f.board.ID,
		StartDate:        "2026-10-19",
		EndDate:          "2026-10-30",
		TotalStoryPoints: 20,
		TasksList:        []string{"Landing page"},
	})
	if err != nil {
		t.Fatalf("GenerateSprintCreationPlan: %v", err)
	}
	if res.Plan == nil || res.Plan.TotalPoints() != 5 {
		t.Fatalf("plan = %+v, parse error %v", res.Plan, res.ParseError)
	}
	var n int64
	f.db.Model(&models.Sprint{}).Count(&n)
	if n != 0 {
		t.Errorf("sprints = %d, want 0 (plan is not persisted)", n)
	}
	f.recorder.Wait()
}

func TestGenerateSprintCreationPlan_RejectedReplies(t *testing.T) {
	tests := []struct {
		name     string
		reply    func(f fixture) string
		wantKind string
	}{
		{"P4 priority", func(f fixture) string { return creationPlan(f.board.ID, f.user.ID, "P4") }, "schema"},
		{"wrong board", func(f fixture) string { return creationPlan(f.board.ID+100, f.user.ID, "P2") }, "schema"},
		{"truncated", func(f fixture) string { return `{"board_id": 1, "name": "Sprint` }, "truncated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t)
			ctrl := gomock.NewController(t)
			client := mock.NewMockClient(ctrl)
			client.EXPECT().Complete(gomock.Any(), gomock.Any()).Return(tt.reply(f), nil)

			res, err := f.assistant(client).GenerateSprintCreationPlan(context.Background(), f.project.ID, f.user.ID, SprintCreationRequest{
				BoardID:          f.board.ID,
				StartDate:        "2026-10-19",
				EndDate:          "2026-10-30",
				TotalStoryPoints: 20,
				TasksList:        []string{"Landing page"},
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Plan != nil || res.ParseError == nil {
				t.Fatalf("expected a rejected plan")
			}
			if res.Metadata.ErrorKind != tt.wantKind {
				t.Errorf("ErrorKind = %q, want %q", res.Metadata.ErrorKind, tt.wantKind)
			}
			f.recorder.Wait()
		})
	}
}

func TestGenerateSprintCreationPlan_BadRequest(t *testing.T) {
	f := setup(t)
	ctrl := gomock.NewController(t)
	a := f.assistant(mock.NewMockClient(ctrl))

	tests := []struct {
		name string
		req  SprintCreationRequest
	}{
		{"bad date", SprintCreationRequest{BoardID: f.board.ID, StartDate: "19/10/2026", EndDate: "2026-10-30", TotalStoryPoints: 5, TasksList: []string{"x"}}},
		{"no tasks", SprintCreationRequest{BoardID: f.board.ID, StartDate: "2026-10-19", EndDate: "2026-10-30", TotalStoryPoints: 5}},
		{"no points", SprintCreationRequest{BoardID: f.board.ID, StartDate: "2026-10-19", EndDate: "2026-10-30", TasksList: []string{"x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.GenerateSprintCreationPlan(context.Background(), f.project.ID, f.user.ID, tt.req)
			if !apperr.Is(err, apperr.KindValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}
}

func TestQuota(t *testing.T) {
	f := setup(t)
	setQuota(t, f.db, f.project.ID, 12)
	ctrl := gomock.NewController(t)

	view, err := f.assistant(mock.NewMockClient(ctrl)).Quota(context.Background(), f.project.ID)
	if err != nil {
		t.Fatalf("Quota: %v", err)
	}
	if view.Used != 12 || view.Remaining != 38 || !view.AIServiceAvailable {
		t.Errorf("view = %+v", view)
	}
}
