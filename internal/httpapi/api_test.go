package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/aweiyin/stardeck/internal/bootstrap"
	"github.com/aweiyin/stardeck/internal/eventbus"
	"github.com/aweiyin/stardeck/internal/pkg/config"
	"github.com/aweiyin/stardeck/internal/repository"
	"github.com/aweiyin/stardeck/internal/schema"
	"github.com/aweiyin/stardeck/internal/service"
	"github.com/aweiyin/stardeck/internal/testutil"
)

// newTestCore 用内存 SQLite 组装一个完整 Core（不走配置文件）
func newTestCore(t *testing.T) *bootstrap.Core {
	t.Helper()
	db := testutil.OpenTestDB(t)

	c := &bootstrap.Core{Cfg: config.Default(), Hub: eventbus.NewHub()}
	c.Repos.User = repository.NewUserRepository(db)
	c.Repos.Anomaly = repository.NewAnomalyRepository(db)
	c.Repos.Classification = repository.NewClassificationRepository(db)
	c.Repos.SolarEvent = repository.NewSolarEventRepository(db)
	c.Repos.Contribution = repository.NewContributionRepository(db)
	c.Repos.Vote = repository.NewVoteRepository(db)
	c.Repos.Inventory = repository.NewInventoryRepository(db)
	c.Repos.LinkedAnomaly = repository.NewLinkedAnomalyRepository(db)
	c.Repos.Comment = repository.NewCommentRepository(db)

	c.Services.Solar = service.NewSolarService(c.Repos.SolarEvent, c.Repos.Contribution, c.Hub, service.SolarBalance{
		DefenseThreshold: 10,
		AutoDefend:       true,
	})
	c.Services.Configuration = service.NewConfigurationService(c.Repos.Classification)
	c.Services.Deploy = service.NewDeployService(c.Repos.Anomaly, c.Repos.LinkedAnomaly, c.Repos.Inventory, c.Repos.Contribution, c.Repos.SolarEvent)
	c.Services.Leaderboard = service.NewLeaderboardService(c.Repos.Contribution, c.Repos.Classification)
	return c
}

type testClient struct {
	t       *testing.T
	handler http.Handler
	token   string
}

func newTestClient(t *testing.T, core *bootstrap.Core) *testClient {
	t.Helper()
	return &testClient{t: t, handler: newAPI(core).Routes()}
}

// register 注册用户并持有会话 token
func (c *testClient) register(username string) {
	c.t.Helper()
	var resp RegisterResponseDTO
	status := c.do(http.MethodPost, "/register", RegisterRequestDTO{Username: username}, &resp)
	if status != http.StatusOK {
		c.t.Fatalf("register status=%d", status)
	}
	if resp.SessionToken == "" {
		c.t.Fatal("register 应返回 session_token")
	}
	c.token = resp.SessionToken
}

func (c *testClient) do(method, path string, body any, out any) int {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	rec := httptest.NewRecorder()
	c.handler.ServeHTTP(rec, req)
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			c.t.Fatalf("decode response: %v body=%s", err, rec.Body.String())
		}
	}
	return rec.Code
}

func TestAuthRequired(t *testing.T) {
	client := newTestClient(t, newTestCore(t))

	for _, path := range []string{"/api/solar", "/api/inventory", "/api/leaderboard"} {
		if status := client.do(http.MethodGet, path, nil, nil); status != http.StatusUnauthorized {
			t.Fatalf("%s status=%d, want 401", path, status)
		}
	}

	// 伪造 token 也 401
	client.token = "not-a-real-token"
	if status := client.do(http.MethodGet, "/api/solar", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("status=%d, want 401", status)
	}
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	status := client.do(http.MethodPost, "/register", RegisterRequestDTO{Username: "alice"}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", status)
	}
	if status := client.do(http.MethodPost, "/register", RegisterRequestDTO{Username: "  "}, nil); status != http.StatusBadRequest {
		t.Fatalf("空用户名 status=%d, want 400", status)
	}
}

func TestSolarFlow(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	// 惰性创建本周事件
	var ev SolarEventDTO
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "ensure_event"}, &ev); status != http.StatusOK {
		t.Fatalf("ensure_event status=%d", status)
	}
	if ev.ID == 0 || ev.WasDefended {
		t.Fatalf("event=%+v", ev)
	}

	// 非正数量拒绝
	status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "launch_probe", EventID: ev.ID, Count: 0}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("count=0 status=%d, want 400", status)
	}

	// 未达阈值时显式 mark_defended 拒绝
	status = client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "mark_defended", EventID: ev.ID}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("未达阈值 mark_defended status=%d, want 400", status)
	}

	// 贡献跨过阈值（threshold=10）后自动防御
	var progress SolarEventDTO
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "launch_probe", EventID: ev.ID, Count: 10}, &progress); status != http.StatusOK {
		t.Fatalf("launch_probe status=%d", status)
	}
	if progress.Total != 10 || !progress.WasDefended {
		t.Fatalf("progress=%+v, want total=10 defended", progress)
	}

	// GET 返回当周进度
	var current SolarEventDTO
	if status := client.do(http.MethodGet, "/api/solar", nil, &current); status != http.StatusOK {
		t.Fatalf("get solar status=%d", status)
	}
	if current.ID != ev.ID || !current.WasDefended {
		t.Fatalf("current=%+v", current)
	}

	// 不存在的事件
	status = client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "launch_probe", EventID: 999, Count: 1}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("未知事件 status=%d, want 404", status)
	}
}

func (c *testClient) createAnomaly(anomalyType string) int64 {
	c.t.Helper()
	var anomaly AnomalyDTO
	if status := c.do(http.MethodPost, "/api/anomalies", AnomalyCreateDTO{Content: "test", AnomalyType: anomalyType}, &anomaly); status != http.StatusOK {
		c.t.Fatalf("create anomaly status=%d", status)
	}
	return anomaly.ID
}

func (c *testClient) createClassification(anomalyID int64) int64 {
	c.t.Helper()
	var created ClassificationDTO
	status := c.do(http.MethodPost, "/api/classifications", ClassificationCreateDTO{
		AnomalyID:          anomalyID,
		Content:            "looks like a sunspot",
		ClassificationType: "sunspot",
	}, &created)
	if status != http.StatusOK {
		c.t.Fatalf("create classification status=%d", status)
	}
	return created.ID
}

func TestConfigurationEndpoint(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	anomalyID := client.createAnomaly("sunspot")
	classificationID := client.createClassification(anomalyID)

	// 两次 increment_vote 累计为 2
	var resp ConfigurationResponseDTO
	for i := 1; i <= 2; i++ {
		status := client.do(http.MethodPost, "/api/classifications/configuration", ConfigurationRequestDTO{
			ClassificationID: classificationID,
			Action:           "increment_vote",
		}, &resp)
		if status != http.StatusOK || !resp.Success {
			t.Fatalf("increment_vote status=%d resp=%+v", status, resp)
		}
		if got := schema.GetInt(resp.ClassificationConfiguration, schema.ConfKeyVotes); got != i {
			t.Fatalf("votes=%d, want %d", got, i)
		}
	}

	// 空 patch 的 merge 拒绝
	status := client.do(http.MethodPost, "/api/classifications/configuration", ConfigurationRequestDTO{
		ClassificationID: classificationID,
		Action:           "merge",
	}, nil)
	if status != http.StatusBadRequest {
		t.Fatalf("空 patch status=%d, want 400", status)
	}

	// merge 右偏覆盖且保留 votes
	status = client.do(http.MethodPost, "/api/classifications/configuration", ConfigurationRequestDTO{
		ClassificationID: classificationID,
		Action:           "merge",
		Patch:            map[string]any{"classificationOptions": "deep-field"},
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("merge status=%d", status)
	}
	if resp.ClassificationConfiguration[schema.ConfKeyOptions] != "deep-field" {
		t.Fatalf("conf=%v", resp.ClassificationConfiguration)
	}
	if got := schema.GetInt(resp.ClassificationConfiguration, schema.ConfKeyVotes); got != 2 {
		t.Fatalf("merge 后 votes=%d, want 2", got)
	}

	// 不存在的分类
	status = client.do(http.MethodPost, "/api/classifications/configuration", ConfigurationRequestDTO{
		ClassificationID: 999,
		Action:           "increment_vote",
	}, nil)
	if status != http.StatusNotFound {
		t.Fatalf("status=%d, want 404", status)
	}
}

func TestVoteDeduplication(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	anomalyID := client.createAnomaly("planet")
	classificationID := client.createClassification(anomalyID)

	var resp map[string]any
	status := client.do(http.MethodPost, "/api/social/votes", VoteRequestDTO{ClassificationID: classificationID, VoteType: "up"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("vote status=%d", status)
	}
	if resp["duplicate"] == true {
		t.Fatal("首次投票不应标记 duplicate")
	}

	// 同一用户重复投票：成功返回但不再落行
	resp = nil
	status = client.do(http.MethodPost, "/api/social/votes", VoteRequestDTO{ClassificationID: classificationID, VoteType: "up"}, &resp)
	if status != http.StatusOK || resp["duplicate"] != true {
		t.Fatalf("重复投票 status=%d resp=%v", status, resp)
	}

	var tally VoteTallyDTO
	if status := client.do(http.MethodGet, "/api/social/votes?classification_id="+itoa(classificationID), nil, &tally); status != http.StatusOK {
		t.Fatalf("get votes status=%d", status)
	}
	if tally.Votes != 1 {
		t.Fatalf("votes=%d, want 1", tally.Votes)
	}

	// 非法 voteType
	if status := client.do(http.MethodPost, "/api/social/votes", VoteRequestDTO{ClassificationID: classificationID, VoteType: "sideways"}, nil); status != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", status)
	}
}

func TestDeployEndpoints(t *testing.T) {
	core := newTestCore(t)
	client := newTestClient(t, core)
	client.register("alice")

	// 没有云型异常时 404
	if status := client.do(http.MethodPost, "/api/deploy/satellite", nil, nil); status != http.StatusNotFound {
		t.Fatalf("无目标 status=%d, want 404", status)
	}

	client.createAnomaly("cloud")

	var result DeployResultDTO
	if status := client.do(http.MethodPost, "/api/deploy/satellite", nil, &result); status != http.StatusOK {
		t.Fatalf("deploy satellite status=%d", status)
	}
	// 快速部署固定写两行
	if len(result.Links) != 2 {
		t.Fatalf("links=%d, want 2", len(result.Links))
	}

	rockID := client.createAnomaly("rock")
	if status := client.do(http.MethodPost, "/api/deploy/rover", DeployRoverRequestDTO{AnomalyID: rockID}, &result); status != http.StatusOK {
		t.Fatalf("deploy rover status=%d", status)
	}
	if len(result.Links) != 1 || result.Links[0].Automaton != service.AutomatonRover {
		t.Fatalf("result=%+v", result)
	}

	var deployments DeploymentsDTO
	if status := client.do(http.MethodGet, "/api/deploy", nil, &deployments); status != http.StatusOK {
		t.Fatalf("list deployments status=%d", status)
	}
	if len(deployments.Links) != 3 {
		t.Fatalf("links=%d, want 3", len(deployments.Links))
	}
	if deployments.Counts[service.AutomatonWeatherSatellite] != 2 || deployments.Counts[service.AutomatonRover] != 1 {
		t.Fatalf("counts=%v", deployments.Counts)
	}
}

func TestInventoryUse(t *testing.T) {
	core := newTestCore(t)
	client := newTestClient(t, core)
	client.register("alice")

	user, err := core.Repos.User.GetByUsername(context.Background(), "alice")
	if err != nil || user == nil {
		t.Fatalf("get user err=%v", err)
	}
	item := &schema.InventoryItem{
		OwnerID:       user.ID,
		ItemType:      "Telescope",
		Configuration: schema.JSONMap{schema.ConfKeyUses: 1},
	}
	if err := core.Repos.Inventory.Create(context.Background(), item); err != nil {
		t.Fatalf("create item: %v", err)
	}

	var items []InventoryItemDTO
	if status := client.do(http.MethodGet, "/api/inventory", nil, &items); status != http.StatusOK {
		t.Fatalf("get inventory status=%d", status)
	}
	if len(items) != 1 {
		t.Fatalf("items=%d, want 1", len(items))
	}

	var resp UseItemResponseDTO
	if status := client.do(http.MethodPost, "/api/inventory/use", UseItemRequestDTO{ItemID: item.ID}, &resp); status != http.StatusOK {
		t.Fatalf("use status=%d", status)
	}
	if resp.RemainingUses != 0 {
		t.Fatalf("remaining=%d, want 0", resp.RemainingUses)
	}

	// 耗尽后 400
	if status := client.do(http.MethodPost, "/api/inventory/use", UseItemRequestDTO{ItemID: item.ID}, nil); status != http.StatusBadRequest {
		t.Fatalf("耗尽后 status=%d, want 400", status)
	}

	// 不存在 404
	if status := client.do(http.MethodPost, "/api/inventory/use", UseItemRequestDTO{ItemID: 999}, nil); status != http.StatusNotFound {
		t.Fatalf("不存在 status=%d, want 404", status)
	}
}

func TestLeaderboardAndMilestones(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	var ev SolarEventDTO
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "ensure_event"}, &ev); status != http.StatusOK {
		t.Fatalf("ensure_event status=%d", status)
	}
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "launch_probe", EventID: ev.ID, Count: 3}, nil); status != http.StatusOK {
		t.Fatalf("launch_probe status=%d", status)
	}

	var board LeaderboardResponseDTO
	if status := client.do(http.MethodGet, "/api/leaderboard", nil, &board); status != http.StatusOK {
		t.Fatalf("leaderboard status=%d", status)
	}
	if len(board.Leaderboard) != 1 || board.Leaderboard[0].Total != 3 || board.Leaderboard[0].Rank != 1 {
		t.Fatalf("board=%+v", board)
	}

	var report service.MilestoneReport
	if status := client.do(http.MethodGet, "/api/milestones", nil, &report); status != http.StatusOK {
		t.Fatalf("milestones status=%d", status)
	}
	if report.Contributions != 1 || len(report.Milestones) == 0 {
		t.Fatalf("report=%+v", report)
	}
}

func TestCommentsFlow(t *testing.T) {
	client := newTestClient(t, newTestCore(t))
	client.register("alice")

	anomalyID := client.createAnomaly("cloud")
	classificationID := client.createClassification(anomalyID)

	// 空内容拒绝
	if status := client.do(http.MethodPost, "/api/social/comments", CommentRequestDTO{ClassificationID: classificationID, Content: " "}, nil); status != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", status)
	}

	if status := client.do(http.MethodPost, "/api/social/comments", CommentRequestDTO{ClassificationID: classificationID, Content: "nice find"}, nil); status != http.StatusOK {
		t.Fatalf("comment status=%d", status)
	}

	var comments []CommentDTO
	if status := client.do(http.MethodGet, "/api/social/comments?classification_id="+itoa(classificationID), nil, &comments); status != http.StatusOK {
		t.Fatalf("list status=%d", status)
	}
	if len(comments) != 1 || comments[0].Content != "nice find" {
		t.Fatalf("comments=%+v", comments)
	}
}

func TestHandlersTolerateUnknownFields(t *testing.T) {
	client := newTestClient(t, newTestCore(t))

	var resp RegisterResponseDTO
	status := client.do(http.MethodPost, "/register", map[string]any{"username": "zed", "theme": "dark"}, &resp)
	if status != http.StatusOK {
		t.Fatalf("多余字段不应导致 400, status=%d", status)
	}
	if resp.Username != "zed" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestSSEStreamsDefendedEvent(t *testing.T) {
	core := newTestCore(t)
	client := newTestClient(t, core)
	client.register("alice")

	srv := httptest.NewServer(client.handler)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/events", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer "+client.token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type=%s", ct)
	}

	reader := bufio.NewReader(resp.Body)
	readSSEFrame(t, reader, "ready")

	// 触发一次跨阈值防御（threshold=10）
	var ev SolarEventDTO
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "ensure_event"}, &ev); status != http.StatusOK {
		t.Fatalf("ensure_event status=%d", status)
	}
	if status := client.do(http.MethodPost, "/api/solar", SolarRequestDTO{Action: "launch_probe", EventID: ev.ID, Count: 10}, nil); status != http.StatusOK {
		t.Fatalf("launch_probe status=%d", status)
	}

	data := readSSEFrame(t, reader, eventbus.EventDefended)
	var frame struct {
		Type string                   `json:"type"`
		Data eventbus.DefendedPayload `json:"data"`
	}
	if err := json.Unmarshal([]byte(data), &frame); err != nil {
		t.Fatalf("decode frame: %v data=%s", err, data)
	}
	if frame.Type != eventbus.EventDefended || frame.Data.EventID != ev.ID {
		t.Fatalf("frame=%+v, want event_id=%d", frame, ev.ID)
	}
	if frame.Data.WeekStart != ev.WeekStart {
		t.Fatalf("week_start=%s, want %s", frame.Data.WeekStart, ev.WeekStart)
	}
}

// readSSEFrame 逐帧读到目标事件为止，返回其 data 行内容
func readSSEFrame(t *testing.T, r *bufio.Reader, want string) string {
	t.Helper()
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("读取 SSE 流失败: %v", err)
		}
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "event: ") {
			continue
		}
		name := strings.TrimPrefix(line, "event: ")
		dataLine, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("读取 SSE data 失败: %v", err)
		}
		if name == want {
			return strings.TrimPrefix(strings.TrimSpace(dataLine), "data: ")
		}
	}
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
