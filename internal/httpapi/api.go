package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aweiyin/stardeck/internal/bootstrap"
	"github.com/aweiyin/stardeck/internal/eventbus"
	"github.com/aweiyin/stardeck/internal/schema"
	"github.com/aweiyin/stardeck/internal/service"
)

// ========== DTOs（与前端契约保持稳定） ==========

type RegisterRequestDTO struct {
	Username string `json:"username"`
}

type RegisterResponseDTO struct {
	UserID       string `json:"user_id"`
	Username     string `json:"username"`
	SessionToken string `json:"session_token"`
}

type SolarRequestDTO struct {
	Action    string `json:"action"` // ensure_event | mark_defended | launch_probe
	WeekStart string `json:"weekStart,omitempty"`
	WeekEnd   string `json:"weekEnd,omitempty"`
	EventID   int64  `json:"eventId,omitempty"`
	Count     int    `json:"count,omitempty"`
}

type SolarEventDTO struct {
	ID          int64  `json:"id"`
	WeekStart   string `json:"week_start"`
	WeekEnd     string `json:"week_end"`
	WasDefended bool   `json:"was_defended"`
	Total       int64  `json:"total,omitempty"`
	Threshold   int64  `json:"threshold,omitempty"`
}

type ConfigurationRequestDTO struct {
	ClassificationID int64          `json:"classificationId"`
	Action           string         `json:"action"` // increment_vote | merge
	Patch            map[string]any `json:"patch,omitempty"`
}

type ConfigurationResponseDTO struct {
	Success                     bool           `json:"success"`
	ClassificationID            int64          `json:"classificationId"`
	ClassificationConfiguration schema.JSONMap `json:"classificationConfiguration"`
}

type ClassificationCreateDTO struct {
	AnomalyID          int64    `json:"anomalyId"`
	Content            string   `json:"content"`
	ClassificationType string   `json:"classificationType"`
	Media              []string `json:"media,omitempty"`
}

type ClassificationDTO struct {
	ID                 int64          `json:"id"`
	AuthorID           string         `json:"author_id"`
	AnomalyID          int64          `json:"anomaly_id"`
	Content            string         `json:"content"`
	ClassificationType string         `json:"classification_type"`
	Configuration      schema.JSONMap `json:"classification_configuration"`
	Media              []string       `json:"media,omitempty"`
	CreatedAt          int64          `json:"created_at"`
}

type AnomalyCreateDTO struct {
	Content     string `json:"content"`
	AnomalyType string `json:"anomalyType"`
}

type AnomalyDTO struct {
	ID          int64  `json:"id"`
	Content     string `json:"content"`
	AnomalyType string `json:"anomaly_type"`
	CreatedAt   int64  `json:"created_at"`
}

type VoteRequestDTO struct {
	ClassificationID int64  `json:"classificationId"`
	VoteType         string `json:"voteType"`
}

type VoteTallyDTO struct {
	ClassificationID int64 `json:"classification_id"`
	Votes            int64 `json:"votes"`
}

type CommentRequestDTO struct {
	ClassificationID int64  `json:"classificationId"`
	Content          string `json:"content"`
}

type CommentDTO struct {
	ID               int64  `json:"id"`
	ClassificationID int64  `json:"classification_id"`
	AuthorID         string `json:"author_id"`
	Content          string `json:"content"`
	CreatedAt        int64  `json:"created_at"`
}

type DeployRoverRequestDTO struct {
	AnomalyID int64 `json:"anomalyId"`
}

type LinkedAnomalyDTO struct {
	ID        int64  `json:"id"`
	AnomalyID int64  `json:"anomaly_id"`
	Automaton string `json:"automaton"`
}

type DeployResultDTO struct {
	Success bool               `json:"success"`
	Links   []LinkedAnomalyDTO `json:"links"`
}

type InventoryItemDTO struct {
	ID            int64          `json:"id"`
	ItemType      string         `json:"item_type"`
	Quantity      int            `json:"quantity"`
	Configuration schema.JSONMap `json:"configuration"`
}

type UseItemRequestDTO struct {
	ItemID int64 `json:"itemId"`
}

type UseItemResponseDTO struct {
	Success       bool `json:"success"`
	RemainingUses int  `json:"remaining_uses"`
}

type LeaderboardEntryDTO struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Total    int64  `json:"total"`
}

type LeaderboardResponseDTO struct {
	WeekStart   string                `json:"week_start"`
	WeekEnd     string                `json:"week_end"`
	Leaderboard []LeaderboardEntryDTO `json:"leaderboard"`
}

// ========== routes ==========

type apiServer struct {
	core      *bootstrap.Core
	startTime time.Time
}

func newAPI(core *bootstrap.Core) *apiServer {
	return &apiServer{core: core, startTime: time.Now()}
}

// Routes 组装全部路由
func (a *apiServer) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", a.handleHealth)
	mux.HandleFunc("/register", a.wrapPOST(a.register))

	mux.HandleFunc("/api/events", a.requireAuth(a.handleSSE))

	mux.HandleFunc("/api/solar", a.requireAuth(a.solar))
	mux.HandleFunc("/api/classifications", a.requireAuth(a.classifications))
	mux.HandleFunc("/api/classifications/detail", a.requireAuth(a.wrapGET(a.getClassificationDetail)))
	mux.HandleFunc("/api/classifications/configuration", a.requireAuth(a.wrapPOST(a.postConfiguration)))
	mux.HandleFunc("/api/anomalies", a.requireAuth(a.anomalies))
	mux.HandleFunc("/api/social/votes", a.requireAuth(a.votes))
	mux.HandleFunc("/api/social/comments", a.requireAuth(a.comments))
	mux.HandleFunc("/api/deploy", a.requireAuth(a.wrapGET(a.listDeployments)))
	mux.HandleFunc("/api/deploy/satellite", a.requireAuth(a.wrapPOST(a.deploySatellite)))
	mux.HandleFunc("/api/deploy/rover", a.requireAuth(a.wrapPOST(a.deployRover)))
	mux.HandleFunc("/api/inventory", a.requireAuth(a.wrapGET(a.getInventory)))
	mux.HandleFunc("/api/inventory/use", a.requireAuth(a.wrapPOST(a.useItem)))
	mux.HandleFunc("/api/leaderboard", a.requireAuth(a.wrapGET(a.getLeaderboard)))
	mux.HandleFunc("/api/milestones", a.requireAuth(a.wrapGET(a.getMilestones)))

	return mux
}

func (a *apiServer) wrapGET(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

func (a *apiServer) wrapPOST(fn http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		fn(w, r)
	}
}

// writeServiceError 把服务层错误翻译成 HTTP 状态码
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidProbeCount),
		errors.Is(err, service.ErrInvalidWeekDate),
		errors.Is(err, service.ErrEmptyPatch),
		errors.Is(err, service.ErrThresholdNotMet),
		errors.Is(err, service.ErrItemExhausted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrEventNotFound),
		errors.Is(err, service.ErrClassificationNotFound),
		errors.Is(err, service.ErrAnomalyNotFound),
		errors.Is(err, service.ErrNoDeployTarget),
		errors.Is(err, service.ErrItemNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// ========== handlers ==========

func (a *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":         true,
		"name":       a.core.Cfg.App.Name,
		"version":    a.core.Cfg.App.Version,
		"started_at": a.startTime.Format(time.RFC3339),
	})
}

func (a *apiServer) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "username 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if existing, err := a.core.Repos.User.GetByUsername(ctx, username); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	} else if existing != nil {
		writeError(w, http.StatusBadRequest, "用户名已存在")
		return
	}

	user, err := a.core.Repos.User.Create(ctx, username)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    user.SessionToken,
		Path:     "/",
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, &RegisterResponseDTO{
		UserID:       user.ID,
		Username:     user.Username,
		SessionToken: user.SessionToken,
	})
}

func (a *apiServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "stream not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	sub := a.core.Hub.Subscribe(ctx, 32)

	_, _ = io.WriteString(w, "event: ready\n")
	_, _ = io.WriteString(w, "data: {}\n\n")
	flusher.Flush()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = io.WriteString(w, "event: ping\n")
			_, _ = io.WriteString(w, "data: {}\n\n")
			flusher.Flush()
		case evt, ok := <-sub:
			if !ok {
				return
			}
			writeSSEEvent(w, evt)
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w io.Writer, evt eventbus.Event) {
	payload, err := json.Marshal(evt)
	if err != nil {
		return
	}
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, payload)
}

func (a *apiServer) solar(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getSolar(w, r)
	case http.MethodPost:
		a.postSolar(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) getSolar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	progress, err := a.core.Services.Solar.CurrentWeek(ctx, time.Now())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, solarProgressToDTO(progress))
}

func (a *apiServer) postSolar(w http.ResponseWriter, r *http.Request) {
	var req SolarRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch req.Action {
	case "ensure_event":
		var event *schema.SolarEvent
		var err error
		if strings.TrimSpace(req.WeekStart) == "" {
			event, err = a.core.Services.Solar.EnsureEvent(ctx, time.Now())
		} else {
			event, err = a.core.Services.Solar.EnsureEventForWeek(ctx, req.WeekStart, req.WeekEnd)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, solarEventToDTO(event))

	case "mark_defended":
		if req.EventID <= 0 {
			writeError(w, http.StatusBadRequest, "eventId 无效")
			return
		}
		event, err := a.core.Services.Solar.MarkDefended(ctx, req.EventID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "event": solarEventToDTO(event)})

	case "launch_probe":
		if req.EventID <= 0 {
			writeError(w, http.StatusBadRequest, "eventId 无效")
			return
		}
		user := currentUser(r)
		progress, err := a.core.Services.Solar.LaunchProbe(ctx, user.ID, req.EventID, req.Count)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		a.core.Hub.Publish(eventbus.ProbeLaunched(req.EventID, user.ID, req.Count))
		writeJSON(w, http.StatusOK, solarProgressToDTO(progress))

	default:
		writeError(w, http.StatusBadRequest, "不支持的 action")
	}
}

func solarEventToDTO(event *schema.SolarEvent) *SolarEventDTO {
	if event == nil {
		return nil
	}
	return &SolarEventDTO{
		ID:          event.ID,
		WeekStart:   event.WeekStart,
		WeekEnd:     event.WeekEnd,
		WasDefended: event.WasDefended,
	}
}

func solarProgressToDTO(p *service.EventProgress) *SolarEventDTO {
	if p == nil {
		return nil
	}
	dto := solarEventToDTO(p.Event)
	dto.Total = p.Total
	dto.Threshold = p.Threshold
	return dto
}

func (a *apiServer) classifications(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listClassifications(w, r)
	case http.MethodPost:
		a.postClassification(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) postClassification(w http.ResponseWriter, r *http.Request) {
	var req ClassificationCreateDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AnomalyID <= 0 {
		writeError(w, http.StatusBadRequest, "anomalyId 无效")
		return
	}
	if strings.TrimSpace(req.ClassificationType) == "" {
		writeError(w, http.StatusBadRequest, "classificationType 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	anomaly, err := a.core.Repos.Anomaly.GetByID(ctx, req.AnomalyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if anomaly == nil {
		writeError(w, http.StatusNotFound, "异常不存在")
		return
	}

	user := currentUser(r)
	c := &schema.Classification{
		AuthorID:           user.ID,
		AnomalyID:          req.AnomalyID,
		Content:            req.Content,
		ClassificationType: req.ClassificationType,
		Configuration:      schema.JSONMap{},
		Media:              schema.JSONArray(req.Media),
	}
	if err := a.core.Repos.Classification.Create(ctx, c); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	a.core.Hub.Publish(eventbus.ClassificationCreated(c.ID, c.AnomalyID))
	writeJSON(w, http.StatusOK, classificationToDTO(c))
}

func (a *apiServer) listClassifications(w http.ResponseWriter, r *http.Request) {
	anomalyID, err := parseInt64Param(r.URL.Query().Get("anomaly_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "anomaly_id 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := a.core.Repos.Classification.ListByAnomaly(ctx, anomalyID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]ClassificationDTO, 0, len(list))
	for i := range list {
		result = append(result, *classificationToDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *apiServer) getClassificationDetail(w http.ResponseWriter, r *http.Request) {
	id, err := parseInt64Param(r.URL.Query().Get("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	c, err := a.core.Repos.Classification.GetByID(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "分类不存在")
		return
	}
	writeJSON(w, http.StatusOK, classificationToDTO(c))
}

func classificationToDTO(c *schema.Classification) *ClassificationDTO {
	return &ClassificationDTO{
		ID:                 c.ID,
		AuthorID:           c.AuthorID,
		AnomalyID:          c.AnomalyID,
		Content:            c.Content,
		ClassificationType: c.ClassificationType,
		Configuration:      c.Configuration,
		Media:              []string(c.Media),
		CreatedAt:          c.CreatedAt.UnixMilli(),
	}
}

func (a *apiServer) postConfiguration(w http.ResponseWriter, r *http.Request) {
	var req ConfigurationRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClassificationID <= 0 {
		writeError(w, http.StatusBadRequest, "classificationId 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var conf schema.JSONMap
	var err error
	switch req.Action {
	case "increment_vote":
		conf, err = a.core.Services.Configuration.IncrementVote(ctx, req.ClassificationID)
	case "merge":
		conf, err = a.core.Services.Configuration.Merge(ctx, req.ClassificationID, schema.JSONMap(req.Patch))
	default:
		writeError(w, http.StatusBadRequest, "不支持的 action")
		return
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, &ConfigurationResponseDTO{
		Success:                     true,
		ClassificationID:            req.ClassificationID,
		ClassificationConfiguration: conf,
	})
}

func (a *apiServer) anomalies(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listAnomalies(w, r)
	case http.MethodPost:
		a.postAnomaly(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) postAnomaly(w http.ResponseWriter, r *http.Request) {
	var req AnomalyCreateDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.AnomalyType) == "" {
		writeError(w, http.StatusBadRequest, "anomalyType 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	anomaly := &schema.Anomaly{
		Content:       req.Content,
		AnomalyType:   req.AnomalyType,
		Configuration: schema.JSONMap{},
	}
	if err := a.core.Repos.Anomaly.Create(ctx, anomaly); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, anomalyToDTO(anomaly))
}

func (a *apiServer) listAnomalies(w http.ResponseWriter, r *http.Request) {
	anomalyType := strings.TrimSpace(r.URL.Query().Get("type"))
	if anomalyType == "" {
		writeError(w, http.StatusBadRequest, "type 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := a.core.Repos.Anomaly.ListByType(ctx, anomalyType, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]AnomalyDTO, 0, len(list))
	for i := range list {
		result = append(result, *anomalyToDTO(&list[i]))
	}
	writeJSON(w, http.StatusOK, result)
}

func anomalyToDTO(a *schema.Anomaly) *AnomalyDTO {
	return &AnomalyDTO{
		ID:          a.ID,
		Content:     a.Content,
		AnomalyType: a.AnomalyType,
		CreatedAt:   a.CreatedAt.UnixMilli(),
	}
}

func (a *apiServer) votes(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getVotes(w, r)
	case http.MethodPost:
		a.postVote(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) getVotes(w http.ResponseWriter, r *http.Request) {
	classificationID, err := parseInt64Param(r.URL.Query().Get("classification_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "classification_id 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	count, err := a.core.Repos.Vote.CountByClassification(ctx, classificationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, &VoteTallyDTO{ClassificationID: classificationID, Votes: count})
}

func (a *apiServer) postVote(w http.ResponseWriter, r *http.Request) {
	var req VoteRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClassificationID <= 0 {
		writeError(w, http.StatusBadRequest, "classificationId 无效")
		return
	}
	voteType := strings.TrimSpace(req.VoteType)
	if voteType != "up" && voteType != "down" {
		writeError(w, http.StatusBadRequest, "voteType 应为 up 或 down")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := a.core.Repos.Classification.GetByID(ctx, req.ClassificationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "分类不存在")
		return
	}

	user := currentUser(r)
	// 查重 select 防重复投票（非数据库约束，沿用原行为）
	voted, err := a.core.Repos.Vote.HasVoted(ctx, req.ClassificationID, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if voted {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "duplicate": true})
		return
	}

	if err := a.core.Repos.Vote.Create(ctx, &schema.Vote{
		ClassificationID: req.ClassificationID,
		UserID:           user.ID,
		VoteType:         voteType,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (a *apiServer) comments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.listComments(w, r)
	case http.MethodPost:
		a.postComment(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *apiServer) listComments(w http.ResponseWriter, r *http.Request) {
	classificationID, err := parseInt64Param(r.URL.Query().Get("classification_id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "classification_id 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	list, err := a.core.Repos.Comment.ListByClassification(ctx, classificationID, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]CommentDTO, 0, len(list))
	for _, c := range list {
		result = append(result, CommentDTO{
			ID:               c.ID,
			ClassificationID: c.ClassificationID,
			AuthorID:         c.AuthorID,
			Content:          c.Content,
			CreatedAt:        c.CreatedAt.UnixMilli(),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *apiServer) postComment(w http.ResponseWriter, r *http.Request) {
	var req CommentRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ClassificationID <= 0 {
		writeError(w, http.StatusBadRequest, "classificationId 无效")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content 不能为空")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	c, err := a.core.Repos.Classification.GetByID(ctx, req.ClassificationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if c == nil {
		writeError(w, http.StatusNotFound, "分类不存在")
		return
	}

	user := currentUser(r)
	comment := &schema.Comment{
		ClassificationID: req.ClassificationID,
		AuthorID:         user.ID,
		Content:          req.Content,
	}
	if err := a.core.Repos.Comment.Create(ctx, comment); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "id": comment.ID})
}

// DeploymentsDTO 用户的部署记录与各类自动机计数
type DeploymentsDTO struct {
	Links  []LinkedAnomalyDTO `json:"links"`
	Counts map[string]int64   `json:"counts"`
}

func (a *apiServer) listDeployments(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := currentUser(r)
	links, err := a.core.Repos.LinkedAnomaly.ListByUser(ctx, user.ID, 100)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	counts := make(map[string]int64, 3)
	for _, automaton := range []string{
		service.AutomatonWeatherSatellite,
		service.AutomatonRover,
		service.AutomatonTelescope,
	} {
		n, err := a.core.Repos.LinkedAnomaly.CountByUserAndAutomaton(ctx, user.ID, automaton)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		counts[automaton] = n
	}

	out := make([]LinkedAnomalyDTO, 0, len(links))
	for _, l := range links {
		out = append(out, LinkedAnomalyDTO{ID: l.ID, AnomalyID: l.AnomalyID, Automaton: l.Automaton})
	}
	writeJSON(w, http.StatusOK, &DeploymentsDTO{Links: out, Counts: counts})
}

func (a *apiServer) deploySatellite(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := currentUser(r)
	links, err := a.core.Services.Deploy.QuickDeploySatellite(ctx, user.ID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployResultToDTO(links))
}

func (a *apiServer) deployRover(w http.ResponseWriter, r *http.Request) {
	var req DeployRoverRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.AnomalyID <= 0 {
		writeError(w, http.StatusBadRequest, "anomalyId 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := currentUser(r)
	link, err := a.core.Services.Deploy.DeployRover(ctx, user.ID, req.AnomalyID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deployResultToDTO([]schema.LinkedAnomaly{*link}))
}

func deployResultToDTO(links []schema.LinkedAnomaly) *DeployResultDTO {
	out := make([]LinkedAnomalyDTO, 0, len(links))
	for _, l := range links {
		out = append(out, LinkedAnomalyDTO{ID: l.ID, AnomalyID: l.AnomalyID, Automaton: l.Automaton})
	}
	return &DeployResultDTO{Success: true, Links: out}
}

func (a *apiServer) getInventory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user := currentUser(r)
	items, err := a.core.Repos.Inventory.ListByOwner(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	result := make([]InventoryItemDTO, 0, len(items))
	for _, item := range items {
		result = append(result, InventoryItemDTO{
			ID:            item.ID,
			ItemType:      item.ItemType,
			Quantity:      item.Quantity,
			Configuration: item.Configuration,
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (a *apiServer) useItem(w http.ResponseWriter, r *http.Request) {
	var req UseItemRequestDTO
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ItemID <= 0 {
		writeError(w, http.StatusBadRequest, "itemId 无效")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := currentUser(r)
	remaining, err := a.core.Services.Deploy.UseItem(ctx, user.ID, req.ItemID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &UseItemResponseDTO{Success: true, RemainingUses: remaining})
}

func (a *apiServer) getLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := a.core.Cfg.Game.LeaderboardLimit
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		if n, err := parseInt64Param(s); err == nil && n > 0 {
			limit = int(n)
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	now := time.Now()
	rows, err := a.core.Services.Leaderboard.WeeklyLeaderboard(ctx, now, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	win := service.WeekWindowFor(now)
	entries := make([]LeaderboardEntryDTO, 0, len(rows))
	for i, row := range rows {
		entries = append(entries, LeaderboardEntryDTO{
			Rank:     i + 1,
			UserID:   row.UserID,
			Username: row.Username,
			Total:    row.Total,
		})
	}
	writeJSON(w, http.StatusOK, &LeaderboardResponseDTO{
		WeekStart:   win.StartDate(),
		WeekEnd:     win.EndDate(),
		Leaderboard: entries,
	})
}

func (a *apiServer) getMilestones(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	user := currentUser(r)
	report, err := a.core.Services.Leaderboard.Milestones(ctx, user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
