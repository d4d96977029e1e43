package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
)

func statusError(code int, detail string) error {
	var err error
	switch code {
	case http.StatusBadRequest:
		err = ErrBadRequest
	case http.StatusUnauthorized:
		err = ErrUnauthorized
	case http.StatusForbidden:
		err = ErrForbidden
	case http.StatusNotFound:
		err = ErrNotFound
	case http.StatusConflict:
		err = ErrConflict
	default:
		err = fmt.Errorf("status %d", code)
	}
	return fmt.Errorf("%w: %v", err, detail)
}

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{api: api, method: method, endpoint: endpoint}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	var body io.Reader
	if r.json != nil {
		buf := new(bytes.Buffer)
		err := json.NewEncoder(buf).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		body = buf
	}

	req := httptest.NewRequest(r.method, r.endpoint, body)
	for k, v := range r.headers {
		req.Header.Add(k, v)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return statusError(res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	companyId uuid.UUID
	authToken string
	userId    uuid.UUID
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Delete(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "DELETE", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) login(empId, password string) error {
	body := map[string]interface{}{
		"company_id": c.companyId, "emp_id": empId, "password": password,
	}

	var res map[string]string
	err := c.Post("/user/login").Json(body).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = uuid.MustParse(res["user_id"])

	return nil
}

func (c *client) loginWithEmail(email, password string) error {
	body := map[string]interface{}{
		"company_id": c.companyId, "email": email, "password": password,
	}

	var res map[string]string
	err := c.Post("/user/login").Json(body).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = uuid.MustParse(res["user_id"])

	return nil
}

func (c *client) logout() error {
	return c.Post("/user/logout").Do(nil)
}

type homeInfo struct {
	User struct {
		Id             uuid.UUID `json:"id"`
		EmpId          string    `json:"emp_id"`
		Name           string    `json:"name"`
		IsCompanyAdmin bool      `json:"is_company_admin"`
		Company        string    `json:"company"`
	} `json:"user"`
	Features []struct {
		Code string `json:"code"`
		Name string `json:"name"`
	} `json:"features"`
	Pages []struct {
		Code  string `json:"code"`
		Name  string `json:"name"`
		Route string `json:"route"`
	} `json:"pages"`
}

func (c *client) home() (homeInfo, error) {
	var res homeInfo
	err := c.Get("/user/me").Do(&res)
	return res, err
}

func (c *client) profile(userId uuid.UUID) (homeInfo, error) {
	var res homeInfo
	err := c.Get(fmt.Sprintf("/user/%v/profile", userId)).Do(&res)
	return res, err
}

func (c *client) createUser(empId, name, email, password string, admin bool) (uuid.UUID, error) {
	body := map[string]interface{}{
		"emp_id": empId, "name": name, "email": email, "password": password, "is_company_admin": admin,
	}

	var res map[string]uuid.UUID
	err := c.Post("/user/create").Json(body).Do(&res)
	return res["user_id"], err
}

func (c *client) updateUser(userId uuid.UUID, name, email, status string, admin bool) error {
	body := map[string]interface{}{
		"name": name, "email": email, "status": status, "is_company_admin": admin,
	}
	return c.Post(fmt.Sprintf("/user/%v", userId)).Json(body).Do(nil)
}

type sessionEntry struct {
	SessionId uuid.UUID `json:"session_id"`
	EmpId     string    `json:"emp_id"`
}

func (c *client) listSessions() ([]sessionEntry, error) {
	var res []sessionEntry
	err := c.Get("/user/sessions").Do(&res)
	return res, err
}

func (c *client) terminateSession(sessionId uuid.UUID) error {
	return c.Delete(fmt.Sprintf("/user/sessions/%v", sessionId)).Do(nil)
}

type planEntry struct {
	Id   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

func (c *client) listPlans() ([]planEntry, error) {
	var res []planEntry
	err := c.Get("/entitlement/plans").Do(&res)
	return res, err
}

func (c *client) subscribe(planId uuid.UUID, cycle string) error {
	body := map[string]interface{}{"plan_id": planId, "billing_cycle": cycle}
	return c.Post("/entitlement/subscribe").Json(body).Do(nil)
}

func (c *client) cancelSubscription() error {
	return c.Post("/entitlement/subscription/cancel").Do(nil)
}

type companyFeatureEntry struct {
	FeatureId uuid.UUID `json:"feature_id"`
	Code      string    `json:"code"`
	Enabled   bool      `json:"enabled"`
}

func (c *client) listFeatures() ([]companyFeatureEntry, error) {
	var res []companyFeatureEntry
	err := c.Get("/entitlement/features").Do(&res)
	return res, err
}

func (c *client) enableFeature(featureId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/entitlement/features/%v/enable", featureId)).Do(nil)
}

func (c *client) disableFeature(featureId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/entitlement/features/%v/disable", featureId)).Do(nil)
}

func (c *client) createRole(name string) (uuid.UUID, error) {
	var res map[string]uuid.UUID
	err := c.Post("/role/create").Json(map[string]string{"name": name}).Do(&res)
	return res["role_id"], err
}

func (c *client) assignFeatureToRole(roleId, featureId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/role/%v/features/%v", roleId, featureId)).Do(nil)
}

func (c *client) removeFeatureFromRole(roleId, featureId uuid.UUID) error {
	return c.Delete(fmt.Sprintf("/role/%v/features/%v", roleId, featureId)).Do(nil)
}

func (c *client) assignRoleToUser(roleId, userId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/role/%v/users/%v", roleId, userId)).Do(nil)
}

func (c *client) removeRoleFromUser(roleId, userId uuid.UUID) error {
	return c.Delete(fmt.Sprintf("/role/%v/users/%v", roleId, userId)).Do(nil)
}

func (c *client) createTeam(name string, managerId uuid.UUID) (uuid.UUID, error) {
	body := map[string]interface{}{"name": name, "manager_id": managerId}
	var res map[string]uuid.UUID
	err := c.Post("/team/create").Json(body).Do(&res)
	return res["team_id"], err
}

func (c *client) addUserToTeam(teamId, userId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/team/%v/users/%v", teamId, userId)).Do(nil)
}

func (c *client) markAttendance(userId uuid.UUID, date, status string) error {
	body := map[string]interface{}{"user_id": userId, "date": date, "status": status}
	return c.Post("/attendance/mark").Json(body).Do(nil)
}

type rosterEntry struct {
	UserId uuid.UUID `json:"user_id"`
	EmpId  string    `json:"emp_id"`
	Status string    `json:"status"`
}

func (c *client) dayRoster(date string) ([]rosterEntry, error) {
	var res []rosterEntry
	err := c.Get("/attendance/day?date=" + date).Do(&res)
	return res, err
}

type dayCounts struct {
	Present  int64 `json:"present"`
	Absent   int64 `json:"absent"`
	OnLeave  int64 `json:"on_leave"`
	Unmarked int64 `json:"unmarked"`
}

func (c *client) dayCounts(date string) (dayCounts, error) {
	var res dayCounts
	err := c.Get("/attendance/day/counts?date=" + date).Do(&res)
	return res, err
}

type monthlySummary struct {
	Present    int64   `json:"present"`
	Absent     int64   `json:"absent"`
	OnLeave    int64   `json:"on_leave"`
	Percentage float64 `json:"percentage"`
}

func (c *client) monthlySummary(userId uuid.UUID, month string) (monthlySummary, error) {
	var res monthlySummary
	err := c.Get(fmt.Sprintf("/attendance/summary/%v?month=%v", userId, url.QueryEscape(month))).Do(&res)
	return res, err
}

func (c *client) applyLeave(leaveType, start, end, reason string) (uuid.UUID, int, error) {
	body := map[string]string{"type": leaveType, "start_date": start, "end_date": end, "reason": reason}
	var res struct {
		LeaveId   uuid.UUID `json:"leave_id"`
		TotalDays int       `json:"total_days"`
	}
	err := c.Post("/leave/apply").Json(body).Do(&res)
	return res.LeaveId, res.TotalDays, err
}

func (c *client) cancelLeave(leaveId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/leave/%v/cancel", leaveId)).Do(nil)
}

func (c *client) reviewLeave(leaveId uuid.UUID, approve bool, notes string) error {
	body := map[string]interface{}{"approve": approve, "notes": notes}
	return c.Post(fmt.Sprintf("/leave/%v/review", leaveId)).Json(body).Do(nil)
}

type leaveEntry struct {
	Id     uuid.UUID `json:"id"`
	UserId uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

func (c *client) pendingLeaves() ([]leaveEntry, error) {
	var res []leaveEntry
	err := c.Get("/leave/pending").Do(&res)
	return res, err
}

func (c *client) createLead(clientName, status string) (uuid.UUID, error) {
	body := map[string]string{"client_name": clientName, "status": status}
	var res map[string]uuid.UUID
	err := c.Post("/lead/create").Json(body).Do(&res)
	return res["lead_id"], err
}

func (c *client) updateLeadStatus(leadId uuid.UUID, status string) error {
	return c.Post(fmt.Sprintf("/lead/%v", leadId)).Json(map[string]string{"status": status}).Do(nil)
}

type leadEntry struct {
	Id             uuid.UUID `json:"id"`
	ClientName     string    `json:"client_name"`
	Status         string    `json:"status"`
	ProjectCreated bool      `json:"project_created"`
}

func (c *client) getLead(leadId uuid.UUID) (leadEntry, error) {
	var res leadEntry
	err := c.Get(fmt.Sprintf("/lead/%v", leadId)).Do(&res)
	return res, err
}

type projectEntry struct {
	Id     uuid.UUID  `json:"id"`
	Name   string     `json:"name"`
	Status string     `json:"status"`
	TeamId *uuid.UUID `json:"team_id"`
}

func (c *client) listProjects() ([]projectEntry, error) {
	var res []projectEntry
	err := c.Get("/project/list").Do(&res)
	return res, err
}

func (c *client) assignTeamToProject(projectId, teamId uuid.UUID) error {
	body := map[string]interface{}{"team_id": teamId}
	return c.Post(fmt.Sprintf("/project/%v/assign-team", projectId)).Json(body).Do(nil)
}

func (c *client) submitPlanning(projectId uuid.UUID, objectives, start, end string) error {
	body := map[string]string{"objectives": objectives, "start_date": start, "end_date": end}
	return c.Post(fmt.Sprintf("/project/%v/planning", projectId)).Json(body).Do(nil)
}

func (c *client) startProject(projectId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/project/%v/start", projectId)).Json(struct{}{}).Do(nil)
}

func (c *client) completeProject(projectId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/project/%v/complete", projectId)).Json(struct{}{}).Do(nil)
}

type statusLogRow struct {
	OldStatus string `json:"old_status"`
	NewStatus string `json:"new_status"`
}

func (c *client) projectStatusLog(projectId uuid.UUID) ([]statusLogRow, error) {
	var res []statusLogRow
	err := c.Get(fmt.Sprintf("/project/%v/status-log", projectId)).Do(&res)
	return res, err
}

type taskResult struct {
	TaskId uuid.UUID `json:"task_id"`
	Status string    `json:"status"`
}

func (c *client) createTask(projectId uuid.UUID, title string, assignedTo uuid.UUID) (taskResult, error) {
	body := map[string]interface{}{"title": title, "assigned_to": assignedTo}
	var res taskResult
	err := c.Post(fmt.Sprintf("/project/%v/tasks/create", projectId)).Json(body).Do(&res)
	return res, err
}

func (c *client) suggestTask(projectId uuid.UUID, title string, assignedTo uuid.UUID) (taskResult, error) {
	body := map[string]interface{}{"title": title, "assigned_to": assignedTo}
	var res taskResult
	err := c.Post(fmt.Sprintf("/project/%v/tasks/suggest", projectId)).Json(body).Do(&res)
	return res, err
}

func (c *client) approveTask(projectId, taskId uuid.UUID, approve bool) (taskResult, error) {
	body := map[string]interface{}{"approve": approve}
	var res taskResult
	err := c.Post(fmt.Sprintf("/project/%v/tasks/%v/approve", projectId, taskId)).Json(body).Do(&res)
	return res, err
}

func (c *client) updateTaskStatus(projectId, taskId uuid.UUID, status, note string) error {
	body := map[string]string{"status": status, "note": note}
	return c.Post(fmt.Sprintf("/project/%v/tasks/%v/status", projectId, taskId)).Json(body).Do(nil)
}

func (c *client) completeTask(projectId, taskId uuid.UUID) error {
	return c.Post(fmt.Sprintf("/project/%v/tasks/%v/complete", projectId, taskId)).Json(struct{}{}).Do(nil)
}

type taskEntry struct {
	Id     uuid.UUID `json:"id"`
	Title  string    `json:"title"`
	Status string    `json:"status"`
}

func (c *client) listTasks(projectId uuid.UUID) ([]taskEntry, error) {
	var res []taskEntry
	err := c.Get(fmt.Sprintf("/project/%v/tasks/", projectId)).Do(&res)
	return res, err
}
