package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"ssogate.org/internal/audit"
	"ssogate.org/internal/obs"
	"ssogate.org/internal/webapp"
)

type setAccessModeRequest struct {
	AppID      string           `json:"appId"`
	AccessMode string           `json:"accessMode"`
	Subjects   []webapp.Subject `json:"subjects"`
}

type accessModeBatchRequest struct {
	AppIDs []string `json:"appIds"`
}

type permissionBatchRequest struct {
	AppCodes []string `json:"appCodes"`
	UserID   string   `json:"userId"`
}

type memberPayload struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Avatar    string `json:"avatar"`
	AvatarURL string `json:"avatarUrl"`
}

type subjectPayload struct {
	SubjectID   string        `json:"subjectId"`
	SubjectType string        `json:"subjectType"`
	AccountData memberPayload `json:"accountData"`
}

// handleAccessModeConsole serves the console alias, which reads on GET and
// writes on POST.
func (a *API) handleAccessModeConsole(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		a.getAccessMode(w, r)
	case http.MethodPost:
		a.setAccessMode(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleSetAccessMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	a.setAccessMode(w, r)
}

func (a *API) setAccessMode(w http.ResponseWriter, r *http.Request) {
	var req setAccessModeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.AppID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"accessMode": string(webapp.ModePublic), "result": false})
		return
	}
	if err := a.webapp.SetAccessMode(r.Context(), req.AppID, webapp.AccessMode(req.AccessMode), req.Subjects); err != nil {
		writeError(w, r, http.StatusInternalServerError, "access grant write failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "webapp.access_mode.set", map[string]any{
		"app_id":      req.AppID,
		"access_mode": req.AccessMode,
		"subjects":    len(req.Subjects),
	})
	writeJSON(w, http.StatusOK, map[string]any{"accessMode": req.AccessMode, "result": true})
}

func (a *API) handleGetAccessMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	a.getAccessMode(w, r)
}

func (a *API) getAccessMode(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	appID, err := a.webapp.ResolveAppID(r.Context(), q.Get("appId"), q.Get("appCode"))
	if err != nil || appID == "" {
		// Unknown code and missing id both read as the default-open mode.
		writeJSON(w, http.StatusOK, map[string]any{"accessMode": string(webapp.ModePublic)})
		return
	}
	mode := a.webapp.AccessMode(r.Context(), appID)
	writeJSON(w, http.StatusOK, map[string]any{"accessMode": string(mode)})
}

// handleGetAccessModeByCode accepts both app_code and appCode spellings.
func (a *API) handleGetAccessModeByCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	appCode := q.Get("app_code")
	if appCode == "" {
		appCode = q.Get("appCode")
	}
	appID, err := a.webapp.ResolveAppID(r.Context(), "", appCode)
	if err != nil || appID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"accessMode": string(webapp.ModePublic)})
		return
	}
	mode := a.webapp.AccessMode(r.Context(), appID)
	writeJSON(w, http.StatusOK, map[string]any{"accessMode": string(mode)})
}

func (a *API) handleAccessModeBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req accessModeBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	modes := a.webapp.AccessModeBatch(r.Context(), req.AppIDs)
	out := make(map[string]string, len(modes))
	for id, mode := range modes {
		out[id] = string(mode)
	}
	writeJSON(w, http.StatusOK, map[string]any{"accessModes": out})
}

// handleBearerPermission evaluates access for the subject carried in the
// Authorization header. Verification failures degrade to the visitor
// subject rather than erroring.
func (a *API) handleBearerPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	appID := q.Get("appId")
	if appCode := q.Get("appCode"); appCode != "" {
		resolved, err := a.webapp.ResolveAppID(r.Context(), "", appCode)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"result": false})
			return
		}
		appID = resolved
	}
	subject := webapp.SubjectFromAuthorization(r.Header.Get("Authorization"), a.verifier)
	allowed := a.webapp.Evaluate(r.Context(), appID, subject)
	obs.ObservePermissionCheck(allowed)
	writeJSON(w, http.StatusOK, map[string]any{"result": allowed})
}

// handleSubjectPermission evaluates access for an explicit userId. This is
// the server-to-server surface; the caller vouches for the subject.
func (a *API) handleSubjectPermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	appID := q.Get("appId")
	if appCode := q.Get("appCode"); appCode != "" {
		resolved, err := a.webapp.ResolveAppID(r.Context(), "", appCode)
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"result": false})
			return
		}
		appID = resolved
	}
	allowed := a.webapp.Evaluate(r.Context(), appID, q.Get("userId"))
	obs.ObservePermissionCheck(allowed)
	writeJSON(w, http.StatusOK, map[string]any{"result": allowed})
}

func (a *API) handlePermissionBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req permissionBatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	permissions := a.webapp.EvaluateBatch(r.Context(), req.AppCodes, req.UserID)
	writeJSON(w, http.StatusOK, map[string]any{"permissions": permissions})
}

func (a *API) handleCleanAccessMode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	appID := r.URL.Query().Get("appId")
	if appID == "" {
		writeJSON(w, http.StatusOK, map[string]any{"result": false})
		return
	}
	if err := a.webapp.Clear(r.Context(), appID); err != nil {
		writeError(w, r, http.StatusInternalServerError, "access grant delete failed")
		return
	}
	_ = audit.LogEvent(r.Context(), "webapp.access_mode.clear", map[string]any{
		"app_id": appID,
	})
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

// handleSubjects expands the account allow-list into active member records.
func (a *API) handleSubjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	appID := r.URL.Query().Get("appId")
	members := []memberPayload{}
	if appID != "" {
		ids := a.webapp.AllowedAccounts(r.Context(), appID)
		accounts, err := a.directory.ActiveByIDs(r.Context(), ids)
		if err != nil {
			writeError(w, r, http.StatusInternalServerError, "member lookup failed")
			return
		}
		for _, acct := range accounts {
			members = append(members, memberPayload{
				ID:     acct.ID,
				Name:   acct.Name,
				Email:  acct.Email,
				Avatar: acct.Avatar,
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": []any{}, "members": members})
}

func (a *API) handleSubjectSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	page, err := queryInt(q.Get("pageNumber"), 1)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid parameter format",
			"message": "pageNumber and resultsPerPage must be valid integers",
		})
		return
	}
	perPage, err := queryInt(q.Get("resultsPerPage"), 10)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "Invalid parameter format",
			"message": "pageNumber and resultsPerPage must be valid integers",
		})
		return
	}
	keyword := strings.TrimSpace(q.Get("keyword"))

	result, err := a.directory.SearchActive(r.Context(), keyword, page, perPage)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "subject search failed")
		return
	}
	subjects := []subjectPayload{}
	for _, acct := range result.Accounts {
		subjects = append(subjects, subjectPayload{
			SubjectID:   acct.ID,
			SubjectType: webapp.SubjectTypeAccount,
			AccountData: memberPayload{
				ID:     acct.ID,
				Name:   acct.Name,
				Email:  acct.Email,
				Avatar: acct.Avatar,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"currPage":   result.Page,
		"totalPages": result.TotalPages,
		"subjects":   subjects,
		"hasMore":    result.HasMore,
	})
}

func queryInt(raw string, def int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
