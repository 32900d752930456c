package httpapi

import (
	"net/http"
	"strings"
	"time"
)

// Static capability payloads consumed by the fronted application's feature
// gates. They describe a fully-enabled enterprise deployment; values are not
// derived from state.

func (a *API) handleEnterpriseInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"SSOEnforcedForSignin":         true,
		"SSOEnforcedForSigninProtocol": "oidc",
		"SSOEnforcedForWebProtocol":    "oidc",
		"EnableEmailCodeLogin":         true,
		"EnableEmailPasswordLogin":     true,
		"IsAllowRegister":              true,
		"IsAllowCreateWorkspace":       true,
		"Branding": map[string]any{
			"applicationTitle": "",
			"loginPageLogo":    "",
			"workspaceLogo":    "",
			"favicon":          "",
		},
		"WebAppAuth": map[string]any{
			"allowSso":                true,
			"allowEmailCodeLogin":     true,
			"allowEmailPasswordLogin": true,
		},
		"License": map[string]any{
			"status": "active",
			"workspaces": map[string]any{
				"enabled": true,
				"used":    1,
				"limit":   100,
			},
			"expiredAt": "2099-12-31T23:59:59Z",
		},
		"PluginInstallationPermission": map[string]any{
			"pluginInstallationScope":   "all",
			"restrictToMarketplaceOnly": true,
		},
	})
}

func (a *API) handleSystemFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sso_enforced_for_signin":          true,
		"sso_enforced_for_signin_protocol": "oidc",
		"enable_marketplace":               true,
		"max_plugin_package_size":          52428800,
		"enable_email_code_login":          false,
		"enable_email_password_login":      false,
		"enable_social_oauth_login":        false,
		"is_allow_register":                false,
		"is_allow_create_workspace":        false,
		"is_email_setup":                   true,
		"license": map[string]any{
			"status":     "active",
			"expired_at": time.Now().AddDate(0, 0, 30).Format("2006-01-02"),
			"workspaces": map[string]any{
				"enabled": true,
				"size":    0,
				"limit":   0,
			},
		},
		"branding": map[string]any{
			"enabled":           false,
			"application_title": "",
			"login_page_logo":   "",
			"workspace_logo":    "",
			"favicon":           "",
		},
		"webapp_auth": map[string]any{
			"enabled":   true,
			"allow_sso": true,
			"sso_config": map[string]any{
				"protocol": "oidc",
			},
			"allow_email_code_login":     false,
			"allow_email_password_login": false,
		},
		"plugin_installation_permission": map[string]any{
			"plugin_installation_scope":    "all",
			"restrict_to_marketplace_only": true,
		},
		"enable_change_email": true,
	})
}

func (a *API) handleFeatures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"billing": map[string]any{
			"enabled": false,
			"subscription": map[string]any{
				"plan":     "enterprise",
				"interval": "year",
			},
		},
		"education": map[string]any{
			"enabled":   false,
			"activated": false,
		},
		"members": map[string]any{"size": 0, "limit": 0},
		"apps":    map[string]any{"size": 0, "limit": 0},
		"vector_space": map[string]any{
			"size":  0,
			"limit": 0,
		},
		"knowledge_rate_limit": map[string]any{
			"limit":             200000,
			"subscription_plan": "enterprise",
		},
		"annotation_quota_limit":       map[string]any{"size": 0, "limit": 0},
		"documents_upload_quota":       map[string]any{"size": 0, "limit": 0},
		"docs_processing":              "top-priority",
		"can_replace_logo":             true,
		"model_load_balancing_enabled": true,
		"dataset_operator_enabled":     true,
		"webapp_copyright_enabled":     true,
		"workspace_members": map[string]any{
			"enabled": true,
			"size":    1,
			"limit":   100,
		},
		"is_allow_transfer_workspace": true,
	})
}

func (a *API) handleSubscriptionInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": true,
		"subscription": map[string]any{
			"plan":     "enterprise",
			"interval": "year",
		},
		"members": map[string]any{"size": 1, "limit": 100},
		"apps":    map[string]any{"size": 1, "limit": 200},
		"vector_space": map[string]any{
			"size":  1,
			"limit": 500,
		},
		"documents_upload_quota":       map[string]any{"size": 1, "limit": 10000},
		"annotation_quota_limit":       map[string]any{"size": 1, "limit": 10000},
		"docs_processing":              "top-priority",
		"can_replace_logo":             true,
		"model_load_balancing_enabled": true,
		"dataset_operator_enabled":     true,
		"knowledge_rate_limit": map[string]any{
			"limit":             200000,
			"subscription_plan": "enterprise",
		},
	})
}

func (a *API) handleAppSSOSetting(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled":  true,
		"protocol": "oidc",
		"app_code": r.URL.Query().Get("app_code"),
	})
}

func (a *API) handleLastUpdateTime(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, "2025-01-01T00:00:00+00:00")
}

// handleWorkspaceInfo serves /workspace/{tenant_id}/info.
func (a *API) handleWorkspaceInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tenantID, rest := splitWorkspacePath(r.URL.Path, "/workspace/")
	if tenantID == "" || rest != "info" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"WorkspaceMembers": map[string]any{
			"enabled": true,
			"used":    1,
			"limit":   100,
		},
	})
}

// handleWorkspacePermission serves /workspaces/{tenant_id}/permission.
func (a *API) handleWorkspacePermission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	tenantID, rest := splitWorkspacePath(r.URL.Path, "/workspaces/")
	if tenantID == "" || rest != "permission" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"permission": map[string]any{
			"workspaceId":        tenantID,
			"allowMemberInvite":  true,
			"allowOwnerTransfer": true,
		},
	})
}

func (a *API) handleCredentialPolicy(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var payload map[string]any
	if err := decodeJSON(w, r, &payload); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"result": true})
}

func splitWorkspacePath(path, prefix string) (tenantID, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	parts := strings.SplitN(strings.Trim(trimmed, "/"), "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}
