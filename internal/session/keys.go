package session

// Default key prefixes for the refresh-token mappings. Both are
// configurable so several deployments can share one redis database.
const (
	DefaultRefreshTokenPrefix        = "refresh_token:"
	DefaultAccountRefreshTokenPrefix = "account_refresh_token:"
)

// Access-grant key namespaces. The three keys of one grant are always
// written and deleted together.
const (
	accessModeKeyPrefix         = "webapp_access_mode:"
	accessModeAccountsKeyPrefix = "webapp_access_mode:accounts:"
	accessModeGroupsKeyPrefix   = "webapp_access_mode:groups:"
)

// AccessModeKey returns the key holding the access mode for an app.
func AccessModeKey(appID string) string {
	return accessModeKeyPrefix + appID
}

// AccessModeAccountsKey returns the key holding the account allow-list.
func AccessModeAccountsKey(appID string) string {
	return accessModeAccountsKeyPrefix + appID
}

// AccessModeGroupsKey returns the key holding the group allow-list.
func AccessModeGroupsKey(appID string) string {
	return accessModeGroupsKeyPrefix + appID
}
