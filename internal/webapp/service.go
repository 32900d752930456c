package webapp

import (
	"context"
	"errors"
	"strings"

	"ssogate.org/internal/session"
)

// Service evaluates and administers per-app access grants. Reads against
// the session store fail toward the default-open policy; writes propagate
// failures to the caller.
type Service struct {
	store    session.Store
	resolver Resolver
}

// NewService constructs the evaluator.
func NewService(store session.Store, resolver Resolver) *Service {
	return &Service{store: store, resolver: resolver}
}

// ResolveAppID accepts either an internal app id or an external code and
// returns the internal id. An empty code falls through to the id.
func (s *Service) ResolveAppID(ctx context.Context, appID, appCode string) (string, error) {
	if appCode != "" {
		return s.resolver.AppIDByCode(ctx, appCode)
	}
	return appID, nil
}

// SetAccessMode rewrites the grant for an app wholesale: the mode key and
// both allow-list keys are always written together. There is no transaction
// across the three writes; a crash in between can leave a stale allow-list
// next to a fresh mode. Accepted trade-off, inherited from the storage
// contract.
func (s *Service) SetAccessMode(ctx context.Context, appID string, mode AccessMode, subjects []Subject) error {
	if appID == "" {
		return errors.New("webapp: app id is required")
	}
	var accounts, groups []string
	for _, subject := range subjects {
		switch subject.Type {
		case SubjectTypeAccount:
			accounts = append(accounts, subject.ID)
		case SubjectTypeGroup:
			groups = append(groups, subject.ID)
		}
	}
	if err := s.store.Set(ctx, session.AccessModeKey(appID), string(mode)); err != nil {
		return err
	}
	if err := s.store.Set(ctx, session.AccessModeAccountsKey(appID), strings.Join(accounts, ",")); err != nil {
		return err
	}
	return s.store.Set(ctx, session.AccessModeGroupsKey(appID), strings.Join(groups, ","))
}

// AccessMode returns the stored mode for an app, defaulting to public when
// no grant exists or the store is unreachable.
func (s *Service) AccessMode(ctx context.Context, appID string) AccessMode {
	if appID == "" {
		return ModePublic
	}
	value, err := s.store.Get(ctx, session.AccessModeKey(appID))
	if err != nil {
		return ModePublic
	}
	return AccessMode(value)
}

// AccessModeBatch reads modes for several app ids in one call. Each app
// resolves independently; absent grants read as public.
func (s *Service) AccessModeBatch(ctx context.Context, appIDs []string) map[string]AccessMode {
	out := make(map[string]AccessMode, len(appIDs))
	for _, appID := range appIDs {
		out[appID] = s.AccessMode(ctx, appID)
	}
	return out
}

// accountAllowList reads the account allow-list for an app. Absent key,
// empty list and store failure all read as "no list stored".
func (s *Service) accountAllowList(ctx context.Context, appID string) ([]string, bool) {
	value, err := s.store.Get(ctx, session.AccessModeAccountsKey(appID))
	if err != nil || value == "" {
		return nil, false
	}
	return strings.Split(value, ","), true
}

// GroupAllowList reads the stored group allow-list. It is exposed for the
// admin surface only; Evaluate never consults it.
func (s *Service) GroupAllowList(ctx context.Context, appID string) []string {
	value, err := s.store.Get(ctx, session.AccessModeGroupsKey(appID))
	if err != nil || value == "" {
		return nil
	}
	return strings.Split(value, ",")
}

// Evaluate decides whether subject may reach the app. First match wins:
//
//  1. no grant stored           -> allow (default-open)
//  2. mode public               -> allow
//  3. private_all/sso_verified  -> allow iff subject is not the visitor
//  4. otherwise (restricted)    -> allow iff subject is on the account list
//
// The group allow-list is stored but never consulted here.
func (s *Service) Evaluate(ctx context.Context, appID, subject string) bool {
	mode := s.AccessMode(ctx, appID)
	switch mode {
	case ModePublic:
		return true
	case ModePrivateAll, ModeSSOVerified:
		return subject != Visitor
	}
	// Restricted branch, reached for ModeRestricted and for any unknown
	// stored value.
	accounts, ok := s.accountAllowList(ctx, appID)
	if !ok {
		return false
	}
	for _, id := range accounts {
		if id == subject {
			return true
		}
	}
	return false
}

// EvaluateByCode resolves the external code first; an unknown code denies.
func (s *Service) EvaluateByCode(ctx context.Context, appCode, subject string) bool {
	appID, err := s.resolver.AppIDByCode(ctx, appCode)
	if err != nil {
		return false
	}
	return s.Evaluate(ctx, appID, subject)
}

// EvaluateBatch evaluates the decision table independently per app code.
// Unresolvable codes deny; the batch itself always succeeds.
func (s *Service) EvaluateBatch(ctx context.Context, appCodes []string, subject string) map[string]bool {
	out := make(map[string]bool, len(appCodes))
	for _, code := range appCodes {
		out[code] = s.EvaluateByCode(ctx, code, subject)
	}
	return out
}

// Clear deletes the grant wholesale: all three keys go together. After a
// clear the app reads as public again.
func (s *Service) Clear(ctx context.Context, appID string) error {
	if appID == "" {
		return errors.New("webapp: app id is required")
	}
	return s.store.Delete(ctx,
		session.AccessModeKey(appID),
		session.AccessModeAccountsKey(appID),
		session.AccessModeGroupsKey(appID),
	)
}

// AllowedAccounts returns the account allow-list entries for the admin
// surface, dropping empty segments.
func (s *Service) AllowedAccounts(ctx context.Context, appID string) []string {
	accounts, ok := s.accountAllowList(ctx, appID)
	if !ok {
		return nil
	}
	var out []string
	for _, id := range accounts {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}
