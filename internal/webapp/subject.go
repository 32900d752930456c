package webapp

import "strings"

// ClaimVerifier verifies a bearer credential and returns its claim map.
type ClaimVerifier interface {
	Verify(raw string) (map[string]any, error)
}

// SubjectFromAuthorization resolves the subject id from an Authorization
// header. Any parse or verification failure degrades to the visitor
// sentinel rather than an error: authorization failures always fall to the
// least-privileged subject.
func SubjectFromAuthorization(header string, verifier ClaimVerifier) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return Visitor
	}
	scheme, raw, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return Visitor
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Visitor
	}
	claims, err := verifier.Verify(raw)
	if err != nil {
		return Visitor
	}
	if v, ok := claims["end_user_id"].(string); ok && v != "" {
		return v
	}
	if v, ok := claims["user_id"].(string); ok && v != "" {
		return v
	}
	return Visitor
}
