package webapp

// AccessMode governs who may reach a published web app.
type AccessMode string

const (
	// ModePublic allows everyone. Also the default when no grant exists.
	ModePublic AccessMode = "public"
	// ModePrivateAll allows any authenticated subject.
	ModePrivateAll AccessMode = "private_all"
	// ModeSSOVerified currently behaves like ModePrivateAll. Whether it
	// should additionally require an authentication-method claim is an open
	// question with the system owner; the observed behavior is preserved.
	ModeSSOVerified AccessMode = "sso_verified"
	// ModeRestricted allows only subjects on the account allow-list.
	ModeRestricted AccessMode = "restricted"
)

// Visitor is the sentinel subject for unauthenticated or unverifiable
// callers.
const Visitor = "visitor"

// SubjectTypeAccount and SubjectTypeGroup classify allow-list entries.
const (
	SubjectTypeAccount = "account"
	SubjectTypeGroup   = "group"
)

// Subject is one allow-list entry as submitted by the admin surface.
type Subject struct {
	ID   string `json:"subjectId"`
	Type string `json:"subjectType"`
}

// Grant is the stored policy for one app: mode plus the two allow-lists.
// Group lists are stored but not consulted during evaluation.
type Grant struct {
	Mode     AccessMode
	Accounts []string
	Groups   []string
}
