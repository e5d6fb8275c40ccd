package domain

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type SessionState int

const (
	SessionUnresolved SessionState = iota
	SessionAnonymous
	SessionAuthenticated
)

func (s SessionState) String() string {
	switch s {
	case SessionAnonymous:
		return "ANONYMOUS"
	case SessionAuthenticated:
		return "AUTHENTICATED"
	default:
		return "UNRESOLVED"
	}
}

// Session is either anonymous or carries the authenticated identity and the
// opaque token attached to every authenticated request.
type Session struct {
	State SessionState
	User  User
	Token string
}

func (s Session) IsAuthenticated() bool {
	return s.State == SessionAuthenticated && s.Token != ""
}

// AuthResult is what the API returns on login or passcode verification.
type AuthResult struct {
	Token string
	User  User
}

type ChallengeMode string

const (
	ChallengeRegister      ChallengeMode = "REGISTER"
	ChallengePasswordReset ChallengeMode = "PASSWORD_RESET"
)

// OnboardingChallenge exists only while a passcode is awaited.
type OnboardingChallenge struct {
	Email                          string
	Mode                           ChallengeMode
	ResendCooldownSecondsRemaining int
}
