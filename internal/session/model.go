package session

type State string

const (
	StateLoading       State = "LOADING"
	StateAuthenticated State = "AUTHENTICATED"
	StateAnonymous     State = "ANONYMOUS"
)

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Identity is who is making requests right now.
type Identity struct {
	State       State
	User        *User
	AnonymousID string
}

func (i Identity) Authenticated() bool {
	return i.State == StateAuthenticated && i.User != nil
}

// Key identifies the cart owner, empty when there is none yet.
func (i Identity) Key() string {
	switch {
	case i.Authenticated():
		return "user:" + i.User.ID
	case i.AnonymousID != "":
		return "anon:" + i.AnonymousID
	default:
		return ""
	}
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

type ProfileInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Redirect asks the view layer to navigate, e.g. to the login view after a 401.
type Redirect struct {
	To     string
	Reason string
}

const LoginPath = "/login"

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

type verifyRequest struct {
	Email   string `json:"email"`
	OTP     string `json:"otp"`
	OTPType string `json:"otpType"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type profileResponse struct {
	User *User `json:"user"`
}
