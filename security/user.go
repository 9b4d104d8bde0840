package security

// PrivilegeLevel is a total order over what an identity may do.
// Ownership checks in the memory subsystem and permission gates in the
// shell compare levels directly.
type PrivilegeLevel int

const (
	PrivilegeGuest PrivilegeLevel = iota
	PrivilegeUser
	PrivilegeAdmin
	PrivilegeKernel
)

func (l PrivilegeLevel) String() string {
	switch l {
	case PrivilegeGuest:
		return "guest"
	case PrivilegeUser:
		return "user"
	case PrivilegeAdmin:
		return "admin"
	case PrivilegeKernel:
		return "kernel"
	default:
		return "unknown"
	}
}

const (
	MaxUsers          = 16
	MaxUsernameLength = 32
	MaxPasswordLength = 64
)

type User struct {
	Name      string
	Privilege PrivilegeLevel
	Active    bool
	SessionID uint32

	credHash [32]byte
}
