package client

// Operation names reported in Error.Op.
const (
	OpInfo              = "info"
	OpLogin             = "login"
	OpRegister          = "register"
	OpMe                = "get current user"
	OpListNotes         = "list notes"
	OpGetNote           = "get note"
	OpCreateNote        = "create note"
	OpUpdateNote        = "update note"
	OpDeleteNote        = "delete note"
	OpShareNote         = "share note"
	OpCreatePublicLink  = "create public link"
	OpRevokePublicLink  = "revoke public link"
	OpGetPublicNote     = "get public note"
	OpUpdateProfile     = "update profile"
	OpUpdatePassword    = "update password"
	OpUpdatePreferences = "update preferences"
	OpDeleteAccount     = "delete account"
)
