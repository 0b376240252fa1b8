package schema

// UserAccountTable represents the 'users.account' table
type UserAccountTable struct {
	Table        string
	ID           string
	ProfileID    string
	Email        string
	PasswordHash string
	DisplayName  string
	AvatarURL    string
	Bio          string
	TOTPSecret   string
	Status       string
	CreatedAt    string
	UpdatedAt    string
}

// UserAccount is the schema definition for users.account
var UserAccount = UserAccountTable{
	Table:        "users.account",
	ID:           "id",
	ProfileID:    "profileid",
	Email:        "email",
	PasswordHash: "passwordhash",
	DisplayName:  "displayname",
	AvatarURL:    "avatarurl",
	Bio:          "bio",
	TOTPSecret:   "totpsecret",
	Status:       "status",
	CreatedAt:    "createdat",
	UpdatedAt:    "updatedat",
}

// Columns returns all standard column names
func (t UserAccountTable) Columns() []string {
	return []string{
		t.ID, t.ProfileID, t.Email, t.PasswordHash, t.DisplayName,
		t.AvatarURL, t.Bio, t.TOTPSecret, t.Status, t.CreatedAt, t.UpdatedAt,
	}
}
