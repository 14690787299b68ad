package models

// Identity is the authenticated user reference handed out by the identity provider.
type Identity struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	Provider    string `json:"provider"`
	CreatedAt   int64  `json:"createdAt"`
}

const (
	ProviderPassword = "password"
	ProviderGoogle   = "google"
)

// Credential is the identity provider's own record. It never leaves the identity package.
type Credential struct {
	UID          string `bson:"_id" json:"uid"`
	Email        string `bson:"email" json:"email"`
	DisplayName  string `bson:"displayName" json:"displayName"`
	PasswordHash string `bson:"passwordHash,omitempty" json:"-"`
	Provider     string `bson:"provider" json:"provider"`
	ExternalID   string `bson:"externalId,omitempty" json:"-"`
	CreatedAt    int64  `bson:"createdAt" json:"createdAt"`
	LastLoginAt  int64  `bson:"lastLoginAt,omitempty" json:"lastLoginAt"`
}

func (c *Credential) Identity() *Identity {
	return &Identity{
		UID:         c.UID,
		Email:       c.Email,
		DisplayName: c.DisplayName,
		Provider:    c.Provider,
		CreatedAt:   c.CreatedAt,
	}
}

// QuizRecord is one daily quiz answer. Date is the local calendar day, Timestamp is epoch millis.
type QuizRecord struct {
	QuestionID int    `bson:"questionId" json:"questionId"`
	Correct    bool   `bson:"correct" json:"correct"`
	Date       string `bson:"date" json:"date"`
	Timestamp  int64  `bson:"timestamp" json:"timestamp"`
}

// UserDocument is the per-identity document in the "users" collection.
type UserDocument struct {
	UID         string       `bson:"_id" json:"uid"`
	DisplayName string       `bson:"displayName" json:"displayName"`
	Email       string       `bson:"email" json:"email"`
	CreatedAt   int64        `bson:"createdAt" json:"createdAt"`
	Progress    Progress     `bson:"progress" json:"progress"`
	QuizHistory []QuizRecord `bson:"quizHistory" json:"quizHistory"`
}

// LocalAnswer is the guest fallback record for the daily quiz.
type LocalAnswer struct {
	Date       string `json:"date"`
	QuestionID int    `json:"questionId"`
	Selected   int    `json:"selected"`
}
