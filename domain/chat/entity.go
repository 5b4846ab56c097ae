package chat

import "time"

// User roles.
const (
	RoleFarmer = "farmer"
	RoleBuyer  = "buyer"
	RoleExpert = "expert"
)

// User is a registered participant.
type User struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Role      string    `gorm:"size:20;not null;default:farmer" json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for User model.
func (User) TableName() string {
	return "users"
}

// Chat is a conversation; its ID doubles as the relay room key.
type Chat struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	Title     string    `gorm:"size:100;not null" json:"title"`
	CreatedBy string    `gorm:"size:36;index;not null" json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// TableName returns the table name for Chat model.
func (Chat) TableName() string {
	return "chats"
}

// Message is an immutable chat message.
type Message struct {
	ID        string    `gorm:"primarykey;size:36" json:"id"`
	ChatID    string    `gorm:"size:36;index;not null" json:"chatId"`
	SenderID  string    `gorm:"size:36;index;not null" json:"senderId"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"index" json:"createdAt"`
}

// TableName returns the table name for Message model.
func (Message) TableName() string {
	return "messages"
}
