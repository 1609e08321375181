package storage

import "time"

// Response is a completed form submission. Created exactly once per finished
// form, never mutated afterwards. A user may submit any number of responses.
type Response struct {
	ID             uint  `gorm:"primaryKey"`
	TelegramUserID int64 `gorm:"index"`
	Name           string
	Email          string
	Score          int
	CreatedAt      time.Time
}

func (Response) TableName() string {
	return "user_responses"
}
