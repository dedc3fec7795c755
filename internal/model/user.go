package model

import "time"

// User is a chat account with a prepaid balance in minor currency units.
type User struct {
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	Balance   int64     `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	IsBanned  bool      `json:"is_banned"`
}
