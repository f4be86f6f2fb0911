package model

import (
	"time"
)

// User is one entry of the directory: every identity that has logged in
// or connected at least once.
type User struct {
	UserID     string    `bson:"user_id" json:"userId"`
	CreateTime time.Time `bson:"create_time" json:"createTime"`
	LastActive time.Time `bson:"last_active" json:"lastActive"`
}

func (u *User) GetUserID() string { return u.UserID }

func (u *User) GetTableName() string {
	return "user"
}
