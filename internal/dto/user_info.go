package dto

import "crowdwatch/internal/model"

type UserInfo struct {
	ID    uint       `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

func NewUserInfo(u model.User) UserInfo {
	return UserInfo{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

type UserStatus struct {
	Email     string       `json:"email"`
	Name      string       `json:"name"`
	LastSeen  string       `json:"last_seen"`
	LastCount int          `json:"last_count"`
	Details   model.Counts `json:"details"`
}

type EmailRequest struct {
	Email string `json:"email"`
}
