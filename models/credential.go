package models

import (
	"time"
)

// ValidityWindow 凭证剩余有效期低于该值时视为不可用,需要刷新
const ValidityWindow = 5 * time.Minute

// Credential 上游平台的访问凭证
type Credential struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

// Valid 凭证是否还有超过 5 分钟的剩余有效期
func (c *Credential) Valid() bool {
	if c == nil || c.AccessToken == "" {
		return false
	}
	return time.Until(c.ExpiresAt) > ValidityWindow
}
