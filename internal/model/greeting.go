package model

import "time"

// MaxGreetingLength はDiscordのメッセージ本文の上限文字数。
const MaxGreetingLength = 2000

// Greeting はギルドごとの参加時挨拶設定を表す。
type Greeting struct {
	GuildID   string
	ChannelID string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
