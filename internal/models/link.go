package models

import (
	"time"
)

type Link struct {
	ID            string     `json:"id"`
	Code          string     `json:"code"`
	URL           string     `json:"url"`
	TotalClicks   int64      `json:"totalClicks"`
	LastClickedAt *time.Time `json:"lastClickedAt"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

type CreateLinkInput struct {
	URL  string  `json:"url"`
	Code *string `json:"code,omitempty"`
}

// ClickEvent один переход по короткой ссылке, ожидающий записи в хранилище
type ClickEvent struct {
	Code      string
	ClickedAt time.Time
}
