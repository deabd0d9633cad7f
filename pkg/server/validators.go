package server

import (
	"github.com/kerbaras/onepiece-offline/pkg/services"
)

type ListChaptersQuery struct {
	ByDate bool `query:"by_date"`
	Limit  int  `query:"limit" validate:"gte=0"`
}

type DownloadResponse struct {
	services.ChapterSummary
	Status string `json:"status"`
}

type DeleteMultipleResponse struct {
	services.DeleteResult
	Status         string `json:"status"`
	TotalRequested int    `json:"total_requested"`
	TotalDeleted   int    `json:"total_deleted"`
}

type AvailableChapter struct {
	Number    int    `json:"number"`
	Title     string `json:"title"`
	Date      string `json:"date,omitempty"`
	Available bool   `json:"available"`
	Pages     int    `json:"pages"`
}

type NotifyPayload struct {
	CurrentLatest int    `json:"current_latest" validate:"gte=0"`
	Recipient     string `json:"recipient" mod:"trim" validate:"omitempty,email"`
}

type SubscribePayload struct {
	Endpoint string `json:"endpoint" mod:"trim" validate:"required,url"`
	Keys     struct {
		P256dh string `json:"p256dh" validate:"required"`
		Auth   string `json:"auth" validate:"required"`
	} `json:"keys"`
}

type UnsubscribePayload struct {
	Endpoint string `json:"endpoint" mod:"trim" validate:"required"`
}

type SendPushPayload struct {
	Title   string                 `json:"title" validate:"required"`
	Message string                 `json:"message" validate:"required"`
	Data    map[string]interface{} `json:"data"`
}
