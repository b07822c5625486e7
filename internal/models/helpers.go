package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRequestID returns a time-prefixed unique id for transfer requests.
func GenerateRequestID(kind RequestKind) string {
	return fmt.Sprintf("%s_%s_%d",
		kind,
		time.Now().Format("20060102"),
		uuid.New().ID())
}

// MaskUserID hides the middle of a chat user id for public announcements.
func MaskUserID(userID int64) string {
	s := fmt.Sprintf("%d", userID)
	if len(s) >= 5 {
		return s[:2] + "..." + s[len(s)-3:]
	}
	return s
}

func FormatCurrency(amount int64) string {
	return fmt.Sprintf("%d VNĐ", amount)
}
