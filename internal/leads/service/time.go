package service

import "time"

const timeLayout = time.RFC3339

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	formatted := t.UTC().Format(timeLayout)
	return &formatted
}
