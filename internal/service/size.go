package service

import (
	"fmt"
	"os"

	"github.com/iconidentify/tunegrab/internal/domain"
)

// MaxAudioSize is the largest audio file Telegram accepts from bots.
const MaxAudioSize int64 = 50 * 1024 * 1024

// CheckSize returns the file size, or domain.ErrTooLarge when it exceeds MaxAudioSize.
func CheckSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat audio: %w", err)
	}
	if info.Size() > MaxAudioSize {
		return info.Size(), fmt.Errorf("%w: %d bytes", domain.ErrTooLarge, info.Size())
	}
	return info.Size(), nil
}
