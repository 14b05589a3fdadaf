package util

import (
	"fmt"
	"strings"
	"unicode"
)

// FormatFileSize renders a byte count in the nearest unit, one decimal above
// bytes.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 B"
	}
	units := []string{"B", "KB", "MB", "GB"}
	size := float64(bytes)
	index := 0
	for size >= 1024 && index < len(units)-1 {
		size /= 1024
		index++
	}
	if index == 0 {
		return fmt.Sprintf("%d B", bytes)
	}
	return fmt.Sprintf("%.1f %s", size, units[index])
}

// FormatElapsedTime renders seconds as 00:MM:SS.
func FormatElapsedTime(totalSeconds int) string {
	if totalSeconds < 0 {
		totalSeconds = 0
	}
	return fmt.Sprintf("00:%02d:%02d", totalSeconds/60, totalSeconds%60)
}

func TitleCase(value string) string {
	segments := strings.Split(value, " ")
	for i, segment := range segments {
		if segment == "" {
			continue
		}
		runes := []rune(segment)
		runes[0] = unicode.ToUpper(runes[0])
		segments[i] = string(runes)
	}
	return strings.Join(segments, " ")
}
