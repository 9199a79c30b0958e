package util

import (
	"bytes"
	"net/http"
	"strings"
)

// SniffImageMIME определяет MIME картинки по сигнатуре. Пустая строка: не картинка.
func SniffImageMIME(b []byte) string {
	switch {
	// JPEG: FF D8 FF
	case len(b) >= 3 && b[0] == 0xFF && b[1] == 0xD8 && b[2] == 0xFF:
		return "image/jpeg"
	// PNG: 89 50 4E 47 0D 0A 1A 0A
	case len(b) >= 8 && bytes.Equal(b[:8], []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	// WEBP: RIFF....WEBP
	case len(b) >= 12 && string(b[:4]) == "RIFF" && string(b[8:12]) == "WEBP":
		return "image/webp"
	case len(b) >= 6 && (string(b[:6]) == "GIF87a" || string(b[:6]) == "GIF89a"):
		return "image/gif"
	}
	if len(b) > 0 {
		if ct := http.DetectContentType(b); strings.HasPrefix(ct, "image/") {
			return ct
		}
	}
	return ""
}

// PickMIME берём явный MIME, иначе детектим по байтам.
func PickMIME(explicit string, data []byte) string {
	if exp := strings.ToLower(strings.TrimSpace(explicit)); exp != "" {
		if i := strings.IndexByte(exp, ';'); i >= 0 {
			exp = strings.TrimSpace(exp[:i])
		}
		if exp != "application/octet-stream" {
			return exp
		}
	}
	return SniffImageMIME(data)
}

func MakeDataURL(mime, b64 string) string {
	return "data:" + mime + ";base64," + b64
}

// SplitDataURL разбирает data:<mime>;base64,<payload>.
// ok=false, если префикса data: или запятой нет.
func SplitDataURL(s string) (mime, payload string, ok bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(strings.ToLower(s), "data:") {
		return "", "", false
	}
	idx := strings.IndexByte(s, ',')
	if idx < 0 {
		return "", "", false
	}
	meta := s[len("data:"):idx] // "<mime>;base64"
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		mime = meta[:semi]
	} else {
		mime = meta
	}
	return strings.TrimSpace(mime), s[idx+1:], true
}
