package ai

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex sha256 HMAC of payload
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMAC verifies a sha256 HMAC hex signature against payload and secret
func VerifyHMAC(secret string, payload []byte, signatureHex string) bool {
	if secret == "" || signatureHex == "" {
		return false
	}
	expected := Sign(secret, payload)
	return hmac.Equal([]byte(expected), []byte(signatureHex))
}

// ZoomSignature builds the x-zm-signature value: v0=HMAC(secret, "v0:{timestamp}:{body}")
func ZoomSignature(secret, timestamp string, body []byte) string {
	msg := make([]byte, 0, len(body)+len(timestamp)+4)
	msg = append(msg, "v0:"...)
	msg = append(msg, timestamp...)
	msg = append(msg, ':')
	msg = append(msg, body...)
	return "v0=" + Sign(secret, msg)
}

// VerifyZoomSignature checks the x-zm-signature header of a Zoom webhook
func VerifyZoomSignature(secret, timestamp string, body []byte, header string) bool {
	if secret == "" || timestamp == "" || header == "" {
		return false
	}
	return hmac.Equal([]byte(ZoomSignature(secret, timestamp, body)), []byte(header))
}
