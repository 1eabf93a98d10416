package mailxazure

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// ContentHash returns base64(SHA256(body)).
func ContentHash(body []byte) string {
	sum := sha256.Sum256(body)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Signature returns base64(HMAC-SHA256(accessKey, METHOD\nPATH\nDATE\nHASH)).
// pathAndQuery is the request path including its query string.
func Signature(method, pathAndQuery, date, contentHash, accessKey string) string {
	stringToSign := method + "\n" + pathAndQuery + "\n" + date + "\n" + contentHash
	mac := hmac.New(sha256.New, []byte(accessKey))
	mac.Write([]byte(stringToSign))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// AuthHeader returns the content hash and Authorization header value for
// a request. The result is a pure function of its inputs.
func AuthHeader(method, pathAndQuery, date string, body []byte, accessKey string) (contentHash, authorization string) {
	contentHash = ContentHash(body)
	sig := Signature(method, pathAndQuery, date, contentHash, accessKey)
	return contentHash, "HMAC-SHA256 SignedHeaders=date;host;x-ms-content-sha256&Signature=" + sig
}
