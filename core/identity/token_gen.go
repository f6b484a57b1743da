package identity

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base32"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Tokens are HMAC-signed and stateless: the signature covers identity state
// that changes once the token is used, so a token cannot be replayed.
const (
	purposeEmailVerification = "email-verification"
	purposePasswordReset     = "password-reset"
)

var (
	salt    = []byte("ddquest.core.identity.token_gen")
	nowFunc = time.Now // mockable

	secretKey                     []byte
	emailVerificationTimeoutDelta time.Duration
	passwordResetTimeoutDelta     time.Duration

	errInvalidToken = errors.New("invalid token")
	errTokenExpired = errors.New("token expired")
)

// EncodeUID base64 encodes the given Identity's UID for use in URLs.
func EncodeUID(ident Identity) string {
	return base64.RawURLEncoding.EncodeToString([]byte(ident.UID))
}

func decodeUID(uid string) (string, error) {
	uidBytes, err := base64.RawURLEncoding.DecodeString(uid)
	if err != nil {
		return "", err
	}
	return string(uidBytes), nil
}

// makeToken generates a single-use token for the given Identity and purpose.
func makeToken(ident Identity, purpose string) string {
	return makeTokenWithTimestamp(ident, purpose, numDaysSince2001(nowFunc()))
}

// verifyToken checks that a token for the given Identity and purpose is valid.
func verifyToken(ident Identity, token, purpose string) error {
	if token == "" {
		return errInvalidToken
	}

	parts := strings.SplitN(token, "-", 2)
	if len(parts) < 2 {
		return errInvalidToken
	}
	tsB32 := parts[0]

	data, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(tsB32)
	if err != nil {
		return errInvalidToken
	}
	ts, err := strconv.Atoi(string(data))
	if err != nil {
		return errInvalidToken
	}

	// check that token has not been tampered with
	newToken := makeTokenWithTimestamp(ident, purpose, ts)
	if subtle.ConstantTimeCompare([]byte(newToken), []byte(token)) == 0 {
		return errInvalidToken
	}

	// check that the timestamp is within limit
	timeout := passwordResetTimeoutDelta
	if purpose == purposeEmailVerification {
		timeout = emailVerificationTimeoutDelta
	}
	if (numDaysSince2001(nowFunc()) - ts) > int(timeout/(24*time.Hour)) {
		return errTokenExpired
	}
	return nil
}

func makeTokenWithTimestamp(ident Identity, purpose string, ts int) string {
	tsB32 := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString([]byte(strconv.Itoa(ts)))
	return fmt.Sprintf("%s-%s", tsB32, sign(hashValue(ident, purpose, ts)))
}

func numDaysSince2001(t time.Time) int {
	ref := time.Date(2001, time.January, 1, 0, 0, 0, 0, time.UTC)
	return int(math.Ceil(t.Sub(ref).Hours() / 24))
}

func sign(val []byte) string {
	key := sha256.Sum256(append(salt, secretKey...))
	h := hmac.New(sha256.New, key[:])
	h.Write(val)
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// hashValue covers state invalidated by the token's own use: a verification
// token dies once the email is verified, a reset token dies once the password
// changes or the user logs back in.
func hashValue(ident Identity, purpose string, ts int) []byte {
	var val bytes.Buffer
	val.WriteString(ident.UID)
	val.WriteString(purpose)
	switch purpose {
	case purposeEmailVerification:
		val.WriteString(strconv.FormatBool(ident.EmailVerified))
	case purposePasswordReset:
		val.Write(ident.PasswordHash)
		if !ident.LastLogin.IsZero() {
			val.WriteString(ident.LastLogin.String())
		}
	}
	val.WriteString(strconv.Itoa(ts))
	return val.Bytes()
}
