// Package qr issues and verifies signed meal pass tokens rendered as QR
// codes. A token binds one student to one calendar day and is signed with an
// HMAC so canteen scanners can trust it offline.
package qr

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	appErrors "github.com/absenin/absenin-api/pkg/errors"
)

// Claims are the decoded contents of a pass token.
type Claims struct {
	StudentID string
	Date      string
}

// Pass is an issued meal pass: the raw token plus its QR rendering.
type Pass struct {
	Token     string `json:"token"`
	StudentID string `json:"student_id"`
	Date      string `json:"date"`
	PNG       string `json:"png_base64"`
}

// Issuer signs and verifies pass tokens.
type Issuer struct {
	secret []byte
	size   int
}

// NewIssuer creates an issuer with the given signing secret. size is the QR
// image edge length in pixels; zero picks a sensible default.
func NewIssuer(secret string, size int) *Issuer {
	if size <= 0 {
		size = 256
	}
	return &Issuer{secret: []byte(secret), size: size}
}

// IssuePass builds a token of the form studentID|date|signature and renders
// it as a PNG QR code.
func (i *Issuer) IssuePass(studentID string, date time.Time) (*Pass, error) {
	day := date.UTC().Format("2006-01-02")
	payload := studentID + "|" + day
	token := payload + "|" + i.sign(payload)

	png, err := qrcode.Encode(token, qrcode.Medium, i.size)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render QR code")
	}
	return &Pass{
		Token:     token,
		StudentID: studentID,
		Date:      day,
		PNG:       base64.StdEncoding.EncodeToString(png),
	}, nil
}

// VerifyPass checks the signature and returns the claims. Tampered or
// malformed tokens are rejected.
func (i *Issuer) VerifyPass(token string) (*Claims, error) {
	parts := strings.Split(token, "|")
	if len(parts) != 3 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "malformed pass token")
	}
	payload := parts[0] + "|" + parts[1]
	if !hmac.Equal([]byte(i.sign(payload)), []byte(parts[2])) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pass signature mismatch")
	}
	if _, err := time.Parse("2006-01-02", parts[1]); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "pass carries an invalid date")
	}
	return &Claims{StudentID: parts[0], Date: parts[1]}, nil
}

func (i *Issuer) sign(payload string) string {
	mac := hmac.New(sha256.New, i.secret)
	fmt.Fprint(mac, payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
