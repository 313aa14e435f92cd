package qr

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerifyPass(t *testing.T) {
	issuer := NewIssuer("test-secret", 128)
	date := time.Date(2024, 6, 3, 15, 30, 0, 0, time.UTC)

	pass, err := issuer.IssuePass("student-1", date)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-03", pass.Date)
	assert.NotEmpty(t, pass.PNG)

	claims, err := issuer.VerifyPass(pass.Token)
	require.NoError(t, err)
	assert.Equal(t, "student-1", claims.StudentID)
	assert.Equal(t, "2024-06-03", claims.Date)
}

func TestVerifyPassRejectsTampering(t *testing.T) {
	issuer := NewIssuer("test-secret", 128)
	pass, err := issuer.IssuePass("student-1", time.Now())
	require.NoError(t, err)

	tampered := strings.Replace(pass.Token, "student-1", "student-2", 1)
	_, err = issuer.VerifyPass(tampered)
	assert.Error(t, err)

	_, err = issuer.VerifyPass("not-a-token")
	assert.Error(t, err)
}

func TestVerifyPassRejectsForeignSecret(t *testing.T) {
	pass, err := NewIssuer("secret-a", 128).IssuePass("student-1", time.Now())
	require.NoError(t, err)

	_, err = NewIssuer("secret-b", 128).VerifyPass(pass.Token)
	assert.Error(t, err)
}
