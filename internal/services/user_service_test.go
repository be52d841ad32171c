package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/fonoterapia-backend/internal/apperr"
	"github.com/AnshRaj112/fonoterapia-backend/internal/database"
)

// plainCredentials is a fast stand-in for bcrypt.
type plainCredentials struct{ verifyCalls int }

func (c *plainCredentials) Hash(plaintext string) (string, error) { return "h:" + plaintext, nil }

func (c *plainCredentials) Verify(plaintext, hash string) (bool, error) {
	c.verifyCalls++
	if len(hash) < 2 || hash[:2] != "h:" {
		return false, errors.New("malformed hash")
	}
	return hash == "h:"+plaintext, nil
}

func TestRegisterAndLogin(t *testing.T) {
	creds := &plainCredentials{}
	svc := NewUserService(database.NewMemoryStore(), creds)
	ctx := context.Background()

	user, err := svc.Register(ctx, "  Ana ", "Ana@X.com", "pw123456")
	require.NoError(t, err)
	assert.Positive(t, user.ID)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, "ana@x.com", user.Email)
	assert.Equal(t, "h:pw123456", user.PasswordHash)

	_, err = svc.Register(ctx, "Ana", "ana@x.com", "otherpass")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	logged, err := svc.Login(ctx, "ANA@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)
}

func TestRegisterValidation(t *testing.T) {
	svc := NewUserService(database.NewMemoryStore(), &plainCredentials{})
	ctx := context.Background()

	_, err := svc.Register(ctx, "", "ana@x.com", "pw123456")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, "Ana", "ana@x.com", "short")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, "Ana", "ana@x.com", strings.Repeat("p", 80))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.Register(ctx, strings.Repeat("n", 256), "ana@x.com", "pw123456")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRegisterLongPasswordWithBcrypt(t *testing.T) {
	svc := NewUserService(database.NewMemoryStore(), BcryptCredentials{})

	// 40 two-byte runes: short in characters, over bcrypt's 72-byte limit.
	_, err := svc.Register(context.Background(), "Ana", "ana@x.com", strings.Repeat("ñ", 40))

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	creds := &plainCredentials{}
	svc := NewUserService(database.NewMemoryStore(), creds)
	ctx := context.Background()
	_, err := svc.Register(ctx, "Ana", "ana@x.com", "pw123456")
	require.NoError(t, err)

	_, wrongPassword := svc.Login(ctx, "ana@x.com", "nope-nope")
	_, unknownEmail := svc.Login(ctx, "nadie@x.com", "pw123456")

	var a, b *apperr.Error
	require.ErrorAs(t, wrongPassword, &a)
	require.ErrorAs(t, unknownEmail, &b)
	assert.Equal(t, apperr.KindUnauthorized, a.Kind)
	assert.Equal(t, a.Kind, b.Kind)
	assert.Equal(t, a.Message, b.Message)
	assert.Equal(t, 2, creds.verifyCalls, "an unknown email still pays for a hash check")
}

func TestLoginRequiresFields(t *testing.T) {
	svc := NewUserService(database.NewMemoryStore(), &plainCredentials{})

	_, err := svc.Login(context.Background(), "", "pw123456")

	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}
