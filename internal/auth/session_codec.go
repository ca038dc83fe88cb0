package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/greetbot/internal/model"
)

const sessionIssuer = "greetbot"

// ErrInvalidSession はCookieの値をセッションとして解釈できない場合に返される。
var ErrInvalidSession = errors.New("invalid session token")

// SessionCodec はセッションCookieの値をHS256署名付きJWTとして扱う。
// サーバー側にはセッションを保存しない。
type SessionCodec struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewSessionCodec はSessionCodecを生成する。
func NewSessionCodec(secret []byte, maxAge time.Duration) *SessionCodec {
	return &SessionCodec{secret: secret, maxAge: maxAge, now: time.Now}
}

// MaxAge はセッションの有効期間を返す。
func (c *SessionCodec) MaxAge() time.Duration {
	return c.maxAge
}

// Encode はユーザーIDを署名付きトークンに変換する。
func (c *SessionCodec) Encode(userID uint64) (*model.Session, error) {
	now := c.now()
	expiresAt := now.Add(c.maxAge)

	claims := jwt.RegisteredClaims{
		Issuer:    sessionIssuer,
		Subject:   strconv.FormatUint(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign session: %w", err)
	}

	return &model.Session{UserID: userID, Token: signed, ExpiresAt: expiresAt}, nil
}

// Decode は署名と有効期限を検証し、ユーザーIDを返す。
// subjectが符号なし整数でない場合もErrInvalidSessionとする。
func (c *SessionCodec) Decode(token string) (uint64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: subject is not a user id", ErrInvalidSession)
	}
	return userID, nil
}
