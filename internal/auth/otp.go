package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Brownie44l1/attendance/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// otpMin and otpSpace bound codes to [10^(n-1), 10^n) so every code has
// exactly models.OTPLength digits without a leading zero.
var (
	otpMin   = new(big.Int).Exp(big.NewInt(10), big.NewInt(models.OTPLength-1), nil)
	otpSpace = new(big.Int).Mul(big.NewInt(9), otpMin)
)

// GenerateOTP generates a uniformly distributed code in [100000, 999999].
func GenerateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}
	return n.Add(n, otpMin).String(), nil
}

// HashOTP hashes a code for storage.
func HashOTP(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// CheckOTP compares a submitted code with a stored hash.
func CheckOTP(code, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
