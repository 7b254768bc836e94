package utils

import "golang.org/x/crypto/bcrypt"

// hashCost is bcrypt's default; raised here in one place if needed.
const hashCost = bcrypt.DefaultCost

// HashPassword hashes a plain password with bcrypt.
func HashPassword(password string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(password), hashCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// CheckPassword reports whether plain matches the stored bcrypt hash.
func CheckPassword(plain, hashed string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
