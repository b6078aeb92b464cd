package models

// Encryption constants for message body at-rest encryption
const (
	KeySize    = 32     // AES-256
	NonceSize  = 12     // GCM standard nonce size
	SaltSize   = 16     // Salt size for key derivation
	Iterations = 100000 // PBKDF2 iterations
)
