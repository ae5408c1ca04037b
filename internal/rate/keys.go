package rate

import "github.com/MrEthical07/otpgate/internal"

// Identifiers are hashed so emails and addresses never appear in key names.
func (l *Limiter) key(id string) string {
	return l.config.Prefix + ":" + internal.HashIdentifier(id)
}
