package identity

// KeyPair holds one asymmetric identity. Private key bytes are owned by the
// caller and must be wiped once persisted; Public carries no
// confidentiality requirement.
type KeyPair struct {
	Public  []byte
	Private []byte
}

// DerivedKeys is the full output of one derivation chain run.
type DerivedKeys struct {
	Encryption  KeyPair // X25519: 32-byte public, 32-byte private (the purpose seed verbatim)
	Signing     KeyPair // Ed25519: 32-byte public, 64-byte private (seed || public)
	ContactsKey []byte  // 32-byte symmetric key for contact backups
}

// Wipe zeroes all private material in place. Public keys are left intact.
func (k *DerivedKeys) Wipe() {
	if k == nil {
		return
	}
	zeroBytes(k.Encryption.Private)
	zeroBytes(k.Signing.Private)
	zeroBytes(k.ContactsKey)
}

// Identity is the public view of the installed account.
type Identity struct {
	WhisperID           string
	EncryptionPublicKey []byte
	SigningPublicKey    []byte
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
