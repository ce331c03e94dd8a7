// Package crypto provides the cryptographic operations behind a dirvault container.
//
// Encryption uses AES-256-GCM with:
//   - 32-byte key derived from the password via Argon2id
//   - 12-byte random nonce per encryption, stored in front of the ciphertext
//   - 16-byte authentication tag appended by GCM
//
// Password handling uses Argon2id (v=19) with:
//   - 16-byte random salt, stored base64 encoded next to the hash
//   - PHC formatted hash strings that carry their own parameters
//   - raw mode for key derivation, fed with the encoded salt text so that the
//     derived key never equals the stored verifier
//
// The byte permutation in shuffle.go is obfuscation only. It is keyed by the
// vault path, which is public, and adds no confidentiality.
//
// Memory safety:
//   - Use ClearBytes() to zero keys and plaintext after use
//   - Call Encryptor.Destroy() when done with encryption operations
package crypto
