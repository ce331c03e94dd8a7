// Package core seals vault directories into a single encrypted container
// and opens them again.
//
// Engine does the work on one directory:
//   - Seal: pack the non-hidden files, optionally permute, encrypt into
//     ContainerName, then remove the plaintext
//   - Open: verify the password, decrypt, restore the files, then remove
//     the container
//   - Peek: decrypt in memory only
//
// Manager pairs the engine with the registry and serializes operations on
// the same path. Conflicts during unlock are settled per MergeStrategy:
//   - Use vault version (overwrite)
//   - Keep both (saves vault version as .from-vault)
//   - Abort before anything is written
//   - Ask through a Resolver, such as PromptConflict
package core
