package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/illarion/dirvault/internal/crypto"
	verrors "github.com/illarion/dirvault/internal/errors"
	"github.com/illarion/dirvault/internal/logging"
	"github.com/illarion/dirvault/internal/pack"
	"github.com/illarion/dirvault/internal/security"
)

const (
	// ContainerName is the encrypted artifact left in a sealed directory.
	ContainerName = "vaultfile"

	// FilePermSecure is used for the container and every recovered file.
	FilePermSecure = 0600

	fromVaultSuffix = ".from-vault"
)

// Vault is everything the engine needs to know about one vault directory.
type Vault struct {
	Path       string // canonical directory path, also the permutation seed source
	Credential crypto.Credential
	Shuffled   bool
}

func (v Vault) seed() uint64 {
	return crypto.Seed(v.Path)
}

// SealResult describes a completed seal.
type SealResult struct {
	Files         []string // packed names, in directory order
	ContainerSize int
}

// OpenResult describes what an open wrote. On a partial failure it lists
// the files written before the failing one.
type OpenResult struct {
	Written   []string          // names restored from the vault
	KeptBoth  map[string]string // original name -> name the vault copy was written under
	Unchanged []string          // local file already identical to the vault copy
}

// Engine seals directories into containers and opens them again. It holds
// no state between calls; callers serialize access per directory.
type Engine struct {
	Log logging.Logger

	// Resolve is consulted for StrategyAsk.
	Resolve Resolver
}

// Seal packs the non-hidden regular files of v.Path into ContainerName and
// removes the packed plaintext. The password is verified first.
func (e *Engine) Seal(ctx context.Context, v Vault, password []byte) (*SealResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := verifyPassword(v.Credential, password); err != nil {
		return nil, err
	}

	dir, err := security.New(v.Path)
	if err != nil {
		return nil, verrors.NewIOError("open", v.Path, verrors.ErrDirectoryUnreadable, err)
	}
	defer dir.Close()

	if _, err := dir.Lstat(ContainerName); err == nil {
		return nil, fmt.Errorf("%s: %w", dir.Join(ContainerName), verrors.ErrAlreadySealed)
	} else if !verrors.Is(err, os.ErrNotExist) {
		return nil, verrors.NewIOError("stat", dir.Join(ContainerName), nil, err)
	}

	files, err := e.collect(dir)
	if err != nil {
		return nil, err
	}
	defer clearFiles(files)

	blob, err := pack.Encode(files)
	if err != nil {
		return nil, err
	}
	defer func() { crypto.ClearBytes(blob) }()

	if v.Shuffled {
		shuffled := crypto.Shuffle(blob, v.seed())
		crypto.ClearBytes(blob)
		blob = shuffled
	}

	key, err := v.Credential.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	container, err := crypto.Encrypt(blob, key)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := dir.WriteFileAtomic(ContainerName, container, FilePermSecure); err != nil {
		return nil, verrors.NewIOError("write", dir.Join(ContainerName), verrors.ErrWrite, err)
	}
	e.Log.Debugf("wrote %s (%d bytes)", dir.Join(ContainerName), len(container))

	result := &SealResult{ContainerSize: len(container)}
	for _, f := range files {
		result.Files = append(result.Files, f.Name)
	}

	// The container is complete; only now does plaintext go away
	for _, f := range files {
		if err := dir.Remove(f.Name); err != nil && !verrors.Is(err, os.ErrNotExist) {
			return result, verrors.NewIOError("remove", dir.Join(f.Name), nil, err)
		}
	}

	return result, nil
}

// collect reads the files a seal packs, in directory order.
func (e *Engine) collect(dir *security.DirRoot) ([]pack.PlainFile, error) {
	entries, err := dir.ReadDir()
	if err != nil {
		return nil, verrors.NewIOError("readdir", dir.Path(), verrors.ErrDirectoryUnreadable, err)
	}

	var files []pack.PlainFile
	for _, entry := range entries {
		name := entry.Name()
		if err := security.ValidateName(name); err != nil {
			e.Log.Debugf("skipping %s: %v", name, err)
			continue
		}
		if !entry.Type().IsRegular() {
			e.Log.Debugf("skipping %s: not a regular file", name)
			continue
		}
		if len(name) > pack.MaxNameLen {
			clearFiles(files)
			return nil, fmt.Errorf("%w: name %q is longer than %d bytes", verrors.ErrCapacity, name, pack.MaxNameLen)
		}
		if len(files) == pack.MaxFiles {
			clearFiles(files)
			return nil, fmt.Errorf("%w: %s holds more than %d files", verrors.ErrCapacity, dir.Path(), pack.MaxFiles)
		}

		data, err := dir.ReadFile(name)
		if err != nil {
			clearFiles(files)
			return nil, verrors.NewIOError("read", dir.Join(name), nil, err)
		}
		files = append(files, pack.PlainFile{Name: name, Contents: data})
	}

	return files, nil
}

// Peek decrypts the container of v in memory without touching the directory.
// The returned contents should be cleared by the caller with ClearFiles.
func (e *Engine) Peek(ctx context.Context, v Vault, password []byte) ([]pack.PlainFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := security.New(v.Path)
	if err != nil {
		return nil, openDirError(v.Path, err)
	}
	defer dir.Close()

	container, err := readContainer(dir)
	if err != nil {
		return nil, err
	}

	if err := verifyPassword(v.Credential, password); err != nil {
		return nil, err
	}

	return e.unseal(v, password, container)
}

// Open restores the files held in the container of v and then removes the
// container. Every conflict is resolved before the first write, so an abort
// leaves the directory untouched. A write failure stops the remaining writes,
// keeps the container and returns the partial result with an ErrWrite error.
func (e *Engine) Open(ctx context.Context, v Vault, password []byte, strategy MergeStrategy) (*OpenResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := security.New(v.Path)
	if err != nil {
		return nil, openDirError(v.Path, err)
	}
	defer dir.Close()

	container, err := readContainer(dir)
	if err != nil {
		return nil, err
	}

	if err := verifyPassword(v.Credential, password); err != nil {
		return nil, err
	}

	files, err := e.unseal(v, password, container)
	if err != nil {
		return nil, err
	}
	defer clearFiles(files)

	plan, result, err := e.plan(dir, files, strategy)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, w := range plan {
		if err := dir.WriteFileAtomic(w.target, w.file.Contents, FilePermSecure); err != nil {
			return result, verrors.NewIOError("write", dir.Join(w.target), verrors.ErrWrite, err)
		}
		if w.target == w.file.Name {
			result.Written = append(result.Written, w.file.Name)
		} else {
			result.KeptBoth[w.file.Name] = w.target
		}
		e.Log.Debugf("restored %s", dir.Join(w.target))
	}

	if err := dir.Remove(ContainerName); err != nil {
		return result, verrors.NewIOError("remove", dir.Join(ContainerName), nil, err)
	}

	return result, nil
}

// unseal turns container bytes back into files. Contents alias one buffer.
func (e *Engine) unseal(v Vault, password, container []byte) ([]pack.PlainFile, error) {
	key, err := v.Credential.DeriveKey(password)
	if err != nil {
		return nil, err
	}
	defer crypto.ClearBytes(key)

	blob, err := crypto.Decrypt(container, key)
	if err != nil {
		return nil, err
	}

	if v.Shuffled {
		unshuffled := crypto.Unshuffle(blob, v.seed())
		crypto.ClearBytes(blob)
		blob = unshuffled
	}

	files, err := pack.Decode(blob)
	if err != nil {
		crypto.ClearBytes(blob)
		return nil, err
	}

	seen := make(map[string]bool, len(files))
	for _, f := range files {
		if err := security.ValidateName(f.Name); err != nil || f.Name == ContainerName {
			crypto.ClearBytes(blob)
			return nil, fmt.Errorf("%w: vault entry %q is not a plain file name", verrors.ErrFormat, f.Name)
		}
		if seen[f.Name] {
			crypto.ClearBytes(blob)
			return nil, fmt.Errorf("%w: vault entry %q appears twice", verrors.ErrFormat, f.Name)
		}
		seen[f.Name] = true
	}

	return files, nil
}

type pendingWrite struct {
	file   pack.PlainFile
	target string
}

// plan decides where each recovered file goes.
func (e *Engine) plan(dir *security.DirRoot, files []pack.PlainFile, strategy MergeStrategy) ([]pendingWrite, *OpenResult, error) {
	result := &OpenResult{KeptBoth: make(map[string]string)}

	taken := make(map[string]bool, len(files))
	for _, f := range files {
		taken[f.Name] = true
	}

	var plan []pendingWrite
	for _, f := range files {
		info, err := dir.Lstat(f.Name)
		if verrors.Is(err, os.ErrNotExist) {
			plan = append(plan, pendingWrite{file: f, target: f.Name})
			continue
		}
		if err != nil {
			return nil, nil, verrors.NewIOError("stat", dir.Join(f.Name), nil, err)
		}

		var local []byte
		if info.Mode().IsRegular() {
			local, err = dir.ReadFile(f.Name)
			if err != nil {
				return nil, nil, verrors.NewIOError("read", dir.Join(f.Name), nil, err)
			}
			if CompareFiles(local, f.Contents) {
				crypto.ClearBytes(local)
				result.Unchanged = append(result.Unchanged, f.Name)
				continue
			}
		}

		resolution, err := resolveConflict(f.Name, local, f.Contents, strategy, e.Resolve)
		crypto.ClearBytes(local)
		if err != nil {
			return nil, nil, err
		}

		switch resolution {
		case ResolutionUseVault:
			plan = append(plan, pendingWrite{file: f, target: f.Name})
		case ResolutionKeepBoth:
			target, err := freeName(dir, f.Name, taken)
			if err != nil {
				return nil, nil, err
			}
			taken[target] = true
			plan = append(plan, pendingWrite{file: f, target: target})
		default:
			return nil, nil, fmt.Errorf("%s: %w", dir.Join(f.Name), ErrConflict)
		}
	}

	return plan, result, nil
}

// freeName returns name.from-vault, or name.from-vault.N for the first N
// that is not in use.
func freeName(dir *security.DirRoot, name string, taken map[string]bool) (string, error) {
	candidate := keepBothName(name, fromVaultSuffix)
	for n := 1; ; n++ {
		if !taken[candidate] {
			_, err := dir.Lstat(candidate)
			if verrors.Is(err, os.ErrNotExist) {
				return candidate, nil
			}
			if err != nil {
				return "", verrors.NewIOError("stat", dir.Join(candidate), nil, err)
			}
		}
		candidate = keepBothName(name, fromVaultSuffix+"."+strconv.Itoa(n))
	}
}

// keepBothName appends suffix to name, trimming name so the result stays
// within pack.MaxNameLen bytes without cutting a UTF-8 sequence.
func keepBothName(name, suffix string) string {
	limit := pack.MaxNameLen - len(suffix)
	if len(name) > limit {
		name = name[:limit]
		for len(name) > 0 && !utf8.ValidString(name) {
			name = name[:len(name)-1]
		}
	}
	return name + suffix
}

func readContainer(dir *security.DirRoot) ([]byte, error) {
	container, err := dir.ReadFile(ContainerName)
	if verrors.Is(err, os.ErrNotExist) {
		return nil, verrors.NewIOError("read", dir.Join(ContainerName), verrors.ErrContainerNotFound, err)
	}
	if err != nil {
		return nil, verrors.NewIOError("read", dir.Join(ContainerName), nil, err)
	}
	return container, nil
}

func openDirError(path string, err error) error {
	if verrors.Is(err, os.ErrNotExist) {
		return verrors.NewIOError("open", path, verrors.ErrContainerNotFound, err)
	}
	return verrors.NewIOError("open", path, nil, err)
}

func verifyPassword(c crypto.Credential, password []byte) error {
	ok, err := c.Verify(password)
	if err != nil {
		return err
	}
	if !ok {
		return verrors.ErrPasswordMismatch
	}
	return nil
}

// ClearFiles zeroes the contents of files returned by Peek.
func ClearFiles(files []pack.PlainFile) {
	clearFiles(files)
}

func clearFiles(files []pack.PlainFile) {
	for _, f := range files {
		crypto.ClearBytes(f.Contents)
	}
}
