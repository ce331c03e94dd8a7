package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/dirvault/cmd"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global := flag.NewFlagSet("dirvault", flag.ExitOnError)
	global.Usage = printUsage
	global.BoolVar(&cmd.Options.Verbose, "v", false, "Verbose output")
	global.BoolVar(&cmd.Options.Verbose, "verbose", false, "Verbose output")
	global.BoolVar(&cmd.Options.Debug, "debug", false, "Debug output")
	if err := global.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	args := global.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "create":
		runCreate(ctx, args[1:])
	case "lock":
		runLock(ctx, args[1:])
	case "unlock":
		runUnlock(ctx, args[1:])
	case "ls", "list":
		runList(ctx, args[1:])
	case "rm":
		runRm(ctx, args[1:])
	case "status":
		runStatus(ctx, args[1:])
	case "diff":
		runDiff(ctx, args[1:])
	case "compact":
		runCompact(ctx, args[1:])
	case "keyring":
		runKeyring(ctx, args[1:])
	case "config":
		runConfig(ctx, args[1:])
	case "completion":
		runCompletion(ctx, args[1:])
	case "help":
		if len(args) < 2 {
			printUsage()
			return
		}
		printCommandHelp(args[1])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

// parseDir parses fs and returns its single optional directory argument.
func parseDir(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	if fs.NArg() > 1 {
		fmt.Fprintf(os.Stderr, "Error: %s takes at most one directory\n", fs.Name())
		os.Exit(1)
	}
	if fs.NArg() == 0 {
		return "."
	}
	return fs.Arg(0)
}

func runCreate(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	name := fs.String("name", "", "Vault name (defaults to the directory name)")
	dir := parseDir(fs, args)

	cmd.Create(ctx, dir, *name)
}

func runLock(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("lock", flag.ExitOnError)
	dir := parseDir(fs, args)

	cmd.Lock(ctx, dir)
}

func runUnlock(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("unlock", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite local files without asking")
	keepBoth := fs.Bool("keep-both", false, "Keep both local and vault versions")
	abort := fs.Bool("abort", false, "Abort on the first conflict")
	dir := parseDir(fs, args)

	cmd.Unlock(ctx, dir, *force, *keepBoth, *abort)
}

func runList(_ context.Context, args []string) {
	fs := flag.NewFlagSet("ls", flag.ExitOnError)
	jsonOutput := fs.Bool("json", false, "Print JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.List(*jsonOutput)
}

func runRm(_ context.Context, args []string) {
	fs := flag.NewFlagSet("rm", flag.ExitOnError)
	dir := parseDir(fs, args)

	cmd.Remove(dir)
}

func runStatus(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	dir := parseDir(fs, args)

	cmd.Status(ctx, dir)
}

func runDiff(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("diff", flag.ExitOnError)
	dir := parseDir(fs, args)

	cmd.Diff(ctx, dir)
}

func runCompact(_ context.Context, args []string) {
	fs := flag.NewFlagSet("compact", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Compact()
}

func runKeyring(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dirvault keyring <save|delete|status> [dir]")
		os.Exit(1)
	}

	fs := flag.NewFlagSet("keyring "+args[0], flag.ExitOnError)
	dir := parseDir(fs, args[1:])

	switch args[0] {
	case "save":
		cmd.KeyringSave(dir)
	case "delete":
		cmd.KeyringDelete(dir)
	case "status":
		cmd.KeyringStatus(dir)
	default:
		fmt.Fprintf(os.Stderr, "Unknown keyring subcommand: %s\n", args[0])
		os.Exit(1)
	}
}

func runConfig(_ context.Context, args []string) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	write := fs.Bool("init", false, "Write the settings file if it does not exist")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	cmd.Config(*write)
}

func runCompletion(_ context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: dirvault completion <bash|zsh|fish>")
		os.Exit(1)
	}
	cmd.Completion(args[0])
}

func printUsage() {
	fmt.Println("dirvault - Seal directories into password-protected containers")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  dirvault [-v|--verbose] [--debug] <command> [arguments]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  create      Register a directory as a vault and seal it")
	fmt.Println("  lock        Seal the files of a vault into its container")
	fmt.Println("  unlock      Restore the files of a vault")
	fmt.Println("  ls, list    List registered vaults")
	fmt.Println("  rm          Forget an unlocked vault")
	fmt.Println("  status      Show vault status")
	fmt.Println("  diff        Compare vault contents with local files")
	fmt.Println("  compact     Compact the vault registry")
	fmt.Println("  keyring     Manage password in OS keyring")
	fmt.Println("  config      Show or write settings")
	fmt.Println("  completion  Generate shell completions")
	fmt.Println("  help        Show help for a command")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  dirvault create ~/secrets       # Register and seal ~/secrets")
	fmt.Println("  dirvault unlock ~/secrets       # Restore its files")
	fmt.Println("  dirvault lock ~/secrets         # Seal them again")
	fmt.Println("  dirvault ls                     # List vaults")
	fmt.Println()
	fmt.Println("Use 'dirvault help <command>' for more information about a command.")
}

func printCommandHelp(command string) {
	switch command {
	case "create":
		fmt.Println("dirvault create [--name <name>] [dir]")
		fmt.Println()
		fmt.Println("Registers a directory (default: current) as a vault and seals it at once.")
		fmt.Println("Prompts for a password twice. The password is never stored in the")
		fmt.Println("registry, only its Argon2id hash; you must remember it.")
		fmt.Println()
		fmt.Println("Only regular files directly in the directory are sealed, at most 31 of")
		fmt.Println("them. Hidden files and subdirectories are left alone.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --name    Vault name (defaults to the directory name)")
	case "lock":
		fmt.Println("dirvault lock [dir]")
		fmt.Println()
		fmt.Println("Packs the files of an unlocked vault into 'vaultfile' and removes")
		fmt.Println("the plaintext once the container is safely written.")
	case "unlock":
		fmt.Println("dirvault unlock [--force|--keep-both|--abort] [dir]")
		fmt.Println()
		fmt.Println("Restores the files of a locked vault and removes its container.")
		fmt.Println("Local files identical to the vault copy are skipped.")
		fmt.Println()
		fmt.Println("Flags:")
		fmt.Println("  --force       Overwrite local files without asking")
		fmt.Println("  --keep-both   Keep both versions (save vault as .from-vault)")
		fmt.Println("  --abort       Abort on the first conflict, writing nothing")
		fmt.Println()
		fmt.Println("Interactive mode (default on a terminal):")
		fmt.Println("    [v] Use vault version (overwrite local)")
		fmt.Println("    [b] Keep both (save vault as .from-vault)")
		fmt.Println("    [d] Show diff (text files only)")
		fmt.Println("    [a] Abort unlock")
	case "ls", "list":
		fmt.Println("dirvault ls [--json]")
		fmt.Println()
		fmt.Println("Lists registered vaults with their lock state.")
	case "rm":
		fmt.Println("dirvault rm [dir]")
		fmt.Println()
		fmt.Println("Removes an unlocked vault from the registry and the keyring.")
		fmt.Println("Files in the directory are not touched. Locked vaults are refused.")
	case "status":
		fmt.Println("dirvault status [dir]")
		fmt.Println()
		fmt.Println("Shows the registry state, the container and git hygiene of a vault.")
		fmt.Println("Does not require a password.")
	case "diff":
		fmt.Println("dirvault diff [dir]")
		fmt.Println()
		fmt.Println("Decrypts a locked vault in memory and compares it with local files.")
		fmt.Println("Nothing is written to disk.")
	case "compact":
		fmt.Println("dirvault compact")
		fmt.Println()
		fmt.Println("Compacts the registry database to reclaim unused disk space.")
		fmt.Println("This is automatically done after 'rm'.")
	case "keyring":
		fmt.Println("dirvault keyring <save|delete|status> [dir]")
		fmt.Println()
		fmt.Println("Manages the vault password in the OS keyring.")
	case "config":
		fmt.Println("dirvault config [--init]")
		fmt.Println()
		fmt.Println("Prints the effective settings. --init writes them to settings.toml.")
		fmt.Println()
		fmt.Println("Environment:")
		fmt.Println("  DIRVAULT_HOME         Configuration directory")
		fmt.Println("  DIRVAULT_PASSWORD     Password, skips prompts and keyring")
		fmt.Println("  DIRVAULT_NO_KEYRING   Disable keyring use")
	case "completion":
		fmt.Println("dirvault completion <bash|zsh|fish>")
		fmt.Println()
		fmt.Println("Outputs shell completion script for the specified shell.")
		fmt.Println()
		fmt.Println("Setup:")
		fmt.Println("  # Bash - add to ~/.bashrc")
		fmt.Println("  eval \"$(dirvault completion bash)\"")
		fmt.Println()
		fmt.Println("  # Zsh - add to ~/.zshrc")
		fmt.Println("  eval \"$(dirvault completion zsh)\"")
		fmt.Println()
		fmt.Println("  # Fish - add to ~/.config/fish/config.fish")
		fmt.Println("  dirvault completion fish | source")
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
	}
}
