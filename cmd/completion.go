package cmd

import (
	"fmt"
	"os"
)

// Completion outputs shell completion scripts
func Completion(shell string) {
	switch shell {
	case "bash":
		fmt.Print(bashCompletion)
	case "zsh":
		fmt.Print(zshCompletion)
	case "fish":
		fmt.Print(fishCompletion)
	default:
		fmt.Fprintf(os.Stderr, "Unknown shell: %s\nSupported: bash, zsh, fish\n", shell)
		os.Exit(1)
	}
}

const bashCompletion = `_dirvault() {
    local cur prev words cword
    _init_completion || return

    local commands="create lock unlock ls list rm status diff compact keyring config help completion"

    if [[ $cword -eq 1 ]]; then
        COMPREPLY=($(compgen -W "$commands" -- "$cur"))
        return
    fi

    local cmd="${words[1]}"
    case "$cmd" in
        create)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--name" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        lock|rm|status|diff)
            _filedir -d
            ;;
        unlock)
            if [[ "$cur" == -* ]]; then
                COMPREPLY=($(compgen -W "--force --keep-both --abort" -- "$cur"))
            else
                _filedir -d
            fi
            ;;
        ls|list)
            COMPREPLY=($(compgen -W "--json" -- "$cur"))
            ;;
        config)
            COMPREPLY=($(compgen -W "--init" -- "$cur"))
            ;;
        keyring)
            COMPREPLY=($(compgen -W "save delete status" -- "$cur"))
            ;;
        help)
            COMPREPLY=($(compgen -W "$commands" -- "$cur"))
            ;;
        completion)
            COMPREPLY=($(compgen -W "bash zsh fish" -- "$cur"))
            ;;
    esac
}

complete -F _dirvault dirvault
`

const zshCompletion = `#compdef dirvault

_dirvault() {
    local -a commands
    commands=(
        'create:Register a directory as a vault and seal it'
        'lock:Seal the files of a vault into its container'
        'unlock:Restore the files of a vault'
        'ls:List registered vaults'
        'list:List registered vaults'
        'rm:Forget an unlocked vault'
        'status:Show vault status'
        'diff:Compare vault contents with local files'
        'compact:Compact the vault registry'
        'keyring:Manage password in OS keyring'
        'config:Show or write settings'
        'help:Show help for a command'
        'completion:Generate shell completions'
    )

    _arguments -C \
        '1: :->command' \
        '*: :->args'

    case "$state" in
        command)
            _describe -t commands 'dirvault commands' commands
            ;;
        args)
            case "${words[2]}" in
                create)
                    _arguments \
                        '--name[Vault name]:name:' \
                        '1:directory:_files -/'
                    ;;
                lock|rm|status|diff)
                    _arguments '1:directory:_files -/'
                    ;;
                unlock)
                    _arguments \
                        '--force[Overwrite local files without asking]' \
                        '--keep-both[Keep both local and vault versions]' \
                        '--abort[Abort on the first conflict]' \
                        '1:directory:_files -/'
                    ;;
                ls|list)
                    _arguments '--json[Print JSON]'
                    ;;
                config)
                    _arguments '--init[Write the settings file]'
                    ;;
                keyring)
                    _values 'subcommand' save delete status
                    ;;
                help)
                    _describe -t commands 'dirvault commands' commands
                    ;;
                completion)
                    _values 'shell' bash zsh fish
                    ;;
            esac
            ;;
    esac
}

_dirvault "$@"
`

const fishCompletion = `# dirvault fish completions

set -l commands create lock unlock ls list rm status diff compact keyring config help completion

complete -c dirvault -f

# Commands
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a create -d 'Register and seal a vault'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a lock -d 'Seal vault files'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a unlock -d 'Restore vault files'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a ls -d 'List vaults'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a list -d 'List vaults'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a rm -d 'Forget a vault'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a status -d 'Show vault status'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a diff -d 'Compare vault with local'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a compact -d 'Compact registry'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a keyring -d 'Manage password in OS keyring'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a config -d 'Show or write settings'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a help -d 'Show help'
complete -c dirvault -n "not __fish_seen_subcommand_from $commands" -a completion -d 'Generate completions'

# directory arguments
complete -c dirvault -n "__fish_seen_subcommand_from create lock unlock rm status diff" -a "(__fish_complete_directories)"
complete -c dirvault -n "__fish_seen_subcommand_from create" -l name -d 'Vault name'

# unlock flags
complete -c dirvault -n "__fish_seen_subcommand_from unlock" -l force -d 'Overwrite local files'
complete -c dirvault -n "__fish_seen_subcommand_from unlock" -l keep-both -d 'Keep both versions'
complete -c dirvault -n "__fish_seen_subcommand_from unlock" -l abort -d 'Abort on conflicts'

# list and config flags
complete -c dirvault -n "__fish_seen_subcommand_from ls list" -l json -d 'Print JSON'
complete -c dirvault -n "__fish_seen_subcommand_from config" -l init -d 'Write settings file'

# keyring subcommands
complete -c dirvault -n "__fish_seen_subcommand_from keyring" -a "save delete status"

# help completions
complete -c dirvault -n "__fish_seen_subcommand_from help" -a "$commands"

# completion completions
complete -c dirvault -n "__fish_seen_subcommand_from completion" -a "bash zsh fish"
`
