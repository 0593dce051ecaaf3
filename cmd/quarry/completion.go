// Copyright 2026 Quarry Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

// bashCompletionTemplate is the bash completion script for quarry.
const bashCompletionTemplate = `#!/bin/bash

# Bash completion script for quarry
# Installation:
#   source <(quarry completion bash)
#   Or add to ~/.bashrc:
#   echo 'source <(quarry completion bash)' >> ~/.bashrc

_quarry_completion() {
    local cur prev commands
    commands="init ingest search status reset completion"

    cur="${COMP_WORDS[COMP_CWORD]}"
    prev="${COMP_WORDS[COMP_CWORD-1]}"

    # Global flags
    if [[ ${cur} == -* ]] ; then
        COMPREPLY=( $(compgen -W "--version --config" -- ${cur}) )
        return 0
    fi

    # First argument: complete commands
    if [ $COMP_CWORD -eq 1 ]; then
        COMPREPLY=( $(compgen -W "${commands}" -- ${cur}) )
        return 0
    fi

    local cmd="${COMP_WORDS[1]}"
    case "${cmd}" in
        ingest)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--full --embed-workers --debug --json --quiet --no-color --metrics-addr" -- ${cur}) )
            fi
            ;;
        search)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "-k --path --kind --min-score --json --text --no-color" -- ${cur}) )
            fi
            ;;
        status)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--json" -- ${cur}) )
            fi
            ;;
        reset)
            if [[ ${cur} == -* ]] ; then
                COMPREPLY=( $(compgen -W "--yes" -- ${cur}) )
            fi
            ;;
        completion)
            if [ $COMP_CWORD -eq 2 ]; then
                COMPREPLY=( $(compgen -W "bash zsh fish" -- ${cur}) )
            fi
            ;;
    esac
}

complete -F _quarry_completion quarry
`

// zshCompletionTemplate is the zsh completion script for quarry.
const zshCompletionTemplate = `#compdef quarry

# Zsh completion script for quarry
# Installation:
#   1. Ensure compinit is loaded (add to ~/.zshrc if not present):
#      autoload -U compinit; compinit
#   2. Save this script to a directory in your fpath:
#      quarry completion zsh > "${fpath[1]}/_quarry"
#   3. Reload completions:
#      rm -f ~/.zcompdump; compinit

_quarry() {
    local -a commands
    commands=(
        'init:Create .quarry/project.yaml configuration'
        'ingest:Ingest the current repository'
        'search:Search the index'
        'status:Show index status'
        'reset:Delete local index data'
        'completion:Generate shell completion script'
    )

    _arguments -C \
        '(- *)--version[Show version and exit]' \
        '--config[Path to .quarry/project.yaml]:config file:_files -g "*.yaml"' \
        '1: :->command' \
        '*:: :->args'

    case $state in
        command)
            _describe 'command' commands
            ;;
        args)
            case $words[1] in
                ingest)
                    _arguments \
                        '--full[Rebuild the index from scratch]' \
                        '--embed-workers[Number of embedding workers]:workers:' \
                        '--debug[Enable debug logging]' \
                        '--json[Print the run report as JSON]' \
                        '--metrics-addr[Prometheus metrics address]:address:'
                    ;;
                search)
                    _arguments \
                        '-k[Number of results]:count:' \
                        '--path[Glob filter on file paths]:glob:' \
                        '--kind[Kind filter]:kinds:' \
                        '--min-score[Minimum score]:score:' \
                        '--json[Output as JSON]' \
                        '--text[Include chunk text]' \
                        '1:query:'
                    ;;
                status)
                    _arguments \
                        '--json[Output as JSON]'
                    ;;
                reset)
                    _arguments \
                        '--yes[Skip confirmation prompt]'
                    ;;
                completion)
                    _arguments \
                        '1:shell:(bash zsh fish)'
                    ;;
            esac
            ;;
    esac
}

_quarry
`

// fishCompletionTemplate is the fish completion script for quarry.
const fishCompletionTemplate = `# Fish completion script for quarry
# Installation:
#   1. Load completions for current session:
#      quarry completion fish | source
#   2. Install permanently:
#      quarry completion fish > ~/.config/fish/completions/quarry.fish

# Commands
complete -c quarry -f -n "__fish_use_subcommand" -a "init" -d "Create .quarry/project.yaml configuration"
complete -c quarry -f -n "__fish_use_subcommand" -a "ingest" -d "Ingest the current repository"
complete -c quarry -f -n "__fish_use_subcommand" -a "search" -d "Search the index"
complete -c quarry -f -n "__fish_use_subcommand" -a "status" -d "Show index status"
complete -c quarry -f -n "__fish_use_subcommand" -a "reset" -d "Delete local index data (destructive!)"
complete -c quarry -f -n "__fish_use_subcommand" -a "completion" -d "Generate shell completion script"

# Global flags
complete -c quarry -l version -d "Show version and exit"
complete -c quarry -l config -d "Path to .quarry/project.yaml" -r

# ingest command flags
complete -c quarry -n "__fish_seen_subcommand_from ingest" -l full -d "Rebuild the index from scratch"
complete -c quarry -n "__fish_seen_subcommand_from ingest" -l embed-workers -d "Number of embedding workers" -r
complete -c quarry -n "__fish_seen_subcommand_from ingest" -l debug -d "Enable debug logging"
complete -c quarry -n "__fish_seen_subcommand_from ingest" -l json -d "Print the run report as JSON"
complete -c quarry -n "__fish_seen_subcommand_from ingest" -l metrics-addr -d "Prometheus metrics address" -r

# search command flags
complete -c quarry -n "__fish_seen_subcommand_from search" -s k -d "Number of results" -r
complete -c quarry -n "__fish_seen_subcommand_from search" -l path -d "Glob filter on file paths" -r
complete -c quarry -n "__fish_seen_subcommand_from search" -l kind -d "Kind filter" -r
complete -c quarry -n "__fish_seen_subcommand_from search" -l json -d "Output as JSON"

# status command flags
complete -c quarry -n "__fish_seen_subcommand_from status" -l json -d "Output as JSON"

# reset command flags
complete -c quarry -n "__fish_seen_subcommand_from reset" -l yes -d "Skip confirmation prompt"

# completion command arguments
complete -c quarry -n "__fish_seen_subcommand_from completion" -f -a "bash" -d "Generate bash completion script"
complete -c quarry -n "__fish_seen_subcommand_from completion" -f -a "zsh" -d "Generate zsh completion script"
complete -c quarry -n "__fish_seen_subcommand_from completion" -f -a "fish" -d "Generate fish completion script"
`

// runCompletion executes the 'completion' CLI command, generating
// shell-specific completion scripts for bash, zsh, or fish.
//
// Examples:
//
//	quarry completion bash                        Output bash completion script
//	source <(quarry completion bash)              Load bash completions
//	quarry completion zsh > "${fpath[1]}/_quarry" Install zsh completions
//	quarry completion fish | source               Load fish completions
func runCompletion(args []string) {
	fs := flag.NewFlagSet("completion", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: quarry completion <shell>

Generate shell completion scripts for bash, zsh, or fish.

Arguments:
  shell    Shell type: bash, zsh, or fish (required)

Examples:
  source <(quarry completion bash)
  quarry completion zsh > "${fpath[1]}/_quarry"
  quarry completion fish > ~/.config/fish/completions/quarry.fish

After installing completions, restart your shell or source your rc file.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() != 1 {
		qerrors.FatalError(qerrors.NewInputError(
			"Invalid arguments",
			"The completion command requires exactly one argument: the shell name",
			"Run 'quarry completion bash', 'quarry completion zsh', or 'quarry completion fish'",
		), false)
	}

	switch shell := fs.Arg(0); shell {
	case "bash":
		fmt.Print(bashCompletionTemplate)
	case "zsh":
		fmt.Print(zshCompletionTemplate)
	case "fish":
		fmt.Print(fishCompletionTemplate)
	default:
		qerrors.FatalError(qerrors.NewInputError(
			"Unsupported shell",
			fmt.Sprintf("Shell '%s' is not supported. Valid options: bash, zsh, fish", shell),
			"Run 'quarry completion bash', 'quarry completion zsh', or 'quarry completion fish'",
		), false)
	}
}
