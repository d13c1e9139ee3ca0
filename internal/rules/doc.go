// Package rules decides whether a shell command issued by an agent could
// exfiltrate secrets.
//
// Rules come from three layers, always composed in the same order:
//
//  1. Built-in: a compiled-in catalog of known exfiltration techniques
//     (.env reads, keychain dumps, grep for passwords, ~/.ssh and ~/.aws, ...).
//  2. Config: declarations read from a rules file (default ~/.keychain/rules.json).
//  3. Env: ad-hoc substring patterns from KEYCHAIN_CUSTOM_RULES, split on '|'.
//
// The decision is an OR over every enabled rule. Layer order only decides which
// rule is reported when several match.
//
// Loading never fails. A missing or broken rules file, a malformed declaration,
// or an unset environment variable shrinks the affected layer and is reported
// through Engine.Warnings; the built-in layer is always present.
//
// Matching is a case-insensitive substring test. It is not a shell parser and
// makes no attempt to see through quoting, encoding, or indirection.
//
// # Threat Model
//
// T1 - Direct Secret Reads: an agent reads a credential store verbatim
// (cat .env, ~/.ssh, ~/.aws, shell history). Covered by substring rules on
// the well-known paths.
//
// T2 - Secret Discovery: an agent searches for credentials it does not yet
// know the location of (grep password, find -name '*key*'). Covered by
// contains_all rules pairing the search tool with the keyword.
//
// T3 - Tool-Mediated Dumps: a legitimate tool prints secrets as a side effect
// (docker compose config, security find-generic-password, mysqldump,
// git config --get). Covered by tool-specific rules in the built-in catalog.
//
// T4 - Site-Specific Stores: secrets live somewhere the catalog cannot know
// about. Covered by the config and env layers.
//
// Out of scope: obfuscated commands (base64, variable indirection, eval),
// scripts that read secrets from inside a file the agent executes, and
// network egress after a secret has been read.
package rules
