package rules

// builtinCatalog is the compiled-in rule table. Every entry is enabled and
// covered by a matching and a non-matching command in builtin_test.go.
var builtinCatalog = []struct {
	id          string
	kind        Kind
	description string
}{
	// .env files
	{"env_file_access", Substring{".env"}, "Block access to .env files"},

	// docker compose config prints interpolated secrets
	{"docker_compose_config", ContainsAll{[]string{"docker", "compose", "config"}}, "Block docker compose config access"},
	{"docker_hyphen_compose_config", ContainsAll{[]string{"docker-compose", "config"}}, "Block docker-compose config access"},

	// macOS keychain
	{"security_find_generic", ContainsAll{[]string{"security", "find-generic"}}, "Block security find-generic (keychain access)"},
	{"security_find_internet", ContainsAll{[]string{"security", "find-internet"}}, "Block security find-internet (keychain access)"},
	{"security_get_keychain", ContainsAll{[]string{"security", "get-keychain"}}, "Block security get-keychain"},

	// mounted volumes holding key material
	{"volumes_keys_access", ContainsAll{[]string{"/Volumes", "keys"}}, "Block access to /Volumes/.../keys"},
	{"volumes_secret_access", ContainsAll{[]string{"/Volumes", "secret"}}, "Block access to /Volumes/.../secret"},
	{"volumes_password_access", ContainsAll{[]string{"/Volumes", "password"}}, "Block access to /Volumes/.../password"},
	{"volumes_credential_access", ContainsAll{[]string{"/Volumes", "credential"}}, "Block access to /Volumes/.../credential"},

	// searching for secrets
	{"grep_password", ContainsAll{[]string{"grep", "password"}}, "Block grep for password patterns"},
	{"grep_secret", ContainsAll{[]string{"grep", "secret"}}, "Block grep for secret patterns"},
	{"grep_key", ContainsAll{[]string{"grep", "key"}}, "Block grep for key patterns"},
	{"grep_token", ContainsAll{[]string{"grep", "token"}}, "Block grep for token patterns"},
	{"grep_api_key", ContainsAll{[]string{"grep", "api_key"}}, "Block grep for api_key patterns"},

	// ssh and aws config
	{"ssh_dir_access", Substring{"/.ssh/"}, "Block access to ~/.ssh directory"},
	{"aws_dir_access", Substring{"/.aws/"}, "Block access to ~/.aws directory"},

	// shell history
	{"bash_history", Substring{".bash_history"}, "Block access to .bash_history"},
	{"zsh_history", Substring{".zsh_history"}, "Block access to .zsh_history"},

	// database exports
	{"mysqldump", Substring{"mysqldump"}, "Block mysqldump (database export)"},
	{"pg_dump", Substring{"pg_dump"}, "Block pg_dump (PostgreSQL export)"},
	{"redis_cli_keys", ContainsAll{[]string{"redis-cli", "keys"}}, "Block redis-cli keys (Redis inspection)"},

	// git credentials
	{"git_config_get", ContainsAll{[]string{"git", "config", "get"}}, "Block git config get (credential access)"},

	// find by name
	{"find_password", ContainsAll{[]string{"find", "password"}}, "Block find for password files"},
	{"find_secret", ContainsAll{[]string{"find", "secret"}}, "Block find for secret files"},
	{"find_key", ContainsAll{[]string{"find", "key"}}, "Block find for key files"},

	// misc
	{"cat_env", ContainsAll{[]string{"cat", ".env"}}, "Block cat .env"},
	{"ls_ssh", ContainsAll{[]string{"ls", "/.ssh"}}, "Block ls ~/.ssh"},
}

// BuiltinSource yields the compiled-in catalog.
type BuiltinSource struct{}

// Layer implements Source.
func (BuiltinSource) Layer() Layer { return LayerBuiltin }

// Load implements Source. It never returns an error.
func (BuiltinSource) Load() ([]Rule, error) {
	return BuiltinRules(), nil
}

// BuiltinRules returns a fresh copy of the built-in catalog.
func BuiltinRules() []Rule {
	out := make([]Rule, 0, len(builtinCatalog))
	for _, e := range builtinCatalog {
		out = append(out, Rule{
			ID:          e.id,
			Kind:        cloneKind(e.kind),
			Description: e.description,
			Enabled:     true,
			Layer:       LayerBuiltin,
		})
	}
	return out
}
