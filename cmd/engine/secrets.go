package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/Sukhmangill977/data-couch/internal/secrets"
)

// secretsCmd handles `secrets set mail|trello`. The value is the first line
// of stdin so it never shows up in shell history or ps output.
func secretsCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 2 || args[0] != "set" {
		fmt.Fprint(stderr, usage)
		return exitUsage
	}
	kind := args[1]

	fs, cf := newFlagSet("secrets", stderr)
	if code, ok := parseFlags(fs, args[2:]); !ok {
		return code
	}
	cfg, err := loadConfig(cf)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}

	var account string
	switch kind {
	case "mail":
		if cfg.Mail.Username == "" {
			fmt.Fprintln(stderr, "mail.username (EMAIL) must be set to store the mail password")
			return exitUsage
		}
		account = secrets.MailAccount(cfg)
	case "trello":
		if cfg.Trello.APIKey == "" {
			fmt.Fprintln(stderr, "trello.api_key (TRELLO_API_KEY) must be set to store the token")
			return exitUsage
		}
		account = secrets.TrelloAccount(cfg)
	default:
		fmt.Fprintf(stderr, "unknown secret %q (want mail|trello)\n", kind)
		return exitUsage
	}

	line, err := bufio.NewReader(stdin).ReadString('\n')
	if err != nil && err != io.EOF {
		fmt.Fprintln(stderr, "read secret:", err)
		return exitFatal
	}
	if err := secrets.Set(account, strings.TrimSpace(line)); err != nil {
		fmt.Fprintln(stderr, "store secret:", err)
		return exitFatal
	}
	fmt.Fprintf(stdout, "stored %s secret in keychain (%s)\n", kind, account)
	return exitOK
}
