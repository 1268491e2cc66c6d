package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/Sukhmangill977/data-couch/internal/config"
)

const (
	// “Service” groups the engine's secrets in the OS keychain.
	KeyringService = "data-couch"
)

func Get(account string) (string, error) {
	if strings.TrimSpace(account) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, account)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(pw) == "" {
		return "", keyring.ErrNotFound
	}
	return pw, nil
}

func Set(account string, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}

func MailAccount(cfg config.Config) string {
	return fmt.Sprintf("data-couch:mail:%s@%s", cfg.Mail.Username, cfg.Mail.IMAPHost)
}

func TrelloAccount(cfg config.Config) string {
	return fmt.Sprintf("data-couch:trello:%s", cfg.Trello.APIKey)
}

// Resolve fills the mailbox password and the Trello token from the keychain
// when the environment did not provide them. A missing keychain entry is left
// for config validation to report.
func Resolve(cfg *config.Config) error {
	fill := func(dst *string, account string) error {
		if *dst != "" {
			return nil
		}
		v, err := Get(account)
		switch {
		case err == nil:
			*dst = v
			return nil
		case errors.Is(err, keyring.ErrNotFound):
			return nil
		default:
			return fmt.Errorf("keychain %s: %w", account, err)
		}
	}
	if cfg.Mail.Username != "" {
		if err := fill(&cfg.Mail.Password, MailAccount(*cfg)); err != nil {
			return err
		}
	}
	if cfg.Trello.APIKey != "" {
		if err := fill(&cfg.Trello.Token, TrelloAccount(*cfg)); err != nil {
			return err
		}
	}
	return nil
}
