package config

import "testing"

func TestLoadAppliesDefaultsAndParsesRepeatedFlags(t *testing.T) {
	cfg, err := Load([]string{
		"--db-path", "/tmp/bot.sqlite3",
		"--bot-token", "123:abc",
		"--authorized-chat-id", "1",
		"--authorized-chat-id", "2",
	})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.PollTimeoutSeconds != 60 {
		t.Fatalf("poll timeout = %d, want default 60", cfg.PollTimeoutSeconds)
	}
	if cfg.MarketplaceSearchLimit != 30 {
		t.Fatalf("search limit = %d, want default 30", cfg.MarketplaceSearchLimit)
	}
	if len(cfg.AuthorizedChatIDs) != 2 || cfg.AuthorizedChatIDs[0] != 1 || cfg.AuthorizedChatIDs[1] != 2 {
		t.Fatalf("authorized chat ids = %v, want [1 2]", cfg.AuthorizedChatIDs)
	}
}

func TestLoadRejectsMissingRequiredFields(t *testing.T) {
	if _, err := Load([]string{"--bot-token", "x", "--authorized-chat-id", "1"}); err == nil {
		t.Fatal("expected an error when --db-path is missing")
	}
	if _, err := Load([]string{"--db-path", "/tmp/bot.sqlite3", "--authorized-chat-id", "1"}); err == nil {
		t.Fatal("expected an error when --bot-token is missing")
	}
	if _, err := Load([]string{"--db-path", "/tmp/bot.sqlite3", "--bot-token", "x"}); err == nil {
		t.Fatal("expected an error when no --authorized-chat-id is given")
	}
}
