package services

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/requiem-ai/relaybot/context"
	tb "gopkg.in/telebot.v3"
)

// SetupService runs the first-time bootstrap: when the process is attached to
// a terminal it prompts for missing credentials and persists them to .env.
// Non-interactive runs (containers, systemd) skip prompting and rely on the
// environment alone.
type SetupService struct {
	context.DefaultService
}

const SETUP_SVC = "setup_svc"

func (svc SetupService) Id() string {
	return SETUP_SVC
}

func (svc *SetupService) Configure(ctx *context.Context) error {
	if err := svc.DefaultService.Configure(ctx); err != nil {
		return err
	}

	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return nil
	}

	if err := svc.runTelegramSetup(); err != nil {
		return err
	}

	return svc.runDeepSeekSetup()
}

func (svc *SetupService) runTelegramSetup() error {
	reader := bufio.NewReader(os.Stdin)

	secret := strings.TrimSpace(os.Getenv("TELEGRAM_SECRET"))
	if secret != "" {
		return svc.registerTelegramBotCommands(secret)
	}

	fmt.Fprintln(os.Stdout, "Relay bot Telegram setup")
	fmt.Fprintln(os.Stdout, "Press Enter to keep the current value shown in brackets.")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "BotFather tips:")
	fmt.Fprintln(os.Stdout, "- Create a bot with /newbot, then copy the token.")
	fmt.Fprintln(os.Stdout, "- No webhook needed; this service uses long polling.")
	fmt.Fprintln(os.Stdout, "")

	secret, err := promptRequired(reader, "Bot token (from BotFather /newbot)", secret)
	if err != nil {
		return err
	}

	_ = os.Setenv("TELEGRAM_SECRET", secret)

	if err := svc.saveEnv(map[string]string{"TELEGRAM_SECRET": secret}); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Telegram setup saved to .env.")
	return svc.registerTelegramBotCommands(secret)
}

func (svc *SetupService) runDeepSeekSetup() error {
	reader := bufio.NewReader(os.Stdin)

	key := strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY"))
	if key != "" {
		return nil
	}

	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "DeepSeek setup")
	fmt.Fprintln(os.Stdout, "Without an API key the bot still starts, but every ask fails politely.")

	if !confirm(reader, "Configure the DeepSeek API key now? (y/N): ") {
		return nil
	}

	key, err := promptRequired(reader, "DeepSeek API key", "")
	if err != nil {
		return err
	}

	model, err := promptWithDefault(reader, "Default model", os.Getenv("DEEPSEEK_MODEL"), defaultModel)
	if err != nil {
		return err
	}

	_ = os.Setenv("DEEPSEEK_API_KEY", key)
	_ = os.Setenv("DEEPSEEK_MODEL", model)

	if err := svc.saveEnv(map[string]string{
		"DEEPSEEK_API_KEY": key,
		"DEEPSEEK_MODEL":   model,
	}); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "DeepSeek setup saved to .env.")
	return nil
}

// registerTelegramBotCommands publishes the command menu. Telegram only
// understands slash commands, so the menu is registered when the bot actually
// runs with the "/" prefix.
func (svc *SetupService) registerTelegramBotCommands(secret string) error {
	prefix := os.Getenv("COMMAND_PREFIX")
	if prefix == "" {
		prefix = defaultCommandPrefix
	}
	if prefix != "/" {
		return nil
	}

	bot, err := tb.NewBot(tb.Settings{
		Token:  secret,
		Poller: &tb.LongPoller{Timeout: 1 * time.Second},
	})
	if err != nil {
		return err
	}

	commands := []tb.Command{
		{Text: "ask", Description: "Ask DeepSeek a question"},
		{Text: "clear", Description: "Clear this channel's conversation history"},
		{Text: "model", Description: "Change the DeepSeek model"},
		{Text: "help", Description: "Show usage"},
	}

	if err := bot.SetCommands(commands, tb.CommandScope{Type: tb.CommandScopeDefault}); err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Telegram commands and menu updated.")
	return nil
}

func (svc *SetupService) saveEnv(updates map[string]string) error {
	envPath, err := envFilePath()
	if err != nil {
		return err
	}
	return updateEnvFile(envPath, updates)
}

func confirm(reader *bufio.Reader, prompt string) bool {
	fmt.Fprint(os.Stdout, prompt)
	text, _ := reader.ReadString('\n')
	text = strings.TrimSpace(strings.ToLower(text))
	return text == "y" || text == "yes"
}

func promptRequired(reader *bufio.Reader, label, current string) (string, error) {
	for {
		value, err := promptWithDefault(reader, label, current, "")
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(value) == "" {
			fmt.Fprintln(os.Stdout, "Value required.")
			continue
		}
		return value, nil
	}
}

func promptWithDefault(reader *bufio.Reader, label, current, fallback string) (string, error) {
	display := current
	if display == "" {
		display = fallback
	}

	if display != "" {
		fmt.Fprintf(os.Stdout, "%s [%s]: ", label, display)
	} else {
		fmt.Fprintf(os.Stdout, "%s: ", label)
	}

	text, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		if current != "" {
			return current, nil
		}
		return fallback, nil
	}

	return text, nil
}

func envFilePath() (string, error) {
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return filepath.Join(wd, ".env"), nil
}

// updateEnvFile rewrites the keys in updates while leaving every other line,
// comment and blank untouched. Missing keys are appended sorted.
func updateEnvFile(path string, updates map[string]string) error {
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}

	lines := []string{}
	seen := make(map[string]bool, len(updates))

	scanner := bufio.NewScanner(strings.NewReader(string(existing)))
	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			lines = append(lines, line)
			continue
		}

		prefix, key := parseEnvKey(trimmed)
		if key == "" {
			lines = append(lines, line)
			continue
		}

		if value, ok := updates[key]; ok {
			lines = append(lines, fmt.Sprintf("%s%s=%s", prefix, key, formatEnvValue(value)))
			seen[key] = true
			continue
		}

		lines = append(lines, line)
	}

	if err := scanner.Err(); err != nil {
		return err
	}

	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if seen[key] {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s=%s", key, formatEnvValue(updates[key])))
	}

	output := strings.Join(lines, "\n")
	if output != "" && !strings.HasSuffix(output, "\n") {
		output += "\n"
	}

	return os.WriteFile(path, []byte(output), 0o600)
}

func parseEnvKey(line string) (string, string) {
	trimmed := strings.TrimSpace(line)
	prefix := ""
	if strings.HasPrefix(trimmed, "export ") {
		prefix = "export "
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "export "))
	}

	idx := strings.Index(trimmed, "=")
	if idx <= 0 {
		return "", ""
	}

	key := strings.TrimSpace(trimmed[:idx])
	if key == "" {
		return "", ""
	}

	return prefix, key
}

func formatEnvValue(value string) string {
	if value == "" {
		return "\"\""
	}

	if !strings.ContainsAny(value, " \t#\"\\") {
		return value
	}

	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return fmt.Sprintf("\"%s\"", escaped)
}
