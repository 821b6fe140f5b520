// Package initcmder provides the init command for initializing a local .relay
// directory in the current working directory.
package initcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/streamrelay/pkg/cliui"
	"github.com/papercomputeco/streamrelay/pkg/config"
	"github.com/papercomputeco/streamrelay/pkg/dotdir"
)

// maxRemoteConfigSize bounds a config.toml fetched with --preset <url>.
const maxRemoteConfigSize = 1 << 20

const initLongDesc string = `Initialize a new .relay/ directory in the current working directory.

Creates a local .relay/ directory that takes precedence over the default
~/.relay/ directory for configuration and chat state, and writes a
config.toml into it. An existing config.toml is kept unless --force is set.

--preset selects the upstream provider ("openrouter", "openai", "ollama"),
or fetches a config.toml from an http(s) URL.

Examples:
  relay init
  relay init --preset ollama
  relay init --preset https://example.com/relay/config.toml`

const initShortDesc string = "Initialize a local .relay/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "", "Provider preset name or URL of a config.toml")
	cmd.Flags().BoolVar(&cmder.force, "force", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(ctx context.Context, w io.Writer) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	// Resolve the preset before touching the filesystem so a bad name leaves
	// nothing behind.
	cfg, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	dir := filepath.Join(cwd, dotdir.DirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .relay directory: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return err
	}

	_, statErr := os.Stat(cfger.GetTarget())
	if statErr == nil && !c.force {
		fmt.Fprintf(w, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
		return nil
	}
	if statErr != nil && !errors.Is(statErr, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", statErr)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(w, "  %s Initialized .relay directory: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
	fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("Upstream:"), cliui.ValueStyle.Render(cfg.Upstream.Endpoint))
	if cfg.Upstream.APIKeyEnv != "" {
		fmt.Fprintf(w, "  %s %s\n", cliui.KeyStyle.Render("API key from:"), cliui.ValueStyle.Render("$"+cfg.Upstream.APIKeyEnv))
	}
	return nil
}

func (c *initCommander) resolve(ctx context.Context) (*config.Config, error) {
	switch {
	case c.preset == "":
		return config.NewDefaultConfig(), nil
	case strings.HasPrefix(c.preset, "http://"), strings.HasPrefix(c.preset, "https://"):
		return fetchConfig(ctx, c.preset)
	default:
		return config.PresetConfig(c.preset)
	}
}

// fetchConfig downloads and validates a remote config.toml.
func fetchConfig(ctx context.Context, url string) (*config.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching preset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching preset: %s returned status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteConfigSize))
	if err != nil {
		return nil, fmt.Errorf("reading preset: %w", err)
	}

	cfg, err := config.ParseConfigTOML(data)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
