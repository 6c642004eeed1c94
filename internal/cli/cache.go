package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dshills/prrisk/internal/cache"
	"github.com/dshills/prrisk/internal/config"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the AI response cache",
}

func openCache(cmd *cobra.Command) (*cache.Cache, bool) {
	cfg, err := config.Load(flagConfig, nil)
	if err != nil {
		fail(cmd, ExitUsageError, err)
		return nil, false
	}
	c, err := cache.New(cfg.AI.Cache.Dir, cfg.AI.Cache.TTL)
	if err != nil {
		fail(cmd, ExitRuntimeError, err)
		return nil, false
	}
	return c, true
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok := openCache(cmd)
		if !ok {
			return nil
		}
		stats, err := c.Stats()
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached responses",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, ok := openCache(cmd)
		if !ok {
			return nil
		}
		n, err := c.Clear()
		if err != nil {
			fail(cmd, ExitRuntimeError, err)
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached responses from %s\n", n, c.Dir())
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
