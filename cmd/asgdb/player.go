package main

import (
	"fmt"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/convert"
	"github.com/alfredjeanlab/asgdb/internal/profile"
	"github.com/alfredjeanlab/asgdb/internal/ui"
)

var playerCmd = &cobra.Command{
	Use:     "player",
	Short:   "Inspect per-player plugin data (local transport)",
	GroupID: "data",
}

func localProfiles() (*profile.Profiles, error) {
	e, err := localEngine()
	if err != nil {
		return nil, err
	}
	return profile.New(e), nil
}

func parsePlayer(s string) (uuid.UUID, error) {
	id, ok := convert.UUID(s)
	if !ok {
		return uuid.Nil, fmt.Errorf("invalid player UUID %q", s)
	}
	return id, nil
}

var playerListCmd = &cobra.Command{
	Use:   "list [plugin]",
	Short: "List plugins with player data, or the players of one plugin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := localProfiles()
		if err != nil {
			return err
		}
		if len(args) == 0 {
			return printList(p.Plugins(cmd.Context()), "(no plugins)")
		}
		players := p.Players(cmd.Context(), args[0])
		ids := make([]string, len(players))
		for i, u := range players {
			ids[i] = u.String()
		}
		return printList(ids, fmt.Sprintf("No players found with data for plugin %s", args[0]))
	},
}

var playerViewCmd = &cobra.Command{
	Use:   "view <plugin> <player-uuid>",
	Short: "Show a player's data for a plugin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := localProfiles()
		if err != nil {
			return err
		}
		player, err := parsePlayer(args[1])
		if err != nil {
			return err
		}
		data, ok := p.Load(cmd.Context(), player, args[0])
		if !ok {
			return fmt.Errorf("no data found for player %s in plugin %s", player, args[0])
		}
		if jsonOutput {
			return printJSON(data)
		}
		fmt.Printf("Data for %s in %s\n", ui.RenderKey(player.String()), ui.RenderKey(args[0]))
		for _, k := range slices.Sorted(maps.Keys(data)) {
			fmt.Printf("  %s: %v\n", ui.RenderKey(k), data[k])
		}
		return nil
	},
}

var playerDeleteCmd = &cobra.Command{
	Use:   "delete <plugin> <player-uuid>",
	Short: "Delete a player's data for a plugin",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := localProfiles()
		if err != nil {
			return err
		}
		player, err := parsePlayer(args[1])
		if err != nil {
			return err
		}
		res := p.Delete(cmd.Context(), player, args[0])
		if res.Err != nil {
			return fmt.Errorf("deleting data for %s: %w", player, res.Err)
		}
		if !res.OK {
			return fmt.Errorf("no data found for player %s in plugin %s", player, args[0])
		}
		fmt.Printf("Deleted %d value(s) for %s in %s\n", res.Affected, player, args[0])
		return nil
	},
}

func init() {
	playerCmd.AddCommand(playerListCmd)
	playerCmd.AddCommand(playerViewCmd)
	playerCmd.AddCommand(playerDeleteCmd)
}
