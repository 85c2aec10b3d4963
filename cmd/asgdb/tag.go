package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var tagCmd = &cobra.Command{
	Use:     "tag",
	Short:   "Label identities and objects with named tags",
	GroupID: "objects",
}

var tagAddCmd = &cobra.Command{
	Use:   "add <namespace> <target> <name> [value]",
	Short: "Attach a tag, replacing any previous value",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value *string
		if len(args) == 4 {
			value = &args[3]
		}
		if err := dbClient.AddTag(cmd.Context(), args[0], args[1], args[2], value); err != nil {
			return fmt.Errorf("adding tag %q: %w", args[2], err)
		}
		fmt.Printf("Tagged %s with %s\n", args[1], args[2])
		return nil
	},
}

var tagRemoveCmd = &cobra.Command{
	Use:   "remove <namespace> <target> <name>...",
	Short: "Remove tags from a target",
	Args:  cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, target := args[0], args[1]
		for _, name := range args[2:] {
			if err := dbClient.RemoveTag(cmd.Context(), ns, target, name); err != nil {
				return fmt.Errorf("removing tag %q: %w", name, err)
			}
		}
		fmt.Printf("Removed tag(s) from %s\n", target)
		return nil
	},
}

var tagListCmd = &cobra.Command{
	Use:   "list <namespace> <target>",
	Short: "Show the tags on a target",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tags, err := dbClient.GetTags(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting tags: %w", err)
		}
		return printTags(tags)
	},
}

var tagFindCmd = &cobra.Command{
	Use:   "find <namespace> <name> [value]",
	Short: "List targets carrying a tag, optionally with an exact value",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		var value *string
		if len(args) == 3 {
			value = &args[2]
		}
		targets, err := dbClient.FindTagged(cmd.Context(), args[0], args[1], value)
		if err != nil {
			return fmt.Errorf("finding tag %q: %w", args[1], err)
		}
		return printList(targets, "(no matches)")
	},
}

func init() {
	tagCmd.AddCommand(tagAddCmd)
	tagCmd.AddCommand(tagRemoveCmd)
	tagCmd.AddCommand(tagListCmd)
	tagCmd.AddCommand(tagFindCmd)
}
