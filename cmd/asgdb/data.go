package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/client"
	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/convert"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

var listCmd = &cobra.Command{
	Use:     "list [namespace]",
	Short:   "List namespaces, or the identities stored in one",
	GroupID: "data",
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if len(args) == 0 {
			names, err := dbClient.ListNamespaces(ctx)
			if err != nil {
				return fmt.Errorf("listing namespaces: %w", err)
			}
			return printList(names, "(no namespaces)")
		}
		ids, err := dbClient.ListIdentities(ctx, args[0])
		if err != nil {
			return fmt.Errorf("listing %s: %w", args[0], err)
		}
		return printList(ids, "(no identities)")
	},
}

var viewCmd = &cobra.Command{
	Use:     "view <namespace> <identity>",
	Short:   "Show every value stored for an identity",
	GroupID: "data",
	Args:    cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, id := args[0], args[1]
		recs, err := dbClient.GetValues(cmd.Context(), ns, id)
		if err != nil {
			return fmt.Errorf("getting %s/%s: %w", ns, id, err)
		}
		if jsonOutput {
			return printRecordsJSON(recs)
		}
		printRecordsTable(os.Stdout, ns, id, recs)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:     "get <namespace> <identity> <key>",
	Short:   "Print one value",
	GroupID: "data",
	Args:    cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		as, _ := cmd.Flags().GetString("as")
		rec, err := dbClient.GetValue(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("getting %s: %w", args[2], err)
		}
		if as != "" {
			v, err := convertValue(rec, as)
			if err != nil {
				return err
			}
			if jsonOutput {
				return printJSON(v)
			}
			fmt.Println(v)
			return nil
		}
		if jsonOutput {
			return printJSON(toPlain(rec))
		}
		fmt.Println(displayValue(rec))
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <namespace> <identity> <key>=<value>...",
	Short: "Store one or more values",
	Long: `Store values for an identity. Each value is parsed as JSON when it can be,
so 12 is stored as an integer, true as a boolean and [1,2] as a list. Anything
else is stored as a string. Use --replace to drop keys that are not given.`,
	GroupID: "data",
	Args:    cobra.MinimumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns, id := args[0], args[1]
		replace, _ := cmd.Flags().GetBool("replace")

		values, err := parseAssignments(args[2:])
		if err != nil {
			return err
		}
		n, err := dbClient.PutValues(cmd.Context(), ns, id, values, replace)
		if err != nil {
			return fmt.Errorf("storing values: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]int64{"affected": n})
		}
		fmt.Printf("Stored %d value(s) for %s/%s\n", len(values), ns, id)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <namespace> <identity> [key]",
	Short:   "Delete a value, or everything stored for an identity",
	GroupID: "data",
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		ns, id := args[0], args[1]
		if len(args) == 3 {
			if err := dbClient.DeleteValue(ctx, ns, id, args[2]); err != nil {
				return fmt.Errorf("deleting %s: %w", args[2], err)
			}
			fmt.Printf("Deleted %s from %s/%s\n", args[2], ns, id)
			return nil
		}
		n, err := dbClient.DeleteValues(ctx, ns, id)
		if errors.Is(err, client.ErrNotFound) {
			fmt.Printf("Nothing stored for %s/%s\n", ns, id)
			return nil
		}
		if err != nil {
			return fmt.Errorf("deleting %s/%s: %w", ns, id, err)
		}
		fmt.Printf("Deleted %d value(s) from %s/%s\n", n, ns, id)
		return nil
	},
}

func init() {
	getCmd.Flags().String("as", "", "convert the value (int, long, float, bool, uuid or string)")
	setCmd.Flags().Bool("replace", false, "replace every stored value for the identity")
}

// parseAssignments turns key=value arguments into a value map.
func parseAssignments(args []string) (map[string]any, error) {
	values := make(map[string]any, len(args))
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok || len(key) == 0 {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", arg)
		}
		values[key] = parseValue(raw)
	}
	return values, nil
}

// parseValue reads s as a single JSON value, keeping numbers exact. Input
// that is not JSON is returned as the string itself.
func parseValue(s string) any {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return s
	}
	if _, err := dec.Token(); err != io.EOF {
		return s
	}
	return v
}

// convertValue decodes rec and converts it to the named type. Values that
// do not convert report an error rather than a zero default.
func convertValue(rec *model.KeyedRecord, as string) (any, error) {
	v, err := codec.DecodeAny(rec.Value, rec.ValueType)
	if err != nil {
		return nil, err
	}
	fail := fmt.Errorf("%s (%s) does not convert to %s", rec.Key, rec.ValueType, as)
	switch as {
	case "int", "long":
		// Two defaults differ only when the conversion fell back.
		n := convert.Int64(v, 0)
		if n != convert.Int64(v, 1) {
			return nil, fail
		}
		if as == "int" && (n < math.MinInt32 || n > math.MaxInt32) {
			return nil, fail
		}
		return n, nil
	case "float":
		f := convert.Float64(v, 0)
		if f != convert.Float64(v, 1) {
			return nil, fail
		}
		return f, nil
	case "bool":
		return convert.Bool(v, false), nil
	case "uuid":
		u, ok := convert.UUID(v)
		if !ok {
			return nil, fail
		}
		return u.String(), nil
	case "string":
		if s := convert.String(v); s != nil {
			return *s, nil
		}
		return nil, nil
	}
	return nil, fmt.Errorf("unknown conversion %q", as)
}
