package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/asgdb/internal/codec"
	"github.com/alfredjeanlab/asgdb/internal/model"
)

var objectCmd = &cobra.Command{
	Use:     "object",
	Short:   "Store and read whole objects",
	GroupID: "objects",
}

var objectPutCmd = &cobra.Command{
	Use:   "put <namespace> [id]",
	Short: "Store an object read from --data, --file or stdin",
	Long: `Store an object. The body is JSON unless --format raw is given. With
--format msgpack the JSON body is re-encoded as MessagePack before it is
stored. Leave out the id to have one generated.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, _ := cmd.Flags().GetString("data")
		file, _ := cmd.Flags().GetString("file")
		formatFlag, _ := cmd.Flags().GetString("format")

		format := model.Format(strings.ToUpper(formatFlag))
		if !format.IsValid() {
			return fmt.Errorf("unknown format %q (must be json, raw or msgpack)", formatFlag)
		}

		body, err := readBody(data, file, cmd.InOrStdin())
		if err != nil {
			return err
		}
		payload, err := objectPayload(body, format)
		if err != nil {
			return err
		}

		obj := &model.ObjectRecord{Namespace: args[0], Payload: payload, Format: format}
		if len(args) == 2 {
			obj.ID = args[1]
		}
		stored, err := dbClient.PutObject(cmd.Context(), obj)
		if err != nil {
			return fmt.Errorf("storing object: %w", err)
		}
		if jsonOutput {
			return printJSON(map[string]any{"namespace": stored.Namespace, "id": stored.ID, "version": stored.Version})
		}
		fmt.Printf("Stored %s/%s (version %d)\n", stored.Namespace, stored.ID, stored.Version)
		return nil
	},
}

var objectGetCmd = &cobra.Command{
	Use:   "get <namespace> <id>",
	Short: "Show a stored object",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		obj, err := dbClient.GetObject(cmd.Context(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("getting object %s: %w", args[1], err)
		}
		return printObject(obj)
	},
}

var objectListCmd = &cobra.Command{
	Use:   "list <namespace>",
	Short: "List object ids in a namespace",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := dbClient.ListObjects(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("listing objects: %w", err)
		}
		return printList(ids, "(no objects)")
	},
}

var objectDeleteCmd = &cobra.Command{
	Use:   "delete <namespace> <id>...",
	Short: "Delete objects",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ns := args[0]
		for _, id := range args[1:] {
			if err := dbClient.DeleteObject(cmd.Context(), ns, id); err != nil {
				return fmt.Errorf("deleting object %s: %w", id, err)
			}
		}
		fmt.Printf("Deleted %d object(s) from %s\n", len(args)-1, ns)
		return nil
	},
}

func init() {
	objectPutCmd.Flags().String("data", "", "object body")
	objectPutCmd.Flags().String("file", "", "read the body from a file (- for stdin)")
	objectPutCmd.Flags().String("format", "json", "stored format (json, raw or msgpack)")

	objectCmd.AddCommand(objectPutCmd)
	objectCmd.AddCommand(objectGetCmd)
	objectCmd.AddCommand(objectListCmd)
	objectCmd.AddCommand(objectDeleteCmd)
}

// readBody picks the object body from --data, then --file, then stdin.
func readBody(data, file string, stdin io.Reader) (string, error) {
	if data != "" {
		return data, nil
	}
	var (
		b   []byte
		err error
	)
	if file == "" || file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("reading object body: %w", err)
	}
	return string(b), nil
}

// objectPayload converts body text into the stored payload for format.
func objectPayload(body string, format model.Format) (string, error) {
	switch format {
	case model.FormatRaw:
		return body, nil
	case model.FormatJSON:
		return strings.TrimSpace(body), nil
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("object body is not valid JSON: %w", err)
	}
	return codec.EncodeObject(plainNumbers(v), format)
}

// plainNumbers replaces json.Number leaves with int64 or float64 so binary
// formats store them as numbers rather than strings.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	case []any:
		for i := range x {
			x[i] = plainNumbers(x[i])
		}
	case map[string]any:
		for k := range x {
			x[k] = plainNumbers(x[k])
		}
	}
	return v
}
